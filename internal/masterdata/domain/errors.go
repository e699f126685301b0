package masterdata

import "errors"

var (
	// ErrNoMembers is returned when the collective has no members.
	ErrNoMembers = errors.New("masterdata: no members configured")
	// ErrEmptyMemberID is returned when a member id is empty.
	ErrEmptyMemberID = errors.New("masterdata: empty member id")
	// ErrDuplicateMemberID is returned when two members share an id.
	ErrDuplicateMemberID = errors.New("masterdata: duplicate member id")
	// ErrEmptyMeterID is returned when a meter external id is empty.
	ErrEmptyMeterID = errors.New("masterdata: empty meter external id")
	// ErrDuplicateMeterID is returned when two meters share an external id.
	ErrDuplicateMeterID = errors.New("masterdata: duplicate meter external id")
	// ErrNoHost is returned when no member is flagged as host.
	ErrNoHost = errors.New("masterdata: no host member configured")
	// ErrMultipleHosts is returned when more than one member is flagged as host.
	ErrMultipleHosts = errors.New("masterdata: more than one host member")
	// ErrHostMissingVirtualMeters is returned when the host lacks a virtual meter pair.
	ErrHostMissingVirtualMeters = errors.New("masterdata: host must own virtual consumption and production meters")
)
