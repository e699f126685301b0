package masterdata

import "sort"

// Meter identifies a single metering point inside the collective.
type Meter struct {
	ExternalID   string
	Name         string
	MemberID     string
	IsProduction bool
	IsVirtual    bool
}

// IsPhysical reports whether the meter carries billable interval data.
func (m Meter) IsPhysical() bool { return !m.IsVirtual }

// Member is one party of the collective, host or not.
type Member struct {
	ID        string
	FirstName string
	LastName  string
	Street    string
	Zip       string
	City      string
	Canton    string
	IsHost    bool
	Meters    []Meter
}

// FullName returns the display name used on bills.
func (m Member) FullName() string { return m.FirstName + " " + m.LastName }

// IsProducer reports whether the member owns at least one physical production meter.
func (m Member) IsProducer() bool {
	for _, meter := range m.Meters {
		if meter.IsProduction && meter.IsPhysical() {
			return true
		}
	}
	return false
}

// Graph is the validated member/meter topology of one collective.
type Graph struct {
	members       []Member
	memberByID    map[string]*Member
	meterByExtID  map[string]Meter
	ownerByMeter  map[string]string
	host          *Member
	physicalOrder []Meter
}

// NewGraph validates the topology and builds the lookup indexes.
// Exactly the invariants the pipeline relies on are enforced here:
// unique member and meter ids, and one host owning both virtual meters.
func NewGraph(members []Member) (*Graph, error) {
	if len(members) == 0 {
		return nil, ErrNoMembers
	}

	g := &Graph{
		members:      members,
		memberByID:   make(map[string]*Member, len(members)),
		meterByExtID: make(map[string]Meter),
		ownerByMeter: make(map[string]string),
	}

	for i := range members {
		member := &g.members[i]
		if member.ID == "" {
			return nil, ErrEmptyMemberID
		}
		if _, exists := g.memberByID[member.ID]; exists {
			return nil, ErrDuplicateMemberID
		}
		g.memberByID[member.ID] = member

		virtualConsumption := false
		virtualProduction := false
		for _, meter := range member.Meters {
			if meter.ExternalID == "" {
				return nil, ErrEmptyMeterID
			}
			if _, exists := g.meterByExtID[meter.ExternalID]; exists {
				return nil, ErrDuplicateMeterID
			}
			meter.MemberID = member.ID
			g.meterByExtID[meter.ExternalID] = meter
			g.ownerByMeter[meter.ExternalID] = member.ID
			if meter.IsPhysical() {
				g.physicalOrder = append(g.physicalOrder, meter)
			}
			if meter.IsVirtual && meter.IsProduction {
				virtualProduction = true
			}
			if meter.IsVirtual && !meter.IsProduction {
				virtualConsumption = true
			}
		}

		if member.IsHost {
			if g.host != nil {
				return nil, ErrMultipleHosts
			}
			if !virtualConsumption || !virtualProduction {
				return nil, ErrHostMissingVirtualMeters
			}
			g.host = member
		}
	}

	if g.host == nil {
		return nil, ErrNoHost
	}

	sort.Slice(g.physicalOrder, func(i, j int) bool {
		return g.physicalOrder[i].ExternalID < g.physicalOrder[j].ExternalID
	})
	return g, nil
}

// Members returns all members in declaration order.
func (g *Graph) Members() []Member { return g.members }

// Host returns the hosting member.
func (g *Graph) Host() Member { return *g.host }

// MemberByID looks a member up by id.
func (g *Graph) MemberByID(id string) (Member, bool) {
	member, ok := g.memberByID[id]
	if !ok {
		return Member{}, false
	}
	return *member, true
}

// MeterByExternalID looks a meter up by its external id.
func (g *Graph) MeterByExternalID(externalID string) (Meter, bool) {
	meter, ok := g.meterByExtID[externalID]
	return meter, ok
}

// OwnerOf returns the id of the member owning the meter.
func (g *Graph) OwnerOf(meterExternalID string) (string, bool) {
	id, ok := g.ownerByMeter[meterExternalID]
	return id, ok
}

// PhysicalMeters returns all non-virtual meters sorted by external id.
func (g *Graph) PhysicalMeters() []Meter {
	out := make([]Meter, len(g.physicalOrder))
	copy(out, g.physicalOrder)
	return out
}

// VirtualMeters returns the grid-level aggregate meters.
func (g *Graph) VirtualMeters() []Meter {
	var out []Meter
	for _, member := range g.members {
		for _, meter := range member.Meters {
			if meter.IsVirtual {
				meter.MemberID = member.ID
				out = append(out, meter)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExternalID < out[j].ExternalID })
	return out
}
