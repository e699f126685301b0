package masterdata

import (
	"errors"
	"testing"
)

func validMembers() []Member {
	return []Member{
		{
			ID: "host", FirstName: "Anna", LastName: "Keller", IsHost: true,
			Meters: []Meter{
				{ExternalID: "CH100", Name: "House"},
				{ExternalID: "CH101", Name: "Roof PV", IsProduction: true},
				{ExternalID: "CH900", Name: "Grid in", IsVirtual: true},
				{ExternalID: "CH901", Name: "Grid out", IsVirtual: true, IsProduction: true},
			},
		},
		{
			ID: "tenant", FirstName: "Beat", LastName: "Moser",
			Meters: []Meter{{ExternalID: "CH200", Name: "Flat"}},
		},
	}
}

func TestNewGraph(t *testing.T) {
	graph, err := NewGraph(validMembers())
	if err != nil {
		t.Fatalf("new graph: %v", err)
	}

	if got := graph.Host().ID; got != "host" {
		t.Fatalf("host: got=%s want=host", got)
	}
	if !graph.Host().IsProducer() {
		t.Fatalf("host should be a producer")
	}

	physical := graph.PhysicalMeters()
	if len(physical) != 3 {
		t.Fatalf("physical meter count: got=%d want=3", len(physical))
	}
	for i := 1; i < len(physical); i++ {
		if physical[i-1].ExternalID >= physical[i].ExternalID {
			t.Fatalf("physical meters not sorted: %s >= %s", physical[i-1].ExternalID, physical[i].ExternalID)
		}
	}

	owner, ok := graph.OwnerOf("CH200")
	if !ok || owner != "tenant" {
		t.Fatalf("owner of CH200: got=%s ok=%v", owner, ok)
	}

	virtual := graph.VirtualMeters()
	if len(virtual) != 2 {
		t.Fatalf("virtual meter count: got=%d want=2", len(virtual))
	}
}

func TestNewGraphValidation(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func([]Member) []Member
		wantErr error
	}{
		{"no members", func([]Member) []Member { return nil }, ErrNoMembers},
		{"no host", func(m []Member) []Member { m[0].IsHost = false; return m }, ErrNoHost},
		{"two hosts", func(m []Member) []Member { m[1].IsHost = true; return m }, ErrMultipleHosts},
		{"missing virtual pair", func(m []Member) []Member {
			m[0].Meters = m[0].Meters[:3]
			return m
		}, ErrHostMissingVirtualMeters},
		{"duplicate meter", func(m []Member) []Member {
			m[1].Meters[0].ExternalID = "CH100"
			return m
		}, ErrDuplicateMeterID},
		{"duplicate member", func(m []Member) []Member {
			m[1].ID = "host"
			return m
		}, ErrDuplicateMemberID},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewGraph(tc.mutate(validMembers()))
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("got err=%v want=%v", err, tc.wantErr)
			}
		})
	}
}
