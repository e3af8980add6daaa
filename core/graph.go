package core

import "fmt"

// DefaultAgentName is the node every loaded graph must contain.
const DefaultAgentName = "default"

// NeighborLink is a directed, belief-based edge. The estimates are owned by
// the agent that declared the link and are never checked against the target.
type NeighborLink struct {
	Name        string `json:"name" yaml:"name"`
	Expertise   Vector `json:"expertise,omitempty" yaml:"expertise,omitempty"`
	Sociability Vector `json:"sociability,omitempty" yaml:"sociability,omitempty"`
}

// Clone returns a deep copy of the link.
func (n NeighborLink) Clone() NeighborLink {
	return NeighborLink{Name: n.Name, Expertise: n.Expertise.Clone(), Sociability: n.Sociability.Clone()}
}

// NodeSpec carries the construction parameters of one agent.
type NodeSpec struct {
	Name      string         `json:"name" yaml:"name"`
	Expertise Vector         `json:"expertise,omitempty" yaml:"expertise,omitempty"`
	Needs     Vector         `json:"needs,omitempty" yaml:"needs,omitempty"`
	Neighbors []NeighborLink `json:"neighbors,omitempty" yaml:"neighbors,omitempty"`
}

// Validate checks the node name and the length of every vector it carries.
func (s NodeSpec) Validate() error {
	if s.Name == "" {
		return &ValidationError{Field: "name", Reason: "node name is required"}
	}
	if err := s.Expertise.Validate(s.Name + ".expertise"); err != nil {
		return err
	}
	if err := s.Needs.Validate(s.Name + ".needs"); err != nil {
		return err
	}
	for i, n := range s.Neighbors {
		if n.Name == "" {
			return &ValidationError{Field: fmt.Sprintf("%s.neighbors[%d].name", s.Name, i), Reason: "neighbor name is required"}
		}
		if err := n.Expertise.Validate(fmt.Sprintf("%s.neighbors[%d].expertise", s.Name, i)); err != nil {
			return err
		}
		if err := n.Sociability.Validate(fmt.Sprintf("%s.neighbors[%d].sociability", s.Name, i)); err != nil {
			return err
		}
	}
	return nil
}

// Clone returns a deep copy so the receiver of a spec owns its profile.
func (s NodeSpec) Clone() NodeSpec {
	out := NodeSpec{Name: s.Name, Expertise: s.Expertise.Clone(), Needs: s.Needs.Clone()}
	if s.Neighbors != nil {
		out.Neighbors = make([]NeighborLink, len(s.Neighbors))
		for i, n := range s.Neighbors {
			out.Neighbors[i] = n.Clone()
		}
	}
	return out
}
