package viewstate

import (
	"encoding/json"
	"sort"
)

// LayerSet is a set of layer identifiers. The zero value is an empty set.
// Identifiers are stored verbatim; membership is never validated here.
type LayerSet struct {
	m map[string]struct{}
}

// NewLayerSet builds a set from ids, collapsing duplicates.
func NewLayerSet(ids ...string) LayerSet {
	s := LayerSet{m: make(map[string]struct{}, len(ids))}
	for _, id := range ids {
		s.m[id] = struct{}{}
	}
	return s
}

// Has reports whether id is in the set.
func (s LayerSet) Has(id string) bool {
	_, ok := s.m[id]
	return ok
}

// Len returns the number of identifiers.
func (s LayerSet) Len() int { return len(s.m) }

// With returns a copy of the set including id.
func (s LayerSet) With(id string) LayerSet {
	out := s.clone()
	out.m[id] = struct{}{}
	return out
}

// Without returns a copy of the set excluding id.
func (s LayerSet) Without(id string) LayerSet {
	out := s.clone()
	delete(out.m, id)
	return out
}

// Equal reports whether both sets hold the same identifiers.
func (s LayerSet) Equal(o LayerSet) bool {
	if s.Len() != o.Len() {
		return false
	}
	for id := range s.m {
		if !o.Has(id) {
			return false
		}
	}
	return true
}

// Slice returns the identifiers in sorted order.
func (s LayerSet) Slice() []string {
	out := make([]string, 0, len(s.m))
	for id := range s.m {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (s LayerSet) clone() LayerSet {
	out := LayerSet{m: make(map[string]struct{}, len(s.m)+1)}
	for id := range s.m {
		out.m[id] = struct{}{}
	}
	return out
}

// MarshalJSON renders the set as a sorted array.
func (s LayerSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Slice())
}

// UnmarshalJSON reads an array of identifiers; duplicates collapse.
func (s *LayerSet) UnmarshalJSON(data []byte) error {
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return err
	}
	*s = NewLayerSet(ids...)
	return nil
}
