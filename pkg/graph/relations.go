package graph

import (
	"cmp"
	"slices"
)

// Triple is a directed, typed edge between two entities.
type Triple struct {
	From string `json:"from"`
	Type string `json:"type"`
	To   string `json:"to"`
}

func compareTriples(a, b Triple) int {
	return cmp.Or(
		cmp.Compare(a.From, b.From),
		cmp.Compare(a.Type, b.Type),
		cmp.Compare(a.To, b.To),
	)
}

// RelationSet is a set of triples. The zero value is not usable; use
// NewRelationSet.
type RelationSet struct {
	triples map[Triple]struct{}
}

// NewRelationSet returns a set holding the given triples.
func NewRelationSet(triples ...Triple) *RelationSet {
	s := &RelationSet{triples: make(map[Triple]struct{}, len(triples))}
	for _, t := range triples {
		s.Add(t)
	}
	return s
}

// Add inserts t and reports whether it was new.
func (s *RelationSet) Add(t Triple) bool {
	if _, ok := s.triples[t]; ok {
		return false
	}
	s.triples[t] = struct{}{}
	return true
}

// Remove deletes t and reports whether it was present.
func (s *RelationSet) Remove(t Triple) bool {
	if _, ok := s.triples[t]; !ok {
		return false
	}
	delete(s.triples, t)
	return true
}

// Has reports whether t is in the set.
func (s *RelationSet) Has(t Triple) bool {
	_, ok := s.triples[t]
	return ok
}

// Len returns the number of triples.
func (s *RelationSet) Len() int {
	return len(s.triples)
}

// Triples returns the triples sorted by from, type, to.
func (s *RelationSet) Triples() []Triple {
	out := make([]Triple, 0, len(s.triples))
	for t := range s.triples {
		out = append(out, t)
	}
	slices.SortFunc(out, compareTriples)
	return out
}

// Equal reports whether both sets hold the same triples.
func (s *RelationSet) Equal(other *RelationSet) bool {
	if s.Len() != other.Len() {
		return false
	}
	for t := range s.triples {
		if !other.Has(t) {
			return false
		}
	}
	return true
}

// Touching returns the sorted triples that have name as either endpoint.
func (s *RelationSet) Touching(name string) []Triple {
	var out []Triple
	for t := range s.triples {
		if t.From == name || t.To == name {
			out = append(out, t)
		}
	}
	slices.SortFunc(out, compareTriples)
	return out
}

// Dangling returns the sorted triples with an endpoint for which exists
// reports false.
func Dangling(s *RelationSet, exists func(name string) bool) []Triple {
	var out []Triple
	for t := range s.triples {
		if !exists(t.From) || !exists(t.To) {
			out = append(out, t)
		}
	}
	slices.SortFunc(out, compareTriples)
	return out
}
