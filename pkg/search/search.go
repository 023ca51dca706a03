// Package search indexes the memory stores for free-text lookup.
//
// The index is derived data: it is rebuilt from the entity store, the
// memory tiers and the procedure notes, and is never synced between
// machines.
package search

import (
	"context"
	"slices"
	"strings"
)

// Kind is the type of record a document was built from.
type Kind string

const (
	KindEntity    Kind = "entity"
	KindSession   Kind = "session"
	KindWarm      Kind = "warm"
	KindPin       Kind = "pin"
	KindProcedure Kind = "procedure"
)

// Document is one searchable record.
type Document struct {
	ID     string `json:"id"`
	Kind   Kind   `json:"kind"`
	Title  string `json:"title"`
	Body   string `json:"body"`
	Source string `json:"source,omitempty"`
	Tier   string `json:"tier,omitempty"`
}

// Hit is a matched document.
type Hit struct {
	Document
	Score    float64  `json:"score"`
	Snippets []string `json:"snippets,omitempty"`
}

// Index is a search backend.
type Index interface {
	// Rebuild replaces the whole index with docs.
	Rebuild(ctx context.Context, docs []Document) error

	// Search returns at most limit hits, best first. Every query term must
	// appear in a hit, matched case-insensitively as a word prefix or
	// substring depending on the backend.
	Search(ctx context.Context, query string, limit int) ([]Hit, error)

	Close() error
}

// Results groups hits the way they are presented to the agent.
type Results struct {
	Query          string `json:"query"`
	KnowledgeGraph []Hit  `json:"knowledge_graph"`
	Sessions       []Hit  `json:"sessions"`
	Pinned         []Hit  `json:"pinned"`
	Procedures     []Hit  `json:"procedures"`
}

// Total is the number of grouped hits.
func (r Results) Total() int {
	return len(r.KnowledgeGraph) + len(r.Sessions) + len(r.Pinned) + len(r.Procedures)
}

// Group sorts hits into result groups, preserving rank order, and attaches
// the matching lines of each body as snippets.
func Group(query string, hits []Hit) Results {
	res := Results{
		Query:          query,
		KnowledgeGraph: []Hit{},
		Sessions:       []Hit{},
		Pinned:         []Hit{},
		Procedures:     []Hit{},
	}
	terms := Terms(query)

	for _, h := range hits {
		if len(h.Snippets) == 0 {
			h.Snippets = Snippets(h.Body, terms, 3)
		}
		switch h.Kind {
		case KindEntity:
			res.KnowledgeGraph = append(res.KnowledgeGraph, h)
		case KindSession, KindWarm:
			res.Sessions = append(res.Sessions, h)
		case KindPin:
			res.Pinned = append(res.Pinned, h)
		case KindProcedure:
			res.Procedures = append(res.Procedures, h)
		}
	}
	return res
}

// Terms splits a query into lowercased words.
func Terms(query string) []string {
	fields := strings.Fields(strings.ToLower(query))
	out := fields[:0]
	for _, f := range fields {
		if f = strings.Trim(f, `"'`); f != "" && !slices.Contains(out, f) {
			out = append(out, f)
		}
	}
	return out
}

// Snippets returns up to max lines of body that contain any of terms.
func Snippets(body string, terms []string, max int) []string {
	var out []string
	for line := range strings.Lines(body) {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		lower := strings.ToLower(line)
		if slices.ContainsFunc(terms, func(t string) bool { return strings.Contains(lower, t) }) {
			out = append(out, line)
			if len(out) == max {
				break
			}
		}
	}
	return out
}
