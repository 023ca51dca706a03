package search

import (
	"context"
	"slices"
	"strings"
	"sync"
)

// ScanIndex is an in-memory index that matches terms as substrings. It
// needs no storage and serves as the fallback when the SQLite index is
// unavailable.
type ScanIndex struct {
	mu   sync.RWMutex
	docs []Document
}

// NewScanIndex returns an empty ScanIndex.
func NewScanIndex() *ScanIndex {
	return &ScanIndex{}
}

func (s *ScanIndex) Rebuild(_ context.Context, docs []Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs = slices.Clone(docs)
	return nil
}

// Search ranks documents by how often the terms occur, with title matches
// counting double.
func (s *ScanIndex) Search(ctx context.Context, query string, limit int) ([]Hit, error) {
	terms := Terms(query)
	if len(terms) == 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var hits []Hit
	for i, d := range s.docs {
		if i%256 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		title := strings.ToLower(d.Title)
		body := strings.ToLower(d.Body)

		score := 0.0
		matched := true
		for _, t := range terms {
			n := 2*strings.Count(title, t) + strings.Count(body, t)
			if n == 0 {
				matched = false
				break
			}
			score += float64(n)
		}
		if matched {
			hits = append(hits, Hit{Document: d, Score: score})
		}
	}

	slices.SortStableFunc(hits, func(a, b Hit) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		}
		return 0
	})

	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

func (s *ScanIndex) Close() error {
	return nil
}
