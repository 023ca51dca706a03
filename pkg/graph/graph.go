// Package graph derives the current relation set of the knowledge graph by
// folding the merged per-machine journals.
//
// The relation set is never stored authoritatively. It is recomputed from
// the journals on every bootstrap, and the cached copy on disk is only a
// fallback for when a journal cannot be read.
package graph

import (
	"context"
	"time"

	"github.com/ryanlack616/howell-brain/pkg/journal"
)

// DefaultSkew is the window within which a removal beats a later add of the
// same triple.
const DefaultSkew = time.Second

// Source yields the merged, ordered journal entries.
type Source interface {
	ReplayAll() ([]journal.Entry, error)
}

// Folder applies relation entries one at a time, tracking tombstones so
// that later entries honour earlier removals.
type Folder struct {
	set        *RelationSet
	tombstones map[Triple]time.Time
	skew       time.Duration
}

// NewFolder returns a Folder over an empty set.
func NewFolder(skew time.Duration) *Folder {
	return &Folder{
		set:        NewRelationSet(),
		tombstones: make(map[Triple]time.Time),
		skew:       skew,
	}
}

// Apply folds one entry and reports whether the live set changed. A remove
// records a tombstone at the latest removal time. An add whose timestamp is
// no more than skew after a tombstone for the same triple is dropped, so a
// removal wins over an add made at effectively the same moment on the other
// machine. Entries other than relation ops are ignored.
func (f *Folder) Apply(e journal.Entry) bool {
	if e.Op != journal.OpAddRelation && e.Op != journal.OpRemoveRelation {
		return false
	}
	r, err := e.Relation()
	if err != nil {
		return false
	}
	t := Triple(r)

	if e.Op == journal.OpRemoveRelation {
		if prev, ok := f.tombstones[t]; !ok || e.Timestamp.After(prev) {
			f.tombstones[t] = e.Timestamp
		}
		return f.set.Remove(t)
	}

	if tomb, ok := f.tombstones[t]; ok && !e.Timestamp.After(tomb.Add(f.skew)) {
		return false
	}
	return f.set.Add(t)
}

// Resume returns a Folder continuing from set, such as one loaded from the
// cache. It has no tombstones.
func Resume(set *RelationSet, skew time.Duration) *Folder {
	f := NewFolder(skew)
	for _, t := range set.Triples() {
		f.set.Add(t)
	}
	return f
}

// Set is the live relation set. It is shared with the Folder.
func (f *Folder) Set() *RelationSet {
	return f.set
}

// Fold replays entries, which must already be in merge order, into a
// relation set.
func Fold(entries []journal.Entry, skew time.Duration) *RelationSet {
	f := NewFolder(skew)
	for _, e := range entries {
		f.Apply(e)
	}
	return f.Set()
}

// Materializer computes the relation set from a journal source.
type Materializer struct {
	Source Source
	Skew   time.Duration
}

// Materialize replays the source and folds it. A journal read failure,
// including a CorruptLogError, is returned unchanged.
func (m Materializer) Materialize(ctx context.Context) (*RelationSet, error) {
	f, _, err := m.Replay(ctx)
	if err != nil {
		return nil, err
	}
	return f.Set(), nil
}

// Replay is Materialize that also returns the Folder, for applying later
// local entries, and the merged entries it folded.
func (m Materializer) Replay(ctx context.Context) (*Folder, []journal.Entry, error) {
	entries, err := m.Source.ReplayAll()
	if err != nil {
		return nil, nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	f := NewFolder(m.Skew)
	for _, e := range entries {
		f.Apply(e)
	}
	return f, entries, nil
}
