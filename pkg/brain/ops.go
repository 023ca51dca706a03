package brain

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/ryanlack616/howell-brain/pkg/entity"
	"github.com/ryanlack616/howell-brain/pkg/graph"
	"github.com/ryanlack616/howell-brain/pkg/journal"
	"github.com/ryanlack616/howell-brain/pkg/tier"
)

// ObservationResult reports the outcome of AddObservation.
type ObservationResult struct {
	Entity  entity.Ref `json:"entity"`
	Added   bool       `json:"added"`
	Created bool       `json:"created"`
}

// RelationResult reports the outcome of AddRelation or RemoveRelation.
// Changed is false when the call was a no-op.
type RelationResult struct {
	Relation graph.Triple `json:"relation"`
	Changed  bool         `json:"changed"`
}

// SessionResult reports the outcome of RecordSessionEnd.
type SessionResult struct {
	Session  tier.Session    `json:"session"`
	Pin      *tier.PinResult `json:"pin,omitempty"`
	Evicted  []tier.Eviction `json:"evicted,omitempty"`
	Warnings []Warning       `json:"warnings,omitempty"`
}

func required(field, v string) (string, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return "", fmt.Errorf("%w: %s", ErrEmptyField, field)
	}
	return v, nil
}

// AddEntity creates the entity if absent. An existing entity keeps its
// kind unless it was created implicitly with an unknown kind.
func (b *Brain) AddEntity(name, kind string) (entity.Ref, error) {
	name, err := required("name", name)
	if err != nil {
		return entity.Ref{}, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.ready(); err != nil {
		return entity.Ref{}, err
	}
	ref, _, err := b.ensureEntity(name, kind)
	return ref, err
}

// AddObservation records a fact about an entity, creating the entity with
// kind when it does not exist. An observation already present is not
// added again.
func (b *Brain) AddObservation(name, kind, text string) (ObservationResult, error) {
	name, err := required("entity", name)
	if err != nil {
		return ObservationResult{}, err
	}
	text, err = required("text", text)
	if err != nil {
		return ObservationResult{}, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.ready(); err != nil {
		return ObservationResult{}, err
	}

	ref, created, err := b.ensureEntity(name, kind)
	if err != nil {
		return ObservationResult{}, err
	}
	res := ObservationResult{Entity: ref, Created: created}

	if e, ok := b.entities.Get(name); ok && slices.Contains(e.Observations, text) {
		return res, nil
	}

	entry, err := journal.AddObservation(name, text)
	if err != nil {
		return res, err
	}
	if _, err := b.append(entry); err != nil {
		return res, err
	}
	if res.Added, err = b.entities.AddObservation(name, text); err != nil {
		return res, err
	}
	b.dirty = true
	return res, nil
}

// ensureEntity journals and stores an entity unless an equivalent one
// exists. Callers hold mu.
func (b *Brain) ensureEntity(name, kind string) (entity.Ref, bool, error) {
	kind = strings.TrimSpace(kind)
	if kind == "" {
		kind = entity.UnknownKind
	}

	existing, ok := b.entities.Get(name)
	if ok && (existing.Kind != entity.UnknownKind || kind == entity.UnknownKind) {
		return entity.Ref{Name: existing.Name, Kind: existing.Kind}, false, nil
	}

	entry, err := journal.AddEntity(name, kind)
	if err != nil {
		return entity.Ref{}, false, err
	}
	if _, err := b.append(entry); err != nil {
		return entity.Ref{}, false, err
	}
	ref, err := b.entities.UpsertEntity(name, kind)
	if err != nil {
		return entity.Ref{}, false, err
	}
	b.dirty = true
	return ref, !ok, nil
}

// AddRelation records a directed relation. Missing endpoints are created
// with an unknown kind. Adding a live relation is a no-op.
func (b *Brain) AddRelation(from, relType, to string) (RelationResult, error) {
	t, err := triple(from, relType, to)
	if err != nil {
		return RelationResult{}, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.ready(); err != nil {
		return RelationResult{}, err
	}

	res := RelationResult{Relation: t}
	for _, name := range []string{t.From, t.To} {
		if _, _, err := b.ensureEntity(name, ""); err != nil {
			return res, err
		}
	}
	if b.folder.Set().Has(t) {
		return res, nil
	}

	entry, err := journal.AddRelation(t.From, t.Type, t.To)
	if err != nil {
		return res, err
	}
	appended, err := b.append(entry)
	if err != nil {
		return res, err
	}
	res.Changed = b.folder.Apply(appended)
	b.saveCache()
	return res, nil
}

// RemoveRelation deletes a live relation. Removing an absent relation is a
// no-op, not an error.
func (b *Brain) RemoveRelation(from, relType, to string) (RelationResult, error) {
	t, err := triple(from, relType, to)
	if err != nil {
		return RelationResult{}, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.ready(); err != nil {
		return RelationResult{}, err
	}

	res := RelationResult{Relation: t}
	if !b.folder.Set().Has(t) {
		return res, nil
	}

	entry, err := journal.RemoveRelation(t.From, t.Type, t.To)
	if err != nil {
		return res, err
	}
	appended, err := b.append(entry)
	if err != nil {
		return res, err
	}
	res.Changed = b.folder.Apply(appended)
	b.saveCache()
	return res, nil
}

// Relations returns the live relations, optionally only those touching one
// entity.
func (b *Brain) Relations(name string) ([]graph.Triple, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if err := b.ready(); err != nil {
		return nil, err
	}
	if name == "" {
		return b.folder.Set().Triples(), nil
	}
	return b.folder.Set().Touching(name), nil
}

// Entity returns one entity with its observations.
func (b *Brain) Entity(name string) (entity.Entity, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if err := b.ready(); err != nil {
		return entity.Entity{}, err
	}
	e, ok := b.entities.Get(name)
	if !ok {
		return entity.Entity{}, &entity.NotFoundError{Name: name}
	}
	return e, nil
}

func triple(from, relType, to string) (graph.Triple, error) {
	var err error
	t := graph.Triple{}
	if t.From, err = required("from", from); err != nil {
		return t, err
	}
	if t.Type, err = required("type", relType); err != nil {
		return t, err
	}
	if t.To, err = required("to", to); err != nil {
		return t, err
	}
	return t, nil
}

// append writes entry to this machine's journal and queues its event.
// Callers hold mu.
func (b *Brain) append(entry journal.Entry) (journal.Entry, error) {
	if b.journal == nil {
		return entry, ErrJournalUnavailable
	}
	entry.Machine = b.machine

	appended, err := b.journal.Append(entry)
	if err != nil {
		return appended, err
	}
	if b.events != nil {
		b.events.Enqueue(appended)
	}
	return appended, nil
}

// saveCache refreshes the fallback relations cache. Callers hold mu.
func (b *Brain) saveCache() {
	if b.degraded {
		// the live set is incomplete until the journals read cleanly again
		return
	}
	if err := graph.SaveCache(b.layout.RelationsCache, b.folder.Set()); err != nil {
		b.logger.Warn("updating relations cache failed", "error", err)
	}
}

// RecordSessionEnd stores the narrative of a finished session at the head
// of HOT, pins it when asked, then evicts HOT down to capacity. The session
// is kept even if eviction fails; the failure is reported as a warning.
func (b *Brain) RecordSessionEnd(ctx context.Context, in tier.SessionInput) (*SessionResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.ready(); err != nil {
		return nil, err
	}
	if b.tiers == nil {
		return nil, errors.New("memory tiers unavailable")
	}

	sess, pin, err := b.tiers.RecordSession(ctx, in)
	if err != nil {
		return nil, err
	}
	b.dirty = true
	res := &SessionResult{Session: sess, Pin: pin}

	evicted, err := b.tiers.EvictIfOverCapacity(context.WithoutCancel(ctx), b.hotCapacity)
	res.Evicted = evicted
	if err != nil {
		b.logger.Warn("eviction after session failed", "error", err)
		res.Warnings = append(res.Warnings, Warning{Stage: StageEvictTiers, Message: err.Error()})
	}
	return res, nil
}

// PinMemory keeps a memory in CORE indefinitely. Pinning a title that is
// already pinned is a no-op reported through AlreadyPinned.
func (b *Brain) PinMemory(title, text, reason string) (tier.PinResult, error) {
	title, err := required("title", title)
	if err != nil {
		return tier.PinResult{}, err
	}
	text, err = required("text", text)
	if err != nil {
		return tier.PinResult{}, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.ready(); err != nil {
		return tier.PinResult{}, err
	}
	if b.tiers == nil {
		return tier.PinResult{}, errors.New("memory tiers unavailable")
	}

	res, err := b.tiers.Pin(title, text, reason)
	if err != nil {
		return res, err
	}
	if !res.AlreadyPinned {
		b.dirty = true
	}
	return res, nil
}

// ReadTier returns the records of one tier.
func (b *Brain) ReadTier(t tier.Tier) (tier.Contents, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if err := b.ready(); err != nil {
		return tier.Contents{}, err
	}
	if b.tiers == nil {
		return tier.Contents{}, errors.New("memory tiers unavailable")
	}
	return b.tiers.Read(t)
}
