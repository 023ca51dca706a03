package brain

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/ryanlack616/howell-brain/pkg/entity"
	"github.com/ryanlack616/howell-brain/pkg/graph"
	"github.com/ryanlack616/howell-brain/pkg/journal"
	"github.com/ryanlack616/howell-brain/pkg/tier"
	"github.com/ryanlack616/howell-brain/pkg/urgency"
)

// Stage is a step of the bootstrap sequence.
type Stage string

const (
	StageStart        Stage = "START"
	StageLoadEntities Stage = "LOAD_ENTITIES"
	StageReplayLogs   Stage = "REPLAY_LOGS"
	StageMaterialize  Stage = "MATERIALIZE_RELATIONS"
	StageIndex        Stage = "INDEX"
	StageEvictTiers   Stage = "EVICT_TIERS"
	StageScoreUrgency Stage = "SCORE_URGENCY"
	StageIntegrity    Stage = "INTEGRITY"
	StageReady        Stage = "READY"
)

// Warning is a problem that did not stop bootstrap.
type Warning struct {
	Stage   Stage  `json:"stage"`
	Message string `json:"message"`
}

// Context is the memory handed to the agent at the start of a session.
type Context struct {
	Machine   string         `json:"machine"`
	Stage     Stage          `json:"stage"`
	Entities  []entity.Ref   `json:"entities"`
	Relations []graph.Triple `json:"relations"`
	Hot       []tier.Session `json:"hot_memory"`
	Pinned    []tier.Pin     `json:"pinned_memory"`
	Urgency   urgency.Result `json:"urgency"`
	Evicted   int            `json:"evicted"`
	Degraded  bool           `json:"degraded"`
	Warnings  []Warning      `json:"warnings"`
	BootedAt  time.Time      `json:"booted_at"`
}

// run carries state between the stages of one bootstrap.
type run struct {
	out      *Context
	folder   *graph.Folder
	replayed []journal.Entry
	snapshot *urgency.Snapshot
}

func (r *run) warn(stage Stage, format string, args ...any) {
	r.out.Warnings = append(r.out.Warnings, Warning{Stage: stage, Message: fmt.Sprintf(format, args...)})
}

// Bootstrap loads every store and returns the agent's starting context.
// Every stage failure becomes a warning on the result, except failing to
// open the entity store, which is returned as an error. Calling Bootstrap
// again rebuilds everything from disk, which is how files delivered by the
// sync tool are picked up.
//
// Cancellation is honoured between stages. A stage that has started runs to
// completion.
func (b *Brain) Bootstrap(ctx context.Context) (*Context, error) {
	ctx, span := b.tracer.Start(ctx, "bootstrap")
	defer span.End()

	b.mu.Lock()
	defer b.mu.Unlock()

	r := &run{out: &Context{
		Machine:  b.machine,
		Stage:    StageStart,
		Warnings: slices.Clone(b.setupWarnings),
		BootedAt: b.now().UTC(),
	}}
	if b.folder == nil {
		b.folder = graph.NewFolder(b.skew)
	}

	if err := b.stage(ctx, StageLoadEntities, func(context.Context) error { return b.loadEntities(r) }); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	stages := []struct {
		stage Stage
		fn    func(context.Context, *run) error
	}{
		{StageReplayLogs, b.replayLogs},
		{StageMaterialize, b.materialize},
		{StageIndex, b.indexStage},
		{StageEvictTiers, b.evictTiers},
		{StageScoreUrgency, b.scoreUrgency},
		{StageIntegrity, b.integrityStage},
	}
	for _, s := range stages {
		if err := ctx.Err(); err != nil {
			r.warn(s.stage, "bootstrap cancelled before %s", s.stage)
			b.last = r.out
			return r.out, err
		}
		if err := b.stage(ctx, s.stage, func(sctx context.Context) error { return s.fn(sctx, r) }); err != nil {
			r.warn(s.stage, "%v", err)
			b.logger.Warn("bootstrap stage failed", "stage", s.stage, "error", err)
		}
	}

	b.fillContext(r)
	span.SetAttributes(
		attribute.Int("howell.entities", len(r.out.Entities)),
		attribute.Int("howell.relations", len(r.out.Relations)),
		attribute.Int("howell.warnings", len(r.out.Warnings)),
	)
	b.logger.Info("bootstrap complete",
		"machine", b.machine,
		"entities", len(r.out.Entities),
		"relations", len(r.out.Relations),
		"urgency", r.out.Urgency.Level,
		"warnings", len(r.out.Warnings),
		"degraded", r.out.Degraded,
	)
	b.last = r.out
	return r.out, nil
}

// Reload rebuilds all in-memory state from disk.
func (b *Brain) Reload(ctx context.Context) error {
	_, err := b.Bootstrap(ctx)
	return err
}

// Last returns the result of the most recent bootstrap, or nil.
func (b *Brain) Last() *Context {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.last
}

// stage runs fn inside a span. The stage itself does not observe
// cancellation of ctx.
func (b *Brain) stage(ctx context.Context, s Stage, fn func(context.Context) error) error {
	ctx, span := b.tracer.Start(ctx, string(s))
	defer span.End()

	err := fn(context.WithoutCancel(ctx))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (b *Brain) loadEntities(r *run) error {
	r.out.Stage = StageLoadEntities

	if b.entities == nil {
		store, err := entity.Open(b.layout.Entities, entity.Options{
			AutoCreate: true,
			Machine:    b.machine,
			Logger:     b.logger,
			Now:        b.now,
		})
		if err != nil {
			return err
		}
		b.entities = store
	} else if err := b.entities.Reload(); err != nil {
		return err
	}

	for _, p := range b.entities.Problems() {
		r.warn(StageLoadEntities, "unreadable entity file %s: %v", p.Path, p.Err)
	}
	return nil
}

// logDir replays a log directory without a writable local journal.
type logDir string

func (d logDir) ReplayAll() ([]journal.Entry, error) {
	return journal.ReplayDir(string(d))
}

func (b *Brain) replayLogs(ctx context.Context, r *run) error {
	r.out.Stage = StageReplayLogs

	if b.journal == nil {
		j, err := journal.Open(b.layout.Logs, b.machine, journal.Options{Logger: b.logger, Now: b.now})
		if err != nil {
			r.warn(StageReplayLogs, "local journal unavailable, graph edits are disabled: %v", err)
		} else {
			b.journal = j
			if torn := j.TornBytes(); torn > 0 {
				r.warn(StageReplayLogs, "repaired torn journal tail (%d bytes dropped)", torn)
			}
		}
	}

	var src graph.Source = logDir(b.layout.Logs)
	if b.journal != nil {
		src = b.journal
	}

	folder, entries, err := graph.Materializer{Source: src, Skew: b.skew}.Replay(ctx)
	if err != nil {
		return fmt.Errorf("replaying journals: %w", err)
	}
	r.folder = folder
	r.replayed = entries

	var (
		failed   int
		firstErr error
	)
	for _, e := range entries {
		if err := b.applyEntity(e); err != nil {
			failed++
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d journal entries could not be applied to the entity store: %w", failed, firstErr)
	}
	return nil
}

// applyEntity merges an add_entity or add_observation entry, possibly from
// the other machine, into the entity store. Merging is idempotent.
func (b *Brain) applyEntity(e journal.Entry) error {
	switch e.Op {
	case journal.OpAddEntity:
		p, err := e.Entity()
		if err != nil {
			return err
		}
		_, err = b.entities.Merge(entity.Entity{Name: p.Name, Kind: p.Kind, Machine: e.Machine, CreatedAt: e.Timestamp})
		return err

	case journal.OpAddObservation:
		p, err := e.Observation()
		if err != nil {
			return err
		}
		_, err = b.entities.Merge(entity.Entity{
			Name:         p.Entity,
			Observations: []string{p.Text},
			Machine:      e.Machine,
			CreatedAt:    e.Timestamp,
		})
		return err
	}
	return nil
}

func (b *Brain) materialize(_ context.Context, r *run) error {
	r.out.Stage = StageMaterialize

	if r.folder != nil {
		b.folder = r.folder
		b.degraded = false
		if err := graph.SaveCache(b.layout.RelationsCache, b.folder.Set()); err != nil {
			return err
		}
		return nil
	}

	b.degraded = true
	set, generated, err := graph.LoadCache(b.layout.RelationsCache)
	if err != nil {
		b.folder = graph.NewFolder(b.skew)
		if errors.Is(err, os.ErrNotExist) {
			return errors.New("no relations cache to fall back on, serving no relations")
		}
		return fmt.Errorf("relations cache unusable, serving no relations: %w", err)
	}
	b.folder = graph.Resume(set, b.skew)
	r.warn(StageMaterialize, "serving %d relations from the cache generated at %s", set.Len(), generated.Format(time.RFC3339))
	return nil
}

func (b *Brain) indexStage(ctx context.Context, _ *run) error {
	if err := b.rebuildIndex(ctx); err != nil {
		b.dirty = true
		return err
	}
	return nil
}

func (b *Brain) evictTiers(ctx context.Context, r *run) error {
	r.out.Stage = StageEvictTiers

	if b.tiers == nil {
		m, err := tier.Open(b.layout.Memory, tier.Options{Machine: b.machine, Logger: b.logger, Now: b.now})
		if err != nil {
			return err
		}
		b.tiers = m
	}

	evicted, err := b.tiers.EvictIfOverCapacity(ctx, b.hotCapacity)
	r.out.Evicted = len(evicted)
	if len(evicted) > 0 {
		b.dirty = true
	}
	return err
}

func (b *Brain) scoreUrgency(_ context.Context, r *run) error {
	r.out.Stage = StageScoreUrgency

	res, snap, err := b.score()
	r.snapshot = snap
	if err != nil {
		return err
	}
	r.out.Urgency = res
	return nil
}

func (b *Brain) integrityStage(_ context.Context, r *run) error {
	r.out.Stage = StageIntegrity
	r.out.Warnings = append(r.out.Warnings, b.integrity(r.snapshot)...)
	return nil
}

// fillContext fills the parts of the context read back from the stores.
func (b *Brain) fillContext(r *run) {
	r.out.Stage = StageReady
	r.out.Degraded = b.degraded
	r.out.Entities = slices.Collect(b.entities.List())
	r.out.Relations = b.folder.Set().Triples()

	if b.tiers == nil {
		return
	}
	hot, err := b.tiers.Read(tier.Hot)
	if err != nil {
		r.warn(StageReady, "reading hot memory: %v", err)
	}
	core, err := b.tiers.Read(tier.Core)
	if err != nil {
		r.warn(StageReady, "reading pinned memory: %v", err)
	}
	r.out.Hot = hot.Hot
	r.out.Pinned = core.Core
}
