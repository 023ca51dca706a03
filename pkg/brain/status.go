package brain

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/ryanlack616/howell-brain/pkg/graph"
	"github.com/ryanlack616/howell-brain/pkg/journal"
	"github.com/ryanlack616/howell-brain/pkg/tier"
	"github.com/ryanlack616/howell-brain/pkg/urgency"
)

// Consolidation age thresholds for the integrity report.
const (
	consolidationDueAge   = 3 * 24 * time.Hour
	consolidationStaleAge = 5 * 24 * time.Hour

	maxDanglingReported = 10
)

// Status is a point-in-time summary of the memory.
type Status struct {
	Machine     string            `json:"machine"`
	Root        string            `json:"root"`
	Machines    []string          `json:"machines"`
	Counts      urgency.Counts    `json:"counts"`
	Tiers       tier.Stats        `json:"tiers"`
	HotCapacity int               `json:"hot_capacity"`
	Urgency     urgency.Result    `json:"urgency"`
	Snapshot    *urgency.Snapshot `json:"snapshot,omitempty"`
	Degraded    bool              `json:"degraded"`
	Issues      []Warning         `json:"issues"`
}

// Status scores urgency and runs the integrity checks without changing
// anything.
func (b *Brain) Status() (*Status, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if err := b.ready(); err != nil {
		return nil, err
	}

	st := &Status{
		Machine:     b.machine,
		Root:        b.layout.Root,
		HotCapacity: b.hotCapacity,
		Degraded:    b.degraded,
	}

	machines, err := journal.Machines(b.layout.Logs)
	if err != nil {
		return nil, err
	}
	st.Machines = machines

	counts, err := b.counts()
	if err != nil {
		return nil, err
	}
	st.Counts = counts

	if b.tiers != nil {
		if st.Tiers, err = b.tiers.Stats(); err != nil {
			return nil, err
		}
	}

	res, snap, err := b.score()
	if err != nil {
		return nil, err
	}
	st.Urgency = res
	st.Snapshot = snap
	st.Issues = b.integrity(snap)
	return st, nil
}

// HeartbeatResult is the outcome of one heartbeat.
type HeartbeatResult struct {
	Evicted  []tier.Eviction `json:"evicted"`
	Urgency  urgency.Result  `json:"urgency"`
	Issues   []Warning       `json:"issues"`
	Duration time.Duration   `json:"duration"`
}

// Heartbeat re-runs the eviction, scoring and integrity stages of
// bootstrap. Cancellation is honoured between stages.
func (b *Brain) Heartbeat(ctx context.Context) (*HeartbeatResult, error) {
	ctx, span := b.tracer.Start(ctx, "heartbeat")
	defer span.End()

	start := b.now()

	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.ready(); err != nil {
		return nil, err
	}
	if b.tiers == nil {
		return nil, errors.New("memory tiers unavailable")
	}

	res := &HeartbeatResult{}
	var errs []error

	err := b.stage(ctx, StageEvictTiers, func(sctx context.Context) error {
		evicted, err := b.tiers.EvictIfOverCapacity(sctx, b.hotCapacity)
		res.Evicted = evicted
		if len(evicted) > 0 {
			b.dirty = true
		}
		return err
	})
	if err != nil {
		errs = append(errs, fmt.Errorf("evicting: %w", err))
	}
	if err := ctx.Err(); err != nil {
		return res, err
	}

	var snap *urgency.Snapshot
	err = b.stage(ctx, StageScoreUrgency, func(context.Context) error {
		var err error
		res.Urgency, snap, err = b.score()
		return err
	})
	if err != nil {
		errs = append(errs, fmt.Errorf("scoring: %w", err))
	}
	if err := ctx.Err(); err != nil {
		return res, err
	}

	res.Issues = b.integrity(snap)
	res.Duration = b.now().Sub(start)

	b.logger.Info("heartbeat",
		"evicted", len(res.Evicted),
		"urgency", res.Urgency.Level,
		"score", res.Urgency.Score,
		"issues", len(res.Issues),
	)
	return res, errors.Join(errs...)
}

// SaveConsolidationSnapshot records the current counts as the new urgency
// baseline. Call it only after a consolidation pass has been completed.
func (b *Brain) SaveConsolidationSnapshot(note string) (urgency.Snapshot, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.ready(); err != nil {
		return urgency.Snapshot{}, err
	}

	counts, err := b.counts()
	if err != nil {
		return urgency.Snapshot{}, err
	}

	snap := urgency.Snapshot{
		Counts:    counts,
		Timestamp: b.now().UTC(),
		Note:      note,
		Machine:   b.machine,
	}
	if err := b.snapshots.Save(snap); err != nil {
		return urgency.Snapshot{}, err
	}
	b.logger.Info("consolidation snapshot saved", "note", note)
	return snap, nil
}

// counts gathers the current urgency inputs. Callers hold mu.
func (b *Brain) counts() (urgency.Counts, error) {
	ec := b.entities.Counts()
	c := urgency.Counts{
		Entities:     ec.Entities,
		Observations: ec.Observations,
		Relations:    b.folder.Set().Len(),
	}
	if b.tiers != nil {
		st, err := b.tiers.Stats()
		if err != nil {
			return c, err
		}
		c.Pins = st.Core
		c.Sessions = st.Sessions()
	}
	return c, nil
}

// score compares the current counts with the last snapshot. Without a
// snapshot the baseline is zero counts at the time the installation was
// created. Callers hold mu.
func (b *Brain) score() (urgency.Result, *urgency.Snapshot, error) {
	counts, err := b.counts()
	if err != nil {
		return urgency.Result{}, nil, err
	}

	snap, err := b.snapshots.Load()
	if err != nil {
		return urgency.Result{}, nil, err
	}

	now := b.now()
	var (
		baseline urgency.Counts
		hours    float64
	)
	if snap != nil {
		baseline = snap.Counts
		hours = snap.HoursSince(now)
	} else {
		hours = now.Sub(b.installedAt(now)).Hours()
	}

	return urgency.Score(counts, baseline, hours, b.thresholds), snap, nil
}

func (b *Brain) installedAt(now time.Time) time.Time {
	info, err := os.Stat(b.layout.MachineID)
	if err != nil {
		return now
	}
	return info.ModTime()
}

// integrity lists problems worth surfacing to the agent. Callers hold mu.
func (b *Brain) integrity(snap *urgency.Snapshot) []Warning {
	var issues []Warning
	add := func(format string, args ...any) {
		issues = append(issues, Warning{Stage: StageIntegrity, Message: fmt.Sprintf(format, args...)})
	}

	if b.entities.Counts().Entities == 0 {
		add("knowledge graph is empty")
	}

	dangling := graph.Dangling(b.folder.Set(), b.entities.Has)
	for i, t := range dangling {
		if i == maxDanglingReported {
			add("%d more relations reference missing entities", len(dangling)-maxDanglingReported)
			break
		}
		add("relation %s -%s-> %s references a missing entity", t.From, t.Type, t.To)
	}

	if snap == nil {
		add("no consolidation has been recorded")
		return issues
	}

	age := b.now().Sub(snap.Timestamp)
	days := int(math.Floor(age.Hours() / 24))
	switch {
	case age >= consolidationStaleAge:
		add("last consolidation was %d days ago (very stale)", days)
	case age >= consolidationDueAge:
		add("last consolidation was %d days ago (due)", days)
	}
	return issues
}
