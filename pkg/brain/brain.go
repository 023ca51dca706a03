// Package brain is the process-wide memory context. It owns every store,
// runs the bootstrap sequence and exposes the memory operations used by
// the API, the MCP tools and the CLI.
package brain

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/ryanlack616/howell-brain/pkg/config"
	"github.com/ryanlack616/howell-brain/pkg/dotdir"
	"github.com/ryanlack616/howell-brain/pkg/entity"
	"github.com/ryanlack616/howell-brain/pkg/eventstream/worker"
	"github.com/ryanlack616/howell-brain/pkg/graph"
	"github.com/ryanlack616/howell-brain/pkg/journal"
	"github.com/ryanlack616/howell-brain/pkg/logger"
	"github.com/ryanlack616/howell-brain/pkg/machine"
	"github.com/ryanlack616/howell-brain/pkg/search"
	"github.com/ryanlack616/howell-brain/pkg/search/sqlite"
	"github.com/ryanlack616/howell-brain/pkg/tier"
	"github.com/ryanlack616/howell-brain/pkg/urgency"
)

const defaultHotCapacity = 5

// Brain holds the open stores of one base directory.
type Brain struct {
	layout      dotdir.Layout
	machine     string
	hotCapacity int
	thresholds  urgency.Thresholds
	skew        time.Duration

	logger *slog.Logger
	now    func() time.Time
	tracer trace.Tracer
	events *worker.Pool
	index  search.Index

	// setup problems reported with every bootstrap
	setupWarnings []Warning

	mu        sync.RWMutex
	entities  *entity.Store
	journal   *journal.Journal
	tiers     *tier.Manager
	snapshots urgency.SnapshotStore
	folder    *graph.Folder
	degraded  bool
	dirty     bool
	last      *Context
}

// Option configures a Brain.
type Option func(*Brain)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(b *Brain) {
		b.logger = l
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(b *Brain) {
		b.now = now
	}
}

// WithEvents publishes every local journal append through the pool. The
// Brain closes the pool on Close.
func WithEvents(p *worker.Pool) Option {
	return func(b *Brain) {
		b.events = p
	}
}

// WithIndex overrides the search backend chosen from the config.
func WithIndex(idx search.Index) Option {
	return func(b *Brain) {
		b.index = idx
	}
}

// WithTracer overrides the global otel tracer.
func WithTracer(t trace.Tracer) Option {
	return func(b *Brain) {
		b.tracer = t
	}
}

// New prepares a Brain over cfg.Storage.Root. It creates the directory
// layout and resolves the machine identity but opens no store; call
// Bootstrap before any operation.
func New(cfg *config.Config, opts ...Option) (*Brain, error) {
	if cfg == nil {
		return nil, errors.New("nil config")
	}
	if cfg.Storage.Root == "" {
		return nil, errors.New("storage root is not set")
	}

	b := &Brain{
		layout:      dotdir.NewLayout(cfg.Storage.Root),
		hotCapacity: int(cfg.Memory.HotCapacity),
		thresholds: urgency.Thresholds{
			Due:    int(cfg.Urgency.Due),
			Urgent: int(cfg.Urgency.Urgent),
		},
		logger: logger.Nop(),
		now:    time.Now,
		tracer: otel.Tracer("howell/brain"),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.logger = b.logger.With("component", "brain")

	if b.hotCapacity <= 0 {
		b.hotCapacity = defaultHotCapacity
	}
	def := urgency.DefaultThresholds()
	if b.thresholds.Due <= 0 {
		b.thresholds.Due = def.Due
	}
	if b.thresholds.Urgent <= 0 {
		b.thresholds.Urgent = def.Urgent
	}

	skew, err := cfg.Sync.ClockSkewDuration()
	if err != nil {
		return nil, err
	}
	b.skew = skew

	if err := b.layout.Ensure(); err != nil {
		return nil, &StorageIOError{Op: "create", Path: b.layout.Root, Err: err}
	}

	id, err := machine.Resolve(b.layout.MachineID, cfg.Machine.ID)
	if err != nil {
		return nil, fmt.Errorf("resolving machine id: %w", err)
	}
	b.machine = id

	b.snapshots = urgency.SnapshotStore{Path: b.layout.Snapshot}

	if b.index == nil {
		b.index = b.openIndex(cfg.Search.Provider)
	}

	return b, nil
}

func (b *Brain) openIndex(provider string) search.Index {
	if provider == "scan" {
		return search.NewScanIndex()
	}

	idx, err := sqlite.Open(b.layout.Index)
	if err != nil {
		b.logger.Warn("search index unavailable, falling back to scan", "error", err)
		b.setupWarnings = append(b.setupWarnings, Warning{
			Stage:   StageIndex,
			Message: fmt.Sprintf("sqlite search index unavailable, using scan: %v", err),
		})
		return search.NewScanIndex()
	}
	return idx
}

// Machine is this installation's machine id.
func (b *Brain) Machine() string {
	return b.machine
}

// Layout is the storage layout in use.
func (b *Brain) Layout() dotdir.Layout {
	return b.layout
}

// HotCapacity is the configured HOT tier size.
func (b *Brain) HotCapacity() int {
	return b.hotCapacity
}

// Close releases the search index and drains the event publisher.
func (b *Brain) Close() error {
	var errs []error
	if b.events != nil {
		if err := b.events.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing event publisher: %w", err))
		}
	}
	if b.index != nil {
		if err := b.index.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing search index: %w", err))
		}
	}
	return errors.Join(errs...)
}

// ready reports whether Bootstrap has opened the stores. Callers hold mu.
func (b *Brain) ready() error {
	if b.entities == nil {
		return ErrNotBootstrapped
	}
	return nil
}
