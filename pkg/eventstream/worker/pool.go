// Package worker publishes journal events from a bounded queue so that a
// slow or unreachable broker never blocks a memory mutation.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/ryanlack616/howell-brain/pkg/eventstream"
	"github.com/ryanlack616/howell-brain/pkg/journal"
	"github.com/ryanlack616/howell-brain/pkg/logger"
)

var (
	defaultNumWorkers     uint = 1
	defaultJobQueueSize   uint = 256
	defaultPublishTimeout      = 10 * time.Second
)

// Config is the configuration options for the worker pool.
type Config struct {
	// Publisher receives every event. Required.
	Publisher eventstream.Publisher

	// Version is stamped on each event's source.
	Version string

	// NumWorkers is the number of background workers. One worker keeps
	// events in append order.
	NumWorkers uint

	// QueueSize is the capacity of the buffered job channel (defaults to 256).
	QueueSize uint

	// Timeout bounds each publish call.
	Timeout time.Duration

	Logger *slog.Logger
}

// Pool publishes journal events asynchronously.
type Pool struct {
	config *Config
	queue  chan journal.Entry
	wg     sync.WaitGroup
	logger *slog.Logger

	mu      sync.Mutex
	dropped int
	failed  int
}

// NewPool creates a Pool and starts its worker goroutines.
func NewPool(c *Config) (*Pool, error) {
	if c.Publisher == nil {
		return nil, fmt.Errorf("worker pool requires a publisher")
	}
	if c.NumWorkers == 0 {
		c.NumWorkers = defaultNumWorkers
	}
	if c.QueueSize == 0 {
		c.QueueSize = defaultJobQueueSize
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultPublishTimeout
	}
	if c.Logger == nil {
		c.Logger = logger.Nop()
	}
	if c.NumWorkers > uint(math.MaxInt) {
		return nil, fmt.Errorf("NumWorkers %d exceeds max int", c.NumWorkers)
	}

	wp := &Pool{
		config: c,
		queue:  make(chan journal.Entry, c.QueueSize),
		logger: c.Logger.With("component", "event-worker"),
	}

	wp.wg.Add(int(c.NumWorkers))
	for i := range c.NumWorkers {
		go wp.worker(i)
	}

	return wp, nil
}

// Enqueue submits an appended entry for publishing.
// Returns false if the queue is full and the event was dropped.
func (p *Pool) Enqueue(entry journal.Entry) bool {
	select {
	case p.queue <- entry:
		p.logger.Debug("event queued", "op", entry.Op, "seq", entry.Seq)
		return true
	default:
		p.mu.Lock()
		p.dropped++
		p.mu.Unlock()
		p.logger.Error("event not queued, queue full, event dropped", "op", entry.Op, "seq", entry.Seq)
		return false
	}
}

// Close stops accepting events, waits for queued ones to drain and closes
// the publisher.
func (p *Pool) Close() error {
	close(p.queue)
	p.wg.Wait()
	return p.config.Publisher.Close()
}

// Stats reports how many events were dropped or failed to publish.
func (p *Pool) Stats() (dropped, failed int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dropped, p.failed
}

func (p *Pool) worker(id uint) {
	defer p.wg.Done()
	p.logger.Debug("worker started", "worker_id", id)

	for entry := range p.queue {
		p.publish(entry)
	}

	p.logger.Debug("worker stopped", "worker_id", id)
}

func (p *Pool) publish(entry journal.Entry) {
	ctx, cancel := context.WithTimeout(context.Background(), p.config.Timeout)
	defer cancel()

	event := eventstream.NewJournalEvent(entry, p.config.Version)
	if err := p.config.Publisher.PublishJournal(ctx, event); err != nil {
		p.mu.Lock()
		p.failed++
		p.mu.Unlock()
		p.logger.Warn("publishing journal event failed",
			"event_id", event.EventID,
			"op", entry.Op,
			"error", err,
		)
		return
	}
	p.logger.Debug("journal event published", "event_id", event.EventID, "op", entry.Op)
}
