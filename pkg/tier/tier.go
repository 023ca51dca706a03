// Package tier manages the session memory tiers.
//
// HOT holds the most recent sessions as full records, newest first. When HOT
// grows past its capacity the oldest sessions are demoted: a one-line entry
// is added to the WARM index and the full record is archived in a monthly
// COLD bucket. CORE holds pinned memories that never age out.
//
// Demotion writes WARM, then COLD, then rewrites HOT. A crash part way
// leaves the session in HOT, and the retry skips the WARM line and COLD
// record it already wrote, so a session is never lost and never counted
// twice.
package tier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ryanlack616/howell-brain/pkg/logger"
)

const (
	hotFile  = "hot.json"
	warmFile = "warm.log"
	coldDir  = "cold"
	coreFile = "core.jsonl"
)

// ErrEmptyNarrative is returned when a session has nothing to record.
var ErrEmptyNarrative = errors.New("session narrative is empty")

// Options configures a Manager.
type Options struct {
	Machine string
	Logger  *slog.Logger
	Now     func() time.Time
}

// Manager owns the files of every tier under one directory.
type Manager struct {
	dir     string
	machine string
	logger  *slog.Logger
	now     func() time.Time
	fs      fileSystem

	mu sync.Mutex
}

// Open prepares dir, creating it and the COLD archive directory if missing.
func Open(dir string, opts Options) (*Manager, error) {
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	if err := os.MkdirAll(filepath.Join(dir, coldDir), 0o755); err != nil {
		return nil, fmt.Errorf("creating memory dir: %w", err)
	}

	return &Manager{
		dir:     dir,
		machine: opts.Machine,
		logger:  opts.Logger.With("component", "tier"),
		now:     opts.Now,
		fs:      osFS{},
	}, nil
}

func (m *Manager) hotPath() string  { return filepath.Join(m.dir, hotFile) }
func (m *Manager) warmPath() string { return filepath.Join(m.dir, warmFile) }
func (m *Manager) corePath() string { return filepath.Join(m.dir, coreFile) }

func (m *Manager) coldPath(bucket string) string {
	return filepath.Join(m.dir, coldDir, bucket+".jsonl")
}

// RecordSession inserts a new session at the head of HOT. When in.Pin is
// set the narrative is also pinned to CORE; a duplicate pin title is
// reported in the PinResult, not as an error.
func (m *Manager) RecordSession(ctx context.Context, in SessionInput) (Session, *PinResult, error) {
	narrative := strings.TrimSpace(in.Narrative)
	if narrative == "" {
		return Session{}, nil, ErrEmptyNarrative
	}
	if err := ctx.Err(); err != nil {
		return Session{}, nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	s := Session{
		ID:        uuid.NewString(),
		Date:      m.now().UTC(),
		Machine:   m.machine,
		Title:     Summarize(narrative),
		Narrative: narrative,
		Learned:   slices.DeleteFunc(slices.Clone(in.Learned), func(l string) bool { return strings.TrimSpace(l) == "" }),
		Pinned:    in.Pin,
	}

	hot, err := m.readHot()
	if err != nil {
		return Session{}, nil, err
	}
	if err := m.writeHot(append([]Session{s}, hot...)); err != nil {
		return Session{}, nil, err
	}

	if !in.Pin {
		return s, nil, nil
	}

	title := strings.TrimSpace(in.PinTitle)
	if title == "" {
		title = s.Title
	}
	res, err := m.pin(title, narrative, in.PinReason)
	if err != nil {
		return s, nil, err
	}
	return s, &res, nil
}

// Pin adds a memory to CORE unless one with the same title exists.
func (m *Manager) Pin(title, text, reason string) (PinResult, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return PinResult{}, errors.New("pin title is empty")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pin(title, text, reason)
}

func (m *Manager) pin(title, text, reason string) (PinResult, error) {
	pins, err := m.readCore()
	if err != nil {
		return PinResult{}, err
	}
	for _, p := range pins {
		if strings.TrimSpace(p.Title) == title {
			return PinResult{Pin: p, AlreadyPinned: true}, nil
		}
	}

	p := Pin{
		Title:    title,
		Text:     text,
		Reason:   reason,
		Machine:  m.machine,
		PinnedAt: m.now().UTC(),
	}
	line, err := json.Marshal(p)
	if err != nil {
		return PinResult{}, fmt.Errorf("encoding pin: %w", err)
	}
	if err := m.fs.AppendFile(m.corePath(), append(line, '\n')); err != nil {
		return PinResult{}, fmt.Errorf("appending pin: %w", err)
	}
	return PinResult{Pin: p}, nil
}

// EvictIfOverCapacity demotes the oldest HOT sessions until HOT holds at
// most capacity records. Cancellation is checked between sessions, never in
// the middle of one.
func (m *Manager) EvictIfOverCapacity(ctx context.Context, capacity int) ([]Eviction, error) {
	if capacity < 0 {
		return nil, fmt.Errorf("invalid hot capacity %d", capacity)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var evicted []Eviction
	for {
		hot, err := m.readHot()
		if err != nil {
			return evicted, err
		}
		if len(hot) <= capacity {
			return evicted, nil
		}
		if err := ctx.Err(); err != nil {
			return evicted, err
		}

		ev, err := m.demote(hot)
		if err != nil {
			return evicted, err
		}
		m.logger.Debug("demoted session", "id", ev.Session.ID, "bucket", ev.Bucket)
		evicted = append(evicted, ev)
	}
}

// demote moves the oldest session of hot to WARM and COLD, then drops it
// from HOT.
func (m *Manager) demote(hot []Session) (Eviction, error) {
	victim := hot[len(hot)-1]
	ev := Eviction{
		Session:  victim,
		WarmLine: WarmLine(victim),
		Bucket:   Bucket(victim.Date),
	}

	cold, err := m.readColdBucket(ev.Bucket)
	if err != nil {
		return ev, err
	}

	// A session already archived in COLD had its WARM line written first.
	if !slices.ContainsFunc(cold, func(s Session) bool { return s.ID == victim.ID }) {
		warm, err := m.readWarm()
		if err != nil {
			return ev, err
		}

		// Distinct sessions may share a WARM line, so compare occurrences:
		// every archived session with this line accounts for one of them.
		written := countFunc(warm, func(l string) bool { return l == ev.WarmLine })
		archived := countFunc(cold, func(s Session) bool { return WarmLine(s) == ev.WarmLine })
		if written <= archived {
			if err := m.fs.AppendFile(m.warmPath(), []byte(ev.WarmLine+"\n")); err != nil {
				return ev, fmt.Errorf("appending warm line: %w", err)
			}
		}

		line, err := json.Marshal(victim)
		if err != nil {
			return ev, fmt.Errorf("encoding cold record: %w", err)
		}
		if err := m.fs.AppendFile(m.coldPath(ev.Bucket), append(line, '\n')); err != nil {
			return ev, fmt.Errorf("archiving session: %w", err)
		}
	}

	remaining := slices.DeleteFunc(slices.Clone(hot), func(s Session) bool { return s.ID == victim.ID })
	if err := m.writeHot(remaining); err != nil {
		return ev, err
	}
	return ev, nil
}

// Read returns the records of one tier. It never writes.
func (m *Manager) Read(t Tier) (Contents, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var (
		c   Contents
		err error
	)
	switch t {
	case Hot:
		c.Hot, err = m.readHot()
	case Warm:
		c.Warm, err = m.readWarm()
	case Cold:
		c.Cold, err = m.readCold()
	case Core:
		c.Core, err = m.readCore()
	default:
		err = fmt.Errorf("unknown tier %q", t)
	}
	return c, err
}

// ReadAll returns the records of every tier.
func (m *Manager) ReadAll() (Contents, error) {
	var all Contents
	for _, t := range All {
		c, err := m.Read(t)
		if err != nil {
			return Contents{}, err
		}
		all.Hot = append(all.Hot, c.Hot...)
		all.Warm = append(all.Warm, c.Warm...)
		all.Cold = append(all.Cold, c.Cold...)
		all.Core = append(all.Core, c.Core...)
	}
	return all, nil
}

// Stats counts the records of every tier.
func (m *Manager) Stats() (Stats, error) {
	c, err := m.ReadAll()
	if err != nil {
		return Stats{}, err
	}
	buckets, err := m.coldBuckets()
	if err != nil {
		return Stats{}, err
	}
	return Stats{
		Hot:         len(c.Hot),
		Warm:        len(c.Warm),
		Cold:        len(c.Cold),
		ColdBuckets: len(buckets),
		Core:        len(c.Core),
	}, nil
}

func (m *Manager) readHot() ([]Session, error) {
	data, err := m.fs.ReadFile(m.hotPath())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading hot tier: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	var sessions []Session
	if err := json.Unmarshal(data, &sessions); err != nil {
		return nil, fmt.Errorf("parsing hot tier: %w", err)
	}
	return sessions, nil
}

func (m *Manager) writeHot(sessions []Session) error {
	if sessions == nil {
		sessions = []Session{}
	}
	data, err := json.MarshalIndent(sessions, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding hot tier: %w", err)
	}
	if err := m.fs.WriteFileAtomic(m.hotPath(), data); err != nil {
		return fmt.Errorf("writing hot tier: %w", err)
	}
	return nil
}

func (m *Manager) readWarm() ([]string, error) {
	data, err := m.fs.ReadFile(m.warmPath())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading warm tier: %w", err)
	}

	var lines []string
	for line := range strings.SplitSeq(string(data), "\n") {
		if line = strings.TrimRight(line, "\r"); line != "" {
			lines = append(lines, line)
		}
	}
	return lines, nil
}

func (m *Manager) coldBuckets() ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(m.dir, coldDir))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading cold archive: %w", err)
	}

	var buckets []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".jsonl") {
			buckets = append(buckets, strings.TrimSuffix(e.Name(), ".jsonl"))
		}
	}
	slices.Sort(buckets)
	return buckets, nil
}

func (m *Manager) readCold() ([]Session, error) {
	buckets, err := m.coldBuckets()
	if err != nil {
		return nil, err
	}

	var all []Session
	for _, b := range buckets {
		sessions, err := m.readColdBucket(b)
		if err != nil {
			return nil, err
		}
		all = append(all, sessions...)
	}
	return all, nil
}

func (m *Manager) readColdBucket(bucket string) ([]Session, error) {
	return readJSONLines[Session](m.fs, m.coldPath(bucket), m.logger)
}

func (m *Manager) readCore() ([]Pin, error) {
	return readJSONLines[Pin](m.fs, m.corePath(), m.logger)
}

func countFunc[T any](items []T, match func(T) bool) int {
	n := 0
	for _, it := range items {
		if match(it) {
			n++
		}
	}
	return n
}

// readJSONLines decodes one record per line. A line that does not decode is
// logged and skipped so one bad append cannot hide the rest of the tier.
func readJSONLines[T any](fs fileSystem, path string, log *slog.Logger) ([]T, error) {
	data, err := fs.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading %s: %w", filepath.Base(path), err)
	}

	var out []T
	n := 0
	for line := range bytes.SplitSeq(data, []byte("\n")) {
		n++
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		var v T
		if err := json.Unmarshal(line, &v); err != nil {
			log.Warn("skipping unreadable tier record", "path", path, "line", n, "error", err)
			continue
		}
		out = append(out, v)
	}
	return out, nil
}
