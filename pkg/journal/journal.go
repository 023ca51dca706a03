// Package journal implements the per-machine append-only operation logs.
//
// Every machine appends only to logs/<machine>.jsonl; logs of other machines
// arrive through file sync and are only ever read. Because no file has two
// writers, the sync tool never has to resolve a write conflict. Replaying all
// logs in (timestamp, machine, seq) order gives every machine the same
// sequence of operations.
package journal

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/ryanlack616/howell-brain/pkg/logger"
)

const (
	fileExt      = ".jsonl"
	maxLineBytes = 16 << 20
)

// Options configures a Journal.
type Options struct {
	Logger *slog.Logger
	Now    func() time.Time
}

// Journal is the local machine's writable log plus read access to every
// other machine's log in the same directory.
type Journal struct {
	dir     string
	machine string
	logger  *slog.Logger
	now     func() time.Time

	mu        sync.Mutex
	seq       uint64
	lastTS    time.Time
	remoteTS  time.Time
	tornBytes int64
}

// Open opens the log for machine under dir, creating both if missing. A
// torn final line left by a crash is truncated away.
func Open(dir, machine string, opts Options) (*Journal, error) {
	if machine == "" {
		return nil, errors.New("journal requires a machine id")
	}
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	j := &Journal{
		dir:     dir,
		machine: machine,
		logger:  opts.Logger.With("component", "journal", "machine", machine),
		now:     opts.Now,
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating journal dir: %w", err)
	}

	if err := j.repairTail(); err != nil {
		return nil, err
	}

	entries, err := readFile(j.path(machine), machine)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		j.seq = max(j.seq, e.Seq)
		if e.Timestamp.After(j.lastTS) {
			j.lastTS = e.Timestamp
		}
	}

	return j, nil
}

// Machine returns the identity that owns the writable log.
func (j *Journal) Machine() string {
	return j.machine
}

// TornBytes returns how many bytes of an incomplete final line were dropped
// when the log was opened.
func (j *Journal) TornBytes() int64 {
	return j.tornBytes
}

func (j *Journal) path(machine string) string {
	return filepath.Join(j.dir, machine+fileExt)
}

func (j *Journal) repairTail() error {
	path := j.path(j.machine)

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return fmt.Errorf("opening journal: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return fmt.Errorf("reading journal: %w", err)
	}
	if len(data) == 0 || data[len(data)-1] == '\n' {
		return nil
	}

	keep := int64(bytes.LastIndexByte(data, '\n') + 1)
	if err := f.Truncate(keep); err != nil {
		return fmt.Errorf("truncating torn journal tail: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("syncing journal: %w", err)
	}

	j.tornBytes = int64(len(data)) - keep
	j.logger.Warn("dropped torn journal tail", "bytes", j.tornBytes)
	return nil
}

// Append writes e to the local log and returns it with Seq, Timestamp and
// Checksum filled in. An empty Machine means the local machine; any other
// machine yields WrongWriterError. The write is fsynced before returning.
func (j *Journal) Append(e Entry) (Entry, error) {
	if e.Machine == "" {
		e.Machine = j.machine
	}
	if e.Machine != j.machine {
		return Entry{}, &WrongWriterError{Local: j.machine, Target: e.Machine}
	}
	if !e.Op.Valid() {
		return Entry{}, fmt.Errorf("unknown journal op %q", e.Op)
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	if e.Timestamp.IsZero() {
		e.Timestamp = j.now().UTC()
	}
	// Local entries never go backwards in time, even if the clock does.
	if e.Timestamp.Before(j.lastTS) {
		e.Timestamp = j.lastTS
	}
	// A local entry sorts after every remote entry already replayed, so
	// replay folds it over the same state the caller saw.
	if !j.remoteTS.IsZero() && !e.Timestamp.After(j.remoteTS) {
		e.Timestamp = j.remoteTS.Add(time.Nanosecond)
	}

	data, err := normalize(e.Data)
	if err != nil {
		return Entry{}, err
	}
	e.Data = data
	e.Seq = j.seq + 1
	e.Checksum = checksum(e.Data)

	line, err := json.Marshal(e)
	if err != nil {
		return Entry{}, fmt.Errorf("encoding journal entry: %w", err)
	}
	line = append(line, '\n')

	f, err := os.OpenFile(j.path(j.machine), os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o644)
	if err != nil {
		return Entry{}, fmt.Errorf("opening journal: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(line); err != nil {
		return Entry{}, fmt.Errorf("appending journal entry: %w", err)
	}
	if err := f.Sync(); err != nil {
		return Entry{}, fmt.Errorf("syncing journal: %w", err)
	}

	j.seq = e.Seq
	j.lastTS = e.Timestamp
	return e, nil
}

// normalize puts a payload in the exact form json.Marshal embeds it in, so
// the checksum holds for the bytes that reach the disk.
func normalize(data json.RawMessage) (json.RawMessage, error) {
	if len(data) == 0 {
		return nil, errors.New("journal entry has no payload")
	}
	var compact bytes.Buffer
	if err := json.Compact(&compact, data); err != nil {
		return nil, fmt.Errorf("invalid journal payload: %w", err)
	}
	var escaped bytes.Buffer
	json.HTMLEscape(&escaped, compact.Bytes())
	return escaped.Bytes(), nil
}

// ReplayAll reads every machine's log and returns the merged, ordered
// sequence of entries. Later local appends are timestamped after the newest
// entry of another machine seen here.
func (j *Journal) ReplayAll() ([]Entry, error) {
	entries, err := ReplayDir(j.dir)
	if err != nil {
		return nil, err
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	for _, e := range entries {
		if e.Machine != j.machine && e.Timestamp.After(j.remoteTS) {
			j.remoteTS = e.Timestamp
		}
	}
	return entries, nil
}

// RemoteHighWater returns the newest timestamp replayed from another
// machine's log.
func (j *Journal) RemoteHighWater() time.Time {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.remoteTS
}

// ReplayDir reads every *.jsonl log in dir and merges them by timestamp
// ascending, ties broken by machine id and then sequence number.
func ReplayDir(dir string) ([]Entry, error) {
	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading journal dir: %w", err)
	}

	var all []Entry
	for _, de := range dirEntries {
		if de.IsDir() || !strings.HasSuffix(de.Name(), fileExt) {
			continue
		}
		machine := strings.TrimSuffix(de.Name(), fileExt)

		entries, err := readFile(filepath.Join(dir, de.Name()), machine)
		if err != nil {
			return nil, err
		}
		all = append(all, entries...)
	}

	slices.SortStableFunc(all, Less)
	return all, nil
}

// Machines lists the machine ids that have a log in dir.
func Machines(dir string) ([]string, error) {
	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading journal dir: %w", err)
	}

	var machines []string
	for _, de := range dirEntries {
		if !de.IsDir() && strings.HasSuffix(de.Name(), fileExt) {
			machines = append(machines, strings.TrimSuffix(de.Name(), fileExt))
		}
	}
	return machines, nil
}

// readFile parses one machine's log. An unterminated final line that does
// not parse is a write still in flight (locally a crash, remotely a partial
// sync delivery) and is skipped; any other bad line is a CorruptLogError.
func readFile(path, machine string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening journal %s: %w", machine, err)
	}
	defer f.Close()

	reader := bufio.NewReaderSize(f, 64<<10)

	var entries []Entry
	lineNo := 0
	for {
		line, readErr := reader.ReadBytes('\n')
		if readErr != nil && !errors.Is(readErr, io.EOF) {
			return nil, fmt.Errorf("reading journal %s: %w", machine, readErr)
		}
		terminated := len(line) > 0 && line[len(line)-1] == '\n'
		if len(line) > 0 {
			lineNo++
		}

		trimmed := bytes.TrimSpace(line)
		if len(trimmed) > maxLineBytes {
			return nil, &CorruptLogError{Machine: machine, Line: lineNo, Err: errors.New("line too long")}
		}
		if len(trimmed) > 0 {
			e, err := parseLine(trimmed, machine)
			switch {
			case err == nil:
				entries = append(entries, e)
			case !terminated:
				// in-flight tail
			default:
				return nil, &CorruptLogError{Machine: machine, Line: lineNo, Err: err}
			}
		}

		if errors.Is(readErr, io.EOF) {
			break
		}
	}

	return entries, nil
}

func parseLine(line []byte, machine string) (Entry, error) {
	var e Entry
	if err := json.Unmarshal(line, &e); err != nil {
		return e, fmt.Errorf("parsing entry: %w", err)
	}
	if !e.Op.Valid() {
		return e, fmt.Errorf("unknown op %q", e.Op)
	}
	if e.Machine != machine {
		return e, fmt.Errorf("entry written by %q found in log of %q", e.Machine, machine)
	}
	if got := checksum(e.Data); got != e.Checksum {
		return e, fmt.Errorf("checksum mismatch: have %08x, want %08x", got, e.Checksum)
	}
	return e, nil
}
