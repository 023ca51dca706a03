// Package entity provides the durable, name-keyed store of knowledge-graph
// nodes. Each entity is one JSON file, written atomically.
package entity

import (
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/ryanlack616/howell-brain/pkg/logger"
	"github.com/ryanlack616/howell-brain/pkg/utils"
)

// UnknownKind is assigned to entities created implicitly by an observation.
const UnknownKind = "unknown"

const fileExt = ".json"

// Entity is a named node of the knowledge graph.
type Entity struct {
	Name         string    `json:"name"`
	Kind         string    `json:"kind"`
	Observations []string  `json:"observations"`
	Machine      string    `json:"machine,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Ref identifies an entity without its observations.
type Ref struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
}

// Counts summarizes the store.
type Counts struct {
	Entities     int
	Observations int
}

// Options configures a Store.
type Options struct {
	// AutoCreate creates missing entities, with UnknownKind, when an
	// observation targets them.
	AutoCreate bool

	// Machine stamps newly created records.
	Machine string

	Logger *slog.Logger
	Now    func() time.Time
}

// Store is the entity store. It is safe for concurrent use.
type Store struct {
	dir    string
	opts   Options
	logger *slog.Logger

	mu       sync.RWMutex
	entities map[string]*Entity
	problems []Problem
}

// Open loads every entity record under dir, creating the directory if needed.
// Unreadable records are skipped and reported by Problems.
func Open(dir string, opts Options) (*Store, error) {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}

	s := &Store{
		dir:    dir,
		opts:   opts,
		logger: opts.Logger.With("component", "entity"),
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, &StorageIOError{Op: "create", Path: dir, Err: err}
	}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Reload re-reads every record from disk, picking up files delivered by sync.
func (s *Store) Reload() error {
	dirEntries, err := os.ReadDir(s.dir)
	if err != nil {
		return &StorageIOError{Op: "read", Path: s.dir, Err: err}
	}

	entities := make(map[string]*Entity, len(dirEntries))
	var problems []Problem

	for _, de := range dirEntries {
		if de.IsDir() || !strings.HasSuffix(de.Name(), fileExt) {
			continue
		}

		path := filepath.Join(s.dir, de.Name())
		e, err := readEntity(path)
		if err != nil {
			s.logger.Warn("skipping unreadable entity file", "path", path, "error", err)
			problems = append(problems, Problem{Path: path, Err: err})
			continue
		}
		entities[e.Name] = e
	}

	s.mu.Lock()
	s.entities = entities
	s.problems = problems
	s.mu.Unlock()

	return nil
}

func readEntity(path string) (*Entity, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	e := &Entity{}
	if err := json.Unmarshal(data, e); err != nil {
		return nil, fmt.Errorf("parsing entity: %w", err)
	}
	if e.Name == "" {
		return nil, ErrEmptyName
	}
	if e.Kind == "" {
		e.Kind = UnknownKind
	}
	return e, nil
}

// Problems returns the entity files skipped by the last load.
func (s *Store) Problems() []Problem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.problems)
}

// UpsertEntity creates the entity if absent. An existing entity keeps its
// kind, and its current ref is returned.
func (s *Store) UpsertEntity(name, kind string) (Ref, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Ref{}, ErrEmptyName
	}
	if kind == "" {
		kind = UnknownKind
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entities[name]; ok {
		if e.Kind == UnknownKind && kind != UnknownKind {
			updated := *e
			updated.Kind = kind
			updated.UpdatedAt = s.opts.Now()
			if err := s.persist(&updated); err != nil {
				return Ref{}, err
			}
			s.entities[name] = &updated
			e = &updated
		}
		return Ref{Name: e.Name, Kind: e.Kind}, nil
	}

	e := s.newEntity(name, kind)
	if err := s.persist(e); err != nil {
		return Ref{}, err
	}
	s.entities[name] = e
	return Ref{Name: name, Kind: kind}, nil
}

// AddObservation appends text to the entity unless an identical string is
// already present. It reports whether the observation was added.
func (s *Store) AddObservation(name, text string) (bool, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return false, ErrEmptyName
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entities[name]
	if !ok {
		if !s.opts.AutoCreate {
			return false, &NotFoundError{Name: name}
		}
		e = s.newEntity(name, UnknownKind)
		e.Observations = []string{text}
		if err := s.persist(e); err != nil {
			return false, err
		}
		s.entities[name] = e
		return true, nil
	}

	if slices.Contains(e.Observations, text) {
		return false, nil
	}

	updated := *e
	updated.Observations = append(slices.Clone(e.Observations), text)
	updated.UpdatedAt = s.opts.Now()
	if err := s.persist(&updated); err != nil {
		return false, err
	}
	s.entities[name] = &updated
	return true, nil
}

// Merge folds a record received from another machine into the store.
// Observations are unioned; an existing kind wins unless it is UnknownKind.
// Merging the same record twice is a no-op. It reports whether anything
// changed on disk.
func (s *Store) Merge(in Entity) (bool, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return false, ErrEmptyName
	}
	if in.Kind == "" {
		in.Kind = UnknownKind
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entities[in.Name]
	if !ok {
		created := s.newEntity(in.Name, in.Kind)
		if in.Machine != "" {
			created.Machine = in.Machine
		}
		if !in.CreatedAt.IsZero() {
			created.CreatedAt = in.CreatedAt
			created.UpdatedAt = in.CreatedAt
		}
		created.Observations = dedup(in.Observations)
		if err := s.persist(created); err != nil {
			return false, err
		}
		s.entities[in.Name] = created
		return true, nil
	}

	updated := *e
	changed := false
	if updated.Kind == UnknownKind && in.Kind != UnknownKind {
		updated.Kind = in.Kind
		changed = true
	}
	for _, obs := range in.Observations {
		if !slices.Contains(updated.Observations, obs) {
			updated.Observations = append(slices.Clone(updated.Observations), obs)
			changed = true
		}
	}
	if !changed {
		return false, nil
	}

	updated.UpdatedAt = s.opts.Now()
	if err := s.persist(&updated); err != nil {
		return false, err
	}
	s.entities[in.Name] = &updated
	return true, nil
}

// Get returns a copy of the named entity.
func (s *Store) Get(name string) (Entity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entities[name]
	if !ok {
		return Entity{}, false
	}
	out := *e
	out.Observations = slices.Clone(e.Observations)
	return out, true
}

// Has reports whether the named entity exists.
func (s *Store) Has(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.entities[name]
	return ok
}

// List yields every entity ref in file-name order. Each call of the returned
// sequence starts a fresh scan.
func (s *Store) List() iter.Seq[Ref] {
	return func(yield func(Ref) bool) {
		s.mu.RLock()
		names := make([]string, 0, len(s.entities))
		for name := range s.entities {
			names = append(names, name)
		}
		s.mu.RUnlock()

		slices.SortFunc(names, func(a, b string) int {
			return strings.Compare(fileName(a), fileName(b))
		})

		for _, name := range names {
			s.mu.RLock()
			e, ok := s.entities[name]
			var ref Ref
			if ok {
				ref = Ref{Name: e.Name, Kind: e.Kind}
			}
			s.mu.RUnlock()

			if !ok {
				continue
			}
			if !yield(ref) {
				return
			}
		}
	}
}

// All yields copies of every entity in the same order as List.
func (s *Store) All() iter.Seq[Entity] {
	return func(yield func(Entity) bool) {
		for ref := range s.List() {
			e, ok := s.Get(ref.Name)
			if !ok {
				continue
			}
			if !yield(e) {
				return
			}
		}
	}
}

// Counts returns the number of entities and observations.
func (s *Store) Counts() Counts {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c := Counts{Entities: len(s.entities)}
	for _, e := range s.entities {
		c.Observations += len(e.Observations)
	}
	return c
}

func (s *Store) newEntity(name, kind string) *Entity {
	now := s.opts.Now()
	return &Entity{
		Name:         name,
		Kind:         kind,
		Observations: []string{},
		Machine:      s.opts.Machine,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func (s *Store) persist(e *Entity) error {
	data, err := json.MarshalIndent(e, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling entity %q: %w", e.Name, err)
	}

	path := filepath.Join(s.dir, fileName(e.Name))
	if err := utils.WriteFileAtomic(path, data, 0o644); err != nil {
		return &StorageIOError{Op: "write", Path: path, Err: err}
	}
	return nil
}

// fileName maps an entity name onto a single path segment. An upper-case
// letter is written as '^' plus its lower-case form, so names that differ
// only in case get distinct files on case-insensitive filesystems. '^' in a
// name is percent-escaped and cannot collide with the marker.
func fileName(name string) string {
	escaped := url.QueryEscape(name)

	var b strings.Builder
	b.Grow(len(escaped) + len(fileExt))
	for i := 0; i < len(escaped); i++ {
		c := escaped[i]
		switch {
		case c == '%' && i+2 < len(escaped):
			// hex digits of an escape are always upper case
			b.WriteString(escaped[i : i+3])
			i += 2
		case 'A' <= c && c <= 'Z':
			b.WriteByte('^')
			b.WriteByte(c + 'a' - 'A')
		default:
			b.WriteByte(c)
		}
	}
	b.WriteString(fileExt)
	return b.String()
}

func dedup(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if !slices.Contains(out, s) {
			out = append(out, s)
		}
	}
	return out
}

// IsStorageIO reports whether err is a StorageIOError.
func IsStorageIO(err error) bool {
	var target *StorageIOError
	return errors.As(err, &target)
}
