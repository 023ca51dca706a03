package dotdir

import (
	"fmt"
	"os"
	"path/filepath"
)

// Layout is the on-disk arrangement of a howell base directory.
// Paths are absolute once returned from NewLayout.
type Layout struct {
	Root string

	// Entities holds one JSON record per knowledge-graph entity.
	Entities string

	// Logs holds one append-only journal per machine.
	Logs string

	// RelationsCache is the last successfully materialized relation set.
	RelationsCache string

	// Memory holds the hot/warm/cold/core tier files.
	Memory string

	// Procedures holds procedural markdown notes.
	Procedures string

	Snapshot  string
	MachineID string
	Lock      string

	// Daemon records which process holds Lock.
	Daemon  string
	Index   string
	LogFile string
}

// NewLayout derives every storage path from the root directory.
func NewLayout(root string) Layout {
	return Layout{
		Root:           root,
		Entities:       filepath.Join(root, "entities"),
		Logs:           filepath.Join(root, "logs"),
		RelationsCache: filepath.Join(root, "relations.cache.json"),
		Memory:         filepath.Join(root, "memory"),
		Procedures:     filepath.Join(root, "procedures"),
		Snapshot:       filepath.Join(root, "consolidation.json"),
		MachineID:      filepath.Join(root, ".machine_id"),
		Lock:           filepath.Join(root, "howell.lock"),
		Daemon:         filepath.Join(root, "daemon.json"),
		LogFile:        filepath.Join(root, "howell.log"),
		Index:          filepath.Join(root, "index.db"),
	}
}

// Ensure creates the directories of the layout that must exist before the
// stores open.
func (l Layout) Ensure() error {
	for _, dir := range []string{l.Root, l.Entities, l.Logs, l.Memory, l.Procedures} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	return nil
}
