package urgency

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ryanlack616/howell-brain/pkg/utils"
)

// Snapshot is the baseline recorded when a consolidation pass completes.
type Snapshot struct {
	Counts    Counts    `json:"counts"`
	Timestamp time.Time `json:"timestamp"`
	Note      string    `json:"note,omitempty"`
	Machine   string    `json:"machine,omitempty"`
}

// HoursSince returns the hours elapsed between the snapshot and now.
func (s Snapshot) HoursSince(now time.Time) float64 {
	return now.Sub(s.Timestamp).Hours()
}

// SnapshotStore persists the single current snapshot.
type SnapshotStore struct {
	Path string
}

// Load returns the snapshot, or nil when none has been saved.
func (s SnapshotStore) Load() (*Snapshot, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading consolidation snapshot: %w", err)
	}

	snap := &Snapshot{}
	if err := json.Unmarshal(data, snap); err != nil {
		return nil, fmt.Errorf("parsing consolidation snapshot: %w", err)
	}
	return snap, nil
}

// Save overwrites the stored snapshot.
func (s SnapshotStore) Save(snap Snapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding consolidation snapshot: %w", err)
	}
	if err := utils.WriteFileAtomic(s.Path, data, 0o644); err != nil {
		return fmt.Errorf("saving consolidation snapshot: %w", err)
	}
	return nil
}
