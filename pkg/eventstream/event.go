// Package eventstream defines the events emitted after a journal append,
// for consumers outside the two synced machines.
package eventstream

import (
	"time"

	"github.com/google/uuid"

	"github.com/ryanlack616/howell-brain/pkg/journal"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeJournalAppended is emitted after an entry reaches the local journal.
	EventTypeJournalAppended = "howell.journal.appended"
)

// JournalEvent is a transport-neutral event payload for an appended entry.
type JournalEvent struct {
	SchemaVersion int           `json:"schema_version"`
	EventType     string        `json:"event_type"`
	EventID       string        `json:"event_id"`
	EmittedAt     time.Time     `json:"emitted_at"`
	Source        EventSource   `json:"source"`
	Entry         journal.Entry `json:"entry"`
}

// EventSource identifies where the entry originated.
type EventSource struct {
	Machine string `json:"machine"`
	Version string `json:"version,omitempty"`
}

// NewJournalEvent wraps an appended entry.
func NewJournalEvent(entry journal.Entry, version string) *JournalEvent {
	return &JournalEvent{
		SchemaVersion: SchemaVersionV1,
		EventType:     EventTypeJournalAppended,
		EventID:       uuid.NewString(),
		EmittedAt:     time.Now().UTC(),
		Source: EventSource{
			Machine: entry.Machine,
			Version: version,
		},
		Entry: entry,
	}
}
