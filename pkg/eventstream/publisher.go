package eventstream

import "context"

// Publisher publishes journal events to an event stream backend.
type Publisher interface {
	PublishJournal(ctx context.Context, event *JournalEvent) error
	Close() error
}
