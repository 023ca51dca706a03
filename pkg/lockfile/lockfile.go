// Package lockfile guards the base directory against concurrent writers.
//
// A daemon takes the lock for its whole lifetime; mutating CLI commands take
// it for the duration of one operation. The holder's identity is recorded in
// a sibling state file so that a refused caller can say who holds it.
package lockfile

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"syscall"
	"time"

	"github.com/ryanlack616/howell-brain/pkg/utils"
)

const ownerVersion = 1

// ErrLocked is returned when another process already holds the lock.
var ErrLocked = errors.New("howell directory is locked by another process")

// Owner describes the process holding the lock.
type Owner struct {
	Version   int       `json:"version"`
	PID       int       `json:"pid"`
	Machine   string    `json:"machine"`
	APIURL    string    `json:"api_url,omitempty"`
	LogPath   string    `json:"log_path,omitempty"`
	StartedAt time.Time `json:"started_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Lock is a held advisory lock.
type Lock struct {
	file      *os.File
	ownerPath string
}

// Acquire takes a non-blocking exclusive lock on path. If the lock is held,
// the returned error wraps ErrLocked and names the recorded owner when known.
func Acquire(path, ownerPath string) (*Lock, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("opening lock file: %w", err)
	}

	if err := syscall.Flock(int(file.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		file.Close()
		if errors.Is(err, syscall.EWOULDBLOCK) {
			if owner, _ := LoadOwner(ownerPath); owner != nil {
				return nil, fmt.Errorf("%w (pid %d on %s)", ErrLocked, owner.PID, owner.Machine)
			}
			return nil, ErrLocked
		}
		return nil, fmt.Errorf("locking %s: %w", path, err)
	}

	return &Lock{file: file, ownerPath: ownerPath}, nil
}

// Release drops the lock and clears the owner record.
func (l *Lock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	if err := clearOwner(l.ownerPath); err != nil {
		_ = syscall.Flock(int(l.file.Fd()), syscall.LOCK_UN)
		_ = l.file.Close()
		return err
	}
	if err := syscall.Flock(int(l.file.Fd()), syscall.LOCK_UN); err != nil {
		_ = l.file.Close()
		return fmt.Errorf("unlocking: %w", err)
	}
	err := l.file.Close()
	l.file = nil
	return err
}

// SaveOwner records the holder's identity.
func (l *Lock) SaveOwner(owner *Owner) error {
	if owner == nil {
		return errors.New("cannot save nil owner")
	}
	if owner.Version == 0 {
		owner.Version = ownerVersion
	}
	if owner.PID == 0 {
		owner.PID = os.Getpid()
	}
	if owner.StartedAt.IsZero() {
		owner.StartedAt = time.Now()
	}
	owner.UpdatedAt = time.Now()

	data, err := json.MarshalIndent(owner, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling lock owner: %w", err)
	}

	if err := utils.WriteFileAtomic(l.ownerPath, data, 0o600); err != nil {
		return fmt.Errorf("saving lock owner: %w", err)
	}
	return nil
}

// LoadOwner reads the owner record. It returns nil, nil when none exists.
func LoadOwner(ownerPath string) (*Owner, error) {
	data, err := os.ReadFile(ownerPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading lock owner: %w", err)
	}

	owner := &Owner{}
	if err := json.Unmarshal(data, owner); err != nil {
		return nil, fmt.Errorf("parsing lock owner: %w", err)
	}
	return owner, nil
}

func clearOwner(ownerPath string) error {
	if err := os.Remove(ownerPath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("removing lock owner: %w", err)
	}
	return nil
}
