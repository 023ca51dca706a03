package entity

import (
	"errors"
	"fmt"
)

// ErrEmptyName is returned when an entity name is blank.
var ErrEmptyName = errors.New("entity name is empty")

// NotFoundError is returned when an observation targets a missing entity and
// auto-create is disabled.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("entity %q not found", e.Name)
}

// StorageIOError wraps a filesystem failure of the backing store.
type StorageIOError struct {
	Op   string
	Path string
	Err  error
}

func (e *StorageIOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StorageIOError) Unwrap() error {
	return e.Err
}

// Problem records an entity file that could not be read.
type Problem struct {
	Path string
	Err  error
}
