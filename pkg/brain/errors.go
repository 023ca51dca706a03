package brain

import (
	"errors"

	"github.com/ryanlack616/howell-brain/pkg/entity"
)

// ErrNotBootstrapped is returned by operations called before Bootstrap.
var ErrNotBootstrapped = errors.New("memory not bootstrapped")

// ErrJournalUnavailable is returned by graph mutations when the local
// journal could not be opened at bootstrap.
var ErrJournalUnavailable = errors.New("local journal unavailable")

// ErrEmptyField is returned when a required argument is blank.
var ErrEmptyField = errors.New("required field is empty")

// StorageIOError is an underlying filesystem failure.
type StorageIOError = entity.StorageIOError
