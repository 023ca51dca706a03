package tier

import (
	"fmt"
	"os"

	"github.com/ryanlack616/howell-brain/pkg/utils"
)

// fileSystem is the set of writes the tier manager performs. Eviction
// correctness depends on their order, so tests substitute a recording one.
type fileSystem interface {
	ReadFile(path string) ([]byte, error)
	AppendFile(path string, data []byte) error
	WriteFileAtomic(path string, data []byte) error
}

type osFS struct{}

func (osFS) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

func (osFS) AppendFile(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return fmt.Errorf("syncing %s: %w", path, err)
	}
	return f.Close()
}

func (osFS) WriteFileAtomic(path string, data []byte) error {
	return utils.WriteFileAtomic(path, data, 0o644)
}
