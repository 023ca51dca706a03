// Package machine resolves the identity of the machine the process runs on.
//
// Each installation owns exactly one append-only journal, named after its
// machine identity. The identity is generated once and persisted so that it
// survives hostname changes.
package machine

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"

	"github.com/ryanlack616/howell-brain/pkg/utils"
)

const maxHostLen = 20

// Resolve returns the machine identity. An explicit override wins; otherwise
// the identity stored at path is returned, generating and persisting a new
// one if none exists yet.
func Resolve(path, override string) (string, error) {
	if override != "" {
		if err := Validate(override); err != nil {
			return "", err
		}
		return override, nil
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		id := strings.TrimSpace(string(data))
		if err := Validate(id); err != nil {
			return "", fmt.Errorf("machine id in %s: %w", path, err)
		}
		return id, nil
	case !errors.Is(err, os.ErrNotExist):
		return "", fmt.Errorf("reading machine id: %w", err)
	}

	host, err := os.Hostname()
	if err != nil {
		host = "machine"
	}

	id := Generate(host)
	if err := utils.WriteFileAtomic(path, []byte(id+"\n"), 0o644); err != nil {
		return "", fmt.Errorf("saving machine id: %w", err)
	}
	return id, nil
}

// Generate builds a fresh identity from a hostname: the lowercased host with
// spaces replaced, cut to 20 characters, plus six random hex digits.
func Generate(host string) string {
	h := strings.ToLower(strings.TrimSpace(host))
	h = strings.ReplaceAll(h, " ", "-")
	h = strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r == '.' {
			return '-'
		}
		return r
	}, h)
	if len(h) > maxHostLen {
		h = h[:maxHostLen]
	}
	if h == "" {
		h = "machine"
	}

	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:6]
	return h + "-" + suffix
}

// Validate rejects identities that cannot name a journal file.
func Validate(id string) error {
	switch {
	case id == "":
		return errors.New("machine id is empty")
	case strings.ContainsAny(id, `/\`) || strings.HasPrefix(id, "."):
		return fmt.Errorf("machine id %q is not a valid file name", id)
	}
	return nil
}
