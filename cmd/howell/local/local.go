// Package localcmd opens the howell base directory for CLI commands and falls
// back to a running daemon's API for read-only commands.
package localcmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/ryanlack616/howell-brain/api"
	"github.com/ryanlack616/howell-brain/pkg/brain"
	"github.com/ryanlack616/howell-brain/pkg/config"
	"github.com/ryanlack616/howell-brain/pkg/dotdir"
	"github.com/ryanlack616/howell-brain/pkg/lockfile"
	"github.com/ryanlack616/howell-brain/pkg/logger"
	"github.com/ryanlack616/howell-brain/pkg/search"
	"github.com/ryanlack616/howell-brain/pkg/tier"
)

// StorageKeys are the flag registry keys of every command that opens the
// base directory.
var StorageKeys = []string{
	config.FlagRoot,
	config.FlagMachine,
	config.FlagHotCapacity,
	config.FlagClockSkew,
	config.FlagSearchProvider,
}

// StorageFlags holds the targets of the flags registered by AddStorageFlags.
// Values are read back through viper, so the fields only anchor the flags.
type StorageFlags struct {
	root           string
	machine        string
	hotCapacity    uint
	clockSkew      string
	searchProvider string
}

// AddStorageFlags registers the flags named by StorageKeys on cmd.
func AddStorageFlags(cmd *cobra.Command, f *StorageFlags) {
	config.AddStringFlag(cmd, config.Flags, config.FlagRoot, &f.root)
	config.AddStringFlag(cmd, config.Flags, config.FlagMachine, &f.machine)
	config.AddUintFlag(cmd, config.Flags, config.FlagHotCapacity, &f.hotCapacity)
	config.AddStringFlag(cmd, config.Flags, config.FlagClockSkew, &f.clockSkew)
	config.AddStringFlag(cmd, config.Flags, config.FlagSearchProvider, &f.searchProvider)
}

// LoadConfig resolves the configuration of cmd through the viper precedence
// chain, binding the registered flags named by keys.
func LoadConfig(cmd *cobra.Command, keys ...string) (*config.Config, error) {
	configDir, _ := cmd.Flags().GetString("config-dir")

	v, err := config.InitViper(configDir)
	if err != nil {
		return nil, err
	}
	config.BindRegisteredFlags(v, cmd, config.Flags, keys)

	return config.FromViper(v), nil
}

// Logger returns the logger for short-lived CLI commands: pretty output on
// stderr when debugging, silent otherwise. Warnings that matter reach the
// user through the bootstrap context instead.
func Logger(cmd *cobra.Command) *slog.Logger {
	debug, _ := cmd.Flags().GetBool("debug")
	if !debug {
		return logger.Nop()
	}
	return logger.New(
		logger.WithDebug(true),
		logger.WithPretty(term.IsTerminal(int(os.Stderr.Fd()))),
		logger.WithWriter(os.Stderr),
	)
}

// Local is a bootstrapped brain owned by this process for the duration of
// one command.
type Local struct {
	Brain   *brain.Brain
	Context *brain.Context
	lock    *lockfile.Lock
}

// Open takes the base directory lock, then creates and bootstraps a brain.
// The returned error wraps lockfile.ErrLocked when a daemon (or another
// command) holds the directory.
func Open(ctx context.Context, cfg *config.Config, log *slog.Logger) (*Local, error) {
	layout := dotdir.NewLayout(cfg.Storage.Root)
	if err := layout.Ensure(); err != nil {
		return nil, &brain.StorageIOError{Op: "prepare", Path: layout.Root, Err: err}
	}

	lock, err := lockfile.Acquire(layout.Lock, layout.Daemon)
	if err != nil {
		return nil, err
	}

	b, err := brain.New(cfg, brain.WithLogger(log))
	if err != nil {
		_ = lock.Release()
		return nil, err
	}

	if err := lock.SaveOwner(&lockfile.Owner{Machine: b.Machine()}); err != nil {
		log.Warn("could not record lock owner", "error", err)
	}

	bc, err := b.Bootstrap(ctx)
	if err != nil {
		_ = b.Close()
		_ = lock.Release()
		return nil, fmt.Errorf("bootstrapping: %w", err)
	}

	return &Local{Brain: b, Context: bc, lock: lock}, nil
}

// Close releases the brain and the lock.
func (l *Local) Close() error {
	return errors.Join(l.Brain.Close(), l.lock.Release())
}

// DaemonTarget returns the API URL of the process holding the lock: the URL
// it recorded, or the configured client target.
func DaemonTarget(cfg *config.Config) string {
	layout := dotdir.NewLayout(cfg.Storage.Root)
	if owner, err := lockfile.LoadOwner(layout.Daemon); err == nil && owner != nil && owner.APIURL != "" {
		return owner.APIURL
	}
	return cfg.Client.APITarget
}

// Reader is the read-only surface shared by a Local brain and a daemon Client.
type Reader interface {
	Bootstrap(ctx context.Context, refresh bool) (*brain.Context, error)
	Status(ctx context.Context) (*brain.Status, error)
	Search(ctx context.Context, query string) (search.Results, error)
	Tier(ctx context.Context, t tier.Tier) (*api.TierResponse, error)
	Close() error
}

// OpenReader opens the base directory locally, or talks to the daemon when
// the directory is locked.
func OpenReader(ctx context.Context, cfg *config.Config, log *slog.Logger) (Reader, error) {
	l, err := Open(ctx, cfg, log)
	if err == nil {
		return l, nil
	}
	if !errors.Is(err, lockfile.ErrLocked) {
		return nil, err
	}

	target := DaemonTarget(cfg)
	log.Debug("base directory is locked, reading through the daemon", "target", target)
	return NewClient(target), nil
}

// Bootstrap returns the context of the bootstrap run by Open, or runs it
// again when refresh is set.
func (l *Local) Bootstrap(ctx context.Context, refresh bool) (*brain.Context, error) {
	if !refresh {
		return l.Context, nil
	}
	bc, err := l.Brain.Bootstrap(ctx)
	if err != nil {
		return nil, err
	}
	l.Context = bc
	return bc, nil
}

func (l *Local) Status(_ context.Context) (*brain.Status, error) {
	return l.Brain.Status()
}

func (l *Local) Search(ctx context.Context, query string) (search.Results, error) {
	return l.Brain.Search(ctx, query)
}

func (l *Local) Tier(_ context.Context, t tier.Tier) (*api.TierResponse, error) {
	contents, err := l.Brain.ReadTier(t)
	if err != nil {
		return nil, err
	}
	return &api.TierResponse{
		Tier:     t,
		Contents: contents,
		Markdown: tier.Render(t, contents),
	}, nil
}

// PrintJSON writes v as indented JSON.
func PrintJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
