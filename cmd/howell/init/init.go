// Package initcmder provides the init command for initializing a local .howell
// directory in the current working directory.
package initcmder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ryanlack616/howell-brain/pkg/cliui"
	"github.com/ryanlack616/howell-brain/pkg/config"
	"github.com/ryanlack616/howell-brain/pkg/dotdir"
	"github.com/ryanlack616/howell-brain/pkg/machine"
)

const (
	dirName = ".howell"

	presetFetchTimeout = 15 * time.Second
	maxPresetBytes     = 1 << 20
)

const initLongDesc string = `Initialize a new .howell/ directory in the current working directory.

Creates a local .howell/ directory that takes precedence over the default
~/.howell/ directory, with a config.toml and the storage layout (entities,
journals, memory tiers, procedures). A machine identity is generated the
first time.

Use --preset to start from a deployment preset or from a remote config.toml:
  standalone   one machine, in-memory scan search, no sync watcher
  synced       the directory is shared by a file-sync tool (default layout)
  streaming    synced, and journal entries are published to Kafka

Examples:
  howell init
  howell init --preset synced
  howell init --preset https://example.com/howell/config.toml`

const initShortDesc string = "Initialize a local .howell/ directory"

func NewInitCmd() *cobra.Command {
	var preset string

	cmd := &cobra.Command{
		Use:   "init",
		Short: initShortDesc,
		Long:  initLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runInit(cmd.Context(), cmd.OutOrStdout(), preset)
		},
	}

	cmd.Flags().StringVar(&preset, "preset", "",
		"Preset name ("+strings.Join(config.ValidPresetNames(), ", ")+") or URL of a config.toml")

	return cmd
}

func runInit(ctx context.Context, w io.Writer, preset string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current directory: %w", err)
	}

	dir := filepath.Join(cwd, dirName)

	cfger, err := config.NewConfiger(dir)
	if err != nil {
		return fmt.Errorf("creating .howell directory: %w", err)
	}

	_, statErr := os.Stat(cfger.GetTarget())
	exists := statErr == nil

	switch {
	case preset != "":
		cfg, err := loadPreset(ctx, preset)
		if err != nil {
			return err
		}
		if err := cfger.SaveConfig(cfg); err != nil {
			return err
		}
	case !exists:
		if err := cfger.SaveConfig(config.NewDefaultConfig()); err != nil {
			return err
		}
	}

	cfg, err := cfger.LoadConfig()
	if err != nil {
		return err
	}

	root := cfg.Storage.Root
	if root == "" {
		root = dir
	}
	layout := dotdir.NewLayout(root)
	if err := layout.Ensure(); err != nil {
		return err
	}

	id, err := machine.Resolve(layout.MachineID, cfg.Machine.ID)
	if err != nil {
		return err
	}

	if exists && preset == "" {
		fmt.Fprintf(w, "  %s Already initialized: %s\n", cliui.SuccessMark, dir)
	} else {
		fmt.Fprintf(w, "  %s Initialized .howell directory: %s\n", cliui.SuccessMark, dir)
	}
	fmt.Fprintf(w, "  %s %s\n", cliui.KeyStyle.Render("Machine:"), cliui.NameStyle.Render(id))
	return nil
}

// loadPreset resolves a preset name, or fetches a config.toml when preset
// is an http(s) URL.
func loadPreset(ctx context.Context, preset string) (*config.Config, error) {
	if !strings.HasPrefix(preset, "http://") && !strings.HasPrefix(preset, "https://") {
		return config.PresetConfig(preset)
	}

	ctx, cancel := context.WithTimeout(ctx, presetFetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, preset, nil)
	if err != nil {
		return nil, fmt.Errorf("building preset request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching preset: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching preset: %s returned %d", preset, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxPresetBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading preset: %w", err)
	}
	if len(data) > maxPresetBytes {
		return nil, errors.New("preset config is larger than 1MiB")
	}

	return config.ParseConfigTOML(data)
}
