// Package recordcmder provides the commands that write to memory: observe,
// relate, unrelate, session, pin, and snapshot.
//
// Every command takes the base directory lock for its duration and is
// refused while a daemon holds it; agents write through the daemon's API or
// MCP tools instead.
package recordcmder

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	localcmd "github.com/ryanlack616/howell-brain/cmd/howell/local"
	"github.com/ryanlack616/howell-brain/pkg/cliui"
	"github.com/ryanlack616/howell-brain/pkg/lockfile"
)

// writeCommander carries the flags common to every writing command.
type writeCommander struct {
	storage localcmd.StorageFlags
	asJSON  bool
}

func (w *writeCommander) addFlags(cmd *cobra.Command) {
	localcmd.AddStorageFlags(cmd, &w.storage)
	cmd.Flags().BoolVar(&w.asJSON, "json", false, "Print the result as JSON")
}

// withLocal opens the base directory and runs fn against the bootstrapped
// brain. The result of fn is printed as JSON when --json is set; otherwise
// fn's summary line is printed.
func (w *writeCommander) withLocal(cmd *cobra.Command, fn func(l *localcmd.Local) (any, string, error)) error {
	cfg, err := localcmd.LoadConfig(cmd, localcmd.StorageKeys...)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	l, err := localcmd.Open(cmd.Context(), cfg, localcmd.Logger(cmd))
	if err != nil {
		if errors.Is(err, lockfile.ErrLocked) {
			return fmt.Errorf("%w\n\nA howell daemon owns this directory; write through its API at %s",
				err, localcmd.DaemonTarget(cfg))
		}
		return err
	}
	defer l.Close()

	out, summary, err := fn(l)
	if err != nil {
		return err
	}

	if w.asJSON {
		return localcmd.PrintJSON(os.Stdout, out)
	}
	fmt.Printf("  %s %s\n", cliui.SuccessMark, summary)
	return nil
}
