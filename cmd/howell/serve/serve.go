// Package servecmder provides the serve command, which runs the howell daemon.
package servecmder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/ryanlack616/howell-brain/api"
	mcpapi "github.com/ryanlack616/howell-brain/api/mcp"
	localcmd "github.com/ryanlack616/howell-brain/cmd/howell/local"
	"github.com/ryanlack616/howell-brain/pkg/brain"
	"github.com/ryanlack616/howell-brain/pkg/config"
	"github.com/ryanlack616/howell-brain/pkg/dotdir"
	"github.com/ryanlack616/howell-brain/pkg/eventstream"
	"github.com/ryanlack616/howell-brain/pkg/eventstream/kafka"
	"github.com/ryanlack616/howell-brain/pkg/eventstream/nop"
	"github.com/ryanlack616/howell-brain/pkg/eventstream/worker"
	"github.com/ryanlack616/howell-brain/pkg/heartbeat"
	"github.com/ryanlack616/howell-brain/pkg/lockfile"
	"github.com/ryanlack616/howell-brain/pkg/logger"
	"github.com/ryanlack616/howell-brain/pkg/utils"
	"github.com/ryanlack616/howell-brain/pkg/watch"
)

type serveCommander struct {
	storage localcmd.StorageFlags

	listen        string
	heartbeat     string
	eventProvider string
	eventBrokers  string
	eventTopic    string
	noWatch       bool

	debug  bool
	logger *slog.Logger
}

var serveFlags = append([]string{
	config.FlagAPIListen,
	config.FlagHeartbeat,
	config.FlagEventProvider,
	config.FlagEventBrokers,
	config.FlagEventTopic,
}, localcmd.StorageKeys...)

const serveLongDesc string = `Run the howell daemon.

The daemon takes the base directory lock, bootstraps memory, and serves it
over HTTP with the MCP tools mounted at /mcp. In the background it:

  - runs the heartbeat (eviction, urgency scoring, integrity checks)
  - reloads memory when the file-sync tool delivers another machine's files
  - publishes journal entries to Kafka when an event stream is configured

Logs go to stdout and, as JSON, to howell.log in the base directory.

Examples:
  howell serve
  howell serve --listen :7777 --heartbeat 1h
  howell serve --event-provider kafka --event-brokers localhost:9092`

const serveShortDesc string = "Run the howell daemon"

func NewServeCmd() *cobra.Command {
	cmder := &serveCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}

			cfg, err := localcmd.LoadConfig(cmd, serveFlags...)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			if cmder.noWatch {
				cfg.Sync.Watch = false
			}

			return cmder.run(cmd.Context(), cfg)
		},
	}

	localcmd.AddStorageFlags(cmd, &cmder.storage)
	config.AddStringFlag(cmd, config.Flags, config.FlagAPIListen, &cmder.listen)
	config.AddStringFlag(cmd, config.Flags, config.FlagHeartbeat, &cmder.heartbeat)
	config.AddStringFlag(cmd, config.Flags, config.FlagEventProvider, &cmder.eventProvider)
	config.AddStringFlag(cmd, config.Flags, config.FlagEventBrokers, &cmder.eventBrokers)
	config.AddStringFlag(cmd, config.Flags, config.FlagEventTopic, &cmder.eventTopic)
	cmd.Flags().BoolVar(&cmder.noWatch, "no-watch", false, "Do not reload when synced files change")

	return cmd
}

func (c *serveCommander) run(ctx context.Context, cfg *config.Config) error {
	layout := dotdir.NewLayout(cfg.Storage.Root)
	if err := layout.Ensure(); err != nil {
		return fmt.Errorf("preparing %s: %w", layout.Root, err)
	}

	lock, err := lockfile.Acquire(layout.Lock, layout.Daemon)
	if err != nil {
		return fmt.Errorf("starting daemon: %w", err)
	}
	defer lock.Release()

	logFile, err := os.OpenFile(layout.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}
	defer logFile.Close()

	c.logger = logger.Multi(
		logger.New(
			logger.WithDebug(c.debug),
			logger.WithPretty(term.IsTerminal(int(os.Stdout.Fd()))),
		),
		logger.New(
			logger.WithDebug(c.debug),
			logger.WithJSON(true),
			logger.WithWriter(logFile),
		),
	)

	opts := []brain.Option{brain.WithLogger(c.logger)}
	events, err := c.newEventPool(cfg)
	if err != nil {
		return err
	}
	if events != nil {
		opts = append(opts, brain.WithEvents(events))
	}

	b, err := brain.New(cfg, opts...)
	if err != nil {
		if events != nil {
			_ = events.Close()
		}
		return fmt.Errorf("opening memory: %w", err)
	}
	defer b.Close()

	if err := lock.SaveOwner(&lockfile.Owner{
		Machine: b.Machine(),
		APIURL:  apiURL(cfg.API.Listen),
		LogPath: layout.LogFile,
	}); err != nil {
		c.logger.Warn("could not record lock owner", "error", err)
	}

	bc, err := b.Bootstrap(ctx)
	if err != nil {
		return fmt.Errorf("bootstrapping: %w", err)
	}
	for _, w := range bc.Warnings {
		c.logger.Warn("bootstrap warning", "stage", w.Stage, "message", w.Message)
	}
	c.logger.Info("memory loaded",
		"machine", bc.Machine,
		"entities", len(bc.Entities),
		"relations", len(bc.Relations),
		"urgency", bc.Urgency.Level,
	)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	hb, err := c.newHeartbeat(cfg, b)
	if err != nil {
		return err
	}
	hb.Start(ctx)
	defer hb.Stop()

	if cfg.Sync.Watch {
		w, dirs := syncWatch(layout, b.Machine(), b.Reload, watch.WithLogger(c.logger))
		go func() {
			if err := w.Run(ctx, dirs...); err != nil {
				c.logger.Error("sync watcher stopped", "error", err)
			}
		}()
	}

	mcpServer, err := mcpapi.NewServer(mcpapi.Config{Brain: b, Logger: c.logger})
	if err != nil {
		return fmt.Errorf("creating MCP server: %w", err)
	}

	apiServer, err := api.NewServer(api.Config{
		ListenAddr: cfg.API.Listen,
		MCP:        mcpServer.Handler(),
	}, b, c.logger)
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	errChan := make(chan error, 1)
	go func() {
		c.logger.Info("starting API server", "listen", cfg.API.Listen, "version", utils.Version)
		if err := apiServer.Run(); err != nil {
			errChan <- fmt.Errorf("API server error: %w", err)
		}
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		c.logger.Info("shutting down")
		return apiServer.Shutdown()
	}
}

// newEventPool builds the asynchronous journal publisher, or returns nil
// when event_stream.provider is unset.
func (c *serveCommander) newEventPool(cfg *config.Config) (*worker.Pool, error) {
	var publisher eventstream.Publisher
	switch cfg.EventStream.Provider {
	case "":
		return nil, nil
	case "none":
		// Runs the event pipeline without a broker.
		publisher = nop.NewPublisher()
	case "kafka":
		p, err := kafka.NewPublisher(kafka.Config{
			Brokers: kafka.ParseBrokers(cfg.EventStream.Brokers),
			Topic:   cfg.EventStream.Topic,
		})
		if err != nil {
			return nil, fmt.Errorf("creating kafka publisher: %w", err)
		}
		c.logger.Info("publishing journal events", "brokers", cfg.EventStream.Brokers, "topic", cfg.EventStream.Topic)
		publisher = p
	default:
		return nil, fmt.Errorf("unknown event stream provider %q (available: none, kafka)", cfg.EventStream.Provider)
	}

	return worker.NewPool(&worker.Config{
		Publisher: publisher,
		Version:   utils.Version,
		Logger:    c.logger,
	})
}

func (c *serveCommander) newHeartbeat(cfg *config.Config, b *brain.Brain) (*heartbeat.Scheduler, error) {
	interval, err := cfg.Heartbeat.IntervalDuration()
	if err != nil {
		return nil, err
	}

	return heartbeat.New(interval, func(ctx context.Context) error {
		res, err := b.Heartbeat(ctx)
		if res != nil {
			c.logger.Info("heartbeat",
				"evicted", len(res.Evicted),
				"urgency", res.Urgency.Level,
				"score", res.Urgency.Score,
				"issues", len(res.Issues),
				"duration", res.Duration.Round(time.Millisecond),
			)
			for _, issue := range res.Issues {
				c.logger.Warn("integrity issue", "message", issue.Message)
			}
		}
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}, heartbeat.WithLogger(c.logger))
}

// syncWatch builds the watcher that reloads memory when another machine's
// journal or a procedure note arrives, and returns the directories to watch.
// entities/ and memory/ are left out: the daemon rewrites them on every
// mutation, entities are rebuilt from the journals, and tier files are read
// from disk on each access.
func syncWatch(layout dotdir.Layout, machine string, reload func(context.Context) error, opts ...watch.Option) (*watch.Watcher, []string) {
	own := filepath.Join(layout.Logs, machine+".jsonl")
	opts = append(opts, watch.WithIgnore(func(path string) bool { return path == own }))
	return watch.New(reload, opts...), []string{layout.Logs, layout.Procedures}
}

// apiURL turns a listen address into the URL clients on this machine use.
func apiURL(listen string) string {
	host, port, err := net.SplitHostPort(listen)
	if err != nil {
		return ""
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	return "http://" + net.JoinHostPort(host, port)
}
