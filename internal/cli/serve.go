package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/showrunner/internal/auxtimer"
	"github.com/roach88/showrunner/internal/config"
	"github.com/roach88/showrunner/internal/dispatch"
	"github.com/roach88/showrunner/internal/engine"
	"github.com/roach88/showrunner/internal/eventstore"
	"github.com/roach88/showrunner/internal/metrics"
	"github.com/roach88/showrunner/internal/mirror"
	"github.com/roach88/showrunner/internal/rundown"
	"github.com/roach88/showrunner/internal/store"
	"github.com/roach88/showrunner/internal/transport/httpapi"
	"github.com/roach88/showrunner/internal/transport/ws"
)

const shutdownTimeout = 10 * time.Second

// ServeOptions holds flags for the serve command. Flags win over the
// environment.
type ServeOptions struct {
	*RootOptions
	Addr     string
	Rundown  string
	Database string
	EnvFiles []string
	Fresh    bool

	// Listener replaces the TCP listener (for testing).
	Listener net.Listener
	// Ready is closed once the server accepts connections (for testing).
	Ready chan struct{}
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the show runtime",
		Long: `Load a rundown, restore the last saved playback state and serve the
runtime over HTTP and WebSocket until interrupted.

Settings come from the environment (SHOWRUNNER_*), optionally read from a
.env file first. Flags override both.

Example:
  showrunner serve --rundown ./show.yaml --db ./showrunner.db
  showrunner serve --rundown ./show.yaml --fresh
  SHOWRUNNER_MIRROR_REDIS_ADDR=localhost:6379 showrunner serve --rundown ./show.yaml`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "", "HTTP listen address (default from SHOWRUNNER_HTTP_ADDR)")
	cmd.Flags().StringVar(&opts.Rundown, "rundown", "", "path to the rundown document")
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to the SQLite restore database")
	cmd.Flags().StringSliceVar(&opts.EnvFiles, "env-file", nil, "dotenv files to load (default .env)")
	cmd.Flags().BoolVar(&opts.Fresh, "fresh", false, "discard the saved restore point and start stopped")

	return cmd
}

// loadConfig merges the environment and the flags and validates the result.
func loadConfig(opts *ServeOptions) (config.Config, error) {
	cfg, err := config.Load(opts.EnvFiles...)
	if err != nil {
		return config.Config{}, err
	}
	if opts.Addr != "" {
		cfg.HTTPAddr = opts.Addr
	}
	if opts.Rundown != "" {
		cfg.RundownPath = opts.Rundown
	}
	if opts.Database != "" {
		cfg.DBPath = opts.Database
	}
	if opts.Verbose {
		cfg.LogLevel = "debug"
	}
	if cfg.Version == "" {
		cfg.Version = Version
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	if cfg.RundownPath == "" {
		return config.Config{}, errors.New("no rundown: pass --rundown or set " + config.Prefix + "RUNDOWN")
	}
	return cfg, nil
}

// newLogger builds the process logger from the configured level and format.
func newLogger(w io.Writer, level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q", level)
	}
	hopts := &slog.HandlerOptions{Level: lvl}
	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(w, hopts)), nil
	}
	return slog.New(slog.NewTextHandler(w, hopts)), nil
}

func runServe(opts *ServeOptions, cmd *cobra.Command) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	logger, err := newLogger(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	slog.SetDefault(logger)

	slog.Info("loading rundown", "path", cfg.RundownPath)
	doc, err := rundown.LoadFile(cfg.RundownPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load rundown", err)
	}

	slog.Info("opening database", "path", cfg.DBPath)
	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()

	m := metrics.New()
	hub := ws.NewHub()
	mr := newMirror(cfg.Mirror, m)

	dispatchOpts := []dispatch.Option{
		dispatch.WithClients(hub),
		dispatch.WithVersion(cfg.Version),
		dispatch.WithChangeWindow(cfg.ChangeWindow),
	}
	if mr != nil {
		dispatchOpts = append(dispatchOpts, dispatch.WithMirror(mr))
	}
	eng, err := engine.New(doc,
		engine.WithObserver(m),
		engine.WithRestore(st, cfg.RestoreInterval),
		engine.WithAuxTimers(cfg.AuxTimers, auxtimer.DefaultDuration),
		engine.WithTickInterval(cfg.TickInterval),
		engine.WithTickTolerance(cfg.TickTolerance),
		engine.WithQueueSize(cfg.QueueSize),
		engine.WithDispatchOptions(dispatchOpts...),
	)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to create engine", err)
	}

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if opts.Fresh {
		if err := st.Clear(ctx); err != nil {
			return WrapExitError(ExitCommandError, "failed to clear restore point", err)
		}
		slog.Info("restore point cleared")
	}
	if _, err := eng.Restore(ctx); err != nil {
		// The show still starts, from a stopped engine.
		slog.Error("restore failed, starting stopped", "error", err)
	}

	unbind := hub.Bind(eng, eng.Events())
	defer unbind()

	mirrorDone := startMirror(ctx, mr, cfg.Mirror.Interval, eng.Events())

	engineDone := make(chan error, 1)
	go func() { engineDone <- eng.Run(ctx) }()

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpapi.NewHandler(eng, logger).Routes(m.Handler(), hub),
		ReadHeaderTimeout: 5 * time.Second,
	}
	ln := opts.Listener
	if ln == nil {
		ln, err = net.Listen("tcp", cfg.HTTPAddr)
		if err != nil {
			stop()
			<-engineDone
			<-mirrorDone
			return WrapExitError(ExitCommandError, "failed to listen", err)
		}
	}
	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.Serve(ln) }()

	slog.Info("showrunner listening", "addr", ln.Addr().String(), "version", cfg.Version)
	fmt.Fprintf(cmd.OutOrStdout(), "Showrunner listening on %s. Press Ctrl-C to stop.\n", ln.Addr())
	if opts.Ready != nil {
		close(opts.Ready)
	}

	var runErr error
	select {
	case <-ctx.Done():
		slog.Info("shutting down")
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			runErr = WrapExitError(ExitFailure, "http server failed", err)
		}
	case err := <-engineDone:
		engineDone <- err
		runErr = WrapExitError(ExitFailure, "engine stopped unexpectedly", err)
	}
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("http shutdown incomplete", "error", err)
	}
	if err := <-engineDone; err != nil && !errors.Is(err, context.Canceled) && runErr == nil {
		runErr = WrapExitError(ExitFailure, "engine error", err)
	}
	<-mirrorDone

	slog.Info("showrunner stopped")
	return runErr
}

// newMirror builds the configured sinks. It returns nil when no sink is set.
func newMirror(cfg config.Mirror, m *metrics.Metrics) *mirror.Mirror {
	if !cfg.Enabled() {
		return nil
	}
	var sinks []mirror.Sink
	if cfg.RedisAddr != "" {
		sinks = append(sinks, mirror.NewRedisSink(cfg.RedisAddr, cfg.RedisKey, cfg.RedisChannel))
	}
	if cfg.MQTTBroker != "" {
		sinks = append(sinks, mirror.NewMQTTSink(cfg.MQTTBroker, cfg.MQTTClientID, cfg.MQTTTopic))
	}
	return mirror.New(sinks, mirror.WithTimeout(cfg.Timeout), mirror.WithObserver(m))
}

// startMirror feeds mr from the store at most once per interval. The returned
// channel is closed once the mirror has flushed and closed its sinks.
func startMirror(ctx context.Context, mr *mirror.Mirror, interval time.Duration, events *eventstore.Store) <-chan struct{} {
	done := make(chan struct{})
	if mr == nil {
		close(done)
		return done
	}

	throttled := eventstore.Throttle(interval, mr.Notify)
	unsubscribe := events.Subscribe(throttled.Notify)

	go func() {
		defer close(done)
		defer throttled.Stop()
		defer unsubscribe()
		mr.Run(ctx)
	}()
	return done
}
