package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"composeim/internal/config"
	"composeim/internal/ibus"
	"composeim/internal/logging"
	"composeim/internal/session"
	"composeim/internal/store"
	"composeim/internal/wayland"
	"composeim/internal/xkb"
)

func newRunCmd(a *app) *cobra.Command {
	var backend string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the input method on the configured backend",
		Long: `Connects to the compositor (backend "wayland") or the IBus daemon
(backend "ibus") and composes Multi_key sequences until interrupted.

The config file is watched; a changed logging.level applies immediately.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			if backend != "" {
				cfg.Backend = backend
			}
			return a.serve(cmd.Context(), cfg)
		},
	}
	cmd.Flags().StringVar(&backend, "backend", "", "override backend (wayland or ibus)")
	return cmd
}

// daemon is the wiring of one running backend.
type daemon struct {
	cfg   *config.Config
	log   *logging.Logger
	store *store.Store
	codec session.Codec
	sess  *session.Session

	closers []func() error
}

func (d *daemon) close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			d.log.Warn("shutdown", "error", err)
		}
	}
}

func (a *app) serve(parent context.Context, cfg *config.Config) error {
	if parent == nil {
		parent = context.Background()
	}
	if cfg.Backend != config.BackendWayland && cfg.Backend != config.BackendIBus {
		return fmt.Errorf("unknown backend %q", cfg.Backend)
	}

	log, err := a.newLogger(cfg, cfg.Backend)
	if err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	defer log.Close()

	d := &daemon{cfg: cfg, log: log}
	defer d.close()

	if err := d.openStore(); err != nil {
		return err
	}
	if err := d.openCodec(); err != nil {
		return err
	}

	sessCfg := session.Config{
		Codec:  d.codec,
		Logger: log.WithComponent("session").Logger,
	}
	if d.store != nil {
		sessCfg.Recorder = d.store
	}
	d.sess = session.New(sessCfg)

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a.watchConfig(ctx, d)

	crash := logging.NewCrashHandler(logging.CrashHandlerConfig{
		Version:   Version,
		Component: cfg.Backend,
		OnCrash: func(r logging.CrashReport) {
			log.Error("panic recovered", "panic", r.PanicValue)
		},
	})

	var stats func() session.Stats
	err = crash.Guard(map[string]any{"backend": cfg.Backend}, func() error {
		switch cfg.Backend {
		case config.BackendIBus:
			return d.runIBus(ctx, &stats)
		default:
			stats = d.sess.Stats
			return d.runWayland(ctx)
		}
	})

	if stats != nil {
		d.snapshot(stats())
	}
	if errors.Is(err, context.Canceled) {
		log.Info("stopped")
		return nil
	}
	return err
}

func (d *daemon) openStore() error {
	if !d.cfg.Stats.Enabled {
		return nil
	}
	st, err := store.Open(d.cfg.Stats.Path)
	if err != nil {
		return fmt.Errorf("stats: %w", err)
	}
	d.store = st
	d.closers = append(d.closers, st.Close)

	if days := d.cfg.Stats.RetentionDays; days > 0 {
		n, err := st.Prune(time.Now().AddDate(0, 0, -days))
		if err != nil {
			d.log.Warn("prune stats", "error", err)
		} else if n > 0 {
			d.log.Info("pruned stats", "runs", n, "days", days)
		}
	}
	return nil
}

// openCodec prefers libxkbcommon and falls back to the keymap-less codec
// unless the configuration requires xkb. The IBus daemon delivers keysyms,
// so that backend never needs a keymap.
func (d *daemon) openCodec() error {
	d.codec = session.PlainCodec{}
	if d.cfg.Backend == config.BackendIBus || !d.cfg.Keyboard.XKB {
		return nil
	}

	c, err := xkb.New(d.log.WithComponent("xkb").Logger)
	if err != nil {
		if d.cfg.Keyboard.RequireXKB {
			return err
		}
		d.log.Warn("xkb unavailable, keys will pass through undecoded", "error", err)
		return nil
	}
	d.codec = c
	d.closers = append(d.closers, c.Close)
	return nil
}

func (d *daemon) runWayland(ctx context.Context) error {
	conn, err := wayland.Dial(d.cfg.Wayland.Display)
	if err != nil {
		return err
	}
	client := wayland.NewClient(conn, wayland.Config{
		Activation: d.sess.ActivationHandler(),
		Keyboard:   d.sess.KeyboardHandler(),
		Logger:     d.log.WithComponent("wayland").Logger,
	})
	d.log.Info("running", "display", d.cfg.Wayland.Display)
	return client.Run(ctx)
}

func (d *daemon) runIBus(ctx context.Context, stats *func() session.Stats) error {
	conn, err := ibus.Connect(d.cfg.IBus.Address)
	if err != nil {
		return err
	}
	defer conn.Close()

	svc := ibus.NewService(conn, d.sess, d.log.WithComponent("ibus").Logger)
	if err := ibus.Register(conn, svc); err != nil {
		return err
	}
	*stats = svc.Stats
	d.log.Info("running", "bus_name", ibus.BusName)

	<-ctx.Done()
	return ctx.Err()
}

func (d *daemon) snapshot(stats session.Stats) {
	if d.store == nil || !d.cfg.Stats.SnapshotOnExit {
		return
	}
	if err := d.store.SaveSnapshot(d.cfg.Backend, time.Now(), stats); err != nil {
		d.log.Warn("save snapshot", "error", err)
	}
}

// watchConfig applies logging.level changes from the config file while
// running. Other sections need a restart.
func (a *app) watchConfig(ctx context.Context, d *daemon) {
	path := a.resolvedPath()
	if path == "" {
		return
	}
	loader := config.NewLoader(path)
	if _, err := loader.Load(); err != nil {
		d.log.Warn("config watch disabled", "error", err)
		return
	}
	loader.OnChange(func(_, next *config.Config) {
		if a.logLevel != "" {
			return
		}
		level, err := logging.ParseLevel(next.Logging.Level)
		if err != nil || level == d.log.Level() {
			return
		}
		d.log.SetLevel(level)
		d.log.Info("log level changed", "level", logging.LevelString(level))
	})
	if err := loader.Watch(); err != nil {
		d.log.Warn("config watch disabled", "error", err)
		return
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case err := <-loader.Errors():
				d.log.Warn("config reload", "error", err)
			}
		}
	}()
	d.closers = append(d.closers, loader.Close)
}
