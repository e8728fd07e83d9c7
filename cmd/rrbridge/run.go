package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rrbridge/rrbridge/internal/config"
	"github.com/rrbridge/rrbridge/internal/diag"
	"github.com/rrbridge/rrbridge/internal/engine/local"
	"github.com/rrbridge/rrbridge/internal/lifecycle"
	"github.com/rrbridge/rrbridge/internal/metrics"
	"github.com/rrbridge/rrbridge/internal/persist"
	"github.com/rrbridge/rrbridge/internal/scripting"
	"github.com/rrbridge/rrbridge/internal/system"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newRunCmd(load func() (*config.Config, error)) *cobra.Command {
	var ticks int
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the engine and run the simulation loop",
		Example: "  rrbridge run\n" +
			"  rrbridge run --ticks 600 -c config/rrbridge.toml",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg, ticks)
		},
	}
	cmd.Flags().IntVar(&ticks, "ticks", 0, "stop after this many ticks (0 runs until signalled)")
	return cmd
}

func run(ctx context.Context, cfg *config.Config, maxTicks int) error {
	if ctx == nil {
		ctx = context.Background()
	}

	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer log.Sync()

	printSection("rrbridge")
	printStat("tick rate", cfg.Bridge.TickRate)
	printStat("id reuse", cfg.Bridge.IDReuse)
	printStat("engine overrides", len(cfg.Overrides()))

	// 1. Metrics
	var m *metrics.Bridge
	if cfg.Metrics.Enabled {
		promReg := prometheus.NewRegistry()
		promReg.MustRegister(collectors.NewGoCollector())
		m = metrics.New(promReg)

		srv := &http.Server{
			Addr:              cfg.Metrics.BindAddress,
			Handler:           promhttp.HandlerFor(promReg, promhttp.HandlerOpts{}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("metrics server stopped", zap.Error(err))
			}
		}()
		defer srv.Close()
		printOK("metrics on " + cfg.Metrics.BindAddress)
	}

	// 2. Diagnostics
	ring := diag.NewRing(cfg.Bridge.DiagRingSize)
	recorders := diag.Tee{ring}
	var journal *diag.Journal
	if cfg.Database.Enabled {
		db, err := persist.NewDB(ctx, cfg.Database, log.Named("db"))
		if err != nil {
			return fmt.Errorf("database: %w", err)
		}
		defer db.Close()

		journal, err = diag.NewJournal(persist.NewJournalRepo(db), cfg.Bridge.JournalLimit, log.Named("journal"))
		if err != nil {
			return err
		}
		recorders = append(recorders, journal)
		printOK("diagnostics journal " + journal.Session().String())
	}

	// 3. Engine and bridge
	eng := local.New(log.Named("engine"))
	ctrl := lifecycle.New(eng, log.Named("lifecycle"), lifecycle.WithRecorder(recorders))

	reuse, err := cfg.ReusePolicy()
	if err != nil {
		return err
	}
	bridge := system.NewBridge(ctrl, system.Options{
		Reuse:        reuse,
		MaxListeners: int(cfg.Engine.Init.MaxListeners),
		UnitScale:    cfg.Bridge.UnitScale,
		Recorder:     recorders,
		Metrics:      m,
	}, log)

	if err := ctrl.Init(cfg.Engine); err != nil {
		return fmt.Errorf("engine init: %w", err)
	}
	defer ctrl.Term()
	if err := ctrl.LoadInitBank(); err != nil {
		return fmt.Errorf("init bank: %w", err)
	}
	printOK("engine up: " + fmt.Sprint(eng.Up()))

	if cfg.Engine.Plugin.SpawnDefaultListener {
		bridge.Scene.SpawnDefaultListener()
	}

	// 4. Scenario
	lua, err := scripting.NewEngine(cfg.Scripting.ScriptsDir, log.Named("lua"))
	if err != nil {
		return fmt.Errorf("scripting: %w", err)
	}
	defer lua.Close()
	scenario := bridge.AddScenario(lua)
	if err := scenario.Start(); err != nil {
		return fmt.Errorf("scenario: %w", err)
	}
	printStat("banks loaded", len(eng.Banks()))

	var persistSys *system.PersistenceSystem
	if journal != nil {
		persistSys = bridge.AddJournal(journal, cfg.Bridge.JournalFlushTicks)
	}

	// 5. Loop
	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(shutdownCh)

	ticker := time.NewTicker(cfg.Bridge.TickRate)
	defer ticker.Stop()

	printSection("running")
	fmt.Println()

	for {
		select {
		case <-ticker.C:
			start := time.Now()
			bridge.Runner.Tick(cfg.Bridge.TickRate)
			m.ObserveTick(time.Since(start))

			if maxTicks > 0 && bridge.Runner.Ticks() >= uint64(maxTicks) {
				log.Info("tick limit reached", zap.Int("ticks", maxTicks))
				shutdown(ctrl, persistSys, ring, log)
				return nil
			}
		case sig := <-shutdownCh:
			log.Info("shutdown signal", zap.String("signal", sig.String()))
			shutdown(ctrl, persistSys, ring, log)
			return nil
		case <-ctx.Done():
			shutdown(ctrl, persistSys, ring, log)
			return ctx.Err()
		}
	}
}

// shutdown terminates the engine first so its teardown failures make it into
// the final journal flush.
func shutdown(ctrl *lifecycle.Controller, persistSys *system.PersistenceSystem, ring *diag.Ring, log *zap.Logger) {
	ctrl.Term()
	if persistSys != nil {
		persistSys.FlushNow()
	}
	if n := len(ring.Entries()); n > 0 {
		log.Warn("engine failures recorded this session", zap.Int("count", n))
	}
	log.Info("stopped")
}
