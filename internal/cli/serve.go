package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/SmitUplenchwar2687/ratewarden/internal/config"
	"github.com/SmitUplenchwar2687/ratewarden/internal/recorder"
	"github.com/SmitUplenchwar2687/ratewarden/internal/server"
	"github.com/SmitUplenchwar2687/ratewarden/pkg/clock"
	"github.com/SmitUplenchwar2687/ratewarden/pkg/limiter"
)

func newServeCmd() *cobra.Command {
	var (
		configPath string
		rulesPath  string
		watchRules bool
		addr       string
		adminToken string
		recordFile string
		logLevel   string
	)
	so := &storageOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the ratewarden HTTP server",
		Long: `Starts an HTTP server that answers rate limit decisions.

Endpoints:
  GET  /                              Server info and current tick
  GET  /healthz                       Health check
  GET  /metrics                       Prometheus metrics
  WS   /ws                            Live decision and admin event feed
  POST /v1/limiters/{id}/check        Admission check (no quota spent)
  POST /v1/limiters/{id}/record       Consume quota after admitted work
  GET  /v1/limiters/{id}/bypass       Whitelist probe
  *    /v1/limiters/{id}/rules/...    Rule administration (token guarded)
  *    /v1/limiters/{id}/whitelist... Whitelist administration (token guarded)`,
		Example: `  ratewarden serve
  ratewarden serve --config ratewarden.yaml --rules rules.yaml --watch-rules
  ratewarden serve --storage redis --redis-host localhost:6379
  ratewarden serve --record traffic.ndjson`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Default()
			if configPath != "" {
				loaded, err := config.LoadFile(configPath)
				if err != nil {
					return err
				}
				cfg = loaded
			}
			if cmd.Flags().Changed("addr") {
				cfg.Server.Addr = addr
			}
			if cmd.Flags().Changed("admin-token") {
				cfg.Server.AdminToken = adminToken
			}
			if err := so.apply(cmd, &cfg.Storage); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			log, err := buildLogger(logLevel)
			if err != nil {
				return err
			}
			defer log.Sync()

			st, closeStore, err := openStore(cfg.Storage)
			if err != nil {
				return err
			}
			defer closeStore()

			clk := clock.NewSystem(cfg.Clock.BlockInterval)
			hub := server.NewHub(log)

			eng, err := limiter.New(st, clk,
				limiter.WithLogger(log),
				limiter.WithMaxWhitelistFilters(cfg.Limits.MaxWhitelistFilters),
				limiter.WithNotifier(limiter.NotifierFunc(func(ev limiter.Event) {
					hub.Broadcast(ev)
				})),
			)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if rulesPath != "" {
				if err := applyRulesFile(ctx, rulesPath, eng, log); err != nil {
					return err
				}
				if watchRules {
					watcher, err := config.NewWatcher(rulesPath, log)
					if err != nil {
						return err
					}
					defer watcher.Close()
					changes, err := watcher.Watch(ctx)
					if err != nil {
						return err
					}
					go func() {
						for range changes {
							if err := applyRulesFile(ctx, rulesPath, eng, log); err != nil {
								log.Warn("rules reload failed", zap.Error(err))
							}
						}
					}()
				}
			}

			var rec *recorder.Recorder
			if recordFile != "" {
				rec = recorder.New(nil)
			}

			reg := prometheus.NewRegistry()
			srvOpts := []server.Option{
				server.WithLogger(log),
				server.WithHub(hub),
				server.WithRegistry(reg),
			}
			if rec != nil {
				srvOpts = append(srvOpts, server.WithRecorder(rec))
			}
			if cfg.Metrics.Enabled {
				srvOpts = append(srvOpts, server.WithAdmission(limiter.NewTrackedLimiter(eng, reg)))
			}

			srv := server.New(server.Config{
				Addr:        cfg.Server.Addr,
				AdminToken:  cfg.Server.AdminToken,
				ClientRate:  cfg.Server.ClientRate,
				ClientBurst: cfg.Server.ClientBurst,
				Metrics:     cfg.Metrics.Enabled,
			}, eng, clk, srvOpts...)

			errCh := make(chan error, 1)
			go func() {
				errCh <- srv.Start()
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
				log.Info("shutting down")
				if rec != nil {
					log.Info("exporting recorded traffic",
						zap.Int("records", rec.Len()), zap.String("path", recordFile))
					if err := rec.ExportFile(recordFile); err != nil {
						log.Error("traffic export failed", zap.Error(err))
					}
				}
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			}
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "path to YAML config file")
	cmd.Flags().StringVar(&rulesPath, "rules", "", "path to YAML rules file applied at startup")
	cmd.Flags().BoolVar(&watchRules, "watch-rules", false, "reload the rules file when it changes")
	cmd.Flags().StringVar(&addr, "addr", ":8080", "address to listen on")
	cmd.Flags().StringVar(&adminToken, "admin-token", "", "bearer token guarding admin routes (empty = open)")
	cmd.Flags().StringVar(&recordFile, "record", "", "record admission traffic, exported to this file on shutdown")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	so.addFlags(cmd)

	return cmd
}

func applyRulesFile(ctx context.Context, path string, eng *limiter.Engine, log *zap.Logger) error {
	rf, err := config.LoadRulesFile(path)
	if err != nil {
		return fmt.Errorf("loading rules file: %w", err)
	}
	return rf.Apply(ctx, eng, log)
}

func buildLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}
