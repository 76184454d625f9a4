package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	cronrunner "solsniper/internal/cron"
	"solsniper/internal/db"
	"solsniper/internal/engine"
	"solsniper/internal/handler"
	"solsniper/internal/metrics"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the engine loops and the HTTP API",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runServe(cmd.Context())
	},
}

func runServe(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repo, conn, err := openRepo(cfg, log)
	if err != nil {
		return err
	}
	defer db.Close(conn)

	reg := metrics.New()
	store := openCache(ctx, cfg.Cache, log)
	notifier, paas := newNotifier(ctx, cfg.Notify, log)

	acct, err := mainAccount(cfg.Solana)
	if err != nil {
		return err
	}
	exec, err := newExecutor(cfg, acct)
	if err != nil {
		return err
	}
	scan, pairs, stream := newMarket(cfg.Market, store, reg, log)
	wallets := newCoordinator(cfg, repo, exec, notifier, reg, log)
	eng, err := newEngine(cfg, engineDeps{
		Repo:     repo,
		Market:   scan,
		Pairs:    pairs,
		Fees:     newFees(cfg.Solana, reg, log),
		Executor: exec,
		Account:  acct,
		Wallets:  wallets,
		Notifier: notifier,
		Metrics:  reg,
		Logger:   log,
	})
	if err != nil {
		return err
	}
	log.Info("engine configured",
		zap.String("executor", cfg.Executor.Mode),
		zap.String("account", acct.Address),
		zap.Bool("stream", stream != nil),
		zap.Bool("db", conn != nil),
	)

	if stream != nil {
		go func() {
			if err := stream.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Warn("pumpportal stream stopped", zap.Error(err))
			}
		}()
	}

	if err := eng.Boot(ctx); err != nil {
		return err
	}
	defer eng.Shutdown()

	if cfg.Cron.Enabled {
		runner := cronrunner.New(log, ctx)
		if err := eng.RegisterHousekeeping(runner, engine.Schedules{
			TargetEviction:  cfg.Cron.TargetEviction,
			SignalRetention: cfg.Cron.SignalRetention,
			PerformanceLog:  cfg.Cron.PerformanceLog,
		}); err != nil {
			log.Warn("cron register housekeeping failed", zap.Error(err))
		}
		runner.Start()
		defer runner.Stop()
	}

	if cfg.Auth.JWTSecret == "" {
		log.Warn("auth.jwt_secret is empty, the API is unauthenticated")
	}
	opts := handler.RouterOptions{
		Env:        cfg.App.Env,
		JWT:        handler.JWT{Secret: []byte(cfg.Auth.JWTSecret)},
		AuditAgent: cfg.Notify.PaaSAgent,
		Logger:     log,
		Metrics:    reg,
		Repo:       repo,
		Engine:     eng,
		Wallets:    wallets,
		Funder:     acct,
	}
	if paas != nil {
		opts.Audit = paas
	}
	if conn != nil {
		opts.DB = conn
	}
	srv := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           handler.NewRouter(opts),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("http server starting", zap.String("addr", cfg.Server.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown requested")
	case err := <-errCh:
		log.Error("server error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	return nil
}
