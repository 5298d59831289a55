package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bountyflow/arbitration"
	"bountyflow/auth"
	"bountyflow/bounty"
	"bountyflow/config"
	"bountyflow/db"
	"bountyflow/escrow"
	"bountyflow/httpapi"
	"bountyflow/ledger"
	"bountyflow/resolution"
	"bountyflow/stake"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger := cfg.Logger()
	slog.SetDefault(logger)

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("bootstrap database pool: %v", err)
	}
	defer pool.Close()

	stakeCfg, err := cfg.StakeConfig()
	if err != nil {
		log.Fatalf("stake config: %v", err)
	}

	// Every fund-touching path goes through the retrying operator so a
	// transient revert does not fail the action outright.
	operator := ledger.NewRetrying(
		ledger.NewHTTPOperator(cfg.LedgerURL, cfg.LedgerToken),
		cfg.LedgerMaxAttempts,
	)

	bountyRepo := bounty.NewRepository(pool)
	bountySvc := bounty.NewService(bountyRepo, cfg.StakingPeriod)

	// The HTTP consensus endpoint and the scheduler share one engine so
	// both classify the same totals the same way.
	engine := cfg.Engine()

	escrowSvc := escrow.NewService(escrow.NewRepository(pool), operator)
	stakeSvc := stake.NewService(stake.NewRepository(pool), operator, stakeCfg, engine)
	arbitrationSvc := arbitration.NewService(
		arbitration.NewRepository(pool), escrowSvc, bountyRepo, operator)
	authSvc := auth.NewService(auth.NewRepository(pool), cfg.JWTSecret)

	actions := resolution.NewRepository(pool)
	scheduler := resolution.NewScheduler(
		bountyRepo, escrowSvc, arbitrationSvc, actions, engine,
		cfg.ArbitratorAddress, logger)
	scheduler.Interval = cfg.ResolutionInterval
	scheduler.Workers = cfg.ResolutionWorkers

	schedCtx, stopScheduler := context.WithCancel(ctx)
	defer stopScheduler()
	go func() {
		if err := scheduler.Run(schedCtx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("scheduler stopped", "error", err)
		}
	}()

	router := httpapi.NewRouter(&httpapi.Handlers{
		Auth:        authSvc,
		Bounties:    bountySvc,
		Escrows:     escrowSvc,
		Stakes:      stakeSvc,
		Arbitration: arbitrationSvc,
		Actions:     actions,
		Resolver:    scheduler,
	}, logger)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("server starting", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	stopScheduler()
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("shutdown server: %v", err)
	}

	logger.Info("server exited")
}
