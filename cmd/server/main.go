// Command server is the backend orchestrator's entrypoint: it wires the
// agent fleet, the Smart Cache, the aggregator, the Versus engine, the
// event sinks and the HTTP API, then runs until signalled to stop.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sinfolonokojo/mt5-backend/internal/accountmap"
	"github.com/sinfolonokojo/mt5-backend/internal/agentclient"
	"github.com/sinfolonokojo/mt5-backend/internal/agentregistry"
	"github.com/sinfolonokojo/mt5-backend/internal/aggregator"
	"github.com/sinfolonokojo/mt5-backend/internal/authtoken"
	"github.com/sinfolonokojo/mt5-backend/internal/cache"
	"github.com/sinfolonokojo/mt5-backend/internal/config"
	"github.com/sinfolonokojo/mt5-backend/internal/events"
	"github.com/sinfolonokojo/mt5-backend/internal/httppool"
	"github.com/sinfolonokojo/mt5-backend/internal/logger"
	"github.com/sinfolonokojo/mt5-backend/internal/scheduler"
	"github.com/sinfolonokojo/mt5-backend/internal/server"
	"github.com/sinfolonokojo/mt5-backend/internal/sinks"
	"github.com/sinfolonokojo/mt5-backend/internal/store"
	"github.com/sinfolonokojo/mt5-backend/internal/versus"
)

func main() {
	log := logger.New(logger.Config{Level: "info", Pretty: true})
	log.Info().Msg("starting mt5-backend")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	registry, err := agentregistry.New(cfg.Agents)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build agent registry")
	}

	newClient := func(baseURL string) *agentclient.Client {
		return agentclient.New(baseURL, httppool.Get(), log)
	}

	phaseStore, err := store.NewPhaseStore(cfg.PhaseDataFile, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load phase store")
	}
	vsStore, err := store.NewVSGroupStore(cfg.VSDataFile, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load vs group store")
	}
	versusStore, err := store.NewVersusStore(cfg.VersusDataFile, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load versus store")
	}
	tradeHistory, err := store.NewTradeHistoryStore(cfg.TradeHistoryFile, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load trade history store")
	}

	accounts := accountmap.New(log)
	smartCache := cache.New(cfg.CacheTTL, log)

	aggr := aggregator.New(registry, newClient, accounts, aggregator.Config{
		AgentTimeout:      cfg.AgentTimeout,
		RecoveryThreshold: cfg.RecoveryThreshold,
	}, log)

	engine := versus.New(registry, newClient, accounts, aggr, versusStore, smartCache, log)

	auditLog, err := sinks.NewAuditLog(cfg.AuditLogPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open audit log")
	}
	defer auditLog.Close()

	ctx := context.Background()
	spreadsheet, err := sinks.NewSpreadsheet(ctx, cfg.SpreadsheetBucket, cfg.SpreadsheetRegion, cfg.SpreadsheetKeyPrefix, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialise spreadsheet sink")
	}
	chat := sinks.NewChat(log)

	bus := events.NewBus(log, auditLog, chat)

	tokens := authtoken.New(cfg.SharedSecret, cfg.TokenTTL)

	sched := scheduler.New(log)
	sched.Start()
	defer sched.Stop()

	scanJob := scheduler.NewVersusScanJob(versusStore, engine, log)
	scheduleExpr := fmt.Sprintf("@every %s", cfg.SchedulerInterval)
	if err := sched.AddJob(scheduleExpr, scanJob); err != nil {
		log.Fatal().Err(err).Msg("failed to register versus scan job")
	}

	srv := server.New(server.Config{
		Port:           cfg.Port,
		Host:           cfg.Host,
		AllowedOrigins: cfg.AllowedOrigins,
		DevMode:        cfg.DevMode,
		TradingEnabled: cfg.TradingEnabled,
		VersusEnabled:  cfg.VersusEnabled,
		Tokens:         tokens,
		LoginPassword:  cfg.LoginPassword,
		Registry:       registry,
		Aggregator:     aggr,
		AccountMap:     accounts,
		SmartCache:     smartCache,
		PhaseStore:     phaseStore,
		VSStore:        vsStore,
		VersusStore:    versusStore,
		TradeHistory:   tradeHistory,
		Engine:         engine,
		Spreadsheet:    spreadsheet,
		Chat:           chat,
		Bus:            bus,
		Scheduler:      sched,
		NewAgentClient: newClient,
		Log:            log,
	})

	go func() {
		if err := srv.Start(); err != nil && err.Error() != "http: Server closed" {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()
	log.Info().Int("port", cfg.Port).Int("agents", registry.Len()).Msg("backend started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}
	httppool.Close()
	log.Info().Msg("backend stopped")
}
