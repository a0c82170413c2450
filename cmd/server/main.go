/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the economy engine server: configuration, ledger
  recovery, dependency wiring, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load environment config, apply command-line overrides
  2. Open the hash-chained ledger file (fatal on integrity violation)
  3. Open the SQLite account store
  4. Recover engine state (snapshot + partial replay)
  5. Start the HTTP server

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections (30s drain)
  2. Snapshot ledger state and close the log
  3. Close the account database

COMMAND-LINE FLAGS:
  -port    HTTP server port (overrides PORT)
  -ledger  Ledger file path (overrides LEDGER_PATH)
  -db      Account database path (overrides ACCOUNTS_DB)
           Use ":memory:" for an in-memory database

FAIL-CLOSED:
  A ledger that fails hash-chain verification refuses to start. Do not
  "fix" this by deleting the ledger in production - that is the tamper
  alarm firing.
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/emberplay/economy-engine/api"
	"github.com/emberplay/economy-engine/config"
	"github.com/emberplay/economy-engine/economy"
	"github.com/emberplay/economy-engine/store/chainfile"
	"github.com/emberplay/economy-engine/store/sqlite"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	// Flags override environment for local runs.
	port := flag.Int("port", cfg.Port, "HTTP server port")
	ledgerPath := flag.String("ledger", cfg.LedgerPath, "Ledger file path")
	dbPath := flag.String("db", cfg.AccountsDB, "Account database path")
	flag.Parse()

	logger := newLogger(cfg.LogLevel)

	// Ledger log: verification failure here is fatal by design.
	log, err := chainfile.Open(*ledgerPath)
	if err != nil {
		logger.Fatal().Err(err).Str("path", *ledgerPath).Msg("ledger failed verification, refusing to start")
	}
	snaps := chainfile.NewSnapshotStore(*ledgerPath)

	accounts, err := sqlite.New(*dbPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open account database")
	}
	defer accounts.Close()

	engine, err := economy.Open(context.Background(), economy.Config{
		ReceiptSecret: cfg.ReceiptSecret,
		RateLimit:     cfg.RateLimit,
		RateWindow:    cfg.RateWindow(),
		IntentExpiry:  cfg.IntentExpiry(),
		CleanupEvery:  cfg.CleanupEvery,
		SnapshotEvery: cfg.SnapshotEvery,
	}, log, snaps, accounts, economy.DefaultCatalog(), logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("engine recovery failed")
	}

	handler := api.NewHandler(engine, accounts, accounts)
	router := api.NewRouter(handler)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().Int("port", *port).Str("ledger", *ledgerPath).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("server forced to shutdown")
	}
	if err := engine.Close(ctx); err != nil {
		logger.Error().Err(err).Msg("engine close failed")
	}

	logger.Info().Msg("server stopped")
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(lvl).
		With().Timestamp().Logger()
}
