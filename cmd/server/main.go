// Package main is the entry point for the txscope demo API server.
// With DATABASE_URL set it runs on PostgreSQL, otherwise on the in-memory store.
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

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"txscope/internal/core/tx"
	"txscope/internal/domain/member"
	"txscope/internal/domain/order"
	v1 "txscope/internal/infrastructure/http/v1"
	"txscope/internal/infrastructure/http/v1/handlers"
	"txscope/internal/infrastructure/metrics"
	"txscope/internal/infrastructure/storage/memory"
	"txscope/internal/infrastructure/storage/postgres"
	"txscope/internal/infrastructure/storage/postgres/member_repo"
	"txscope/internal/infrastructure/storage/postgres/order_repo"
	"txscope/pkg/logger"
)

// backend is the storage wiring chosen at startup.
type backend struct {
	name     string
	resource tx.Resource
	members  member.Repository
	logs     member.LogRepository
	orders   order.Repository
	observer tx.Observer
	journal  handlers.JournalReader
	pinger   handlers.Pinger
	close    func()
}

func main() {
	// Initialize logger
	log, err := logger.New(logger.Config{
		Level:       getEnv("LOG_LEVEL", "info"),
		Development: getEnv("APP_ENV", "development") == "development",
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx := logger.WithLogger(context.Background(), log)
	log.Info("starting txscope server")

	journalEnabled := getEnvBool("TX_JOURNAL_ENABLED", true)

	var b *backend
	if dsn := getEnv("DATABASE_URL", ""); dsn != "" {
		b, err = postgresBackend(ctx, dsn, journalEnabled)
	} else {
		b = memoryBackend(journalEnabled)
	}
	if err != nil {
		log.Fatalw("failed to initialize storage", "error", err)
	}
	defer b.close()

	// --- Rollback policy ---
	rules, err := tx.ParseRules(getEnv("TX_ROLLBACK_RULES", ""))
	if err != nil {
		log.Fatalw("invalid TX_ROLLBACK_RULES", "error", err)
	}

	// --- Metrics ---
	var appMetrics *metrics.Metrics
	if getEnvBool("METRICS_ENABLED", true) {
		appMetrics = metrics.NewWithRegistry(prometheus.NewRegistry())
	}

	observer := tx.Observers(b.observer)
	if appMetrics != nil {
		observer = tx.Observers(b.observer, appMetrics)
	}
	txm := tx.NewResolver(b.resource,
		tx.WithPolicy(tx.NewPolicy(rules...)),
		tx.WithObserver(observer),
	)

	// --- Services ---
	logPropagation, err := tx.ParsePropagation(getEnv("MEMBER_LOG_PROPAGATION", "REQUIRED"))
	if err != nil {
		log.Fatalw("invalid MEMBER_LOG_PROPAGATION", "error", err)
	}
	memberService := member.NewService(txm, b.members, b.logs, member.Config{
		LogPropagation: logPropagation,
	})

	orderDef := tx.Named("order.place")
	if getEnvBool("ORDER_ROLLBACK_NOT_ENOUGH_MONEY", false) {
		orderDef.RollbackFor = []tx.Kind{order.KindNotEnoughMoney}
	}
	orderService := order.NewService(txm, b.orders, orderDef)

	log.Infow("transaction engine initialized",
		"backend", b.name,
		"rollback_rules", len(rules),
		"member_log_propagation", logPropagation.String(),
		"journal", journalEnabled,
	)

	// --- Router ---
	if getEnv("APP_ENV", "development") != "development" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := v1.NewRouter(v1.RouterConfig{
		Logger:        log,
		MemberService: memberService,
		OrderService:  orderService,
		Journal:       b.journal,
		Pinger:        b.pinger,
		Backend:       b.name,
		Metrics:       appMetrics,
	})

	// --- HTTP Server ---
	port := getEnv("APP_PORT", "8080")
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Infow("server starting", "port", port, "backend", b.name)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalw("server failed", "error", err)
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	// Give outstanding requests 30 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorw("server forced to shutdown", "error", err)
	}

	log.Info("server stopped")
}

func memoryBackend(journalEnabled bool) *backend {
	store := memory.NewStore()
	b := &backend{
		name:     "memory",
		resource: store,
		members:  memory.NewMemberRepo(store),
		logs:     memory.NewLogRepo(store),
		orders:   memory.NewOrderRepo(store),
		close:    func() {},
	}
	if journalEnabled {
		journal := memory.NewJournal(getEnvInt("TX_JOURNAL_CAPACITY", 1000))
		b.observer = journal
		b.journal = handlers.MemoryJournal(journal)
	}
	return b
}

func postgresBackend(ctx context.Context, dsn string, journalEnabled bool) (*backend, error) {
	poolCfg := postgres.DefaultPoolConfig(dsn)
	if maxConns := getEnvInt("DB_MAX_CONNS", 25); maxConns > 0 {
		poolCfg.MaxConns = int32(maxConns)
	}
	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		return nil, err
	}

	if err := postgres.Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	resCfg := postgres.DefaultResourceConfig()
	resCfg.StatementTimeout = getEnvDuration("TX_STATEMENT_TIMEOUT", resCfg.StatementTimeout)
	res := postgres.NewResource(pool, resCfg)

	b := &backend{
		name:     "postgres",
		resource: res,
		members:  member_repo.NewMemberRepo(res),
		logs:     member_repo.NewLogRepo(res),
		orders:   order_repo.NewOrderRepo(res),
		pinger:   pool,
		close: func() {
			pool.LogStats(ctx)
			pool.Close()
		},
	}
	if journalEnabled {
		journal, err := postgres.NewJournal(pool, getEnvInt("TX_JOURNAL_COMPRESS_THRESHOLD", 0))
		if err != nil {
			pool.Close()
			return nil, err
		}
		b.observer = journal
		b.journal = handlers.PostgresJournal(journal)
	}
	return b, nil
}
