// Package control owns the application lifecycle: it wires the credential
// pool, retry queue, worker, and HTTP surface together and manages startup and
// graceful shutdown.
package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/pressly/goose/v3"

	"github.com/vietddude/healer/internal/core/config"
	"github.com/vietddude/healer/internal/core/domain"
	"github.com/vietddude/healer/internal/credential"
	redisclient "github.com/vietddude/healer/internal/infra/redis"
	"github.com/vietddude/healer/internal/infra/storage/postgres"
	"github.com/vietddude/healer/internal/queue"
	"github.com/vietddude/healer/internal/server"
	"github.com/vietddude/healer/internal/transport"
)

// totalsFlushInterval is how often lifetime usage counters are written back to
// the credential catalog when one is configured.
const totalsFlushInterval = time.Minute

// Config holds the application configuration.
type Config struct {
	Port        int
	Queue       config.QueueConfig
	Redis       redisclient.Config
	Database    postgres.Config
	Credentials []domain.Credential
}

// Healer is the main application struct managing the self-healing substrate.
type Healer struct {
	cfg    Config
	pool   *credential.Pool
	queue  *queue.Queue
	worker *queue.Worker
	server *server.Server

	db          *postgres.DB
	credRepo    *postgres.CredentialRepo
	redisClient *redisclient.Client

	log    *slog.Logger
	cancel context.CancelFunc
}

// NewHealer creates a Healer with all dependencies initialized.
func NewHealer(cfg Config) (*Healer, error) {
	pool := credential.NewPool()

	// 1. Seed the credential pool: Postgres catalog when configured, config
	// file credentials otherwise.
	var (
		db       *postgres.DB
		credRepo *postgres.CredentialRepo
	)
	creds := cfg.Credentials
	if cfg.Database.URL != "" {
		var err error
		db, err = postgres.NewDB(context.Background(), cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to init db: %w", err)
		}

		if err := goose.SetDialect("postgres"); err != nil {
			return nil, err
		}
		if err := goose.Up(db.DB, "migrations"); err != nil {
			return nil, fmt.Errorf("failed to migrate db: %w", err)
		}

		credRepo = postgres.NewCredentialRepo(db)
		catalog, err := credRepo.GetAll(context.Background())
		if err != nil {
			slog.Warn("Failed to load credential catalog", "error", err)
		} else if len(catalog) > 0 {
			creds = catalog
		}
		slog.Info("Using PostgreSQL credential catalog")
	}
	pool.ResetAll(creds)
	slog.Info("Credential pool seeded", "count", len(creds))

	// 2. Optional dead-letter archive
	var (
		archive     queue.Archive
		redisClient *redisclient.Client
	)
	if cfg.Redis.URL != "" {
		var err error
		redisClient, err = redisclient.NewClient(cfg.Redis)
		if err != nil {
			slog.Warn("Failed to connect to Redis, dead-letter archive disabled", "error", err)
		} else {
			archive = redisclient.NewDeadArchive(redisClient, "healer")
			slog.Info("Dead-letter archive enabled")
		}
	}

	// 3. Retry queue + worker
	sender := transport.NewHTTPSender(
		time.Duration(cfg.Queue.TransportTimeoutSeconds) * time.Second,
	)
	q := queue.New(queue.Config{
		PollInterval:       time.Duration(cfg.Queue.PollIntervalSeconds) * time.Second,
		MaxRetries:         cfg.Queue.MaxRetries,
		OverflowThreshold:  cfg.Queue.OverflowThreshold,
		DeadAlertThreshold: cfg.Queue.DeadAlertThreshold,
		DeadAlertWindow:    time.Duration(cfg.Queue.DeadAlertWindowSeconds) * time.Second,
		BackoffCap:         time.Duration(cfg.Queue.BackoffCapSeconds) * time.Second,
	}, sender, archive)

	var worker *queue.Worker
	if cfg.Queue.WorkerDisabled {
		slog.Info("Queue worker disabled via config")
	} else {
		worker = queue.NewWorker(q)
	}

	return &Healer{
		cfg:         cfg,
		pool:        pool,
		queue:       q,
		worker:      worker,
		server:      server.New(pool, q, cfg.Port),
		db:          db,
		credRepo:    credRepo,
		redisClient: redisClient,
		log:         slog.Default(),
	}, nil
}

// Pool returns the credential pool, for CLI and test access.
func (h *Healer) Pool() *credential.Pool {
	return h.pool
}

// Queue returns the retry queue, for CLI and test access.
func (h *Healer) Queue() *queue.Queue {
	return h.queue
}

// Start starts the HTTP server and the background workers.
func (h *Healer) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	h.cancel = cancel

	go func() {
		if err := h.server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			h.log.Error("HTTP server failed", "error", err)
		}
	}()

	if h.worker != nil {
		go h.worker.Run(runCtx)
	}

	if h.credRepo != nil {
		go h.runTotalsFlusher(runCtx)
	}

	h.log.Info("Healer started", "port", h.cfg.Port)
	return nil
}

// Stop cancels the background workers, awaits their exit, and shuts the HTTP
// server down.
func (h *Healer) Stop(ctx context.Context) error {
	h.log.Info("Stopping Healer...")

	if h.cancel != nil {
		h.cancel()
	}
	if h.worker != nil {
		if err := h.worker.Wait(ctx); err != nil {
			h.log.Warn("Queue worker did not exit in time", "error", err)
		}
	}

	if h.redisClient != nil {
		if err := h.redisClient.Close(); err != nil {
			h.log.Warn("Failed to close Redis", "error", err)
		}
	}
	if h.db != nil {
		if err := h.db.Close(); err != nil {
			h.log.Warn("Failed to close database", "error", err)
		}
	}

	return h.server.Stop(ctx)
}

// runTotalsFlusher periodically writes lifetime usage counters back to the
// credential catalog.
func (h *Healer) runTotalsFlusher(ctx context.Context) {
	ticker := time.NewTicker(totalsFlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := h.credRepo.FlushTotals(ctx, h.pool.List()); err != nil {
				h.log.Warn("Failed to flush usage totals", "error", err)
			}
		}
	}
}
