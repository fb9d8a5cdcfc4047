package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/trbui/queryjobs-be/internal/notify"
	"github.com/trbui/queryjobs-be/internal/query"
	"github.com/trbui/queryjobs-be/internal/worker/domain"
	"github.com/trbui/queryjobs-be/shared/rabbitmq"
)

// Storage is the persistence surface the worker needs: claim plus the
// terminal transitions. The worker is the only writer of a claimed job's
// status.
type Storage interface {
	ClaimJob(ctx context.Context, jobID, workerID string) (*domain.Job, error)
	UpdateJobStatus(ctx context.Context, jobID, status string, result []byte, errorMsg string) error
	UpdateJobHeartbeat(ctx context.Context, jobID string) error
}

// ContextRouter resolves a routing decision into normalized context entries
type ContextRouter interface {
	Route(ctx context.Context, decision query.Decision) ([]query.ContextEntry, []query.TargetFailure, error)
}

// Notifier delivers terminal job outcomes to callback URLs
type Notifier interface {
	Notify(ctx context.Context, callbackURL string, payload notify.Payload)
}

// Generator produces the final answer from the query and retrieved context
type Generator interface {
	Generate(ctx context.Context, question string, history []ChatMessage, entries []query.ContextEntry) (string, error)
}

// Config holds worker configuration
type Config struct {
	Logger            *slog.Logger
	RabbitClient      *rabbitmq.Client
	Storage           Storage
	Router            ContextRouter
	Generator         Generator
	Notifier          Notifier
	Concurrency       int
	PrefetchCount     int
	JobTimeout        time.Duration
	HeartbeatInterval time.Duration
}

// Worker consumes job messages and executes their workflows on a pool of
// goroutines. The queue delivers each message to exactly one worker; the
// database claim guarantees at most one execution attempt per job id.
type Worker struct {
	logger            *slog.Logger
	rabbitClient      *rabbitmq.Client
	storage           Storage
	router            ContextRouter
	generator         Generator
	notifier          Notifier
	workerID          string
	concurrency       int
	prefetchCount     int
	jobTimeout        time.Duration
	heartbeatInterval time.Duration
	jobsChan          chan *domain.JobMessage
	wg                sync.WaitGroup
	stopChan          chan struct{}
}

// NewWorker creates a new worker instance
func NewWorker(cfg *Config) *Worker {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	prefetchCount := cfg.PrefetchCount
	if prefetchCount <= 0 {
		prefetchCount = concurrency
	}

	heartbeatInterval := cfg.HeartbeatInterval
	if heartbeatInterval <= 0 {
		heartbeatInterval = 30 * time.Second
	}

	return &Worker{
		logger:            cfg.Logger,
		rabbitClient:      cfg.RabbitClient,
		storage:           cfg.Storage,
		router:            cfg.Router,
		generator:         cfg.Generator,
		notifier:          cfg.Notifier,
		workerID:          fmt.Sprintf("worker-%s", uuid.New().String()[:8]),
		concurrency:       concurrency,
		prefetchCount:     prefetchCount,
		jobTimeout:        cfg.JobTimeout,
		heartbeatInterval: heartbeatInterval,
		jobsChan:          make(chan *domain.JobMessage),
		stopChan:          make(chan struct{}),
	}
}

// Start begins processing jobs. It blocks until the context is canceled or
// the delivery channel closes.
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("Starting worker",
		slog.String("worker_id", w.workerID),
		slog.Int("concurrency", w.concurrency),
		slog.Duration("job_timeout", w.jobTimeout),
	)

	deliveries, err := w.setupConsumer(ctx)
	if err != nil {
		return fmt.Errorf("failed to setup consumer: %w", err)
	}

	w.spawnWorkerPool(ctx)
	w.startMessageDispatcher(ctx, deliveries)

	return nil
}

// Stop gracefully stops the worker
func (w *Worker) Stop() {
	w.logger.Info("Stopping worker...",
		slog.String("worker_id", w.workerID),
	)
	close(w.stopChan)
	w.wg.Wait()
	w.logger.Info("Worker stopped")
}
