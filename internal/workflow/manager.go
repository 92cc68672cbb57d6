package workflow

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"scribed/internal/config"
	"scribed/internal/logging"
	"scribed/internal/notifications"
	"scribed/internal/queue"
	"scribed/internal/scratch"
	"scribed/internal/storage"
)

// Manager coordinates queue processing using the registered pipeline
// stages.
type Manager struct {
	cfg          *config.Config
	store        *queue.Store
	logger       *slog.Logger
	notifier     notifications.Service
	scratch      *scratch.Manager
	gateway      *storage.Gateway
	stages       []PipelineStage
	heartbeat    *HeartbeatMonitor
	pollInterval time.Duration
	concurrency  int

	mu      sync.RWMutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	lastErr error
}

// NewManager constructs a workflow manager around an assembled stage
// sequence.
func NewManager(
	cfg *config.Config,
	store *queue.Store,
	logger *slog.Logger,
	notifier notifications.Service,
	scratchMgr *scratch.Manager,
	gateway *storage.Gateway,
	stages []PipelineStage,
) *Manager {
	concurrency := cfg.Workflow.JobConcurrency
	if concurrency < 1 {
		concurrency = 1
	}
	return &Manager{
		cfg:          cfg,
		store:        store,
		logger:       logging.NewComponentLogger(logger, "workflow"),
		notifier:     notifier,
		scratch:      scratchMgr,
		gateway:      gateway,
		stages:       stages,
		pollInterval: time.Duration(cfg.Workflow.QueuePollInterval) * time.Second,
		concurrency:  concurrency,
		heartbeat: NewHeartbeatMonitor(
			store,
			logger,
			time.Duration(cfg.Workflow.HeartbeatInterval)*time.Second,
			time.Duration(cfg.Workflow.HeartbeatTimeout)*time.Second,
		),
	}
}

// Start begins background processing.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("workflow already running")
	}
	if len(m.stages) == 0 {
		m.mu.Unlock()
		return errors.New("workflow stages not configured")
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.wg.Add(1)
	m.mu.Unlock()

	go m.dispatch(runCtx)
	return nil
}

// Stop terminates background processing and waits for in-flight jobs to
// notice the shutdown.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
}

// Running reports whether the manager is processing.
func (m *Manager) Running() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.running
}

// LastError returns the most recent processing error, if any.
func (m *Manager) LastError() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastErr
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}

// RecoverStale fails in-flight jobs whose heartbeats expired while no
// daemon was running. Called once at startup before dispatch begins.
func (m *Manager) RecoverStale(ctx context.Context) error {
	return m.heartbeat.FailStale(ctx, m.logger)
}

// dispatch claims pending jobs in acceptance order and hands each one
// to the worker pool. The claim (transition to the first processing
// status) happens on the dispatcher goroutine so a job can never be
// picked up twice.
func (m *Manager) dispatch(ctx context.Context) {
	defer m.wg.Done()

	sem := make(chan struct{}, m.concurrency)
	var workers sync.WaitGroup
	defer workers.Wait()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		job, err := m.store.NextPending(ctx)
		if err != nil {
			m.setLastError(err)
			m.logger.Error("failed to fetch next queue job",
				logging.Error(err),
				logging.String(logging.FieldEventType, "queue_fetch_failed"),
				logging.String(logging.FieldErrorHint, "check queue database access"),
			)
			m.waitOrShutdown(ctx, time.Duration(m.cfg.Workflow.ErrorRetryInterval)*time.Second)
			continue
		}
		if job == nil {
			m.waitOrShutdown(ctx, m.pollInterval)
			continue
		}

		if err := m.claim(ctx, job); err != nil {
			m.setLastError(err)
			m.logger.Error("failed to claim pending job", logging.Error(err))
			m.waitOrShutdown(ctx, time.Duration(m.cfg.Workflow.ErrorRetryInterval)*time.Second)
			continue
		}

		select {
		case <-ctx.Done():
			return
		case sem <- struct{}{}:
		}
		workers.Add(1)
		go func(job *queue.Job) {
			defer workers.Done()
			defer func() { <-sem }()
			m.runJob(ctx, job)
		}(job)
	}
}

func (m *Manager) claim(ctx context.Context, job *queue.Job) error {
	now := time.Now().UTC()
	job.Status = m.stages[0].Processing
	job.ErrorKind = ""
	job.ErrorMessage = ""
	job.LastHeartbeat = &now
	return m.store.Update(ctx, job)
}

func (m *Manager) waitOrShutdown(ctx context.Context, delay time.Duration) {
	if delay <= 0 {
		delay = time.Second
	}
	select {
	case <-ctx.Done():
	case <-time.After(delay):
	}
}
