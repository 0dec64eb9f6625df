// Package audit writes login audit rows off the request path.
package audit

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/upb/tracking-bridge/models"
	"github.com/upb/tracking-bridge/repositories"
)

var (
	ErrNotStarted     = errors.New("audit recorder not started")
	ErrAlreadyStarted = errors.New("audit recorder already started")
	ErrBufferFull     = errors.New("audit buffer full")
)

// DropObserver is notified when a row is dropped because the buffer is full
type DropObserver interface {
	ObserveAuditDropped()
}

// Config holds configuration for the Recorder
type Config struct {
	BufferSize  int // Size of the pending row channel
	WorkerCount int // Number of concurrent writers
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		BufferSize:  1024,
		WorkerCount: 2,
	}
}

// Recorder persists login audits asynchronously with a fixed worker pool
type Recorder struct {
	repo        repositories.LoginAuditRepository
	logger      *zap.Logger
	observer    DropObserver
	rows        chan *models.LoginAudit
	workerCount int
	bufferSize  int
	wg          sync.WaitGroup
	mu          sync.RWMutex
	started     bool
	stopped     bool
}

// NewRecorder creates a Recorder. observer may be nil.
func NewRecorder(repo repositories.LoginAuditRepository, logger *zap.Logger, cfg Config, observer DropObserver) *Recorder {
	def := DefaultConfig()
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = def.BufferSize
	}
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = def.WorkerCount
	}

	return &Recorder{
		repo:        repo,
		logger:      logger,
		observer:    observer,
		rows:        make(chan *models.LoginAudit, cfg.BufferSize),
		workerCount: cfg.WorkerCount,
		bufferSize:  cfg.BufferSize,
	}
}

// Start starts the background workers
func (r *Recorder) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started {
		return ErrAlreadyStarted
	}

	for i := 0; i < r.workerCount; i++ {
		r.wg.Add(1)
		go r.worker(i)
	}

	r.started = true
	r.logger.Info("started login audit recorder",
		zap.Int("worker_count", r.workerCount),
		zap.Int("buffer_size", r.bufferSize))

	return nil
}

// Stop closes the buffer and waits up to timeout for pending rows to drain
func (r *Recorder) Stop(timeout time.Duration) error {
	r.mu.Lock()
	if !r.started || r.stopped {
		r.mu.Unlock()
		return ErrNotStarted
	}
	r.stopped = true
	pending := len(r.rows)
	close(r.rows)
	r.mu.Unlock()

	r.logger.Info("stopping login audit recorder", zap.Int("pending_rows", pending))

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Info("login audit recorder stopped gracefully")
		return nil
	case <-time.After(timeout):
		return errors.New("login audit recorder stop timed out")
	}
}

// Record queues audit without blocking. A full buffer drops the row.
func (r *Recorder) Record(audit *models.LoginAudit) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if !r.started || r.stopped {
		return ErrNotStarted
	}

	select {
	case r.rows <- audit:
		return nil
	default:
		r.logger.Warn("login audit buffer full, dropping row",
			zap.String("username", audit.Username),
			zap.Bool("succeeded", audit.Succeeded))
		if r.observer != nil {
			r.observer.ObserveAuditDropped()
		}
		return ErrBufferFull
	}
}

func (r *Recorder) worker(id int) {
	defer r.wg.Done()

	for audit := range r.rows {
		if err := r.write(audit); err != nil {
			r.logger.Error("failed to write login audit",
				zap.Int("worker_id", id),
				zap.String("username", audit.Username),
				zap.Error(err))
		}
	}
}

func (r *Recorder) write(audit *models.LoginAudit) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return r.repo.Insert(ctx, audit)
}

// Stats represents recorder statistics
type Stats struct {
	BufferSize  int
	PendingRows int
	WorkerCount int
	Started     bool
}

// GetStats returns statistics about the recorder
func (r *Recorder) GetStats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return Stats{
		BufferSize:  r.bufferSize,
		PendingRows: len(r.rows),
		WorkerCount: r.workerCount,
		Started:     r.started && !r.stopped,
	}
}
