package email

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// ErrQueueFull se devuelve cuando la cola no admite más trabajos.
var ErrQueueFull = errors.New("email queue full")

// ErrDispatcherClosed se devuelve al encolar después de Shutdown.
var ErrDispatcherClosed = errors.New("email dispatcher closed")

const defaultSendTimeout = 15 * time.Second

// Job es una tarea de envío; Kind solo se usa para logs.
type Job struct {
	Kind    string
	Message Message
}

// DispatcherStats expone contadores acumulados del dispatcher.
type DispatcherStats struct {
	Enqueued int64
	Sent     int64
	Failed   int64
	Dropped  int64
}

// Dispatcher desacopla el envío de correos del ciclo request/response.
type Dispatcher struct {
	logger      *zap.Logger
	sender      Sender
	sendTimeout time.Duration

	jobs     chan Job
	wg       sync.WaitGroup
	mu       sync.RWMutex
	closed   bool
	enqueued atomic.Int64
	sent     atomic.Int64
	failed   atomic.Int64
	dropped  atomic.Int64
}

// NewDispatcher arranca workers goroutines que consumen la cola.
func NewDispatcher(logger *zap.Logger, sender Sender, workers, queueSize int) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = 100
	}
	d := &Dispatcher{
		logger:      logger,
		sender:      sender,
		sendTimeout: defaultSendTimeout,
		jobs:        make(chan Job, queueSize),
	}
	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go d.work()
	}
	return d
}

// Enqueue nunca bloquea: si la cola está llena el trabajo se descarta.
func (d *Dispatcher) Enqueue(job Job) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.dropped.Add(1)
		return ErrDispatcherClosed
	}
	select {
	case d.jobs <- job:
		d.enqueued.Add(1)
		return nil
	default:
		d.dropped.Add(1)
		d.logger.Warn("email queue full, dropping job",
			zap.String("kind", job.Kind),
			zap.String("to", job.Message.To),
		)
		return ErrQueueFull
	}
}

// Shutdown cierra la cola y espera a que se vacíe o a que ctx expire.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.jobs)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) Stats() DispatcherStats {
	return DispatcherStats{
		Enqueued: d.enqueued.Load(),
		Sent:     d.sent.Load(),
		Failed:   d.failed.Load(),
		Dropped:  d.dropped.Load(),
	}
}

func (d *Dispatcher) work() {
	defer d.wg.Done()
	for job := range d.jobs {
		d.deliver(job)
	}
}

func (d *Dispatcher) deliver(job Job) {
	if d.sender == nil {
		d.failed.Add(1)
		d.logger.Warn("email sender not configured", zap.String("kind", job.Kind))
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), d.sendTimeout)
	defer cancel()

	start := time.Now()
	err := d.sender.Send(ctx, job.Message)
	switch {
	case err == nil:
		d.sent.Add(1)
		d.logger.Info("email sent",
			zap.String("kind", job.Kind),
			zap.String("to", job.Message.To),
			zap.Duration("latency", time.Since(start)),
		)
	case errors.Is(err, ErrSenderDisabled):
		d.failed.Add(1)
	default:
		d.failed.Add(1)
		d.logger.Error("email send failed",
			zap.Error(err),
			zap.String("kind", job.Kind),
			zap.String("to", job.Message.To),
		)
	}
}
