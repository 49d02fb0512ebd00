// Package sender runs outgoing Bot API calls on a small worker pool, so a
// slow or throttled API does not hold up update handling or the payment
// webhook.
package sender

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/m3rciful/coursebot/core/logger"
)

var (
	// ErrQueueFull means the job was not accepted; the caller may send inline.
	ErrQueueFull = errors.New("sender: queue full")
	// ErrQueueClosed means the dispatcher has been closed.
	ErrQueueClosed = errors.New("sender: queue closed")
)

// Options tune a Dispatcher. Zero values pick defaults.
type Options struct {
	QueueSize  int
	Workers    int
	MaxRetries int
	// RetryBackoff grows linearly: attempt n waits n*RetryBackoff.
	RetryBackoff time.Duration
	// JobTimeout bounds a job including its retries.
	JobTimeout time.Duration
}

func (o Options) normalized() Options {
	if o.QueueSize <= 0 {
		o.QueueSize = 256
	}
	if o.Workers <= 0 {
		o.Workers = 4
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = time.Second
	}
	if o.JobTimeout <= 0 {
		o.JobTimeout = 15 * time.Second
	}
	return o
}

type job struct {
	ctx      context.Context
	action   string
	endpoint string
	run      func() error
	queued   time.Time
}

// Dispatcher executes queued calls with retries. Close drains the queue.
type Dispatcher struct {
	opts Options

	mu     sync.RWMutex // guards closed against sends on jobs
	closed bool
	jobs   chan job
	wg     sync.WaitGroup

	failed atomic.Int64
}

// NewDispatcher starts the workers.
func NewDispatcher(opts Options) *Dispatcher {
	opts = opts.normalized()
	d := &Dispatcher{opts: opts, jobs: make(chan job, opts.QueueSize)}
	d.wg.Add(opts.Workers)
	for i := 0; i < opts.Workers; i++ {
		go func() {
			defer d.wg.Done()
			for j := range d.jobs {
				d.process(j)
			}
		}()
	}
	return d
}

// Enqueue schedules run. It never blocks: a saturated queue returns
// ErrQueueFull. run may be called more than once.
func (d *Dispatcher) Enqueue(ctx context.Context, action, endpoint string, run func() error) error {
	if run == nil {
		return errors.New("sender: nil job")
	}
	if ctx == nil {
		ctx = logger.Background()
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrQueueClosed
	}
	select {
	case d.jobs <- job{ctx: ctx, action: action, endpoint: endpoint, run: run, queued: time.Now()}:
		return nil
	default:
		return ErrQueueFull
	}
}

// ErrorCount is the number of jobs that failed for good.
func (d *Dispatcher) ErrorCount() int64 { return d.failed.Load() }

// Close stops accepting jobs and waits for the queued ones.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.jobs)
	d.mu.Unlock()
	d.wg.Wait()
}

func (d *Dispatcher) process(j job) {
	ctx, cancel := context.WithTimeout(j.ctx, d.opts.JobTimeout)
	defer cancel()

	attrs := []slog.Attr{slog.String("action", j.action), slog.String("endpoint", j.endpoint)}
	var err error
	attempt := 1
	for ; ; attempt++ {
		if err = j.run(); err == nil {
			break
		}
		wait, retry := retryDelay(err, attempt, d.opts.RetryBackoff)
		if !retry || attempt > d.opts.MaxRetries {
			break
		}
		logger.Debug(ctx, logger.ComponentSender, "send.retry", append(attrs,
			slog.String("status", "retry"),
			slog.Int("attempt", attempt),
			slog.Duration("delay", wait),
			slog.String("error_kind", errorKind(err)),
		)...)
		if !sleep(ctx, wait) {
			err = ctx.Err()
			break
		}
	}

	attrs = append(attrs,
		slog.Int("attempts", attempt),
		slog.Duration("elapsed", logger.RoundMS(time.Since(j.queued))),
	)
	if err != nil {
		d.failed.Add(1)
		logger.Error(ctx, logger.ComponentSender, "send.fail", append(attrs,
			slog.String("status", "fail"),
			slog.String("err", redact(err)),
			slog.String("error_kind", errorKind(err)),
		)...)
		return
	}
	if attempt > 1 {
		logger.Info(ctx, logger.ComponentSender, "send.recovered", append(attrs, slog.String("status", "ok"))...)
		return
	}
	logger.Debug(ctx, logger.ComponentSender, "send.ok", append(attrs, slog.String("status", "ok"))...)
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
