package mail

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

var ErrDispatcherClosed = errors.New("mail dispatcher closed")

// Dispatcher runs sends as background tasks. A task is detached from the
// caller: cancelling the request context does not cancel the send, and the
// outcome is only logged and reported on the returned channel.
type Dispatcher struct {
	notifier Notifier
	logger   *zap.SugaredLogger
	sem      *semaphore.Weighted
	timeout  time.Duration

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

type DispatcherConfig struct {
	MaxInFlight int64         `env:"MAX_IN_FLIGHT" envDefault:"8"`
	SendTimeout time.Duration `env:"SEND_TIMEOUT" envDefault:"30s"`
}

func NewDispatcher(n Notifier, logger *zap.SugaredLogger, cfg DispatcherConfig) *Dispatcher {
	if cfg.MaxInFlight <= 0 {
		cfg.MaxInFlight = 8
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Dispatcher{
		notifier: n,
		logger:   logger,
		sem:      semaphore.NewWeighted(cfg.MaxInFlight),
		timeout:  cfg.SendTimeout,
	}
}

// Dispatch schedules msg and returns immediately. The channel receives the
// send result exactly once and is then closed; callers may ignore it.
func (d *Dispatcher) Dispatch(ctx context.Context, msg Message) <-chan error {
	done := make(chan error, 1)

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		d.logger.Warnw("mail dropped, dispatcher closed", "to", msg.To, "subject", msg.Subject)
		done <- ErrDispatcherClosed
		close(done)
		return done
	}
	d.wg.Add(1)
	d.mu.Unlock()

	detached := context.WithoutCancel(ctx)
	go func() {
		defer d.wg.Done()
		defer close(done)
		err := d.send(detached, msg)
		if err != nil {
			d.logger.Errorw("mail send failed", "to", msg.To, "subject", msg.Subject, "err", err)
		} else {
			d.logger.Debugw("mail sent", "to", msg.To, "subject", msg.Subject)
		}
		done <- err
	}()
	return done
}

func (d *Dispatcher) send(ctx context.Context, msg Message) error {
	if err := d.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer d.sem.Release(1)

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	return d.notifier.Send(ctx, msg)
}

// Wait blocks until every dispatched send has finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Close stops accepting messages and waits for in-flight sends until ctx
// is done.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	drained := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(drained)
	}()
	select {
	case <-drained:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
