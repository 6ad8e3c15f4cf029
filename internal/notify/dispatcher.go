package notify

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/samber/oops"

	"go-account-service/internal/model"
)

// ResultFunc observes the outcome of every queued delivery. err is nil on
// success.
type ResultFunc func(ctx context.Context, msg Message, err error)

type DispatcherConfig struct {
	QueueSize int
	Workers   int
	// Timeout bounds a single delivery including retries.
	Timeout  time.Duration
	OnResult ResultFunc
}

// Dispatcher queues messages in front of a Notifier so that account
// operations never wait on mail delivery. Send fails fast with ErrDispatch
// when the queue is full or the dispatcher is closed.
type Dispatcher struct {
	sender    Notifier
	onResult  ResultFunc
	timeout   time.Duration
	ch        chan Message
	done      chan struct{}
	wg        sync.WaitGroup
	closed    atomic.Bool
	closeOnce sync.Once
	mu        sync.RWMutex
}

func NewDispatcher(sender Notifier, cfg DispatcherConfig) *Dispatcher {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultSendTimeout
	}
	if cfg.OnResult == nil {
		cfg.OnResult = func(context.Context, Message, error) {}
	}

	d := &Dispatcher{
		sender:   sender,
		onResult: cfg.OnResult,
		timeout:  cfg.Timeout,
		ch:       make(chan Message, cfg.QueueSize),
		done:     make(chan struct{}),
	}

	d.wg.Add(cfg.Workers)
	for range cfg.Workers {
		go d.run()
	}

	return d
}

func (d *Dispatcher) run() {
	defer d.wg.Done()

	for {
		select {
		case msg := <-d.ch:
			d.deliver(msg)
		case <-d.done:
			for {
				select {
				case msg := <-d.ch:
					d.deliver(msg)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) deliver(msg Message) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	err := d.sender.Send(ctx, msg)
	d.onResult(ctx, msg, err)
}

func (d *Dispatcher) Send(ctx context.Context, msg Message) error {
	// Holding the read lock keeps Close from closing done between the check
	// and the enqueue.
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed.Load() {
		return oops.Code("DISPATCH_CLOSED").With("kind", msg.Kind).Wrap(model.ErrDispatch)
	}

	select {
	case d.ch <- msg:
		return nil
	case <-ctx.Done():
		return oops.Code("DISPATCH_CANCELLED").With("kind", msg.Kind).Wrap(errors.Join(model.ErrDispatch, ctx.Err()))
	default:
		return oops.Code("DISPATCH_QUEUE_FULL").With("kind", msg.Kind).Wrap(model.ErrDispatch)
	}
}

// Close stops accepting messages and waits until every queued message has
// been handed to the sender.
func (d *Dispatcher) Close() {
	d.closeOnce.Do(func() {
		d.mu.Lock()
		d.closed.Store(true)
		d.mu.Unlock()

		close(d.done)
		d.wg.Wait()
	})
}
