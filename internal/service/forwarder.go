package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/user/proxy-relay-go/internal/producer"
	"go.uber.org/zap"
)

// Sender delivers one relay message. *producer.Client implements it.
type Sender interface {
	Send(ctx context.Context, text string) error
}

// ForwarderStats counts relay deliveries.
type ForwarderStats struct {
	Sent    int64 `json:"sent"`
	Failed  int64 `json:"failed"`
	Dropped int64 `json:"dropped"`
}

// Forwarder sends intercepted requests to the relay from a single worker so
// the relay never sees two producer connections at once. Enqueue never
// blocks the proxied request.
type Forwarder struct {
	sender     Sender
	logger     *zap.Logger
	queue      chan string
	done       chan struct{}
	mu         sync.RWMutex // guards stopped against Enqueue
	stopped    bool
	wg         sync.WaitGroup
	maxRetries int
	backoff    time.Duration

	sent    atomic.Int64
	failed  atomic.Int64
	dropped atomic.Int64
}

// NewForwarder creates a Forwarder and starts its worker.
func NewForwarder(sender Sender, logger *zap.Logger) *Forwarder {
	f := &Forwarder{
		sender:     sender,
		logger:     logger.Named("forwarder"),
		queue:      make(chan string, 1000),
		done:       make(chan struct{}),
		maxRetries: 3,
		backoff:    20 * time.Millisecond,
	}

	f.wg.Add(1)
	go f.worker()

	return f
}

// Enqueue queues text for delivery, dropping it if the queue is full or the
// forwarder is stopped.
func (f *Forwarder) Enqueue(text string) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.stopped {
		f.dropped.Add(1)
		return
	}

	select {
	case f.queue <- text:
	default:
		f.dropped.Add(1)
		f.logger.Warn("relay queue full, dropping intercepted request")
	}
}

// Stats returns delivery counters.
func (f *Forwarder) Stats() ForwarderStats {
	return ForwarderStats{
		Sent:    f.sent.Load(),
		Failed:  f.failed.Load(),
		Dropped: f.dropped.Load(),
	}
}

// Stop delivers what is already queued and stops the worker.
func (f *Forwarder) Stop() {
	f.mu.Lock()
	if !f.stopped {
		f.stopped = true
		close(f.done)
	}
	f.mu.Unlock()
	f.wg.Wait()
}

func (f *Forwarder) worker() {
	defer f.wg.Done()

	for {
		select {
		case <-f.done:
			for {
				select {
				case text := <-f.queue:
					f.deliver(text)
				default:
					return
				}
			}
		case text := <-f.queue:
			f.deliver(text)
		}
	}
}

func (f *Forwarder) deliver(text string) {
	var err error
	for attempt := 0; attempt <= f.maxRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(time.Duration(attempt) * f.backoff)
		}
		err = f.sender.Send(context.Background(), text)
		if err == nil {
			f.sent.Add(1)
			return
		}
		if !errors.Is(err, producer.ErrRejected) {
			break
		}
	}

	f.failed.Add(1)
	f.logger.Warn("failed to forward intercepted request", zap.Error(err))
}
