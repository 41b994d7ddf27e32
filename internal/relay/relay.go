// Package relay implements the inbound log-relay listener.
//
// The relay owns one TCP listening socket and at most one producer
// connection at a time. Every read from that connection becomes one
// timestamped models.LogRecord handed to a Sink, in wire order. There is no
// framing: a producer message may arrive as several records.
//
// The connection slot is a two-state machine. Idle moves to Connected when a
// connection is accepted, and back to Idle when that connection ends. A
// connection that arrives while the slot is Connected is reset immediately
// and never read.
package relay

import (
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/user/proxy-relay-go/internal/config"
	"github.com/user/proxy-relay-go/internal/models"
	"go.uber.org/zap"
)

// Sink receives records in the order they were read. Append must return
// quickly; it runs on the relay's read path.
type Sink interface {
	Append(record models.LogRecord)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(models.LogRecord)

// Append calls f(record).
func (f SinkFunc) Append(record models.LogRecord) { f(record) }

const (
	stateIdle int32 = iota
	stateConnected
)

// Relay is the inbound log-relay listener.
type Relay struct {
	cfg    config.RelayConfig
	sink   Sink
	logger *zap.Logger
	now    func() time.Time

	mu       sync.Mutex
	ln       net.Listener
	active   net.Conn
	bindErr  error
	started  bool
	stopping bool

	slot     atomic.Int32
	seq      atomic.Uint64
	accepted atomic.Int64
	rejected atomic.Int64
	emitted  atomic.Int64

	acceptDone chan struct{}
	wg         sync.WaitGroup
}

// Option customizes a Relay.
type Option func(*Relay)

// WithClock replaces time.Now for capture timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Relay) { r.now = now }
}

// New creates a relay that will deliver records to sink. Call Start to bind.
func New(cfg config.RelayConfig, sink Sink, logger *zap.Logger, opts ...Option) *Relay {
	if cfg.ReadBufferSize <= 0 {
		cfg.ReadBufferSize = config.DefaultConfig().Relay.ReadBufferSize
	}
	r := &Relay{
		cfg:        cfg,
		sink:       sink,
		logger:     logger.Named("relay"),
		now:        time.Now,
		acceptDone: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start binds the listening socket and starts the accept loop. A bind
// failure is returned as *BindError and is terminal: the relay stays
// unavailable and Start cannot be retried on the same Relay.
func (r *Relay) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started {
		return errors.New("relay: already started")
	}
	r.started = true

	addr := r.cfg.Address()
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		r.bindErr = &BindError{Addr: addr, Err: err}
		close(r.acceptDone)
		r.logger.Error("relay unavailable", zap.String("addr", addr), zap.Error(err))
		return r.bindErr
	}
	r.ln = ln

	r.logger.Info("relay listening", zap.String("addr", ln.Addr().String()))

	go r.acceptLoop(ln)
	return nil
}

// Addr returns the bound address, or nil if the relay is not listening.
func (r *Relay) Addr() net.Addr {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ln == nil {
		return nil
	}
	return r.ln.Addr()
}

// State reports the connection slot state.
func (r *Relay) State() models.RelayState {
	r.mu.Lock()
	listening := r.ln != nil && !r.stopping
	r.mu.Unlock()

	switch {
	case r.slot.Load() == stateConnected:
		return models.RelayConnected
	case listening:
		return models.RelayIdle
	default:
		return models.RelayStopped
	}
}

// Status returns a snapshot for status surfaces.
func (r *Relay) Status() models.RelayStatus {
	st := models.RelayStatus{
		State:               r.State(),
		ConnectionsAccepted: r.accepted.Load(),
		ConnectionsRejected: r.rejected.Load(),
		RecordsEmitted:      r.emitted.Load(),
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.bindErr != nil {
		st.Error = r.bindErr.Error()
	}
	if r.ln != nil {
		st.Address = r.ln.Addr().String()
		st.Available = !r.stopping
	}
	return st
}

// Shutdown stops accepting connections and releases the port. An in-flight
// connection is given ShutdownGrace (or until ctx is done) to finish; after
// that it is closed. Shutdown is safe to call more than once.
func (r *Relay) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	if !r.started {
		r.mu.Unlock()
		return nil
	}
	if r.ln == nil || r.stopping {
		r.mu.Unlock()
		<-r.acceptDone
		r.wg.Wait()
		return nil
	}
	r.stopping = true
	ln := r.ln
	r.mu.Unlock()

	r.logger.Info("relay shutting down")
	ln.Close()
	<-r.acceptDone

	drained := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(drained)
	}()

	grace := time.NewTimer(r.cfg.ShutdownGrace)
	defer grace.Stop()

	var err error
	select {
	case <-drained:
		return nil
	case <-grace.C:
	case <-ctx.Done():
		err = ctx.Err()
	}

	r.mu.Lock()
	if r.active != nil {
		r.logger.Warn("closing in-flight connection after shutdown grace period")
		r.active.Close()
	}
	r.mu.Unlock()
	<-drained
	return err
}

func (r *Relay) acceptLoop(ln net.Listener) {
	defer close(r.acceptDone)

	var backoff time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			// Transient accept failures (e.g. EMFILE) back off like net/http.
			if backoff == 0 {
				backoff = 5 * time.Millisecond
			} else {
				backoff *= 2
			}
			if limit := time.Second; backoff > limit {
				backoff = limit
			}
			r.logger.Warn("accept failed", zap.Error(err), zap.Duration("retry_in", backoff))
			time.Sleep(backoff)
			continue
		}
		backoff = 0

		if !r.claim(conn) {
			r.reject(conn)
			continue
		}

		r.wg.Add(1)
		go r.serve(conn)
	}
}

// claim moves the slot from Idle to Connected and records conn as active.
func (r *Relay) claim(conn net.Conn) bool {
	if !r.slot.CompareAndSwap(stateIdle, stateConnected) {
		return false
	}
	r.mu.Lock()
	r.active = conn
	r.mu.Unlock()
	r.accepted.Add(1)
	return true
}

// release returns the slot to Idle once the active connection is finished.
func (r *Relay) release() {
	r.mu.Lock()
	r.active = nil
	r.mu.Unlock()
	r.slot.Store(stateIdle)
}

func (r *Relay) reject(conn net.Conn) {
	r.rejected.Add(1)
	if tcp, ok := conn.(*net.TCPConn); ok {
		// SO_LINGER 0 makes Close send RST instead of FIN.
		_ = tcp.SetLinger(0)
	}
	conn.Close()
	r.logger.Debug("rejected connection while another is active",
		zap.String("remote", conn.RemoteAddr().String()))
}
