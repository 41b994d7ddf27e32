package service

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/user/proxy-relay-go/internal/config"
	"github.com/user/proxy-relay-go/internal/models"
	"github.com/user/proxy-relay-go/internal/repository"
	"go.uber.org/zap"
)

var (
	// ErrProxyRunning is returned by Start when the proxy is already up.
	ErrProxyRunning = errors.New("proxy is already running")
	// ErrProxyNotRunning is returned by Stop when there is nothing to stop.
	ErrProxyNotRunning = errors.New("proxy is not running")
)

// ProxyService starts and stops the intercepting proxy on demand.
type ProxyService struct {
	interceptor *Interceptor
	settings    *repository.SettingsRepository
	logger      *zap.Logger

	mu        sync.Mutex
	server    *http.Server
	serveDone chan struct{}
	host      string
	port      int
	startedAt time.Time
}

// NewProxyService creates a stopped ProxyService. settings may be nil, in
// which case the listen address is not persisted.
func NewProxyService(interceptor *Interceptor, settings *repository.SettingsRepository, logger *zap.Logger) *ProxyService {
	return &ProxyService{
		interceptor: interceptor,
		settings:    settings,
		logger:      logger.Named("proxy"),
	}
}

// Start listens on host:port and serves the interceptor. Port 0 picks a free
// port; Status reports the one chosen.
func (s *ProxyService) Start(ctx context.Context, host string, port int) error {
	if port < 0 || port > 65535 {
		return &config.ConfigError{Field: "proxy.port", Message: "must be between 0 and 65535"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server != nil {
		return ErrProxyRunning
	}

	addr := net.JoinHostPort(host, strconv.Itoa(port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	server := &http.Server{
		Handler:           s.interceptor,
		ReadHeaderTimeout: 30 * time.Second,
		ErrorLog:          zap.NewStdLog(s.logger),
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("proxy server stopped", zap.Error(err))
		}
	}()

	s.server = server
	s.serveDone = done
	s.host = host
	s.port = ln.Addr().(*net.TCPAddr).Port
	s.startedAt = time.Now()

	s.logger.Info("proxy started", zap.String("addr", ln.Addr().String()))

	if s.settings != nil {
		if err := s.settings.SetMany(ctx, map[string]string{
			config.KeyProxyHost: host,
			config.KeyProxyPort: strconv.Itoa(port),
		}); err != nil {
			s.logger.Warn("failed to persist proxy address", zap.Error(err))
		}
	}
	return nil
}

// Stop shuts the proxy down, waiting for in-flight requests until ctx is
// done and then closing what is left.
func (s *ProxyService) Stop(ctx context.Context) error {
	s.mu.Lock()
	server, done := s.server, s.serveDone
	s.server, s.serveDone = nil, nil
	s.mu.Unlock()

	if server == nil {
		return ErrProxyNotRunning
	}

	err := server.Shutdown(ctx)
	if err != nil {
		s.logger.Warn("proxy shutdown timed out, closing connections", zap.Error(err))
		_ = server.Close()
	}
	<-done

	s.logger.Info("proxy stopped")
	return err
}

// Running reports whether the proxy is serving.
func (s *ProxyService) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.server != nil
}

// Status returns the proxy state for display.
func (s *ProxyService) Status() models.ProxyStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := models.ProxyStatus{
		Running:     s.server != nil,
		Host:        s.host,
		Port:        s.port,
		Intercepted: s.interceptor.Intercepted(),
	}
	if st.Running {
		started := s.startedAt
		st.StartedAt = &started
	}
	return st
}

// Forwarder returns the relay delivery stats source.
func (s *ProxyService) Forwarder() *Forwarder {
	return s.interceptor.Forwarder()
}
