//go:build !integration && !e2e
// +build !integration,!e2e

package handler

import (
	"context"
	"sync"

	"github.com/user/proxy-relay-go/internal/models"
	"github.com/user/proxy-relay-go/internal/service"
)

type fakeRelay struct {
	status models.RelayStatus
}

func (f fakeRelay) Status() models.RelayStatus { return f.status }

// fakeProxy mimics ProxyService state transitions.
type fakeProxy struct {
	mu       sync.Mutex
	status   models.ProxyStatus
	startErr error
	stopErr  error
}

func (f *fakeProxy) Start(ctx context.Context, host string, port int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return f.startErr
	}
	if f.status.Running {
		return service.ErrProxyRunning
	}
	f.status = models.ProxyStatus{Running: true, Host: host, Port: port}
	return nil
}

func (f *fakeProxy) Stop(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.status.Running {
		return service.ErrProxyNotRunning
	}
	f.status.Running = false
	return f.stopErr
}

func (f *fakeProxy) Status() models.ProxyStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status
}
