//go:build !integration && !e2e
// +build !integration,!e2e

package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/user/proxy-relay-go/internal/service"
	"go.uber.org/zap"
)

type recordingSender struct {
	mu    sync.Mutex
	texts []string
}

func (s *recordingSender) Send(_ context.Context, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.texts = append(s.texts, text)
	return nil
}

func (s *recordingSender) all() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.texts...)
}

func TestCaptureHandler_PrintsSortedHeaders(t *testing.T) {
	var out bytes.Buffer
	req := httptest.NewRequest(http.MethodPost, "http://origin.test/v1/echo", strings.NewReader("hello"))
	req.Header.Set("X-Zeta", "last")
	req.Header.Set("Accept", "*/*")
	req.Header.Set("X-Long", strings.Repeat("a", 200))
	w := httptest.NewRecorder()

	captureHandler(&out, nil).ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	printed := out.String()
	assert.Contains(t, printed, "=== POST /v1/echo ===")
	assert.Less(t, strings.Index(printed, "Accept: */*"), strings.Index(printed, "X-Zeta: last"))
	assert.Contains(t, printed, "X-Long: "+strings.Repeat("a", maxHeaderDisplay)+"...")
	assert.Contains(t, printed, "[Body: 5 bytes]")
}

func TestCaptureHandler_Forwards(t *testing.T) {
	sender := &recordingSender{}
	forwarder := service.NewForwarder(sender, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "http://origin.test/path?q=1", nil)
	req.Header.Set("User-Agent", "curl/8.0")
	captureHandler(&bytes.Buffer{}, forwarder).ServeHTTP(httptest.NewRecorder(), req)
	forwarder.Stop()

	texts := sender.all()
	require.Len(t, texts, 1)
	assert.True(t, strings.HasPrefix(texts[0], "URL: http://origin.test/path?q=1\nHeaders:"))
	assert.Contains(t, texts[0], "User-Agent: curl/8.0")
}

func TestCaptureHandler_ForwardStopDrains(t *testing.T) {
	sender := &recordingSender{}
	forwarder := service.NewForwarder(sender, zap.NewNop())

	for i := 0; i < 5; i++ {
		req := httptest.NewRequest(http.MethodGet, "http://origin.test/", nil)
		captureHandler(&bytes.Buffer{}, forwarder).ServeHTTP(httptest.NewRecorder(), req)
	}

	done := make(chan struct{})
	go func() {
		forwarder.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("forwarder did not stop")
	}
	assert.Len(t, sender.all(), 5)
}
