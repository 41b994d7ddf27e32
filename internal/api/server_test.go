//go:build !integration && !e2e
// +build !integration,!e2e

package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/user/proxy-relay-go/internal/models"
	"github.com/user/proxy-relay-go/internal/sink"
	"github.com/user/proxy-relay-go/internal/testutil"
)

type staticRelay struct{}

func (staticRelay) Status() models.RelayStatus {
	return models.RelayStatus{Available: true, State: models.RelayIdle}
}

func newTestServer() *Server {
	buf := sink.NewBuffer()
	buf.Append(testutil.SampleRecord(1))
	return NewServer(ServerDeps{
		Buffer: buf,
		Relay:  staticRelay{},
		Logger: testutil.NewTestLogger(),
	})
}

func TestServer_Routes(t *testing.T) {
	s := newTestServer()

	tests := []struct {
		path   string
		status int
	}{
		{"/api/health", http.StatusOK},
		{"/api/records", http.StatusOK},
		{"/api/records/text", http.StatusOK},
		{"/api/proxy", http.StatusNotFound},
		{"/api/system-logs", http.StatusNotFound},
		{"/nope", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			s.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, nil))
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
		})
	}
}

func TestServer_NotFoundBody(t *testing.T) {
	w := httptest.NewRecorder()
	newTestServer().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nope", nil))
	testutil.AssertDetail(t, w, http.StatusNotFound, "Not Found")
}
