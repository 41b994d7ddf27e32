package testutil

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// DecodeJSON unmarshals a recorded response body into a generic map.
func DecodeJSON(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), "response is not JSON: %s", w.Body.String())
	return resp
}

// AssertDetail checks the {"detail": message} error body.
func AssertDetail(t *testing.T, w *httptest.ResponseRecorder, status int, detail string) {
	t.Helper()

	assert.Equal(t, status, w.Code)
	resp := DecodeJSON(t, w)
	assert.Equal(t, detail, resp["detail"])
}
