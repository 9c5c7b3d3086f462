package app_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bdobrica/Kotoba/internal/kotoba/app"
	"github.com/bdobrica/Kotoba/internal/kotoba/generation"
	"github.com/bdobrica/Kotoba/internal/kotoba/nlp"
)

type fakeStatus struct {
	pingErr error
	count   int
	status  generation.Status
}

func (f *fakeStatus) Ping(context.Context) error          { return f.pingErr }
func (f *fakeStatus) ConversationCount() int              { return f.count }
func (f *fakeStatus) GenerationStatus() generation.Status { return f.status }

func get(t *testing.T, h http.Handler, path string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	var resp map[string]any
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	return w.Code, resp
}

func TestHealthServer_Health(t *testing.T) {
	hs := app.NewHealthServer("127.0.0.1:0", &fakeStatus{}, nil)

	code, resp := get(t, hs, "/health")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", resp["status"])
}

func TestHealthServer_HealthUnavailable(t *testing.T) {
	hs := app.NewHealthServer("127.0.0.1:0", &fakeStatus{pingErr: errors.New("database is locked")}, nil)

	code, resp := get(t, hs, "/health")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "unavailable", resp["status"])
	assert.Equal(t, "database is locked", resp["error"])
}

func TestHealthServer_Status(t *testing.T) {
	hs := app.NewHealthServer("127.0.0.1:0", &fakeStatus{
		count: 5,
		status: generation.Status{
			State:          generation.StateGenerating,
			ConversationID: "chat_1",
			GenerationID:   "g_1",
			Failures:       2,
			LastFailure:    nlp.KindRateLimited,
		},
	}, nil)

	code, resp := get(t, hs, "/status")
	assert.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 5, resp["conversation_count"])
	assert.Equal(t, "generating", resp["generation_state"])
	assert.Equal(t, "chat_1", resp["conversation_id"])
	assert.EqualValues(t, 2, resp["failures"])
	assert.Equal(t, nlp.KindRateLimited.String(), resp["last_failure"])
}
