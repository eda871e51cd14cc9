package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePinger struct{ err error }

func (p fakePinger) PingContext(context.Context) error { return p.err }

func TestHealth(t *testing.T) {
	tests := []struct {
		name       string
		pingErr    error
		wantStatus int
		wantState  string
	}{
		{name: "database up", wantStatus: http.StatusOK, wantState: "healthy"},
		{name: "database down", pingErr: errors.New("refused"), wantStatus: http.StatusServiceUnavailable, wantState: "unhealthy"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandler(fakePinger{err: tt.pingErr})
			rec := httptest.NewRecorder()
			c := echo.New().NewContext(httptest.NewRequest(http.MethodGet, "/health", nil), rec)

			require.NoError(t, h.Health(c))
			assert.Equal(t, tt.wantStatus, rec.Code)

			var body HealthResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.wantState, body.Status)
			assert.Equal(t, tt.wantState, body.Checks["database"].Status)
			assert.Equal(t, "dev", body.Version.Version)
		})
	}
}

func TestReady(t *testing.T) {
	e := echo.New()

	rec := httptest.NewRecorder()
	require.NoError(t, NewHandler(fakePinger{}).Ready(e.NewContext(httptest.NewRequest(http.MethodGet, "/ready", nil), rec)))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	require.NoError(t, NewHandler(fakePinger{err: errors.New("x")}).Ready(e.NewContext(httptest.NewRequest(http.MethodGet, "/ready", nil), rec)))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMetricsRoute(t *testing.T) {
	e := echo.New()
	RegisterRoutes(e, NewHandler(fakePinger{}))

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
