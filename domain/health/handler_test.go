package health

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soldey/graph-api/domain/scheduler"
	"github.com/soldey/graph-api/internal/config"
)

type fakePool struct {
	err error
}

func (p *fakePool) Ping(context.Context) error { return p.err }
func (p *fakePool) Stat() *pgxpool.Stat        { return nil }

func get(h echo.HandlerFunc) (*httptest.ResponseRecorder, error) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	return rec, h(e.NewContext(req, rec))
}

func TestHealth(t *testing.T) {
	cfg := &config.Config{}

	t.Run("healthy", func(t *testing.T) {
		h := newHandler(&fakePool{}, t.TempDir(), cfg)
		rec, err := get(h.Health)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, rec.Code)

		var body HealthResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "healthy", body.Status)
		assert.Equal(t, "healthy", body.Checks["database"].Status)
		assert.Empty(t, body.Checks["database"].Message)
	})

	t.Run("database down", func(t *testing.T) {
		h := newHandler(&fakePool{err: errors.New("connection refused")}, t.TempDir(), cfg)
		rec, err := get(h.Health)
		require.NoError(t, err)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

		var body HealthResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "unhealthy", body.Status)
		assert.Equal(t, "connection refused", body.Checks["database"].Message)
	})
}

func TestHealth_MissingTransferDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "gone")
	h := newHandler(&fakePool{}, dir, &config.Config{})

	rec, err := get(h.Health)
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body.Checks["database"].Status)
	assert.Equal(t, "unhealthy", body.Checks["transfer_dir"].Status)

	rec, err = get(h.Ready)
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestReady(t *testing.T) {
	cfg := &config.Config{}

	rec, err := get(newHandler(&fakePool{}, t.TempDir(), cfg).Ready)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ready"`)

	rec, err = get(newHandler(&fakePool{err: errors.New("down")}, t.TempDir(), cfg).Ready)
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "not_ready")
}

func TestHealthz(t *testing.T) {
	rec, err := get(newHandler(&fakePool{err: errors.New("down")}, t.TempDir(), &config.Config{}).Healthz)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestDebug_HiddenInProduction(t *testing.T) {
	h := newHandler(&fakePool{}, t.TempDir(), &config.Config{Environment: "production"})
	_, err := get(h.Debug)

	var he *echo.HTTPError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, http.StatusNotFound, he.Code)
}

func TestSchedulerMetrics(t *testing.T) {
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError + 1}))
	s := scheduler.NewScheduler(log)
	require.NoError(t, s.AddIntervalTask("artifact_sweep", time.Hour, func(context.Context) error { return nil }))

	m := NewMetricsHandler(nil, s, log)
	rec, err := get(m.SchedulerMetrics)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Running bool                 `json:"running"`
		Tasks   []scheduler.TaskInfo `json:"tasks"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.False(t, body.Running)
	require.Len(t, body.Tasks, 1)
	assert.Equal(t, "artifact_sweep", body.Tasks[0].Name)
}
