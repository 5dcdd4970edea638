package server

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"

	"github.com/soldey/graph-api/internal/config"
	"github.com/soldey/graph-api/pkg/apperror"
)

func testConfig() *config.Config {
	return &config.Config{APIPrefix: "/api/v1", BodyLimit: "1K"}
}

func TestNewEcho_ErrorFormat(t *testing.T) {
	cfg := testConfig()
	e := NewEcho(cfg, slog.Default())
	API(e, cfg).GET("/node/select-one/:id", func(c echo.Context) error {
		return apperror.ErrNodeNotFound
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/node/select-one/9/", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), `"node_not_found"`)
	assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))
}

func TestNewEcho_BodyLimit(t *testing.T) {
	cfg := testConfig()
	e := NewEcho(cfg, slog.Default())
	API(e, cfg).POST("/edge/create-bulk", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/edge/create-bulk", strings.NewReader(strings.Repeat("x", 4096)))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestNewEcho_RecoversPanics(t *testing.T) {
	cfg := testConfig()
	e := NewEcho(cfg, slog.Default())
	e.GET("/boom", func(c echo.Context) error {
		panic("boom")
	})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
