package apperror

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serveError(t *testing.T, method string, err error) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	e := echo.New()
	handler := HTTPErrorHandler(slog.Default())

	req := httptest.NewRequest(method, "/", nil)
	rec := httptest.NewRecorder()
	handler(err, e.NewContext(req, rec))

	if rec.Body.Len() == 0 {
		return rec, nil
	}
	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return rec, resp["error"].(map[string]any)
}

func TestHTTPErrorHandler_AppError(t *testing.T) {
	rec, body := serveError(t, http.MethodGet, ErrGraphNotFound.WithMessage("graph 'ring' not found"))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "graph_not_found", body["code"])
	assert.Equal(t, "graph 'ring' not found", body["message"])
}

func TestHTTPErrorHandler_WrappedAppError(t *testing.T) {
	rec, body := serveError(t, http.MethodPost, fmt.Errorf("bulk upload: %w", NewBadRequest("v index 12 out of range")))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "bad_request", body["code"])
}

func TestHTTPErrorHandler_EchoStatusCodes(t *testing.T) {
	tests := []struct {
		status   int
		wantCode string
	}{
		{http.StatusNotFound, "not_found"},
		{http.StatusBadRequest, "bad_request"},
		{http.StatusConflict, "conflict"},
		{http.StatusUnprocessableEntity, "validation_error"},
		{http.StatusMethodNotAllowed, "method_not_allowed"},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			rec, body := serveError(t, http.MethodGet, echo.NewHTTPError(tt.status, "test message"))
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.wantCode, body["code"])
			assert.Equal(t, "test message", body["message"])
		})
	}
}

func TestHTTPErrorHandler_StructuredEchoError(t *testing.T) {
	rec, body := serveError(t, http.MethodGet, ErrValidation.WithMessage("unknown node type").ToEchoError())

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "validation_error", body["code"])
	assert.Equal(t, "unknown node type", body["message"])
}

func TestHTTPErrorHandler_UnknownError(t *testing.T) {
	rec, body := serveError(t, http.MethodGet, fmt.Errorf("boom"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal_error", body["code"])
}

func TestHTTPErrorHandler_HeadRequest(t *testing.T) {
	rec, body := serveError(t, http.MethodHead, ErrNodeNotFound)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Nil(t, body)
}

func TestHTTPErrorHandler_CommittedResponse(t *testing.T) {
	e := echo.New()
	handler := HTTPErrorHandler(slog.Default())
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	c.Response().WriteHeader(http.StatusOK)
	_, _ = c.Response().Write([]byte("already written"))

	handler(NewBadRequest("should not appear"), c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "already written", rec.Body.String())
}
