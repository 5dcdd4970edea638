package apperror

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
)

// HTTPErrorHandler returns an Echo error handler that renders every error as
// {"error": {"code": ..., "message": ...}}.
func HTTPErrorHandler(log *slog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code := http.StatusInternalServerError
		errorObj := map[string]any{
			"code":    "internal_error",
			"message": "An internal error occurred",
		}

		var appErr *Error
		var he *echo.HTTPError
		switch {
		case errors.As(err, &appErr):
			code = appErr.HTTPStatus
			for k, v := range appErr.body() {
				errorObj[k] = v
			}
		case errors.As(err, &he):
			code = he.Code
			switch msg := he.Message.(type) {
			case map[string]any:
				if inner, ok := msg["error"].(map[string]any); ok {
					for k, v := range inner {
						errorObj[k] = v
					}
				}
			case string:
				errorObj["message"] = msg
				errorObj["code"] = codeForStatus(code)
			}
		}

		if code >= 500 {
			log.Error("request error",
				slog.Int("status", code),
				slog.String("path", c.Path()),
				slog.String("error", err.Error()),
			)
		}

		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(code)
			return
		}
		_ = c.JSON(code, map[string]any{"error": errorObj})
	}
}

func codeForStatus(status int) string {
	switch status {
	case http.StatusNotFound:
		return "not_found"
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusConflict:
		return "conflict"
	case http.StatusUnprocessableEntity:
		return "validation_error"
	case http.StatusMethodNotAllowed:
		return "method_not_allowed"
	default:
		return "internal_error"
	}
}
