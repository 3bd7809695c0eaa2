// ABOUTME: Maps sync and storage errors to HTTP responses
// ABOUTME: Every error body is {error, details?, reauth_required?}
package web

import (
	"errors"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/harperreed/cellsync/sync"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// ErrorResponse is the JSON body of every error reply.
type ErrorResponse struct {
	Error          string `json:"error"`
	Details        string `json:"details,omitempty"`
	ReauthRequired bool   `json:"reauth_required,omitempty"`
}

// statusFor maps sentinel errors to status codes and a user-facing message.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, sync.ErrUnauthenticated):
		return http.StatusUnauthorized, "Authentication required"
	case errors.Is(err, sync.ErrReauthRequired):
		return http.StatusUnauthorized, "CRM connection needs to be re-authorized"
	case errors.Is(err, sync.ErrCellNotFound):
		return http.StatusNotFound, "Cell not found"
	case errors.Is(err, sync.ErrSyncInProgress):
		return http.StatusConflict, "A sync is already running for this cell"
	case errors.Is(err, sync.ErrIntegrationMissing):
		return http.StatusBadRequest, "CRM is not connected"
	case errors.Is(err, sync.ErrUnknownCRM):
		return http.StatusBadRequest, "Unsupported CRM"
	case errors.Is(err, sync.ErrInvalidRequest):
		return http.StatusBadRequest, "Invalid request"
	case errors.Is(err, sync.ErrFetchFailed):
		return http.StatusInternalServerError, "Failed to fetch contacts from CRM"
	default:
		return http.StatusInternalServerError, "Internal Server Error"
	}
}

// ErrorHandler renders errors returned by handlers.
func ErrorHandler(logger *zap.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		resp := ErrorResponse{}
		var code int

		var he *echo.HTTPError
		switch {
		case errors.As(err, &he):
			code = he.Code
			if msg, ok := he.Message.(string); ok {
				resp.Error = msg
			} else {
				resp.Error = http.StatusText(code)
			}
		case httperror.IsHTTPError(err):
			code = httperror.GetStatusCode(err)
			resp.Error = httperror.ToHTTPError(err).Error()
		default:
			code, resp.Error = statusFor(err)
			if code != http.StatusInternalServerError || errors.Is(err, sync.ErrFetchFailed) {
				resp.Details = err.Error()
			}
			resp.ReauthRequired = errors.Is(err, sync.ErrReauthRequired)
		}

		if code >= http.StatusInternalServerError {
			logger.Error("api is returning an error", zap.Int("status", code), zap.Error(err))
		} else {
			logger.Debug("api is returning an error", zap.Int("status", code), zap.Error(err))
		}

		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(code)
			return
		}
		_ = c.JSON(code, resp)
	}
}
