// ABOUTME: Echo middleware for caller identity and request logging
// ABOUTME: Identity comes from X-User-ID and X-Org-ID headers set by the upstream auth proxy
package web

import (
	"strings"
	"time"

	"github.com/harperreed/cellsync/sync"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const (
	// HeaderUserID carries the authenticated caller, set by the upstream auth proxy.
	HeaderUserID = "X-User-ID"
	// HeaderOrgID carries the caller's organization, if any.
	HeaderOrgID = "X-Org-ID"

	ctxUserID = "user_id"
	ctxOrgID  = "org_id"
)

func identity(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID := strings.TrimSpace(c.Request().Header.Get(HeaderUserID))
		if userID == "" {
			return sync.ErrUnauthenticated
		}
		c.Set(ctxUserID, userID)
		c.Set(ctxOrgID, strings.TrimSpace(c.Request().Header.Get(HeaderOrgID)))
		return next(c)
	}
}

func callerOf(c echo.Context) (userID, orgID string) {
	userID, _ = c.Get(ctxUserID).(string)
	orgID, _ = c.Get(ctxOrgID).(string)
	return userID, orgID
}

func requestLogger(logger *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}
			req := c.Request()
			logger.Info("http request",
				zap.String("method", req.Method),
				zap.String("path", c.Path()),
				zap.Int("status", c.Response().Status),
				zap.Duration("latency", time.Since(start)),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)
			return nil
		}
	}
}
