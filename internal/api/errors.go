// Package api is the HTTP and websocket surface.
//
// Handlers are thin: parse the request, call a service, map the result.
// Every error goes through respondError so clients always see
// {"error": {"code": ..., "message": ...}}.
package api

import (
	"strconv"

	"github.com/ayman-boop/ub-chat/internal/apperr"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// respondError writes err in the public error shape. Internal causes are
// logged and never sent to the client.
func respondError(c *gin.Context, logger *zap.Logger, err error) {
	kind, msg := apperr.Public(err)
	if kind == apperr.KindInternal {
		logger.Error("request failed",
			zap.Error(err),
			zap.String("method", c.Request.Method),
			zap.String("route", c.FullPath()),
		)
	}
	c.AbortWithStatusJSON(apperr.HTTPStatus(kind), gin.H{
		"error": gin.H{"code": kind, "message": msg},
	})
}

// pageParams reads ?page= and ?limit=. Missing values are 0 and the
// service applies defaults.
func pageParams(c *gin.Context) (int, int, error) {
	page, err := intQuery(c, "page")
	if err != nil {
		return 0, 0, err
	}
	limit, err := intQuery(c, "limit")
	if err != nil {
		return 0, 0, err
	}
	return page, limit, nil
}

func intQuery(c *gin.Context, key string) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperr.InvalidInput("'" + key + "' must be a number")
	}
	return v, nil
}

func idParam(c *gin.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id < 1 {
		return 0, apperr.InvalidInput("invalid message id")
	}
	return id, nil
}
