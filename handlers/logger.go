package handlers

import (
	"errors"
	"io"
	"strconv"
	"strings"
	"time"

	"autodiag/middleware"
	"autodiag/models"
	"autodiag/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// getLogger returns the request scoped logger when one is set, otherwise the
// process logger with the caller attached.
func getLogger(c *gin.Context) *zap.Logger {
	if l, exists := c.Get("logger"); exists {
		if logger, ok := l.(*zap.Logger); ok {
			return logger
		}
	}
	logger := utils.GetLogger()
	if id := middleware.UserID(c); id != "" {
		logger = logger.With(zap.String("userId", id))
	}
	return logger
}

// bindJSON decodes and validates the request body. Rule failures are keyed
// by field; malformed bodies are reported on "body".
func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		if verr := bindingError(err); verr != nil {
			utils.RespondError(c, verr)
			return false
		}
		msg := "invalid JSON body"
		if errors.Is(err, io.EOF) {
			msg = "request body is required"
		}
		getLogger(c).Debug("rejecting request body", zap.Error(err))
		utils.RespondError(c, utils.FieldError("body", msg))
		return false
	}
	return true
}

func bindQuery(c *gin.Context, dst any) bool {
	if err := c.ShouldBindQuery(dst); err != nil {
		if verr := bindingError(err); verr != nil {
			utils.RespondError(c, verr)
			return false
		}
		utils.RespondError(c, utils.FieldError("query", err.Error()))
		return false
	}
	return true
}

func pageFrom(c *gin.Context) (models.PageRequest, bool) {
	var page models.PageRequest
	if !bindQuery(c, &page) {
		return page, false
	}
	return page.Normalize(), true
}

// intQuery parses an optional integer query parameter.
func intQuery(c *gin.Context, name string) (int, bool) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		utils.RespondError(c, utils.FieldError(name, "must be an integer"))
		return 0, false
	}
	return n, true
}

// timeQuery parses an optional RFC 3339 query parameter.
func timeQuery(c *gin.Context, name string) (time.Time, bool) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return time.Time{}, true
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		utils.RespondError(c, utils.FieldError(name, "must be an RFC 3339 timestamp"))
		return time.Time{}, false
	}
	return t, true
}
