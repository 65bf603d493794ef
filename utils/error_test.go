package utils

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
	Logger = zap.NewNop()
}

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{FieldError("email", "required"), http.StatusUnprocessableEntity, "validation_failed"},
		{fmt.Errorf("login: %w", ErrUnauthorized), http.StatusUnauthorized, "unauthorized"},
		{ErrForbidden, http.StatusForbidden, "forbidden"},
		{fmt.Errorf("vehicle: %w", ErrNotFound), http.StatusNotFound, "not_found"},
		{ErrConflict, http.StatusConflict, "conflict"},
		{fmt.Errorf("create: %w", ErrQuotaExceeded), http.StatusPaymentRequired, "quota_exceeded"},
		{ErrInvalidTransition, http.StatusConflict, "invalid_transition"},
		{fmt.Errorf("boom"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tc := range cases {
		status, code := StatusFor(tc.err)
		assert.Equal(t, tc.status, status, tc.err.Error())
		assert.Equal(t, tc.code, code, tc.err.Error())
	}
}

func TestRespondErrorValidationBody(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/x", nil)

	verr := NewValidationError()
	verr.Add("year", "out of range")
	verr.Add("year", "ignored")
	RespondError(c, verr)

	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "validation_failed", body.Error)
	assert.Equal(t, map[string]string{"year": "out of range"}, body.Fields)
}

func TestRespondErrorHidesInternalDetails(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/x", nil)

	RespondError(c, fmt.Errorf("mongo: connection refused"))

	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "mongo")
}

func TestErrorHandlerRecoversPanics(t *testing.T) {
	r := gin.New()
	r.Use(ErrorHandler())
	r.GET("/panic", func(c *gin.Context) { panic("kaboom") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "internal_error")
}

func TestValidationErrorOrNil(t *testing.T) {
	v := NewValidationError()
	assert.NoError(t, v.OrNil())
	v.Add("a", "bad")
	assert.Error(t, v.OrNil())
	assert.Equal(t, "validation failed: a: bad", v.Error())
}
