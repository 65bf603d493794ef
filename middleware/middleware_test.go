package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"autodiag/models"
	"autodiag/services/user"
	"autodiag/utils"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
	utils.Logger = zap.NewNop()
}

type fakeAuth struct{}

func (fakeAuth) Authenticate(_ context.Context, token, deviceID string) (*user.Principal, error) {
	if token == "driver-token" && deviceID == "device-0001" {
		return &user.Principal{UserID: "driver-1", Role: models.RoleDriver, DeviceID: deviceID}, nil
	}
	return nil, utils.ErrUnauthorized
}

func newRouter(handlers ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.GET("/x", append(handlers, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"userId": UserID(c), "role": Role(c), "device": Device(c).DeviceID})
	})...)
	return r
}

func do(r http.Handler, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestDeviceMiddleware(t *testing.T) {
	r := newRouter(DeviceMiddleware())

	tests := []struct {
		name   string
		id     string
		status int
	}{
		{"missing", "", http.StatusUnprocessableEntity},
		{"too short", "abc", http.StatusUnprocessableEntity},
		{"too long", strings.Repeat("a", 129), http.StatusUnprocessableEntity},
		{"ok", "device-0001", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			headers := map[string]string{}
			if tt.id != "" {
				headers[HeaderDeviceID] = tt.id
			}
			assert.Equal(t, tt.status, do(r, headers).Code)
		})
	}
}

func TestJWTAuthMiddleware(t *testing.T) {
	r := newRouter(DeviceMiddleware(), JWTAuthMiddleware(fakeAuth{}), RequireRole(models.RoleDriver))

	w := do(r, map[string]string{HeaderDeviceID: "device-0001", "Authorization": "Bearer driver-token"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"userId":"driver-1"`)

	w = do(r, map[string]string{HeaderDeviceID: "device-0002", "Authorization": "Bearer driver-token"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(r, map[string]string{HeaderDeviceID: "device-0001"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireRoleForbids(t *testing.T) {
	r := newRouter(DeviceMiddleware(), JWTAuthMiddleware(fakeAuth{}), RequireRole(models.RoleAdmin))
	w := do(r, map[string]string{HeaderDeviceID: "device-0001", "Authorization": "Bearer driver-token"})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRateLimiter(t *testing.T) {
	limiter := NewRateLimiter(2)
	r := newRouter(limiter.Middleware())
	headers := map[string]string{"X-Forwarded-For": "203.0.113.9, 10.0.0.1"}

	assert.Equal(t, http.StatusOK, do(r, headers).Code)
	assert.Equal(t, http.StatusOK, do(r, headers).Code)
	assert.Equal(t, http.StatusTooManyRequests, do(r, headers).Code)
	// Other clients have their own bucket.
	assert.Equal(t, http.StatusOK, do(r, map[string]string{"X-Real-IP": "198.51.100.7"}).Code)

	assert.Equal(t, 2, limiter.Sweep(time.Now().Add(time.Hour)))
}

func TestHTTPMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewHTTPMetrics(reg)
	r := newRouter(m.Middleware())

	do(r, nil)
	do(r, nil)
	assert.Equal(t, float64(2), testutil.ToFloat64(m.requests.WithLabelValues("/x", http.MethodGet, "200")))
}
