package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"autodiag/models"
	"autodiag/services/user"

	"github.com/stretchr/testify/assert"
)

// countingUsers counts the requests that got past binding.
type countingUsers struct {
	user.UserService
	calls int
}

func (u *countingUsers) Register(context.Context, user.RegisterRequest, models.Device) (*user.AuthResponse, error) {
	u.calls++
	return &user.AuthResponse{Account: models.Account{User: &models.User{ID: "u1"}}}, nil
}

func (u *countingUsers) Login(context.Context, user.LoginRequest, models.Device) (*user.AuthResponse, error) {
	u.calls++
	return &user.AuthResponse{}, nil
}

func (u *countingUsers) VerifyOTP(context.Context, user.OTPVerifyRequest, models.Device) (*user.AuthResponse, error) {
	u.calls++
	return &user.AuthResponse{}, nil
}

func TestBindingRulesReportFieldsByJSONName(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		body   string
		fields []string
	}{
		{
			name:   "register missing everything",
			path:   "/register",
			body:   `{}`,
			fields: []string{"role", "name", "email", "phoneNumber", "password"},
		},
		{
			name:   "register bad email and short phone",
			path:   "/register",
			body:   `{"role":"driver","name":"Wanjiru","email":"nope","phoneNumber":"123","password":"Secret#123"}`,
			fields: []string{"email", "phoneNumber"},
		},
		{
			name:   "expert without business",
			path:   "/register",
			body:   `{"role":"expert","name":"Otieno","email":"o@example.com","phoneNumber":"0712345678","password":"Secret#123","latitude":95,"longitude":36.8}`,
			fields: []string{"businessName", "latitude"},
		},
		{
			name:   "login",
			path:   "/login",
			body:   `{"email":""}`,
			fields: []string{"email", "password"},
		},
		{
			name:   "otp of the wrong length",
			path:   "/otp/verify",
			body:   `{"phoneNumber":"0712345678","otp":"12"}`,
			fields: []string{"otp"},
		},
		{
			name:   "malformed body",
			path:   "/login",
			body:   `{"email":`,
			fields: []string{"body"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			users := &countingUsers{}
			h := NewUserHandler(users)
			r := newEngine()
			r.POST("/register", h.Register)
			r.POST("/login", h.Login)
			r.POST("/otp/verify", h.VerifyOTP)

			w := httptest.NewRecorder()
			r.ServeHTTP(w, jsonRequest(http.MethodPost, tt.path, tt.body))

			assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
			resp := decode(t, w)
			for _, f := range tt.fields {
				assert.Contains(t, resp.Fields, f)
			}
			assert.Len(t, resp.Fields, len(tt.fields))
			assert.Zero(t, users.calls)
		})
	}
}

func TestValidRegistrationReachesService(t *testing.T) {
	users := &countingUsers{}
	h := NewUserHandler(users)
	r := newEngine()
	r.POST("/register", h.Register)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, jsonRequest(http.MethodPost, "/register",
		`{"role":"driver","name":"Wanjiru","email":"w@example.com","phoneNumber":"0712345678","password":"Secret#123"}`))

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, 1, users.calls)
}
