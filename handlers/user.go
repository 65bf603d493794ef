package handlers

import (
	"net/http"

	"autodiag/middleware"
	"autodiag/models"
	"autodiag/services/user"
	"autodiag/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type UserHandler struct {
	Users user.UserService
}

func NewUserHandler(svc user.UserService) *UserHandler {
	return &UserHandler{Users: svc}
}

func (h *UserHandler) Register(c *gin.Context) {
	var req user.RegisterRequest
	if !bindJSON(c, &req) {
		return
	}
	resp, err := h.Users.Register(c.Request.Context(), req, middleware.SignInDevice(c))
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	getLogger(c).Info("account registered", zap.String("userId", resp.Account.User.ID), zap.String("role", string(req.Role)))
	c.JSON(http.StatusCreated, resp)
}

func (h *UserHandler) Login(c *gin.Context) {
	var req user.LoginRequest
	if !bindJSON(c, &req) {
		return
	}
	resp, err := h.Users.Login(c.Request.Context(), req, middleware.SignInDevice(c))
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *UserHandler) RequestOTP(c *gin.Context) {
	var req user.OTPRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.Users.RequestOTP(c.Request.Context(), req, middleware.Device(c).DeviceID); err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"message": "OTP sent"})
}

func (h *UserHandler) VerifyOTP(c *gin.Context) {
	var req user.OTPVerifyRequest
	if !bindJSON(c, &req) {
		return
	}
	resp, err := h.Users.VerifyOTP(c.Request.Context(), req, middleware.SignInDevice(c))
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *UserHandler) Logout(c *gin.Context) {
	if err := h.Users.Logout(c.Request.Context(), middleware.UserID(c), middleware.Device(c).DeviceID); err != nil {
		utils.RespondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *UserHandler) Me(c *gin.Context) {
	account, err := h.Users.GetAccount(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, account)
}

type fcmTokenRequest struct {
	Token string `json:"token" binding:"required"`
}

func (h *UserHandler) UpdateFCMToken(c *gin.Context) {
	var req fcmTokenRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.Users.UpdateFCMToken(c.Request.Context(), middleware.UserID(c), req.Token); err != nil {
		utils.RespondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *UserHandler) GetSettings(c *gin.Context) {
	settings, err := h.Users.GetSettings(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, settings)
}

func (h *UserHandler) UpdateSettings(c *gin.Context) {
	var req models.Settings
	if !bindJSON(c, &req) {
		return
	}
	settings, err := h.Users.UpdateSettings(c.Request.Context(), middleware.UserID(c), req)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, settings)
}
