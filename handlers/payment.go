package handlers

import (
	"io"
	"net/http"

	"autodiag/middleware"
	"autodiag/models"
	"autodiag/services/payment"
	"autodiag/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// maxWebhookBytes caps how much of a webhook body is read.
const maxWebhookBytes = 64 << 10

type PaymentHandler struct {
	Payments payment.PaymentService
}

func NewPaymentHandler(svc payment.PaymentService) *PaymentHandler {
	return &PaymentHandler{Payments: svc}
}

func (h *PaymentHandler) ListPackages(c *gin.Context) {
	audience := models.PackageAudience(c.Query("audience"))
	if audience == "" {
		switch middleware.Role(c) {
		case models.RoleDriver:
			audience = models.AudienceDriver
		case models.RoleExpert:
			audience = models.AudienceExpert
		}
	}
	pkgs, err := h.Payments.ListPackages(c.Request.Context(), audience)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"packages": pkgs})
}

type checkoutRequest struct {
	PackageID string `json:"packageId" binding:"required"`
}

func (h *PaymentHandler) checkout(c *gin.Context, buyer payment.Buyer) {
	var req checkoutRequest
	if !bindJSON(c, &req) {
		return
	}
	checkout, err := h.Payments.Checkout(c.Request.Context(), buyer, req.PackageID)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, checkout)
}

func (h *PaymentHandler) Checkout(c *gin.Context) {
	h.checkout(c, payment.Buyer{UserID: middleware.UserID(c), Role: middleware.Role(c)})
}

func (h *PaymentHandler) GuestCheckout(c *gin.Context) {
	h.checkout(c, payment.Buyer{DeviceID: middleware.Device(c).DeviceID})
}

func (h *PaymentHandler) ListPayments(c *gin.Context) {
	page, ok := pageFrom(c)
	if !ok {
		return
	}
	buyer := payment.Buyer{UserID: middleware.UserID(c), Role: middleware.Role(c)}
	list, err := h.Payments.ListPayments(c.Request.Context(), buyer, page)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"payments": list})
}

func (h *PaymentHandler) ListSubscriptions(c *gin.Context) {
	subs, err := h.Payments.ListSubscriptions(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"subscriptions": subs})
}

// Webhook receives gateway events. The raw body is needed for signature checks.
func (h *PaymentHandler) Webhook(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBytes))
	if err != nil {
		utils.RespondError(c, utils.FieldError("body", "unreadable payload"))
		return
	}
	if err := h.Payments.HandleWebhook(c.Request.Context(), payload, c.GetHeader("Stripe-Signature")); err != nil {
		getLogger(c).Warn("webhook rejected", zap.Error(err))
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"received": true})
}
