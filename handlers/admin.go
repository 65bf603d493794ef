package handlers

import (
	"net/http"

	"autodiag/models"
	"autodiag/services/content"
	"autodiag/services/expert"
	"autodiag/services/payment"
	"autodiag/services/user"
	"autodiag/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AdminHandler serves the /admin routes.
type AdminHandler struct {
	Users    user.UserService
	Experts  expert.ExpertService
	Payments payment.PaymentService
	Content  content.ContentService
}

func (h *AdminHandler) ListUsers(c *gin.Context) {
	page, ok := pageFrom(c)
	if !ok {
		return
	}
	role := models.Role(c.Query("role"))
	if role != "" && !role.Valid() {
		utils.RespondError(c, utils.FieldError("role", "unknown role"))
		return
	}
	users, err := h.Users.ListUsers(c.Request.Context(), role, page)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}

type verifyRequest struct {
	Verified *bool `json:"verified"`
}

func (h *AdminHandler) VerifyExpert(c *gin.Context) {
	var req verifyRequest
	if !bindJSON(c, &req) {
		return
	}
	verified := req.Verified == nil || *req.Verified
	profile, err := h.Experts.Verify(c.Request.Context(), c.Param("id"), verified)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	getLogger(c).Info("expert verification changed", zap.String("expertId", c.Param("id")), zap.Bool("verified", verified))
	c.JSON(http.StatusOK, profile)
}

func (h *AdminHandler) UpsertPackage(c *gin.Context) {
	var pkg models.Package
	if !bindJSON(c, &pkg) {
		return
	}
	out, err := h.Payments.UpsertPackage(c.Request.Context(), pkg)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *AdminHandler) UpsertArticle(c *gin.Context) {
	var a models.Article
	if !bindJSON(c, &a) {
		return
	}
	out, err := h.Content.UpsertArticle(c.Request.Context(), a)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *AdminHandler) UpsertRoadSign(c *gin.Context) {
	var s models.RoadSign
	if !bindJSON(c, &s) {
		return
	}
	out, err := h.Content.UpsertRoadSign(c.Request.Context(), s)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *AdminHandler) UpsertVideo(c *gin.Context) {
	var v models.Video
	if !bindJSON(c, &v) {
		return
	}
	out, err := h.Content.UpsertVideo(c.Request.Context(), v)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *AdminHandler) UpsertQuestion(c *gin.Context) {
	var q models.QuizQuestion
	if !bindJSON(c, &q) {
		return
	}
	out, err := h.Content.UpsertQuestion(c.Request.Context(), q)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}
