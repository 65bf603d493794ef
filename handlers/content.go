package handlers

import (
	"net/http"

	"autodiag/middleware"
	"autodiag/services/content"
	"autodiag/utils"

	"github.com/gin-gonic/gin"
)

type ContentHandler struct {
	Content content.ContentService
}

func NewContentHandler(svc content.ContentService) *ContentHandler {
	return &ContentHandler{Content: svc}
}

func (h *ContentHandler) ListArticles(c *gin.Context) {
	page, ok := pageFrom(c)
	if !ok {
		return
	}
	list, err := h.Content.ListArticles(c.Request.Context(), c.Query("category"), page)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"articles": list})
}

func (h *ContentHandler) GetArticle(c *gin.Context) {
	a, err := h.Content.GetArticle(c.Request.Context(), c.Param("slug"))
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

func (h *ContentHandler) ListRoadSigns(c *gin.Context) {
	list, err := h.Content.ListRoadSigns(c.Request.Context(), c.Query("category"))
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"roadSigns": list})
}

func (h *ContentHandler) ListVideos(c *gin.Context) {
	page, ok := pageFrom(c)
	if !ok {
		return
	}
	list, err := h.Content.ListVideos(c.Request.Context(), c.Query("category"), page)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"videos": list})
}

func (h *ContentHandler) DrawQuiz(c *gin.Context) {
	n, ok := intQuery(c, "count")
	if !ok {
		return
	}
	qs, err := h.Content.DrawQuiz(c.Request.Context(), c.Query("category"), n)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"questions": qs})
}

func (h *ContentHandler) SubmitAttempt(c *gin.Context) {
	var req content.SubmitAttempt
	if !bindJSON(c, &req) {
		return
	}
	attempt, err := h.Content.SubmitAttempt(c.Request.Context(), middleware.UserID(c), req)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, attempt)
}

func (h *ContentHandler) ListAttempts(c *gin.Context) {
	page, ok := pageFrom(c)
	if !ok {
		return
	}
	list, err := h.Content.ListAttempts(c.Request.Context(), middleware.UserID(c), page)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"attempts": list})
}
