package handlers

import (
	"net/http"

	"autodiag/middleware"
	"autodiag/services/messaging"
	"autodiag/utils"

	"github.com/gin-gonic/gin"
)

type MessagingHandler struct {
	Messaging messaging.MessagingService
}

func NewMessagingHandler(svc messaging.MessagingService) *MessagingHandler {
	return &MessagingHandler{Messaging: svc}
}

func (h *MessagingHandler) ListConversations(c *gin.Context) {
	page, ok := pageFrom(c)
	if !ok {
		return
	}
	convs, err := h.Messaging.ListConversations(c.Request.Context(), middleware.UserID(c), page)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversations": convs})
}

func (h *MessagingHandler) Open(c *gin.Context) {
	var req messaging.OpenRequest
	if !bindJSON(c, &req) {
		return
	}
	conv, err := h.Messaging.Open(c.Request.Context(), middleware.UserID(c), middleware.Role(c), req)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, conv)
}

func (h *MessagingHandler) ListMessages(c *gin.Context) {
	before, ok := timeQuery(c, "before")
	if !ok {
		return
	}
	limit, ok := intQuery(c, "limit")
	if !ok {
		return
	}
	msgs, err := h.Messaging.ListMessages(c.Request.Context(), middleware.UserID(c), c.Param("id"), before, limit)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

func (h *MessagingHandler) Send(c *gin.Context) {
	var req messaging.SendRequest
	if !bindJSON(c, &req) {
		return
	}
	msg, err := h.Messaging.Send(c.Request.Context(), middleware.UserID(c), c.Param("id"), req)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

func (h *MessagingHandler) MarkRead(c *gin.Context) {
	n, err := h.Messaging.MarkRead(c.Request.Context(), middleware.UserID(c), c.Param("id"))
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"marked": n})
}

func (h *MessagingHandler) Typing(c *gin.Context) {
	if err := h.Messaging.Typing(c.Request.Context(), middleware.UserID(c), c.Param("id")); err != nil {
		utils.RespondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
