package handlers

import (
	"net/http"

	"autodiag/middleware"
	"autodiag/models"
	"autodiag/services/lead"
	"autodiag/utils"

	"github.com/gin-gonic/gin"
)

type LeadHandler struct {
	Leads lead.LeadService
}

func NewLeadHandler(svc lead.LeadService) *LeadHandler {
	return &LeadHandler{Leads: svc}
}

func (h *LeadHandler) List(c *gin.Context) {
	page, ok := pageFrom(c)
	if !ok {
		return
	}
	status := models.LeadStatus(c.Query("status"))
	leads, err := h.Leads.List(c.Request.Context(), middleware.UserID(c), status, page)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"leads": leads, "page": page.Page, "limit": page.Limit})
}

func (h *LeadHandler) Get(c *gin.Context) {
	detail, err := h.Leads.Get(c.Request.Context(), middleware.UserID(c), c.Param("id"))
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

func (h *LeadHandler) Contact(c *gin.Context) {
	res, err := h.Leads.Contact(c.Request.Context(), middleware.UserID(c), c.Param("id"))
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *LeadHandler) Convert(c *gin.Context) {
	l, err := h.Leads.Convert(c.Request.Context(), middleware.UserID(c), c.Param("id"))
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, l)
}

func (h *LeadHandler) Close(c *gin.Context) {
	l, err := h.Leads.Close(c.Request.Context(), middleware.UserID(c), c.Param("id"))
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, l)
}
