package handlers

import (
	"net/http"

	"autodiag/middleware"
	"autodiag/services/expert"
	"autodiag/utils"

	"github.com/gin-gonic/gin"
)

type ExpertHandler struct {
	Experts expert.ExpertService
}

func NewExpertHandler(svc expert.ExpertService) *ExpertHandler {
	return &ExpertHandler{Experts: svc}
}

func (h *ExpertHandler) List(c *gin.Context) {
	var q expert.ListQuery
	if !bindQuery(c, &q) {
		return
	}
	q.PageRequest = q.PageRequest.Normalize()
	list, err := h.Experts.List(c.Request.Context(), q)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"experts": list})
}

func (h *ExpertHandler) Nearby(c *gin.Context) {
	var q expert.NearbyQuery
	if !bindQuery(c, &q) {
		return
	}
	list, err := h.Experts.Nearby(c.Request.Context(), q)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"experts": list})
}

func (h *ExpertHandler) Get(c *gin.Context) {
	e, err := h.Experts.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, e)
}

func (h *ExpertHandler) UpdateMine(c *gin.Context) {
	var update expert.ProfileUpdate
	if !bindJSON(c, &update) {
		return
	}
	profile, err := h.Experts.UpdateMine(c.Request.Context(), middleware.UserID(c), update)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}
