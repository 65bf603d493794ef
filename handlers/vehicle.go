package handlers

import (
	"net/http"

	"autodiag/middleware"
	"autodiag/models"
	"autodiag/services/vehicle"
	"autodiag/utils"

	"github.com/gin-gonic/gin"
)

type VehicleHandler struct {
	Vehicles vehicle.VehicleService
}

func NewVehicleHandler(svc vehicle.VehicleService) *VehicleHandler {
	return &VehicleHandler{Vehicles: svc}
}

func (h *VehicleHandler) List(c *gin.Context) {
	list, err := h.Vehicles.List(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"vehicles": list})
}

func (h *VehicleHandler) Create(c *gin.Context) {
	var in models.VehicleInput
	if !bindJSON(c, &in) {
		return
	}
	v, err := h.Vehicles.Create(c.Request.Context(), middleware.UserID(c), in)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, v)
}

func (h *VehicleHandler) Get(c *gin.Context) {
	v, err := h.Vehicles.Get(c.Request.Context(), middleware.UserID(c), c.Param("id"))
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

func (h *VehicleHandler) Update(c *gin.Context) {
	var in models.VehicleInput
	if !bindJSON(c, &in) {
		return
	}
	v, err := h.Vehicles.Update(c.Request.Context(), middleware.UserID(c), c.Param("id"), in)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

func (h *VehicleHandler) Delete(c *gin.Context) {
	if err := h.Vehicles.Delete(c.Request.Context(), middleware.UserID(c), c.Param("id")); err != nil {
		utils.RespondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
