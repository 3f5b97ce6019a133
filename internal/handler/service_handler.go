package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"booking-api/internal/catalog"
)

func (h *Handler) listServices(c *gin.Context) {
	list, err := h.catalog.List(c.Request.Context())
	if err != nil {
		h.fail(c, "list_services", err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *Handler) createService(c *gin.Context) {
	var in catalog.Input
	if err := bind(c, &in); err != nil {
		h.fail(c, "create_service", err)
		return
	}
	sv, err := h.catalog.Create(c.Request.Context(), caller(c), in)
	if err != nil {
		h.fail(c, "create_service", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Service added successfully", "service": sv})
}

func (h *Handler) updateService(c *gin.Context) {
	var in catalog.Input
	if err := bind(c, &in); err != nil {
		h.fail(c, "update_service", err)
		return
	}
	sv, err := h.catalog.Update(c.Request.Context(), caller(c), c.Param("id"), in)
	if err != nil {
		h.fail(c, "update_service", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Service updated successfully", "service": sv})
}

func (h *Handler) deleteService(c *gin.Context) {
	if err := h.catalog.Delete(c.Request.Context(), caller(c), c.Param("id")); err != nil {
		h.fail(c, "delete_service", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Service deleted successfully"})
}
