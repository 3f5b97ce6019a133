package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"booking-api/internal/booking"
)

// status in the body, if any, is ignored
type createAppointmentRequest struct {
	ServiceID          string `json:"serviceId"`
	DateTime           string `json:"dateTime"`
	RequestDescription string `json:"requestDescription"`
}

func (h *Handler) createAppointment(c *gin.Context) {
	var req createAppointmentRequest
	if err := bind(c, &req); err != nil {
		h.fail(c, "create_appointment", err)
		return
	}
	a, err := h.booking.Create(c.Request.Context(), caller(c), booking.CreateInput{
		ServiceID:          req.ServiceID,
		DateTime:           req.DateTime,
		RequestDescription: req.RequestDescription,
	})
	if err != nil {
		h.fail(c, "create_appointment", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Appointement created successfully", "appointement": a})
}

func (h *Handler) listAppointments(c *gin.Context) {
	list, err := h.booking.ListAll(c.Request.Context(), caller(c))
	if err != nil {
		h.fail(c, "list_appointments", err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *Handler) appointmentsByDate(c *gin.Context) {
	list, err := h.booking.ListForDate(c.Request.Context(), caller(c), c.Query("date"))
	if err != nil {
		h.fail(c, "appointments_by_date", err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *Handler) myAppointments(c *gin.Context) {
	list, err := h.booking.ListForOwner(c.Request.Context(), caller(c))
	if err != nil {
		h.fail(c, "my_appointments", err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *Handler) appointmentStats(c *gin.Context) {
	counts, err := h.booking.Stats(c.Request.Context(), caller(c))
	if err != nil {
		h.fail(c, "appointment_stats", err)
		return
	}
	c.JSON(http.StatusOK, counts)
}

var transitionMessages = map[booking.Action]string{
	booking.ActionCancel:  "Appointement cancelled successfully",
	booking.ActionApprove: "Appointement approved successfully",
	booking.ActionReject:  "Appointement rejected successfully",
	booking.ActionReset:   "Appointement reset successfully",
}

func (h *Handler) transition(action booking.Action) gin.HandlerFunc {
	op := string(action) + "_appointment"
	return func(c *gin.Context) {
		a, err := h.booking.Apply(c.Request.Context(), caller(c), c.Param("id"), action)
		if err != nil {
			h.fail(c, op, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": transitionMessages[action], "appointement": a})
	}
}

func (h *Handler) sendReminders(c *gin.Context) {
	res, err := h.reminders.Run(c.Request.Context(), "http")
	if err != nil {
		h.fail(c, "send_reminders", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Reminders sent", "sent": res.Sent, "failed": res.Failed})
}
