package httpapi

import (
	"net/http"

	"github.com/Freeeeeet/classdesk/internal/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type AppointmentController struct {
	appts  AppointmentScheduler
	logger *zap.Logger
}

func NewAppointmentController(appts AppointmentScheduler, logger *zap.Logger) *AppointmentController {
	return &AppointmentController{appts: appts, logger: logger}
}

func (ac *AppointmentController) RequestBooking(c *gin.Context) {
	type bookingRequest struct {
		TeacherID string `json:"teacherId"`
		Date      string `json:"date"`
		Time      string `json:"time"`
	}
	var req bookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	session := sessionFrom(c)
	appt, err := ac.appts.RequestBooking(c.Request.Context(), service.BookingRequest{
		StudentID:   session.UID,
		StudentName: session.Participant().Name,
		TeacherID:   req.TeacherID,
		Date:        req.Date,
		Time:        req.Time,
	})
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"appointment": appt})
}

func (ac *AppointmentController) Approve(c *gin.Context) {
	ac.setStatus(c, service.ActionApprove)
}

func (ac *AppointmentController) Cancel(c *gin.Context) {
	ac.setStatus(c, service.ActionCancel)
}

func (ac *AppointmentController) setStatus(c *gin.Context, action service.StatusAction) {
	appt, err := ac.appts.SetStatus(c.Request.Context(), sessionFrom(c), c.Param("id"), action)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"appointment": appt})
}
