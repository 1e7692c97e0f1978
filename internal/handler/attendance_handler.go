package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/culinaryhub/culinary-school-api/internal/service"
	appErrors "github.com/culinaryhub/culinary-school-api/pkg/errors"
	"github.com/culinaryhub/culinary-school-api/pkg/response"
)

// AttendanceHandler exposes per-day attendance tracking.
type AttendanceHandler struct {
	attendance *service.AttendanceService
}

// NewAttendanceHandler constructs AttendanceHandler.
func NewAttendanceHandler(attendance *service.AttendanceService) *AttendanceHandler {
	return &AttendanceHandler{attendance: attendance}
}

// Record godoc
// @Summary Record attendance for a registration
// @Tags Attendance
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.RecordAttendanceRequest true "Attendance payload"
// @Success 200 {object} response.Envelope
// @Router /attendance [post]
func (h *AttendanceHandler) Record(c *gin.Context) {
	var req service.RecordAttendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	record, err := h.attendance.Record(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "attendance recorded", record)
}

// ListByRegistration godoc
// @Summary Attendance history for a registration
// @Tags Attendance
// @Produce json
// @Security BearerAuth
// @Param id path int true "Registration ID"
// @Success 200 {object} response.Envelope
// @Router /registrations/{id}/attendance [get]
func (h *AttendanceHandler) ListByRegistration(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	records, err := h.attendance.ListByRegistration(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "attendance listed", records)
}

// ListByCourse godoc
// @Summary Attendance sheet for a course
// @Tags Attendance
// @Produce json
// @Security BearerAuth
// @Param id path int true "Course ID"
// @Success 200 {object} response.Envelope
// @Router /courses/{id}/attendance [get]
func (h *AttendanceHandler) ListByCourse(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	sheet, err := h.attendance.ListByCourse(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "course attendance listed", sheet)
}
