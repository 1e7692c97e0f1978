package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/culinaryhub/culinary-school-api/internal/service"
	appErrors "github.com/culinaryhub/culinary-school-api/pkg/errors"
	"github.com/culinaryhub/culinary-school-api/pkg/response"
)

// RegistrationHandler exposes enrollment endpoints.
type RegistrationHandler struct {
	registrations *service.RegistrationService
}

// NewRegistrationHandler constructs RegistrationHandler.
func NewRegistrationHandler(registrations *service.RegistrationService) *RegistrationHandler {
	return &RegistrationHandler{registrations: registrations}
}

// Register godoc
// @Summary Register for a course
// @Tags Registrations
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.RegisterRequest true "Registration payload"
// @Success 201 {object} response.Envelope
// @Router /registrations [post]
func (h *RegistrationHandler) Register(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	result, err := h.registrations.Register(c.Request.Context(), claims, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, "registration created", result)
}

// RegisterForCourse godoc
// @Summary Register for a course by course ID
// @Tags Registrations
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Course ID"
// @Success 201 {object} response.Envelope
// @Router /courses/{id}/register [post]
func (h *RegistrationHandler) RegisterForCourse(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	courseID, err := idParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	// Body is optional here; staff may still name a student to enroll.
	var req service.RegisterRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
			return
		}
	}
	req.CourseID = courseID
	result, err := h.registrations.Register(c.Request.Context(), claims, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, "registration created", result)
}

// Cancel godoc
// @Summary Cancel a registration
// @Tags Registrations
// @Produce json
// @Security BearerAuth
// @Param id path int true "Registration ID"
// @Success 200 {object} response.Envelope
// @Router /registrations/{id} [delete]
// @Router /registrations/{id}/cancel [post]
func (h *RegistrationHandler) Cancel(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	id, err := idParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	if err := h.registrations.Cancel(c.Request.Context(), claims, id); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "registration canceled", nil)
}

// Verify godoc
// @Summary Force-complete a registration's payment status
// @Tags Registrations
// @Produce json
// @Security BearerAuth
// @Param id path int true "Registration ID"
// @Success 200 {object} response.Envelope
// @Router /registrations/{id}/verify [put]
func (h *RegistrationHandler) Verify(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	id, err := idParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	detail, err := h.registrations.Verify(c.Request.Context(), claims, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "registration verified", detail)
}

// Get godoc
// @Summary Get a registration
// @Tags Registrations
// @Produce json
// @Security BearerAuth
// @Param id path int true "Registration ID"
// @Success 200 {object} response.Envelope
// @Router /registrations/{id} [get]
func (h *RegistrationHandler) Get(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	id, err := idParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	detail, err := h.registrations.Get(c.Request.Context(), claims, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "registration found", detail)
}

// ListOwn godoc
// @Summary List the caller's registrations
// @Tags Registrations
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /registrations [get]
func (h *RegistrationHandler) ListOwn(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	regs, err := h.registrations.ListOwn(c.Request.Context(), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "registrations listed", regs)
}
