package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/culinaryhub/culinary-school-api/internal/middleware"
	"github.com/culinaryhub/culinary-school-api/internal/service"
	"github.com/culinaryhub/culinary-school-api/pkg/response"
)

// DashboardHandler exposes the admin dashboard aggregates.
type DashboardHandler struct {
	dashboard *service.DashboardService
}

// NewDashboardHandler constructs DashboardHandler.
func NewDashboardHandler(dashboard *service.DashboardService) *DashboardHandler {
	return &DashboardHandler{dashboard: dashboard}
}

// Stats godoc
// @Summary Aggregate dashboard statistics
// @Tags Dashboard
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /dashboard/stats [get]
func (h *DashboardHandler) Stats(c *gin.Context) {
	stats, cacheHit, err := h.dashboard.Stats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	response.JSON(c, http.StatusOK, "dashboard statistics", stats, nil, middleware.ExtractMeta(c))
}

// Overview godoc
// @Summary Operational dashboard overview
// @Tags Dashboard
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /dashboard/overview [get]
func (h *DashboardHandler) Overview(c *gin.Context) {
	ctx := c.Request.Context()

	upcoming, err := h.dashboard.UpcomingCourses(ctx)
	if err != nil {
		response.Error(c, err)
		return
	}
	active, err := h.dashboard.ActiveCourses(ctx)
	if err != nil {
		response.Error(c, err)
		return
	}
	pendingPayments, err := h.dashboard.PendingPayments(ctx)
	if err != nil {
		response.Error(c, err)
		return
	}
	recentRegistrations, err := h.dashboard.RecentRegistrations(ctx)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, "dashboard overview", gin.H{
		"upcoming_courses":     upcoming,
		"active_courses":       active,
		"pending_payments":     pendingPayments,
		"recent_registrations": recentRegistrations,
	})
}
