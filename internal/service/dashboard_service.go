package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/culinaryhub/culinary-school-api/internal/dto"
	"github.com/culinaryhub/culinary-school-api/internal/models"
	appErrors "github.com/culinaryhub/culinary-school-api/pkg/errors"
)

const dashboardStatsCacheKey = "dashboard:stats"

type dashboardRepository interface {
	Stats(ctx context.Context) (*dto.DashboardStats, error)
}

type dashboardCourseReader interface {
	List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error)
}

type dashboardPaymentReader interface {
	ListPending(ctx context.Context, limit int) ([]models.PaymentDetail, error)
}

type dashboardRegistrationReader interface {
	ListRecent(ctx context.Context, limit int) ([]models.RegistrationDetail, error)
}

// DashboardService assembles the admin overview. The stats rollup is served
// from cache when fresh; callers receive the hit flag for response metadata.
type DashboardService struct {
	repo          dashboardRepository
	courses       dashboardCourseReader
	payments      dashboardPaymentReader
	registrations dashboardRegistrationReader
	cache         *CacheService
	cacheTTL      time.Duration
	logger        *zap.Logger
}

// NewDashboardService constructs DashboardService.
func NewDashboardService(repo dashboardRepository, courses dashboardCourseReader, payments dashboardPaymentReader, registrations dashboardRegistrationReader, cache *CacheService, cacheTTL time.Duration, logger *zap.Logger) *DashboardService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardService{
		repo:          repo,
		courses:       courses,
		payments:      payments,
		registrations: registrations,
		cache:         cache,
		cacheTTL:      cacheTTL,
		logger:        logger,
	}
}

// Stats returns the dashboard rollup and whether it came from cache.
func (s *DashboardService) Stats(ctx context.Context) (*dto.DashboardStats, bool, error) {
	if s.cache.Enabled() {
		var cached dto.DashboardStats
		if hit, err := s.cache.Get(ctx, dashboardStatsCacheKey, &cached); err == nil && hit {
			return &cached, true, nil
		}
	}

	stats, err := s.repo.Stats(ctx)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to aggregate dashboard stats")
	}

	if s.cache.Enabled() {
		if err := s.cache.Set(ctx, dashboardStatsCacheKey, stats, s.cacheTTL); err != nil {
			s.logger.Warn("failed to cache dashboard stats", zap.Error(err))
		}
	}
	return stats, false, nil
}

// InvalidateStats drops the cached rollup after a state change.
func (s *DashboardService) InvalidateStats(ctx context.Context) {
	if err := s.cache.Invalidate(ctx, dashboardStatsCacheKey); err != nil {
		s.logger.Warn("failed to invalidate dashboard stats cache", zap.Error(err))
	}
}

// UpcomingCourses returns the next courses opening for registration.
func (s *DashboardService) UpcomingCourses(ctx context.Context) ([]models.Course, error) {
	courses, _, err := s.courses.List(ctx, models.CourseFilter{
		Status: models.CourseStatusUpcoming,
		SortBy: "date_asc",
		Page:   1, PageSize: 10,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list upcoming courses")
	}
	return courses, nil
}

// ActiveCourses returns the currently running courses.
func (s *DashboardService) ActiveCourses(ctx context.Context) ([]models.Course, error) {
	courses, _, err := s.courses.List(ctx, models.CourseFilter{
		Status: models.CourseStatusActive,
		SortBy: "date_asc",
		Page:   1, PageSize: 10,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list active courses")
	}
	return courses, nil
}

// PendingPayments returns the payments awaiting verification.
func (s *DashboardService) PendingPayments(ctx context.Context) ([]models.PaymentDetail, error) {
	payments, err := s.payments.ListPending(ctx, 10)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list pending payments")
	}
	return payments, nil
}

// RecentRegistrations returns the newest registrations.
func (s *DashboardService) RecentRegistrations(ctx context.Context) ([]models.RegistrationDetail, error) {
	regs, err := s.registrations.ListRecent(ctx, 10)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list recent registrations")
	}
	return regs, nil
}
