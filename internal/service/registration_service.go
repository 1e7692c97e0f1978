package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/culinaryhub/culinary-school-api/internal/models"
	"github.com/culinaryhub/culinary-school-api/internal/repository"
	appErrors "github.com/culinaryhub/culinary-school-api/pkg/errors"
)

type registrationRepository interface {
	Register(ctx context.Context, studentID, courseID int64) (*models.Registration, error)
	Cancel(ctx context.Context, registrationID int64) error
	FindByID(ctx context.Context, id int64) (*models.Registration, error)
	FindDetailByID(ctx context.Context, id int64) (*models.RegistrationDetail, error)
	UpdatePaymentStatus(ctx context.Context, id int64, status models.PaymentStatus) error
	ListByStudent(ctx context.Context, studentID int64) ([]models.Registration, error)
}

type studentResolver interface {
	FindByID(ctx context.Context, id int64) (*models.Student, error)
	FindByUserID(ctx context.Context, userID int64) (*models.Student, error)
}

type coursePriceReader interface {
	FindByID(ctx context.Context, id int64) (*models.Course, error)
}

type availabilityInvalidator interface {
	InvalidateAvailability(ctx context.Context, courseID int64)
}

// RegisterRequest enrolls a student on a course. StudentID is honored only
// when the caller holds the registration-create capability; students always
// register themselves.
type RegisterRequest struct {
	CourseID  int64 `json:"course_id" validate:"required,gt=0"`
	StudentID int64 `json:"student_id" validate:"omitempty,gt=0"`
}

// RegistrationService is the enrollment engine. It resolves the acting
// student, enforces ownership, and delegates the seat accounting to the
// repository transaction.
type RegistrationService struct {
	repo        registrationRepository
	students    studentResolver
	courses     coursePriceReader
	audit       auditWriter
	invalidator availabilityInvalidator
	bkashNumber string
	refPrefix   string
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewRegistrationService constructs RegistrationService.
func NewRegistrationService(repo registrationRepository, students studentResolver, courses coursePriceReader, audit auditWriter, invalidator availabilityInvalidator, bkashNumber, refPrefix string, validate *validator.Validate, logger *zap.Logger) *RegistrationService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if refPrefix == "" {
		refPrefix = "COOK"
	}
	return &RegistrationService{
		repo:        repo,
		students:    students,
		courses:     courses,
		audit:       audit,
		invalidator: invalidator,
		bkashNumber: bkashNumber,
		refPrefix:   refPrefix,
		validator:   validate,
		logger:      logger,
	}
}

// Register enrolls a student on a course and returns payment instructions.
func (s *RegistrationService) Register(ctx context.Context, actor *models.JWTClaims, req RegisterRequest) (*models.RegistrationResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid registration payload")
	}

	student, err := s.resolveStudent(ctx, actor, req.StudentID)
	if err != nil {
		return nil, err
	}

	course, err := s.courses.FindByID(ctx, req.CourseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}

	registration, err := s.repo.Register(ctx, student.ID, course.ID)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		case errors.Is(err, repository.ErrCourseUnavailable):
			return nil, appErrors.Clone(appErrors.ErrConflict, "course is not available for registration")
		case errors.Is(err, repository.ErrAlreadyRegistered):
			return nil, appErrors.Clone(appErrors.ErrConflict, "student is already registered for this course")
		default:
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to register")
		}
	}

	if s.invalidator != nil {
		s.invalidator.InvalidateAvailability(ctx, course.ID)
	}

	s.logger.Info("student registered",
		zap.Int64("registration_id", registration.ID),
		zap.Int64("student_id", student.ID),
		zap.Int64("course_id", course.ID))

	return &models.RegistrationResult{
		Registration: registration,
		PaymentInstructions: models.PaymentInstructions{
			BkashNumber: s.bkashNumber,
			Amount:      course.Price,
			Reference:   fmt.Sprintf("%s-%d", s.refPrefix, registration.ID),
		},
	}, nil
}

// Cancel withdraws a registration and frees the seat. Students may cancel
// their own registrations until the course has started; staff need the
// cancel capability.
func (s *RegistrationService) Cancel(ctx context.Context, actor *models.JWTClaims, registrationID int64) error {
	detail, err := s.getDetail(ctx, registrationID)
	if err != nil {
		return err
	}

	if !actor.Role.Can(models.CapRegistrationsCancel) {
		student, err := s.students.FindByUserID(ctx, actor.UserID)
		if err != nil || student.ID != detail.StudentID {
			return appErrors.Clone(appErrors.ErrForbidden, "")
		}
	}

	if detail.CourseStatus == models.CourseStatusActive && detail.CourseStartDate.Before(time.Now().UTC()) {
		return appErrors.Clone(appErrors.ErrConflict, "too late to cancel, course already started")
	}
	if detail.CourseStatus == models.CourseStatusCompleted {
		return appErrors.Clone(appErrors.ErrConflict, "course already completed")
	}

	if err := s.repo.Cancel(ctx, registrationID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "registration not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel registration")
	}

	if s.invalidator != nil {
		s.invalidator.InvalidateAvailability(ctx, detail.CourseID)
	}
	return nil
}

// Verify force-completes the payment status of a registration. Admin
// override for out-of-band payments.
func (s *RegistrationService) Verify(ctx context.Context, actor *models.JWTClaims, registrationID int64) (*models.RegistrationDetail, error) {
	if err := s.repo.UpdatePaymentStatus(ctx, registrationID, models.PaymentStatusCompleted); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "registration not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to verify registration")
	}

	if s.audit != nil {
		detail := []byte(`{"payment_status":"completed"}`)
		if err := s.audit.Create(ctx, &models.AuditLog{
			UserID:     &actor.UserID,
			Action:     models.AuditActionVerifyRegistration,
			Resource:   "registration",
			ResourceID: &registrationID,
			Detail:     detail,
		}); err != nil {
			s.logger.Warn("failed to record registration audit log", zap.Error(err))
		}
	}

	return s.getDetail(ctx, registrationID)
}

// Get returns a registration with course and student context. Students may
// only read their own registrations.
func (s *RegistrationService) Get(ctx context.Context, actor *models.JWTClaims, registrationID int64) (*models.RegistrationDetail, error) {
	detail, err := s.getDetail(ctx, registrationID)
	if err != nil {
		return nil, err
	}
	if actor.Role == models.RoleStudent {
		student, err := s.students.FindByUserID(ctx, actor.UserID)
		if err != nil || student.ID != detail.StudentID {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "")
		}
	}
	return detail, nil
}

// ListOwn returns the acting student's registrations.
func (s *RegistrationService) ListOwn(ctx context.Context, actor *models.JWTClaims) ([]models.Registration, error) {
	student, err := s.students.FindByUserID(ctx, actor.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student profile not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve student")
	}
	regs, err := s.repo.ListByStudent(ctx, student.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list registrations")
	}
	return regs, nil
}

func (s *RegistrationService) resolveStudent(ctx context.Context, actor *models.JWTClaims, explicitID int64) (*models.Student, error) {
	if explicitID > 0 {
		if !actor.Role.Can(models.CapRegistrationsCreate) {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "")
		}
		student, err := s.students.FindByID(ctx, explicitID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
		}
		return student, nil
	}

	student, err := s.students.FindByUserID(ctx, actor.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student profile not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve student")
	}
	return student, nil
}

func (s *RegistrationService) getDetail(ctx context.Context, id int64) (*models.RegistrationDetail, error) {
	detail, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "registration not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load registration")
	}
	return detail, nil
}
