package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/culinaryhub/culinary-school-api/internal/models"
	appErrors "github.com/culinaryhub/culinary-school-api/pkg/errors"
)

type attendanceRepository interface {
	Upsert(ctx context.Context, record *models.AttendanceRecord) error
	ListByRegistration(ctx context.Context, registrationID int64) ([]models.AttendanceRecord, error)
	ListByCourse(ctx context.Context, courseID int64) ([]models.RegistrationAttendance, error)
}

type attendanceRegistrationReader interface {
	FindByID(ctx context.Context, id int64) (*models.Registration, error)
}

// RecordAttendanceRequest marks one student present or absent for a day.
type RecordAttendanceRequest struct {
	RegistrationID int64  `json:"registration_id" validate:"required,gt=0"`
	Date           string `json:"date" validate:"required,datetime=2006-01-02"`
	Present        bool   `json:"present"`
}

// AttendanceService tracks per-day attendance of enrolled students.
type AttendanceService struct {
	repo          attendanceRepository
	registrations attendanceRegistrationReader
	validator     *validator.Validate
	logger        *zap.Logger
}

// NewAttendanceService constructs AttendanceService.
func NewAttendanceService(repo attendanceRepository, registrations attendanceRegistrationReader, validate *validator.Validate, logger *zap.Logger) *AttendanceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AttendanceService{repo: repo, registrations: registrations, validator: validate, logger: logger}
}

// Record upserts the attendance mark for a registration on a given date.
func (s *AttendanceService) Record(ctx context.Context, req RecordAttendanceRequest) (*models.AttendanceRecord, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid attendance payload")
	}
	day, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid attendance date")
	}
	if _, err := s.registrations.FindByID(ctx, req.RegistrationID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "registration not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load registration")
	}

	record := &models.AttendanceRecord{
		RegistrationID: req.RegistrationID,
		Date:           day,
		Present:        req.Present,
	}
	if err := s.repo.Upsert(ctx, record); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record attendance")
	}
	return record, nil
}

// ListByRegistration returns the attendance history of one registration.
func (s *AttendanceService) ListByRegistration(ctx context.Context, registrationID int64) ([]models.AttendanceRecord, error) {
	records, err := s.repo.ListByRegistration(ctx, registrationID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list attendance")
	}
	return records, nil
}

// ListByCourse returns attendance grouped per registration for a course.
func (s *AttendanceService) ListByCourse(ctx context.Context, courseID int64) ([]models.RegistrationAttendance, error) {
	sheet, err := s.repo.ListByCourse(ctx, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list course attendance")
	}
	return sheet, nil
}
