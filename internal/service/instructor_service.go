package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/culinaryhub/culinary-school-api/internal/models"
	"github.com/culinaryhub/culinary-school-api/internal/repository"
	appErrors "github.com/culinaryhub/culinary-school-api/pkg/errors"
)

type instructorRepository interface {
	CreateWithUser(ctx context.Context, user *models.User, instructor *models.Instructor) error
	List(ctx context.Context, filter models.InstructorFilter) ([]models.Instructor, int, error)
	FindByID(ctx context.Context, id int64) (*models.Instructor, error)
	Update(ctx context.Context, instructor *models.Instructor) error
	SoftDelete(ctx context.Context, id int64) error
	ListCourses(ctx context.Context, instructorID int64) ([]models.Course, error)
}

// CreateInstructorRequest provisions an instructor account.
type CreateInstructorRequest struct {
	Name           string  `json:"name" validate:"required,max=255"`
	Email          string  `json:"email" validate:"required,email"`
	Password       string  `json:"password" validate:"required,min=8"`
	Phone          string  `json:"phone" validate:"required,max=20"`
	BioEN          string  `json:"bio_en" validate:"required"`
	BioBN          *string `json:"bio_bn"`
	Specialization string  `json:"specialization" validate:"required,max=255"`
}

// UpdateInstructorRequest edits an instructor profile.
type UpdateInstructorRequest struct {
	Name           string  `json:"name" validate:"required,max=255"`
	Email          string  `json:"email" validate:"required,email"`
	Phone          string  `json:"phone" validate:"required,max=20"`
	BioEN          string  `json:"bio_en" validate:"required"`
	BioBN          *string `json:"bio_bn"`
	Specialization string  `json:"specialization" validate:"required,max=255"`
}

// InstructorService manages instructor profiles.
type InstructorService struct {
	repo      instructorRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewInstructorService constructs InstructorService.
func NewInstructorService(repo instructorRepository, validate *validator.Validate, logger *zap.Logger) *InstructorService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InstructorService{repo: repo, validator: validate, logger: logger}
}

// List returns instructors with pagination metadata.
func (s *InstructorService) List(ctx context.Context, filter models.InstructorFilter) ([]models.Instructor, *models.Pagination, error) {
	instructors, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list instructors")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 10
	}
	return instructors, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns an instructor profile.
func (s *InstructorService) Get(ctx context.Context, id int64) (*models.Instructor, error) {
	instructor, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "instructor not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load instructor")
	}
	return instructor, nil
}

// Create provisions an instructor account with its login.
func (s *InstructorService) Create(ctx context.Context, req CreateInstructorRequest) (*models.Instructor, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid instructor payload")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	user := &models.User{
		Email:        req.Email,
		PasswordHash: string(hash),
		FullName:     req.Name,
		Role:         models.RoleInstructor,
		Active:       true,
	}
	instructor := &models.Instructor{
		Name:           req.Name,
		Email:          req.Email,
		Phone:          req.Phone,
		BioEN:          req.BioEN,
		BioBN:          req.BioBN,
		Specialization: req.Specialization,
	}
	if err := s.repo.CreateWithUser(ctx, user, instructor); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "email already in use")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create instructor")
	}
	return instructor, nil
}

// Update edits an instructor profile.
func (s *InstructorService) Update(ctx context.Context, id int64, req UpdateInstructorRequest) (*models.Instructor, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid instructor payload")
	}
	instructor, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	instructor.Name = req.Name
	instructor.Email = req.Email
	instructor.Phone = req.Phone
	instructor.BioEN = req.BioEN
	instructor.BioBN = req.BioBN
	instructor.Specialization = req.Specialization

	if err := s.repo.Update(ctx, instructor); err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, appErrors.Clone(appErrors.ErrNotFound, "instructor not found")
		case errors.Is(err, repository.ErrDuplicateEmail):
			return nil, appErrors.Clone(appErrors.ErrConflict, "email already in use")
		default:
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update instructor")
		}
	}
	return instructor, nil
}

// Delete removes an instructor profile.
func (s *InstructorService) Delete(ctx context.Context, id int64) error {
	if err := s.repo.SoftDelete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "instructor not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete instructor")
	}
	return nil
}

// Courses returns the courses the instructor is assigned to.
func (s *InstructorService) Courses(ctx context.Context, id int64) ([]models.Course, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	courses, err := s.repo.ListCourses(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list instructor courses")
	}
	return courses, nil
}
