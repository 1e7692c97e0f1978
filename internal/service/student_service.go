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

type studentRepository interface {
	CreateWithUser(ctx context.Context, user *models.User, student *models.Student) error
	List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error)
	FindByID(ctx context.Context, id int64) (*models.Student, error)
	FindByUserID(ctx context.Context, userID int64) (*models.Student, error)
	Update(ctx context.Context, student *models.Student) error
	SoftDelete(ctx context.Context, id int64) error
	ListRegistrations(ctx context.Context, studentID int64) ([]models.RegistrationDetail, error)
}

type studentCertificateReader interface {
	ListByStudent(ctx context.Context, studentID int64) ([]models.Certificate, error)
}

// CreateStudentRequest provisions a student account administratively.
type CreateStudentRequest struct {
	Name     string  `json:"name" validate:"required,max=255"`
	Email    string  `json:"email" validate:"required,email"`
	Password string  `json:"password" validate:"required,min=8"`
	Phone    string  `json:"phone" validate:"required,max=20"`
	Address  *string `json:"address" validate:"omitempty,max=500"`
}

// UpdateStudentRequest edits a student profile.
type UpdateStudentRequest struct {
	Name    string  `json:"name" validate:"required,max=255"`
	Email   string  `json:"email" validate:"required,email"`
	Phone   string  `json:"phone" validate:"required,max=20"`
	Address *string `json:"address" validate:"omitempty,max=500"`
}

// StudentService manages student profiles.
type StudentService struct {
	repo         studentRepository
	certificates studentCertificateReader
	validator    *validator.Validate
	logger       *zap.Logger
}

// NewStudentService constructs StudentService.
func NewStudentService(repo studentRepository, certificates studentCertificateReader, validate *validator.Validate, logger *zap.Logger) *StudentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentService{repo: repo, certificates: certificates, validator: validate, logger: logger}
}

// List returns students with pagination metadata.
func (s *StudentService) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, *models.Pagination, error) {
	students, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 10
	}
	return students, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns a student profile.
func (s *StudentService) Get(ctx context.Context, id int64) (*models.Student, error) {
	student, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	return student, nil
}

// Create provisions a student account with its login.
func (s *StudentService) Create(ctx context.Context, req CreateStudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	user := &models.User{
		Email:        req.Email,
		PasswordHash: string(hash),
		FullName:     req.Name,
		Role:         models.RoleStudent,
		Active:       true,
	}
	student := &models.Student{
		Name:    req.Name,
		Email:   req.Email,
		Phone:   req.Phone,
		Address: req.Address,
	}
	if err := s.repo.CreateWithUser(ctx, user, student); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "email already in use")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create student")
	}
	return student, nil
}

// Update edits a student profile.
func (s *StudentService) Update(ctx context.Context, id int64, req UpdateStudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}
	student, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	student.Name = req.Name
	student.Email = req.Email
	student.Phone = req.Phone
	student.Address = req.Address

	if err := s.repo.Update(ctx, student); err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		case errors.Is(err, repository.ErrDuplicateEmail):
			return nil, appErrors.Clone(appErrors.ErrConflict, "email already in use")
		default:
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update student")
		}
	}
	return student, nil
}

// Delete removes a student profile.
func (s *StudentService) Delete(ctx context.Context, id int64) error {
	if err := s.repo.SoftDelete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete student")
	}
	return nil
}

// Courses returns the student's registrations joined with course details.
func (s *StudentService) Courses(ctx context.Context, id int64) ([]models.RegistrationDetail, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	details, err := s.repo.ListRegistrations(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list student courses")
	}
	return details, nil
}

// Certificates returns the certificates issued to the student.
func (s *StudentService) Certificates(ctx context.Context, id int64) ([]models.Certificate, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	certs, err := s.certificates.ListByStudent(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list student certificates")
	}
	return certs, nil
}

// Profile resolves the student owned by the authenticated user.
func (s *StudentService) Profile(ctx context.Context, userID int64) (*models.Student, error) {
	student, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student profile not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load profile")
	}
	return student, nil
}
