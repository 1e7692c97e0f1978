package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/culinaryhub/culinary-school-api/internal/models"
	"github.com/culinaryhub/culinary-school-api/internal/repository"
	appErrors "github.com/culinaryhub/culinary-school-api/pkg/errors"
)

type courseRepository interface {
	List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error)
	FindByID(ctx context.Context, id int64) (*models.Course, error)
	Create(ctx context.Context, course *models.Course) error
	Update(ctx context.Context, course *models.Course) error
	UpdateStatus(ctx context.Context, id int64, status models.CourseStatus) error
	SoftDelete(ctx context.Context, id int64) error
	AttachRecipe(ctx context.Context, courseID, recipeID int64, dayNumber *int) error
	ListRecipes(ctx context.Context, courseID int64) ([]models.CourseRecipeDetail, error)
	ListStudents(ctx context.Context, courseID int64) ([]models.Student, error)
	AssignInstructor(ctx context.Context, courseID, instructorID int64, isLead bool) error
	ListInstructors(ctx context.Context, courseID int64) ([]models.Instructor, error)
}

type availabilityCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// CreateCourseRequest describes course creation input.
type CreateCourseRequest struct {
	TitleEN         string  `json:"title_en" validate:"required,max=255"`
	TitleBN         *string `json:"title_bn" validate:"omitempty,max=255"`
	DescriptionEN   string  `json:"description_en" validate:"required"`
	DescriptionBN   *string `json:"description_bn"`
	StartDate       string  `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate         string  `json:"end_date" validate:"required,datetime=2006-01-02"`
	DailyStartTime  string  `json:"daily_start_time" validate:"required"`
	DailyEndTime    string  `json:"daily_end_time" validate:"required"`
	LocationDetails string  `json:"location_details" validate:"required"`
	MaximumCapacity int     `json:"maximum_capacity" validate:"required,gt=0"`
	Price           float64 `json:"price" validate:"required,gt=0"`
	FeaturedImage   *string `json:"featured_image"`
	Category        string  `json:"category" validate:"required,max=100"`
}

// UpdateCourseRequest describes course update input.
type UpdateCourseRequest struct {
	TitleEN         string  `json:"title_en" validate:"required,max=255"`
	TitleBN         *string `json:"title_bn" validate:"omitempty,max=255"`
	DescriptionEN   string  `json:"description_en" validate:"required"`
	DescriptionBN   *string `json:"description_bn"`
	StartDate       string  `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate         string  `json:"end_date" validate:"required,datetime=2006-01-02"`
	DailyStartTime  string  `json:"daily_start_time" validate:"required"`
	DailyEndTime    string  `json:"daily_end_time" validate:"required"`
	LocationDetails string  `json:"location_details" validate:"required"`
	MaximumCapacity int     `json:"maximum_capacity" validate:"required,gt=0"`
	Price           float64 `json:"price" validate:"required,gt=0"`
	FeaturedImage   *string `json:"featured_image"`
	Category        string  `json:"category" validate:"required,max=100"`
}

// UpdateCourseStatusRequest transitions the course lifecycle.
type UpdateCourseStatusRequest struct {
	Status models.CourseStatus `json:"status" validate:"required,oneof=upcoming active completed canceled"`
}

// AttachRecipeRequest links a recipe to a course day.
type AttachRecipeRequest struct {
	RecipeID  int64 `json:"recipe_id" validate:"required,gt=0"`
	DayNumber *int  `json:"day_number" validate:"omitempty,gt=0"`
}

// AssignInstructorRequest links an instructor to a course.
type AssignInstructorRequest struct {
	InstructorID int64 `json:"instructor_id" validate:"required,gt=0"`
	IsLead       bool  `json:"is_lead"`
}

// CourseImageUpload describes an uploaded featured image.
type CourseImageUpload struct {
	Filename string
	Size     int64
	Reader   io.Reader
}

// CourseService orchestrates course management and the public availability
// lookup.
type CourseService struct {
	repo            courseRepository
	cache           availabilityCache
	storage         imageStorage
	imageSubdir     string
	maxImage        int64
	availabilityTTL time.Duration
	validator       *validator.Validate
	logger          *zap.Logger
}

// NewCourseService constructs CourseService.
func NewCourseService(repo courseRepository, cache availabilityCache, storage imageStorage, maxImage int64, availabilityTTL time.Duration, validate *validator.Validate, logger *zap.Logger) *CourseService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxImage <= 0 {
		maxImage = 2 << 20
	}
	return &CourseService{
		repo:            repo,
		cache:           cache,
		storage:         storage,
		imageSubdir:     "courses/images",
		maxImage:        maxImage,
		availabilityTTL: availabilityTTL,
		validator:       validate,
		logger:          logger,
	}
}

// List returns courses with pagination metadata.
func (s *CourseService) List(ctx context.Context, filter models.CourseFilter) ([]models.Course, *models.Pagination, error) {
	courses, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list courses")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 10
	}
	return courses, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns a single course.
func (s *CourseService) Get(ctx context.Context, id int64) (*models.Course, error) {
	course, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	return course, nil
}

// Availability returns the real-time seat availability for a course, served
// from a short-lived cache to absorb registration-page polling.
func (s *CourseService) Availability(ctx context.Context, id int64) (*models.CourseAvailability, bool, error) {
	key := availabilityCacheKey(id)
	if s.cache != nil {
		var cached models.CourseAvailability
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			return &cached, true, nil
		}
	}

	course, err := s.Get(ctx, id)
	if err != nil {
		return nil, false, err
	}
	availability := &models.CourseAvailability{
		CourseID:       course.ID,
		AvailableSeats: course.AvailableSeats(),
		IsAvailable:    course.IsOpenForRegistration(),
		Status:         course.Status,
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, key, availability, s.availabilityTTL); err != nil {
			s.logger.Warn("failed to cache course availability", zap.Int64("course_id", id), zap.Error(err))
		}
	}
	return availability, false, nil
}

// InvalidateAvailability drops the cached availability after a registration
// or cancellation changed the seat count.
func (s *CourseService) InvalidateAvailability(ctx context.Context, id int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, availabilityCacheKey(id)); err != nil {
		s.logger.Warn("failed to invalidate availability cache", zap.Int64("course_id", id), zap.Error(err))
	}
}

// Create adds a new course.
func (s *CourseService) Create(ctx context.Context, req CreateCourseRequest) (*models.Course, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}
	start, end, err := parseCoursePeriod(req.StartDate, req.EndDate)
	if err != nil {
		return nil, err
	}

	course := &models.Course{
		TitleEN:         req.TitleEN,
		TitleBN:         req.TitleBN,
		DescriptionEN:   req.DescriptionEN,
		DescriptionBN:   req.DescriptionBN,
		StartDate:       start,
		EndDate:         end,
		DailyStartTime:  req.DailyStartTime,
		DailyEndTime:    req.DailyEndTime,
		LocationDetails: req.LocationDetails,
		MaximumCapacity: req.MaximumCapacity,
		Price:           req.Price,
		Status:          models.CourseStatusUpcoming,
		FeaturedImage:   req.FeaturedImage,
		Category:        req.Category,
	}
	if err := s.repo.Create(ctx, course); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create course")
	}
	return course, nil
}

// Update edits an existing course. Capacity can shrink below the current
// enrollment; already-registered students keep their seats.
func (s *CourseService) Update(ctx context.Context, id int64, req UpdateCourseRequest) (*models.Course, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}
	start, end, err := parseCoursePeriod(req.StartDate, req.EndDate)
	if err != nil {
		return nil, err
	}

	course, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	course.TitleEN = req.TitleEN
	course.TitleBN = req.TitleBN
	course.DescriptionEN = req.DescriptionEN
	course.DescriptionBN = req.DescriptionBN
	course.StartDate = start
	course.EndDate = end
	course.DailyStartTime = req.DailyStartTime
	course.DailyEndTime = req.DailyEndTime
	course.LocationDetails = req.LocationDetails
	course.MaximumCapacity = req.MaximumCapacity
	course.Price = req.Price
	course.FeaturedImage = req.FeaturedImage
	course.Category = req.Category

	if err := s.repo.Update(ctx, course); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update course")
	}
	s.InvalidateAvailability(ctx, id)
	return course, nil
}

// UploadFeaturedImage stores the course photo and records its path.
func (s *CourseService) UploadFeaturedImage(ctx context.Context, id int64, upload CourseImageUpload) (*models.Course, error) {
	course, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.storage == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "file storage is not configured")
	}
	if upload.Size > s.maxImage {
		return nil, appErrors.Clone(appErrors.ErrValidation, "image file too large")
	}
	ext := strings.ToLower(path.Ext(upload.Filename))
	if ext != ".jpg" && ext != ".jpeg" && ext != ".png" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "image must be a jpeg or png")
	}

	name := path.Join(s.imageSubdir, uuid.NewString()+ext)
	stored, err := s.storage.SaveStream(name, io.LimitReader(upload.Reader, s.maxImage))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store image")
	}

	previous := course.FeaturedImage
	course.FeaturedImage = &stored
	if err := s.repo.Update(ctx, course); err != nil {
		if cleanupErr := s.storage.Delete(stored); cleanupErr != nil {
			s.logger.Warn("failed to remove orphaned image", zap.String("path", stored), zap.Error(cleanupErr))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update course")
	}
	if previous != nil && *previous != stored {
		if err := s.storage.Delete(*previous); err != nil {
			s.logger.Warn("failed to remove replaced image", zap.String("path", *previous), zap.Error(err))
		}
	}
	return course, nil
}

// UpdateStatus transitions the course lifecycle status. Completed courses
// cannot be canceled.
func (s *CourseService) UpdateStatus(ctx context.Context, id int64, req UpdateCourseStatusRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid status payload")
	}
	course, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if req.Status == models.CourseStatusCanceled && course.Status == models.CourseStatusCompleted {
		return appErrors.Clone(appErrors.ErrConflict, "completed courses cannot be canceled")
	}
	if err := s.repo.UpdateStatus(ctx, id, req.Status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update course status")
	}
	s.InvalidateAvailability(ctx, id)
	return nil
}

// Delete removes a course. Courses with enrolled students cannot be deleted.
func (s *CourseService) Delete(ctx context.Context, id int64) error {
	if err := s.repo.SoftDelete(ctx, id); err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return appErrors.Clone(appErrors.ErrNotFound, "course not found")
		case errors.Is(err, repository.ErrCourseNotEmpty):
			return appErrors.Clone(appErrors.ErrConflict, "course has enrolled students")
		default:
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete course")
		}
	}
	s.InvalidateAvailability(ctx, id)
	return nil
}

// AttachRecipe links a recipe to the course curriculum.
func (s *CourseService) AttachRecipe(ctx context.Context, courseID int64, req AttachRecipeRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid recipe attachment payload")
	}
	if _, err := s.Get(ctx, courseID); err != nil {
		return err
	}
	if err := s.repo.AttachRecipe(ctx, courseID, req.RecipeID, req.DayNumber); err != nil {
		if errors.Is(err, repository.ErrRecipeAttached) {
			return appErrors.Clone(appErrors.ErrConflict, "recipe already attached to course")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to attach recipe")
	}
	return nil
}

// ListRecipes returns the course curriculum ordered by day.
func (s *CourseService) ListRecipes(ctx context.Context, courseID int64) ([]models.CourseRecipeDetail, error) {
	if _, err := s.Get(ctx, courseID); err != nil {
		return nil, err
	}
	recipes, err := s.repo.ListRecipes(ctx, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list course recipes")
	}
	return recipes, nil
}

// ListStudents returns the course roster.
func (s *CourseService) ListStudents(ctx context.Context, courseID int64) ([]models.Student, error) {
	if _, err := s.Get(ctx, courseID); err != nil {
		return nil, err
	}
	students, err := s.repo.ListStudents(ctx, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list course students")
	}
	return students, nil
}

// AssignInstructor links an instructor to the course.
func (s *CourseService) AssignInstructor(ctx context.Context, courseID int64, req AssignInstructorRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid instructor assignment payload")
	}
	if _, err := s.Get(ctx, courseID); err != nil {
		return err
	}
	if err := s.repo.AssignInstructor(ctx, courseID, req.InstructorID, req.IsLead); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to assign instructor")
	}
	return nil
}

// ListInstructors returns the instructors teaching the course.
func (s *CourseService) ListInstructors(ctx context.Context, courseID int64) ([]models.Instructor, error) {
	if _, err := s.Get(ctx, courseID); err != nil {
		return nil, err
	}
	instructors, err := s.repo.ListInstructors(ctx, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list course instructors")
	}
	return instructors, nil
}

func availabilityCacheKey(courseID int64) string {
	return fmt.Sprintf("course:availability:%d", courseID)
}

func parseCoursePeriod(startDate, endDate string) (time.Time, time.Time, error) {
	start, err := time.Parse("2006-01-02", startDate)
	if err != nil {
		return time.Time{}, time.Time{}, appErrors.Clone(appErrors.ErrValidation, "invalid start date")
	}
	end, err := time.Parse("2006-01-02", endDate)
	if err != nil {
		return time.Time{}, time.Time{}, appErrors.Clone(appErrors.ErrValidation, "invalid end date")
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, appErrors.Clone(appErrors.ErrValidation, "end date precedes start date")
	}
	return start, end, nil
}
