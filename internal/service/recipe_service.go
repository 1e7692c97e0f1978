package service

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"path"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/culinaryhub/culinary-school-api/internal/models"
	appErrors "github.com/culinaryhub/culinary-school-api/pkg/errors"
)

type recipeRepository interface {
	List(ctx context.Context, filter models.RecipeFilter) ([]models.Recipe, int, error)
	FindByID(ctx context.Context, id int64) (*models.Recipe, error)
	Create(ctx context.Context, recipe *models.Recipe) error
	Update(ctx context.Context, recipe *models.Recipe) error
	SoftDelete(ctx context.Context, id int64) error
	AddImage(ctx context.Context, image *models.RecipeImage) error
	ListImages(ctx context.Context, recipeID int64) ([]models.RecipeImage, error)
	DeleteImage(ctx context.Context, id int64) error
}

type imageStorage interface {
	SaveStream(filename string, r io.Reader) (string, error)
	Delete(filename string) error
}

// CreateRecipeRequest describes recipe creation input. Ingredients and
// instruction steps are validated element-wise.
type CreateRecipeRequest struct {
	NameEN          string                 `json:"name_en" validate:"required,max=255"`
	NameBN          *string                `json:"name_bn" validate:"omitempty,max=255"`
	DescriptionEN   string                 `json:"description_en" validate:"required"`
	DescriptionBN   *string                `json:"description_bn"`
	Ingredients     models.IngredientList  `json:"ingredients" validate:"required,min=1,dive"`
	Instructions    models.InstructionList `json:"instructions" validate:"required,min=1,dive"`
	PreparationTime int                    `json:"preparation_time" validate:"required,gt=0"`
	DifficultyLevel models.DifficultyLevel `json:"difficulty_level" validate:"required,oneof=beginner intermediate advanced"`
}

// UpdateRecipeRequest describes recipe update input.
type UpdateRecipeRequest = CreateRecipeRequest

// RecipeImageUpload describes an uploaded recipe photo.
type RecipeImageUpload struct {
	Filename     string
	Size         int64
	Reader       io.Reader
	IsPrimary    bool
	DisplayOrder int
}

// RecipeService manages the recipe catalog and its images.
type RecipeService struct {
	repo        recipeRepository
	storage     imageStorage
	imageSubdir string
	maxImage    int64
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewRecipeService constructs RecipeService.
func NewRecipeService(repo recipeRepository, storage imageStorage, maxImage int64, validate *validator.Validate, logger *zap.Logger) *RecipeService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxImage <= 0 {
		maxImage = 5 << 20
	}
	return &RecipeService{repo: repo, storage: storage, imageSubdir: "recipes/images", maxImage: maxImage, validator: validate, logger: logger}
}

// List returns recipes with pagination metadata.
func (s *RecipeService) List(ctx context.Context, filter models.RecipeFilter) ([]models.Recipe, *models.Pagination, error) {
	recipes, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list recipes")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 10
	}
	return recipes, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns a recipe with its images.
func (s *RecipeService) Get(ctx context.Context, id int64) (*models.Recipe, []models.RecipeImage, error) {
	recipe, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "recipe not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load recipe")
	}
	images, err := s.repo.ListImages(ctx, id)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load recipe images")
	}
	return recipe, images, nil
}

// Create adds a new recipe.
func (s *RecipeService) Create(ctx context.Context, req CreateRecipeRequest) (*models.Recipe, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid recipe payload")
	}
	recipe := &models.Recipe{
		NameEN:          req.NameEN,
		NameBN:          req.NameBN,
		DescriptionEN:   req.DescriptionEN,
		DescriptionBN:   req.DescriptionBN,
		Ingredients:     req.Ingredients,
		Instructions:    req.Instructions,
		PreparationTime: req.PreparationTime,
		DifficultyLevel: req.DifficultyLevel,
	}
	if err := s.repo.Create(ctx, recipe); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create recipe")
	}
	return recipe, nil
}

// Update edits a recipe.
func (s *RecipeService) Update(ctx context.Context, id int64, req UpdateRecipeRequest) (*models.Recipe, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid recipe payload")
	}
	recipe, _, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	recipe.NameEN = req.NameEN
	recipe.NameBN = req.NameBN
	recipe.DescriptionEN = req.DescriptionEN
	recipe.DescriptionBN = req.DescriptionBN
	recipe.Ingredients = req.Ingredients
	recipe.Instructions = req.Instructions
	recipe.PreparationTime = req.PreparationTime
	recipe.DifficultyLevel = req.DifficultyLevel

	if err := s.repo.Update(ctx, recipe); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "recipe not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update recipe")
	}
	return recipe, nil
}

// Delete removes a recipe.
func (s *RecipeService) Delete(ctx context.Context, id int64) error {
	if err := s.repo.SoftDelete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "recipe not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete recipe")
	}
	return nil
}

// AddImage stores an uploaded recipe photo and records its metadata.
func (s *RecipeService) AddImage(ctx context.Context, recipeID int64, upload RecipeImageUpload) (*models.RecipeImage, error) {
	if _, _, err := s.Get(ctx, recipeID); err != nil {
		return nil, err
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

	image := &models.RecipeImage{
		RecipeID:     recipeID,
		ImagePath:    stored,
		IsPrimary:    upload.IsPrimary,
		DisplayOrder: upload.DisplayOrder,
	}
	if err := s.repo.AddImage(ctx, image); err != nil {
		if cleanupErr := s.storage.Delete(stored); cleanupErr != nil {
			s.logger.Warn("failed to remove orphaned image", zap.String("path", stored), zap.Error(cleanupErr))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record image")
	}
	return image, nil
}
