package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/culinaryhub/culinary-school-api/internal/models"
	"github.com/culinaryhub/culinary-school-api/internal/service"
	appErrors "github.com/culinaryhub/culinary-school-api/pkg/errors"
	"github.com/culinaryhub/culinary-school-api/pkg/response"
)

// RecipeHandler exposes the recipe catalog endpoints.
type RecipeHandler struct {
	recipes *service.RecipeService
}

// NewRecipeHandler constructs RecipeHandler.
func NewRecipeHandler(recipes *service.RecipeService) *RecipeHandler {
	return &RecipeHandler{recipes: recipes}
}

// List godoc
// @Summary List recipes
// @Tags Recipes
// @Produce json
// @Param difficulty query string false "Filter by difficulty"
// @Param search query string false "Search English or Bengali name"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /recipes [get]
func (h *RecipeHandler) List(c *gin.Context) {
	var filter models.RecipeFilter
	filter.Difficulty = models.DifficultyLevel(c.Query("difficulty"))
	filter.Search = c.Query("search")
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "10")); err == nil {
		filter.PageSize = size
	}

	recipes, pagination, err := h.recipes.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, "recipes listed", recipes, pagination)
}

// Get godoc
// @Summary Get a recipe with its images
// @Tags Recipes
// @Produce json
// @Param id path int true "Recipe ID"
// @Success 200 {object} response.Envelope
// @Router /recipes/{id} [get]
func (h *RecipeHandler) Get(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	recipe, images, err := h.recipes.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "recipe found", gin.H{"recipe": recipe, "images": images})
}

// Create godoc
// @Summary Create a recipe
// @Tags Recipes
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.CreateRecipeRequest true "Recipe payload"
// @Success 201 {object} response.Envelope
// @Router /recipes [post]
func (h *RecipeHandler) Create(c *gin.Context) {
	var req service.CreateRecipeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	recipe, err := h.recipes.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, "recipe created", recipe)
}

// Update godoc
// @Summary Update a recipe
// @Tags Recipes
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Recipe ID"
// @Param payload body service.UpdateRecipeRequest true "Recipe payload"
// @Success 200 {object} response.Envelope
// @Router /recipes/{id} [put]
func (h *RecipeHandler) Update(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	var req service.UpdateRecipeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	recipe, err := h.recipes.Update(c.Request.Context(), id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "recipe updated", recipe)
}

// Delete godoc
// @Summary Delete a recipe
// @Tags Recipes
// @Produce json
// @Security BearerAuth
// @Param id path int true "Recipe ID"
// @Success 200 {object} response.Envelope
// @Router /recipes/{id} [delete]
func (h *RecipeHandler) Delete(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	if err := h.recipes.Delete(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "recipe deleted", nil)
}

// AddImage godoc
// @Summary Upload a recipe photo
// @Tags Recipes
// @Accept mpfd
// @Produce json
// @Security BearerAuth
// @Param id path int true "Recipe ID"
// @Param image formData file true "Image (jpeg/png)"
// @Param is_primary formData bool false "Mark as primary"
// @Param display_order formData int false "Display order"
// @Success 201 {object} response.Envelope
// @Router /recipes/{id}/images [post]
func (h *RecipeHandler) AddImage(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	file, err := c.FormFile("image")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "image file required"))
		return
	}
	opened, err := file.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "failed to read image upload"))
		return
	}
	defer opened.Close() //nolint:errcheck

	upload := service.RecipeImageUpload{
		Filename:  file.Filename,
		Size:      file.Size,
		Reader:    opened,
		IsPrimary: c.PostForm("is_primary") == "true",
	}
	if order, err := strconv.Atoi(c.PostForm("display_order")); err == nil {
		upload.DisplayOrder = order
	}

	image, err := h.recipes.AddImage(c.Request.Context(), id, upload)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, "image added", image)
}
