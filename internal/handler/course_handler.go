package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/culinaryhub/culinary-school-api/internal/middleware"
	"github.com/culinaryhub/culinary-school-api/internal/models"
	"github.com/culinaryhub/culinary-school-api/internal/service"
	appErrors "github.com/culinaryhub/culinary-school-api/pkg/errors"
	"github.com/culinaryhub/culinary-school-api/pkg/response"
)

// CourseHandler exposes course catalog and curriculum endpoints.
type CourseHandler struct {
	courses *service.CourseService
}

// NewCourseHandler constructs CourseHandler.
func NewCourseHandler(courses *service.CourseService) *CourseHandler {
	return &CourseHandler{courses: courses}
}

// List godoc
// @Summary List courses
// @Tags Courses
// @Produce json
// @Param status query string false "Filter by status"
// @Param category query string false "Filter by category"
// @Param sort query string false "Sort order"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /courses [get]
func (h *CourseHandler) List(c *gin.Context) {
	var filter models.CourseFilter
	filter.Status = models.CourseStatus(c.Query("status"))
	filter.Category = c.Query("category")
	filter.SortBy = c.Query("sort")
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "10")); err == nil {
		filter.PageSize = size
	}

	courses, pagination, err := h.courses.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, "courses listed", courses, pagination)
}

// Get godoc
// @Summary Get a course
// @Tags Courses
// @Produce json
// @Param id path int true "Course ID"
// @Success 200 {object} response.Envelope
// @Router /courses/{id} [get]
func (h *CourseHandler) Get(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	course, err := h.courses.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "course found", course)
}

// Availability godoc
// @Summary Real-time course seat availability
// @Tags Courses
// @Produce json
// @Param id path int true "Course ID"
// @Success 200 {object} response.Envelope
// @Router /courses/{id}/availability [get]
func (h *CourseHandler) Availability(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	availability, cacheHit, err := h.courses.Availability(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	response.JSON(c, http.StatusOK, "course availability", availability, nil, middleware.ExtractMeta(c))
}

// Create godoc
// @Summary Create a course
// @Tags Courses
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.CreateCourseRequest true "Course payload"
// @Success 201 {object} response.Envelope
// @Router /courses [post]
func (h *CourseHandler) Create(c *gin.Context) {
	var req service.CreateCourseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	course, err := h.courses.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, "course created", course)
}

// Update godoc
// @Summary Update a course
// @Tags Courses
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Course ID"
// @Param payload body service.UpdateCourseRequest true "Course payload"
// @Success 200 {object} response.Envelope
// @Router /courses/{id} [put]
func (h *CourseHandler) Update(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	var req service.UpdateCourseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	course, err := h.courses.Update(c.Request.Context(), id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "course updated", course)
}

// UpdateStatus godoc
// @Summary Transition course lifecycle status
// @Tags Courses
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Course ID"
// @Param payload body service.UpdateCourseStatusRequest true "Status payload"
// @Success 200 {object} response.Envelope
// @Router /courses/{id}/status [patch]
func (h *CourseHandler) UpdateStatus(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	var req service.UpdateCourseStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	// Canceling needs its own capability; every other transition is a
	// publish-style lifecycle change.
	required := models.CapCoursesPublish
	if req.Status == models.CourseStatusCanceled {
		required = models.CapCoursesCancel
	}
	claims := claimsFromContext(c)
	if claims == nil || !claims.Role.Can(required) {
		response.Error(c, appErrors.Clone(appErrors.ErrForbidden, ""))
		return
	}
	if err := h.courses.UpdateStatus(c.Request.Context(), id, req); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "course status updated", nil)
}

// Delete godoc
// @Summary Delete a course
// @Tags Courses
// @Produce json
// @Security BearerAuth
// @Param id path int true "Course ID"
// @Success 200 {object} response.Envelope
// @Router /courses/{id} [delete]
func (h *CourseHandler) Delete(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	if err := h.courses.Delete(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "course deleted", nil)
}

// UploadImage godoc
// @Summary Upload the course featured image
// @Tags Courses
// @Accept mpfd
// @Produce json
// @Security BearerAuth
// @Param id path int true "Course ID"
// @Param image formData file true "Image (jpeg/png)"
// @Success 200 {object} response.Envelope
// @Router /courses/{id}/image [post]
func (h *CourseHandler) UploadImage(c *gin.Context) {
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

	course, err := h.courses.UploadFeaturedImage(c.Request.Context(), id, service.CourseImageUpload{
		Filename: file.Filename,
		Size:     file.Size,
		Reader:   opened,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "course image updated", course)
}

// AttachRecipe godoc
// @Summary Attach a recipe to the course curriculum
// @Tags Courses
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Course ID"
// @Param payload body service.AttachRecipeRequest true "Recipe attachment"
// @Success 201 {object} response.Envelope
// @Router /courses/{id}/recipes [post]
func (h *CourseHandler) AttachRecipe(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	var req service.AttachRecipeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	if err := h.courses.AttachRecipe(c.Request.Context(), id, req); err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, "recipe attached", nil)
}

// ListRecipes godoc
// @Summary List the course curriculum
// @Tags Courses
// @Produce json
// @Param id path int true "Course ID"
// @Success 200 {object} response.Envelope
// @Router /courses/{id}/recipes [get]
func (h *CourseHandler) ListRecipes(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	recipes, err := h.courses.ListRecipes(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "course recipes listed", recipes)
}

// ListStudents godoc
// @Summary List enrolled students
// @Tags Courses
// @Produce json
// @Security BearerAuth
// @Param id path int true "Course ID"
// @Success 200 {object} response.Envelope
// @Router /courses/{id}/students [get]
func (h *CourseHandler) ListStudents(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	students, err := h.courses.ListStudents(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "course students listed", students)
}

// AssignInstructor godoc
// @Summary Assign an instructor to the course
// @Tags Courses
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Course ID"
// @Param payload body service.AssignInstructorRequest true "Instructor assignment"
// @Success 201 {object} response.Envelope
// @Router /courses/{id}/instructors [post]
func (h *CourseHandler) AssignInstructor(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	var req service.AssignInstructorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	if err := h.courses.AssignInstructor(c.Request.Context(), id, req); err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, "instructor assigned", nil)
}

// ListInstructors godoc
// @Summary List course instructors
// @Tags Courses
// @Produce json
// @Param id path int true "Course ID"
// @Success 200 {object} response.Envelope
// @Router /courses/{id}/instructors [get]
func (h *CourseHandler) ListInstructors(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	instructors, err := h.courses.ListInstructors(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "course instructors listed", instructors)
}
