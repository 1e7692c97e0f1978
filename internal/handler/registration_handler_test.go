package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/culinaryhub/culinary-school-api/internal/middleware"
	"github.com/culinaryhub/culinary-school-api/internal/models"
	"github.com/culinaryhub/culinary-school-api/internal/repository"
	"github.com/culinaryhub/culinary-school-api/internal/service"
)

type fakeRegistrationRepo struct {
	registerErr error
	nextID      int64
}

func (f *fakeRegistrationRepo) Register(_ context.Context, studentID, courseID int64) (*models.Registration, error) {
	if f.registerErr != nil {
		return nil, f.registerErr
	}
	return &models.Registration{
		ID:                f.nextID,
		StudentID:         studentID,
		CourseID:          courseID,
		PaymentStatus:     models.PaymentStatusPending,
		CertificateStatus: models.CertificateStatusNotEligible,
		CreatedAt:         time.Now().UTC(),
	}, nil
}

func (f *fakeRegistrationRepo) Cancel(context.Context, int64) error { return nil }

func (f *fakeRegistrationRepo) FindByID(context.Context, int64) (*models.Registration, error) {
	return nil, sql.ErrNoRows
}

func (f *fakeRegistrationRepo) FindDetailByID(context.Context, int64) (*models.RegistrationDetail, error) {
	return nil, sql.ErrNoRows
}

func (f *fakeRegistrationRepo) UpdatePaymentStatus(context.Context, int64, models.PaymentStatus) error {
	return nil
}

func (f *fakeRegistrationRepo) ListByStudent(context.Context, int64) ([]models.Registration, error) {
	return nil, nil
}

type fakeCourseReader struct {
	course *models.Course
}

func (f *fakeCourseReader) FindByID(context.Context, int64) (*models.Course, error) {
	if f.course == nil {
		return nil, sql.ErrNoRows
	}
	return f.course, nil
}

func newRegistrationHandlerForTest(repo *fakeRegistrationRepo, courses *fakeCourseReader) *RegistrationHandler {
	students := &fakeStudentResolver{byUserID: map[int64]*models.Student{
		10: {ID: 5, UserID: 10, Name: "Rahim Uddin"},
	}}
	svc := service.NewRegistrationService(repo, students, courses, &fakeAuditLog{}, nil, "01712345678", "COOK", nil, nil)
	return NewRegistrationHandler(svc)
}

func upcomingCourse() *models.Course {
	return &models.Course{
		ID:              3,
		TitleEN:         "Bengali Sweets Masterclass",
		Price:           5500,
		Status:          models.CourseStatusUpcoming,
		MaximumCapacity: 20,
	}
}

func registerRequest(body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/registrations", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestRegistrationHandlerRegisterRequiresAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := newRegistrationHandlerForTest(&fakeRegistrationRepo{nextID: 7}, &fakeCourseReader{course: upcomingCourse()})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = registerRequest(`{"course_id":3}`)

	h.Register(c)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRegistrationHandlerRegisterSuccess(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := newRegistrationHandlerForTest(&fakeRegistrationRepo{nextID: 7}, &fakeCourseReader{course: upcomingCourse()})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = registerRequest(`{"course_id":3}`)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: 10, Role: models.RoleStudent})

	h.Register(c)

	require.Equal(t, http.StatusCreated, rec.Code)
	var envelope responseEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.True(t, envelope.Success)
	instructions, ok := envelope.Data["payment_instructions"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "COOK-7", instructions["reference"])
	assert.Equal(t, "01712345678", instructions["bkash_number"])
	assert.Equal(t, 5500.0, instructions["amount"])
}

func TestRegistrationHandlerRegisterForCoursePathParam(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := newRegistrationHandlerForTest(&fakeRegistrationRepo{nextID: 7}, &fakeCourseReader{course: upcomingCourse()})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/courses/3/register", nil)
	c.Params = gin.Params{{Key: "id", Value: "3"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: 10, Role: models.RoleStudent})

	h.RegisterForCourse(c)

	require.Equal(t, http.StatusCreated, rec.Code)
	var envelope responseEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.True(t, envelope.Success)
	registration, ok := envelope.Data["registration"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, 3.0, registration["course_id"])
}

func TestRegistrationHandlerRegisterForCourseBadID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := newRegistrationHandlerForTest(&fakeRegistrationRepo{nextID: 7}, &fakeCourseReader{course: upcomingCourse()})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/courses/abc/register", nil)
	c.Params = gin.Params{{Key: "id", Value: "abc"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: 10, Role: models.RoleStudent})

	h.RegisterForCourse(c)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestRegistrationHandlerRegisterValidation(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := newRegistrationHandlerForTest(&fakeRegistrationRepo{nextID: 7}, &fakeCourseReader{course: upcomingCourse()})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = registerRequest(`{}`)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: 10, Role: models.RoleStudent})

	h.Register(c)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestRegistrationHandlerRegisterCourseFull(t *testing.T) {
	gin.SetMode(gin.TestMode)
	repo := &fakeRegistrationRepo{registerErr: repository.ErrCourseUnavailable}
	h := newRegistrationHandlerForTest(repo, &fakeCourseReader{course: upcomingCourse()})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = registerRequest(`{"course_id":3}`)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: 10, Role: models.RoleStudent})

	h.Register(c)

	var envelope responseEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, envelope.Success)
	assert.Equal(t, "course is not available for registration", envelope.Message)
}
