package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/culinaryhub/culinary-school-api/internal/models"
	"github.com/culinaryhub/culinary-school-api/internal/service"
)

type responseEnvelope struct {
	Success bool                   `json:"success"`
	Message string                 `json:"message"`
	Data    map[string]interface{} `json:"data"`
	Meta    map[string]interface{} `json:"meta"`
}

type fakeCertificateRepo struct {
	byNumber map[string]*models.Certificate
	byID     map[int64]*models.Certificate
}

func (f *fakeCertificateRepo) Issue(context.Context, *models.Certificate) error { return nil }

func (f *fakeCertificateRepo) FindByID(_ context.Context, id int64) (*models.Certificate, error) {
	if cert, ok := f.byID[id]; ok {
		return cert, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeCertificateRepo) FindByRegistrationID(context.Context, int64) (*models.Certificate, error) {
	return nil, sql.ErrNoRows
}

func (f *fakeCertificateRepo) FindByNumber(_ context.Context, number string) (*models.Certificate, error) {
	if cert, ok := f.byNumber[number]; ok {
		return cert, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeCertificateRepo) UpdatePDFPath(context.Context, int64, string) error { return nil }

type fakeRegistrationDetailReader struct {
	details map[int64]*models.RegistrationDetail
}

func (f *fakeRegistrationDetailReader) FindDetailByID(_ context.Context, id int64) (*models.RegistrationDetail, error) {
	if detail, ok := f.details[id]; ok {
		return detail, nil
	}
	return nil, sql.ErrNoRows
}

type fakeStudentResolver struct {
	byUserID map[int64]*models.Student
}

func (f *fakeStudentResolver) FindByID(context.Context, int64) (*models.Student, error) {
	return nil, sql.ErrNoRows
}

func (f *fakeStudentResolver) FindByUserID(_ context.Context, userID int64) (*models.Student, error) {
	if student, ok := f.byUserID[userID]; ok {
		return student, nil
	}
	return nil, sql.ErrNoRows
}

type fakeAuditLog struct{}

func (f *fakeAuditLog) Create(context.Context, *models.AuditLog) error { return nil }

func newCertificateHandlerForTest(repo *fakeCertificateRepo, regs *fakeRegistrationDetailReader) *CertificateHandler {
	svc := service.NewCertificateService(repo, regs, &fakeStudentResolver{}, &fakeAuditLog{}, nil, nil, nil)
	return NewCertificateHandler(svc)
}

func TestCertificateHandlerVerifySuccess(t *testing.T) {
	gin.SetMode(gin.TestMode)
	issued := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	repo := &fakeCertificateRepo{
		byNumber: map[string]*models.Certificate{
			"CERT-2026-00042": {
				ID:                1,
				RegistrationID:    42,
				CertificateNumber: "CERT-2026-00042",
				IssueDate:         issued,
			},
		},
	}
	regs := &fakeRegistrationDetailReader{
		details: map[int64]*models.RegistrationDetail{
			42: {
				Registration:    models.Registration{ID: 42, StudentID: 5, CourseID: 3},
				StudentName:     "Rahim Uddin",
				CourseTitle:     "Bengali Sweets Masterclass",
				CourseStartDate: time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC),
				CourseEndDate:   time.Date(2026, 2, 27, 0, 0, 0, 0, time.UTC),
			},
		},
	}
	h := newCertificateHandlerForTest(repo, regs)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/certificates/verify/CERT-2026-00042", nil)
	c.Params = gin.Params{{Key: "number", Value: "CERT-2026-00042"}}

	h.Verify(c)

	require.Equal(t, http.StatusOK, rec.Code)
	var envelope responseEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.True(t, envelope.Success)
	assert.Equal(t, true, envelope.Data["is_valid"])
	assert.Equal(t, "CERT-2026-00042", envelope.Data["certificate_number"])
	assert.Equal(t, "Rahim Uddin", envelope.Data["student_name"])
}

func TestCertificateHandlerVerifyUnknownNumber(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := newCertificateHandlerForTest(&fakeCertificateRepo{}, &fakeRegistrationDetailReader{})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/certificates/verify/CERT-2026-99999", nil)
	c.Params = gin.Params{{Key: "number", Value: "CERT-2026-99999"}}

	h.Verify(c)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCertificateHandlerGetRequiresAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := newCertificateHandlerForTest(&fakeCertificateRepo{}, &fakeRegistrationDetailReader{})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/certificates/1", nil)
	c.Params = gin.Params{{Key: "id", Value: "1"}}

	h.Get(c)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
