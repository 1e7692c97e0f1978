package service

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/culinaryhub/culinary-school-api/internal/models"
	appErrors "github.com/culinaryhub/culinary-school-api/pkg/errors"
)

type mockCertificateRepo struct {
	byRegistration map[int64]*models.Certificate
	byNumber       map[string]*models.Certificate
	issued         *models.Certificate
	pdfPaths       map[int64]string
	nextID         int64
}

func (m *mockCertificateRepo) Issue(ctx context.Context, cert *models.Certificate) error {
	if m.nextID == 0 {
		m.nextID = 1
	}
	cert.ID = m.nextID
	cert.CreatedAt = time.Now()
	if m.byRegistration == nil {
		m.byRegistration = make(map[int64]*models.Certificate)
	}
	m.byRegistration[cert.RegistrationID] = cert
	m.issued = cert
	return nil
}

func (m *mockCertificateRepo) FindByID(ctx context.Context, id int64) (*models.Certificate, error) {
	for _, c := range m.byRegistration {
		if c.ID == id {
			return c, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockCertificateRepo) FindByRegistrationID(ctx context.Context, registrationID int64) (*models.Certificate, error) {
	if c, ok := m.byRegistration[registrationID]; ok {
		return c, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockCertificateRepo) FindByNumber(ctx context.Context, number string) (*models.Certificate, error) {
	if c, ok := m.byNumber[number]; ok {
		return c, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockCertificateRepo) UpdatePDFPath(ctx context.Context, id int64, path string) error {
	if m.pdfPaths == nil {
		m.pdfPaths = make(map[int64]string)
	}
	m.pdfPaths[id] = path
	return nil
}

type mockPDFStorage struct {
	saved map[string][]byte
}

func (m *mockPDFStorage) Save(filename string, data []byte) (string, error) {
	if m.saved == nil {
		m.saved = make(map[string][]byte)
	}
	m.saved[filename] = data
	return filename, nil
}

type mockCertRegistrationReader struct {
	details map[int64]*models.RegistrationDetail
}

func (m *mockCertRegistrationReader) FindDetailByID(ctx context.Context, id int64) (*models.RegistrationDetail, error) {
	if d, ok := m.details[id]; ok {
		return d, nil
	}
	return nil, sql.ErrNoRows
}

func completedRegistration(id int64) *models.RegistrationDetail {
	return &models.RegistrationDetail{
		Registration: models.Registration{
			ID:            id,
			StudentID:     5,
			CourseID:      3,
			PaymentStatus: models.PaymentStatusCompleted,
		},
		StudentName:     "Rahim Uddin",
		CourseTitle:     "Bengali Sweets Masterclass",
		CourseStatus:    models.CourseStatusCompleted,
		CourseStartDate: time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC),
		CourseEndDate:   time.Date(2026, 2, 27, 0, 0, 0, 0, time.UTC),
		CoursePrice:     5500,
	}
}

func newCertificateServiceForTest(repo *mockCertificateRepo, registrations *mockCertRegistrationReader, storage *mockPDFStorage) *CertificateService {
	students := &mockStudentResolver{byUserID: map[int64]*models.Student{10: {ID: 5, UserID: 10}}}
	return NewCertificateService(repo, registrations, students, &mockAuditWriter{}, storage, validator.New(), zap.NewNop())
}

func TestCertificateServiceGenerate(t *testing.T) {
	repo := &mockCertificateRepo{nextID: 9}
	registrations := &mockCertRegistrationReader{details: map[int64]*models.RegistrationDetail{42: completedRegistration(42)}}
	storage := &mockPDFStorage{}
	svc := newCertificateServiceForTest(repo, registrations, storage)

	cert, err := svc.Generate(context.Background(), adminClaims(1), 42)
	require.NoError(t, err)
	assert.Equal(t, int64(42), cert.RegistrationID)
	assert.Equal(t, fmt.Sprintf("CERT-%d-00042", cert.IssueDate.Year()), cert.CertificateNumber)
	assert.Len(t, cert.DigitalSignature, 64)
	require.NotNil(t, cert.PDFPath)
	assert.Contains(t, *cert.PDFPath, cert.CertificateNumber)
	assert.NotEmpty(t, storage.saved)
	assert.Equal(t, *cert.PDFPath, repo.pdfPaths[cert.ID])
}

func TestCertificateServiceGenerateCourseNotCompleted(t *testing.T) {
	detail := completedRegistration(42)
	detail.CourseStatus = models.CourseStatusActive
	registrations := &mockCertRegistrationReader{details: map[int64]*models.RegistrationDetail{42: detail}}
	svc := newCertificateServiceForTest(&mockCertificateRepo{}, registrations, nil)

	_, err := svc.Generate(context.Background(), adminClaims(1), 42)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
	assert.Equal(t, "course is not completed yet", appErr.Message)
}

func TestCertificateServiceGeneratePaymentPending(t *testing.T) {
	detail := completedRegistration(42)
	detail.PaymentStatus = models.PaymentStatusPending
	registrations := &mockCertRegistrationReader{details: map[int64]*models.RegistrationDetail{42: detail}}
	svc := newCertificateServiceForTest(&mockCertificateRepo{}, registrations, nil)

	_, err := svc.Generate(context.Background(), adminClaims(1), 42)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "payment is not completed", appErr.Message)
}

func TestCertificateServiceGenerateAlreadyIssued(t *testing.T) {
	existing := &models.Certificate{ID: 7, RegistrationID: 42, CertificateNumber: "CERT-2026-00042"}
	repo := &mockCertificateRepo{byRegistration: map[int64]*models.Certificate{42: existing}}
	registrations := &mockCertRegistrationReader{details: map[int64]*models.RegistrationDetail{42: completedRegistration(42)}}
	svc := newCertificateServiceForTest(repo, registrations, nil)

	_, err := svc.Generate(context.Background(), adminClaims(1), 42)
	var conflict *appErrors.ConflictWithData
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, existing, conflict.Data)
	assert.Equal(t, "certificate already issued", err.Error())
	assert.Equal(t, appErrors.ErrConflict.Code, conflict.Err.Code)
	assert.Nil(t, repo.issued)
}

func TestCertificateServiceVerify(t *testing.T) {
	cert := &models.Certificate{
		ID:                7,
		RegistrationID:    42,
		CertificateNumber: "CERT-2026-00042",
		IssueDate:         time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	}
	repo := &mockCertificateRepo{byNumber: map[string]*models.Certificate{cert.CertificateNumber: cert}}
	registrations := &mockCertRegistrationReader{details: map[int64]*models.RegistrationDetail{42: completedRegistration(42)}}
	svc := newCertificateServiceForTest(repo, registrations, nil)

	verification, err := svc.Verify(context.Background(), "CERT-2026-00042")
	require.NoError(t, err)
	assert.True(t, verification.IsValid)
	assert.Equal(t, "Rahim Uddin", verification.StudentName)
	assert.Equal(t, "Bengali Sweets Masterclass", verification.CourseName)
	assert.Equal(t, "5 Jan 2026 - 27 Feb 2026", verification.CoursePeriod)
}

func TestCertificateServiceVerifyUnknownNumber(t *testing.T) {
	svc := newCertificateServiceForTest(&mockCertificateRepo{}, &mockCertRegistrationReader{}, nil)

	_, err := svc.Verify(context.Background(), "CERT-2026-99999")
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestCertificateServiceGetOwnership(t *testing.T) {
	cert := &models.Certificate{ID: 7, RegistrationID: 42, CertificateNumber: "CERT-2026-00042"}
	repo := &mockCertificateRepo{byRegistration: map[int64]*models.Certificate{42: cert}}
	registrations := &mockCertRegistrationReader{details: map[int64]*models.RegistrationDetail{42: completedRegistration(42)}}
	svc := newCertificateServiceForTest(repo, registrations, nil)

	got, err := svc.Get(context.Background(), studentClaims(10), 7)
	require.NoError(t, err)
	assert.Equal(t, cert.CertificateNumber, got.CertificateNumber)

	_, err = svc.Get(context.Background(), studentClaims(99), 7)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
}

func TestCertificateNumberFormat(t *testing.T) {
	assert.Equal(t, "CERT-2026-00042", CertificateNumber(2026, 42))
	assert.Equal(t, "CERT-2027-12345", CertificateNumber(2027, 12345))
	assert.Equal(t, "CERT-2026-123456", CertificateNumber(2026, 123456))
}

func TestCertificateSignatureDeterministic(t *testing.T) {
	issuedAt := time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC)
	sum := sha256.Sum256([]byte(fmt.Sprintf("%d|%s|%d", int64(42), "CERT-2026-00042", issuedAt.Unix())))

	sig := CertificateSignature(42, "CERT-2026-00042", issuedAt)
	assert.Equal(t, hex.EncodeToString(sum[:]), sig)
	assert.Equal(t, sig, CertificateSignature(42, "CERT-2026-00042", issuedAt))
	assert.NotEqual(t, sig, CertificateSignature(43, "CERT-2026-00043", issuedAt))
}
