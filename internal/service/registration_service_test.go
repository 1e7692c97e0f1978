package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/culinaryhub/culinary-school-api/internal/models"
	"github.com/culinaryhub/culinary-school-api/internal/repository"
	appErrors "github.com/culinaryhub/culinary-school-api/pkg/errors"
)

type mockRegistrationRepo struct {
	registrations map[int64]models.RegistrationDetail
	registerErr   error
	registered    *models.Registration
	canceled      []int64
	statusUpdates map[int64]models.PaymentStatus
	nextID        int64
}

func (m *mockRegistrationRepo) Register(ctx context.Context, studentID, courseID int64) (*models.Registration, error) {
	if m.registerErr != nil {
		return nil, m.registerErr
	}
	if m.nextID == 0 {
		m.nextID = 1
	}
	reg := &models.Registration{
		ID:                m.nextID,
		StudentID:         studentID,
		CourseID:          courseID,
		PaymentStatus:     models.PaymentStatusPending,
		CertificateStatus: models.CertificateStatusNotEligible,
	}
	m.registered = reg
	return reg, nil
}

func (m *mockRegistrationRepo) Cancel(ctx context.Context, registrationID int64) error {
	if _, ok := m.registrations[registrationID]; !ok {
		return sql.ErrNoRows
	}
	m.canceled = append(m.canceled, registrationID)
	return nil
}

func (m *mockRegistrationRepo) FindByID(ctx context.Context, id int64) (*models.Registration, error) {
	if d, ok := m.registrations[id]; ok {
		reg := d.Registration
		return &reg, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockRegistrationRepo) FindDetailByID(ctx context.Context, id int64) (*models.RegistrationDetail, error) {
	if d, ok := m.registrations[id]; ok {
		return &d, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockRegistrationRepo) UpdatePaymentStatus(ctx context.Context, id int64, status models.PaymentStatus) error {
	d, ok := m.registrations[id]
	if !ok {
		return sql.ErrNoRows
	}
	if m.statusUpdates == nil {
		m.statusUpdates = make(map[int64]models.PaymentStatus)
	}
	m.statusUpdates[id] = status
	d.PaymentStatus = status
	m.registrations[id] = d
	return nil
}

func (m *mockRegistrationRepo) ListByStudent(ctx context.Context, studentID int64) ([]models.Registration, error) {
	var list []models.Registration
	for _, d := range m.registrations {
		if d.StudentID == studentID {
			list = append(list, d.Registration)
		}
	}
	return list, nil
}

type mockStudentResolver struct {
	byID     map[int64]*models.Student
	byUserID map[int64]*models.Student
}

func (m *mockStudentResolver) FindByID(ctx context.Context, id int64) (*models.Student, error) {
	if s, ok := m.byID[id]; ok {
		return s, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockStudentResolver) FindByUserID(ctx context.Context, userID int64) (*models.Student, error) {
	if s, ok := m.byUserID[userID]; ok {
		return s, nil
	}
	return nil, sql.ErrNoRows
}

type mockCourseReader struct {
	courses map[int64]*models.Course
}

func (m *mockCourseReader) FindByID(ctx context.Context, id int64) (*models.Course, error) {
	if c, ok := m.courses[id]; ok {
		return c, nil
	}
	return nil, sql.ErrNoRows
}

type mockAuditWriter struct {
	logs []models.AuditLog
}

func (m *mockAuditWriter) Create(ctx context.Context, log *models.AuditLog) error {
	m.logs = append(m.logs, *log)
	return nil
}

type mockInvalidator struct {
	courseIDs []int64
}

func (m *mockInvalidator) InvalidateAvailability(ctx context.Context, courseID int64) {
	m.courseIDs = append(m.courseIDs, courseID)
}

func studentClaims(userID int64) *models.JWTClaims {
	return &models.JWTClaims{UserID: userID, Role: models.RoleStudent}
}

func adminClaims(userID int64) *models.JWTClaims {
	return &models.JWTClaims{UserID: userID, Role: models.RoleSuperAdmin}
}

func newRegistrationServiceForTest(repo *mockRegistrationRepo, students *mockStudentResolver, courses *mockCourseReader) (*RegistrationService, *mockInvalidator) {
	inv := &mockInvalidator{}
	svc := NewRegistrationService(repo, students, courses, &mockAuditWriter{}, inv, "01712345678", "COOK", validator.New(), zap.NewNop())
	return svc, inv
}

func TestRegistrationServiceRegister(t *testing.T) {
	repo := &mockRegistrationRepo{nextID: 42}
	students := &mockStudentResolver{byUserID: map[int64]*models.Student{10: {ID: 5, UserID: 10}}}
	courses := &mockCourseReader{courses: map[int64]*models.Course{3: {ID: 3, Price: 5500, Status: models.CourseStatusUpcoming, MaximumCapacity: 20}}}
	svc, inv := newRegistrationServiceForTest(repo, students, courses)

	result, err := svc.Register(context.Background(), studentClaims(10), RegisterRequest{CourseID: 3})
	require.NoError(t, err)
	assert.Equal(t, int64(42), result.Registration.ID)
	assert.Equal(t, int64(5), result.Registration.StudentID)
	assert.Equal(t, models.PaymentStatusPending, result.Registration.PaymentStatus)
	assert.Equal(t, 5500.0, result.PaymentInstructions.Amount)
	assert.Equal(t, "COOK-42", result.PaymentInstructions.Reference)
	assert.Equal(t, "01712345678", result.PaymentInstructions.BkashNumber)
	assert.Contains(t, inv.courseIDs, int64(3))
}

func TestRegistrationServiceRegisterOnBehalfRequiresCapability(t *testing.T) {
	repo := &mockRegistrationRepo{}
	students := &mockStudentResolver{
		byID:     map[int64]*models.Student{7: {ID: 7, UserID: 99}},
		byUserID: map[int64]*models.Student{10: {ID: 5, UserID: 10}},
	}
	courses := &mockCourseReader{courses: map[int64]*models.Course{3: {ID: 3, Price: 1000}}}
	svc, _ := newRegistrationServiceForTest(repo, students, courses)

	_, err := svc.Register(context.Background(), studentClaims(10), RegisterRequest{CourseID: 3, StudentID: 7})
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)

	result, err := svc.Register(context.Background(), adminClaims(1), RegisterRequest{CourseID: 3, StudentID: 7})
	require.NoError(t, err)
	assert.Equal(t, int64(7), result.Registration.StudentID)
}

func TestRegistrationServiceRegisterCourseFull(t *testing.T) {
	repo := &mockRegistrationRepo{registerErr: repository.ErrCourseUnavailable}
	students := &mockStudentResolver{byUserID: map[int64]*models.Student{10: {ID: 5, UserID: 10}}}
	courses := &mockCourseReader{courses: map[int64]*models.Course{3: {ID: 3, Price: 1000}}}
	svc, inv := newRegistrationServiceForTest(repo, students, courses)

	_, err := svc.Register(context.Background(), studentClaims(10), RegisterRequest{CourseID: 3})
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
	assert.Equal(t, "course is not available for registration", appErr.Message)
	assert.Empty(t, inv.courseIDs)
}

func TestRegistrationServiceRegisterDuplicate(t *testing.T) {
	repo := &mockRegistrationRepo{registerErr: repository.ErrAlreadyRegistered}
	students := &mockStudentResolver{byUserID: map[int64]*models.Student{10: {ID: 5, UserID: 10}}}
	courses := &mockCourseReader{courses: map[int64]*models.Course{3: {ID: 3, Price: 1000}}}
	svc, _ := newRegistrationServiceForTest(repo, students, courses)

	_, err := svc.Register(context.Background(), studentClaims(10), RegisterRequest{CourseID: 3})
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
	assert.Equal(t, "student is already registered for this course", appErr.Message)
}

func TestRegistrationServiceCancel(t *testing.T) {
	repo := &mockRegistrationRepo{registrations: map[int64]models.RegistrationDetail{
		1: {
			Registration:    models.Registration{ID: 1, StudentID: 5, CourseID: 3},
			CourseStatus:    models.CourseStatusUpcoming,
			CourseStartDate: time.Now().Add(48 * time.Hour),
		},
	}}
	students := &mockStudentResolver{byUserID: map[int64]*models.Student{10: {ID: 5, UserID: 10}}}
	svc, inv := newRegistrationServiceForTest(repo, students, &mockCourseReader{})

	err := svc.Cancel(context.Background(), studentClaims(10), 1)
	require.NoError(t, err)
	assert.Contains(t, repo.canceled, int64(1))
	assert.Contains(t, inv.courseIDs, int64(3))
}

func TestRegistrationServiceCancelAfterStart(t *testing.T) {
	repo := &mockRegistrationRepo{registrations: map[int64]models.RegistrationDetail{
		1: {
			Registration:    models.Registration{ID: 1, StudentID: 5, CourseID: 3},
			CourseStatus:    models.CourseStatusActive,
			CourseStartDate: time.Now().Add(-24 * time.Hour),
		},
	}}
	students := &mockStudentResolver{byUserID: map[int64]*models.Student{10: {ID: 5, UserID: 10}}}
	svc, _ := newRegistrationServiceForTest(repo, students, &mockCourseReader{})

	err := svc.Cancel(context.Background(), studentClaims(10), 1)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
	assert.Empty(t, repo.canceled)
}

func TestRegistrationServiceCancelNotOwner(t *testing.T) {
	repo := &mockRegistrationRepo{registrations: map[int64]models.RegistrationDetail{
		1: {
			Registration:    models.Registration{ID: 1, StudentID: 5, CourseID: 3},
			CourseStatus:    models.CourseStatusUpcoming,
			CourseStartDate: time.Now().Add(48 * time.Hour),
		},
	}}
	students := &mockStudentResolver{byUserID: map[int64]*models.Student{20: {ID: 6, UserID: 20}}}
	svc, _ := newRegistrationServiceForTest(repo, students, &mockCourseReader{})

	err := svc.Cancel(context.Background(), studentClaims(20), 1)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
}

func TestRegistrationServiceVerify(t *testing.T) {
	repo := &mockRegistrationRepo{registrations: map[int64]models.RegistrationDetail{
		1: {Registration: models.Registration{ID: 1, StudentID: 5, CourseID: 3, PaymentStatus: models.PaymentStatusPending}},
	}}
	svc, _ := newRegistrationServiceForTest(repo, &mockStudentResolver{}, &mockCourseReader{})

	detail, err := svc.Verify(context.Background(), adminClaims(1), 1)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusCompleted, detail.PaymentStatus)
	assert.Equal(t, models.PaymentStatusCompleted, repo.statusUpdates[1])
}

func TestRegistrationServiceGetOwnershipEnforced(t *testing.T) {
	repo := &mockRegistrationRepo{registrations: map[int64]models.RegistrationDetail{
		1: {Registration: models.Registration{ID: 1, StudentID: 5, CourseID: 3}},
	}}
	students := &mockStudentResolver{byUserID: map[int64]*models.Student{
		10: {ID: 5, UserID: 10},
		20: {ID: 6, UserID: 20},
	}}
	svc, _ := newRegistrationServiceForTest(repo, students, &mockCourseReader{})

	detail, err := svc.Get(context.Background(), studentClaims(10), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), detail.ID)

	_, err = svc.Get(context.Background(), studentClaims(20), 1)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
}
