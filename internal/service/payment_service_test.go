package service

import (
	"context"
	"database/sql"
	"io"
	"strings"
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

type mockPaymentRepo struct {
	payments  map[int64]models.PaymentDetail
	createErr error
	verifyErr error
	created   *models.Payment
	verified  map[int64]models.VerificationStatus
	nextID    int64
}

func (m *mockPaymentRepo) Create(ctx context.Context, payment *models.Payment) error {
	if m.createErr != nil {
		return m.createErr
	}
	if m.nextID == 0 {
		m.nextID = 1
	}
	payment.ID = m.nextID
	payment.VerificationStatus = models.VerificationPending
	m.created = payment
	if m.payments == nil {
		m.payments = make(map[int64]models.PaymentDetail)
	}
	m.payments[payment.ID] = models.PaymentDetail{Payment: *payment}
	return nil
}

func (m *mockPaymentRepo) FindByID(ctx context.Context, id int64) (*models.Payment, error) {
	if d, ok := m.payments[id]; ok {
		p := d.Payment
		return &p, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockPaymentRepo) FindDetailByID(ctx context.Context, id int64) (*models.PaymentDetail, error) {
	if d, ok := m.payments[id]; ok {
		return &d, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockPaymentRepo) Verify(ctx context.Context, id int64, status models.VerificationStatus, rejectionReason *string) error {
	if m.verifyErr != nil {
		return m.verifyErr
	}
	d, ok := m.payments[id]
	if !ok {
		return sql.ErrNoRows
	}
	if m.verified == nil {
		m.verified = make(map[int64]models.VerificationStatus)
	}
	m.verified[id] = status
	d.VerificationStatus = status
	d.RejectionReason = rejectionReason
	m.payments[id] = d
	return nil
}

func (m *mockPaymentRepo) List(ctx context.Context, filter models.PaymentFilter) ([]models.PaymentDetail, int, error) {
	var list []models.PaymentDetail
	for _, d := range m.payments {
		list = append(list, d)
	}
	return list, len(list), nil
}

func (m *mockPaymentRepo) Summary(ctx context.Context, filter models.PaymentFilter) (*models.PaymentSummary, error) {
	return &models.PaymentSummary{}, nil
}

type proofStorageStub struct {
	saved   []string
	deleted []string
}

func (m *proofStorageStub) SaveStream(filename string, r io.Reader) (string, error) {
	m.saved = append(m.saved, filename)
	return filename, nil
}

func (m *proofStorageStub) Delete(filename string) error {
	m.deleted = append(m.deleted, filename)
	return nil
}

func paymentRegistrationDetail(id int64) *models.RegistrationDetail {
	return &models.RegistrationDetail{
		Registration: models.Registration{ID: id, StudentID: 5, CourseID: 3, PaymentStatus: models.PaymentStatusPending},
		StudentName:  "Rahim Uddin",
		CourseTitle:  "Bengali Sweets Masterclass",
		CoursePrice:  5500,
	}
}

func newPaymentServiceForTest(repo *mockPaymentRepo, storage *proofStorageStub) *PaymentService {
	registrations := &mockCertRegistrationReader{details: map[int64]*models.RegistrationDetail{42: paymentRegistrationDetail(42)}}
	students := &mockStudentResolver{byUserID: map[int64]*models.Student{10: {ID: 5, UserID: 10}}}
	return NewPaymentService(repo, registrations, students, storage, nil, &mockAuditWriter{}, nil, "payments/proofs", 5<<20, validator.New(), zap.NewNop())
}

func TestPaymentServiceSubmit(t *testing.T) {
	repo := &mockPaymentRepo{nextID: 7}
	storage := &proofStorageStub{}
	svc := newPaymentServiceForTest(repo, storage)

	payment, err := svc.Submit(context.Background(), studentClaims(10), SubmitPaymentRequest{
		RegistrationID: 42,
		PaymentMethod:  models.PaymentMethodBkash,
		TransactionID:  "TXN-001",
		PaymentDate:    "2026-02-01",
	}, &ProofUpload{Filename: "receipt.jpg", Size: 1024, Reader: strings.NewReader("fake image")})
	require.NoError(t, err)
	assert.Equal(t, int64(42), payment.RegistrationID)
	assert.Equal(t, 5500.0, payment.Amount)
	assert.Equal(t, models.VerificationPending, payment.VerificationStatus)
	require.NotNil(t, payment.PaymentProof)
	assert.True(t, strings.HasPrefix(*payment.PaymentProof, "payments/proofs/"))
	assert.True(t, strings.HasSuffix(*payment.PaymentProof, ".jpg"))
	require.Len(t, storage.saved, 1)
}

func TestPaymentServiceSubmitAmountIgnoresClientInput(t *testing.T) {
	repo := &mockPaymentRepo{}
	svc := newPaymentServiceForTest(repo, &proofStorageStub{})

	payment, err := svc.Submit(context.Background(), studentClaims(10), SubmitPaymentRequest{
		RegistrationID: 42,
		PaymentMethod:  models.PaymentMethodCash,
		TransactionID:  "TXN-002",
		PaymentDate:    "2026-02-01",
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, 5500.0, payment.Amount)
	assert.Nil(t, payment.PaymentProof)
}

func TestPaymentServiceSubmitDuplicateTransactionCleansProof(t *testing.T) {
	repo := &mockPaymentRepo{createErr: repository.ErrDuplicateTransaction}
	storage := &proofStorageStub{}
	svc := newPaymentServiceForTest(repo, storage)

	_, err := svc.Submit(context.Background(), studentClaims(10), SubmitPaymentRequest{
		RegistrationID: 42,
		PaymentMethod:  models.PaymentMethodBkash,
		TransactionID:  "TXN-001",
		PaymentDate:    "2026-02-01",
	}, &ProofUpload{Filename: "receipt.png", Size: 1024, Reader: strings.NewReader("fake image")})
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
	assert.Equal(t, "transaction id already used", appErr.Message)
	require.Len(t, storage.deleted, 1)
	assert.Equal(t, storage.saved[0], storage.deleted[0])
}

func TestPaymentServiceSubmitRejectsBadProof(t *testing.T) {
	svc := newPaymentServiceForTest(&mockPaymentRepo{}, &proofStorageStub{})

	_, err := svc.Submit(context.Background(), studentClaims(10), SubmitPaymentRequest{
		RegistrationID: 42,
		PaymentMethod:  models.PaymentMethodBkash,
		TransactionID:  "TXN-003",
		PaymentDate:    "2026-02-01",
	}, &ProofUpload{Filename: "receipt.pdf", Size: 1024, Reader: strings.NewReader("not an image")})
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)

	_, err = svc.Submit(context.Background(), studentClaims(10), SubmitPaymentRequest{
		RegistrationID: 42,
		PaymentMethod:  models.PaymentMethodBkash,
		TransactionID:  "TXN-004",
		PaymentDate:    "2026-02-01",
	}, &ProofUpload{Filename: "receipt.jpg", Size: 20 << 20, Reader: strings.NewReader("huge")})
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestPaymentServiceSubmitNotOwner(t *testing.T) {
	svc := newPaymentServiceForTest(&mockPaymentRepo{}, &proofStorageStub{})

	_, err := svc.Submit(context.Background(), studentClaims(99), SubmitPaymentRequest{
		RegistrationID: 42,
		PaymentMethod:  models.PaymentMethodBkash,
		TransactionID:  "TXN-005",
		PaymentDate:    "2026-02-01",
	}, nil)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
}

func TestPaymentServiceVerify(t *testing.T) {
	repo := &mockPaymentRepo{payments: map[int64]models.PaymentDetail{
		7: {Payment: models.Payment{ID: 7, RegistrationID: 42, VerificationStatus: models.VerificationPending}},
	}}
	svc := newPaymentServiceForTest(repo, &proofStorageStub{})

	detail, err := svc.Verify(context.Background(), adminClaims(1), 7, VerifyPaymentRequest{Status: models.VerificationVerified})
	require.NoError(t, err)
	assert.Equal(t, models.VerificationVerified, detail.VerificationStatus)
	assert.Equal(t, models.VerificationVerified, repo.verified[7])
}

func TestPaymentServiceVerifyRejectedRequiresReason(t *testing.T) {
	repo := &mockPaymentRepo{payments: map[int64]models.PaymentDetail{
		7: {Payment: models.Payment{ID: 7, VerificationStatus: models.VerificationPending}},
	}}
	svc := newPaymentServiceForTest(repo, &proofStorageStub{})

	_, err := svc.Verify(context.Background(), adminClaims(1), 7, VerifyPaymentRequest{Status: models.VerificationRejected})
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	assert.Contains(t, appErr.Fields, "rejection_reason")

	reason := "transaction id not found in statement"
	detail, err := svc.Verify(context.Background(), adminClaims(1), 7, VerifyPaymentRequest{Status: models.VerificationRejected, RejectionReason: &reason})
	require.NoError(t, err)
	assert.Equal(t, models.VerificationRejected, detail.VerificationStatus)
	require.NotNil(t, detail.RejectionReason)
	assert.Equal(t, reason, *detail.RejectionReason)
}

func TestPaymentServiceVerifyTerminalRefused(t *testing.T) {
	repo := &mockPaymentRepo{payments: map[int64]models.PaymentDetail{
		7: {Payment: models.Payment{ID: 7, VerificationStatus: models.VerificationVerified}},
	}}
	svc := newPaymentServiceForTest(repo, &proofStorageStub{})

	_, err := svc.Verify(context.Background(), adminClaims(1), 7, VerifyPaymentRequest{Status: models.VerificationVerified})
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
	assert.Equal(t, "payment already verified", appErr.Message)
	assert.Empty(t, repo.verified)
}

func TestPaymentServiceVerifyLostRaceMapsToConflict(t *testing.T) {
	// The detail read sees pending but another verifier commits first.
	repo := &mockPaymentRepo{
		payments: map[int64]models.PaymentDetail{
			7: {Payment: models.Payment{ID: 7, RegistrationID: 42, VerificationStatus: models.VerificationPending}},
		},
		verifyErr: repository.ErrPaymentTerminal,
	}
	svc := newPaymentServiceForTest(repo, &proofStorageStub{})

	_, err := svc.Verify(context.Background(), adminClaims(1), 7, VerifyPaymentRequest{Status: models.VerificationVerified})
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
	assert.Equal(t, "payment already verified or rejected", appErr.Message)
}

func TestPaymentServiceReportCSV(t *testing.T) {
	repo := &mockPaymentRepo{payments: map[int64]models.PaymentDetail{
		7: {
			Payment: models.Payment{
				ID:                 7,
				Amount:             5500,
				PaymentMethod:      models.PaymentMethodBkash,
				TransactionID:      "TXN-001",
				PaymentDate:        time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
				VerificationStatus: models.VerificationVerified,
			},
			StudentName: "Rahim Uddin",
			CourseTitle: "Bengali Sweets Masterclass",
		},
	}}
	svc := newPaymentServiceForTest(repo, &proofStorageStub{})

	data, err := svc.ReportCSV(context.Background(), models.PaymentFilter{})
	require.NoError(t, err)
	csv := string(data)
	assert.Contains(t, csv, "payment_id,student,course,amount,method,transaction_id,payment_date,status")
	assert.Contains(t, csv, "TXN-001")
	assert.Contains(t, csv, "5500.00")
	assert.Contains(t, csv, "2026-02-01")
}
