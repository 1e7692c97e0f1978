package service

import (
	"context"
	"database/sql"
	"encoding/json"
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
	"github.com/culinaryhub/culinary-school-api/pkg/export"
	"github.com/culinaryhub/culinary-school-api/pkg/jobs"
)

type paymentRepository interface {
	Create(ctx context.Context, payment *models.Payment) error
	FindByID(ctx context.Context, id int64) (*models.Payment, error)
	FindDetailByID(ctx context.Context, id int64) (*models.PaymentDetail, error)
	Verify(ctx context.Context, id int64, status models.VerificationStatus, rejectionReason *string) error
	List(ctx context.Context, filter models.PaymentFilter) ([]models.PaymentDetail, int, error)
	Summary(ctx context.Context, filter models.PaymentFilter) (*models.PaymentSummary, error)
}

type paymentRegistrationReader interface {
	FindDetailByID(ctx context.Context, id int64) (*models.RegistrationDetail, error)
}

type proofStorage interface {
	SaveStream(filename string, r io.Reader) (string, error)
	Delete(filename string) error
}

type proofURLSigner interface {
	Generate(resourceID, relPath string) (string, time.Time, error)
}

// SubmitPaymentRequest carries student-supplied payment evidence. The amount
// is never taken from this payload.
type SubmitPaymentRequest struct {
	RegistrationID int64  `json:"registration_id" validate:"required,gt=0"`
	PaymentMethod  string `json:"payment_method" validate:"required,oneof=bkash bank-transfer cash"`
	TransactionID  string `json:"transaction_id" validate:"required,max=100"`
	PaymentDate    string `json:"payment_date" validate:"required,datetime=2006-01-02"`
}

// ProofUpload describes the uploaded proof file stream.
type ProofUpload struct {
	Filename string
	Size     int64
	Reader   io.Reader
}

// VerifyPaymentRequest records the manual verification decision.
type VerifyPaymentRequest struct {
	Status          models.VerificationStatus `json:"status" validate:"required,oneof=verified rejected"`
	RejectionReason *string                   `json:"rejection_reason" validate:"omitempty,max=500"`
}

// WebhookEvent is a raw payment gateway notification accepted for async
// processing.
type WebhookEvent struct {
	Provider string          `json:"provider"`
	Payload  json.RawMessage `json:"payload"`
}

// PaymentService implements the manual bKash-style payment workflow:
// students submit transaction evidence, staff verify it.
type PaymentService struct {
	repo          paymentRepository
	registrations paymentRegistrationReader
	students      studentResolver
	storage       proofStorage
	signer        proofURLSigner
	audit         auditWriter
	exporter      *export.CSVExporter
	webhookQueue  *jobs.Queue
	proofSubdir   string
	maxProofSize  int64
	validator     *validator.Validate
	logger        *zap.Logger
}

// NewPaymentService constructs PaymentService.
func NewPaymentService(repo paymentRepository, registrations paymentRegistrationReader, students studentResolver, storage proofStorage, signer proofURLSigner, audit auditWriter, webhookQueue *jobs.Queue, proofSubdir string, maxProofSize int64, validate *validator.Validate, logger *zap.Logger) *PaymentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if proofSubdir == "" {
		proofSubdir = "payments/proofs"
	}
	if maxProofSize <= 0 {
		maxProofSize = 5 << 20
	}
	return &PaymentService{
		repo:          repo,
		registrations: registrations,
		students:      students,
		storage:       storage,
		signer:        signer,
		audit:         audit,
		exporter:      export.NewCSVExporter(),
		webhookQueue:  webhookQueue,
		proofSubdir:   proofSubdir,
		maxProofSize:  maxProofSize,
		validator:     validate,
		logger:        logger,
	}
}

// SetWebhookQueue attaches the intake queue after construction. The queue
// handler closes over the service, so the two cannot be built in one step.
func (s *PaymentService) SetWebhookQueue(q *jobs.Queue) {
	s.webhookQueue = q
}

// Submit records a pending payment for a registration. The proof upload is
// optional; when present it is stored before the insert and removed again if
// the insert fails.
func (s *PaymentService) Submit(ctx context.Context, actor *models.JWTClaims, req SubmitPaymentRequest, proof *ProofUpload) (*models.Payment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payment payload")
	}

	registration, err := s.registrations.FindDetailByID(ctx, req.RegistrationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "registration not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load registration")
	}

	if !actor.Role.Can(models.CapPaymentsView) {
		student, err := s.students.FindByUserID(ctx, actor.UserID)
		if err != nil || student.ID != registration.StudentID {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "")
		}
	}

	paymentDate, err := time.Parse("2006-01-02", req.PaymentDate)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid payment date")
	}

	var proofPath *string
	if proof != nil {
		stored, err := s.storeProof(proof)
		if err != nil {
			return nil, err
		}
		proofPath = &stored
	}

	payment := &models.Payment{
		RegistrationID: registration.ID,
		Amount:         registration.CoursePrice,
		PaymentMethod:  req.PaymentMethod,
		TransactionID:  strings.TrimSpace(req.TransactionID),
		PaymentDate:    paymentDate,
		PaymentProof:   proofPath,
	}
	if err := s.repo.Create(ctx, payment); err != nil {
		if proofPath != nil {
			if cleanupErr := s.storage.Delete(*proofPath); cleanupErr != nil {
				s.logger.Warn("failed to remove orphaned proof", zap.String("path", *proofPath), zap.Error(cleanupErr))
			}
		}
		if errors.Is(err, repository.ErrDuplicateTransaction) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "transaction id already used")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record payment")
	}
	return payment, nil
}

// Verify records the staff decision on a pending payment. Verified and
// rejected are terminal; a second decision is refused.
func (s *PaymentService) Verify(ctx context.Context, actor *models.JWTClaims, paymentID int64, req VerifyPaymentRequest) (*models.PaymentDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid verification payload")
	}
	if req.Status == models.VerificationRejected && (req.RejectionReason == nil || strings.TrimSpace(*req.RejectionReason) == "") {
		return nil, appErrors.WithFields(
			appErrors.Clone(appErrors.ErrValidation, "rejection reason required"),
			map[string]string{"rejection_reason": "required when rejecting"})
	}

	payment, err := s.repo.FindByID(ctx, paymentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "payment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load payment")
	}
	if payment.IsTerminal() {
		return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("payment already %s", payment.VerificationStatus))
	}

	if err := s.repo.Verify(ctx, paymentID, req.Status, req.RejectionReason); err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, appErrors.Clone(appErrors.ErrNotFound, "payment not found")
		case errors.Is(err, repository.ErrPaymentTerminal):
			return nil, appErrors.Clone(appErrors.ErrConflict, "payment already verified or rejected")
		default:
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to verify payment")
		}
	}

	if s.audit != nil {
		detail, _ := json.Marshal(map[string]interface{}{"status": req.Status, "rejection_reason": req.RejectionReason})
		if err := s.audit.Create(ctx, &models.AuditLog{
			UserID:     &actor.UserID,
			Action:     models.AuditActionVerifyPayment,
			Resource:   "payment",
			ResourceID: &paymentID,
			Detail:     detail,
		}); err != nil {
			s.logger.Warn("failed to record payment audit log", zap.Error(err))
		}
	}

	return s.getDetail(ctx, paymentID)
}

// Get returns a payment with context. Students may only read their own
// payments; the proof path is replaced with a signed download token.
func (s *PaymentService) Get(ctx context.Context, actor *models.JWTClaims, paymentID int64) (*models.PaymentDetail, error) {
	detail, err := s.getDetail(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	if !actor.Role.Can(models.CapPaymentsView) {
		student, err := s.students.FindByUserID(ctx, actor.UserID)
		if err != nil || student.ID != detail.StudentID {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "")
		}
	}

	if detail.PaymentProof != nil && s.signer != nil {
		token, _, err := s.signer.Generate(fmt.Sprintf("payment-%d", detail.ID), *detail.PaymentProof)
		if err != nil {
			s.logger.Warn("failed to sign proof url", zap.Int64("payment_id", detail.ID), zap.Error(err))
		} else {
			detail.PaymentProof = &token
		}
	}
	return detail, nil
}

// Report lists payments with totals per verification status.
func (s *PaymentService) Report(ctx context.Context, filter models.PaymentFilter) ([]models.PaymentDetail, *models.PaymentSummary, *models.Pagination, error) {
	payments, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list payments")
	}
	summary, err := s.repo.Summary(ctx, filter)
	if err != nil {
		return nil, nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to summarise payments")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 15
	}
	return payments, summary, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// ReportCSV renders the payment report as CSV bytes.
func (s *PaymentService) ReportCSV(ctx context.Context, filter models.PaymentFilter) ([]byte, error) {
	filter.Page = 1
	filter.PageSize = 100
	payments, _, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list payments")
	}

	dataset := export.Dataset{
		Headers: []string{"payment_id", "student", "course", "amount", "method", "transaction_id", "payment_date", "status"},
	}
	for _, p := range payments {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"payment_id":     fmt.Sprintf("%d", p.ID),
			"student":        p.StudentName,
			"course":         p.CourseTitle,
			"amount":         fmt.Sprintf("%.2f", p.Amount),
			"method":         p.PaymentMethod,
			"transaction_id": p.TransactionID,
			"payment_date":   p.PaymentDate.Format("2006-01-02"),
			"status":         string(p.VerificationStatus),
		})
	}
	data, err := s.exporter.Render(dataset)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
	}
	return data, nil
}

// AcceptWebhook enqueues a gateway notification for background processing.
func (s *PaymentService) AcceptWebhook(event WebhookEvent) error {
	if s.webhookQueue == nil {
		return appErrors.Clone(appErrors.ErrInternal, "webhook intake unavailable")
	}
	job := jobs.Job{
		ID:      uuid.NewString(),
		Type:    "payment-webhook",
		Payload: event,
	}
	if err := s.webhookQueue.Enqueue(job); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue webhook")
	}
	return nil
}

// HandleWebhookJob is the queue handler for gateway notifications. The
// manual verification flow remains authoritative; the event is logged for
// reconciliation.
func (s *PaymentService) HandleWebhookJob(ctx context.Context, job jobs.Job) error {
	event, ok := job.Payload.(WebhookEvent)
	if !ok {
		return fmt.Errorf("unexpected webhook payload type %T", job.Payload)
	}
	s.logger.Info("payment webhook received",
		zap.String("job_id", job.ID),
		zap.String("provider", event.Provider),
		zap.Int("payload_bytes", len(event.Payload)))
	return nil
}

func (s *PaymentService) storeProof(proof *ProofUpload) (string, error) {
	if proof.Size > s.maxProofSize {
		return "", appErrors.Clone(appErrors.ErrValidation, "proof file too large")
	}
	ext := strings.ToLower(path.Ext(proof.Filename))
	if ext != ".jpg" && ext != ".jpeg" && ext != ".png" {
		return "", appErrors.Clone(appErrors.ErrValidation, "proof must be a jpeg or png image")
	}
	name := path.Join(s.proofSubdir, uuid.NewString()+ext)
	stored, err := s.storage.SaveStream(name, io.LimitReader(proof.Reader, s.maxProofSize))
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store proof")
	}
	return stored, nil
}

func (s *PaymentService) getDetail(ctx context.Context, id int64) (*models.PaymentDetail, error) {
	detail, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "payment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load payment")
	}
	return detail, nil
}
