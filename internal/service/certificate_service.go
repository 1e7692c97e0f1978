package service

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"path"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/culinaryhub/culinary-school-api/internal/models"
	"github.com/culinaryhub/culinary-school-api/internal/repository"
	appErrors "github.com/culinaryhub/culinary-school-api/pkg/errors"
	"github.com/culinaryhub/culinary-school-api/pkg/export"
)

type certificateRepository interface {
	Issue(ctx context.Context, cert *models.Certificate) error
	FindByID(ctx context.Context, id int64) (*models.Certificate, error)
	FindByRegistrationID(ctx context.Context, registrationID int64) (*models.Certificate, error)
	FindByNumber(ctx context.Context, number string) (*models.Certificate, error)
	UpdatePDFPath(ctx context.Context, id int64, path string) error
}

type certificateRegistrationReader interface {
	FindDetailByID(ctx context.Context, id int64) (*models.RegistrationDetail, error)
}

type pdfStorage interface {
	Save(filename string, data []byte) (string, error)
}

// CertificateService issues and verifies completion certificates. Issuance
// preconditions are checked in a fixed order: course completion, then
// payment, then absence of a prior certificate.
type CertificateService struct {
	repo          certificateRepository
	registrations certificateRegistrationReader
	students      studentResolver
	audit         auditWriter
	renderer      *export.CertificatePDF
	storage       pdfStorage
	pdfSubdir     string
	validator     *validator.Validate
	logger        *zap.Logger
}

// NewCertificateService constructs CertificateService.
func NewCertificateService(repo certificateRepository, registrations certificateRegistrationReader, students studentResolver, audit auditWriter, storage pdfStorage, validate *validator.Validate, logger *zap.Logger) *CertificateService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CertificateService{
		repo:          repo,
		registrations: registrations,
		students:      students,
		audit:         audit,
		renderer:      export.NewCertificatePDF(),
		storage:       storage,
		pdfSubdir:     "certificates",
		validator:     validate,
		logger:        logger,
	}
}

// Generate issues a certificate for a completed, paid registration. When a
// certificate already exists the conflict carries the existing record.
func (s *CertificateService) Generate(ctx context.Context, actor *models.JWTClaims, registrationID int64) (*models.Certificate, error) {
	registration, err := s.registrations.FindDetailByID(ctx, registrationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "registration not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load registration")
	}

	if registration.CourseStatus != models.CourseStatusCompleted {
		return nil, appErrors.Clone(appErrors.ErrConflict, "course is not completed yet")
	}
	if registration.PaymentStatus != models.PaymentStatusCompleted {
		return nil, appErrors.Clone(appErrors.ErrConflict, "payment is not completed")
	}
	if existing, err := s.repo.FindByRegistrationID(ctx, registrationID); err == nil {
		return nil, appErrors.NewConflictWithData("certificate already issued", existing)
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing certificate")
	}

	issueDate := time.Now().UTC()
	cert := &models.Certificate{
		RegistrationID:    registrationID,
		CertificateNumber: CertificateNumber(issueDate.Year(), registrationID),
		IssueDate:         issueDate,
		DigitalSignature:  CertificateSignature(registrationID, CertificateNumber(issueDate.Year(), registrationID), issueDate),
	}

	if err := s.repo.Issue(ctx, cert); err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, appErrors.Clone(appErrors.ErrNotFound, "registration not found")
		case errors.Is(err, repository.ErrCertificateExists):
			existing, findErr := s.repo.FindByRegistrationID(ctx, registrationID)
			if findErr == nil {
				return nil, appErrors.NewConflictWithData("certificate already issued", existing)
			}
			return nil, appErrors.Clone(appErrors.ErrConflict, "certificate already issued")
		default:
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to issue certificate")
		}
	}

	s.renderPDF(ctx, cert, registration)

	if s.audit != nil {
		if err := s.audit.Create(ctx, &models.AuditLog{
			UserID:     &actor.UserID,
			Action:     models.AuditActionIssueCertificate,
			Resource:   "certificate",
			ResourceID: &cert.ID,
			Detail:     []byte(fmt.Sprintf(`{"certificate_number":%q}`, cert.CertificateNumber)),
		}); err != nil {
			s.logger.Warn("failed to record certificate audit log", zap.Error(err))
		}
	}
	return cert, nil
}

// Verify resolves a certificate by its public number. Unknown numbers yield
// NotFound rather than a negative payload.
func (s *CertificateService) Verify(ctx context.Context, number string) (*models.CertificateVerification, error) {
	cert, err := s.repo.FindByNumber(ctx, number)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "certificate not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load certificate")
	}

	registration, err := s.registrations.FindDetailByID(ctx, cert.RegistrationID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load registration")
	}

	return &models.CertificateVerification{
		IsValid:           true,
		CertificateNumber: cert.CertificateNumber,
		IssueDate:         cert.IssueDate,
		StudentName:       registration.StudentName,
		CourseName:        registration.CourseTitle,
		CoursePeriod:      coursePeriod(registration.CourseStartDate, registration.CourseEndDate),
	}, nil
}

// Get returns a certificate by ID. Students may only read their own.
func (s *CertificateService) Get(ctx context.Context, actor *models.JWTClaims, id int64) (*models.Certificate, error) {
	cert, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "certificate not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load certificate")
	}

	if !actor.Role.Can(models.CapCertificatesView) {
		registration, err := s.registrations.FindDetailByID(ctx, cert.RegistrationID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load registration")
		}
		student, err := s.students.FindByUserID(ctx, actor.UserID)
		if err != nil || student.ID != registration.StudentID {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "")
		}
	}
	return cert, nil
}

// renderPDF writes the certificate PDF after the issue transaction has
// committed. Rendering failure does not undo issuance; the path stays empty
// and can be regenerated.
func (s *CertificateService) renderPDF(ctx context.Context, cert *models.Certificate, registration *models.RegistrationDetail) {
	if s.storage == nil {
		return
	}
	data, err := s.renderer.Render(export.CertificateData{
		CertificateNumber: cert.CertificateNumber,
		StudentName:       registration.StudentName,
		CourseTitle:       registration.CourseTitle,
		CoursePeriod:      coursePeriod(registration.CourseStartDate, registration.CourseEndDate),
		IssueDate:         cert.IssueDate,
	})
	if err != nil {
		s.logger.Warn("failed to render certificate pdf", zap.Int64("certificate_id", cert.ID), zap.Error(err))
		return
	}
	name := path.Join(s.pdfSubdir, cert.CertificateNumber+".pdf")
	stored, err := s.storage.Save(name, data)
	if err != nil {
		s.logger.Warn("failed to store certificate pdf", zap.Int64("certificate_id", cert.ID), zap.Error(err))
		return
	}
	if err := s.repo.UpdatePDFPath(ctx, cert.ID, stored); err != nil {
		s.logger.Warn("failed to record certificate pdf path", zap.Int64("certificate_id", cert.ID), zap.Error(err))
		return
	}
	cert.PDFPath = &stored
}

// CertificateNumber builds the public certificate number for a registration.
func CertificateNumber(year int, registrationID int64) string {
	return fmt.Sprintf("CERT-%d-%05d", year, registrationID)
}

// CertificateSignature derives the tamper-evident signature embedded in a
// certificate. It binds the registration, the number, and the issue instant.
func CertificateSignature(registrationID int64, number string, issuedAt time.Time) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%d|%s|%d", registrationID, number, issuedAt.Unix())))
	return hex.EncodeToString(sum[:])
}

func coursePeriod(start, end time.Time) string {
	return fmt.Sprintf("%s - %s", start.Format("2 Jan 2006"), end.Format("2 Jan 2006"))
}
