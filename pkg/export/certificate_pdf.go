package export

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// CertificateData carries the fields printed on a completion certificate.
type CertificateData struct {
	CertificateNumber string
	StudentName       string
	CourseTitle       string
	CoursePeriod      string
	IssueDate         time.Time
}

// CertificatePDF renders course completion certificates. The layout is
// intentionally plain; branding belongs to a template pass later.
type CertificatePDF struct{}

// NewCertificatePDF constructs a certificate renderer.
func NewCertificatePDF() *CertificatePDF {
	return &CertificatePDF{}
}

// Render produces the PDF bytes for a certificate.
func (e *CertificatePDF) Render(data CertificateData) ([]byte, error) {
	if data.CertificateNumber == "" {
		return nil, fmt.Errorf("certificate number required")
	}

	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(20, 25, 20)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 28)
	pdf.CellFormat(0, 16, "CERTIFICATE OF COMPLETION", "", 1, "C", false, 0, "")
	pdf.Ln(8)

	pdf.SetFont("Arial", "", 13)
	pdf.CellFormat(0, 8, "This certifies that", "", 1, "C", false, 0, "")
	pdf.Ln(2)

	pdf.SetFont("Arial", "B", 20)
	pdf.CellFormat(0, 12, data.StudentName, "", 1, "C", false, 0, "")
	pdf.Ln(2)

	pdf.SetFont("Arial", "", 13)
	pdf.CellFormat(0, 8, "has successfully completed the course", "", 1, "C", false, 0, "")
	pdf.Ln(2)

	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(0, 10, data.CourseTitle, "", 1, "C", false, 0, "")

	pdf.SetFont("Arial", "", 11)
	pdf.CellFormat(0, 8, data.CoursePeriod, "", 1, "C", false, 0, "")
	pdf.Ln(10)

	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(0, 6, fmt.Sprintf("Certificate No: %s", data.CertificateNumber), "", 1, "C", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf("Issued: %s", data.IssueDate.Format("2 January 2006")), "", 1, "C", false, 0, "")

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render certificate pdf: %w", err)
	}
	return buf.Bytes(), nil
}
