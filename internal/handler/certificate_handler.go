package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/culinaryhub/culinary-school-api/internal/service"
	appErrors "github.com/culinaryhub/culinary-school-api/pkg/errors"
	"github.com/culinaryhub/culinary-school-api/pkg/response"
)

// CertificateHandler exposes certificate issuance and public verification.
type CertificateHandler struct {
	certificates *service.CertificateService
}

// NewCertificateHandler constructs CertificateHandler.
func NewCertificateHandler(certificates *service.CertificateService) *CertificateHandler {
	return &CertificateHandler{certificates: certificates}
}

// Generate godoc
// @Summary Issue a certificate for a registration
// @Tags Certificates
// @Produce json
// @Security BearerAuth
// @Param id path int true "Registration ID"
// @Success 201 {object} response.Envelope
// @Router /certificates/generate/{id} [post]
func (h *CertificateHandler) Generate(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	registrationID, err := idParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	cert, err := h.certificates.Generate(c.Request.Context(), claims, registrationID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, "certificate issued", cert)
}

// Verify godoc
// @Summary Verify a certificate by number
// @Tags Certificates
// @Produce json
// @Param number path string true "Certificate number"
// @Success 200 {object} response.Envelope
// @Router /certificates/verify/{number} [get]
func (h *CertificateHandler) Verify(c *gin.Context) {
	number := c.Param("number")
	if number == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "certificate number required"))
		return
	}
	verification, err := h.certificates.Verify(c.Request.Context(), number)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "certificate verified", verification)
}

// Get godoc
// @Summary Get a certificate
// @Tags Certificates
// @Produce json
// @Security BearerAuth
// @Param id path int true "Certificate ID"
// @Success 200 {object} response.Envelope
// @Router /certificates/{id} [get]
func (h *CertificateHandler) Get(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	id, err := idParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	cert, err := h.certificates.Get(c.Request.Context(), claims, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "certificate found", cert)
}
