package handler

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/culinaryhub/culinary-school-api/internal/models"
	"github.com/culinaryhub/culinary-school-api/internal/service"
	appErrors "github.com/culinaryhub/culinary-school-api/pkg/errors"
	"github.com/culinaryhub/culinary-school-api/pkg/response"
)

// PaymentHandler exposes the manual payment verification workflow.
type PaymentHandler struct {
	payments *service.PaymentService
}

// NewPaymentHandler constructs PaymentHandler.
func NewPaymentHandler(payments *service.PaymentService) *PaymentHandler {
	return &PaymentHandler{payments: payments}
}

// Submit godoc
// @Summary Submit payment evidence
// @Tags Payments
// @Accept mpfd
// @Produce json
// @Security BearerAuth
// @Param registration_id formData int true "Registration ID"
// @Param payment_method formData string true "Payment method"
// @Param transaction_id formData string true "Transaction ID"
// @Param payment_date formData string true "Payment date (YYYY-MM-DD)"
// @Param payment_proof formData file false "Proof image (jpeg/png)"
// @Success 201 {object} response.Envelope
// @Router /payments [post]
func (h *PaymentHandler) Submit(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	registrationID, err := strconv.ParseInt(c.PostForm("registration_id"), 10, 64)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid registration_id"))
		return
	}
	req := service.SubmitPaymentRequest{
		RegistrationID: registrationID,
		PaymentMethod:  c.PostForm("payment_method"),
		TransactionID:  c.PostForm("transaction_id"),
		PaymentDate:    c.PostForm("payment_date"),
	}

	var proof *service.ProofUpload
	if file, err := c.FormFile("payment_proof"); err == nil {
		opened, err := file.Open()
		if err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "failed to read proof upload"))
			return
		}
		defer opened.Close() //nolint:errcheck
		proof = &service.ProofUpload{Filename: file.Filename, Size: file.Size, Reader: opened}
	}

	payment, err := h.payments.Submit(c.Request.Context(), claims, req, proof)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, "payment submitted", payment)
}

// Verify godoc
// @Summary Record a payment verification decision
// @Tags Payments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Payment ID"
// @Param payload body service.VerifyPaymentRequest true "Decision payload"
// @Success 200 {object} response.Envelope
// @Router /payments/{id}/verify [put]
func (h *PaymentHandler) Verify(c *gin.Context) {
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
	var req service.VerifyPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	detail, err := h.payments.Verify(c.Request.Context(), claims, id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "payment decision recorded", detail)
}

// Get godoc
// @Summary Get a payment
// @Tags Payments
// @Produce json
// @Security BearerAuth
// @Param id path int true "Payment ID"
// @Success 200 {object} response.Envelope
// @Router /payments/{id} [get]
func (h *PaymentHandler) Get(c *gin.Context) {
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
	detail, err := h.payments.Get(c.Request.Context(), claims, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "payment found", detail)
}

// Report godoc
// @Summary Payment report with totals
// @Tags Payments
// @Produce json
// @Security BearerAuth
// @Param status query string false "Filter by verification status"
// @Param course_id query int false "Filter by course"
// @Param start_date query string false "Period start (YYYY-MM-DD)"
// @Param end_date query string false "Period end (YYYY-MM-DD)"
// @Param format query string false "Set to csv for CSV export"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /payments/report [get]
func (h *PaymentHandler) Report(c *gin.Context) {
	filter := paymentFilterFromQuery(c)

	if c.Query("format") == "csv" {
		data, err := h.payments.ReportCSV(c.Request.Context(), filter)
		if err != nil {
			response.Error(c, err)
			return
		}
		c.Header("Content-Disposition", `attachment; filename="payment-report.csv"`)
		c.Data(http.StatusOK, "text/csv", data)
		return
	}

	payments, summary, pagination, err := h.payments.Report(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, "payment report", gin.H{
		"payments": payments,
		"summary":  summary,
	}, pagination)
}

// Webhook godoc
// @Summary Accept a payment gateway notification
// @Tags Payments
// @Accept json
// @Produce json
// @Param provider path string true "Gateway provider"
// @Success 202 {object} response.Envelope
// @Router /payments/webhook/{provider} [post]
func (h *PaymentHandler) Webhook(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "failed to read webhook body"))
		return
	}
	event := service.WebhookEvent{Provider: c.Param("provider"), Payload: json.RawMessage(payload)}
	if err := h.payments.AcceptWebhook(event); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusAccepted, "webhook accepted", nil, nil)
}

func paymentFilterFromQuery(c *gin.Context) models.PaymentFilter {
	var filter models.PaymentFilter
	filter.Status = models.VerificationStatus(c.Query("status"))
	if courseID, err := strconv.ParseInt(c.Query("course_id"), 10, 64); err == nil {
		filter.CourseID = courseID
	}
	if start, err := time.Parse("2006-01-02", c.Query("start_date")); err == nil {
		filter.StartDate = &start
	}
	if end, err := time.Parse("2006-01-02", c.Query("end_date")); err == nil {
		filter.EndDate = &end
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "15")); err == nil {
		filter.PageSize = size
	}
	return filter
}
