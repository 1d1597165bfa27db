package payments

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/dentira/clinic-api/internal/platform/auth"
	"github.com/dentira/clinic-api/internal/platform/money"
	"github.com/dentira/clinic-api/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	read := api.Group("", auth.RequireRole("admin", "accountant", "receptionist"))
	read.GET("/payments", h.ListPayments)
	read.GET("/payments/:id", h.GetPayment)

	write := api.Group("", auth.RequireRole("admin", "accountant"))
	write.POST("/payments", h.CreatePayment)
	write.POST("/payments/auto", h.CreatePaymentAuto)
	write.POST("/payments/preview-allocation", h.PreviewAllocation)
	write.POST("/payments/:id/void", h.VoidPayment)
}

// httpError maps the engine's error taxonomy to status codes: bad input is
// 400, per-invoice overflow 422, double void and concurrent conflicts 409.
func httpError(err error) error {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return echo.NewHTTPError(http.StatusBadRequest, ve.Error())
	}
	var oe *OverflowError
	if errors.As(err, &oe) {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, map[string]string{
			"error":      oe.Error(),
			"invoice_id": oe.InvoiceID.String(),
		})
	}
	var ave *AlreadyVoidedError
	if errors.As(err, &ave) {
		return echo.NewHTTPError(http.StatusConflict, ave.Error())
	}
	var ce *ConflictError
	if errors.As(err, &ce) {
		return echo.NewHTTPError(http.StatusConflict, map[string]interface{}{
			"error":     ce.Error(),
			"retryable": true,
		})
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}

func (h *Handler) CreatePayment(c echo.Context) error {
	var in CreatePaymentInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return h.create(c, in)
}

// CreatePaymentAuto always allocates oldest-first across the patient's open
// invoices; explicit splits are not accepted on this route.
func (h *Handler) CreatePaymentAuto(c echo.Context) error {
	var in CreatePaymentInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if len(in.Allocations) > 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "allocations are not accepted on auto-allocation")
	}
	return h.create(c, in)
}

func (h *Handler) create(c echo.Context, in CreatePaymentInput) error {
	if key := c.Request().Header.Get("Idempotency-Key"); key != "" {
		in.IdempotencyKey = key
	}
	in.ReceivedBy = auth.UserIDFromContext(c.Request().Context())

	p, replayed, err := h.svc.CreatePayment(c.Request().Context(), in)
	if err != nil {
		return httpError(err)
	}
	if replayed {
		return c.JSON(http.StatusOK, p)
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) GetPayment(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	p, err := h.svc.GetPayment(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "payment not found")
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) ListPayments(c echo.Context) error {
	pg := pagination.FromContext(c)
	ctx := c.Request().Context()

	if invoiceID := c.QueryParam("invoice_id"); invoiceID != "" {
		iid, err := uuid.Parse(invoiceID)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid invoice_id")
		}
		items, err := h.svc.ListPaymentsByInvoice(ctx, iid)
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		return c.JSON(http.StatusOK, pagination.NewResponse(items, len(items), pg.Limit, pg.Offset))
	}

	patientID := c.QueryParam("patient_id")
	if patientID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "patient_id or invoice_id is required")
	}
	pid, err := uuid.Parse(patientID)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient_id")
	}
	items, total, err := h.svc.ListPaymentsByPatient(ctx, pid, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

type voidRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) VoidPayment(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req voidRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	voidedBy := auth.UserIDFromContext(c.Request().Context())

	p, err := h.svc.VoidPayment(c.Request().Context(), id, req.Reason, voidedBy)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, p)
}

type previewRequest struct {
	PatientID uuid.UUID    `json:"patient_id"`
	Amount    money.Amount `json:"amount"`
}

func (h *Handler) PreviewAllocation(c echo.Context) error {
	var req previewRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	allocations, err := h.svc.PreviewAutoAllocation(c.Request().Context(), req.PatientID, req.Amount)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, allocations)
}
