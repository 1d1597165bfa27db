package payments

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

func newRequestContext(e *echo.Echo, method, target, body string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestHTTPError_Taxonomy(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code int
	}{
		{"validation", validationf("bad input"), http.StatusBadRequest},
		{"overflow", &OverflowError{InvoiceID: uuid.New()}, http.StatusUnprocessableEntity},
		{"already voided", &AlreadyVoidedError{PaymentID: uuid.New()}, http.StatusConflict},
		{"conflict", &ConflictError{Err: fmt.Errorf("balance moved")}, http.StatusConflict},
		{"unknown", fmt.Errorf("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			he, ok := httpError(tc.err).(*echo.HTTPError)
			if !ok {
				t.Fatal("expected *echo.HTTPError")
			}
			if he.Code != tc.code {
				t.Errorf("got status %d, want %d", he.Code, tc.code)
			}
		})
	}
}

func TestHTTPError_ConflictIsRetryable(t *testing.T) {
	he := httpError(&ConflictError{Err: fmt.Errorf("balance moved")}).(*echo.HTTPError)
	body, ok := he.Message.(map[string]interface{})
	if !ok {
		t.Fatal("expected structured conflict body")
	}
	if retryable, _ := body["retryable"].(bool); !retryable {
		t.Error("conflict response must be marked retryable")
	}
}

func TestCreatePaymentHandler(t *testing.T) {
	invoiceRepo := newMockInvoiceRepo()
	paymentRepo := newMockPaymentRepo()
	h := NewHandler(NewService(paymentRepo, invoiceRepo))
	e := echo.New()

	patientID := uuid.New()
	inv := seedInvoice(t, invoiceRepo, patientID, "1000.00", time.Now())

	body := fmt.Sprintf(`{"patient_id":%q,"amount":"600.00","method":"cash","allocations":[{"invoice_id":%q,"amount":"600.00"}]}`,
		patientID, inv.ID)
	c, rec := newRequestContext(e, http.MethodPost, "/api/v1/payments", body)

	if err := h.CreatePayment(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("got status %d, want 201: %s", rec.Code, rec.Body.String())
	}

	var p Payment
	if err := json.Unmarshal(rec.Body.Bytes(), &p); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if len(p.Splits) != 1 || !p.Splits[0].Amount.Equal(amt(t, "600.00")) {
		t.Errorf("unexpected splits in response: %+v", p.Splits)
	}
}

func TestCreatePaymentHandler_IdempotencyReplay(t *testing.T) {
	invoiceRepo := newMockInvoiceRepo()
	paymentRepo := newMockPaymentRepo()
	h := NewHandler(NewService(paymentRepo, invoiceRepo))
	e := echo.New()

	patientID := uuid.New()
	seedInvoice(t, invoiceRepo, patientID, "1000.00", time.Now())

	body := fmt.Sprintf(`{"patient_id":%q,"amount":"200.00","method":"cash"}`, patientID)

	send := func() *httptest.ResponseRecorder {
		c, rec := newRequestContext(e, http.MethodPost, "/api/v1/payments", body)
		c.Request().Header.Set("Idempotency-Key", "retry-777")
		if err := h.CreatePayment(c); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		return rec
	}

	if rec := send(); rec.Code != http.StatusCreated {
		t.Fatalf("first request: got status %d, want 201", rec.Code)
	}
	if rec := send(); rec.Code != http.StatusOK {
		t.Fatalf("replay: got status %d, want 200", rec.Code)
	}
	if paymentRepo.creates != 1 {
		t.Errorf("expected one persisted payment, got %d", paymentRepo.creates)
	}
}

func TestCreatePaymentHandler_Overflow(t *testing.T) {
	invoiceRepo := newMockInvoiceRepo()
	h := NewHandler(NewService(newMockPaymentRepo(), invoiceRepo))
	e := echo.New()

	patientID := uuid.New()
	inv := seedInvoice(t, invoiceRepo, patientID, "300.00", time.Now())

	body := fmt.Sprintf(`{"patient_id":%q,"amount":"400.00","method":"cash","allocations":[{"invoice_id":%q,"amount":"400.00"}]}`,
		patientID, inv.ID)
	c, _ := newRequestContext(e, http.MethodPost, "/api/v1/payments", body)

	err := h.CreatePayment(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %v", err)
	}
}

func TestVoidPaymentHandler(t *testing.T) {
	invoiceRepo := newMockInvoiceRepo()
	paymentRepo := newMockPaymentRepo()
	svc := NewService(paymentRepo, invoiceRepo)
	h := NewHandler(svc)
	e := echo.New()

	patientID := uuid.New()
	inv := seedInvoice(t, invoiceRepo, patientID, "500.00", time.Now())

	body := fmt.Sprintf(`{"patient_id":%q,"amount":"500.00","method":"cash","allocations":[{"invoice_id":%q,"amount":"500.00"}]}`,
		patientID, inv.ID)
	c, rec := newRequestContext(e, http.MethodPost, "/api/v1/payments", body)
	if err := h.CreatePayment(c); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	var p Payment
	if err := json.Unmarshal(rec.Body.Bytes(), &p); err != nil {
		t.Fatalf("bad create body: %v", err)
	}

	c, rec = newRequestContext(e, http.MethodPost, "/", `{"reason":"bounced check"}`)
	c.SetPath("/api/v1/payments/:id/void")
	c.SetParamNames("id")
	c.SetParamValues(p.ID.String())
	if err := h.VoidPayment(c); err != nil {
		t.Fatalf("void failed: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d, want 200", rec.Code)
	}

	c, _ = newRequestContext(e, http.MethodPost, "/", `{"reason":"bounced check"}`)
	c.SetPath("/api/v1/payments/:id/void")
	c.SetParamNames("id")
	c.SetParamValues(p.ID.String())
	err := h.VoidPayment(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusConflict {
		t.Fatalf("second void: expected 409, got %v", err)
	}
}

func TestVoidPaymentHandler_MissingReason(t *testing.T) {
	h := NewHandler(NewService(newMockPaymentRepo(), newMockInvoiceRepo()))
	e := echo.New()

	c, _ := newRequestContext(e, http.MethodPost, "/", `{}`)
	c.SetPath("/api/v1/payments/:id/void")
	c.SetParamNames("id")
	c.SetParamValues(uuid.New().String())

	err := h.VoidPayment(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
}

func TestListPaymentsHandler_RequiresFilter(t *testing.T) {
	h := NewHandler(NewService(newMockPaymentRepo(), newMockInvoiceRepo()))
	e := echo.New()

	c, _ := newRequestContext(e, http.MethodGet, "/api/v1/payments", "")
	err := h.ListPayments(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without filter, got %v", err)
	}
}
