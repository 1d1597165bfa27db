// Package notification is an in-process engine for patient-facing messages:
// template rendering, an in-memory store with retry, pluggable Email/SMS
// senders, and Echo handlers. Delivery transport is an external collaborator;
// the default senders are no-ops.
package notification

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// Channel is the delivery channel for a notification.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

// Notification statuses.
const (
	StatusPending = "pending"
	StatusSent    = "sent"
	StatusFailed  = "failed"
)

// Notification is a single outbound message.
type Notification struct {
	ID           string            `json:"id"`
	Channel      Channel           `json:"channel"`
	Recipient    string            `json:"recipient"`
	Subject      string            `json:"subject,omitempty"`
	Body         string            `json:"body"`
	TemplateID   string            `json:"template_id,omitempty"`
	TemplateData map[string]string `json:"template_data,omitempty"`
	Status       string            `json:"status"`
	CreatedAt    time.Time         `json:"created_at"`
	SentAt       *time.Time        `json:"sent_at,omitempty"`
	Error        string            `json:"error,omitempty"`
}

// EmailSender delivers email messages.
type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

// SMSSender delivers SMS messages.
type SMSSender interface {
	SendSMS(ctx context.Context, to, body string) error
}

// NoopEmailSender accepts every message without delivering it.
type NoopEmailSender struct{}

func (NoopEmailSender) SendEmail(context.Context, string, string, string) error { return nil }

// NoopSMSSender accepts every message without delivering it.
type NoopSMSSender struct{}

func (NoopSMSSender) SendSMS(context.Context, string, string) error { return nil }

// Template is a reusable message with {{key}} placeholders.
type Template struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	Subject string  `json:"subject"`
	Body    string  `json:"body"`
	Channel Channel `json:"channel"`
}

// Built-in template IDs.
const (
	TemplateAppointmentReminder  = "appointment-reminder"
	TemplateAppointmentCancelled = "appointment-cancelled"
	TemplatePaymentReceipt       = "payment-receipt"
	TemplateInvoiceOverdue       = "invoice-overdue"
)

// TemplateEngine stores templates and renders them with data maps.
type TemplateEngine struct {
	mu        sync.RWMutex
	templates map[string]*Template
}

// NewTemplateEngine creates an engine with the clinic's built-in templates.
func NewTemplateEngine() *TemplateEngine {
	e := &TemplateEngine{templates: make(map[string]*Template)}
	e.registerBuiltIn()
	return e
}

func (e *TemplateEngine) registerBuiltIn() {
	builtIn := []Template{
		{
			ID:      TemplateAppointmentReminder,
			Name:    "Appointment Reminder",
			Subject: "Appointment Reminder for {{patient_name}}",
			Body:    "Dear {{patient_name}}, this is a reminder of your dental appointment on {{date}} at {{time}} with Dr. {{dentist}}.",
			Channel: ChannelSMS,
		},
		{
			ID:      TemplateAppointmentCancelled,
			Name:    "Appointment Cancelled",
			Subject: "Appointment Cancelled",
			Body:    "Dear {{patient_name}}, your appointment on {{date}} at {{time}} has been cancelled. Please contact the clinic to rebook.",
			Channel: ChannelSMS,
		},
		{
			ID:      TemplatePaymentReceipt,
			Name:    "Payment Receipt",
			Subject: "Payment Received - {{amount}}",
			Body:    "Dear {{patient_name}}, we received your payment of {{amount}} via {{method}} on {{date}}. Thank you.",
			Channel: ChannelEmail,
		},
		{
			ID:      TemplateInvoiceOverdue,
			Name:    "Invoice Overdue",
			Subject: "Invoice {{number}} is overdue",
			Body:    "Dear {{patient_name}}, invoice {{number}} with a balance of {{balance}} was due on {{due_date}}. Please settle at your earliest convenience.",
			Channel: ChannelEmail,
		},
	}
	for i := range builtIn {
		t := builtIn[i]
		e.templates[t.ID] = &t
	}
}

// RegisterTemplate adds or replaces a template.
func (e *TemplateEngine) RegisterTemplate(t Template) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.templates[t.ID] = &t
}

// Render performs {{key}} replacement. Placeholders without a matching data
// key are left as-is.
func (e *TemplateEngine) Render(templateID string, data map[string]string) (subject, body string, channel Channel, err error) {
	e.mu.RLock()
	t, ok := e.templates[templateID]
	e.mu.RUnlock()
	if !ok {
		return "", "", "", fmt.Errorf("template %q not found", templateID)
	}
	subject, body = t.Subject, t.Body
	for k, v := range data {
		placeholder := "{{" + k + "}}"
		subject = strings.ReplaceAll(subject, placeholder, v)
		body = strings.ReplaceAll(body, placeholder, v)
	}
	return subject, body, t.Channel, nil
}

// Engine dispatches notifications and keeps them in memory for listing and
// retry.
type Engine struct {
	email     EmailSender
	sms       SMSSender
	templates *TemplateEngine

	mu    sync.RWMutex
	store map[string]*Notification
}

func NewEngine(email EmailSender, sms SMSSender, templates *TemplateEngine) *Engine {
	if email == nil {
		email = NoopEmailSender{}
	}
	if sms == nil {
		sms = NoopSMSSender{}
	}
	return &Engine{
		email:     email,
		sms:       sms,
		templates: templates,
		store:     make(map[string]*Notification),
	}
}

// Send dispatches through the channel's sender and records the outcome.
func (e *Engine) Send(ctx context.Context, n *Notification) error {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	n.CreatedAt = time.Now().UTC()
	n.Status = StatusPending

	sendErr := e.dispatch(ctx, n)
	if sendErr != nil {
		n.Status = StatusFailed
		n.Error = sendErr.Error()
	} else {
		n.Status = StatusSent
		sentAt := time.Now().UTC()
		n.SentAt = &sentAt
	}

	e.mu.Lock()
	e.store[n.ID] = n
	e.mu.Unlock()
	return sendErr
}

// SendFromTemplate renders and sends in one step.
func (e *Engine) SendFromTemplate(ctx context.Context, templateID string, data map[string]string, recipient string) (*Notification, error) {
	subject, body, channel, err := e.templates.Render(templateID, data)
	if err != nil {
		return nil, err
	}
	n := &Notification{
		Channel:      channel,
		Recipient:    recipient,
		Subject:      subject,
		Body:         body,
		TemplateID:   templateID,
		TemplateData: data,
	}
	if err := e.Send(ctx, n); err != nil {
		return n, err
	}
	return n, nil
}

func (e *Engine) dispatch(ctx context.Context, n *Notification) error {
	switch n.Channel {
	case ChannelEmail:
		return e.email.SendEmail(ctx, n.Recipient, n.Subject, n.Body)
	case ChannelSMS:
		return e.sms.SendSMS(ctx, n.Recipient, n.Body)
	default:
		return fmt.Errorf("unsupported channel: %s", n.Channel)
	}
}

// Get retrieves a notification by ID.
func (e *Engine) Get(id string) (*Notification, error) {
	e.mu.RLock()
	n, ok := e.store[id]
	e.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("notification %q not found", id)
	}
	return n, nil
}

// ListByRecipient returns notifications for a recipient, up to limit.
func (e *Engine) ListByRecipient(recipient string, limit int) []*Notification {
	e.mu.RLock()
	defer e.mu.RUnlock()
	var out []*Notification
	for _, n := range e.store {
		if n.Recipient == recipient {
			out = append(out, n)
			if len(out) >= limit {
				break
			}
		}
	}
	return out
}

// Retry re-sends a failed notification. Anything not in failed status is an
// error.
func (e *Engine) Retry(ctx context.Context, id string) error {
	e.mu.RLock()
	n, ok := e.store[id]
	e.mu.RUnlock()
	if !ok {
		return fmt.Errorf("notification %q not found", id)
	}
	if n.Status != StatusFailed {
		return fmt.Errorf("notification %q is not failed (current: %s)", id, n.Status)
	}

	sendErr := e.dispatch(ctx, n)
	e.mu.Lock()
	if sendErr != nil {
		n.Status = StatusFailed
		n.Error = sendErr.Error()
	} else {
		n.Status = StatusSent
		sentAt := time.Now().UTC()
		n.SentAt = &sentAt
		n.Error = ""
	}
	e.mu.Unlock()
	return sendErr
}

// Stats counts notifications by status.
func (e *Engine) Stats() map[string]int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	stats := make(map[string]int)
	for _, n := range e.store {
		stats[n.Status]++
	}
	return stats
}

// Handler exposes the engine over HTTP.
type Handler struct {
	engine *Engine
}

func NewHandler(engine *Engine) *Handler {
	return &Handler{engine: engine}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.POST("/notifications/send", h.Send)
	g.POST("/notifications/send-template", h.SendTemplate)
	g.GET("/notifications/stats", h.Stats)
	g.GET("/notifications/:id", h.Get)
	g.GET("/notifications", h.List)
	g.POST("/notifications/:id/retry", h.Retry)
}

type sendRequest struct {
	Channel   Channel `json:"channel"`
	Recipient string  `json:"recipient"`
	Subject   string  `json:"subject"`
	Body      string  `json:"body"`
}

func (h *Handler) Send(c echo.Context) error {
	var req sendRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	n := &Notification{
		Channel:   req.Channel,
		Recipient: req.Recipient,
		Subject:   req.Subject,
		Body:      req.Body,
	}
	// Failed sends still return the notification so the caller sees the ID
	// and error for a later retry.
	_ = h.engine.Send(c.Request().Context(), n)
	return c.JSON(http.StatusCreated, n)
}

type sendTemplateRequest struct {
	TemplateID string            `json:"template_id"`
	Recipient  string            `json:"recipient"`
	Data       map[string]string `json:"data"`
}

func (h *Handler) SendTemplate(c echo.Context) error {
	var req sendTemplateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	n, err := h.engine.SendFromTemplate(c.Request().Context(), req.TemplateID, req.Data, req.Recipient)
	if err != nil && n == nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, n)
}

func (h *Handler) Get(c echo.Context) error {
	n, err := h.engine.Get(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	return c.JSON(http.StatusOK, n)
}

func (h *Handler) List(c echo.Context) error {
	recipient := c.QueryParam("recipient")
	if recipient == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "recipient query parameter is required")
	}
	return c.JSON(http.StatusOK, h.engine.ListByRecipient(recipient, 100))
}

func (h *Handler) Retry(c echo.Context) error {
	id := c.Param("id")
	if err := h.engine.Retry(c.Request().Context(), id); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	n, _ := h.engine.Get(id)
	return c.JSON(http.StatusOK, n)
}

func (h *Handler) Stats(c echo.Context) error {
	return c.JSON(http.StatusOK, h.engine.Stats())
}
