package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/dentira/clinic-api/internal/platform/auth"
)

// AuditEntry captures who touched which record, when, from where, and the
// action type. Financial mutations (payments, voids, invoice edits) are the
// main consumers of this trail.
type AuditEntry struct {
	UserID    string
	UserRoles []string
	ClinicID  string
	Resource  string
	RecordID  string
	Action    string // read, create, update, delete, search
	IPAddress string
	UserAgent string
	Path      string
	Method    string
	Timestamp time.Time
	RequestID string
	Status    int
}

// AuditRecorder persists audit entries. The middleware is decoupled from the
// concrete store so tests can provide a mock.
type AuditRecorder interface {
	RecordAccess(entry AuditEntry) error
}

// AuditRecorderFunc is a function adapter for AuditRecorder.
type AuditRecorderFunc func(entry AuditEntry) error

func (f AuditRecorderFunc) RecordAccess(entry AuditEntry) error {
	return f(entry)
}

// Audit intercepts requests under /api/v1/, extracts the authenticated user
// from JWT claims, and logs the access. If no AuditRecorder is provided it
// falls back to structured zerolog output only.
func Audit(logger zerolog.Logger, recorders ...AuditRecorder) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			path := req.URL.Path

			if !strings.HasPrefix(path, "/api/v1/") {
				return next(c)
			}

			// Run the handler first so the response status is known
			err := next(c)

			entry := AuditEntry{
				Timestamp: time.Now().UTC(),
				Path:      path,
				Method:    req.Method,
				IPAddress: c.RealIP(),
				UserAgent: req.UserAgent(),
				Status:    c.Response().Status,
			}

			ctx := req.Context()
			entry.UserID = auth.UserIDFromContext(ctx)
			entry.UserRoles = auth.RolesFromContext(ctx)

			if cid, ok := c.Get("clinic_id").(string); ok {
				entry.ClinicID = cid
			}
			if rid, ok := c.Get("request_id").(string); ok {
				entry.RequestID = rid
			}

			entry.Action = httpMethodToAction(req.Method)
			entry.Resource, entry.RecordID = splitResourcePath(path)

			if len(recorders) > 0 && recorders[0] != nil {
				if recErr := recorders[0].RecordAccess(entry); recErr != nil {
					logger.Error().Err(recErr).
						Str("request_id", entry.RequestID).
						Msg("failed to record audit entry")
				}
			}

			logger.Info().
				Str("type", "audit").
				Str("request_id", entry.RequestID).
				Str("user_id", entry.UserID).
				Strs("user_roles", entry.UserRoles).
				Str("clinic_id", entry.ClinicID).
				Str("resource", entry.Resource).
				Str("record_id", entry.RecordID).
				Str("action", entry.Action).
				Str("method", entry.Method).
				Str("path", entry.Path).
				Str("remote_ip", entry.IPAddress).
				Int("status", entry.Status).
				Msg("record_access")

			return err
		}
	}
}

func httpMethodToAction(method string) string {
	switch method {
	case http.MethodGet, http.MethodHead:
		return "read"
	case http.MethodPost:
		return "create"
	case http.MethodPut, http.MethodPatch:
		return "update"
	case http.MethodDelete:
		return "delete"
	default:
		return "read"
	}
}

// splitResourcePath parses "/api/v1/payments/<uuid>/void" into ("payments", "<uuid>").
// Non-UUID second segments (like "auto-allocate") are not record IDs.
func splitResourcePath(path string) (resource, recordID string) {
	segments := strings.Split(strings.TrimPrefix(path, "/api/v1/"), "/")
	if len(segments) == 0 || segments[0] == "" {
		return "unknown", ""
	}
	resource = segments[0]
	if len(segments) > 1 {
		if _, err := uuid.Parse(segments[1]); err == nil {
			recordID = segments[1]
		}
	}
	return resource, recordID
}
