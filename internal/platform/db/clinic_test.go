package db

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestExtractClinicID_FromHeader(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Clinic-ID", "smile_dental")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	cid := extractClinicID(c, "default")
	if cid != "smile_dental" {
		t.Errorf("expected smile_dental, got %s", cid)
	}
}

func TestExtractClinicID_FromQuery(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/?clinic_id=branch_2", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	cid := extractClinicID(c, "default")
	if cid != "branch_2" {
		t.Errorf("expected branch_2, got %s", cid)
	}
}

func TestExtractClinicID_FromJWT(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set("jwt_clinic_id", "jwt_clinic")

	cid := extractClinicID(c, "default")
	if cid != "jwt_clinic" {
		t.Errorf("expected jwt_clinic, got %s", cid)
	}
}

func TestExtractClinicID_Priority(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/?clinic_id=query", nil)
	req.Header.Set("X-Clinic-ID", "header")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set("jwt_clinic_id", "jwt")

	// JWT claim wins over header, header wins over query
	if cid := extractClinicID(c, "default"); cid != "jwt" {
		t.Errorf("expected jwt, got %s", cid)
	}
}

func TestExtractClinicID_HeaderOverQuery(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/?clinic_id=query_clinic", nil)
	req.Header.Set("X-Clinic-ID", "header_clinic")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if cid := extractClinicID(c, "default"); cid != "header_clinic" {
		t.Errorf("expected header_clinic, got %s", cid)
	}
}

func TestExtractClinicID_Default(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if cid := extractClinicID(c, "default"); cid != "default" {
		t.Errorf("expected default, got %s", cid)
	}
}

func TestClinicIDPattern(t *testing.T) {
	tests := []struct {
		input string
		valid bool
	}{
		{"abc", true},
		{"ABC", true},
		{"clinic_1", true},
		{"branch_abc_123", true},
		{"A1B2", true},
		{"a-b", false},
		{"a.b", false},
		{"a b", false},
		{"'; DROP TABLE", false},
		{"", false},
		{"clinic@1", false},
	}

	for _, tt := range tests {
		got := clinicIDPattern.MatchString(tt.input)
		if got != tt.valid {
			t.Errorf("clinicIDPattern.MatchString(%q) = %v, want %v", tt.input, got, tt.valid)
		}
	}
}

func TestConnFromContext_Nil(t *testing.T) {
	if conn := ConnFromContext(context.Background()); conn != nil {
		t.Error("expected nil conn from empty context")
	}
}

func TestConnFromContext_WrongType(t *testing.T) {
	ctx := context.WithValue(context.Background(), DBConnKey, "not-a-conn")
	if conn := ConnFromContext(ctx); conn != nil {
		t.Error("expected nil when context value is wrong type")
	}
}

func TestClinicFromContext(t *testing.T) {
	ctx := context.WithValue(context.Background(), ClinicIDKey, "test_clinic")
	if cid := ClinicFromContext(ctx); cid != "test_clinic" {
		t.Errorf("expected test_clinic, got %s", cid)
	}

	if cid := ClinicFromContext(context.Background()); cid != "" {
		t.Errorf("expected empty string, got %s", cid)
	}
}

func TestCreateClinicSchema_InvalidID(t *testing.T) {
	invalidIDs := []string{"clinic-with-dash", "clinic.dot", "cli nic", "drop;table"}
	for _, id := range invalidIDs {
		if err := CreateClinicSchema(context.Background(), nil, id, ""); err == nil {
			t.Errorf("expected error for invalid clinic ID %q", id)
		}
	}
}

func TestTxFromContext_Nil(t *testing.T) {
	if tx := TxFromContext(context.Background()); tx != nil {
		t.Error("expected nil tx from empty context")
	}
}

func TestTxFromContext_WrongType(t *testing.T) {
	ctx := context.WithValue(context.Background(), DBTxKey, "not-a-tx")
	if tx := TxFromContext(ctx); tx != nil {
		t.Error("expected nil when context value is wrong type")
	}
}

func TestWithTx_NoConnection(t *testing.T) {
	_, _, err := WithTx(context.Background())
	if err == nil {
		t.Fatal("expected error when no connection in context")
	}
	if err.Error() != "no database connection in context" {
		t.Errorf("unexpected error message: %s", err.Error())
	}
}
