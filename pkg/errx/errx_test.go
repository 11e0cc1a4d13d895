package errx

import (
	"errors"
	"net/http"
	"testing"
)

func TestRegistryCodes(t *testing.T) {
	reg := NewRegistry("TEST")
	code := reg.Register("SOMETHING_BROKE", TypeInternal, http.StatusServiceUnavailable, "Something broke")

	if code != "TEST_SOMETHING_BROKE" {
		t.Errorf("registered code = %q", code)
	}

	e := reg.New(code)
	if e.Code != code || e.Type != TypeInternal || e.HTTPStatus != http.StatusServiceUnavailable {
		t.Errorf("built error = %+v", e)
	}
	if e.Message != "Something broke" {
		t.Errorf("message = %q", e.Message)
	}
}

func TestRegistryUnknownCode(t *testing.T) {
	reg := NewRegistry("TEST")

	e := reg.New("TEST_NEVER_REGISTERED")
	if e.HTTPStatus != http.StatusInternalServerError || e.Type != TypeInternal {
		t.Errorf("unknown code must fall back to internal, got %+v", e)
	}
}

func TestNewWithCauseUnwraps(t *testing.T) {
	reg := NewRegistry("TEST")
	code := reg.Register("WRAPPED", TypeExternal, http.StatusBadGateway, "Upstream failed")

	cause := errors.New("connection refused")
	e := reg.NewWithCause(code, cause)

	if !errors.Is(e, cause) {
		t.Error("wrapped error must unwrap to its cause")
	}
}

func TestDefaultStatusPerType(t *testing.T) {
	tests := []struct {
		errType ErrorType
		status  int
	}{
		{TypeValidation, http.StatusBadRequest},
		{TypeAuthentication, http.StatusUnauthorized},
		{TypeAuthorization, http.StatusForbidden},
		{TypeNotFound, http.StatusNotFound},
		{TypeConflict, http.StatusConflict},
		{TypeRateLimit, http.StatusTooManyRequests},
		{TypeExternal, http.StatusBadGateway},
		{TypeInternal, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		if e := New("boom", tt.errType); e.HTTPStatus != tt.status {
			t.Errorf("New(%s).HTTPStatus = %d, want %d", tt.errType, e.HTTPStatus, tt.status)
		}
	}
}

func TestWithDetailAndIsType(t *testing.T) {
	e := New("invalid", TypeValidation).WithDetail("field", "prompt")

	if e.Details["field"] != "prompt" {
		t.Errorf("details = %v", e.Details)
	}
	if !IsType(e, TypeValidation) {
		t.Error("IsType must match the error's type")
	}
	if IsType(errors.New("plain"), TypeValidation) {
		t.Error("IsType must reject non-errx errors")
	}
}
