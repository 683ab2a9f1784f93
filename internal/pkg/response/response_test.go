package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) Response {
	t.Helper()
	var resp Response
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response body: %v", err)
	}
	return resp
}

func TestInternalErrorCarriesMessage(t *testing.T) {
	rec := httptest.NewRecorder()
	InternalError(rec, "failed to join mission")

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected status 500, got %d", rec.Code)
	}
	resp := decodeBody(t, rec)
	if resp.Success {
		t.Error("expected success=false")
	}
	if resp.Error == nil {
		t.Fatal("expected error info")
	}
	if resp.Error.Code != "INTERNAL_ERROR" {
		t.Errorf("expected code INTERNAL_ERROR, got %q", resp.Error.Code)
	}
	if resp.Error.Message != "failed to join mission" {
		t.Errorf("expected handler message to pass through, got %q", resp.Error.Message)
	}
}

func TestUnprocessableEntityUsesCustomCode(t *testing.T) {
	rec := httptest.NewRecorder()
	UnprocessableEntity(rec, "INSUFFICIENT_BALANCE", "insufficient balance")

	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected status 422, got %d", rec.Code)
	}
	resp := decodeBody(t, rec)
	if resp.Error == nil {
		t.Fatal("expected error info")
	}
	if resp.Error.Code != "INSUFFICIENT_BALANCE" {
		t.Errorf("expected code INSUFFICIENT_BALANCE, got %q", resp.Error.Code)
	}
	if resp.Error.Message != "insufficient balance" {
		t.Errorf("unexpected message %q", resp.Error.Message)
	}
}

func TestOKWrapsDataInEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	OK(rec, map[string]int{"balance": 500})

	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}
	resp := decodeBody(t, rec)
	if !resp.Success {
		t.Error("expected success=true")
	}
	if resp.Error != nil {
		t.Errorf("expected no error info, got %+v", resp.Error)
	}
}

func TestWithMetaIncludesPagination(t *testing.T) {
	rec := httptest.NewRecorder()
	WithMeta(rec, []string{"a", "b"}, Meta{Total: 42, Limit: 2, Offset: 0})

	resp := decodeBody(t, rec)
	if resp.Meta == nil {
		t.Fatal("expected meta")
	}
	if resp.Meta.Total != 42 {
		t.Errorf("expected total 42, got %d", resp.Meta.Total)
	}
}
