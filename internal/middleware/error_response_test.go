package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fiddo/connect/internal/model"
)

func TestWriteErrorResponse(t *testing.T) {
	rec := httptest.NewRecorder()

	WriteErrorResponse(rec, http.StatusBadGateway, model.NewUpstreamError("clientes"))

	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadGateway)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}

	var body ErrorResponseBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse body: %v", err)
	}
	if body.Code != model.ErrCodeUpstreamError {
		t.Errorf("Code = %q, want %q", body.Code, model.ErrCodeUpstreamError)
	}
	if body.Category != "provider" {
		t.Errorf("Category = %q, want %q", body.Category, "provider")
	}
	if body.Message == "" || body.Action == "" {
		t.Errorf("body = %+v", body)
	}
}

func TestWriteUnauthorizedResponse(t *testing.T) {
	rec := httptest.NewRecorder()

	WriteUnauthorizedResponse(rec)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}

	var body ErrorResponseBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse body: %v", err)
	}
	if body.Code != model.ErrCodeUnauthorized {
		t.Errorf("Code = %q, want %q", body.Code, model.ErrCodeUnauthorized)
	}
}

func TestWriteInternalServerError(t *testing.T) {
	rec := httptest.NewRecorder()

	WriteInternalServerError(rec)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusInternalServerError)
	}

	var body ErrorResponseBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse body: %v", err)
	}
	if body.Code != model.ErrCodeInternalError {
		t.Errorf("Code = %q, want %q", body.Code, model.ErrCodeInternalError)
	}
}
