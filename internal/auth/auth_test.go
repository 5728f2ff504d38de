package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aicarousel/aicarousel/internal/store"
)

type fakeValidator struct {
	valid map[string]bool
}

func (f *fakeValidator) ValidateKey(presented string) (*store.APIKeyRecord, bool) {
	if f.valid[presented] {
		return &store.APIKeyRecord{ID: "k1", IsActive: true}, true
	}
	return nil, false
}

func protected(t *testing.T, valid ...string) http.Handler {
	t.Helper()
	keys := &fakeValidator{valid: map[string]bool{}}
	for _, k := range valid {
		keys.valid[k] = true
	}
	inner := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return Middleware(keys)(inner)
}

func TestMiddleware_BearerKey(t *testing.T) {
	h := protected(t, "sk-good")
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", nil)
	req.Header.Set("Authorization", "Bearer sk-good")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestMiddleware_XAPIKeyHeader(t *testing.T) {
	h := protected(t, "sk-good")
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", nil)
	req.Header.Set("x-api-key", "sk-good")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestMiddleware_MissingKeyOpenAIBody(t *testing.T) {
	h := protected(t)
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	var body struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
			Code    string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("body not JSON: %v", err)
	}
	if body.Error.Message != "Missing API key" || body.Error.Type != "invalid_request_error" || body.Error.Code != "invalid_api_key" {
		t.Errorf("body = %+v", body)
	}
}

func TestMiddleware_InvalidKeyAnthropicBody(t *testing.T) {
	h := protected(t, "sk-good")
	req := httptest.NewRequest(http.MethodPost, "/v1/messages", nil)
	req.Header.Set("Authorization", "Bearer sk-wrong")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	var body struct {
		Type  string `json:"type"`
		Error struct {
			Type    string `json:"type"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("body not JSON: %v", err)
	}
	if body.Type != "error" || body.Error.Type != "authentication_error" || body.Error.Message != "Invalid API key" {
		t.Errorf("body = %+v", body)
	}
}

func TestMiddleware_PublicPaths(t *testing.T) {
	h := protected(t)
	for _, path := range []string{"/health", "/v1/models", "/v1/models/aicarousel", "/metrics"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("%s: status = %d, want 200 without a key", path, rec.Code)
		}
	}
}

func TestMiddleware_OptionsPassThrough(t *testing.T) {
	h := protected(t)
	req := httptest.NewRequest(http.MethodOptions, "/v1/chat/completions", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, preflight must bypass auth", rec.Code)
	}
}
