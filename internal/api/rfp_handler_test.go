package api

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestMux(t *testing.T) *http.ServeMux {
	t.Helper()

	h := NewHandler(Config{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})

	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	return mux
}

// Валидация тела выполняется до обращения к репозиториям, поэтому
// все невалидные запросы обязаны вернуть 400 без подключения к БД.
func TestCreateRFP_Validation(t *testing.T) {
	mux := newTestMux(t)

	tests := []struct {
		name string
		body string
	}{
		{"empty body", ""},
		{"malformed json", "{"},
		{
			"missing title",
			`{"portal_id":"2f0c8f9b-5a3e-4f2e-9c1d-7b8a6d5e4f3a","url":"https://portal.example/rfp/42"}`,
		},
		{
			"missing url",
			`{"portal_id":"2f0c8f9b-5a3e-4f2e-9c1d-7b8a6d5e4f3a","title":"Road maintenance"}`,
		},
		{
			"bad portal id",
			`{"portal_id":"not-a-uuid","title":"Road maintenance","url":"https://portal.example/rfp/42"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/rfps", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()

			mux.ServeHTTP(rec, req)

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected status %d, got %d", http.StatusBadRequest, rec.Code)
			}

			var resp ErrorResponse
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatalf("failed to decode error response: %v", err)
			}
			if resp.Error.Code != ErrCodeBadRequest {
				t.Errorf("expected error code %s, got %s", ErrCodeBadRequest, resp.Error.Code)
			}
		})
	}
}
