package middleware

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/pkgerrors"

	"github.com/tbourn/go-product-catalog/internal/domain"
)

func TestCodeForStatus(t *testing.T) {
	cases := map[int]string{
		http.StatusNotFound:            "not_found",
		http.StatusBadRequest:          "bad_request",
		http.StatusUnauthorized:        "unauthorized",
		http.StatusMethodNotAllowed:    "method_not_allowed",
		http.StatusTooManyRequests:     "too_many_requests",
		http.StatusInternalServerError: "internal_error",
		799:                            "error",
	}
	for status, want := range cases {
		if got := CodeForStatus(status); got != want {
			t.Errorf("CodeForStatus(%d) = %q; want %q", status, got, want)
		}
	}
}

func TestErrorHandler_RendersLastError(t *testing.T) {
	buf := captureLogger(t)
	prev := zerolog.ErrorStackMarshaler
	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack
	t.Cleanup(func() { zerolog.ErrorStackMarshaler = prev })

	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantMsg    string
	}{
		{"not found", domain.NotFound("Product not found"), 404, "Product not found"},
		{"validation", domain.ErrInvalidProduct, 400, "Invalid product data"},
		{"unauthorized", ErrInvalidAPIKey, 401, "Unauthorized: Invalid API Key"},
		{"wrapped", errors.WithStack(domain.NotFound("gone")), 404, "gone"},
		{"wrapped fmt", fmt.Errorf("lookup: %w", domain.Invalid("bad")), 400, "bad"},
		{"unclassified", errors.New("db exploded"), 500, "Internal Server Error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := newTestEngine(RequestID(), Logger(RedactOptions{}), ErrorHandler())
			r.GET("/x", func(c *gin.Context) {
				_ = c.Error(errors.New("earlier"))
				_ = c.Error(tc.err)
			})

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
			if w.Code != tc.wantStatus {
				t.Fatalf("status = %d; want %d", w.Code, tc.wantStatus)
			}
			var body map[string]string
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("invalid json: %v", err)
			}
			if body["error"] != tc.wantMsg || body["code"] != CodeForStatus(tc.wantStatus) {
				t.Fatalf("body = %v", body)
			}
			if body["request_id"] != w.Header().Get(requestIDHeader) {
				t.Fatalf("request_id = %q", body["request_id"])
			}
		})
	}
	if !strings.Contains(buf.String(), `"message":"request failed"`) {
		t.Fatalf("expected error log, got:\n%s", buf.String())
	}
	if !strings.Contains(buf.String(), `"stack"`) {
		t.Fatalf("expected stack for wrapped error, got:\n%s", buf.String())
	}
}

func TestErrorHandler_NoErrorOrAlreadyWritten(t *testing.T) {
	r := newTestEngine(ErrorHandler())
	r.GET("/ok", func(c *gin.Context) { c.String(http.StatusOK, "fine") })
	r.GET("/written", func(c *gin.Context) {
		c.String(http.StatusAccepted, "partial")
		_ = c.Error(domain.NotFound("late"))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ok", nil))
	if w.Code != http.StatusOK || w.Body.String() != "fine" {
		t.Fatalf("ok: %d %q", w.Code, w.Body.String())
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/written", nil))
	if w.Code != http.StatusAccepted || w.Body.String() != "partial" {
		t.Fatalf("written: %d %q", w.Code, w.Body.String())
	}
}
