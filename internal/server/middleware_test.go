package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/groqtales/groqtales-server/internal/auth"
	"github.com/groqtales/groqtales-server/internal/core/domain"
)

func checkHeader(t *testing.T, rec *httptest.ResponseRecorder, name, want string) {
	t.Helper()
	if got := rec.Header().Get(name); got != want {
		t.Errorf("header %s = %q, want %q", name, got, want)
	}
}

// =============================================================================
// RateLimitNormalizingMiddleware Tests
// =============================================================================

func TestRateLimitNormalizingMiddleware(t *testing.T) {
	// Handler reports upstream limits after its completion call, then writes
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		SetRateLimits(r.Context(), &domain.RateLimitInfo{
			RequestsLimit:     14400,
			RequestsRemaining: 14399,
			RequestsReset:     "6s",
			TokensLimit:       6000,
			TokensRemaining:   5955,
			TokensReset:       "450ms",
		})
		w.WriteHeader(http.StatusOK)
	})

	wrapped := RateLimitNormalizingMiddleware(handler)

	req := httptest.NewRequest("POST", "/api/groq", nil)
	rec := httptest.NewRecorder()

	wrapped.ServeHTTP(rec, req)

	checkHeader(t, rec, "x-ratelimit-limit-requests", "14400")
	checkHeader(t, rec, "x-ratelimit-remaining-requests", "14399")
	checkHeader(t, rec, "x-ratelimit-reset-requests", "6s")
	checkHeader(t, rec, "x-ratelimit-limit-tokens", "6000")
	checkHeader(t, rec, "x-ratelimit-remaining-tokens", "5955")
	checkHeader(t, rec, "x-ratelimit-reset-tokens", "450ms")
}

func TestRateLimitNormalizingMiddleware_NoRateLimits(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	wrapped := RateLimitNormalizingMiddleware(handler)

	req := httptest.NewRequest("POST", "/api/groq", nil)
	rec := httptest.NewRecorder()

	wrapped.ServeHTTP(rec, req)

	for _, h := range []string{"x-ratelimit-limit-requests", "x-ratelimit-limit-tokens", "x-ratelimit-remaining-requests"} {
		if rec.Header().Get(h) != "" {
			t.Errorf("Expected no %s header", h)
		}
	}
}

func TestRateLimitNormalizingMiddleware_ZeroRemaining(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		SetRateLimits(r.Context(), &domain.RateLimitInfo{RequestsLimit: 30})
		w.Write([]byte("{}"))
	})

	rec := httptest.NewRecorder()
	RateLimitNormalizingMiddleware(handler).ServeHTTP(rec, httptest.NewRequest("POST", "/", nil))

	checkHeader(t, rec, "x-ratelimit-limit-requests", "30")
	checkHeader(t, rec, "x-ratelimit-remaining-requests", "0")
	checkHeader(t, rec, "x-ratelimit-limit-tokens", "")
}

func TestGetRateLimits(t *testing.T) {
	if rl := GetRateLimits(context.Background()); rl != nil {
		t.Errorf("Expected nil without middleware, got %+v", rl)
	}
	// No-op without middleware
	SetRateLimits(context.Background(), &domain.RateLimitInfo{RequestsLimit: 1})

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		SetRateLimits(r.Context(), &domain.RateLimitInfo{TokensLimit: 5})
		if rl := GetRateLimits(r.Context()); rl == nil || rl.TokensLimit != 5 {
			t.Errorf("GetRateLimits() = %+v", rl)
		}
	})
	RateLimitNormalizingMiddleware(handler).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))
}

// =============================================================================
// RequestIDMiddleware Tests
// =============================================================================

func TestRequestIDMiddleware(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if GetRequestID(r.Context()) == "" {
			t.Error("Expected request ID in context")
		}
		w.WriteHeader(http.StatusOK)
	})

	wrapped := RequestIDMiddleware(handler)

	req := httptest.NewRequest("GET", "/", nil)
	rec := httptest.NewRecorder()

	wrapped.ServeHTTP(rec, req)

	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("Expected X-Request-ID header to be set")
	}
}

func TestRequestIDMiddleware_UniqueIDs(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	wrapped := RequestIDMiddleware(handler)

	rec1 := httptest.NewRecorder()
	wrapped.ServeHTTP(rec1, httptest.NewRequest("GET", "/", nil))

	rec2 := httptest.NewRecorder()
	wrapped.ServeHTTP(rec2, httptest.NewRequest("GET", "/", nil))

	id1 := rec1.Header().Get("X-Request-ID")
	id2 := rec2.Header().Get("X-Request-ID")

	if id1 == id2 {
		t.Errorf("Expected unique request IDs, got same: %s", id1)
	}
}

func TestRequestIDMiddleware_ReusesIncoming(t *testing.T) {
	var seen string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	})

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("X-Request-ID", "trace-abc")
	rec := httptest.NewRecorder()

	RequestIDMiddleware(handler).ServeHTTP(rec, req)

	if seen != "trace-abc" {
		t.Errorf("context request id = %q, want trace-abc", seen)
	}
	checkHeader(t, rec, "X-Request-ID", "trace-abc")

	// Oversized ids are replaced
	req = httptest.NewRequest("GET", "/", nil)
	req.Header.Set("X-Request-ID", strings.Repeat("x", 500))
	RequestIDMiddleware(handler).ServeHTTP(httptest.NewRecorder(), req)
	if len(seen) > maxRequestIDLen {
		t.Errorf("oversized request id was kept")
	}
}

func TestGetRequestID_NotSet(t *testing.T) {
	if id := GetRequestID(context.Background()); id != "" {
		t.Errorf("Expected empty string, got %q", id)
	}
}

// =============================================================================
// TimeoutMiddleware Tests
// =============================================================================

func TestTimeoutMiddleware(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		deadline, ok := r.Context().Deadline()
		if !ok || deadline.IsZero() {
			t.Error("Expected context to have deadline")
		}
		w.WriteHeader(http.StatusOK)
	})

	wrapped := TimeoutMiddleware(30 * time.Second)(handler)

	rec := httptest.NewRecorder()
	wrapped.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("Expected status %d, got %d", http.StatusOK, rec.Code)
	}
}

func TestTimeoutMiddleware_ContextCancelled(t *testing.T) {
	contextCancelled := false
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
			contextCancelled = true
		case <-time.After(100 * time.Millisecond):
		}
		w.WriteHeader(http.StatusOK)
	})

	wrapped := TimeoutMiddleware(10 * time.Millisecond)(handler)
	wrapped.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))

	if !contextCancelled {
		t.Error("Expected context to be cancelled due to timeout")
	}
}

func TestTimeoutMiddleware_MarksLogLine(t *testing.T) {
	var buf strings.Builder
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
		w.WriteHeader(http.StatusBadGateway)
	})

	wrapped := LoggingMiddleware(newBufferLogger(&buf))(TimeoutMiddleware(5 * time.Millisecond)(handler))
	wrapped.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("POST", "/api/story/mint", nil))

	if !strings.Contains(buf.String(), "timed_out=5ms") {
		t.Errorf("Expected timed_out field in log output, got: %s", buf.String())
	}
}

func TestTimeoutMiddleware_Disabled(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := r.Context().Deadline(); ok {
			t.Error("Expected no deadline when timeout is zero")
		}
	})
	TimeoutMiddleware(0)(handler).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))
}

// =============================================================================
// AuthMiddleware Tests
// =============================================================================

func authTestHandler(called *bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*called = true
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthMiddleware_ValidAPIKey(t *testing.T) {
	authenticator := auth.NewAuthenticator([]string{auth.HashAPIKey("valid-key-123")})

	called := false
	wrapped := AuthMiddleware(authenticator)(authTestHandler(&called))

	req := httptest.NewRequest("POST", "/api/story/mint", nil)
	req.Header.Set("Authorization", "Bearer valid-key-123")
	rec := httptest.NewRecorder()

	wrapped.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("Expected status %d, got %d", http.StatusOK, rec.Code)
	}
	if !called {
		t.Error("Expected handler to be called")
	}
}

func TestAuthMiddleware_Rejects(t *testing.T) {
	authenticator := auth.NewAuthenticator([]string{auth.HashAPIKey("valid-key-123")})

	tests := []struct {
		name   string
		header string
	}{
		{"invalid key", "Bearer wrong-key"},
		{"missing header", ""},
		{"no bearer prefix", "valid-key-123"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			wrapped := AuthMiddleware(authenticator)(authTestHandler(&called))

			req := httptest.NewRequest("POST", "/api/story/mint", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()

			wrapped.ServeHTTP(rec, req)

			if rec.Code != http.StatusUnauthorized {
				t.Errorf("Expected status %d, got %d", http.StatusUnauthorized, rec.Code)
			}
			if called {
				t.Error("Handler should not be called")
			}
			if !strings.Contains(rec.Body.String(), `"success":false`) {
				t.Errorf("Expected JSON error body, got %s", rec.Body.String())
			}
		})
	}
}

func TestAuthMiddleware_NilAuthenticator(t *testing.T) {
	called := false
	wrapped := AuthMiddleware(nil)(authTestHandler(&called))

	rec := httptest.NewRecorder()
	wrapped.ServeHTTP(rec, httptest.NewRequest("POST", "/api/story/mint", nil))

	if !called || rec.Code != http.StatusOK {
		t.Errorf("nil authenticator should pass through, got %d", rec.Code)
	}
}

// =============================================================================
// LoggingMiddleware Tests
// =============================================================================

func newBufferLogger(buf *strings.Builder) *slog.Logger {
	return slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func TestLoggingMiddleware(t *testing.T) {
	var buf strings.Builder
	logger := newBufferLogger(&buf)

	testHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	wrapped := RequestIDMiddleware(LoggingMiddleware(logger)(testHandler))

	rec := httptest.NewRecorder()
	wrapped.ServeHTTP(rec, httptest.NewRequest("GET", "/test-path", nil))

	output := buf.String()

	if !strings.Contains(output, "request started") {
		t.Error("Expected 'request started' in log output")
	}
	if !strings.Contains(output, "request completed") {
		t.Error("Expected 'request completed' in log output")
	}
	if !strings.Contains(output, "/test-path") {
		t.Error("Expected path in log output")
	}
	if !strings.Contains(output, rec.Header().Get("X-Request-ID")) {
		t.Error("Expected request id in log output")
	}
}

func TestLoggingMiddleware_ServerErrorLevel(t *testing.T) {
	var buf strings.Builder
	logger := newBufferLogger(&buf)

	testHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	LoggingMiddleware(logger)(testHandler).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("POST", "/api/groq", nil))

	if !strings.Contains(buf.String(), "level=ERROR") || !strings.Contains(buf.String(), "status=502") {
		t.Errorf("Expected error level completion log, got: %s", buf.String())
	}
}

func TestAddLogField(t *testing.T) {
	var buf strings.Builder
	logger := newBufferLogger(&buf)

	testHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		AddLogField(r.Context(), "stage", "minting")
		AddLogField(r.Context(), "empty_field", "")
		w.WriteHeader(http.StatusOK)
	})

	LoggingMiddleware(logger)(testHandler).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))

	output := buf.String()
	if !strings.Contains(output, "stage=minting") {
		t.Errorf("Expected custom field in log output, got: %s", output)
	}
	if strings.Contains(output, "empty_field") {
		t.Errorf("Empty field should not be in log output, got: %s", output)
	}
}

func TestAddLogField_NoContext(t *testing.T) {
	// Should not panic when called with a context that doesn't have log fields
	AddLogField(context.Background(), "key", "value")
}

func TestAddError(t *testing.T) {
	var buf strings.Builder
	logger := newBufferLogger(&buf)

	testHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		AddError(r.Context(), errors.New("test error message"))
		w.WriteHeader(http.StatusInternalServerError)
	})

	LoggingMiddleware(logger)(testHandler).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))

	if !strings.Contains(buf.String(), "test error message") {
		t.Errorf("Expected error in log output, got: %s", buf.String())
	}
}

func TestAddError_Nil(t *testing.T) {
	AddError(context.Background(), nil)
}

// =============================================================================
// Server Tests
// =============================================================================

func TestServer_HealthAndMetrics(t *testing.T) {
	srv := New(0, slog.New(slog.NewTextHandler(&strings.Builder{}, nil)))

	rec := httptest.NewRecorder()
	srv.Router.ServeHTTP(rec, httptest.NewRequest("GET", "/healthz", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Errorf("/healthz = %d %s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("Expected X-Request-ID on /healthz")
	}

	rec = httptest.NewRecorder()
	srv.Router.ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "go_goroutines") {
		t.Errorf("/metrics = %d", rec.Code)
	}
}

func TestServer_RecoversPanics(t *testing.T) {
	srv := New(0, slog.New(slog.NewTextHandler(&strings.Builder{}, nil)))
	srv.Router.Get("/boom", func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})

	rec := httptest.NewRecorder()
	srv.Router.ServeHTTP(rec, httptest.NewRequest("GET", "/boom", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("Expected 500 after panic, got %d", rec.Code)
	}
}
