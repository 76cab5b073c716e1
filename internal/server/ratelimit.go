package server

import (
	"context"
	"net/http"
	"strconv"
	"sync"

	"github.com/groqtales/groqtales-server/internal/core/domain"
)

// rateLimitContextKey is the context key for rate limit info
type rateLimitContextKey struct{}

type rateLimitSlot struct {
	mu   sync.Mutex
	info *domain.RateLimitInfo
}

// SetRateLimits records upstream rate limit info for the current request so
// RateLimitNormalizingMiddleware can write it as headers. It must be called
// before the response is first written. No-op if the middleware isn't present.
func SetRateLimits(ctx context.Context, rl *domain.RateLimitInfo) {
	if slot, ok := ctx.Value(rateLimitContextKey{}).(*rateLimitSlot); ok {
		slot.mu.Lock()
		slot.info = rl
		slot.mu.Unlock()
	}
}

// GetRateLimits retrieves rate limit info from context.
// Returns nil if no rate limits are set.
func GetRateLimits(ctx context.Context) *domain.RateLimitInfo {
	if slot, ok := ctx.Value(rateLimitContextKey{}).(*rateLimitSlot); ok {
		slot.mu.Lock()
		defer slot.mu.Unlock()
		return slot.info
	}
	return nil
}

// RateLimitNormalizingMiddleware writes the completion API's rate limits as
// x-ratelimit-* response headers when a handler reported them.
func RateLimitNormalizingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		slot := &rateLimitSlot{}
		wrapped := &rateLimitResponseWriter{ResponseWriter: w, slot: slot}
		next.ServeHTTP(wrapped, r.WithContext(context.WithValue(r.Context(), rateLimitContextKey{}, slot)))
	})
}

// rateLimitResponseWriter wraps ResponseWriter to write rate limit headers.
type rateLimitResponseWriter struct {
	http.ResponseWriter
	slot         *rateLimitSlot
	wroteHeaders bool
}

func (rw *rateLimitResponseWriter) WriteHeader(code int) {
	if !rw.wroteHeaders {
		rw.writeRateLimitHeaders()
		rw.wroteHeaders = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *rateLimitResponseWriter) Write(b []byte) (int, error) {
	if !rw.wroteHeaders {
		rw.writeRateLimitHeaders()
		rw.wroteHeaders = true
	}
	return rw.ResponseWriter.Write(b)
}

func (rw *rateLimitResponseWriter) writeRateLimitHeaders() {
	rw.slot.mu.Lock()
	rl := rw.slot.info
	rw.slot.mu.Unlock()
	if rl == nil {
		return
	}

	h := rw.Header()

	// Standard format: x-ratelimit-{limit|remaining|reset}-{requests|tokens}
	if rl.RequestsLimit > 0 {
		h.Set("x-ratelimit-limit-requests", strconv.Itoa(rl.RequestsLimit))
		// 0 is a valid remaining value once a limit is known
		h.Set("x-ratelimit-remaining-requests", strconv.Itoa(rl.RequestsRemaining))
	}
	if rl.RequestsReset != "" {
		h.Set("x-ratelimit-reset-requests", rl.RequestsReset)
	}

	if rl.TokensLimit > 0 {
		h.Set("x-ratelimit-limit-tokens", strconv.Itoa(rl.TokensLimit))
		h.Set("x-ratelimit-remaining-tokens", strconv.Itoa(rl.TokensRemaining))
	}
	if rl.TokensReset != "" {
		h.Set("x-ratelimit-reset-tokens", rl.TokensReset)
	}
}

// Flush forwards Flush to the underlying ResponseWriter if it supports http.Flusher.
func (rw *rateLimitResponseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
