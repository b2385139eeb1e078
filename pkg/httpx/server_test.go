package httpx_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ghuser/secondchance/pkg/httpx"
)

func okHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func passthrough(next http.Handler) http.Handler { return next }

func newTestRouter(cfg httpx.ServerConfig) http.Handler {
	r := httpx.NewRouter(cfg, passthrough, passthrough, passthrough, passthrough)
	r.Get("/", okHandler)
	return r
}

// TestSecurityHeaders verifies the headers set on every response.
func TestSecurityHeaders(t *testing.T) {
	h := newTestRouter(httpx.ServerConfig{ServiceName: "test"})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", http.NoBody))

	checks := map[string]string{
		"X-Content-Type-Options":       "nosniff",
		"X-Frame-Options":              "DENY",
		"Referrer-Policy":              "strict-origin-when-cross-origin",
		"Content-Security-Policy":      "default-src 'self'; img-src 'self' data:; frame-ancestors 'none'",
		"Cross-Origin-Resource-Policy": "cross-origin",
	}
	for header, expected := range checks {
		if got := rr.Header().Get(header); got != expected {
			t.Errorf("%s: got %q, want %q", header, got, expected)
		}
	}
}

func TestNewRouter_RateLimit(t *testing.T) {
	h := newTestRouter(httpx.ServerConfig{ServiceName: "test", RateLimit: 2})

	want := []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}
	for i, code := range want {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", http.NoBody))
		if rr.Code != code {
			t.Fatalf("request %d: expected %d, got %d", i+1, code, rr.Code)
		}
	}
}

func TestCORSMiddleware_Preflight(t *testing.T) {
	h := httpx.CORSMiddleware("https://shop.example.com, https://admin.example.com")(http.HandlerFunc(okHandler))

	tests := []struct {
		origin string
		want   string
	}{
		{"https://admin.example.com", "https://admin.example.com"},
		{"https://evil.example.com", ""},
	}
	for _, tt := range tests {
		t.Run(tt.origin, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodOptions, "/api/secondchance/items", http.NoBody)
			req.Header.Set("Origin", tt.origin)
			req.Header.Set("Access-Control-Request-Method", http.MethodPut)
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)
			if got := rr.Header().Get("Access-Control-Allow-Origin"); got != tt.want {
				t.Fatalf("Access-Control-Allow-Origin = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNewServer_Timeouts(t *testing.T) {
	srv := httpx.NewServer(":0", http.NotFoundHandler(), httpx.ServerConfig{RequestTimeout: 10 * time.Second})
	if srv.ReadTimeout != 15*time.Second || srv.WriteTimeout != 15*time.Second {
		t.Fatalf("unexpected timeouts read=%s write=%s", srv.ReadTimeout, srv.WriteTimeout)
	}

	srv = httpx.NewServer(":0", http.NotFoundHandler(), httpx.ServerConfig{})
	if srv.WriteTimeout != httpx.DefaultRequestTimeout+5*time.Second {
		t.Fatalf("expected default write timeout, got %s", srv.WriteTimeout)
	}
}

// TestRequestBodyLimit_WithinLimit verifies requests under the cap pass through.
func TestRequestBodyLimit_WithinLimit(t *testing.T) {
	const limit = 100

	var gotBody []byte
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf := make([]byte, limit+1)
		n, _ := r.Body.Read(buf)
		gotBody = buf[:n]
		w.WriteHeader(http.StatusOK)
	})

	h := httpx.RequestBodyLimit(limit)(inner)
	body := strings.NewReader(strings.Repeat("a", 50))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/", body))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if len(gotBody) != 50 {
		t.Fatalf("expected 50 bytes read, got %d", len(gotBody))
	}
}

// TestRequestBodyLimit_ExceedsLimit verifies that reading beyond the cap returns an error.
func TestRequestBodyLimit_ExceedsLimit(t *testing.T) {
	const limit int64 = 10

	var readErr error
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf := make([]byte, limit+5)
		_, readErr = r.Body.Read(buf)
		if readErr != nil {
			http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	h := httpx.RequestBodyLimit(limit)(inner)
	body := strings.NewReader(strings.Repeat("x", int(limit)+1))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/", body))

	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", rr.Code)
	}
}

// TestNewRouter_BodyLimit verifies the router applies the configured body cap.
func TestNewRouter_BodyLimit(t *testing.T) {
	r := httpx.NewRouter(
		httpx.ServerConfig{ServiceName: "test", IsDevelopment: true, CORSAllowedOrigins: "*", MaxBodyBytes: 8},
		passthrough, passthrough, passthrough, passthrough,
	)
	r.Post("/echo", func(w http.ResponseWriter, r *http.Request) {
		if _, err := io.ReadAll(r.Body); err != nil {
			http.Error(w, "too large", http.StatusRequestEntityTooLarge)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	tests := []struct {
		name string
		body string
		want int
	}{
		{"within limit", "1234", http.StatusOK},
		{"over limit", strings.Repeat("x", 64), http.StatusRequestEntityTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			r.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader(tt.body)))
			if rr.Code != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, rr.Code)
			}
		})
	}
}
