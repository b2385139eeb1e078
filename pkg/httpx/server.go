package httpx

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/unrolled/secure"
)

// Defaults applied by NewRouter and NewServer for zero ServerConfig fields.
const (
	DefaultMaxBodyBytes   = 10 << 20
	DefaultRateLimit      = 100
	DefaultRequestTimeout = 30 * time.Second
)

// ServerConfig holds the options for NewRouter and NewServer.
type ServerConfig struct {
	ServiceName   string
	IsDevelopment bool
	// CORSAllowedOrigins is a comma-separated list of allowed origins.
	// "*" allows all origins and is rejected in production by config.
	CORSAllowedOrigins string
	// MaxBodyBytes caps request bodies, multipart uploads included.
	MaxBodyBytes int64
	// RateLimit is the number of requests per minute allowed per client IP.
	RateLimit int
	// RequestTimeout bounds handler execution.
	RequestTimeout time.Duration
}

func (c ServerConfig) withDefaults() ServerConfig {
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if c.RateLimit <= 0 {
		c.RateLimit = DefaultRateLimit
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = DefaultRequestTimeout
	}
	return c
}

// NewRouter returns a chi.Mux with the shared middleware stack. The
// app-supplied middlewares run first, outermost to innermost:
//
//	recovery, sentry, RequestID, otel, logger
//
// followed by RealIP, the per-IP rate limit, CORS, the body cap, the
// handler timeout and the security headers.
func NewRouter(
	cfg ServerConfig,
	loggerMiddleware func(http.Handler) http.Handler,
	recoveryMiddleware func(http.Handler) http.Handler,
	sentryMiddleware func(http.Handler) http.Handler,
	otelMiddleware func(http.Handler) http.Handler,
) *chi.Mux {
	cfg = cfg.withDefaults()

	r := chi.NewRouter()
	r.Use(
		recoveryMiddleware,
		sentryMiddleware,
		middleware.RequestID,
		otelMiddleware,
		loggerMiddleware,
		middleware.RealIP,
		httprate.LimitByIP(cfg.RateLimit, time.Minute),
		CORSMiddleware(cfg.CORSAllowedOrigins),
		RequestBodyLimit(cfg.MaxBodyBytes),
		middleware.Timeout(cfg.RequestTimeout),
		securityHeaders(cfg.IsDevelopment).Handler,
	)
	return r
}

// securityHeaders allows images to be embedded by the storefront, which is
// served from a different origin than the API.
func securityHeaders(dev bool) *secure.Secure {
	return secure.New(secure.Options{
		STSSeconds:                63072000,
		STSIncludeSubdomains:      true,
		FrameDeny:                 true,
		ContentTypeNosniff:        true,
		ReferrerPolicy:            "strict-origin-when-cross-origin",
		ContentSecurityPolicy:     "default-src 'self'; img-src 'self' data:; frame-ancestors 'none'",
		CrossOriginResourcePolicy: "cross-origin",
		PermissionsPolicy:         "geolocation=(), microphone=(), camera=()",
		IsDevelopment:             dev,
	})
}

// CORSMiddleware restricts cross-origin access to allowedOrigins, a
// comma-separated list. An empty list allows every origin.
func CORSMiddleware(allowedOrigins string) func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins:   parseOrigins(allowedOrigins),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id", "X-Ratelimit-Remaining"},
		AllowCredentials: false,
		MaxAge:           300,
	})
}

func parseOrigins(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p := strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}

// RequestBodyLimit caps the request body at maxBytes. Reads past the cap
// fail with *http.MaxBytesError, which errhttp maps to 413.
func RequestBodyLimit(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}

// NewServer returns an *http.Server for addr. Read and write deadlines
// leave a few seconds over the handler timeout so a slow upload is cut by
// the handler, which can still answer, rather than by the connection.
func NewServer(addr string, handler http.Handler, cfg ServerConfig) *http.Server {
	cfg = cfg.withDefaults()
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.RequestTimeout + 5*time.Second,
		WriteTimeout:      cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}
}
