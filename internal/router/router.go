package router

import (
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-auth-go/internal/token"
	"github.com/ovaphlow/pitchfork/service-auth-go/internal/user"
	"github.com/ovaphlow/pitchfork/service-auth-go/pkg/utilities"
)

// DefaultBasePath prefixes every account route.
const DefaultBasePath = "/api/auth"

// loggingResponseWriter wraps http.ResponseWriter to capture status and size.
type loggingResponseWriter struct {
	http.ResponseWriter
	status int
	size   int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.status = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Write(b []byte) (int, error) {
	if lrw.status == 0 {
		lrw.status = http.StatusOK
	}
	n, err := lrw.ResponseWriter.Write(b)
	lrw.size += n
	return n, err
}

// LoggingMiddleware returns a middleware that logs requests at debug level using the provided sugared logger.
func LoggingMiddleware(logger *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			lrw := &loggingResponseWriter{ResponseWriter: w}
			next.ServeHTTP(lrw, r)
			dur := time.Since(start)
			// ensure status is set
			status := lrw.status
			if status == 0 {
				status = http.StatusOK
			}
			logger.Debugw("http request",
				"request_id", utilities.RequestIDFromContext(r.Context()),
				"method", r.Method,
				"path", r.URL.Path,
				"remote", r.RemoteAddr,
				"status", status,
				"duration_ms", float64(dur.Microseconds())/1000.0,
				"size", lrw.size,
			)
		})
	}
}

// RequestIDMiddleware keeps an incoming X-Request-ID or mints a new one,
// echoes it in the response and stores it in the request context.
func RequestIDMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := strings.TrimSpace(r.Header.Get(utilities.RequestIDHeader))
			if id == "" || len(id) > 128 {
				id = utilities.NewRequestID()
			}
			w.Header().Set(utilities.RequestIDHeader, id)
			next.ServeHTTP(w, r.WithContext(utilities.WithRequestID(r.Context(), id)))
		})
	}
}

// SecurityHeadersMiddleware returns a middleware that sets common HTTP security headers.
func SecurityHeadersMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Prevent MIME sniffing
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("Referrer-Policy", "no-referrer")
			w.Header().Set("Permissions-Policy", "camera=(), microphone=(), geolocation=()")

			// an API never serves active content
			if w.Header().Get("Content-Security-Policy") == "" {
				w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none';")
			}
			w.Header().Set("Cache-Control", "no-store")

			// HSTS only over TLS. 30 days.
			if r.TLS != nil {
				w.Header().Set("Strict-Transport-Security", "max-age=2592000; includeSubDomains")
			}

			next.ServeHTTP(w, r)
		})
	}
}

// SessionToken extracts the bearer token from x-auth-token or an
// Authorization: Bearer header.
func SessionToken(r *http.Request) string {
	if raw := strings.TrimSpace(r.Header.Get("x-auth-token")); raw != "" {
		return raw
	}
	authz := r.Header.Get("Authorization")
	if len(authz) > 7 && strings.EqualFold(authz[:7], "Bearer ") {
		return strings.TrimSpace(authz[7:])
	}
	return ""
}

// RequireSession admits requests carrying a valid session token and puts
// its subject into the request context.
func RequireSession(guard *token.Guard, logger *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sub, err := guard.Authenticate(SessionToken(r))
			if err != nil {
				logger.Debugw("session rejected",
					"request_id", utilities.RequestIDFromContext(r.Context()),
					"path", r.URL.Path,
					"err", err,
				)
				utilities.WriteFailure(w, http.StatusUnauthorized, "errors occured while authentification", []string{"not authorized"})
				return
			}
			next.ServeHTTP(w, r.WithContext(token.WithSubject(r.Context(), sub)))
		})
	}
}

// Options configures RegisterRoutes.
type Options struct {
	BasePath string
	Users    *user.Handler
	Guard    *token.Guard
}

// RegisterRoutes mounts HTTP handlers using the standard library's http.ServeMux.
func RegisterRoutes(logger *zap.SugaredLogger, opts Options) http.Handler {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	base := strings.TrimRight(opts.BasePath, "/")
	if base == "" {
		base = DefaultBasePath
	}

	mux := http.NewServeMux()

	// health
	mux.HandleFunc("GET "+base+"/health", func(w http.ResponseWriter, r *http.Request) {
		utilities.WriteSuccess(w, http.StatusOK, "ok", nil)
	})

	users := opts.Users
	session := RequireSession(opts.Guard, logger)
	mux.HandleFunc("POST "+base+"/user/register", users.Register)
	mux.HandleFunc("POST "+base+"/user/login", users.Login)
	mux.Handle("GET "+base+"/user/information", session(http.HandlerFunc(users.Profile)))
	mux.HandleFunc("POST "+base+"/user/activate", users.Activate)
	mux.HandleFunc("POST "+base+"/user/forgot-password", users.ForgotPassword)
	mux.HandleFunc("PUT "+base+"/user/reset-password", users.ResetPassword)

	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		utilities.WriteSuccess(w, http.StatusOK, "Home page", nil)
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		utilities.WriteFailure(w, http.StatusNotFound, "Page not found", nil)
	})

	// request id first so every later layer can log it
	handler := RequestIDMiddleware()(LoggingMiddleware(logger)(SecurityHeadersMiddleware()(mux)))
	return handler
}
