package server

import (
	"bufio"
	"context"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/HerbHall/cliphub/internal/metrics"
	"github.com/HerbHall/cliphub/internal/store"
)

// Middleware wraps an http.Handler.
type Middleware func(http.Handler) http.Handler

// Chain applies middlewares so the first one listed is the outermost.
func Chain(h http.Handler, mws ...Middleware) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

// HeaderRequestID carries the request ID on requests and responses.
const HeaderRequestID = "X-Request-ID"

type requestIDKey struct{}

// RequestID assigns each request an ID, reusing a well-formed incoming
// X-Request-ID, and echoes it on the response.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(HeaderRequestID)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set(HeaderRequestID, id)
		ctx := context.WithValue(r.Context(), requestIDKey{}, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequestIDFrom returns the request ID stored by RequestID, or "".
func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// routeKey holds the matched ServeMux pattern. ServeMux records the pattern
// on the request it receives, which is a copy once any middleware has called
// WithContext, so the innermost layer reports it back through this holder.
type routeKey struct{}

type routeHolder struct{ pattern string }

// capturePattern is installed directly around the mux.
func capturePattern(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r)
		if h, ok := r.Context().Value(routeKey{}).(*routeHolder); ok {
			h.pattern = r.Pattern
		}
	})
}

// AccessLog logs one line per request and records its duration.
func AccessLog(logger *zap.Logger, m *metrics.Metrics) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			route := &routeHolder{}
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			r = r.WithContext(context.WithValue(r.Context(), routeKey{}, route))

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			elapsed := time.Since(start)
			label := route.pattern
			if label == "" {
				label = "unmatched"
			}
			m.ObserveRequest(r.Method, label, status, elapsed)

			logger.Info("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("route", label),
				zap.Int("status", status),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("elapsed", elapsed),
				zap.String("remote", r.RemoteAddr),
				zap.String("request_id", RequestIDFrom(r.Context())),
			)
		})
	}
}

var securityHeaders = [][2]string{
	{"X-Content-Type-Options", "nosniff"},
	{"X-Frame-Options", "DENY"},
	{"Referrer-Policy", "no-referrer"},
	{"Permissions-Policy", "geolocation=(), microphone=(), camera=(), payment=(), usb=()"},
	{"Content-Security-Policy", "default-src 'self'; script-src 'self'; style-src 'self' 'unsafe-inline'; " +
		"img-src 'self' data:; connect-src 'self'; font-src 'self'; object-src 'none'; " +
		"base-uri 'self'; frame-ancestors 'none'; form-action 'self'"},
}

// SecurityHeaders sets browser hardening headers. Handlers may override any
// of them.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		for _, kv := range securityHeaders {
			if h.Get(kv[0]) == "" {
				h.Set(kv[0], kv[1])
			}
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAJAX rejects mutating requests that lack
// "X-Requested-With: XMLHttpRequest" with 403. Plain cross-site form posts
// cannot set that header.
func RequireAJAX(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
			if r.Header.Get("X-Requested-With") != "XMLHttpRequest" {
				Forbidden(w, "Forbidden.")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// RateLimit allows limit requests per second across the process with the
// given burst. A limit of zero disables it.
func RateLimit(limit float64, burst int) Middleware {
	if limit <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	if burst < 1 {
		burst = 1
	}
	lim := rate.NewLimiter(rate.Limit(limit), burst)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !lim.Allow() {
				w.Header().Set("Retry-After", "1")
				RateLimited(w, "Too many requests.")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// StorageScope makes each request one unit of work: every storage handle
// opened while serving it is shared, and released as soon as the handler
// starts its response or returns, whichever comes first. Handlers must
// finish their storage work before writing.
func StorageScope(logger *zap.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, end := store.WithScope(r.Context())
			var once sync.Once
			release := func() {
				once.Do(func() {
					if err := end(); err != nil {
						logger.Warn("release storage handle",
							zap.String("request_id", RequestIDFrom(r.Context())),
							zap.Error(err),
						)
					}
				})
			}
			defer release()
			next.ServeHTTP(&scopeWriter{ResponseWriter: w, release: release}, r.WithContext(ctx))
		})
	}
}

// scopeWriter ends the storage scope before the first byte goes to the
// client.
type scopeWriter struct {
	http.ResponseWriter
	release func()
}

func (w *scopeWriter) WriteHeader(code int) {
	w.release()
	w.ResponseWriter.WriteHeader(code)
}

func (w *scopeWriter) Write(b []byte) (int, error) {
	w.release()
	return w.ResponseWriter.Write(b)
}

func (w *scopeWriter) Flush() {
	w.release()
	_ = http.NewResponseController(w.ResponseWriter).Flush()
}

func (w *scopeWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	w.release()
	return http.NewResponseController(w.ResponseWriter).Hijack()
}

func (w *scopeWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// Timeout bounds request handling with chi's Timeout middleware. WebSocket
// upgrades are long-lived and pass through untouched.
func Timeout(d time.Duration) Middleware {
	if d <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	timeout := middleware.Timeout(d)
	return func(next http.Handler) http.Handler {
		bounded := timeout(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isUpgrade(r) {
				next.ServeHTTP(w, r)
				return
			}
			bounded.ServeHTTP(w, r)
		})
	}
}

func isUpgrade(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("Upgrade"), "websocket")
}
