package httpserver

import (
	"context"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"reviewhub/internal/adapters/observability"
	"reviewhub/internal/authz"
	"reviewhub/internal/domain"
)

func Timeout(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler { return http.TimeoutHandler(next, d, "timeout") }
}

// ---- status-recording ResponseWriter ----

type srw struct {
	http.ResponseWriter
	status int
	wrote  bool
}

func (w *srw) WriteHeader(code int) {
	if !w.wrote {
		w.status = code
		w.wrote = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *srw) Write(b []byte) (int, error) {
	if !w.wrote {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(b)
}

func (w *srw) Status() int {
	if w.status == 0 {
		return http.StatusOK
	}
	return w.status
}

func routeOf(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if p := rc.RoutePattern(); p != "" {
			return p
		}
	}
	return r.URL.Path
}

// ---- Metrics middleware ----

func Metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &srw{ResponseWriter: w}
		next.ServeHTTP(sw, r)
		observability.ObserveHTTP(routeOf(r), r.Method, sw.Status(), time.Since(start))
	})
}

// ---- Structured logging middleware ----

func Logger(l zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &srw{ResponseWriter: w}
			next.ServeHTTP(sw, r)
			ev := l.Info()
			if u, ok := UserFrom(r.Context()); ok {
				ev = ev.Str("user", u.ID)
			}
			ev.
				Str("route", routeOf(r)).
				Str("method", r.Method).
				Int("status", sw.Status()).
				Dur("duration", time.Since(start)).
				Str("remote", remoteIP(r)).
				Str("ua", r.UserAgent()).
				Msg("http_request")
		})
	}
}

// remoteIP is the host part of RemoteAddr, which RealIP has already rewritten.
func remoteIP(r *http.Request) string {
	return hostOf(r.RemoteAddr)
}

func hostOf(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err == nil && host != "" {
		return host
	}
	return addr
}

// ---- Rate limiting ----

type peerKey struct{}

// Peer keeps the connection address before RealIP replaces it with a
// client-supplied header value.
func Peer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), peerKey{}, r.RemoteAddr)))
	})
}

// clientKey is the peer address unless forwarded headers are trusted.
func clientKey(r *http.Request, trustProxy bool) string {
	if !trustProxy {
		if addr, ok := r.Context().Value(peerKey{}).(string); ok {
			return hostOf(addr)
		}
	}
	return remoteIP(r)
}

const limiterIdle = 3 * time.Minute

type clientLimiter struct {
	l    *rate.Limiter
	seen time.Time
}

// limiters hands out one token bucket per client and drops buckets idle for
// longer than idle.
type limiters struct {
	mu      sync.Mutex
	limit   rate.Limit
	burst   int
	idle    time.Duration
	now     func() time.Time
	swept   time.Time
	clients map[string]*clientLimiter
}

func newLimiters(rps float64, burst int) *limiters {
	if burst <= 0 {
		burst = int(rps)
		if burst < 1 {
			burst = 1
		}
	}
	return &limiters{
		limit:   rate.Limit(rps),
		burst:   burst,
		idle:    limiterIdle,
		now:     time.Now,
		clients: map[string]*clientLimiter{},
	}
}

func (ls *limiters) get(key string) *rate.Limiter {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	now := ls.now()
	if now.Sub(ls.swept) >= ls.idle {
		for k, c := range ls.clients {
			if now.Sub(c.seen) >= ls.idle {
				delete(ls.clients, k)
			}
		}
		ls.swept = now
	}
	c, ok := ls.clients[key]
	if !ok {
		c = &clientLimiter{l: rate.NewLimiter(ls.limit, ls.burst)}
		ls.clients[key] = c
	}
	c.seen = now
	return c.l
}

func (ls *limiters) size() int {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	return len(ls.clients)
}

// RateLimit gives every client its own token bucket. Clients are keyed on the
// connection address, or on the forwarded address when trustProxy is set.
func RateLimit(rps float64, burst int, trustProxy bool) func(http.Handler) http.Handler {
	ls := newLimiters(rps, burst)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !ls.get(clientKey(r, trustProxy)).Allow() {
				w.Header().Set("Retry-After", "1")
				writeProblem(w, http.StatusTooManyRequests, "Too Many Requests", "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ---- Authentication ----

type ctxKey struct{}

func WithUser(ctx context.Context, u domain.User) context.Context {
	return context.WithValue(ctx, ctxKey{}, u)
}

func UserFrom(ctx context.Context) (domain.User, bool) {
	u, ok := ctx.Value(ctxKey{}).(domain.User)
	return u, ok
}

// Authenticate resolves the bearer token to the acting user.
func Authenticate(auth domain.AuthService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(h, "Bearer ")
			if !ok || strings.TrimSpace(token) == "" {
				w.Header().Set("WWW-Authenticate", `Bearer realm="reviewhub"`)
				writeProblem(w, http.StatusUnauthorized, "Unauthorized", "missing bearer token")
				return
			}
			u, err := auth.CurrentUser(r.Context(), strings.TrimSpace(token))
			if err != nil {
				w.Header().Set("WWW-Authenticate", `Bearer realm="reviewhub", error="invalid_token"`)
				writeError(w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), u)))
		})
	}
}

// requireReviews admits actors whose role (or manage_all) grants op on reviews.
func requireReviews(g *authz.Gate, op authz.ReviewOp) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u, ok := UserFrom(r.Context())
			if !ok {
				writeError(w, domain.ErrUnauthenticated)
				return
			}
			if err := g.CanAccessReviews(r.Context(), u, op); err != nil {
				writeError(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
