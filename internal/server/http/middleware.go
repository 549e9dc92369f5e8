package httpserver

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"

	"github.com/readshelf/catalog-service/internal/domain"
)

type contextKey string

const ctxKeyUser contextKey = "user"

// Role names accepted by requireRole, matching the seeded roles table.
const (
	roleUser      = domain.RoleUser
	roleModerator = domain.RoleModerator
	roleAdmin     = domain.RoleAdmin
)

// identityMiddleware resolves HTTP Basic credentials into a user and stores
// it in the request context. Requests without credentials pass through
// anonymously; bad credentials are rejected so a caller never browses as
// anonymous by accident.
func (s *Server) identityMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		username, password, ok := r.BasicAuth()
		if !ok {
			next.ServeHTTP(w, r)
			return
		}

		user, err := s.verifier.Verify(r.Context(), username, password)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		ctx := context.WithValue(r.Context(), ctxKeyUser, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireUser rejects requests without an authenticated user.
func (s *Server) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if userFromContext(r.Context()) == nil {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requireRole rejects requests whose user does not hold one of the roles.
func (s *Server) requireRole(roles ...domain.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := userFromContext(r.Context())
			if user == nil {
				writeError(w, http.StatusUnauthorized, "authentication required")
				return
			}
			for _, role := range roles {
				if user.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			writeError(w, http.StatusForbidden, "insufficient role")
		})
	}
}

// userFromContext extracts the authenticated user, nil for anonymous.
func userFromContext(ctx context.Context) *domain.User {
	if u, ok := ctx.Value(ctxKeyUser).(*domain.User); ok {
		return u
	}
	return nil
}

// requestMetricsMiddleware observes request duration labeled by method,
// route pattern and status.
func (s *Server) requestMetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = "unmatched"
		}
		s.metrics.HTTPRequestDuration.
			WithLabelValues(r.Method, route, strconv.Itoa(ww.Status())).
			Observe(time.Since(start).Seconds())
	})
}

// submitRateLimit throttles review submissions per client IP.
func (s *Server) submitRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.allow(r.RemoteAddr) {
			writeError(w, http.StatusTooManyRequests, "too many review submissions, slow down")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ipLimiter keeps a token bucket per client IP. Entries idle for longer than
// staleAfter are dropped on the fly to bound memory.
type ipLimiter struct {
	mu       sync.Mutex
	limiters map[string]*ipLimiterEntry
	rate     rate.Limit
	burst    int
}

type ipLimiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

const staleAfter = 10 * time.Minute

func newIPLimiter(perSecond float64, burst int) *ipLimiter {
	if perSecond <= 0 {
		perSecond = 1
	}
	if burst < 1 {
		burst = 1
	}
	return &ipLimiter{
		limiters: make(map[string]*ipLimiterEntry),
		rate:     rate.Limit(perSecond),
		burst:    burst,
	}
}

func (l *ipLimiter) allow(addr string) bool {
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.limiters[addr]
	if !ok {
		entry = &ipLimiterEntry{limiter: rate.NewLimiter(l.rate, l.burst)}
		l.limiters[addr] = entry
	}
	entry.lastSeen = now

	for key, e := range l.limiters {
		if now.Sub(e.lastSeen) > staleAfter {
			delete(l.limiters, key)
		}
	}

	return entry.limiter.Allow()
}
