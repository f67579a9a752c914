package middleware

import (
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/httprate"
	"github.com/straye-as/pipeline-api/internal/auth"
	"github.com/straye-as/pipeline-api/internal/config"
	"github.com/straye-as/pipeline-api/internal/domain"
	"go.uber.org/zap"
)

const rateWindow = time.Minute

// RateLimiter throttles API traffic. Anonymous traffic is counted per client
// address, authenticated traffic per user so a user switching networks keeps
// one budget.
type RateLimiter struct {
	enabled  bool
	logger   *zap.Logger
	anon     func(http.Handler) http.Handler
	perUser  func(http.Handler) http.Handler
	freeIPs  map[string]struct{}
	exact    map[string]struct{}
	prefixes []string
}

func NewRateLimiter(cfg *config.RateLimitConfig, logger *zap.Logger) *RateLimiter {
	rl := &RateLimiter{
		enabled: cfg.Enabled,
		logger:  logger,
		freeIPs: make(map[string]struct{}, len(cfg.WhitelistIPs)),
		exact:   make(map[string]struct{}, len(cfg.WhitelistPaths)),
	}
	for _, ip := range cfg.WhitelistIPs {
		rl.freeIPs[ip] = struct{}{}
	}
	for _, p := range cfg.WhitelistPaths {
		if prefix, ok := strings.CutSuffix(p, "/*"); ok {
			rl.prefixes = append(rl.prefixes, prefix)
			continue
		}
		rl.exact[p] = struct{}{}
	}

	rl.anon = rl.window(cfg.RequestsPerMinute, httprate.KeyByRealIP)
	rl.perUser = rl.window(cfg.RequestsPerMinuteAuth, requesterKey)

	if cfg.Enabled {
		logger.Info("rate limiting enabled",
			zap.Int("anonymous_per_minute", cfg.RequestsPerMinute),
			zap.Int("user_per_minute", cfg.RequestsPerMinuteAuth),
			zap.Int("exempt_paths", len(cfg.WhitelistPaths)),
		)
	}
	return rl
}

func (rl *RateLimiter) window(limit int, key httprate.KeyFunc) func(http.Handler) http.Handler {
	return httprate.Limit(limit, rateWindow,
		httprate.WithKeyFuncs(key),
		httprate.WithLimitHandler(rl.reject),
	)
}

// LimitByIP counts every non-exempt request against the client address.
// It runs ahead of authentication.
func (rl *RateLimiter) LimitByIP(next http.Handler) http.Handler {
	return rl.guard(next, false)
}

// Limit counts authenticated requests per user and falls back to the client
// address when no user is on the context.
func (rl *RateLimiter) Limit(next http.Handler) http.Handler {
	return rl.guard(next, true)
}

func (rl *RateLimiter) guard(next http.Handler, byUser bool) http.Handler {
	if !rl.enabled {
		return next
	}
	anon := rl.anon(next)
	perUser := rl.perUser(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case rl.exempt(r):
			next.ServeHTTP(w, r)
		case byUser && requester(r) != nil:
			perUser.ServeHTTP(w, r)
		default:
			anon.ServeHTTP(w, r)
		}
	})
}

func (rl *RateLimiter) exempt(r *http.Request) bool {
	if _, ok := rl.exact[r.URL.Path]; ok {
		return true
	}
	for _, prefix := range rl.prefixes {
		if strings.HasPrefix(r.URL.Path, prefix) {
			return true
		}
	}
	_, ok := rl.freeIPs[remoteIP(r)]
	return ok
}

func (rl *RateLimiter) reject(w http.ResponseWriter, r *http.Request) {
	fields := []zap.Field{
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.String("client_ip", remoteIP(r)),
	}
	if u := requester(r); u != nil {
		fields = append(fields, zap.Uint("user_id", u.UserID))
	}
	rl.logger.Warn("rate limit exceeded", fields...)

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Retry-After", strconv.Itoa(int(rateWindow.Seconds())))
	w.WriteHeader(http.StatusTooManyRequests)
	_ = json.NewEncoder(w).Encode(domain.APIError{
		Type:   domain.ErrorTypeRateLimited,
		Title:  http.StatusText(http.StatusTooManyRequests),
		Status: http.StatusTooManyRequests,
		Detail: "Request budget exhausted, retry after the window resets",
	})
}

func requester(r *http.Request) *auth.UserContext {
	if u, ok := auth.FromContext(r.Context()); ok {
		return u
	}
	return nil
}

func requesterKey(r *http.Request) (string, error) {
	if u := requester(r); u != nil {
		return "user:" + strconv.FormatUint(uint64(u.UserID), 10), nil
	}
	return httprate.KeyByRealIP(r)
}

// remoteIP prefers the proxy headers over the socket address
func remoteIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
