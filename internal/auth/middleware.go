package auth

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/straye-as/pipeline-api/internal/config"
	"github.com/straye-as/pipeline-api/internal/domain"
	"go.uber.org/zap"
)

// ProfileLoader resolves a user id to the profile holding its roles
type ProfileLoader interface {
	GetProfile(ctx context.Context, userID uint) (*domain.UserProfile, error)
}

// Middleware handles authentication for HTTP requests
type Middleware struct {
	jwtValidator *JWTValidator
	profiles     ProfileLoader
	logger       *zap.Logger
}

// NewMiddleware creates a new authentication middleware
func NewMiddleware(cfg *config.Config, profiles ProfileLoader, logger *zap.Logger) *Middleware {
	return &Middleware{
		jwtValidator: NewJWTValidator(&cfg.Auth),
		profiles:     profiles,
		logger:       logger,
	}
}

// Authenticate validates the bearer token and loads the caller's profile
func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "Unauthorized: missing authorization header", http.StatusUnauthorized)
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			http.Error(w, "Unauthorized: invalid authorization header format", http.StatusUnauthorized)
			return
		}

		userID, claims, err := m.jwtValidator.ValidateToken(parts[1])
		if err != nil {
			m.logger.Warn("token validation failed",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("remote_addr", r.RemoteAddr),
				zap.Error(err),
			)
			http.Error(w, "Unauthorized: "+err.Error(), http.StatusUnauthorized)
			return
		}

		profile, err := m.profiles.GetProfile(r.Context(), userID)
		if err != nil {
			m.logger.Warn("profile lookup failed",
				zap.Uint("user_id", userID),
				zap.Error(err),
			)
			http.Error(w, "Unauthorized: unknown user", http.StatusUnauthorized)
			return
		}

		userCtx := &UserContext{
			UserID:   userID,
			Username: profile.Username(),
			Profile:  profile,
		}
		if userCtx.Username == "" {
			userCtx.Username = claims.Username
		}

		m.logger.Debug("request authenticated",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Uint("user_id", userID),
			zap.Strings("roles", userCtx.RolesAsStrings()),
			zap.Duration("auth_duration", time.Since(start)),
		)

		next.ServeHTTP(w, r.WithContext(WithUserContext(r.Context(), userCtx)))
	})
}

// RequireRole rejects callers that satisfy none of the roles
func (m *Middleware) RequireRole(roles ...domain.RoleName) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userCtx, ok := FromContext(r.Context())
			if !ok || !userCtx.HasAnyRole(roles...) {
				http.Error(w, "Forbidden: insufficient role", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
