package auth

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"go.uber.org/fx"

	"github.com/emergent-company/testmind/internal/config"
	"github.com/emergent-company/testmind/pkg/apperror"
	"github.com/emergent-company/testmind/pkg/logger"
)

var Module = fx.Module("auth",
	fx.Provide(NewMiddleware),
)

// AuthUser represents an authenticated user
type AuthUser struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
	// Projects the user may access. Empty means every project.
	Projects []string `json:"projects,omitempty"`
}

// CanAccess reports whether the user may touch projectID.
func (u *AuthUser) CanAccess(projectID string) bool {
	return len(u.Projects) == 0 || slices.Contains(u.Projects, projectID)
}

// Claims is the JWT payload of a session token.
type Claims struct {
	jwt.RegisteredClaims
	Email    string   `json:"email,omitempty"`
	Projects []string `json:"projects,omitempty"`
}

type contextKey string

const UserContextKey contextKey = "auth_user"

// GetUser retrieves the authenticated user from the Echo context
func GetUser(c echo.Context) *AuthUser {
	if user, ok := c.Get(string(UserContextKey)).(*AuthUser); ok {
		return user
	}
	return nil
}

// RequireProject returns the current user after checking project access:
// 401 without a user, 403 when the project is outside the token's projects.
func RequireProject(c echo.Context, projectID string) (*AuthUser, error) {
	user := GetUser(c)
	if user == nil {
		return nil, apperror.ErrUnauthorized
	}
	if projectID != "" && !user.CanAccess(projectID) {
		return nil, apperror.NewForbidden("no access to project " + projectID)
	}
	return user, nil
}

// Middleware verifies HS256 bearer tokens.
type Middleware struct {
	cfg *config.AuthConfig
	log *slog.Logger
	now func() time.Time
}

func NewMiddleware(cfg *config.Config, log *slog.Logger) *Middleware {
	return &Middleware{
		cfg: &cfg.Auth,
		log: log.With(logger.Scope("auth")),
		now: time.Now,
	}
}

// RequireAuth returns middleware that requires authentication
func (m *Middleware) RequireAuth() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if m.cfg.Disabled {
				c.Set(string(UserContextKey), &AuthUser{ID: m.cfg.DevUserID})
				return next(c)
			}

			token := extractToken(c.Request())
			if token == "" {
				return apperror.ErrMissingToken
			}

			user, err := m.verify(token)
			if err != nil {
				m.log.Warn("authentication failed", logger.Error(err))
				return apperror.ErrInvalidToken.WithInternal(err)
			}

			c.Set(string(UserContextKey), user)
			return next(c)
		}
	}
}

// extractToken reads the bearer token, falling back to ?token= for
// EventSource clients that cannot set headers.
func extractToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	return r.URL.Query().Get("token")
}

func (m *Middleware) verify(raw string) (*AuthUser, error) {
	if m.cfg.JWTSecret == "" {
		return nil, errors.New("no token secret configured")
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims,
		func(t *jwt.Token) (any, error) { return []byte(m.cfg.JWTSecret), nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(m.cfg.Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return nil, err
	}
	if claims.Subject == "" {
		return nil, errors.New("token has no subject")
	}

	return &AuthUser{
		ID:       claims.Subject,
		Email:    claims.Email,
		Projects: claims.Projects,
	}, nil
}

// IssueToken signs a session token for user. It backs the dev login and tests.
func IssueToken(cfg *config.AuthConfig, user AuthUser, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			Issuer:    cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Email:    user.Email,
		Projects: user.Projects,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.JWTSecret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}
