package auth

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"github.com/janhq/picture-api/internal/config"
)

const subjectContextKey = "auth_subject"

// Validator validates JWTs using JWKS.
type Validator struct {
	cfg  *config.Config
	log  zerolog.Logger
	jwks *keyfunc.JWKS
}

// NewValidator initializes JWKS fetching when auth is enabled.
func NewValidator(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Validator, error) {
	logger := log.With().Str("component", "auth").Logger()
	if !cfg.AuthEnabled {
		logger.Warn().Msg("authentication disabled; admin routes are open")
		return &Validator{cfg: cfg, log: logger}, nil
	}

	options := keyfunc.Options{
		Ctx:               ctx,
		RefreshInterval:   time.Hour,
		RefreshUnknownKID: true,
		RefreshErrorHandler: func(err error) {
			logger.Error().Err(err).Msg("jwks refresh error")
		},
	}

	jwks, err := keyfunc.Get(cfg.AuthJWKSURL, options)
	if err != nil {
		return nil, err
	}

	return NewValidatorWithJWKS(cfg, jwks, logger), nil
}

// NewValidatorWithJWKS builds a validator over an already loaded key set.
func NewValidatorWithJWKS(cfg *config.Config, jwks *keyfunc.JWKS, log zerolog.Logger) *Validator {
	return &Validator{cfg: cfg, log: log, jwks: jwks}
}

// Ready reports whether tokens can be validated.
func (v *Validator) Ready() bool {
	return v != nil && (!v.cfg.AuthEnabled || v.jwks != nil)
}

// Middleware enforces JWT auth when enabled and records the token subject.
func (v *Validator) Middleware() gin.HandlerFunc {
	if v == nil || !v.cfg.AuthEnabled {
		return func(c *gin.Context) {
			c.Next()
		}
	}

	parserOptions := []jwt.ParserOption{
		jwt.WithIssuer(v.cfg.AuthIssuer),
		jwt.WithValidMethods([]string{"RS256", "RS384", "RS512"}),
		jwt.WithExpirationRequired(),
	}
	if aud := strings.TrimSpace(v.cfg.Account); aud != "" {
		parserOptions = append(parserOptions, jwt.WithAudience(aud))
	}

	return func(c *gin.Context) {
		tokenString := bearerToken(c.GetHeader("Authorization"))
		if tokenString == "" {
			abort(c, http.StatusUnauthorized, "missing bearer token")
			return
		}

		token, err := jwt.Parse(tokenString, v.jwks.Keyfunc, parserOptions...)
		if err != nil || !token.Valid {
			v.log.Debug().Err(err).Msg("rejected token")
			abort(c, http.StatusUnauthorized, "invalid token")
			return
		}

		subject, _ := token.Claims.GetSubject()
		if role := v.cfg.AuthAdminRole; role != "" && !hasRole(token.Claims, role, v.cfg.Account) {
			v.log.Warn().Str("subject", subject).Str("role", role).Msg("token lacks admin role")
			abort(c, http.StatusForbidden, "token lacks the "+role+" role")
			return
		}

		c.Set(subjectContextKey, subject)
		c.Next()
	}
}

// Subject returns the subject of the validated token, or "" when auth is disabled.
func Subject(c *gin.Context) string {
	return c.GetString(subjectContextKey)
}

func bearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// hasRole looks for role among the Keycloak realm roles, the roles granted for client, and a
// top-level "roles" claim.
func hasRole(claims jwt.Claims, role, client string) bool {
	mc, ok := claims.(jwt.MapClaims)
	if !ok {
		return false
	}
	lists := []any{mc["roles"]}
	if realm, ok := mc["realm_access"].(map[string]any); ok {
		lists = append(lists, realm["roles"])
	}
	if resources, ok := mc["resource_access"].(map[string]any); ok && client != "" {
		if access, ok := resources[client].(map[string]any); ok {
			lists = append(lists, access["roles"])
		}
	}
	for _, list := range lists {
		roles, _ := list.([]any)
		for _, r := range roles {
			if r == role {
				return true
			}
		}
	}
	return false
}

func abort(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{
		"success": false,
		"message": message,
		"error":   message,
	})
}
