package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/janhq/picture-api/internal/config"
)

const (
	testIssuer = "https://auth.example.com/realms/jan"
	testKID    = "test-key"
)

func newTestRouter(t *testing.T, cfg *config.Config, key *rsa.PrivateKey) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	jwks := keyfunc.NewGiven(map[string]keyfunc.GivenKey{
		testKID: keyfunc.NewGivenRSA(&key.PublicKey, keyfunc.GivenKeyOptions{}),
	})
	v := NewValidatorWithJWKS(cfg, jwks, zerolog.Nop())

	router := gin.New()
	router.GET("/admin", v.Middleware(), func(c *gin.Context) {
		c.String(http.StatusOK, Subject(c))
	})
	return router
}

func signToken(t *testing.T, key *rsa.PrivateKey, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = testKID
	signed, err := token.SignedString(key)
	require.NoError(t, err)
	return signed
}

func TestMiddlewareAcceptsValidToken(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	cfg := &config.Config{AuthEnabled: true, AuthIssuer: testIssuer, Account: "account"}
	router := newTestRouter(t, cfg, key)

	token := signToken(t, key, jwt.MapClaims{
		"iss": testIssuer,
		"aud": "account",
		"sub": "user-123",
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "user-123", w.Body.String())
}

func TestMiddlewareRejectsBadTokens(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	other, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	cfg := &config.Config{AuthEnabled: true, AuthIssuer: testIssuer}
	router := newTestRouter(t, cfg, key)

	valid := jwt.MapClaims{"iss": testIssuer, "sub": "u", "exp": time.Now().Add(time.Hour).Unix()}
	tests := map[string]string{
		"missing header": "",
		"not bearer":     "Basic abc",
		"wrong issuer":   "Bearer " + signToken(t, key, jwt.MapClaims{"iss": "https://evil.example.com", "exp": time.Now().Add(time.Hour).Unix()}),
		"expired":        "Bearer " + signToken(t, key, jwt.MapClaims{"iss": testIssuer, "exp": time.Now().Add(-time.Hour).Unix()}),
		"no expiry":      "Bearer " + signToken(t, key, jwt.MapClaims{"iss": testIssuer}),
		"wrong key":      "Bearer " + signToken(t, other, valid),
	}

	for name, header := range tests {
		t.Run(name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/admin", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			router.ServeHTTP(w, req)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
		})
	}
}

func TestMiddlewareRequiresAdminRole(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	cfg := &config.Config{AuthEnabled: true, AuthIssuer: testIssuer, Account: "picture-api", AuthAdminRole: "picture-admin"}
	router := newTestRouter(t, cfg, key)

	claims := func(extra jwt.MapClaims) jwt.MapClaims {
		c := jwt.MapClaims{"iss": testIssuer, "aud": "picture-api", "sub": "editor", "exp": time.Now().Add(time.Hour).Unix()}
		for k, v := range extra {
			c[k] = v
		}
		return c
	}
	tests := []struct {
		name   string
		claims jwt.MapClaims
		status int
	}{
		{"no roles", claims(nil), http.StatusForbidden},
		{"other realm role", claims(jwt.MapClaims{"realm_access": map[string]any{"roles": []string{"viewer"}}}), http.StatusForbidden},
		{"realm role", claims(jwt.MapClaims{"realm_access": map[string]any{"roles": []string{"viewer", "picture-admin"}}}), http.StatusOK},
		{"client role", claims(jwt.MapClaims{"resource_access": map[string]any{"picture-api": map[string]any{"roles": []string{"picture-admin"}}}}), http.StatusOK},
		{"role for another client", claims(jwt.MapClaims{"resource_access": map[string]any{"billing": map[string]any{"roles": []string{"picture-admin"}}}}), http.StatusForbidden},
		{"top level roles", claims(jwt.MapClaims{"roles": []string{"picture-admin"}}), http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/admin", nil)
			req.Header.Set("Authorization", "Bearer "+signToken(t, key, tt.claims))
			router.ServeHTTP(w, req)
			assert.Equal(t, tt.status, w.Code)
		})
	}
}

func TestMiddlewareDisabledPassesThrough(t *testing.T) {
	gin.SetMode(gin.TestMode)
	v := &Validator{cfg: &config.Config{AuthEnabled: false}, log: zerolog.Nop()}
	router := gin.New()
	router.GET("/admin", v.Middleware(), func(c *gin.Context) {
		c.String(http.StatusOK, "open:"+Subject(c))
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "open:", w.Body.String())
	assert.True(t, v.Ready())
}

func TestBearerToken(t *testing.T) {
	assert.Equal(t, "abc", bearerToken("Bearer abc"))
	assert.Equal(t, "abc", bearerToken("bearer  abc "))
	assert.Equal(t, "", bearerToken("Token abc"))
	assert.Equal(t, "", bearerToken(""))
}
