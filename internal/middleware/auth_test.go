package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"aipreview/internal/config"
	"aipreview/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-signing-secret"

func signToken(t *testing.T, secret string, mutate func(*Claims)) string {
	t.Helper()
	claims := &Claims{
		Role:      string(models.RoleBarangayOfficial),
		ScopeKind: string(models.ScopeBarangay),
		ScopeID:   uuid.NewString(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	if mutate != nil {
		mutate(claims)
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func authRouter(cfg *config.AuthConfig, extra ...gin.HandlerFunc) (*gin.Engine, *models.ActorContext) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	var captured models.ActorContext

	handlers := append([]gin.HandlerFunc{RequireAuth(cfg)}, extra...)
	handlers = append(handlers, func(c *gin.Context) {
		actor, _ := ActorFromContext(c)
		captured = actor
		c.JSON(http.StatusOK, gin.H{"actor_id": c.GetString(ActorIDKey)})
	})
	router.GET("/probe", handlers...)
	return router, &captured
}

func probe(router *gin.Engine, authorization string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestRequireAuthValidToken(t *testing.T) {
	cfg := &config.AuthConfig{JWTSecret: testSecret}
	router, captured := authRouter(cfg)

	actorID := uuid.New()
	unit := uuid.New()
	parent := uuid.New()
	token := signToken(t, testSecret, func(c *Claims) {
		c.Subject = actorID.String()
		c.ScopeID = unit.String()
		c.ParentCityID = parent.String()
	})

	w := probe(router, "Bearer "+token)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, actorID, captured.ID)
	assert.Equal(t, models.RoleBarangayOfficial, captured.Role)
	assert.Equal(t, models.Scope{Kind: models.ScopeBarangay, ID: unit}, captured.Scope)
	require.NotNil(t, captured.ParentCityID)
	assert.Equal(t, parent, *captured.ParentCityID)
}

func TestRequireAuthRejections(t *testing.T) {
	cfg := &config.AuthConfig{JWTSecret: testSecret}
	router, _ := authRouter(cfg)

	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"not a bearer token", "Basic abc123"},
		{"garbage token", "Bearer not-a-jwt"},
		{"wrong secret", "Bearer " + signToken(t, "other-secret", nil)},
		{"expired", "Bearer " + signToken(t, testSecret, func(c *Claims) {
			c.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Hour))
		})},
		{"no expiry", "Bearer " + signToken(t, testSecret, func(c *Claims) {
			c.ExpiresAt = nil
		})},
		{"subject is not a uuid", "Bearer " + signToken(t, testSecret, func(c *Claims) {
			c.Subject = "somebody"
		})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := probe(router, tt.header)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Contains(t, w.Body.String(), "UNAUTHORIZED")
		})
	}
}

func TestRequireAuthIssuer(t *testing.T) {
	cfg := &config.AuthConfig{JWTSecret: testSecret, RequireIssuer: "aip-identity"}
	router, _ := authRouter(cfg)

	good := signToken(t, testSecret, func(c *Claims) { c.Issuer = "aip-identity" })
	assert.Equal(t, http.StatusOK, probe(router, "Bearer "+good).Code)

	bad := signToken(t, testSecret, func(c *Claims) { c.Issuer = "someone-else" })
	assert.Equal(t, http.StatusUnauthorized, probe(router, "Bearer "+bad).Code)
}

func TestRequireAuthClockSkewGrace(t *testing.T) {
	cfg := &config.AuthConfig{JWTSecret: testSecret, ClockSkewGrace: 2 * time.Minute}
	router, _ := authRouter(cfg)

	justExpired := signToken(t, testSecret, func(c *Claims) {
		c.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-30 * time.Second))
	})
	assert.Equal(t, http.StatusOK, probe(router, "Bearer "+justExpired).Code)
}

func TestRequireRole(t *testing.T) {
	cfg := &config.AuthConfig{JWTSecret: testSecret}

	t.Run("allowed role passes", func(t *testing.T) {
		router, _ := authRouter(cfg, RequireRole(models.RoleBarangayOfficial, models.RoleAdmin))
		token := signToken(t, testSecret, nil)
		assert.Equal(t, http.StatusOK, probe(router, "Bearer "+token).Code)
	})

	t.Run("other role refused", func(t *testing.T) {
		router, _ := authRouter(cfg, RequireRole(models.RoleAdmin))
		token := signToken(t, testSecret, nil)
		w := probe(router, "Bearer "+token)
		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Contains(t, w.Body.String(), "FORBIDDEN")
	})
}
