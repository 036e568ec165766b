// Package middleware provides authentication and error-handling middleware
// for the Gin web framework.
package middleware

import (
	"net/http"
	"strings"

	"aipreview/internal/config"
	"aipreview/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Context keys for the authenticated actor
const (
	// ActorKey is the key used to store the actor context
	ActorKey = "actor"
	// ActorIDKey is the key used to store the actor id as a string
	ActorIDKey = "actor_id"
)

// Claims is the JWT payload issued by the identity provider. The subject
// carries the actor id; jurisdiction travels in the custom claims.
type Claims struct {
	Role         string `json:"role"`
	ScopeKind    string `json:"scope_kind"`
	ScopeID      string `json:"scope_id,omitempty"`
	ParentCityID string `json:"parent_city_id,omitempty"`
	jwt.RegisteredClaims
}

// RequireAuth validates the bearer token and stores the resolved actor
// context for handlers.
func RequireAuth(cfg *config.AuthConfig) gin.HandlerFunc {
	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithExpirationRequired(),
	}
	if cfg.ClockSkewGrace > 0 {
		parserOpts = append(parserOpts, jwt.WithLeeway(cfg.ClockSkewGrace))
	}
	if cfg.RequireIssuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(cfg.RequireIssuer))
	}

	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			unauthorized(c, "Authorization header is required")
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader {
			unauthorized(c, "Invalid authorization header format")
			return
		}

		token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
			return []byte(cfg.JWTSecret), nil
		}, parserOpts...)
		if err != nil || !token.Valid {
			unauthorized(c, "Invalid or expired token")
			return
		}

		claims, ok := token.Claims.(*Claims)
		if !ok {
			unauthorized(c, "Invalid token claims")
			return
		}

		actor, err := actorFromClaims(claims)
		if err != nil {
			unauthorized(c, "Invalid token claims")
			return
		}

		c.Set(ActorKey, actor)
		c.Set(ActorIDKey, actor.ID.String())
		c.Next()
	}
}

// actorFromClaims builds the actor context the services consume.
func actorFromClaims(claims *Claims) (models.ActorContext, error) {
	actorID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return models.ActorContext{}, err
	}

	actor := models.ActorContext{
		ID:   actorID,
		Role: models.Role(claims.Role),
		Scope: models.Scope{
			Kind: models.ScopeKind(claims.ScopeKind),
		},
	}
	if actor.Scope.Kind == "" {
		actor.Scope.Kind = models.ScopeNone
	}
	if claims.ScopeID != "" {
		scopeID, err := uuid.Parse(claims.ScopeID)
		if err != nil {
			return models.ActorContext{}, err
		}
		actor.Scope.ID = scopeID
	}
	if claims.ParentCityID != "" {
		parentID, err := uuid.Parse(claims.ParentCityID)
		if err != nil {
			return models.ActorContext{}, err
		}
		actor.ParentCityID = &parentID
	}
	return actor, nil
}

// RequireRole allows only the listed roles past. Must run after RequireAuth.
func RequireRole(roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := ActorFromContext(c)
		if !ok {
			c.JSON(http.StatusForbidden, gin.H{
				"error": "Actor not found",
				"code":  "FORBIDDEN",
			})
			c.Abort()
			return
		}

		for _, role := range roles {
			if actor.Role == role {
				c.Next()
				return
			}
		}

		c.JSON(http.StatusForbidden, gin.H{
			"error": "Insufficient permissions",
			"code":  "FORBIDDEN",
		})
		c.Abort()
	}
}

// ActorFromContext returns the actor stored by RequireAuth.
func ActorFromContext(c *gin.Context) (models.ActorContext, bool) {
	value, exists := c.Get(ActorKey)
	if !exists {
		return models.ActorContext{}, false
	}
	actor, ok := value.(models.ActorContext)
	return actor, ok
}

func unauthorized(c *gin.Context, message string) {
	c.JSON(http.StatusUnauthorized, gin.H{
		"error": message,
		"code":  "UNAUTHORIZED",
	})
	c.Abort()
}
