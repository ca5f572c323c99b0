package middleware

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/docflow/docflow/internal/document"
)

const actorContextKey = "actor"

// ActorFromContext returns the authenticated actor placed on the context
// by ActorMiddleware. Zero value when the middleware did not run.
func ActorFromContext(c *gin.Context) document.Actor {
	if v, ok := c.Get(actorContextKey); ok {
		if a, ok := v.(document.Actor); ok {
			return a
		}
	}
	return document.Actor{}
}

// ActorMiddleware resolves the current actor. Authentication itself is an
// external concern: the upstream auth layer issues a short-lived HS256
// token carrying `sub` and `role`, and this middleware only decodes it.
// With insecureHeaders enabled (integration tests) the actor may instead
// be supplied via X-Actor-Id / X-Actor-Role headers.
func ActorMiddleware(secret string, insecureHeaders bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if insecureHeaders {
			if id := c.GetHeader("X-Actor-Id"); id != "" {
				role := document.Role(c.GetHeader("X-Actor-Role"))
				if !role.Valid() {
					c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unknown actor role"})
					return
				}
				setActor(c, document.Actor{ID: id, Role: role})
				c.Next()
				return
			}
		}

		auth := c.GetHeader("Authorization")
		if auth == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing Authorization header"})
			return
		}
		var raw string
		if n, _ := fmt.Sscanf(auth, "Bearer %s", &raw); n != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid Authorization header"})
			return
		}

		claims := jwt.MapClaims{}
		_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
			return []byte(secret), nil
		}, jwt.WithValidMethods([]string{"HS256"}))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token", "details": err.Error()})
			return
		}

		sub, _ := claims["sub"].(string)
		roleStr, _ := claims["role"].(string)
		role := document.Role(roleStr)
		if sub == "" || !role.Valid() {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "token missing actor identity"})
			return
		}
		setActor(c, document.Actor{ID: sub, Role: role})
		c.Next()
	}
}

func setActor(c *gin.Context, a document.Actor) {
	c.Set(actorContextKey, a)
	// claims map keeps the rate limiters' per-subject keying working
	c.Set("claims", map[string]interface{}{"sub": a.ID, "role": string(a.Role)})
}
