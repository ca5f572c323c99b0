package tokens

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/docflow/docflow/internal/document"
)

// GenerateActorToken creates the signed HS256 token the upstream auth
// layer hands to clients: the workflow service trusts its `sub` and
// `role` claims without further identity checks.
func GenerateActorToken(secret string, actor document.Actor, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"sub":  actor.ID,
		"role": string(actor.Role),
		"iat":  time.Now().Unix(),
		"exp":  time.Now().Add(ttl).Unix(),
	}
	jt := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return jt.SignedString([]byte(secret))
}
