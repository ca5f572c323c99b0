package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/docflow/docflow/internal/document"
	"github.com/docflow/docflow/internal/tokens"
)

const testSecret = "test-actor-secret"

func actorEchoRouter(insecure bool) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/whoami", ActorMiddleware(testSecret, insecure), func(c *gin.Context) {
		a := ActorFromContext(c)
		c.JSON(http.StatusOK, a)
	})
	return r
}

func TestActorMiddleware_ValidToken(t *testing.T) {
	r := actorEchoRouter(false)

	tok, err := tokens.GenerateActorToken(testSecret, document.Actor{ID: "sec1", Role: document.RoleSecretary}, time.Minute)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"id":"sec1"`)
	require.Contains(t, w.Body.String(), `"role":"SECRETARY"`)
}

func TestActorMiddleware_MissingHeader(t *testing.T) {
	r := actorEchoRouter(false)
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestActorMiddleware_WrongSecret(t *testing.T) {
	r := actorEchoRouter(false)

	tok, err := tokens.GenerateActorToken("other-secret", document.Actor{ID: "sec1", Role: document.RoleSecretary}, time.Minute)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestActorMiddleware_ExpiredToken(t *testing.T) {
	r := actorEchoRouter(false)

	tok, err := tokens.GenerateActorToken(testSecret, document.Actor{ID: "sec1", Role: document.RoleSecretary}, -time.Minute)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestActorMiddleware_UnknownRoleClaim(t *testing.T) {
	r := actorEchoRouter(false)

	tok, err := tokens.GenerateActorToken(testSecret, document.Actor{ID: "sec1", Role: document.Role("ADMIN")}, time.Minute)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestActorMiddleware_InsecureHeaders(t *testing.T) {
	r := actorEchoRouter(true)

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("X-Actor-Id", "alice")
	req.Header.Set("X-Actor-Role", "CITIZEN")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"id":"alice"`)

	// bad role header is rejected outright
	req = httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("X-Actor-Id", "alice")
	req.Header.Set("X-Actor-Role", "SUPERUSER")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestActorMiddleware_InsecureDisabledIgnoresHeaders(t *testing.T) {
	r := actorEchoRouter(false)

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("X-Actor-Id", "alice")
	req.Header.Set("X-Actor-Role", "CITIZEN")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}
