package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/require"

	"social-chat/internal/observability"
)

const testSecret = "test-secret"

func signToken(t *testing.T, secret, subject, role string, expires time.Time) string {
	t.Helper()
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func setupAuthRouter(mw gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/whoami", mw, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_id": c.GetString(UserIDKey), "role": c.GetString(RoleKey)})
	})
	return r
}

func TestAuthMiddlewareAcceptsValidToken(t *testing.T) {
	r := setupAuthRouter(AuthMiddleware(NewTokenVerifier(testSecret)))
	token := signToken(t, testSecret, "alice", "user", time.Now().Add(time.Hour))

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"user_id":"alice","role":"user"}`, rec.Body.String())
}

func TestAuthMiddlewareRejects(t *testing.T) {
	r := setupAuthRouter(AuthMiddleware(NewTokenVerifier(testSecret)))

	cases := map[string]string{
		"missing":      "",
		"wrong scheme": "Basic abc",
		"bad secret":   "Bearer " + signToken(t, "other", "alice", "", time.Now().Add(time.Hour)),
		"expired":      "Bearer " + signToken(t, testSecret, "alice", "", time.Now().Add(-time.Hour)),
		"no subject":   "Bearer " + signToken(t, testSecret, "", "", time.Now().Add(time.Hour)),
	}
	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)
			require.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}

func TestWSAuthMiddlewareReadsQueryToken(t *testing.T) {
	r := setupAuthRouter(WSAuthMiddleware(NewTokenVerifier(testSecret)))
	token := signToken(t, testSecret, "bob", "", time.Now().Add(time.Hour))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/whoami?token="+token, nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/whoami", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequestIDGeneratedAndPropagated(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID())
	var seen string
	r.GET("/", func(c *gin.Context) {
		seen = observability.RequestIDFromContext(c.Request.Context())
		c.Status(http.StatusNoContent)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NotEmpty(t, seen)
	require.Equal(t, seen, rec.Header().Get(observability.RequestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(observability.RequestIDHeader, "req-42")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, "req-42", seen)
}
