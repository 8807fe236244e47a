package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/kwanza/fiscal/internal/infrastructure/auth"
	"github.com/kwanza/fiscal/internal/infrastructure/config"
	"github.com/kwanza/fiscal/internal/infrastructure/logger"
	"github.com/kwanza/fiscal/internal/interfaces/http/dto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestJWTService() *auth.JWTService {
	return auth.NewJWTService(config.JWTConfig{Secret: "test-secret-key-at-least-32-chars", Issuer: "kwanza-identity"})
}

func jwtRouter(svc *auth.JWTService) *gin.Engine {
	router := gin.New()
	router.Use(RequestID(), JWTAuth(svc, nil))
	router.GET("/documents", func(c *gin.Context) {
		p, ok := GetPrincipal(c)
		if !ok {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"tenant_id":     p.TenantID,
			"user_id":       p.UserID,
			"log_tenant_id": logger.GetTenantID(c.Request.Context()),
			"username":      GetJWTClaims(c).Username,
		})
	})
	return router
}

func TestJWTAuth_ValidToken(t *testing.T) {
	svc := newTestJWTService()
	tenantID, userID := uuid.New(), uuid.New()
	token, _, err := svc.GenerateAccessToken(auth.TokenInput{TenantID: tenantID, UserID: userID, Username: "contabilista"})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/documents", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	jwtRouter(svc).ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, tenantID.String(), body["tenant_id"])
	assert.Equal(t, userID.String(), body["user_id"])
	assert.Equal(t, tenantID.String(), body["log_tenant_id"])
	assert.Equal(t, "contabilista", body["username"])
}

func TestJWTAuth_Rejections(t *testing.T) {
	svc := newTestJWTService()
	expiredToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "kwanza-identity",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
		TenantID:  uuid.NewString(),
		UserID:    uuid.NewString(),
		TokenType: auth.TokenTypeAccess,
	}).SignedString([]byte("test-secret-key-at-least-32-chars"))
	require.NoError(t, err)

	tests := []struct {
		name    string
		header  string
		message string
	}{
		{"missing header", "", "Authentication required"},
		{"basic scheme", "Basic dXNlcjpwYXNz", "Authentication required"},
		{"empty bearer", "Bearer ", "Authentication required"},
		{"garbage token", "Bearer not.a.jwt", "Invalid token"},
		{"expired token", "Bearer " + expiredToken, "Token has expired"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/documents", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			req.Header.Set(RequestIDHeader, "req-auth")
			w := httptest.NewRecorder()
			jwtRouter(svc).ServeHTTP(w, req)

			require.Equal(t, http.StatusUnauthorized, w.Code)
			var resp dto.Response
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.False(t, resp.Success)
			require.NotNil(t, resp.Error)
			assert.Equal(t, "UNAUTHORIZED", resp.Error.Code)
			assert.Equal(t, tt.message, resp.Error.Message)
			assert.Equal(t, "req-auth", resp.Error.RequestID)
		})
	}
}

func TestGetPrincipal_Missing(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	_, ok := GetPrincipal(c)
	assert.False(t, ok)
	assert.Nil(t, GetJWTClaims(c))
}
