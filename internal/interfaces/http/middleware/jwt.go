package middleware

import (
	"errors"
	"net/http"
	"strings"

	fiscalapp "github.com/kwanza/fiscal/internal/application/fiscal"
	"github.com/kwanza/fiscal/internal/domain/shared"
	"github.com/kwanza/fiscal/internal/infrastructure/auth"
	"github.com/kwanza/fiscal/internal/infrastructure/logger"
	"github.com/kwanza/fiscal/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Gin context keys set by JWTAuth
const (
	JWTClaimsKey = "jwt_claims"
	PrincipalKey = "principal"
	BearerPrefix = "Bearer "
)

// TokenVerifier validates bearer tokens. Implemented by auth.JWTService.
type TokenVerifier interface {
	ValidateAccessToken(token string) (*auth.Claims, error)
}

// JWTAuth requires a valid access token and exposes the caller as a
// fiscal principal to handlers and as tenant/user fields to the request logger.
func JWTAuth(verifier TokenVerifier, log *zap.Logger) gin.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, BearerPrefix) {
			abortUnauthorized(c, log, auth.ErrInvalidToken, "Authentication required")
			return
		}
		token := strings.TrimSpace(strings.TrimPrefix(header, BearerPrefix))
		if token == "" {
			abortUnauthorized(c, log, auth.ErrInvalidToken, "Authentication required")
			return
		}

		claims, err := verifier.ValidateAccessToken(token)
		if err != nil {
			abortUnauthorized(c, log, err, authErrorMessage(err))
			return
		}
		tenantID, userID, err := claims.IDs()
		if err != nil {
			abortUnauthorized(c, log, err, authErrorMessage(err))
			return
		}

		c.Set(JWTClaimsKey, claims)
		c.Set(PrincipalKey, fiscalapp.Principal{TenantID: tenantID, UserID: userID})

		ctx := c.Request.Context()
		ctx, _ = logger.WithPrincipal(ctx, logger.FromContext(ctx), claims.TenantID, claims.UserID)
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

func authErrorMessage(err error) string {
	switch {
	case errors.Is(err, auth.ErrExpiredToken):
		return "Token has expired"
	case errors.Is(err, auth.ErrTokenNotYetValid):
		return "Token is not yet valid"
	case errors.Is(err, auth.ErrInvalidTokenType):
		return "Invalid token type"
	case errors.Is(err, auth.ErrMissingTenantID), errors.Is(err, auth.ErrMissingUserID):
		return "Token does not identify a tenant and user"
	default:
		return "Invalid token"
	}
}

func abortUnauthorized(c *gin.Context, log *zap.Logger, err error, message string) {
	log.Warn("JWT authentication failed",
		zap.Error(err),
		zap.String("path", c.Request.URL.Path),
		zap.String("request_id", GetRequestID(c)),
	)
	c.AbortWithStatusJSON(http.StatusUnauthorized,
		dto.NewErrorResponse(shared.CodeUnauthorized, message, GetRequestID(c)))
}

// GetPrincipal returns the authenticated principal set by JWTAuth
func GetPrincipal(c *gin.Context) (fiscalapp.Principal, bool) {
	if v, ok := c.Get(PrincipalKey); ok {
		if p, ok := v.(fiscalapp.Principal); ok {
			return p, true
		}
	}
	return fiscalapp.Principal{}, false
}

// GetJWTClaims retrieves JWT claims from gin.Context
func GetJWTClaims(c *gin.Context) *auth.Claims {
	if v, ok := c.Get(JWTClaimsKey); ok {
		if claims, ok := v.(*auth.Claims); ok {
			return claims
		}
	}
	return nil
}
