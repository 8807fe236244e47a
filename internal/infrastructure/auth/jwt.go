// Package auth verifies the bearer tokens issued by the identity provider
// and turns them into the tenant/user principal fiscal operations act for.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/kwanza/fiscal/internal/infrastructure/config"
)

// TokenType represents the type of JWT token
type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// clock skew tolerated between the identity provider and this service
const leeway = 30 * time.Second

var (
	ErrInvalidToken     = errors.New("invalid token")
	ErrExpiredToken     = errors.New("token has expired")
	ErrInvalidTokenType = errors.New("invalid token type")
	ErrInvalidClaims    = errors.New("invalid token claims")
	ErrTokenNotYetValid = errors.New("token is not yet valid")
	ErrMissingTenantID  = errors.New("missing tenant_id in claims")
	ErrMissingUserID    = errors.New("missing user_id in claims")
)

// Claims are the custom claims carried by identity provider tokens
type Claims struct {
	jwt.RegisteredClaims
	TenantID    string    `json:"tenant_id"`
	UserID      string    `json:"user_id"`
	Username    string    `json:"username,omitempty"`
	Permissions []string  `json:"permissions,omitempty"`
	TokenType   TokenType `json:"token_type"`
}

// JWTService verifies access tokens. It can also mint them, which the
// identity provider does in production and tests and local tooling do here.
type JWTService struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// NewJWTService creates a new JWT service
func NewJWTService(cfg config.JWTConfig) *JWTService {
	return &JWTService{
		secret: []byte(cfg.Secret),
		issuer: cfg.Issuer,
		now:    time.Now,
	}
}

// TokenInput contains input for token generation
type TokenInput struct {
	TenantID    uuid.UUID
	UserID      uuid.UUID
	Username    string
	Permissions []string
	TTL         time.Duration
}

// GenerateAccessToken signs an HS256 access token for input
func (s *JWTService) GenerateAccessToken(input TokenInput) (string, time.Time, error) {
	now := s.now()
	ttl := input.TTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	expiresAt := now.Add(ttl)
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Issuer:    s.issuer,
			Subject:   input.UserID.String(),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			NotBefore: jwt.NewNumericDate(now),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		TenantID:    input.TenantID.String(),
		UserID:      input.UserID.String(),
		Username:    input.Username,
		Permissions: input.Permissions,
		TokenType:   TokenTypeAccess,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expiresAt, nil
}

// ValidateAccessToken validates an access token and returns its claims
func (s *JWTService) ValidateAccessToken(tokenString string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(leeway),
		jwt.WithTimeFunc(s.now),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, opts...)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrExpiredToken
		case errors.Is(err, jwt.ErrTokenNotValidYet):
			return nil, ErrTokenNotYetValid
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidClaims
	}
	if claims.TokenType != TokenTypeAccess {
		return nil, ErrInvalidTokenType
	}
	if claims.TenantID == "" {
		return nil, ErrMissingTenantID
	}
	if claims.UserID == "" {
		return nil, ErrMissingUserID
	}
	if _, _, err := claims.IDs(); err != nil {
		return nil, err
	}
	return claims, nil
}

// IDs parses the tenant and user ids of the claims
func (c *Claims) IDs() (tenantID, userID uuid.UUID, err error) {
	tenantID, err = uuid.Parse(c.TenantID)
	if err != nil || tenantID == uuid.Nil {
		return uuid.Nil, uuid.Nil, ErrMissingTenantID
	}
	userID, err = uuid.Parse(c.UserID)
	if err != nil || userID == uuid.Nil {
		return uuid.Nil, uuid.Nil, ErrMissingUserID
	}
	return tenantID, userID, nil
}

// HasPermission checks if the claims contain a specific permission
func (c *Claims) HasPermission(permission string) bool {
	for _, p := range c.Permissions {
		if p == permission {
			return true
		}
	}
	return false
}
