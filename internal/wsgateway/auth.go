package wsgateway

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Roles carried in the token's role claim
const (
	RoleOwner  = "owner"
	RoleClient = "client"
)

// ErrInvalidRole is returned when issuing a token for an unknown role
var ErrInvalidRole = errors.New("role must be owner or client")

// Claims are the bearer token claims
type Claims struct {
	Role string `json:"role"`
	Name string `json:"name"`
	jwt.RegisteredClaims
}

// IsOwner reports whether the claims grant owner access
func (c *Claims) IsOwner() bool {
	return c != nil && c.Role == RoleOwner
}

// AnonymousClaims are used when no secret is configured
var AnonymousClaims = Claims{Role: RoleClient, Name: "anonymous"}

// AuthManager handles JWT authentication
type AuthManager struct {
	jwtSecret []byte
	expiry    time.Duration
	now       func() time.Time
}

// NewAuthManager creates a new auth manager
func NewAuthManager(jwtSecret string, expiry time.Duration) *AuthManager {
	if expiry <= 0 {
		expiry = 24 * time.Hour
	}
	return &AuthManager{
		jwtSecret: []byte(jwtSecret),
		expiry:    expiry,
		now:       time.Now,
	}
}

// Enabled reports whether a secret is configured
func (a *AuthManager) Enabled() bool {
	return len(a.jwtSecret) > 0
}

// IssueToken signs a token for role and name
func (a *AuthManager) IssueToken(role, name string) (string, error) {
	if role != RoleOwner && role != RoleClient {
		return "", ErrInvalidRole
	}
	if !a.Enabled() {
		return "", errors.New("JWT secret is not configured")
	}

	now := a.now()
	claims := Claims{
		Role: role,
		Name: name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   name,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.expiry)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.jwtSecret)
}

// ValidateToken validates a JWT token and returns its claims
func (a *AuthManager) ValidateToken(tokenString string) (*Claims, error) {
	if !a.Enabled() {
		// Without a secret every caller is an anonymous client
		claims := AnonymousClaims
		return &claims, nil
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.jwtSecret, nil
	}, jwt.WithTimeFunc(a.now))
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	if claims.Role != RoleOwner && claims.Role != RoleClient {
		return nil, fmt.Errorf("invalid role %q in token", claims.Role)
	}
	if claims.Name == "" {
		claims.Name = claims.Subject
	}
	return claims, nil
}

// ExtractTokenFromHeader extracts JWT token from Authorization header
func (a *AuthManager) ExtractTokenFromHeader(authHeader string) (string, error) {
	if authHeader == "" {
		return "", fmt.Errorf("authorization header is empty")
	}

	// Support both "Bearer <token>" and just "<token>"
	parts := strings.Fields(authHeader)
	switch len(parts) {
	case 2:
		if !strings.EqualFold(parts[0], "bearer") {
			return "", fmt.Errorf("invalid authorization header format")
		}
		return parts[1], nil
	case 1:
		return parts[0], nil
	}

	return "", fmt.Errorf("invalid authorization header format")
}
