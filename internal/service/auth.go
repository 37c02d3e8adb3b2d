package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/templui/taskfiles/internal/model"
)

var (
	ErrInvalidToken = errors.New("invalid token")
)

// AuthService issues and verifies bearer tokens carrying the requester's user and tenant.
// Whoever mints tokens (an identity provider, attachctl) is outside this service.
type AuthService struct {
	jwtSecret string
	jwtExpiry time.Duration
}

func NewAuthService(jwtSecret string, jwtExpiry time.Duration) *AuthService {
	return &AuthService{
		jwtSecret: jwtSecret,
		jwtExpiry: jwtExpiry,
	}
}

func (s *AuthService) GenerateJWT(identity model.Identity) (string, error) {
	if identity.UserID == "" || identity.TenantID == "" {
		return "", fmt.Errorf("user and tenant are required")
	}

	claims := jwt.MapClaims{
		"user_id":   identity.UserID,
		"tenant_id": identity.TenantID,
		"exp":       time.Now().Add(s.jwtExpiry).Unix(),
		"iat":       time.Now().Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	tokenString, err := token.SignedString([]byte(s.jwtSecret))
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// VerifyJWT validates signature and expiry and resolves the identity in the claims.
func (s *AuthService) VerifyJWT(tokenString string) (model.Identity, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.jwtSecret), nil
	})
	if err != nil {
		return model.Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return model.Identity{}, ErrInvalidToken
	}

	userID, _ := claims["user_id"].(string)
	tenantID, _ := claims["tenant_id"].(string)
	if userID == "" || tenantID == "" {
		return model.Identity{}, fmt.Errorf("%w: missing user_id or tenant_id claim", ErrInvalidToken)
	}

	return model.Identity{UserID: userID, TenantID: tenantID}, nil
}
