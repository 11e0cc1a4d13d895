package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/verso-labs/companion/pkg/config"
	"github.com/verso-labs/companion/pkg/iam"
	"github.com/verso-labs/companion/pkg/kernel"
)

// TokenService validates the bearer tokens the frontend carries
type TokenService interface {
	GenerateAccessToken(userID kernel.UserID, email, name string) (string, error)
	ValidateAccessToken(tokenString string) (*kernel.AuthContext, error)
}

// JWTService implements TokenService with HS256 JWTs
type JWTService struct {
	secretKey      []byte
	accessTokenTTL time.Duration
	issuer         string
	audience       []string
}

// NewJWTServiceFromConfig creates a JWT token service
func NewJWTServiceFromConfig(cfg *config.JWTConfig) *JWTService {
	return &JWTService{
		secretKey:      []byte(cfg.SecretKey),
		accessTokenTTL: cfg.AccessTokenTTL,
		issuer:         cfg.Issuer,
		audience:       cfg.Audience,
	}
}

// JWTClaims carries the identity the chat pipeline needs: a stable user
// id and a display name.
type JWTClaims struct {
	UserID kernel.UserID `json:"user_id"`
	Email  string        `json:"email"`
	Name   string        `json:"name"`
	jwt.RegisteredClaims
}

// GenerateAccessToken issues an access token for a user
func (j *JWTService) GenerateAccessToken(userID kernel.UserID, email, name string) (string, error) {
	now := time.Now()

	jwtClaims := JWTClaims{
		UserID: userID,
		Email:  email,
		Name:   name,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    j.issuer,
			Subject:   userID.String(),
			Audience:  j.audience,
			ExpiresAt: jwt.NewNumericDate(now.Add(j.accessTokenTTL)),
			NotBefore: jwt.NewNumericDate(now),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwtClaims)

	tokenString, err := token.SignedString(j.secretKey)
	if err != nil {
		return "", iam.ErrTokenGenerationFailed().WithDetail("error", err.Error())
	}

	return tokenString, nil
}

// ValidateAccessToken validates and decodes an access token
func (j *JWTService) ValidateAccessToken(tokenString string) (*kernel.AuthContext, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return j.secretKey, nil
	})

	if err != nil {
		return nil, iam.ErrTokenValidationFailed().WithDetail("error", err.Error())
	}

	if !token.Valid {
		return nil, iam.ErrTokenValidationFailed().WithDetail("error", "token is invalid")
	}

	jwtClaims, ok := token.Claims.(*JWTClaims)
	if !ok {
		return nil, iam.ErrTokenValidationFailed().WithDetail("error", "invalid claims type")
	}

	return &kernel.AuthContext{
		UserID: jwtClaims.UserID,
		Email:  jwtClaims.Email,
		Name:   jwtClaims.Name,
	}, nil
}
