package server

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/jonathan/talent-sourcer/internal/config"
	"github.com/jonathan/talent-sourcer/internal/server/middleware"
)

// TokenIssuer is the iss claim of every recruiter token.
const TokenIssuer = "talent-sourcer"

// ErrInvalidToken wraps every token validation failure.
var ErrInvalidToken = errors.New("invalid token")

// Claims identifies the recruiter a token was issued to.
type Claims struct {
	Recruiter string `json:"recruiter"`
	jwt.RegisteredClaims
}

// JWTService issues and verifies HS256 recruiter tokens.
type JWTService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

var _ middleware.Authenticator = (*JWTService)(nil)

// NewJWTService creates a JWTService from validated settings.
func NewJWTService(cfg *config.JWTConfig) *JWTService {
	return &JWTService{secret: []byte(cfg.Secret), ttl: cfg.Expiration(), now: time.Now}
}

// GenerateToken issues a token for recruiter that expires after the configured lifetime.
func (s *JWTService) GenerateToken(recruiter string) (string, error) {
	recruiter = strings.TrimSpace(recruiter)
	if recruiter == "" {
		return "", errors.New("recruiter is required")
	}

	now := s.now()
	claims := Claims{
		Recruiter: recruiter,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    TokenIssuer,
			Subject:   recruiter,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// ValidateToken verifies the signature, algorithm, issuer and lifetime of a token. Errors wrap
// both ErrInvalidToken and the jwt sentinel that caused them.
func (s *JWTService) ValidateToken(token string) (*Claims, error) {
	if token == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidToken)
	}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(TokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(s.now),
	)
	var claims Claims
	if _, err := parser.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	return &claims, nil
}

// Authenticate returns the recruiter named by a valid token.
func (s *JWTService) Authenticate(token string) (string, error) {
	claims, err := s.ValidateToken(token)
	if err != nil {
		return "", err
	}
	return claims.Recruiter, nil
}
