package service

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const (
	defaultTokenTTL = 12 * time.Hour
	operatorSubject = "operator"
)

// Domain errors for auth flows.
var (
	ErrInvalidPassword = errors.New("invalid password")
	ErrSignInDisabled  = errors.New("sign-in is disabled")
	ErrInvalidToken    = errors.New("invalid token")
)

// AuthConfig holds the operator credential and token settings.
type AuthConfig struct {
	Secret       string
	TokenTTL     time.Duration
	PasswordHash string // bcrypt
}

// AuthService issues operator tokens for the tuning endpoint.
type AuthService struct {
	cfg AuthConfig
}

func NewAuthService(cfg AuthConfig) *AuthService {
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = defaultTokenTTL
	}
	return &AuthService{cfg: cfg}
}

// Claims defines JWT claims
type Claims struct {
	jwt.RegisteredClaims
}

// GenerateToken checks the operator password and returns a JWT.
func (s *AuthService) GenerateToken(password string) (string, error) {
	if s.cfg.PasswordHash == "" || s.cfg.Secret == "" {
		return "", ErrSignInDisabled
	}
	if strings.TrimSpace(password) == "" {
		return "", ErrInvalidPassword
	}
	if err := verifyPassword(s.cfg.PasswordHash, password); err != nil {
		return "", ErrInvalidPassword
	}
	return s.issueToken(operatorSubject)
}

// ParseToken validates the JWT and returns its subject.
func (s *AuthService) ParseToken(accessToken string) (string, error) {
	if s.cfg.Secret == "" {
		return "", ErrSignInDisabled
	}
	token, err := jwt.ParseWithClaims(accessToken, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		// Ensure HMAC signing is used
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.cfg.Secret), nil
	})
	if err != nil {
		return "", err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject != operatorSubject {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}

// HashPassword produces the bcrypt hash stored in auth.operator_password_hash.
func HashPassword(password string) (string, error) {
	if strings.TrimSpace(password) == "" {
		return "", errors.New("password is empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// helper: verify password against hash
func verifyPassword(hash, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}

// helper: issue a signed JWT for subject
func (s *AuthService) issueToken(subject string) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.TokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	})
	return token.SignedString([]byte(s.cfg.Secret))
}
