package service

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"vapor_recovery/internal/errs"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// AuthService signs the single site operator in against a configured bcrypt hash.
type AuthService struct {
	username     string
	passwordHash string
	secret       []byte
	ttl          time.Duration
}

func NewAuthService(username, passwordHash, secret string, ttl time.Duration) *AuthService {
	return &AuthService{username: username, passwordHash: passwordHash, secret: []byte(secret), ttl: ttl}
}

// Claims defines JWT claims
type Claims struct {
	jwt.RegisteredClaims
}

// GenerateToken validates credentials and returns a JWT.
func (s *AuthService) GenerateToken(username, password string) (string, error) {
	if s.passwordHash == "" {
		return "", fmt.Errorf("GenerateToken: no operator password configured: %w", errs.ErrInvalidCredential)
	}
	if subtle.ConstantTimeCompare([]byte(username), []byte(s.username)) != 1 {
		return "", errs.ErrInvalidCredential
	}
	if err := verifyPassword(s.passwordHash, password); err != nil {
		return "", errs.ErrInvalidCredential
	}
	return s.issueToken(username, time.Now())
}

// ParseToken validates accessToken and returns its subject.
func (s *AuthService) ParseToken(accessToken string) (string, error) {
	token, err := jwt.ParseWithClaims(accessToken, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("ParseToken: %w: %w", errs.ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject == "" {
		return "", errs.ErrInvalidToken
	}
	return claims.Subject, nil
}

// HashPassword produces the bcrypt hash stored in auth.password_hash.
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

func verifyPassword(hash, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}

func (s *AuthService) issueToken(subject string, now time.Time) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	})
	return token.SignedString(s.secret)
}
