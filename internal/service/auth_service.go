package service

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"majorcompass/internal/config"
	"majorcompass/internal/logger"
	"majorcompass/internal/model"
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrInvalidToken       = errors.New("invalid or expired token")
)

// AuthService handles admin authentication
type AuthService struct {
	username     string
	passwordHash []byte
	jwtSecret    []byte
	tokenTTL     time.Duration
	now          func() time.Time
}

// NewAuthService creates a new auth service
func NewAuthService(cfg config.AuthConfig) *AuthService {
	if cfg.AdminPasswordHash == "" {
		logger.Log.Warn("auth.admin_password_hash is empty, admin login is disabled")
	}
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &AuthService{
		username:     cfg.AdminUsername,
		passwordHash: []byte(cfg.AdminPasswordHash),
		jwtSecret:    []byte(cfg.JWTSecret),
		tokenTTL:     ttl,
		now:          time.Now,
	}
}

// HashPassword returns the bcrypt hash to put in auth.admin_password_hash
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// Login validates credentials and returns a signed admin token
func (s *AuthService) Login(username, password string) (*model.LoginResponse, error) {
	if len(s.passwordHash) == 0 {
		return nil, ErrInvalidCredentials
	}
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(s.username)) == 1
	passErr := bcrypt.CompareHashAndPassword(s.passwordHash, []byte(password))
	if !userOK || passErr != nil {
		return nil, ErrInvalidCredentials
	}

	adminID := "admin_" + uuid.New().String()[:8]
	now := s.now()

	claims := &model.AdminClaims{
		AdminID:  adminID,
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
			Subject:   adminID,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return nil, err
	}

	return &model.LoginResponse{
		Token:     tokenString,
		AdminID:   adminID,
		ExpiresIn: int64(s.tokenTTL.Seconds()),
	}, nil
}

// ValidateAdminToken validates an admin JWT and returns claims
func (s *AuthService) ValidateAdminToken(tokenString string) (*model.AdminClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &model.AdminClaims{}, func(token *jwt.Token) (interface{}, error) {
		return s.jwtSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*model.AdminClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	return claims, nil
}
