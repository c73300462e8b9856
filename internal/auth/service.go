// backend/internal/auth/service.go
package auth

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"assessment-system/internal/models"
)

const tokenTTL = 24 * time.Hour

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUsernameTaken      = errors.New("username already taken")
	ErrInvalidToken       = errors.New("invalid token")
	ErrTokenRevoked       = errors.New("token has been signed out")
	ErrMissingFields      = errors.New("username and password are required")
)

type Repository interface {
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	CreateUser(ctx context.Context, user *models.User) error
}

// TokenRevoker tracks signed-out tokens.
type TokenRevoker interface {
	RevokeToken(ctx context.Context, tokenID string, ttl time.Duration) error
	IsTokenRevoked(ctx context.Context, tokenID string) (bool, error)
}

type Claims struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	jwt.StandardClaims
}

type Service struct {
	repo      Repository
	revoker   TokenRevoker
	jwtSecret []byte
	now       func() time.Time
}

// NewService builds the auth service. revoker may be nil, in which case
// sign-out cannot invalidate tokens before they expire.
func NewService(repo Repository, revoker TokenRevoker, jwtSecret string) *Service {
	return &Service{
		repo:      repo,
		revoker:   revoker,
		jwtSecret: []byte(jwtSecret),
		now:       time.Now,
	}
}

func (s *Service) Login(ctx context.Context, username, password string) (string, error) {
	user, err := s.repo.GetUserByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		return "", ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}

	now := s.now()
	claims := Claims{
		UserID:   user.ID,
		Username: user.Username,
		StandardClaims: jwt.StandardClaims{
			Id:        uuid.NewString(),
			IssuedAt:  now.Unix(),
			ExpiresAt: now.Add(tokenTTL).Unix(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

func (s *Service) Register(ctx context.Context, user *models.User) error {
	user.Username = strings.TrimSpace(user.Username)
	if user.Username == "" || user.Password == "" {
		return ErrMissingFields
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(user.Password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	user.Password = string(hashedPassword)
	return s.repo.CreateUser(ctx, user)
}

// Parse validates a signed token and rejects signed-out ones. When the
// revocation store is unreachable the token is accepted and the failure logged.
func (s *Service) Parse(ctx context.Context, tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil || !token.Valid || claims.UserID == "" {
		return nil, ErrInvalidToken
	}

	if s.revoker != nil && claims.Id != "" {
		revoked, err := s.revoker.IsTokenRevoked(ctx, claims.Id)
		if err != nil {
			log.Printf("Error checking revocation of token %s: %v", claims.Id, err)
		}
		if revoked {
			return nil, ErrTokenRevoked
		}
	}
	return claims, nil
}

// Logout revokes the token behind an identity for the rest of its lifetime.
func (s *Service) Logout(ctx context.Context, id Identity) error {
	if s.revoker == nil || id.TokenID == "" {
		return nil
	}
	return s.revoker.RevokeToken(ctx, id.TokenID, id.ExpiresAt.Sub(s.now()))
}
