// Package auth issues and verifies user tokens.
package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/talkincode/smartcart/internal/domain"
	"github.com/talkincode/smartcart/internal/store"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = fmt.Errorf("%w: invalid credentials", domain.ErrUnauthorized)
	ErrTokenMissing       = fmt.Errorf("%w: access denied, no token provided", domain.ErrUnauthorized)
	ErrTokenExpired       = fmt.Errorf("%w: token expired", domain.ErrUnauthorized)
	ErrTokenInvalid       = fmt.Errorf("%w: invalid token", domain.ErrForbidden)
)

// Claims is the token payload.
type Claims struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

func (c *Claims) Identity() domain.Identity {
	return domain.Identity{ID: c.ID, Username: c.Username, Role: c.Role}
}

type Service struct {
	store  *store.Store
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewService(st *store.Store, secret string, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Service{store: st, secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Login checks the password and returns a signed token. Accounts still
// holding a plaintext password are upgraded to a bcrypt hash.
func (s *Service) Login(ctx context.Context, username, password string) (string, domain.PublicUser, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return "", domain.PublicUser{}, domain.Validationf("username and password are required")
	}
	var user domain.User
	err := s.store.View(ctx, func(snap *store.Snapshot) error {
		i := snap.UserIndexByName(username)
		if i == -1 {
			return ErrInvalidCredentials
		}
		user = snap.Users[i]
		return nil
	})
	if err != nil {
		return "", domain.PublicUser{}, err
	}

	if IsHashed(user.Password) {
		if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)) != nil {
			return "", domain.PublicUser{}, ErrInvalidCredentials
		}
	} else {
		if subtle.ConstantTimeCompare([]byte(user.Password), []byte(password)) != 1 {
			return "", domain.PublicUser{}, ErrInvalidCredentials
		}
		zap.L().Warn("plaintext password found, rehashing",
			zap.String("namespace", "auth"), zap.String("user", user.Username))
		if err := s.rehash(ctx, user.ID, password); err != nil {
			zap.L().Error("rehash password failed", zap.String("namespace", "auth"), zap.Error(err))
		}
	}

	token, err := s.Issue(user)
	if err != nil {
		return "", domain.PublicUser{}, err
	}
	return token, user.Public(), nil
}

func (s *Service) rehash(ctx context.Context, userID, password string) error {
	hash, err := HashPassword(password)
	if err != nil {
		return err
	}
	return s.store.Update(ctx, func(snap *store.Snapshot) error {
		if i := snap.UserIndex(userID); i >= 0 {
			snap.Users[i].Password = hash
		}
		return nil
	})
}

// Issue signs a token for user.
func (s *Service) Issue(user domain.User) (string, error) {
	now := s.now()
	claims := &Claims{
		ID:       user.ID,
		Username: user.Username,
		Role:     user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// Parse verifies token and returns its identity.
func (s *Service) Parse(token string) (domain.Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return domain.Identity{}, ErrTokenMissing
	}
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	switch {
	case err == nil:
		return claims.Identity(), nil
	case errors.Is(err, jwt.ErrTokenExpired):
		return domain.Identity{}, ErrTokenExpired
	default:
		return domain.Identity{}, ErrTokenInvalid
	}
}

// User returns the public profile of the account behind id.
func (s *Service) User(ctx context.Context, id string) (domain.PublicUser, error) {
	var out domain.PublicUser
	err := s.store.View(ctx, func(snap *store.Snapshot) error {
		i := snap.UserIndex(id)
		if i == -1 {
			return domain.ErrUserNotFound
		}
		out = snap.Users[i].Public()
		return nil
	})
	return out, err
}

// HashPassword returns a bcrypt hash of password.
func HashPassword(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// IsHashed reports whether stored looks like a bcrypt hash.
func IsHashed(stored string) bool {
	return strings.HasPrefix(stored, "$2a$") || strings.HasPrefix(stored, "$2b$") || strings.HasPrefix(stored, "$2y$")
}
