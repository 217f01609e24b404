// Package auth issues and verifies bearer tokens for the API surface. Users
// live in memory only; the registry is seeded from configuration at startup.
package auth

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrInvalidCredentials covers unknown users and wrong passwords alike,
	// so responses never reveal which one it was.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUserExists signals a duplicate registration.
	ErrUserExists = errors.New("user already registered")
	// ErrInvalidToken signals an expired, malformed or tampered token.
	ErrInvalidToken = errors.New("invalid token")
)

// User is the public view of a registered account.
type User struct {
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	IsActive bool   `json:"is_active"`
}

type account struct {
	email    string
	fullName string
	hash     []byte
	active   bool
}

// Manager holds the signing secret and the in-memory user registry.
type Manager struct {
	secret   []byte
	tokenTTL time.Duration

	mu    sync.RWMutex
	users map[string]account
}

// NewManager creates a manager signing HS256 tokens with the given secret.
func NewManager(secret string, tokenTTL time.Duration) *Manager {
	if tokenTTL <= 0 {
		tokenTTL = 30 * time.Minute
	}
	return &Manager{
		secret:   []byte(secret),
		tokenTTL: tokenTTL,
		users:    make(map[string]account),
	}
}

// Register adds a new user with a bcrypt-hashed password.
func (m *Manager) Register(email, password, fullName string) (User, error) {
	if email == "" || password == "" {
		return User{}, fmt.Errorf("email and password are required")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.users[email]; exists {
		return User{}, ErrUserExists
	}
	m.users[email] = account{email: email, fullName: fullName, hash: hash, active: true}
	return User{Email: email, FullName: fullName, IsActive: true}, nil
}

// Login verifies the password and returns a signed access token.
func (m *Manager) Login(email, password string) (string, error) {
	m.mu.RLock()
	acc, ok := m.users[email]
	m.mu.RUnlock()

	if !ok || !acc.active {
		return "", ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(acc.hash, []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}

	now := time.Now().UTC()
	claims := jwt.RegisteredClaims{
		Subject:   email,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(m.tokenTTL)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify validates a token and returns the authenticated user.
func (m *Manager) Verify(tokenString string) (User, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil || !token.Valid || claims.Subject == "" {
		return User{}, ErrInvalidToken
	}

	m.mu.RLock()
	acc, ok := m.users[claims.Subject]
	m.mu.RUnlock()
	if !ok || !acc.active {
		return User{}, ErrInvalidToken
	}
	return User{Email: acc.email, FullName: acc.fullName, IsActive: acc.active}, nil
}
