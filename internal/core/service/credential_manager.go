package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/99minutos/identity-service/internal/core/domain"
	"github.com/99minutos/identity-service/internal/core/ports"
	"github.com/99minutos/identity-service/internal/pkg/metrics"
)

// CredentialManager hashes and verifies passwords and looks users up.
type CredentialManager struct {
	users ports.UserRepository
	cost  int
}

// NewCredentialManager returns a CredentialManager hashing with the given
// bcrypt cost. Costs outside bcrypt's accepted range fall back to
// bcrypt.DefaultCost.
func NewCredentialManager(users ports.UserRepository, cost int) *CredentialManager {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &CredentialManager{users: users, cost: cost}
}

// HashPassword returns a salted bcrypt hash of plaintext. Two calls with the
// same input return different hashes.
func (m *CredentialManager) HashPassword(plaintext string) (string, error) {
	start := time.Now()
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), m.cost)
	metrics.PasswordHashDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", domain.NewValidationError("password must not exceed 72 bytes")
		}
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// IsPasswordMatch reports whether plaintext matches storedHash. The
// comparison is constant-time.
func (m *CredentialManager) IsPasswordMatch(plaintext, storedHash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(storedHash), []byte(plaintext)) == nil
}

// UserByEmail looks up the user with the given email.
func (m *CredentialManager) UserByEmail(ctx context.Context, email string) (*domain.User, error) {
	return m.users.FindByEmail(ctx, email)
}

// UserByID looks up the user with the given id.
func (m *CredentialManager) UserByID(ctx context.Context, id string) (*domain.User, error) {
	if id == "" {
		return nil, domain.ErrUserNotFound
	}
	return m.users.FindByID(ctx, id)
}
