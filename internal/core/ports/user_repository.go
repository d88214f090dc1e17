package ports

import (
	"context"

	"github.com/99minutos/identity-service/internal/core/domain"
)

// UserRepository defines the persistence operations the auth core relies on.
// Lookups that miss return domain.ErrUserNotFound; Create returns
// domain.ErrUserExists when the email is already taken.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) (*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	FindByID(ctx context.Context, id string) (*domain.User, error)
	// Update applies only the non-nil fields of update to the user with the
	// given id and returns the stored record after the write.
	Update(ctx context.Context, id string, update domain.UserUpdate) (*domain.User, error)
}

// SignupReplayStore remembers which user an idempotency key produced so a
// retried signup returns the original account.
type SignupReplayStore interface {
	Lookup(ctx context.Context, key string) (userID string, found bool, err error)
	Remember(ctx context.Context, key, userID string) error
}
