package ports

import (
	"context"

	"github.com/99minutos/identity-service/internal/core/domain"
)

// SignUpInput carries the already schema-checked signup payload.
type SignUpInput struct {
	Name       string
	Email      string
	Password   string
	Role       domain.Role
	ContactNo  string
	Address    string
	ProfileImg string
	// IdempotencyKey is optional; a repeated key returns the first result.
	IdempotencyKey string
}

// SignUpResult is returned by SignUp.
type SignUpResult struct {
	User *domain.User
	// AlreadyExisted is true when the Idempotency-Key matched an earlier signup.
	AlreadyExisted bool
}

// ChangePasswordInput carries the old and new plaintext passwords.
type ChangePasswordInput struct {
	OldPassword string
	NewPassword string
}

// AuthService defines the credential and token lifecycle use cases.
type AuthService interface {
	SignUp(ctx context.Context, input SignUpInput) (*SignUpResult, error)
	Login(ctx context.Context, email, password string) (*domain.TokenPair, error)
	RefreshToken(ctx context.Context, refreshToken string) (string, error)
	ChangePassword(ctx context.Context, caller domain.TokenClaims, input ChangePasswordInput) (*domain.User, error)
}

// TokenVerifier validates access tokens presented on protected routes.
type TokenVerifier interface {
	VerifyAccess(token string) (domain.TokenClaims, error)
}
