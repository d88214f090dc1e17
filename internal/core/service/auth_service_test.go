package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/99minutos/identity-service/internal/core/domain"
	"github.com/99minutos/identity-service/internal/core/ports"
)

type stubUserRepo struct {
	users     map[string]*domain.User // keyed by id
	nextID    int
	findErr   error
	updateErr error
	updates   []domain.UserUpdate
}

func newStubUserRepo() *stubUserRepo {
	return &stubUserRepo{users: make(map[string]*domain.User)}
}

func cloneUser(u *domain.User) *domain.User {
	if u == nil {
		return nil
	}
	clone := *u
	return &clone
}

func (r *stubUserRepo) Create(_ context.Context, user *domain.User) (*domain.User, error) {
	for _, u := range r.users {
		if u.Email == user.Email {
			return nil, domain.ErrUserExists
		}
	}
	r.nextID++
	copy := cloneUser(user)
	copy.ID = fmt.Sprintf("user-%d", r.nextID)
	r.users[copy.ID] = cloneUser(copy)
	return cloneUser(copy), nil
}

func (r *stubUserRepo) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	if r.findErr != nil {
		return nil, r.findErr
	}
	for _, u := range r.users {
		if u.Email == email {
			return cloneUser(u), nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (r *stubUserRepo) FindByID(_ context.Context, id string) (*domain.User, error) {
	if r.findErr != nil {
		return nil, r.findErr
	}
	u, ok := r.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return cloneUser(u), nil
}

func (r *stubUserRepo) Update(_ context.Context, id string, update domain.UserUpdate) (*domain.User, error) {
	if r.updateErr != nil {
		return nil, r.updateErr
	}
	u, ok := r.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	r.updates = append(r.updates, update)
	if update.PasswordHash != nil {
		u.PasswordHash = *update.PasswordHash
	}
	return cloneUser(u), nil
}

type stubReplayStore struct {
	keys      map[string]string
	lookupErr error
}

func newStubReplayStore() *stubReplayStore {
	return &stubReplayStore{keys: make(map[string]string)}
}

func (s *stubReplayStore) Lookup(_ context.Context, key string) (string, bool, error) {
	if s.lookupErr != nil {
		return "", false, s.lookupErr
	}
	id, ok := s.keys[key]
	return id, ok, nil
}

func (s *stubReplayStore) Remember(_ context.Context, key, userID string) error {
	s.keys[key] = userID
	return nil
}

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestAuthService(t *testing.T, repo *stubUserRepo, replay ports.SignupReplayStore) (*AuthService, *TokenService) {
	t.Helper()
	tokens := newTestTokenService(t, testNow)
	svc := NewAuthService(NewCredentialManager(repo, bcrypt.MinCost), tokens, repo, replay, zerolog.Nop())
	svc.now = func() time.Time { return testNow }
	return svc, tokens
}

func signUpInput(email, password string) ports.SignUpInput {
	return ports.SignUpInput{
		Name:      "Alice",
		Email:     email,
		Password:  password,
		Role:      domain.RoleCustomer,
		ContactNo: "+5215555555555",
		Address:   "Av. Reforma 1",
	}
}

func TestAuthService_SignUp_HashesPassword(t *testing.T) {
	repo := newStubUserRepo()
	svc, _ := newTestAuthService(t, repo, nil)

	res, err := svc.SignUp(context.Background(), signUpInput(" A@X.com ", "p1"))
	if err != nil {
		t.Fatalf("SignUp returned error: %v", err)
	}
	if res.AlreadyExisted {
		t.Fatalf("expected a new user")
	}

	stored := repo.users[res.User.ID]
	if stored.PasswordHash == "p1" {
		t.Fatalf("expected password to be hashed")
	}
	if !strings.HasPrefix(stored.PasswordHash, "$2") {
		t.Fatalf("expected bcrypt-shaped hash, got %q", stored.PasswordHash)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("p1")); err != nil {
		t.Fatalf("stored hash does not match password: %v", err)
	}
	if stored.Email != "a@x.com" {
		t.Fatalf("expected normalised email, got %q", stored.Email)
	}
	if !stored.CreatedAt.Equal(testNow) {
		t.Fatalf("expected created_at %v, got %v", testNow, stored.CreatedAt)
	}
}

func TestAuthService_SignUp_Validation(t *testing.T) {
	svc, _ := newTestAuthService(t, newStubUserRepo(), nil)

	bad := []func(*ports.SignUpInput){
		func(in *ports.SignUpInput) { in.Name = " " },
		func(in *ports.SignUpInput) { in.Email = "" },
		func(in *ports.SignUpInput) { in.Password = "" },
		func(in *ports.SignUpInput) { in.Role = "guest" },
		func(in *ports.SignUpInput) { in.ContactNo = "" },
		func(in *ports.SignUpInput) { in.Address = "" },
	}

	for i, mutate := range bad {
		in := signUpInput("v@x.com", "p1")
		mutate(&in)
		if _, err := svc.SignUp(context.Background(), in); domain.KindOf(err) != domain.KindValidation {
			t.Fatalf("case %d: expected validation error, got %v", i, err)
		}
	}
}

func TestAuthService_SignUp_Duplicate(t *testing.T) {
	svc, _ := newTestAuthService(t, newStubUserRepo(), nil)

	if _, err := svc.SignUp(context.Background(), signUpInput("bob@x.com", "p1")); err != nil {
		t.Fatalf("first signup failed: %v", err)
	}
	if _, err := svc.SignUp(context.Background(), signUpInput("bob@x.com", "p2")); !errors.Is(err, domain.ErrUserExists) {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}
}

func TestAuthService_SignUp_IdempotentReplay(t *testing.T) {
	repo := newStubUserRepo()
	replay := newStubReplayStore()
	svc, _ := newTestAuthService(t, repo, replay)

	in := signUpInput("carol@x.com", "p1")
	in.IdempotencyKey = "key-1"

	first, err := svc.SignUp(context.Background(), in)
	if err != nil {
		t.Fatalf("first signup failed: %v", err)
	}
	if replay.keys["key-1"] != first.User.ID {
		t.Fatalf("expected idempotency key to be remembered")
	}

	second, err := svc.SignUp(context.Background(), in)
	if err != nil {
		t.Fatalf("replayed signup failed: %v", err)
	}
	if !second.AlreadyExisted || second.User.ID != first.User.ID {
		t.Fatalf("expected replay of %s, got %+v", first.User.ID, second)
	}
	if len(repo.users) != 1 {
		t.Fatalf("expected exactly one stored user, got %d", len(repo.users))
	}
}

func TestAuthService_SignUp_ReplayStoreFailureProceeds(t *testing.T) {
	replay := newStubReplayStore()
	replay.lookupErr = errors.New("redis down")
	svc, _ := newTestAuthService(t, newStubUserRepo(), replay)

	in := signUpInput("dan@x.com", "p1")
	in.IdempotencyKey = "key-2"

	res, err := svc.SignUp(context.Background(), in)
	if err != nil {
		t.Fatalf("expected signup to proceed, got %v", err)
	}
	if res.AlreadyExisted {
		t.Fatalf("expected a new user")
	}
}

func TestAuthService_Login_Success(t *testing.T) {
	repo := newStubUserRepo()
	svc, tokens := newTestAuthService(t, repo, nil)

	res, err := svc.SignUp(context.Background(), signUpInput("a@x.com", "p1"))
	if err != nil {
		t.Fatalf("signup failed: %v", err)
	}

	pair, err := svc.Login(context.Background(), "a@x.com", "p1")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatalf("expected two tokens, got %+v", pair)
	}
	if pair.AccessToken == pair.RefreshToken {
		t.Fatalf("expected distinct tokens")
	}

	access, err := tokens.VerifyAccess(pair.AccessToken)
	if err != nil {
		t.Fatalf("access token invalid: %v", err)
	}
	if access.UserID != res.User.ID || access.Role != domain.RoleCustomer {
		t.Fatalf("unexpected access claims: %+v", access)
	}
	if !access.ExpiresAt.Equal(testNow.Add(testTokenConfig.AccessTTL)) {
		t.Fatalf("unexpected access expiry: %v", access.ExpiresAt)
	}

	refresh, err := tokens.VerifyRefresh(pair.RefreshToken)
	if err != nil {
		t.Fatalf("refresh token invalid: %v", err)
	}
	if !refresh.ExpiresAt.Equal(testNow.Add(testTokenConfig.RefreshTTL)) {
		t.Fatalf("unexpected refresh expiry: %v", refresh.ExpiresAt)
	}
}

func TestAuthService_Login_InvalidPassword(t *testing.T) {
	svc, _ := newTestAuthService(t, newStubUserRepo(), nil)

	_, _ = svc.SignUp(context.Background(), signUpInput("dave@x.com", "goodpass"))
	pair, err := svc.Login(context.Background(), "dave@x.com", "wrong")
	if !errors.Is(err, domain.ErrPasswordMismatch) {
		t.Fatalf("expected ErrPasswordMismatch, got %v", err)
	}
	if pair != nil {
		t.Fatalf("expected no tokens, got %+v", pair)
	}
	if domain.KindOf(err) != domain.KindUnauthorized {
		t.Fatalf("expected unauthorized kind, got %s", domain.KindOf(err))
	}
}

func TestAuthService_Login_UserNotFound(t *testing.T) {
	svc, _ := newTestAuthService(t, newStubUserRepo(), nil)

	pair, err := svc.Login(context.Background(), "ghost@x.com", "pass")
	if !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
	if pair != nil {
		t.Fatalf("expected no tokens, got %+v", pair)
	}
}

func TestAuthService_Login_StoreFailure(t *testing.T) {
	repo := newStubUserRepo()
	repo.findErr = errors.New("connection reset")
	svc, _ := newTestAuthService(t, repo, nil)

	_, err := svc.Login(context.Background(), "a@x.com", "p1")
	if err == nil || domain.KindOf(err) != domain.KindInternal {
		t.Fatalf("expected internal error, got %v", err)
	}
}

func TestAuthService_RefreshToken_MintsBackdatedAccess(t *testing.T) {
	svc, tokens := newTestAuthService(t, newStubUserRepo(), nil)

	res, _ := svc.SignUp(context.Background(), signUpInput("a@x.com", "p1"))
	pair, err := svc.Login(context.Background(), "a@x.com", "p1")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	access, err := svc.RefreshToken(context.Background(), pair.RefreshToken)
	if err != nil {
		t.Fatalf("refresh failed: %v", err)
	}
	if access == "" || access == pair.AccessToken {
		t.Fatalf("expected a new access token")
	}

	claims, err := tokens.VerifyAccess(access)
	if err != nil {
		t.Fatalf("refreshed access token invalid: %v", err)
	}
	if claims.UserID != res.User.ID {
		t.Fatalf("unexpected user id %q", claims.UserID)
	}
	if want := testNow.Add(-refreshIssuedAtBackdate); !claims.IssuedAt.Equal(want) {
		t.Fatalf("expected backdated iat %v, got %v", want, claims.IssuedAt)
	}
	if want := testNow.Add(testTokenConfig.AccessTTL); !claims.ExpiresAt.Equal(want) {
		t.Fatalf("expected exp %v, got %v", want, claims.ExpiresAt)
	}

	// The refresh token is not rotated and keeps working.
	if _, err := svc.RefreshToken(context.Background(), pair.RefreshToken); err != nil {
		t.Fatalf("second refresh failed: %v", err)
	}
}

func TestAuthService_RefreshToken_Invalid(t *testing.T) {
	svc, tokens := newTestAuthService(t, newStubUserRepo(), nil)

	_, _ = svc.SignUp(context.Background(), signUpInput("a@x.com", "p1"))
	pair, _ := svc.Login(context.Background(), "a@x.com", "p1")

	cases := map[string]string{
		"access token":   pair.AccessToken,
		"tampered token": pair.RefreshToken + "x",
		"garbage":        "garbage",
	}
	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := svc.RefreshToken(context.Background(), token); !errors.Is(err, domain.ErrInvalidToken) {
				t.Fatalf("expected ErrInvalidToken, got %v", err)
			}
		})
	}

	tokens.now = func() time.Time { return testNow.Add(testTokenConfig.RefreshTTL) }
	if _, err := svc.RefreshToken(context.Background(), pair.RefreshToken); !errors.Is(err, domain.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for expired refresh token, got %v", err)
	}
}

func TestAuthService_RefreshToken_DeletedUser(t *testing.T) {
	repo := newStubUserRepo()
	svc, _ := newTestAuthService(t, repo, nil)

	res, _ := svc.SignUp(context.Background(), signUpInput("a@x.com", "p1"))
	pair, _ := svc.Login(context.Background(), "a@x.com", "p1")
	delete(repo.users, res.User.ID)

	if _, err := svc.RefreshToken(context.Background(), pair.RefreshToken); !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestAuthService_ChangePassword_Success(t *testing.T) {
	repo := newStubUserRepo()
	svc, _ := newTestAuthService(t, repo, nil)

	res, _ := svc.SignUp(context.Background(), signUpInput("a@x.com", "p1"))
	caller := domain.TokenClaims{UserID: res.User.ID, Role: domain.RoleCustomer}

	updated, err := svc.ChangePassword(context.Background(), caller, ports.ChangePasswordInput{OldPassword: "p1", NewPassword: "p2"})
	if err != nil {
		t.Fatalf("change password failed: %v", err)
	}
	if updated.ID != res.User.ID {
		t.Fatalf("unexpected user returned: %+v", updated)
	}

	if len(repo.updates) != 1 || repo.updates[0].PasswordHash == nil {
		t.Fatalf("expected a single password-only update, got %+v", repo.updates)
	}
	stored := repo.users[res.User.ID].PasswordHash
	if stored == "p2" {
		t.Fatalf("new password stored in plaintext")
	}
	if bcrypt.CompareHashAndPassword([]byte(stored), []byte("p1")) == nil {
		t.Fatalf("old password still verifies")
	}
	if bcrypt.CompareHashAndPassword([]byte(stored), []byte("p2")) != nil {
		t.Fatalf("new password does not verify")
	}

	if _, err := svc.Login(context.Background(), "a@x.com", "p2"); err != nil {
		t.Fatalf("login with new password failed: %v", err)
	}
}

func TestAuthService_ChangePassword_WrongOldPassword(t *testing.T) {
	repo := newStubUserRepo()
	svc, _ := newTestAuthService(t, repo, nil)

	res, _ := svc.SignUp(context.Background(), signUpInput("a@x.com", "p1"))
	before := repo.users[res.User.ID].PasswordHash

	caller := domain.TokenClaims{UserID: res.User.ID, Role: domain.RoleCustomer}
	_, err := svc.ChangePassword(context.Background(), caller, ports.ChangePasswordInput{OldPassword: "wrong", NewPassword: "p2"})
	if !errors.Is(err, domain.ErrOldPasswordMismatch) {
		t.Fatalf("expected ErrOldPasswordMismatch, got %v", err)
	}
	if repo.users[res.User.ID].PasswordHash != before {
		t.Fatalf("stored hash changed on failed password change")
	}
	if len(repo.updates) != 0 {
		t.Fatalf("expected no store update, got %d", len(repo.updates))
	}
}

func TestAuthService_ChangePassword_UserNotFound(t *testing.T) {
	svc, _ := newTestAuthService(t, newStubUserRepo(), nil)

	caller := domain.TokenClaims{UserID: "missing", Role: domain.RoleAdmin}
	if _, err := svc.ChangePassword(context.Background(), caller, ports.ChangePasswordInput{OldPassword: "a", NewPassword: "b"}); !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestAuthService_ChangePassword_UpdateFailure(t *testing.T) {
	repo := newStubUserRepo()
	svc, _ := newTestAuthService(t, repo, nil)

	res, _ := svc.SignUp(context.Background(), signUpInput("a@x.com", "p1"))
	before := repo.users[res.User.ID].PasswordHash
	repo.updateErr = errors.New("write conflict")

	caller := domain.TokenClaims{UserID: res.User.ID, Role: domain.RoleCustomer}
	if _, err := svc.ChangePassword(context.Background(), caller, ports.ChangePasswordInput{OldPassword: "p1", NewPassword: "p2"}); err == nil {
		t.Fatalf("expected error")
	}
	if repo.users[res.User.ID].PasswordHash != before {
		t.Fatalf("stored hash changed despite failed update")
	}
}
