package postgres

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/99minutos/identity-service/internal/core/domain"
)

func TestIsUniqueViolation(t *testing.T) {
	dup := &pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"}
	if !isUniqueViolation(fmt.Errorf("insert: %w", dup)) {
		t.Fatalf("expected wrapped 23505 to be a unique violation")
	}
	if isUniqueViolation(&pgconn.PgError{Code: "23503"}) {
		t.Fatalf("foreign key violation is not a unique violation")
	}
	if isUniqueViolation(errors.New("boom")) {
		t.Fatalf("plain error is not a unique violation")
	}
}

func TestSchemaDeclaresUniqueEmail(t *testing.T) {
	if schemaSQL == "" {
		t.Fatalf("expected embedded schema")
	}
	for _, want := range []string{"CREATE TABLE IF NOT EXISTS users", "users_email_key"} {
		if !strings.Contains(schemaSQL, want) {
			t.Fatalf("schema missing %q", want)
		}
	}
}

type fakeRow struct {
	vals []any
	err  error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if len(dest) != len(r.vals) {
		return fmt.Errorf("scan: %d destinations for %d columns", len(dest), len(r.vals))
	}
	for i, d := range dest {
		reflect.ValueOf(d).Elem().Set(reflect.ValueOf(r.vals[i]))
	}
	return nil
}

type fakeQuerier struct {
	row  fakeRow
	sql  string
	args []any
}

func (q *fakeQuerier) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	q.sql = sql
	q.args = args
	return q.row
}

var pgTestNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func userRow(id, hash string) fakeRow {
	return fakeRow{vals: []any{
		id, "Alice", "a@x.com", hash, "ADMIN", "555", "Street 1", "", pgTestNow, pgTestNow,
	}}
}

func newFakeRepo(row fakeRow) (*UserRepository, *fakeQuerier) {
	q := &fakeQuerier{row: row}
	return &UserRepository{db: q, now: func() time.Time { return pgTestNow }}, q
}

func TestUserRepository_Update_OnlyPasswordHash(t *testing.T) {
	id := uuid.NewString()
	repo, q := newFakeRepo(userRow(id, "$2a$04$new"))

	hash := "$2a$04$new"
	u, err := repo.Update(context.Background(), id, domain.UserUpdate{PasswordHash: &hash})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if u.ID != id || u.PasswordHash != hash || u.Role != domain.RoleAdmin {
		t.Fatalf("unexpected user: %+v", u)
	}

	if !strings.Contains(q.sql, "SET password_hash = COALESCE($2, password_hash), updated_at = $3") {
		t.Fatalf("unexpected update statement: %s", q.sql)
	}
	if got, ok := q.args[1].(*string); !ok || got == nil || *got != hash {
		t.Fatalf("expected password hash as $2, got %#v", q.args[1])
	}
	if got := q.args[2].(time.Time); !got.Equal(pgTestNow) {
		t.Fatalf("expected updated_at %v, got %v", pgTestNow, got)
	}
}

func TestUserRepository_Update_NilHashKeepsColumn(t *testing.T) {
	id := uuid.NewString()
	repo, q := newFakeRepo(userRow(id, "$2a$04$old"))

	if _, err := repo.Update(context.Background(), id, domain.UserUpdate{}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got, ok := q.args[1].(*string); !ok || got != nil {
		t.Fatalf("expected nil $2 so COALESCE keeps the stored hash, got %#v", q.args[1])
	}
}

func TestUserRepository_NotFound(t *testing.T) {
	ctx := context.Background()
	repo, q := newFakeRepo(fakeRow{err: pgx.ErrNoRows})

	if _, err := repo.FindByID(ctx, uuid.NewString()); !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("FindByID: expected ErrUserNotFound, got %v", err)
	}
	if _, err := repo.FindByEmail(ctx, "ghost@x.com"); !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("FindByEmail: expected ErrUserNotFound, got %v", err)
	}
	if _, err := repo.Update(ctx, uuid.NewString(), domain.UserUpdate{}); !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("Update: expected ErrUserNotFound, got %v", err)
	}

	q.sql = ""
	if _, err := repo.FindByID(ctx, "not-a-uuid"); !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound for malformed id, got %v", err)
	}
	if q.sql != "" {
		t.Fatalf("malformed id must not reach the database")
	}
}

func TestUserRepository_Create(t *testing.T) {
	ctx := context.Background()
	in := &domain.User{
		Name:         "Alice",
		Email:        "a@x.com",
		PasswordHash: "$2a$04$hash",
		Role:         domain.RoleAdmin,
		ContactNo:    "555",
		Address:      "Street 1",
		CreatedAt:    pgTestNow,
		UpdatedAt:    pgTestNow,
	}

	repo, q := newFakeRepo(userRow("11111111-1111-1111-1111-111111111111", in.PasswordHash))
	if _, err := repo.Create(ctx, in); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := uuid.Parse(q.args[0].(string)); err != nil {
		t.Fatalf("expected generated uuid as $1, got %v", q.args[0])
	}
	if q.args[4] != "ADMIN" {
		t.Fatalf("expected role as $5, got %v", q.args[4])
	}

	dup, _ := newFakeRepo(fakeRow{err: &pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"}})
	if _, err := dup.Create(ctx, in); !errors.Is(err, domain.ErrUserExists) {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}

	boom, _ := newFakeRepo(fakeRow{err: errors.New("connection reset")})
	if _, err := boom.Create(ctx, in); err == nil || errors.Is(err, domain.ErrUserExists) {
		t.Fatalf("expected wrapped store error, got %v", err)
	}
}
