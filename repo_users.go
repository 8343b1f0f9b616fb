package users

import (
	"context"
	"database/sql"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/driver/pgdriver"
)

// Plain table references so both pgdriver and the sqlite test driver
// accept the statement.
var resetUserPasswordSQL = `UPDATE "users"
SET
	"password_hash" = ?
WHERE
	"id" = ?
RETURNING "id";`

// Users is the persistence surface for user records. It satisfies UserStore
// and adds transactional variants for callers composing larger operations.
type Users interface {
	UserStore

	FindByEmailTx(ctx context.Context, tx bun.IDB, email string) (*User, error)
	FindByIDTx(ctx context.Context, tx bun.IDB, id int64) (*User, error)
	CreateTx(ctx context.Context, tx bun.IDB, user *User) (*User, error)
	UpdateTx(ctx context.Context, tx bun.IDB, user *User) (*User, error)
	SetPasswordHashTx(ctx context.Context, tx bun.IDB, id int64, hash string) error

	List(ctx context.Context) ([]*User, error)
}

type usersRepo struct {
	db *bun.DB
}

var _ Users = (*usersRepo)(nil)

// NewUsersRepository returns the bun-backed Users repository.
func NewUsersRepository(db *bun.DB) Users {
	return &usersRepo{db: db}
}

func (r *usersRepo) FindByEmail(ctx context.Context, email string) (*User, error) {
	return r.FindByEmailTx(ctx, r.db, email)
}

func (r *usersRepo) FindByEmailTx(ctx context.Context, tx bun.IDB, email string) (*User, error) {
	record := &User{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.email = ?", NormalizeEmail(email)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, mapLookupError(err, map[string]any{"email": email})
	}
	return record, nil
}

func (r *usersRepo) FindByID(ctx context.Context, id int64) (*User, error) {
	return r.FindByIDTx(ctx, r.db, id)
}

func (r *usersRepo) FindByIDTx(ctx context.Context, tx bun.IDB, id int64) (*User, error) {
	record := &User{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, mapLookupError(err, map[string]any{"id": id})
	}
	return record, nil
}

func (r *usersRepo) Create(ctx context.Context, user *User) (*User, error) {
	return r.CreateTx(ctx, r.db, user)
}

func (r *usersRepo) CreateTx(ctx context.Context, tx bun.IDB, user *User) (*User, error) {
	user.Email = NormalizeEmail(user.Email)
	if user.Timezone == "" {
		user.Timezone = DefaultTimezone
	}

	if _, err := tx.NewInsert().Model(user).Returning("*").Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return nil, ErrEmailTaken
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "user insert failed")
	}
	return user, nil
}

func (r *usersRepo) Update(ctx context.Context, user *User) (*User, error) {
	return r.UpdateTx(ctx, r.db, user)
}

func (r *usersRepo) UpdateTx(ctx context.Context, tx bun.IDB, user *User) (*User, error) {
	res, err := tx.NewUpdate().
		Model(user).
		WherePK().
		Returning("*").
		Exec(ctx)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrEmailTaken
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "user update failed")
	}

	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return nil, ErrUserNotFound
	}

	return user, nil
}

func (r *usersRepo) List(ctx context.Context) ([]*User, error) {
	records := []*User{}
	err := r.db.NewSelect().
		Model(&records).
		Order("usr.id ASC").
		Scan(ctx)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "user listing failed")
	}
	return records, nil
}

func (r *usersRepo) SetPasswordHash(ctx context.Context, id int64, hash string) error {
	return r.SetPasswordHashTx(ctx, r.db, id, hash)
}

func (r *usersRepo) SetPasswordHashTx(ctx context.Context, tx bun.IDB, id int64, hash string) error {
	var updatedID int64
	err := tx.NewRaw(resetUserPasswordSQL, hash, id).Scan(ctx, &updatedID)
	if err != nil {
		if goerrors.Is(err, sql.ErrNoRows) {
			return ErrUserNotFound
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "password update failed")
	}
	return nil
}

func mapLookupError(err error, metadata map[string]any) error {
	if goerrors.Is(err, sql.ErrNoRows) {
		return goerrors.New("user not found", goerrors.CategoryNotFound).
			WithCode(goerrors.CodeNotFound).
			WithTextCode("USER_NOT_FOUND").
			WithMetadata(metadata)
	}
	return goerrors.Wrap(err, goerrors.CategoryInternal, "user lookup failed")
}

// isUniqueViolation detects the duplicate-email case across the drivers we
// run against: pgdriver in production, sqlite in tests.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pgErr pgdriver.Error
	if goerrors.As(err, &pgErr) {
		return pgErr.IntegrityViolation()
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
