package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/segyhp/loan-ledger/internal/domain"
	customError "github.com/segyhp/loan-ledger/pkg/errors"
)

const userColumns = `id, username, email, phone, password_hash, role, created_at`

type userRepository struct {
	db *sqlx.DB
}

func NewUserRepository(db *sqlx.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	query := `
		INSERT INTO users (` + userColumns + `)
		VALUES (:id, :username, :email, :phone, :password_hash, :role, :created_at)
	`

	if _, err := r.db.NamedExecContext(ctx, query, user); err != nil {
		if isUniqueViolation(err) {
			return customError.WrapUserAlreadyExists(user.Username)
		}
		return customError.WrapDatabaseError(err)
	}
	return nil
}

func (r *userRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	query := r.db.Rebind(`SELECT ` + userColumns + ` FROM users WHERE username = ?`)

	var user domain.User
	if err := r.db.GetContext(ctx, &user, query, username); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, customError.WrapUserNotFound(username)
		}
		return nil, customError.WrapDatabaseError(err)
	}
	return &user, nil
}

func (r *userRepository) List(ctx context.Context) ([]*domain.User, error) {
	users := []*domain.User{}
	if err := r.db.SelectContext(ctx, &users, `SELECT `+userColumns+` FROM users ORDER BY created_at, username`); err != nil {
		return nil, customError.WrapDatabaseError(err)
	}
	return users, nil
}

func (r *userRepository) Delete(ctx context.Context, username string) error {
	query := r.db.Rebind(`DELETE FROM users WHERE username = ?`)

	result, err := r.db.ExecContext(ctx, query, username)
	if err != nil {
		return customError.WrapDatabaseError(err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return customError.WrapDatabaseError(err)
	}
	if n == 0 {
		return customError.WrapUserNotFound(username)
	}
	return nil
}
