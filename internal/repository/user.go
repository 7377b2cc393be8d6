package repository

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/alexmt/plus2flickr/internal/domain"
)

//go:embed schema.sql
var schema string

// UserRepository persists users in Postgres. Linked accounts and pending
// request secrets are stored as JSONB documents; concurrent writers are
// serialized through the version column, so a stale read-modify-write
// surfaces as domain.ErrVersionConflict instead of a lost update.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Migrate applies the users schema.
func (r *UserRepository) Migrate(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply users schema: %w", err)
	}
	return nil
}

type userRow struct {
	ID             string         `db:"id"`
	FirstName      sql.NullString `db:"first_name"`
	LastName       sql.NullString `db:"last_name"`
	Email          sql.NullString `db:"email"`
	Accounts       []byte         `db:"accounts"`
	RequestSecrets []byte         `db:"request_secrets"`
	Version        int64          `db:"version"`
}

const userColumns = `id, first_name, last_name, email, accounts, request_secrets, version`

// FindByID retrieves a user by id.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	var row userRow
	err := r.db.GetContext(ctx, &row,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("find user %s: %w", id, err)
	}
	return row.toUser()
}

// FindByLinkedAccount retrieves the user owning the given provider account,
// or domain.ErrNotFound if nobody has linked it.
func (r *UserRepository) FindByLinkedAccount(ctx context.Context, accountID, providerCode string) (*domain.User, error) {
	var row userRow
	err := r.db.GetContext(ctx, &row,
		`SELECT `+userColumns+` FROM users WHERE accounts -> $1 ->> 'id' = $2`,
		providerCode, accountID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("find user by account %s/%s: %w", providerCode, accountID, err)
	}
	return row.toUser()
}

// Add inserts a new user.
func (r *UserRepository) Add(ctx context.Context, user *domain.User) error {
	accounts, secrets, err := marshalMaps(user)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO users (id, first_name, last_name, email, accounts, request_secrets)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		user.ID, user.Info.FirstName, user.Info.LastName, user.Info.Email, accounts, secrets)
	if err != nil {
		return fmt.Errorf("insert user %s: %w", user.ID, err)
	}
	user.Version = 1
	return nil
}

// Update writes the user back, guarded by its version. Returns
// domain.ErrVersionConflict when another writer got there first.
func (r *UserRepository) Update(ctx context.Context, user *domain.User) error {
	accounts, secrets, err := marshalMaps(user)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE users
		 SET first_name = $2, last_name = $3, email = $4,
		     accounts = $5, request_secrets = $6,
		     version = version + 1, updated_at = NOW()
		 WHERE id = $1 AND version = $7`,
		user.ID, user.Info.FirstName, user.Info.LastName, user.Info.Email,
		accounts, secrets, user.Version)
	if err != nil {
		return fmt.Errorf("update user %s: %w", user.ID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update user %s: %w", user.ID, err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: user %s", domain.ErrVersionConflict, user.ID)
	}
	user.Version++
	return nil
}

// Remove deletes the user.
func (r *UserRepository) Remove(ctx context.Context, user *domain.User) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, user.ID); err != nil {
		return fmt.Errorf("delete user %s: %w", user.ID, err)
	}
	return nil
}

func marshalMaps(user *domain.User) (accounts, secrets []byte, err error) {
	if accounts, err = json.Marshal(user.Accounts); err != nil {
		return nil, nil, fmt.Errorf("marshal accounts: %w", err)
	}
	if secrets, err = json.Marshal(user.RequestSecrets); err != nil {
		return nil, nil, fmt.Errorf("marshal request secrets: %w", err)
	}
	return accounts, secrets, nil
}

func (row userRow) toUser() (*domain.User, error) {
	user := domain.NewUser(row.ID)
	user.Version = row.Version
	if row.FirstName.Valid {
		user.Info.FirstName = &row.FirstName.String
	}
	if row.LastName.Valid {
		user.Info.LastName = &row.LastName.String
	}
	if row.Email.Valid {
		user.Info.Email = &row.Email.String
	}
	if len(row.Accounts) > 0 {
		if err := json.Unmarshal(row.Accounts, &user.Accounts); err != nil {
			return nil, fmt.Errorf("unmarshal accounts: %w", err)
		}
	}
	if len(row.RequestSecrets) > 0 {
		if err := json.Unmarshal(row.RequestSecrets, &user.RequestSecrets); err != nil {
			return nil, fmt.Errorf("unmarshal request secrets: %w", err)
		}
	}
	return user, nil
}
