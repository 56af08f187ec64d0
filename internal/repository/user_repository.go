package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/lsuits/ues-sync/internal/models"
)

// UserRepository handles persistence for local user identities.
type UserRepository struct {
	store *Store
	db    *sqlx.DB
}

// NewUserRepository constructs the repository.
func NewUserRepository(store *Store) *UserRepository {
	return &UserRepository{store: store, db: store.DB()}
}

// FindByIDNumber loads a user by institutional id number.
func (r *UserRepository) FindByIDNumber(ctx context.Context, idnumber string) (*models.User, error) {
	const query = `SELECT id, idnumber, username, first_name, last_name, email, city, country, auth, confirmed, created_at, updated_at FROM users WHERE idnumber = $1`
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, idnumber); err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByUsername loads a user by username.
func (r *UserRepository) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	const query = `SELECT id, idnumber, username, first_name, last_name, email, city, country, auth, confirmed, created_at, updated_at FROM users WHERE username = $1`
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, username); err != nil {
		return nil, err
	}
	return &user, nil
}

// Create persists a new user record.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now
	const query = `INSERT INTO users (id, idnumber, username, first_name, last_name, email, city, country, auth, confirmed, created_at, updated_at)
        VALUES (:id, :idnumber, :username, :first_name, :last_name, :email, :city, :country, :auth, :confirmed, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, user); err != nil {
		return storeErr(err, "create user")
	}
	if err := r.store.SaveMeta(ctx, models.KindUser, user.ID, user.Meta); err != nil {
		return fmt.Errorf("user meta: %w", err)
	}
	return nil
}

// Update rewrites the identity fields of an existing user.
func (r *UserRepository) Update(ctx context.Context, user *models.User) error {
	user.UpdatedAt = time.Now().UTC()
	const query = `UPDATE users SET idnumber = :idnumber, username = :username, first_name = :first_name, last_name = :last_name,
        email = :email, city = :city, country = :country, auth = :auth, confirmed = :confirmed, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, user); err != nil {
		return storeErr(err, "update user")
	}
	if err := r.store.SaveMeta(ctx, models.KindUser, user.ID, user.Meta); err != nil {
		return fmt.Errorf("user meta: %w", err)
	}
	return nil
}
