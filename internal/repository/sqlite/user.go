package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/farhanm/clubchain/internal/apperror"
	"github.com/farhanm/clubchain/internal/model"
	"github.com/farhanm/clubchain/internal/repository"
)

// compile-time check that *DB implements repository.UserRepository
var _ repository.UserRepository = (*DB)(nil)

// Create inserts a new user row.
//
// Called exactly once per identity, at first login, after the smart account
// address has been provisioned. The google_id and email unique constraints
// back the once-only guarantee: when two concurrent first logins race, the
// loser gets apperror.ErrConflict and re-reads the winner's row instead of
// creating a second one.
func (db *DB) Create(ctx context.Context, user *model.User) error {
	user.CreatedAt = time.Now().UTC()

	res, err := db.conn.ExecContext(ctx,
		`INSERT INTO users (google_id, email, name, picture, smart_account_address, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		user.GoogleID,
		user.Email,
		user.Name,
		user.Picture,
		user.SmartAccountAddress,
		user.CreatedAt,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return apperror.Conflict("user", user.GoogleID)
		}
		return apperror.StoreConflict(fmt.Errorf("inserting user: %w", err))
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlite: reading new user id: %w", err)
	}
	user.ID = id
	return nil
}

// GetByID retrieves a user by internal ID.
// Returns apperror.ErrNotFound if no user exists with that ID.
func (db *DB) GetByID(ctx context.Context, id int64) (*model.User, error) {
	return db.scanUser(db.conn.QueryRowContext(ctx,
		`SELECT id, google_id, email, name, picture, smart_account_address, created_at
		 FROM users WHERE id = ?`, id,
	), strconv.FormatInt(id, 10))
}

// GetByGoogleID retrieves a user by their Google subject ID.
// Returns apperror.ErrNotFound for unknown identities — the signal that a
// first login should provision and create the account.
func (db *DB) GetByGoogleID(ctx context.Context, googleID string) (*model.User, error) {
	return db.scanUser(db.conn.QueryRowContext(ctx,
		`SELECT id, google_id, email, name, picture, smart_account_address, created_at
		 FROM users WHERE google_id = ?`, googleID,
	), googleID)
}

func (db *DB) scanUser(row *sql.Row, key string) (*model.User, error) {
	var u model.User
	err := row.Scan(
		&u.ID,
		&u.GoogleID,
		&u.Email,
		&u.Name,
		&u.Picture,
		&u.SmartAccountAddress,
		&u.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("user", key)
		}
		return nil, fmt.Errorf("sqlite: getting user %s: %w", key, err)
	}
	return &u, nil
}
