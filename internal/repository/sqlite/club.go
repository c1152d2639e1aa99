package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/farhanm/clubchain/internal/apperror"
	"github.com/farhanm/clubchain/internal/model"
	"github.com/farhanm/clubchain/internal/repository"
)

// compile-time check that *DB implements repository.ClubRepository
var _ repository.ClubRepository = (*DB)(nil)

// RecordClubCreation commits a confirmed club creation: the club row plus
// the admin's membership row, in one SQL transaction.
//
// Both inserts use INSERT OR IGNORE against their unique keys (clubs.id and
// memberships(club_id, user_id)). That makes the whole operation safe to
// repeat: a crash between on-chain confirmation and local commit is healed
// by simply running the reconciliation again — no duplicate rows, no
// duplicate-key error, no separate idempotency ledger.
//
// The transaction is what keeps the invariant that a club row never exists
// without its admin membership, or vice versa.
func (db *DB) RecordClubCreation(ctx context.Context, club *model.Club) error {
	club.CreatedAt = time.Now().UTC()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning club creation tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO clubs (id, name, admin_user_id, tx_hash, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		club.ID,
		club.Name,
		club.AdminUserID,
		club.TxHash,
		club.CreatedAt,
	)
	if err != nil {
		// OR IGNORE swallows unique-key conflicts, so an error here is a
		// real constraint violation (e.g. missing admin user row).
		return apperror.StoreConflict(fmt.Errorf("inserting club %d: %w", club.ID, err))
	}

	_, err = tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO memberships (club_id, user_id) VALUES (?, ?)`,
		club.ID,
		club.AdminUserID,
	)
	if err != nil {
		return apperror.StoreConflict(fmt.Errorf("inserting admin membership for club %d: %w", club.ID, err))
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing club creation: %w", err)
	}
	return nil
}

// RecordMembership commits one confirmed join. Same ignore-on-conflict
// semantics as RecordClubCreation; repeating a join reconciliation leaves
// exactly one row.
func (db *DB) RecordMembership(ctx context.Context, clubID, userID int64) error {
	_, err := db.conn.ExecContext(ctx,
		`INSERT OR IGNORE INTO memberships (club_id, user_id) VALUES (?, ?)`,
		clubID,
		userID,
	)
	if err != nil {
		return apperror.StoreConflict(fmt.Errorf("inserting membership (%d,%d): %w", clubID, userID, err))
	}
	return nil
}

// GetClubByID retrieves the locally mirrored club row.
// Returns apperror.ErrNotFound if the club has not been reconciled locally
// — which says nothing about whether it exists on-chain.
func (db *DB) GetClubByID(ctx context.Context, clubID int64) (*model.Club, error) {
	var c model.Club
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, name, admin_user_id, tx_hash, created_at
		 FROM clubs WHERE id = ?`, clubID,
	).Scan(&c.ID, &c.Name, &c.AdminUserID, &c.TxHash, &c.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("club", strconv.FormatInt(clubID, 10))
		}
		return nil, fmt.Errorf("sqlite: getting club %d: %w", clubID, err)
	}
	return &c, nil
}

// ListMembers returns the local profiles of a club's members, joined
// through the memberships table in join order.
func (db *DB) ListMembers(ctx context.Context, clubID int64) ([]model.Member, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT u.id, u.name, u.email, u.smart_account_address
		 FROM memberships m
		 JOIN users u ON u.id = m.user_id
		 WHERE m.club_id = ?
		 ORDER BY m.id`, clubID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing members of club %d: %w", clubID, err)
	}
	defer rows.Close()

	var members []model.Member
	for rows.Next() {
		var m model.Member
		if err := rows.Scan(&m.ID, &m.Name, &m.Email, &m.SmartAccountAddress); err != nil {
			return nil, fmt.Errorf("sqlite: scanning member row: %w", err)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating member rows: %w", err)
	}
	return members, nil
}
