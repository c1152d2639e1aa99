package repository

import (
	"context"

	"github.com/farhanm/clubchain/internal/model"
)

// UserRepository persists user accounts.
//
// Users are created exactly once, at first successful provisioning, and are
// never deleted by this backend. The smart account address stored at
// creation is immutable afterwards.
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id int64) (*model.User, error)
	GetByGoogleID(ctx context.Context, googleID string) (*model.User, error)
}

// ClubRepository mirrors confirmed on-chain club state.
//
// The Record methods are the reconciliation write path: they are only ever
// invoked after the corresponding transaction has confirmed, and both use
// insert-if-absent semantics so a retried reconciliation after a crash is a
// no-op rather than a duplicate or an error. That confirmation gate is the
// orchestration layer's contract, not something the store can check.
type ClubRepository interface {
	// RecordClubCreation inserts the club row and the admin's membership
	// row as a single atomic unit.
	RecordClubCreation(ctx context.Context, club *model.Club) error
	// RecordMembership inserts one membership row, ignoring duplicates.
	RecordMembership(ctx context.Context, clubID, userID int64) error
	GetClubByID(ctx context.Context, clubID int64) (*model.Club, error)
	ListMembers(ctx context.Context, clubID int64) ([]model.Member, error)
}
