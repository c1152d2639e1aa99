package model

import "time"

// Club mirrors a club that exists on-chain.
//
// The ID is NOT generated locally. It is assigned by the ClubManager
// contract and recovered from the ClubCreated event in the transaction
// receipt. A Club row exists locally only if the creation transaction
// reached confirmed, successful status — the local table is a cache of
// on-chain truth, never the source of it.
type Club struct {
	ID          int64     `json:"id"          db:"id"` // authoritative on-chain club ID
	Name        string    `json:"name"        db:"name"`
	AdminUserID int64     `json:"adminUserId" db:"admin_user_id"`
	TxHash      string    `json:"txHash"      db:"tx_hash"` // transaction that created the club
	CreatedAt   time.Time `json:"createdAt"   db:"created_at"`
}

// Member is a club member as seen by the read endpoint: the local user
// profile joined through the memberships table.
type Member struct {
	ID                  int64  `json:"id"`
	Name                string `json:"name"`
	Email               string `json:"email"`
	SmartAccountAddress string `json:"smartAccountAddress"`
}
