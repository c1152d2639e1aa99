// Package service contains the business logic layer of the application.
//
// THE PIPELINE, END TO END:
//
//	Handler (HTTP)  → ClubService (orchestration) → chain (provision, relay)
//	                                              → contract (encode/decode)
//	                                              → repository (reconcile)
//
// ClubService owns the one contract that the rest of the system's
// correctness rests on: the relational store is only ever written AFTER the
// relay reports a confirmed transaction. The store itself has no knowledge
// of chain state and trusts its caller — so the confirmation gate lives
// here, and is tested here.
//
// Every dependency is an interface, injected at construction. Tests swap in
// fakes; main wires the real bundler client, ethclient, and SQLite store.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/farhanm/clubchain/internal/apperror"
	"github.com/farhanm/clubchain/internal/chain"
	"github.com/farhanm/clubchain/internal/contract"
	"github.com/farhanm/clubchain/internal/model"
	"github.com/farhanm/clubchain/internal/repository"
)

// Validation constants for club names, matching the contract's own limits.
const MaxClubNameLength = 100

// Club names: alphanumeric, spaces, hyphens, underscores.
var clubNamePattern = regexp.MustCompile(`^[a-zA-Z0-9 _-]+$`)

// AccountProvisioner resolves an identity to a submission-capable smart
// account. *chain.Provisioner satisfies this.
type AccountProvisioner interface {
	Provision(ctx context.Context, identity string) (chain.SmartAccount, error)
}

// TransactionRelay drives one call through the submit → hash → confirm
// pipeline. *chain.Relay satisfies this.
type TransactionRelay interface {
	Run(ctx context.Context, account chain.SmartAccount, call chain.Call) (string, error)
}

// ReceiptSource fetches a mined transaction's receipt by hash.
// *ethclient.Client satisfies this.
type ReceiptSource interface {
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// ClubService orchestrates club actions: each user-facing action is one
// provision → encode → relay → reconcile pass. Concurrent actions share
// nothing mutable beyond the store and the provisioner's chain-id cache;
// no per-identity serialization is applied here.
type ClubService struct {
	provisioner AccountProvisioner
	relay       TransactionRelay
	manager     *contract.ClubManager
	receipts    ReceiptSource
	users       repository.UserRepository
	clubs       repository.ClubRepository
	logger      *slog.Logger
}

// NewClubService wires the pipeline dependencies.
func NewClubService(
	provisioner AccountProvisioner,
	relay TransactionRelay,
	manager *contract.ClubManager,
	receipts ReceiptSource,
	users repository.UserRepository,
	clubs repository.ClubRepository,
	logger *slog.Logger,
) *ClubService {
	return &ClubService{
		provisioner: provisioner,
		relay:       relay,
		manager:     manager,
		receipts:    receipts,
		users:       users,
		clubs:       clubs,
		logger:      logger,
	}
}

// CreateClubResult is returned by CreateClub: the contract-assigned club ID
// and the transaction that created it.
type CreateClubResult struct {
	ClubID int64  `json:"clubId"`
	TxHash string `json:"txHash"`
}

// TxResult is returned by actions whose only output is the transaction.
type TxResult struct {
	TxHash string `json:"txHash"`
}

// CreateClub submits a createClub transaction for the user and, once
// confirmed, mirrors the new club locally.
//
// The club ID is recovered from the ClubCreated event in the receipt — the
// contract assigns it, so it cannot be known before confirmation. Local
// persistence happens strictly after the receipt has been verified
// successful and decoded; a failure at any earlier point leaves no local
// state behind.
func (s *ClubService) CreateClub(ctx context.Context, userID int64, name string) (*CreateClubResult, error) {
	name, err := validateClubName(name)
	if err != nil {
		return nil, err
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	account, err := s.provisioner.Provision(ctx, user.GoogleID)
	if err != nil {
		return nil, fmt.Errorf("creating club: %w", err)
	}

	data, err := s.manager.EncodeCreateClub(name)
	if err != nil {
		return nil, fmt.Errorf("creating club: %w", err)
	}

	txHash, err := s.relay.Run(ctx, account, chain.Call{To: s.manager.Address(), Data: data})
	if err != nil {
		return nil, fmt.Errorf("creating club: %w", err)
	}

	// An empty hash means the relay confirmed the operation but never
	// reported which transaction carried it. Without a hash there is no
	// receipt, no event, and no authoritative club ID — the club cannot be
	// reconciled, which must surface as a failure, not a silent success.
	if txHash == "" {
		return nil, &apperror.AppError{
			Err:     apperror.ErrTxRejected,
			Message: "transaction confirmed but its hash was not reported",
		}
	}

	receipt, err := s.receipts.TransactionReceipt(ctx, common.HexToHash(txHash))
	if err != nil {
		return nil, fmt.Errorf("creating club: fetching receipt %s: %w", txHash, err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, apperror.TxRejected(txHash)
	}

	clubID, err := s.manager.DecodeClubCreated(receipt)
	if err != nil {
		return nil, fmt.Errorf("creating club: %w", err)
	}

	// Confirmed and decoded — now, and only now, touch the store.
	club := &model.Club{ID: clubID, Name: name, AdminUserID: userID, TxHash: txHash}
	if err := s.clubs.RecordClubCreation(ctx, club); err != nil {
		return nil, fmt.Errorf("creating club: %w", err)
	}

	s.logger.Info("club created",
		slog.Int64("clubID", clubID),
		slog.Int64("adminUserID", userID),
		slog.String("txHash", txHash),
	)

	return &CreateClubResult{ClubID: clubID, TxHash: txHash}, nil
}

// JoinClub submits a joinClub transaction and, once confirmed, mirrors the
// membership locally. The membership insert is idempotent, so re-running a
// join reconciliation after a crash leaves exactly one row.
func (s *ClubService) JoinClub(ctx context.Context, userID, clubID int64) (*TxResult, error) {
	if clubID <= 0 {
		return nil, apperror.ValidationFailed("clubId", "club ID must be a positive integer")
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	account, err := s.provisioner.Provision(ctx, user.GoogleID)
	if err != nil {
		return nil, fmt.Errorf("joining club %d: %w", clubID, err)
	}

	data, err := s.manager.EncodeJoinClub(clubID)
	if err != nil {
		return nil, fmt.Errorf("joining club %d: %w", clubID, err)
	}

	txHash, err := s.relay.Run(ctx, account, chain.Call{To: s.manager.Address(), Data: data})
	if err != nil {
		return nil, fmt.Errorf("joining club %d: %w", clubID, err)
	}

	if err := s.clubs.RecordMembership(ctx, clubID, userID); err != nil {
		return nil, fmt.Errorf("joining club %d: %w", clubID, err)
	}

	s.logger.Info("club joined",
		slog.Int64("clubID", clubID),
		slog.Int64("userID", userID),
		slog.String("txHash", txHash),
	)

	return &TxResult{TxHash: txHash}, nil
}

// PayFee submits a payFee transaction carrying the given ETH amount as
// value. Payments leave no local record — the club treasury lives on-chain.
func (s *ClubService) PayFee(ctx context.Context, userID, clubID int64, amount string) (*TxResult, error) {
	if clubID <= 0 {
		return nil, apperror.ValidationFailed("clubId", "club ID must be a positive integer")
	}

	value, err := parseEtherAmount(amount)
	if err != nil {
		return nil, err
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	account, err := s.provisioner.Provision(ctx, user.GoogleID)
	if err != nil {
		return nil, fmt.Errorf("paying fee for club %d: %w", clubID, err)
	}

	data, err := s.manager.EncodePayFee(clubID)
	if err != nil {
		return nil, fmt.Errorf("paying fee for club %d: %w", clubID, err)
	}

	txHash, err := s.relay.Run(ctx, account, chain.Call{To: s.manager.Address(), Data: data, Value: value})
	if err != nil {
		return nil, fmt.Errorf("paying fee for club %d: %w", clubID, err)
	}

	s.logger.Info("fee paid",
		slog.Int64("clubID", clubID),
		slog.Int64("userID", userID),
		slog.String("amountEth", amount),
		slog.String("txHash", txHash),
	)

	return &TxResult{TxHash: txHash}, nil
}

// ClubDetails merges the on-chain view of a club with the local mirror.
type ClubDetails struct {
	OnChain  OnChainClub  `json:"onChain"`
	OffChain OffChainClub `json:"offChain"`
}

// OnChainClub is read straight from the contract via eth_call.
type OnChainClub struct {
	ClubID      int64    `json:"clubId"`
	Name        string   `json:"name"`
	Admin       string   `json:"admin"`
	BalanceWei  string   `json:"balanceWei"`
	BalanceEth  string   `json:"balanceEth"`
	MemberCount uint64   `json:"memberCount"`
	Members     []string `json:"members"`
}

// OffChainClub is the local mirror: nil Club means the club has not been
// reconciled locally, which says nothing about its on-chain existence.
type OffChainClub struct {
	Club    *model.Club    `json:"club"`
	Members []model.Member `json:"members"`
}

// GetClubDetails serves the read endpoint. It never touches the relay —
// the on-chain half is plain eth_call reads, and the off-chain half is the
// local mirror, which may lag or miss clubs created elsewhere.
func (s *ClubService) GetClubDetails(ctx context.Context, clubID int64) (*ClubDetails, error) {
	if clubID <= 0 {
		return nil, apperror.ValidationFailed("clubId", "club ID must be a positive integer")
	}

	info, err := s.manager.GetClubInfo(ctx, clubID)
	if err != nil {
		return nil, fmt.Errorf("reading club %d: %w", clubID, err)
	}

	onChainMembers, err := s.manager.GetMembers(ctx, clubID)
	if err != nil {
		return nil, fmt.Errorf("reading members of club %d: %w", clubID, err)
	}
	memberAddrs := make([]string, len(onChainMembers))
	for i, addr := range onChainMembers {
		memberAddrs[i] = addr.Hex()
	}

	// Local rows are best-effort: absence is not an error here.
	club, err := s.clubs.GetClubByID(ctx, clubID)
	if err != nil && !errors.Is(err, apperror.ErrNotFound) {
		return nil, fmt.Errorf("reading local club %d: %w", clubID, err)
	}

	members, err := s.clubs.ListMembers(ctx, clubID)
	if err != nil {
		return nil, fmt.Errorf("reading local members of club %d: %w", clubID, err)
	}

	return &ClubDetails{
		OnChain: OnChainClub{
			ClubID:      clubID,
			Name:        info.Name,
			Admin:       info.Admin.Hex(),
			BalanceWei:  info.Balance.String(),
			BalanceEth:  formatEther(info.Balance),
			MemberCount: info.MemberCount,
			Members:     memberAddrs,
		},
		OffChain: OffChainClub{
			Club:    club,
			Members: members,
		},
	}, nil
}

// validateClubName trims and validates a club name, returning the cleaned
// value. Same rules the contract enforces, checked here so a bad name fails
// fast instead of burning a sponsored transaction.
func validateClubName(name string) (string, error) {
	name = strings.TrimSpace(name)

	if name == "" {
		return "", apperror.ValidationFailed("name", "club name is required")
	}
	if len(name) > MaxClubNameLength {
		return "", apperror.ValidationFailed("name",
			fmt.Sprintf("club name must be %d characters or less", MaxClubNameLength))
	}
	if !clubNamePattern.MatchString(name) {
		return "", apperror.ValidationFailed("name", "club name contains invalid characters")
	}

	return name, nil
}
