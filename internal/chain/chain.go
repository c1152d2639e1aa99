// Package chain provisions smart accounts and drives gas-sponsored
// transactions through an ERC-4337 style bundler/paymaster relay.
//
// THE PIPELINE:
//
//	identity → Provisioner (derive key, resolve account)
//	         → Relay (submit → obtain hash → await confirmation)
//	         → caller fetches the receipt by hash and reconciles
//
// The bundler and paymaster are remote capabilities reached over JSON-RPC.
// This package defines the narrow interfaces the pipeline needs from them
// (SmartAccount, OperationHandle, AccountFactory) and one concrete adapter
// (BundlerClient). Tests substitute fakes for the same interfaces.
package chain

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Call is one logical contract invocation: destination, calldata, and an
// optional ETH value. A nil Value means zero.
type Call struct {
	To    common.Address
	Data  []byte
	Value *big.Int
}

// OperationHandle tracks a single submitted user operation.
//
// WaitForHash returns the relay's raw answer for "what transaction carries
// this operation". Different relay implementations report it differently —
// some as a bare JSON string, some as an object with a transactionHash
// field — so the raw bytes are returned here and normalized exactly once,
// at the relay boundary, by NormalizeTxHash.
//
// Both waits block until the relay answers or ctx expires; neither is ever
// called without a deadline.
type OperationHandle interface {
	WaitForHash(ctx context.Context) (json.RawMessage, error)
	WaitForConfirmation(ctx context.Context) (*types.Receipt, error)
}

// SmartAccount is a provisioned smart-contract wallet able to submit
// sponsored operations on its owner's behalf. The address is counterfactual:
// valid and stable whether or not the account contract is deployed yet.
type SmartAccount interface {
	Address() common.Address
	Submit(ctx context.Context, call Call) (OperationHandle, error)
}

// AccountFactory resolves the deterministic smart account for
// (ownerKey, chainID, index).
type AccountFactory interface {
	Account(ctx context.Context, owner *ecdsa.PrivateKey, chainID *big.Int, index uint32) (SmartAccount, error)
}

// NormalizeTxHash collapses the two hash-response shapes into one string.
//
// Accepted shapes:
//
//	"0xabc..."                      → "0xabc..."
//	{"transactionHash": "0xabc..."} → "0xabc..."
//
// Anything else — including null, absent fields, or an unparseable payload —
// normalizes to the empty string. An empty hash is NOT an error: it means
// the operation is not yet trackable by transaction hash, and downstream
// consumers must treat it accordingly.
func NormalizeTxHash(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}

	var obj struct {
		TransactionHash string `json:"transactionHash"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return obj.TransactionHash
	}

	return ""
}
