// Package wallet derives per-user signing material from an external
// identity string.
//
// DETERMINISTIC CUSTODIAL WALLETS:
// Users never see a seed phrase. Instead, each user's signing key is a pure
// function of their Google subject ID and a process-wide wallet master
// secret. Nothing is ever persisted — the key is recomputed on demand, so
// there is no key store to back up or leak.
//
// The wallet master secret MUST be a different secret from the JWT signing
// secret. If the two were shared, anyone able to forge a session token could
// also derive every user's private key. The two secrets are read from
// separate environment variables and handed to separate constructors; this
// package never sees the JWT secret.
package wallet

import (
	"crypto/ecdsa"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"
)

// Deriver turns identity strings into signing keys and account indices.
// It holds only the wallet master secret.
type Deriver struct {
	secret []byte
}

// NewDeriver creates a Deriver with the given wallet master secret.
// The secret should be at least 32 bytes of random data in production.
// Example: WALLET_MASTER_SECRET=$(openssl rand -hex 32)
func NewDeriver(secret string) (*Deriver, error) {
	if len(secret) < 16 {
		return nil, errors.New("wallet: master secret must be at least 16 characters")
	}
	return &Deriver{secret: []byte(secret)}, nil
}

// PrivateKey derives the secp256k1 private key for an identity.
//
// The key material is HMAC-SHA256(masterSecret, identity): 32 bytes,
// deterministic, and unrecoverable without the master secret. The same
// identity always yields the same key.
//
// crypto.ToECDSA rejects the (astronomically unlikely) case where the
// digest falls outside the secp256k1 scalar field; that error is returned
// rather than swallowed.
func (d *Deriver) PrivateKey(identity string) (*ecdsa.PrivateKey, error) {
	if identity == "" {
		return nil, errors.New("wallet: identity must not be empty")
	}

	mac := hmac.New(sha256.New, d.secret)
	mac.Write([]byte(identity))
	seed := mac.Sum(nil)

	key, err := crypto.ToECDSA(seed)
	if err != nil {
		return nil, fmt.Errorf("wallet: deriving key: %w", err)
	}
	return key, nil
}

// AccountIndex derives the deterministic smart-account index for an
// identity: the first 4 bytes of SHA-256(identity) as a big-endian uint32.
//
// The index matters because a smart account's address is a function of
// (ownerKey, index). Same identity, same index — so the counterfactual
// address is stable across processes and restarts. The digest is a plain
// content hash, not an HMAC: the index is not secret, only stable.
func (d *Deriver) AccountIndex(identity string) uint32 {
	sum := sha256.Sum256([]byte(identity))
	return binary.BigEndian.Uint32(sum[:4])
}
