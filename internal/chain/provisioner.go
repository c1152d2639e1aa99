package chain

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"sync"

	"github.com/farhanm/clubchain/internal/apperror"
	"github.com/farhanm/clubchain/internal/wallet"
)

// ChainIDReader fetches the network chain ID. *ethclient.Client satisfies
// this.
type ChainIDReader interface {
	ChainID(ctx context.Context) (*big.Int, error)
}

// Provisioner turns an authenticated identity into a submission-capable
// smart account.
//
// Provisioning is idempotent: the signing key, account index, and therefore
// the account address are all deterministic functions of the identity, so
// calling Provision twice for the same identity yields the same address —
// whether or not the account contract has been deployed on-chain yet.
//
// The chain ID is fetched from the RPC endpoint once and cached for the
// process lifetime; it cannot change under a running process.
type Provisioner struct {
	deriver *wallet.Deriver
	backend ChainIDReader
	factory AccountFactory
	logger  *slog.Logger

	mu      sync.Mutex
	chainID *big.Int // lazily resolved, then immutable
}

// NewProvisioner wires the key deriver, the chain RPC backend (chain ID
// lookup only), and the account factory.
func NewProvisioner(deriver *wallet.Deriver, backend ChainIDReader, factory AccountFactory, logger *slog.Logger) *Provisioner {
	return &Provisioner{
		deriver: deriver,
		backend: backend,
		factory: factory,
		logger:  logger,
	}
}

// Provision derives the wallet for identity and resolves its smart account.
//
// The only network traffic is the one-time chain ID fetch and whatever the
// factory needs to compute the counterfactual address. Failures wrap
// apperror.ErrProvisioning and are not retried here — retrying the whole
// user-facing action is the caller's decision.
func (p *Provisioner) Provision(ctx context.Context, identity string) (SmartAccount, error) {
	key, err := p.deriver.PrivateKey(identity)
	if err != nil {
		return nil, fmt.Errorf("chain: %w", err)
	}
	index := p.deriver.AccountIndex(identity)

	chainID, err := p.resolveChainID(ctx)
	if err != nil {
		return nil, apperror.Provisioning(err)
	}

	account, err := p.factory.Account(ctx, key, chainID, index)
	if err != nil {
		return nil, apperror.Provisioning(err)
	}

	p.logger.Debug("smart account provisioned",
		slog.String("address", account.Address().Hex()),
		slog.Uint64("index", uint64(index)),
	)

	return account, nil
}

// resolveChainID returns the cached chain ID, fetching it on first use.
// Serialized under the mutex so concurrent first calls issue at most one
// fetch each and agree on the result.
func (p *Provisioner) resolveChainID(ctx context.Context) (*big.Int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.chainID != nil {
		return p.chainID, nil
	}

	id, err := p.backend.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching chain ID: %w", err)
	}

	p.chainID = id
	p.logger.Info("chain ID resolved", slog.String("chainID", id.String()))
	return id, nil
}
