package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/farhanm/clubchain/internal/apperror"
	"github.com/farhanm/clubchain/internal/wallet"
)

// fakeChainIDReader counts fetches so the cache behaviour is observable.
type fakeChainIDReader struct {
	id    *big.Int
	err   error
	calls int
}

func (f *fakeChainIDReader) ChainID(ctx context.Context) (*big.Int, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.id, nil
}

// fakeFactory derives the "account address" directly from the owner key and
// index, which mirrors the determinism of the real factory closely enough
// for provisioning tests.
type fakeFactory struct {
	err error
}

type fakeFactoryAccount struct {
	addr common.Address
}

func (a *fakeFactoryAccount) Address() common.Address { return a.addr }

func (a *fakeFactoryAccount) Submit(ctx context.Context, call Call) (OperationHandle, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeFactory) Account(ctx context.Context, owner *ecdsa.PrivateKey, chainID *big.Int, index uint32) (SmartAccount, error) {
	if f.err != nil {
		return nil, f.err
	}
	seed := append(crypto.PubkeyToAddress(owner.PublicKey).Bytes(), byte(index), byte(index>>8), byte(index>>16), byte(index>>24))
	return &fakeFactoryAccount{addr: common.BytesToAddress(crypto.Keccak256(seed)[:20])}, nil
}

func newTestProvisioner(t *testing.T, backend *fakeChainIDReader, factory *fakeFactory) *Provisioner {
	t.Helper()
	deriver, err := wallet.NewDeriver("provision-test-secret-16chars!!!")
	if err != nil {
		t.Fatalf("NewDeriver: %v", err)
	}
	return NewProvisioner(deriver, backend, factory, testLogger())
}

func TestProvisionIsIdempotent(t *testing.T) {
	backend := &fakeChainIDReader{id: big.NewInt(84532)}
	p := newTestProvisioner(t, backend, &fakeFactory{})

	first, err := p.Provision(context.Background(), "user-42")
	if err != nil {
		t.Fatalf("Provision() error = %v", err)
	}
	second, err := p.Provision(context.Background(), "user-42")
	if err != nil {
		t.Fatalf("Provision() error = %v", err)
	}

	if first.Address() != second.Address() {
		t.Errorf("same identity provisioned two addresses: %s vs %s",
			first.Address().Hex(), second.Address().Hex())
	}
}

func TestProvisionDistinctIdentitiesDistinctAddresses(t *testing.T) {
	backend := &fakeChainIDReader{id: big.NewInt(84532)}
	p := newTestProvisioner(t, backend, &fakeFactory{})

	a, _ := p.Provision(context.Background(), "user-42")
	b, _ := p.Provision(context.Background(), "user-43")

	if a.Address() == b.Address() {
		t.Error("different identities should provision different addresses")
	}
}

func TestProvisionCachesChainID(t *testing.T) {
	backend := &fakeChainIDReader{id: big.NewInt(84532)}
	p := newTestProvisioner(t, backend, &fakeFactory{})

	for range 3 {
		if _, err := p.Provision(context.Background(), "user-42"); err != nil {
			t.Fatalf("Provision() error = %v", err)
		}
	}

	if backend.calls != 1 {
		t.Errorf("chain ID fetched %d times, want 1 (cached for process lifetime)", backend.calls)
	}
}

func TestProvisionChainIDFailureIsProvisioningError(t *testing.T) {
	backend := &fakeChainIDReader{err: errors.New("rpc unreachable")}
	p := newTestProvisioner(t, backend, &fakeFactory{})

	_, err := p.Provision(context.Background(), "user-42")
	if !errors.Is(err, apperror.ErrProvisioning) {
		t.Errorf("err = %v, want ErrProvisioning", err)
	}

	// A failed fetch must not poison the cache: a later attempt with a
	// healthy backend succeeds.
	backend.err = nil
	backend.id = big.NewInt(84532)
	if _, err := p.Provision(context.Background(), "user-42"); err != nil {
		t.Errorf("Provision() after recovery error = %v", err)
	}
}

func TestProvisionFactoryFailureIsProvisioningError(t *testing.T) {
	backend := &fakeChainIDReader{id: big.NewInt(84532)}
	p := newTestProvisioner(t, backend, &fakeFactory{err: errors.New("bundler unreachable")})

	_, err := p.Provision(context.Background(), "user-42")
	if !errors.Is(err, apperror.ErrProvisioning) {
		t.Errorf("err = %v, want ErrProvisioning", err)
	}
}

func TestProvisionRejectsEmptyIdentity(t *testing.T) {
	backend := &fakeChainIDReader{id: big.NewInt(84532)}
	p := newTestProvisioner(t, backend, &fakeFactory{})

	if _, err := p.Provision(context.Background(), ""); err == nil {
		t.Fatal("Provision() should reject an empty identity")
	}
	if backend.calls != 0 {
		t.Error("derivation failure should short-circuit before any network call")
	}
}
