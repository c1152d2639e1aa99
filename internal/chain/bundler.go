package chain

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/farhanm/clubchain/internal/apperror"
)

// Minimal ABI fragments for the three fixed contracts the adapter talks to.
// Only the methods actually called are declared.
const (
	accountJSON = `[
  {"type":"function","name":"execute","stateMutability":"nonpayable","inputs":[{"name":"dest","type":"address"},{"name":"value","type":"uint256"},{"name":"func","type":"bytes"}],"outputs":[]}
]`
	factoryJSON = `[
  {"type":"function","name":"createAccount","stateMutability":"nonpayable","inputs":[{"name":"owner","type":"address"},{"name":"salt","type":"uint256"}],"outputs":[{"name":"","type":"address"}]},
  {"type":"function","name":"getAddress","stateMutability":"view","inputs":[{"name":"owner","type":"address"},{"name":"salt","type":"uint256"}],"outputs":[{"name":"","type":"address"}]}
]`
	entryPointJSON = `[
  {"type":"function","name":"getNonce","stateMutability":"view","inputs":[{"name":"sender","type":"address"},{"name":"key","type":"uint192"}],"outputs":[{"name":"","type":"uint256"}]}
]`
)

var (
	accountABI    = mustABI(accountJSON)
	factoryABI    = mustABI(factoryJSON)
	entryPointABI = mustABI(entryPointJSON)
)

func mustABI(s string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(s))
	if err != nil {
		panic(fmt.Sprintf("chain: parsing ABI: %v", err))
	}
	return parsed
}

// userOperation is the wire form of an ERC-4337 user operation as the
// bundler and paymaster endpoints expect it.
type userOperation struct {
	Sender               common.Address `json:"sender"`
	Nonce                *hexutil.Big   `json:"nonce"`
	InitCode             hexutil.Bytes  `json:"initCode"`
	CallData             hexutil.Bytes  `json:"callData"`
	CallGasLimit         *hexutil.Big   `json:"callGasLimit"`
	VerificationGasLimit *hexutil.Big   `json:"verificationGasLimit"`
	PreVerificationGas   *hexutil.Big   `json:"preVerificationGas"`
	MaxFeePerGas         *hexutil.Big   `json:"maxFeePerGas"`
	MaxPriorityFeePerGas *hexutil.Big   `json:"maxPriorityFeePerGas"`
	PaymasterAndData     hexutil.Bytes  `json:"paymasterAndData"`
	Signature            hexutil.Bytes  `json:"signature"`
}

// BundlerConfig holds the fixed addresses the adapter needs.
type BundlerConfig struct {
	// EntryPoint is the ERC-4337 entry point contract.
	EntryPoint common.Address
	// Factory is the smart-account factory contract.
	Factory common.Address
	// PollInterval is how often the operation handle polls the bundler for
	// hash and receipt availability. Deadlines come from the relay, not
	// from here.
	PollInterval time.Duration
}

// DefaultBundlerConfig returns a config with the standard poll cadence; the
// contract addresses must still be filled in from the environment.
func DefaultBundlerConfig() BundlerConfig {
	return BundlerConfig{PollInterval: 2 * time.Second}
}

// BundlerClient is the concrete AccountFactory implementation: it computes
// counterfactual account addresses through the on-chain factory and submits
// sponsored user operations through the bundler/paymaster JSON-RPC pair.
type BundlerClient struct {
	cfg       BundlerConfig
	bundler   *rpc.Client
	paymaster *rpc.Client
	backend   *ethclient.Client
}

var _ AccountFactory = (*BundlerClient)(nil)

// NewBundlerClient wires the two relay endpoints and the chain RPC backend.
// The backend is used for read-only calls only: factory getAddress, entry
// point getNonce, deployment checks, and gas price hints.
func NewBundlerClient(cfg BundlerConfig, bundler, paymaster *rpc.Client, backend *ethclient.Client) *BundlerClient {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	return &BundlerClient{
		cfg:       cfg,
		bundler:   bundler,
		paymaster: paymaster,
		backend:   backend,
	}
}

// Account resolves the deterministic smart account for (owner, index).
//
// The address comes from an eth_call to the factory's getAddress — the same
// CREATE2 computation the factory performs at deployment time, so the
// address is valid before the account contract exists.
func (c *BundlerClient) Account(ctx context.Context, owner *ecdsa.PrivateKey, chainID *big.Int, index uint32) (SmartAccount, error) {
	ownerAddr := crypto.PubkeyToAddress(owner.PublicKey)
	salt := new(big.Int).SetUint64(uint64(index))

	data, err := factoryABI.Pack("getAddress", ownerAddr, salt)
	if err != nil {
		return nil, fmt.Errorf("chain: encoding getAddress: %w", err)
	}

	ret, err := c.backend.CallContract(ctx, ethereum.CallMsg{To: &c.cfg.Factory, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("chain: computing account address: %w", err)
	}

	out, err := factoryABI.Unpack("getAddress", ret)
	if err != nil {
		return nil, fmt.Errorf("chain: decoding account address: %w", err)
	}

	return &bundlerAccount{
		client:  c,
		owner:   owner,
		chainID: chainID,
		salt:    salt,
		addr:    out[0].(common.Address),
	}, nil
}

// bundlerAccount is a SmartAccount backed by the bundler client.
type bundlerAccount struct {
	client  *BundlerClient
	owner   *ecdsa.PrivateKey
	chainID *big.Int
	salt    *big.Int
	addr    common.Address
}

func (a *bundlerAccount) Address() common.Address {
	return a.addr
}

// Submit builds, sponsors, signs, and sends one user operation.
// Sponsorship is always requested — this backend never attaches its own fee
// payer; if the paymaster declines, the submission fails.
func (a *bundlerAccount) Submit(ctx context.Context, call Call) (OperationHandle, error) {
	op, err := a.buildOperation(ctx, call)
	if err != nil {
		return nil, err
	}

	if err := a.client.sponsor(ctx, op); err != nil {
		return nil, err
	}

	if err := a.sign(op); err != nil {
		return nil, err
	}

	var opHash common.Hash
	if err := a.client.bundler.CallContext(ctx, &opHash, "eth_sendUserOperation", op, a.client.cfg.EntryPoint); err != nil {
		return nil, fmt.Errorf("chain: eth_sendUserOperation: %w", err)
	}

	return &bundlerHandle{client: a.client, opHash: opHash}, nil
}

// buildOperation assembles the unsigned, unsponsored operation: sender,
// nonce, init code for a not-yet-deployed account, calldata, and fee hints.
func (a *bundlerAccount) buildOperation(ctx context.Context, call Call) (*userOperation, error) {
	value := call.Value
	if value == nil {
		value = new(big.Int)
	}

	callData, err := accountABI.Pack("execute", call.To, value, call.Data)
	if err != nil {
		return nil, fmt.Errorf("chain: encoding execute: %w", err)
	}

	nonce, err := a.client.accountNonce(ctx, a.addr)
	if err != nil {
		return nil, err
	}

	initCode, err := a.initCode(ctx)
	if err != nil {
		return nil, err
	}

	gasPrice, err := a.client.backend.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("chain: suggesting gas price: %w", err)
	}
	gasTip, err := a.client.backend.SuggestGasTipCap(ctx)
	if err != nil {
		return nil, fmt.Errorf("chain: suggesting gas tip: %w", err)
	}

	return &userOperation{
		Sender:               a.addr,
		Nonce:                (*hexutil.Big)(nonce),
		InitCode:             initCode,
		CallData:             callData,
		CallGasLimit:         (*hexutil.Big)(new(big.Int)),
		VerificationGasLimit: (*hexutil.Big)(new(big.Int)),
		PreVerificationGas:   (*hexutil.Big)(new(big.Int)),
		MaxFeePerGas:         (*hexutil.Big)(gasPrice),
		MaxPriorityFeePerGas: (*hexutil.Big)(gasTip),
		PaymasterAndData:     hexutil.Bytes{},
		Signature:            hexutil.Bytes{},
	}, nil
}

// initCode returns factory address ++ createAccount calldata when the
// account contract is not deployed yet, or empty bytes when it is.
func (a *bundlerAccount) initCode(ctx context.Context) (hexutil.Bytes, error) {
	code, err := a.client.backend.CodeAt(ctx, a.addr, nil)
	if err != nil {
		return nil, fmt.Errorf("chain: checking account deployment: %w", err)
	}
	if len(code) > 0 {
		return hexutil.Bytes{}, nil
	}

	ownerAddr := crypto.PubkeyToAddress(a.owner.PublicKey)
	createData, err := factoryABI.Pack("createAccount", ownerAddr, a.salt)
	if err != nil {
		return nil, fmt.Errorf("chain: encoding createAccount: %w", err)
	}

	return append(a.client.cfg.Factory.Bytes(), createData...), nil
}

// sign computes the ERC-4337 operation hash and signs it with the owner key
// using the standard personal-message prefix.
func (a *bundlerAccount) sign(op *userOperation) error {
	opHash, err := userOpHash(op, a.client.cfg.EntryPoint, a.chainID)
	if err != nil {
		return err
	}

	sig, err := crypto.Sign(accounts.TextHash(opHash.Bytes()), a.owner)
	if err != nil {
		return fmt.Errorf("chain: signing operation: %w", err)
	}

	op.Signature = sig
	return nil
}

// accountNonce reads the entry point's nonce for the sender (key 0).
func (c *BundlerClient) accountNonce(ctx context.Context, sender common.Address) (*big.Int, error) {
	data, err := entryPointABI.Pack("getNonce", sender, new(big.Int))
	if err != nil {
		return nil, fmt.Errorf("chain: encoding getNonce: %w", err)
	}

	ret, err := c.backend.CallContract(ctx, ethereum.CallMsg{To: &c.cfg.EntryPoint, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("chain: fetching account nonce: %w", err)
	}

	out, err := entryPointABI.Unpack("getNonce", ret)
	if err != nil {
		return nil, fmt.Errorf("chain: decoding account nonce: %w", err)
	}
	return out[0].(*big.Int), nil
}

// sponsorResult is the paymaster's answer: the sponsorship blob plus the
// gas limits it settled on while simulating the operation.
type sponsorResult struct {
	PaymasterAndData     hexutil.Bytes `json:"paymasterAndData"`
	CallGasLimit         *hexutil.Big  `json:"callGasLimit"`
	VerificationGasLimit *hexutil.Big  `json:"verificationGasLimit"`
	PreVerificationGas   *hexutil.Big  `json:"preVerificationGas"`
}

// sponsor asks the paymaster to take on the operation's fee and patches the
// sponsorship data and gas limits into op.
func (c *BundlerClient) sponsor(ctx context.Context, op *userOperation) error {
	params := map[string]any{"mode": "SPONSORED"}

	var res sponsorResult
	if err := c.paymaster.CallContext(ctx, &res, "pm_sponsorUserOperation", op, c.cfg.EntryPoint, params); err != nil {
		return fmt.Errorf("chain: pm_sponsorUserOperation: %w", err)
	}

	op.PaymasterAndData = res.PaymasterAndData
	if res.CallGasLimit != nil {
		op.CallGasLimit = res.CallGasLimit
	}
	if res.VerificationGasLimit != nil {
		op.VerificationGasLimit = res.VerificationGasLimit
	}
	if res.PreVerificationGas != nil {
		op.PreVerificationGas = res.PreVerificationGas
	}
	return nil
}

// bundlerHandle tracks one submitted operation by its operation hash.
type bundlerHandle struct {
	client *BundlerClient
	opHash common.Hash
}

var _ OperationHandle = (*bundlerHandle)(nil)

// WaitForHash polls eth_getUserOperationByHash until the bundler reports a
// transaction hash for the operation, returning the raw lookup response for
// the relay to normalize. The deadline comes from ctx.
func (h *bundlerHandle) WaitForHash(ctx context.Context) (json.RawMessage, error) {
	ticker := time.NewTicker(h.client.cfg.PollInterval)
	defer ticker.Stop()

	for {
		var raw json.RawMessage
		err := h.client.bundler.CallContext(ctx, &raw, "eth_getUserOperationByHash", h.opHash)
		if err == nil && len(raw) > 0 && string(raw) != "null" {
			var probe struct {
				TransactionHash *common.Hash `json:"transactionHash"`
			}
			if json.Unmarshal(raw, &probe) == nil && probe.TransactionHash != nil && *probe.TransactionHash != (common.Hash{}) {
				return raw, nil
			}
		}
		// Not indexed yet (or a transient lookup error): poll again until
		// the relay's deadline fires.

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// userOpReceipt is the bundler's receipt envelope: the operation-level
// success flag plus the enclosing transaction receipt.
type userOpReceipt struct {
	Success bool           `json:"success"`
	Receipt *types.Receipt `json:"receipt"`
}

// WaitForConfirmation polls eth_getUserOperationReceipt until the operation
// is included. A receipt with success=false is terminal: the transaction
// landed but the operation reverted.
func (h *bundlerHandle) WaitForConfirmation(ctx context.Context) (*types.Receipt, error) {
	ticker := time.NewTicker(h.client.cfg.PollInterval)
	defer ticker.Stop()

	for {
		var res *userOpReceipt
		err := h.client.bundler.CallContext(ctx, &res, "eth_getUserOperationReceipt", h.opHash)
		if err == nil && res != nil {
			if !res.Success {
				return res.Receipt, apperror.TxRejected(h.opHash.Hex())
			}
			return res.Receipt, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
