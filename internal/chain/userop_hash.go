package chain

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

var (
	addressTy = mustType("address")
	uint256Ty = mustType("uint256")
	bytes32Ty = mustType("bytes32")

	// Static encoding of a user operation for hashing: dynamic byte fields
	// enter as their keccak256 digests.
	packedOpArgs = abi.Arguments{
		{Type: addressTy}, // sender
		{Type: uint256Ty}, // nonce
		{Type: bytes32Ty}, // keccak256(initCode)
		{Type: bytes32Ty}, // keccak256(callData)
		{Type: uint256Ty}, // callGasLimit
		{Type: uint256Ty}, // verificationGasLimit
		{Type: uint256Ty}, // preVerificationGas
		{Type: uint256Ty}, // maxFeePerGas
		{Type: uint256Ty}, // maxPriorityFeePerGas
		{Type: bytes32Ty}, // keccak256(paymasterAndData)
	}

	opEnvelopeArgs = abi.Arguments{
		{Type: bytes32Ty}, // keccak256(packedOp)
		{Type: addressTy}, // entry point
		{Type: uint256Ty}, // chain ID
	}
)

func mustType(name string) abi.Type {
	t, err := abi.NewType(name, "", nil)
	if err != nil {
		panic(fmt.Sprintf("chain: abi type %s: %v", name, err))
	}
	return t
}

// userOpHash computes the canonical hash the account owner signs:
// keccak256(abi.encode(keccak256(packedOp), entryPoint, chainID)).
// Binding the entry point and chain ID into the hash prevents replay of the
// same operation on another chain or through another entry point.
func userOpHash(op *userOperation, entryPoint common.Address, chainID *big.Int) (common.Hash, error) {
	packed, err := packedOpArgs.Pack(
		op.Sender,
		(*big.Int)(op.Nonce),
		crypto.Keccak256Hash(op.InitCode),
		crypto.Keccak256Hash(op.CallData),
		(*big.Int)(op.CallGasLimit),
		(*big.Int)(op.VerificationGasLimit),
		(*big.Int)(op.PreVerificationGas),
		(*big.Int)(op.MaxFeePerGas),
		(*big.Int)(op.MaxPriorityFeePerGas),
		crypto.Keccak256Hash(op.PaymasterAndData),
	)
	if err != nil {
		return common.Hash{}, fmt.Errorf("chain: packing operation for hashing: %w", err)
	}

	envelope, err := opEnvelopeArgs.Pack(crypto.Keccak256Hash(packed), entryPoint, chainID)
	if err != nil {
		return common.Hash{}, fmt.Errorf("chain: packing operation envelope: %w", err)
	}

	return crypto.Keccak256Hash(envelope), nil
}
