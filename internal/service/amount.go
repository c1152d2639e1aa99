package service

import (
	"math/big"

	"github.com/ethereum/go-ethereum/params"

	"github.com/farhanm/clubchain/internal/apperror"
)

// maxFeeEther caps a single fee payment. Sponsored gas does not cover the
// payment value itself, so an absurd amount is a client error, not a
// treasury feature.
const maxFeeEther = 1000

var weiPerEther = new(big.Int).SetUint64(params.Ether)

// parseEtherAmount converts a decimal ETH string ("0.01") into wei.
//
// Amounts are parsed exactly via big.Rat: floating point would silently
// mangle values like 0.1, and a payment amount is the one place where
// "close enough" is wrong. The amount must be positive, at most
// maxFeeEther, and representable in whole wei (at most 18 decimal places).
func parseEtherAmount(amount string) (*big.Int, error) {
	rat, ok := new(big.Rat).SetString(amount)
	if !ok {
		return nil, apperror.ValidationFailed("amount", "amount must be a decimal number")
	}
	if rat.Sign() <= 0 {
		return nil, apperror.ValidationFailed("amount", "amount must be greater than zero")
	}
	if rat.Cmp(new(big.Rat).SetInt64(maxFeeEther)) > 0 {
		return nil, apperror.ValidationFailed("amount", "amount exceeds the maximum fee payment")
	}

	wei := new(big.Rat).Mul(rat, new(big.Rat).SetInt(weiPerEther))
	if !wei.IsInt() {
		return nil, apperror.ValidationFailed("amount", "amount has more than 18 decimal places")
	}

	return wei.Num(), nil
}

// formatEther renders a wei balance as a trimmed decimal ETH string.
func formatEther(wei *big.Int) string {
	if wei == nil {
		return "0"
	}
	rat := new(big.Rat).SetFrac(wei, weiPerEther)
	s := rat.FloatString(18)

	// Trim trailing zeros and a dangling decimal point.
	i := len(s)
	for i > 0 && s[i-1] == '0' {
		i--
	}
	if i > 0 && s[i-1] == '.' {
		i--
	}
	return s[:i]
}
