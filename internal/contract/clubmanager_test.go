package contract

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/farhanm/clubchain/internal/apperror"
)

func testManager() *ClubManager {
	return NewClubManager(common.HexToAddress("0x00000000000000000000000000000000000000aa"), nil)
}

// clubCreatedLog builds a log entry the way the contract emits it:
// topics = [signature, clubId, admin], data = ABI-encoded name.
func clubCreatedLog(clubID int64, admin common.Address) *types.Log {
	return &types.Log{
		Address: common.HexToAddress("0x00000000000000000000000000000000000000aa"),
		Topics: []common.Hash{
			ClubCreatedTopic(),
			common.BigToHash(big.NewInt(clubID)),
			common.BytesToHash(admin.Bytes()),
		},
	}
}

// unrelatedLog fabricates a log from some other contract (e.g. an ERC-20
// Transfer) that must be skipped without error.
func unrelatedLog() *types.Log {
	return &types.Log{
		Address: common.HexToAddress("0x00000000000000000000000000000000000000bb"),
		Topics: []common.Hash{
			common.HexToHash("0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef"),
			common.BytesToHash(common.HexToAddress("0x1").Bytes()),
			common.BytesToHash(common.HexToAddress("0x2").Bytes()),
		},
		Data: common.BigToHash(big.NewInt(1)).Bytes(),
	}
}

func TestDecodeClubCreated(t *testing.T) {
	cm := testManager()
	admin := common.HexToAddress("0x00000000000000000000000000000000000000cc")

	receipt := &types.Receipt{
		Status: types.ReceiptStatusSuccessful,
		TxHash: common.HexToHash("0xabc"),
		Logs:   []*types.Log{clubCreatedLog(7, admin)},
	}

	clubID, err := cm.DecodeClubCreated(receipt)
	require.NoError(t, err)
	assert.Equal(t, int64(7), clubID)
}

func TestDecodeClubCreatedSkipsUnrelatedLogs(t *testing.T) {
	cm := testManager()
	admin := common.HexToAddress("0xcc")

	// The creation event buried between unrelated logs must still decode
	// to exactly the emitted ID.
	receipt := &types.Receipt{
		Status: types.ReceiptStatusSuccessful,
		TxHash: common.HexToHash("0xabc"),
		Logs: []*types.Log{
			unrelatedLog(),
			unrelatedLog(),
			clubCreatedLog(42, admin),
			unrelatedLog(),
		},
	}

	clubID, err := cm.DecodeClubCreated(receipt)
	require.NoError(t, err)
	assert.Equal(t, int64(42), clubID)
}

func TestDecodeClubCreatedNoMatchIsEventNotFound(t *testing.T) {
	cm := testManager()

	receipt := &types.Receipt{
		Status: types.ReceiptStatusSuccessful,
		TxHash: common.HexToHash("0xabc"),
		Logs:   []*types.Log{unrelatedLog()},
	}

	_, err := cm.DecodeClubCreated(receipt)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperror.ErrEventNotFound),
		"zero matching logs must surface ErrEventNotFound, not a zero ID")
}

func TestDecodeClubCreatedTakesFirstOfMultiple(t *testing.T) {
	cm := testManager()
	admin := common.HexToAddress("0xcc")

	// Should not happen under correct contract semantics, but the decoder
	// takes the first in log order rather than guessing.
	receipt := &types.Receipt{
		Status: types.ReceiptStatusSuccessful,
		TxHash: common.HexToHash("0xabc"),
		Logs: []*types.Log{
			clubCreatedLog(3, admin),
			clubCreatedLog(9, admin),
		},
	}

	clubID, err := cm.DecodeClubCreated(receipt)
	require.NoError(t, err)
	assert.Equal(t, int64(3), clubID)
}

func TestEncodeCreateClubSelector(t *testing.T) {
	cm := testManager()

	data, err := cm.EncodeCreateClub("Chess Club")
	require.NoError(t, err)

	// First four bytes are the function selector; the rest is the
	// ABI-encoded string argument.
	require.GreaterOrEqual(t, len(data), 4)
	assert.Equal(t, clubManagerABI.Methods["createClub"].ID, data[:4])
}

func TestEncodeJoinClubRoundTrip(t *testing.T) {
	cm := testManager()

	data, err := cm.EncodeJoinClub(7)
	require.NoError(t, err)
	assert.Equal(t, clubManagerABI.Methods["joinClub"].ID, data[:4])

	args, err := clubManagerABI.Methods["joinClub"].Inputs.Unpack(data[4:])
	require.NoError(t, err)
	assert.Equal(t, int64(7), args[0].(*big.Int).Int64())
}

func TestEncodePayFeeCarriesNoAmount(t *testing.T) {
	cm := testManager()

	data, err := cm.EncodePayFee(5)
	require.NoError(t, err)
	// payFee takes only the club ID; the payment amount is the tx value.
	assert.Len(t, data, 4+32)
}
