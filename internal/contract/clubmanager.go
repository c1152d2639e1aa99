// Package contract encodes calls to and decodes events from the deployed
// ClubManager contract.
//
// The ABI below is fixed and versioned with the deployment — function
// selectors and event signatures are given, not designed here. Everything in
// this package is pure data transformation except the read calls at the
// bottom, which go straight to the RPC endpoint via eth_call (no relay, no
// transaction).
package contract

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/farhanm/clubchain/internal/apperror"
)

const clubManagerJSON = `[
  {"type":"function","name":"createClub","stateMutability":"nonpayable","inputs":[{"name":"name","type":"string"}],"outputs":[]},
  {"type":"function","name":"joinClub","stateMutability":"nonpayable","inputs":[{"name":"clubId","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"payFee","stateMutability":"payable","inputs":[{"name":"clubId","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"getClubInfo","stateMutability":"view","inputs":[{"name":"clubId","type":"uint256"}],"outputs":[{"name":"name","type":"string"},{"name":"admin","type":"address"},{"name":"balance","type":"uint256"},{"name":"memberCount","type":"uint256"}]},
  {"type":"function","name":"getMembers","stateMutability":"view","inputs":[{"name":"clubId","type":"uint256"}],"outputs":[{"name":"","type":"address[]"}]},
  {"type":"event","name":"ClubCreated","anonymous":false,"inputs":[{"name":"clubId","type":"uint256","indexed":true},{"name":"admin","type":"address","indexed":true},{"name":"name","type":"string","indexed":false}]},
  {"type":"event","name":"MemberJoined","anonymous":false,"inputs":[{"name":"clubId","type":"uint256","indexed":true},{"name":"member","type":"address","indexed":true}]},
  {"type":"event","name":"FeePaid","anonymous":false,"inputs":[{"name":"clubId","type":"uint256","indexed":true},{"name":"payer","type":"address","indexed":true},{"name":"amount","type":"uint256","indexed":false}]}
]`

var clubManagerABI = mustParseABI(clubManagerJSON)

func mustParseABI(s string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(s))
	if err != nil {
		panic(fmt.Sprintf("contract: parsing ClubManager ABI: %v", err))
	}
	return parsed
}

// ContractCaller executes a read-only contract call at the latest block.
// *ethclient.Client satisfies this.
type ContractCaller interface {
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// ClubManager binds the deployed contract address to the ABI.
type ClubManager struct {
	addr   common.Address
	caller ContractCaller
}

// NewClubManager creates a binding for the contract at addr. The caller is
// only used by the read methods; the encode/decode methods are pure.
func NewClubManager(addr common.Address, caller ContractCaller) *ClubManager {
	return &ClubManager{addr: addr, caller: caller}
}

// Address returns the deployed contract address — the destination for every
// transaction this backend submits.
func (c *ClubManager) Address() common.Address {
	return c.addr
}

// EncodeCreateClub returns the calldata for createClub(name).
func (c *ClubManager) EncodeCreateClub(name string) ([]byte, error) {
	data, err := clubManagerABI.Pack("createClub", name)
	if err != nil {
		return nil, fmt.Errorf("contract: encoding createClub: %w", err)
	}
	return data, nil
}

// EncodeJoinClub returns the calldata for joinClub(clubId).
func (c *ClubManager) EncodeJoinClub(clubID int64) ([]byte, error) {
	data, err := clubManagerABI.Pack("joinClub", big.NewInt(clubID))
	if err != nil {
		return nil, fmt.Errorf("contract: encoding joinClub: %w", err)
	}
	return data, nil
}

// EncodePayFee returns the calldata for payFee(clubId). The ETH amount rides
// along as the transaction value, not as calldata.
func (c *ClubManager) EncodePayFee(clubID int64) ([]byte, error) {
	data, err := clubManagerABI.Pack("payFee", big.NewInt(clubID))
	if err != nil {
		return nil, fmt.Errorf("contract: encoding payFee: %w", err)
	}
	return data, nil
}

// DecodeClubCreated recovers the contract-assigned club ID from a confirmed
// receipt.
//
// The club ID is authoritative on-chain state: the caller cannot know it in
// advance, so it must be read back out of the ClubCreated event. Logs are
// scanned in order; entries that don't match the signature are skipped
// without error, since a transaction may emit many unrelated logs. If more
// than one log matches (which correct contract semantics should rule out),
// the first wins and the rest are ignored.
//
// Zero matches is fatal: the transaction succeeded but did not produce the
// expected domain effect, and returning a zero ID here would corrupt the
// local mirror.
func (c *ClubManager) DecodeClubCreated(receipt *types.Receipt) (int64, error) {
	sig := clubManagerABI.Events["ClubCreated"].ID

	for _, l := range receipt.Logs {
		if len(l.Topics) < 2 || l.Topics[0] != sig {
			continue
		}
		// clubId is the first indexed argument.
		clubID := new(big.Int).SetBytes(l.Topics[1].Bytes())
		if !clubID.IsInt64() {
			return 0, fmt.Errorf("contract: club ID %s overflows int64", clubID)
		}
		return clubID.Int64(), nil
	}

	return 0, apperror.EventNotFound("ClubCreated", receipt.TxHash.Hex())
}

// ClubCreatedTopic returns the ClubCreated event signature hash. Exported so
// tests elsewhere can build realistic receipts.
func ClubCreatedTopic() common.Hash {
	return clubManagerABI.Events["ClubCreated"].ID
}

// ClubInfo is the on-chain view of a club returned by getClubInfo.
type ClubInfo struct {
	Name        string
	Admin       common.Address
	Balance     *big.Int // club treasury in wei
	MemberCount uint64
}

// GetClubInfo reads the on-chain club record via eth_call.
func (c *ClubManager) GetClubInfo(ctx context.Context, clubID int64) (*ClubInfo, error) {
	data, err := clubManagerABI.Pack("getClubInfo", big.NewInt(clubID))
	if err != nil {
		return nil, fmt.Errorf("contract: encoding getClubInfo: %w", err)
	}

	ret, err := c.caller.CallContract(ctx, ethereum.CallMsg{To: &c.addr, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("contract: calling getClubInfo(%d): %w", clubID, err)
	}

	out, err := clubManagerABI.Unpack("getClubInfo", ret)
	if err != nil {
		return nil, fmt.Errorf("contract: decoding getClubInfo return: %w", err)
	}

	info := &ClubInfo{
		Name:    out[0].(string),
		Admin:   out[1].(common.Address),
		Balance: out[2].(*big.Int),
	}
	if count := out[3].(*big.Int); count.IsUint64() {
		info.MemberCount = count.Uint64()
	}
	return info, nil
}

// GetMembers reads the on-chain member address list via eth_call.
func (c *ClubManager) GetMembers(ctx context.Context, clubID int64) ([]common.Address, error) {
	data, err := clubManagerABI.Pack("getMembers", big.NewInt(clubID))
	if err != nil {
		return nil, fmt.Errorf("contract: encoding getMembers: %w", err)
	}

	ret, err := c.caller.CallContract(ctx, ethereum.CallMsg{To: &c.addr, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("contract: calling getMembers(%d): %w", clubID, err)
	}

	out, err := clubManagerABI.Unpack("getMembers", ret)
	if err != nil {
		return nil, fmt.Errorf("contract: decoding getMembers return: %w", err)
	}

	return out[0].([]common.Address), nil
}
