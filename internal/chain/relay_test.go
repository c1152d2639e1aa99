package chain

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/farhanm/clubchain/internal/apperror"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// fakeHandle scripts each stage of an operation's lifecycle. A nil channel
// field means "answer immediately"; blockHash/blockConfirm make the stage
// hang until the context expires.
type fakeHandle struct {
	hashResponse json.RawMessage
	hashErr      error
	blockHash    bool

	receipt      *types.Receipt
	confirmErr   error
	blockConfirm bool
}

func (h *fakeHandle) WaitForHash(ctx context.Context) (json.RawMessage, error) {
	if h.blockHash {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return h.hashResponse, h.hashErr
}

func (h *fakeHandle) WaitForConfirmation(ctx context.Context) (*types.Receipt, error) {
	if h.blockConfirm {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return h.receipt, h.confirmErr
}

// fakeAccount submits to a scripted handle.
type fakeAccount struct {
	handle      *fakeHandle
	submitErr   error
	blockSubmit bool
	submitted   []Call
}

func (a *fakeAccount) Address() common.Address {
	return common.HexToAddress("0x00000000000000000000000000000000000000a1")
}

func (a *fakeAccount) Submit(ctx context.Context, call Call) (OperationHandle, error) {
	if a.blockSubmit {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	a.submitted = append(a.submitted, call)
	if a.submitErr != nil {
		return nil, a.submitErr
	}
	return a.handle, nil
}

func shortConfig() RelayConfig {
	return RelayConfig{
		SubmitTimeout:  20 * time.Millisecond,
		HashTimeout:    20 * time.Millisecond,
		ConfirmTimeout: 20 * time.Millisecond,
	}
}

func TestRunHappyPath(t *testing.T) {
	account := &fakeAccount{handle: &fakeHandle{
		hashResponse: json.RawMessage(`"0xabc"`),
		receipt:      &types.Receipt{Status: types.ReceiptStatusSuccessful},
	}}
	relay := NewRelay(shortConfig(), testLogger())

	hash, err := relay.Run(context.Background(), account, Call{To: common.HexToAddress("0x1")})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if hash != "0xabc" {
		t.Errorf("hash = %q, want %q", hash, "0xabc")
	}
	if len(account.submitted) != 1 {
		t.Errorf("submitted %d calls, want 1", len(account.submitted))
	}
}

func TestRunAcceptsObjectHashShape(t *testing.T) {
	account := &fakeAccount{handle: &fakeHandle{
		hashResponse: json.RawMessage(`{"transactionHash":"0xdef","blockNumber":"0x10"}`),
		receipt:      &types.Receipt{Status: types.ReceiptStatusSuccessful},
	}}
	relay := NewRelay(shortConfig(), testLogger())

	hash, err := relay.Run(context.Background(), account, Call{})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if hash != "0xdef" {
		t.Errorf("hash = %q, want %q", hash, "0xdef")
	}
}

func TestRunEmptyHashIsNotAnError(t *testing.T) {
	// A relay that confirms but never reports a hash yields an empty
	// string; the operation is confirmed but not trackable.
	account := &fakeAccount{handle: &fakeHandle{
		hashResponse: json.RawMessage(`null`),
		receipt:      &types.Receipt{Status: types.ReceiptStatusSuccessful},
	}}
	relay := NewRelay(shortConfig(), testLogger())

	hash, err := relay.Run(context.Background(), account, Call{})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if hash != "" {
		t.Errorf("hash = %q, want empty", hash)
	}
}

func TestRunSubmissionTimeout(t *testing.T) {
	account := &fakeAccount{blockSubmit: true}
	relay := NewRelay(shortConfig(), testLogger())

	_, err := relay.Run(context.Background(), account, Call{})
	if !errors.Is(err, apperror.ErrSubmissionTimeout) {
		t.Errorf("err = %v, want ErrSubmissionTimeout", err)
	}
}

func TestRunHashTimeoutDoesNotAdvance(t *testing.T) {
	// A relay that never returns a hash — but would confirm — must fail
	// with HashTimeout, not reach the confirmation stage.
	account := &fakeAccount{handle: &fakeHandle{
		blockHash: true,
		receipt:   &types.Receipt{Status: types.ReceiptStatusSuccessful},
	}}
	relay := NewRelay(shortConfig(), testLogger())

	_, err := relay.Run(context.Background(), account, Call{})
	if !errors.Is(err, apperror.ErrHashTimeout) {
		t.Errorf("err = %v, want ErrHashTimeout", err)
	}
	if errors.Is(err, apperror.ErrConfirmationTimeout) {
		t.Error("hash timeout must not be reported as a confirmation timeout")
	}
}

func TestRunConfirmationTimeout(t *testing.T) {
	account := &fakeAccount{handle: &fakeHandle{
		hashResponse: json.RawMessage(`"0xabc"`),
		blockConfirm: true,
	}}
	relay := NewRelay(shortConfig(), testLogger())

	_, err := relay.Run(context.Background(), account, Call{})
	if !errors.Is(err, apperror.ErrConfirmationTimeout) {
		t.Errorf("err = %v, want ErrConfirmationTimeout", err)
	}
}

func TestRunSubmissionRejection(t *testing.T) {
	rejection := errors.New("bundler: op rejected by simulation")
	account := &fakeAccount{submitErr: rejection, handle: &fakeHandle{}}
	relay := NewRelay(shortConfig(), testLogger())

	_, err := relay.Run(context.Background(), account, Call{})
	if !errors.Is(err, rejection) {
		t.Errorf("err = %v, want wrapped rejection", err)
	}
	if errors.Is(err, apperror.ErrSubmissionTimeout) {
		t.Error("an explicit rejection is not a timeout")
	}
}

func TestRunConfirmationRejection(t *testing.T) {
	account := &fakeAccount{handle: &fakeHandle{
		hashResponse: json.RawMessage(`"0xabc"`),
		confirmErr:   apperror.TxRejected("0xabc"),
	}}
	relay := NewRelay(shortConfig(), testLogger())

	_, err := relay.Run(context.Background(), account, Call{})
	if !errors.Is(err, apperror.ErrTxRejected) {
		t.Errorf("err = %v, want ErrTxRejected", err)
	}
}

func TestNormalizeTxHash(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"bare string", `"0xabc"`, "0xabc"},
		{"object shape", `{"transactionHash":"0xdef"}`, "0xdef"},
		{"object with extras", `{"transactionHash":"0x123","blockHash":"0x456"}`, "0x123"},
		{"object missing field", `{"blockHash":"0x456"}`, ""},
		{"null", `null`, ""},
		{"empty payload", ``, ""},
		{"garbage", `[1,2,3]`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var raw json.RawMessage
			if tt.raw != "" {
				raw = json.RawMessage(tt.raw)
			}
			if got := NormalizeTxHash(raw); got != tt.want {
				t.Errorf("NormalizeTxHash(%s) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}
