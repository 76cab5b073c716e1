package chain

import (
	"bytes"
	"context"
	"errors"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// revertError mimics the JSON-RPC error a node returns for a reverted call.
type revertError struct {
	msg  string
	data string
}

func (e *revertError) Error() string          { return e.msg }
func (e *revertError) ErrorData() interface{} { return e.data }

func newRevertError(reason string) *revertError {
	stringType, _ := abi.NewType("string", "", nil)
	packed, _ := abi.Arguments{{Type: stringType}}.Pack(reason)
	selector := crypto.Keccak256([]byte("Error(string)"))[:4]
	return &revertError{
		msg:  "execution reverted: " + reason,
		data: hexutil.Encode(append(selector, packed...)),
	}
}

// fakeBackend is an in-memory chain that records what the minter sends.
// Methods the minter never calls fall through to the nil embedded
// interface and panic.
type fakeBackend struct {
	bind.ContractBackend

	mu sync.Mutex

	chainID   *big.Int
	price     *big.Int
	priceErr  error
	sendErr   error
	nonce     uint64
	gasPrice  *big.Int
	revertMsg string

	// receiptFor builds the receipt for a sent transaction; nil means
	// the transaction never confirms.
	receiptFor func(tx *types.Transaction) *types.Receipt

	sent       []*types.Transaction
	priceCalls int
	replays    int
	closed     bool
}

func (f *fakeBackend) ChainID(context.Context) (*big.Int, error) {
	return f.chainID, nil
}

func (f *fakeBackend) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	priceMethod := storyNFTABI.Methods[methodMintPrice]
	if bytes.HasPrefix(msg.Data, priceMethod.ID) {
		f.priceCalls++
		if f.priceErr != nil {
			return nil, f.priceErr
		}
		return priceMethod.Outputs.Pack(f.price)
	}

	f.replays++
	if f.revertMsg != "" {
		return nil, newRevertError(f.revertMsg)
	}
	return nil, nil
}

func (f *fakeBackend) CodeAt(context.Context, common.Address, *big.Int) ([]byte, error) {
	return []byte{0x60, 0x80}, nil
}

func (f *fakeBackend) HeaderByNumber(context.Context, *big.Int) (*types.Header, error) {
	return &types.Header{Number: big.NewInt(100)}, nil
}

func (f *fakeBackend) SuggestGasPrice(context.Context) (*big.Int, error) {
	if f.gasPrice != nil {
		return f.gasPrice, nil
	}
	return big.NewInt(1_000_000_000), nil
}

// PendingNonceAt counts sent transactions on top of the starting nonce, the
// way a node counts its pool.
func (f *fakeBackend) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.nonce + uint64(len(f.sent)), nil
}

func (f *fakeBackend) SendTransaction(_ context.Context, tx *types.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	for _, prev := range f.sent {
		if prev.Nonce() == tx.Nonce() {
			return errors.New("nonce too low")
		}
	}
	f.sent = append(f.sent, tx)
	return nil
}

func (f *fakeBackend) TransactionReceipt(_ context.Context, hash common.Hash) (*types.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, tx := range f.sent {
		if tx.Hash() == hash && f.receiptFor != nil {
			r := f.receiptFor(tx)
			if r != nil {
				r.TxHash = hash
				return r, nil
			}
		}
	}
	return nil, ethereum.NotFound
}

func (f *fakeBackend) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}

func (f *fakeBackend) sentTxs() []*types.Transaction {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*types.Transaction(nil), f.sent...)
}

// storyMintedLog builds the StoryMinted log the contract emits.
func storyMintedLog(contract common.Address, tokenID int64, creator common.Address, storyHash, uri string) *types.Log {
	event := storyNFTABI.Events[eventStoryMinted]
	data, _ := event.Inputs.NonIndexed().Pack(storyHash, uri)
	return &types.Log{
		Address: contract,
		Topics: []common.Hash{
			event.ID,
			common.BigToHash(big.NewInt(tokenID)),
			common.BytesToHash(creator.Bytes()),
		},
		Data: data,
	}
}

func successReceipt(logs ...*types.Log) func(*types.Transaction) *types.Receipt {
	return func(*types.Transaction) *types.Receipt {
		return &types.Receipt{
			Status:      types.ReceiptStatusSuccessful,
			BlockNumber: big.NewInt(101),
			Logs:        logs,
		}
	}
}
