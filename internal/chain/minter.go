package chain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/groqtales/groqtales-server/internal/core/domain"
	"github.com/groqtales/groqtales-server/internal/core/ports"
	"github.com/groqtales/groqtales-server/internal/telemetry"
)

// DefaultGasLimit caps the mint transaction when none is configured.
const DefaultGasLimit uint64 = 500000

// DefaultConfirmTimeout bounds the receipt wait when none is configured.
const DefaultConfirmTimeout = 2 * time.Minute

// MinterConfig configures a Minter.
type MinterConfig struct {
	GasLimit       uint64
	ConfirmTimeout time.Duration
	Logger         *slog.Logger
}

// Minter mints story NFTs: it reads mintPrice, pays exactly that in a
// mintStory transaction with a fixed gas limit, waits for one confirmation
// and reads the token id from the StoryMinted event.
type Minter struct {
	backend        Backend
	contract       *bind.BoundContract
	address        common.Address
	signer         Signer
	chainID        *big.Int
	gasLimit       uint64
	confirmTimeout time.Duration
	logger         *slog.Logger

	// onRPCError is called after a mint fails with an RPC error.
	onRPCError func()
}

var _ ports.Minter = (*Minter)(nil)

// nonceLocks serializes nonce assignment and submission per signing
// address, across every Minter in the process.
var nonceLocks sync.Map

func nonceLock(addr common.Address) *sync.Mutex {
	l, _ := nonceLocks.LoadOrStore(addr, &sync.Mutex{})
	return l.(*sync.Mutex)
}

// NewMinter binds the story NFT contract on conn.
func NewMinter(conn *Connection, cfg MinterConfig) *Minter {
	if cfg.GasLimit == 0 {
		cfg.GasLimit = DefaultGasLimit
	}
	if cfg.ConfirmTimeout <= 0 {
		cfg.ConfirmTimeout = DefaultConfirmTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Minter{
		backend:        conn.Backend,
		contract:       bind.NewBoundContract(conn.Contract, storyNFTABI, conn.Backend, conn.Backend, conn.Backend),
		address:        conn.Contract,
		signer:         conn.Signer,
		chainID:        conn.ChainID,
		gasLimit:       cfg.GasLimit,
		confirmTimeout: cfg.ConfirmTimeout,
		logger:         cfg.Logger,
	}
}

// MintPrice reads the contract's current mint price in wei.
func (m *Minter) MintPrice(ctx context.Context) (*big.Int, error) {
	var out []interface{}
	if err := m.contract.Call(&bind.CallOpts{Context: ctx, From: m.signer.Address()}, &out, methodMintPrice); err != nil {
		return nil, err
	}
	if len(out) != 1 {
		return nil, fmt.Errorf("mintPrice returned %d values", len(out))
	}
	price, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("mintPrice returned %T", out[0])
	}
	return price, nil
}

// Mint submits mintStory(storyHash, metadataURI) and waits for its receipt.
// The transaction is sent once. A confirmed transaction without a
// StoryMinted event yields domain.Unresolved. Errors for a transaction that
// was already sent carry its hash in APIError.TxHash.
func (m *Minter) Mint(ctx context.Context, meta domain.MintMetadata) (domain.MintResult, error) {
	result, err := m.mint(ctx, meta)
	if err != nil && m.onRPCError != nil && domain.IsType(err, domain.ErrorTypeRPC) {
		m.onRPCError()
	}
	return result, err
}

func (m *Minter) mint(ctx context.Context, meta domain.MintMetadata) (domain.MintResult, error) {
	price, err := m.MintPrice(ctx)
	if err != nil {
		telemetry.IncMint("rpc_error")
		return nil, domain.ErrRPC("failed to read mint price", err)
	}

	from := m.signer.Address()
	opts := &bind.TransactOpts{
		From:     from,
		Context:  ctx,
		Value:    price,
		GasLimit: m.gasLimit,
		Signer: func(addr common.Address, tx *types.Transaction) (*types.Transaction, error) {
			if addr != from {
				return nil, bind.ErrNotAuthorized
			}
			return m.signer.SignTx(tx, m.chainID)
		},
	}

	tx, err := m.send(ctx, opts, meta)
	if err != nil {
		if apiErr, ok := domain.AsAPIError(err); ok {
			telemetry.IncMint("rpc_error")
			return nil, apiErr
		}
		if reason, ok := revertReason(err); ok {
			telemetry.IncMint("reverted")
			return nil, domain.ErrContractRevert(reason, err)
		}
		telemetry.IncMint("rpc_error")
		return nil, domain.ErrRPC("failed to submit mint transaction", err)
	}

	txHash := tx.Hash().Hex()
	m.logger.InfoContext(ctx, "mint transaction submitted",
		slog.String("tx_hash", txHash),
		slog.String("value_wei", price.String()),
		slog.Uint64("gas_limit", m.gasLimit),
	)

	waitCtx, cancel := context.WithTimeout(ctx, m.confirmTimeout)
	defer cancel()
	receipt, err := bind.WaitMined(waitCtx, m.backend, tx)
	if err != nil {
		telemetry.IncMint("rpc_error")
		return nil, domain.ErrRPC(fmt.Sprintf("mint transaction %s was not confirmed", txHash), err).
			WithTxHash(txHash)
	}

	if receipt.Status == types.ReceiptStatusFailed {
		reason := m.replayRevert(ctx, tx, receipt.BlockNumber)
		telemetry.IncMint("reverted")
		m.logger.WarnContext(ctx, "mint transaction reverted",
			slog.String("tx_hash", txHash),
			slog.String("reason", reason),
		)
		return nil, domain.ErrContractRevert(reason, fmt.Errorf("transaction %s reverted", txHash)).
			WithTxHash(txHash)
	}

	tokenID, ok := m.tokenIDFromReceipt(receipt)
	if !ok {
		telemetry.IncMint("unresolved")
		m.logger.WarnContext(ctx, "mint confirmed without StoryMinted event",
			slog.String("tx_hash", txHash),
		)
		return domain.Unresolved{TxHash: txHash}, nil
	}

	telemetry.IncMint("minted")
	return domain.Minted{TokenID: tokenID.String(), TxHash: txHash}, nil
}

// send assigns the signer's pending nonce and submits the transaction while
// holding the signer's nonce lock, so concurrent mints get distinct nonces.
// Only nonce read failures come back as *domain.APIError.
func (m *Minter) send(ctx context.Context, opts *bind.TransactOpts, meta domain.MintMetadata) (*types.Transaction, error) {
	lock := nonceLock(opts.From)
	lock.Lock()
	defer lock.Unlock()

	nonce, err := m.backend.PendingNonceAt(ctx, opts.From)
	if err != nil {
		return nil, domain.ErrRPC("failed to read signer nonce", err)
	}
	opts.Nonce = new(big.Int).SetUint64(nonce)

	return m.contract.Transact(opts, methodMintStory, meta.StoryHash, meta.MetadataURI)
}

func (m *Minter) tokenIDFromReceipt(receipt *types.Receipt) (*big.Int, bool) {
	eventID := storyNFTABI.Events[eventStoryMinted].ID
	for _, lg := range receipt.Logs {
		if lg == nil || lg.Address != m.address || len(lg.Topics) < 2 || lg.Topics[0] != eventID {
			continue
		}
		return new(big.Int).SetBytes(lg.Topics[1].Bytes()), true
	}
	return nil, false
}

// replayRevert re-executes the reverted call at its block to recover the
// Error(string) reason. It returns "" when the node gives none.
func (m *Minter) replayRevert(ctx context.Context, tx *types.Transaction, block *big.Int) string {
	msg := ethereum.CallMsg{
		From:  m.signer.Address(),
		To:    tx.To(),
		Gas:   tx.Gas(),
		Value: tx.Value(),
		Data:  tx.Data(),
	}
	_, err := m.backend.CallContract(ctx, msg, block)
	if err == nil {
		return ""
	}
	reason, _ := revertReason(err)
	return reason
}

// revertReason extracts a revert reason from an RPC error, preferring the
// ABI-encoded revert data over the node's message text.
func revertReason(err error) (string, bool) {
	var de rpc.DataError
	if errors.As(err, &de) {
		if hexData, ok := de.ErrorData().(string); ok {
			if data, decErr := hexutil.Decode(hexData); decErr == nil {
				if reason, unpackErr := abi.UnpackRevert(data); unpackErr == nil {
					return reason, true
				}
			}
		}
	}
	const marker = "execution reverted"
	msg := err.Error()
	if i := strings.Index(msg, marker); i >= 0 {
		return strings.TrimSpace(strings.TrimPrefix(msg[i+len(marker):], ":")), true
	}
	return "", false
}
