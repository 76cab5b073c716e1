package chain

import (
	"context"
	"log/slog"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/groqtales/groqtales-server/internal/config"
	"github.com/groqtales/groqtales-server/internal/core/domain"
	"github.com/groqtales/groqtales-server/internal/core/ports"
)

// Backend is the RPC surface the minter needs. *ethclient.Client satisfies it.
type Backend interface {
	bind.ContractBackend
	bind.DeployBackend
	ChainID(ctx context.Context) (*big.Int, error)
}

// DialFunc opens a Backend for an RPC URL.
type DialFunc func(ctx context.Context, rpcURL string) (Backend, error)

func dialEthclient(ctx context.Context, rpcURL string) (Backend, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// Connection is a dialed backend bound to a signer and chain id.
type Connection struct {
	Backend  Backend
	ChainID  *big.Int
	Signer   Signer
	Contract common.Address
}

// Connect checks cfg, dials the RPC endpoint and reads the chain id.
func Connect(ctx context.Context, cfg config.ChainConfig, dial DialFunc) (*Connection, error) {
	if err := CheckConfig(cfg); err != nil {
		return nil, err
	}
	signer, err := NewKeySigner(cfg.PrivateKey)
	if err != nil {
		return nil, domain.ErrConfiguration("minting private key is not a valid secp256k1 hex key")
	}
	if dial == nil {
		dial = dialEthclient
	}

	backend, err := dial(ctx, cfg.RPCURL)
	if err != nil {
		return nil, domain.ErrRPC("failed to connect to blockchain RPC", err)
	}
	chainID, err := backend.ChainID(ctx)
	if err != nil {
		return nil, domain.ErrRPC("failed to read chain id", err)
	}

	return &Connection{
		Backend:  backend,
		ChainID:  chainID,
		Signer:   signer,
		Contract: common.HexToAddress(cfg.ContractAddress),
	}, nil
}

// Connector implements ports.ChainConnector. A successful Connect is kept
// and reused by later calls until a mint fails with an RPC error, after
// which the next Connect dials again.
type Connector struct {
	cfg    config.ChainConfig
	dial   DialFunc
	logger *slog.Logger

	mu     sync.Mutex
	minter *Minter
}

var _ ports.ChainConnector = (*Connector)(nil)

// ConnectorOption configures a Connector.
type ConnectorOption func(*Connector)

// WithDialer replaces ethclient dialing, mainly for tests.
func WithDialer(dial DialFunc) ConnectorOption {
	return func(c *Connector) {
		c.dial = dial
	}
}

// NewConnector creates a connector for the chain configuration section.
func NewConnector(cfg config.ChainConfig, logger *slog.Logger, opts ...ConnectorOption) *Connector {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Connector{cfg: cfg, dial: dialEthclient, logger: logger}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Connector) CheckConfig() error {
	return CheckConfig(c.cfg)
}

func (c *Connector) Connect(ctx context.Context) (ports.Minter, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.minter != nil {
		return c.minter, nil
	}

	conn, err := Connect(ctx, c.cfg, c.dial)
	if err != nil {
		return nil, err
	}
	m := NewMinter(conn, MinterConfig{
		GasLimit:       c.cfg.GasLimit,
		ConfirmTimeout: c.cfg.ConfirmTimeout,
		Logger:         c.logger,
	})
	m.onRPCError = func() { c.release(m) }
	c.minter = m

	c.logger.InfoContext(ctx, "connected to chain",
		slog.String("chain_id", conn.ChainID.String()),
		slog.String("signer", conn.Signer.Address().Hex()),
		slog.String("contract", conn.Contract.Hex()),
	)
	return c.minter, nil
}

// release forgets m so the next Connect redials. The backend is left open
// because other mints may still be waiting on receipts through it.
func (c *Connector) release(m *Minter) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.minter != m {
		return
	}
	c.minter = nil
	c.logger.Warn("dropping chain connection after RPC error")
}

// Close releases the pooled RPC connection, if any.
func (c *Connector) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.minter == nil {
		return
	}
	if closer, ok := c.minter.backend.(interface{ Close() }); ok {
		closer.Close()
	}
	c.minter = nil
}
