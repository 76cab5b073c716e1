// Package chain connects to an EVM RPC endpoint and mints story NFTs.
//
// Custody note: the shipped KeySigner holds one server-side key and signs
// every mint with it, whoever the caller is. Tokens are minted to that
// account and no per-user custody exists.
package chain

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"net/url"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/groqtales/groqtales-server/internal/config"
	"github.com/groqtales/groqtales-server/internal/core/domain"
)

// Signer signs transactions on behalf of one account.
type Signer interface {
	Address() common.Address
	SignTx(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error)
}

// KeySigner signs with an in-memory secp256k1 key.
type KeySigner struct {
	key  *ecdsa.PrivateKey
	addr common.Address
}

// NewKeySigner parses a hex private key, with or without 0x prefix.
func NewKeySigner(hexKey string) (*KeySigner, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse signing key: %w", err)
	}
	return NewKeySignerFromKey(key), nil
}

// NewKeySignerFromKey wraps an existing key.
func NewKeySignerFromKey(key *ecdsa.PrivateKey) *KeySigner {
	return &KeySigner{key: key, addr: crypto.PubkeyToAddress(key.PublicKey)}
}

func (s *KeySigner) Address() common.Address { return s.addr }

func (s *KeySigner) SignTx(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	return types.SignTx(tx, types.LatestSignerForChainID(chainID), s.key)
}

var placeholderMarkers = []string{"your", "example", "placeholder", "changeme", "xxx", "<", ">", "..."}

func isPlaceholder(v string) bool {
	l := strings.ToLower(v)
	for _, m := range placeholderMarkers {
		if strings.Contains(l, m) {
			return true
		}
	}
	return false
}

// CheckConfig validates the chain section without touching the network.
// Every failure is a configuration error.
func CheckConfig(cfg config.ChainConfig) error {
	rpcURL := strings.TrimSpace(cfg.RPCURL)
	if rpcURL == "" {
		return domain.ErrConfiguration("blockchain RPC URL is not configured")
	}
	if isPlaceholder(rpcURL) {
		return domain.ErrConfiguration("blockchain RPC URL is a placeholder value")
	}
	u, err := url.Parse(rpcURL)
	if err != nil || u.Host == "" {
		return domain.ErrConfiguration("blockchain RPC URL is not a valid URL")
	}
	switch u.Scheme {
	case "http", "https", "ws", "wss":
	default:
		return domain.ErrConfiguration(fmt.Sprintf("blockchain RPC URL has unsupported scheme %q", u.Scheme))
	}

	key := strings.TrimSpace(cfg.PrivateKey)
	if key == "" {
		return domain.ErrConfiguration("minting private key is not configured")
	}
	if isPlaceholder(key) {
		return domain.ErrConfiguration("minting private key is a placeholder value")
	}
	if _, err := NewKeySigner(key); err != nil {
		// The parse error may echo key material; keep it out of the message
		return domain.ErrConfiguration("minting private key is not a valid secp256k1 hex key")
	}

	addr := strings.TrimSpace(cfg.ContractAddress)
	if addr == "" {
		return domain.ErrConfiguration("NFT contract address is not configured")
	}
	if !common.IsHexAddress(addr) || common.HexToAddress(addr) == (common.Address{}) {
		return domain.ErrConfiguration("NFT contract address is not a valid address")
	}
	return nil
}
