package ports

import (
	"context"

	"github.com/groqtales/groqtales-server/internal/core/domain"
)

// Minter submits a paid mint transaction and waits for its confirmation.
type Minter interface {
	Mint(ctx context.Context, meta domain.MintMetadata) (domain.MintResult, error)
}

// ChainConnector builds a Minter bound to the configured signer.
type ChainConnector interface {
	// CheckConfig validates RPC URL, signing key and contract address
	// without any network call.
	CheckConfig() error

	// Connect dials the RPC endpoint and returns a ready Minter.
	Connect(ctx context.Context) (Minter, error)
}

// MetadataDocument is the off-chain JSON a token's metadata URI points at.
type MetadataDocument struct {
	Name        string              `json:"name"`
	Description string              `json:"description"`
	Genre       string              `json:"genre"`
	Owner       string              `json:"owner"`
	StoryHash   string              `json:"story_hash"`
	Content     string              `json:"content"`
	Model       string              `json:"model,omitempty"`
	CreatedAt   string              `json:"created_at"`
	Attributes  []MetadataAttribute `json:"attributes"`
}

// MetadataAttribute is an ERC-721 metadata trait.
type MetadataAttribute struct {
	TraitType string `json:"trait_type"`
	Value     string `json:"value"`
}

// MetadataUploader stores a metadata document and returns its URI.
type MetadataUploader interface {
	Upload(ctx context.Context, doc *MetadataDocument) (string, error)
}
