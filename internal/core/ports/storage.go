package ports

import (
	"context"
	"errors"
	"time"
)

// ErrStoryNotFound is returned by StoryStore.GetStory for unknown ids.
var ErrStoryNotFound = errors.New("story not found")

// StoryStatus tracks where a stored story is in the mint pipeline.
type StoryStatus string

const (
	StoryGenerated  StoryStatus = "generated"
	StoryMinted     StoryStatus = "minted"
	StoryUnresolved StoryStatus = "unresolved"
	StoryMintFailed StoryStatus = "mint_failed"
)

// StoryRecord is a generated story persisted ahead of minting.
type StoryRecord struct {
	ID              string      `json:"id"`
	OwnerAddress    string      `json:"ownerAddress"`
	Title           string      `json:"title"`
	Genre           string      `json:"genre"`
	Model           string      `json:"model"`
	Text            string      `json:"text"`
	StoryHash       string      `json:"storyHash,omitempty"`
	MetadataURI     string      `json:"metadataURI,omitempty"`
	Status          StoryStatus `json:"status"`
	TokenID         string      `json:"tokenId,omitempty"`
	TransactionHash string      `json:"transactionHash,omitempty"`
	Error           string      `json:"error,omitempty"`
	CreatedAt       time.Time   `json:"createdAt"`
	UpdatedAt       time.Time   `json:"updatedAt"`
}

// MintOutcome is the terminal state written back to a stored story.
type MintOutcome struct {
	Status          StoryStatus
	StoryHash       string
	MetadataURI     string
	TokenID         string
	TransactionHash string
	Error           string
}

// StoryStore persists generated stories so their text survives a failed mint.
type StoryStore interface {
	// SaveStory inserts a new record. CreatedAt/UpdatedAt are set by the store.
	SaveStory(ctx context.Context, rec *StoryRecord) error

	// RecordMint writes the mint outcome for an existing story.
	RecordMint(ctx context.Context, id string, outcome MintOutcome) error

	// GetStory returns ErrStoryNotFound for unknown ids.
	GetStory(ctx context.Context, id string) (*StoryRecord, error)

	// Close closes the storage connection
	Close() error
}
