// Package ports defines the core interfaces between the pipeline and its collaborators.
package ports

import (
	"context"

	"github.com/groqtales/groqtales-server/internal/core/domain"
)

// GenerateInput describes one completion call.
type GenerateInput struct {
	// System is the instruction template.
	System string
	// Prompt is the user content.
	Prompt string
	// Model is an allow-listed model id; empty selects the default model.
	Model string
	// APIKey overrides the configured completion API key for this call.
	APIKey string
	// Temperature overrides the configured sampling temperature when set.
	Temperature *float32
	// MaxTokens caps the completion length when positive.
	MaxTokens int
}

// ChunkStream is a lazy, finite, forward-only sequence of text chunks.
// Recv returns io.EOF after the last chunk. Close releases the upstream
// connection and may be called at any time, including before the end.
type ChunkStream interface {
	Recv() (string, error)
	Close() error
}

// Generator produces story text from a completion API.
type Generator interface {
	// CheckConfig fails with a configuration error when no API key is
	// available. It never touches the network.
	CheckConfig(apiKeyOverride string) error

	// Generate waits for the full completion.
	Generate(ctx context.Context, in *GenerateInput) (*domain.GeneratedStory, error)

	// Stream starts a completion and returns its chunks as they arrive.
	Stream(ctx context.Context, in *GenerateInput) (ChunkStream, error)
}
