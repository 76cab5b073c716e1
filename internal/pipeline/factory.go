package pipeline

import (
	"fmt"
	"log/slog"

	"github.com/groqtales/groqtales-server/internal/chain"
	"github.com/groqtales/groqtales-server/internal/config"
	"github.com/groqtales/groqtales-server/internal/content"
	"github.com/groqtales/groqtales-server/internal/core/ports"
	"github.com/groqtales/groqtales-server/internal/llm/groq"
	"github.com/groqtales/groqtales-server/internal/metadata"
	"github.com/groqtales/groqtales-server/internal/storage"
	"github.com/groqtales/groqtales-server/internal/tokens"
	"github.com/groqtales/groqtales-server/internal/validate"
)

// Services holds everything built from configuration that the HTTP layer
// needs. Store is nil when storage is disabled.
type Services struct {
	Groq         *groq.Client
	Processor    *content.Processor
	Chain        *chain.Connector
	Store        ports.StoryStore
	Orchestrator *Orchestrator
}

// NewFromConfig builds the completion client, chain connector, metadata
// uploader and story store from cfg and wires them into an Orchestrator.
// Nothing here touches the network.
func NewFromConfig(cfg *config.Config, logger *slog.Logger) (*Services, error) {
	counter := tokens.NewCounter()

	client := groq.New(cfg.Groq,
		groq.WithCounter(counter),
		groq.WithLogger(logger),
	)

	processor, err := content.New(client, logger)
	if err != nil {
		return nil, fmt.Errorf("content processor: %w", err)
	}

	store, err := storage.New(cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("storage: %w", err)
	}
	if store != nil {
		logger.Info("story storage enabled", slog.String("type", cfg.Storage.Type))
	}

	connector := chain.NewConnector(cfg.Chain, logger)

	orch := New(Deps{
		Validator: validate.New(client, counter, cfg.Groq.MaxPromptTokens),
		Writer:    processor,
		Generator: client,
		Chain:     connector,
		Uploader:  metadata.NewUploader(cfg.Metadata, logger),
		Store:     store,
		Logger:    logger,
	})

	return &Services{
		Groq:         client,
		Processor:    processor,
		Chain:        connector,
		Store:        store,
		Orchestrator: orch,
	}, nil
}

// Close releases the chain connection and the story store.
func (s *Services) Close() error {
	s.Chain.Close()
	if s.Store != nil {
		return s.Store.Close()
	}
	return nil
}
