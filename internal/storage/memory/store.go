package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/groqtales/groqtales-server/internal/core/ports"
)

// Store is an in-memory StoryStore. Records are lost on restart.
type Store struct {
	mu      sync.RWMutex
	stories map[string]*ports.StoryRecord
}

var _ ports.StoryStore = (*Store)(nil)

// New creates a new in-memory store
func New() *Store {
	return &Store{
		stories: make(map[string]*ports.StoryRecord),
	}
}

func (s *Store) SaveStory(ctx context.Context, rec *ports.StoryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.stories[rec.ID]; exists {
		return fmt.Errorf("story %s already exists", rec.ID)
	}

	now := time.Now().UTC()
	rec.CreatedAt = now
	rec.UpdatedAt = now

	stored := *rec
	s.stories[rec.ID] = &stored
	return nil
}

func (s *Store) RecordMint(ctx context.Context, id string, outcome ports.MintOutcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, exists := s.stories[id]
	if !exists {
		return fmt.Errorf("story %s: %w", id, ports.ErrStoryNotFound)
	}

	rec.Status = outcome.Status
	if outcome.StoryHash != "" {
		rec.StoryHash = outcome.StoryHash
	}
	if outcome.MetadataURI != "" {
		rec.MetadataURI = outcome.MetadataURI
	}
	rec.TokenID = outcome.TokenID
	rec.TransactionHash = outcome.TransactionHash
	rec.Error = outcome.Error
	rec.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *Store) GetStory(ctx context.Context, id string) (*ports.StoryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, exists := s.stories[id]
	if !exists {
		return nil, fmt.Errorf("story %s: %w", id, ports.ErrStoryNotFound)
	}

	out := *rec
	return &out, nil
}

func (s *Store) Close() error {
	return nil
}
