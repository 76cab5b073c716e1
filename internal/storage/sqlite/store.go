package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/groqtales/groqtales-server/internal/core/ports"
)

// Store is a SQLite implementation of StoryStore.
type Store struct {
	db *sqlx.DB
}

var _ ports.StoryStore = (*Store)(nil)

// storyRow mirrors the stories table.
type storyRow struct {
	ID              string    `db:"id"`
	OwnerAddress    string    `db:"owner_address"`
	Title           string    `db:"title"`
	Genre           string    `db:"genre"`
	Model           string    `db:"model"`
	Text            string    `db:"text"`
	StoryHash       string    `db:"story_hash"`
	MetadataURI     string    `db:"metadata_uri"`
	Status          string    `db:"status"`
	TokenID         string    `db:"token_id"`
	TransactionHash string    `db:"transaction_hash"`
	Error           string    `db:"error"`
	CreatedAt       time.Time `db:"created_at"`
	UpdatedAt       time.Time `db:"updated_at"`
}

// New creates a new SQLite store
func New(dbPath string) (*Store, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	store := &Store{db: db}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

func (s *Store) initSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS stories (
			id TEXT PRIMARY KEY,
			owner_address TEXT NOT NULL,
			title TEXT NOT NULL,
			genre TEXT NOT NULL,
			model TEXT NOT NULL DEFAULT '',
			text TEXT NOT NULL,
			story_hash TEXT NOT NULL DEFAULT '',
			metadata_uri TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			token_id TEXT NOT NULL DEFAULT '',
			transaction_hash TEXT NOT NULL DEFAULT '',
			error TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_stories_owner ON stories(owner_address)`,
		`CREATE INDEX IF NOT EXISTS idx_stories_status ON stories(status)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) SaveStory(ctx context.Context, rec *ports.StoryRecord) error {
	now := time.Now().UTC()
	rec.CreatedAt = now
	rec.UpdatedAt = now

	row := toRow(rec)
	_, err := s.db.NamedExecContext(ctx, `INSERT INTO stories (
			id, owner_address, title, genre, model, text, story_hash, metadata_uri,
			status, token_id, transaction_hash, error, created_at, updated_at
		) VALUES (
			:id, :owner_address, :title, :genre, :model, :text, :story_hash, :metadata_uri,
			:status, :token_id, :transaction_hash, :error, :created_at, :updated_at
		)`, row)
	if err != nil {
		return fmt.Errorf("failed to save story: %w", err)
	}
	return nil
}

func (s *Store) RecordMint(ctx context.Context, id string, outcome ports.MintOutcome) error {
	res, err := s.db.ExecContext(ctx, `UPDATE stories SET
			status = ?,
			story_hash = CASE WHEN ? = '' THEN story_hash ELSE ? END,
			metadata_uri = CASE WHEN ? = '' THEN metadata_uri ELSE ? END,
			token_id = ?,
			transaction_hash = ?,
			error = ?,
			updated_at = ?
		WHERE id = ?`,
		string(outcome.Status),
		outcome.StoryHash, outcome.StoryHash,
		outcome.MetadataURI, outcome.MetadataURI,
		outcome.TokenID, outcome.TransactionHash, outcome.Error,
		time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to record mint: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to record mint: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("story %s: %w", id, ports.ErrStoryNotFound)
	}
	return nil
}

func (s *Store) GetStory(ctx context.Context, id string) (*ports.StoryRecord, error) {
	var row storyRow
	err := s.db.GetContext(ctx, &row, `SELECT * FROM stories WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("story %s: %w", id, ports.ErrStoryNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get story: %w", err)
	}
	return row.record(), nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func toRow(rec *ports.StoryRecord) storyRow {
	return storyRow{
		ID:              rec.ID,
		OwnerAddress:    rec.OwnerAddress,
		Title:           rec.Title,
		Genre:           rec.Genre,
		Model:           rec.Model,
		Text:            rec.Text,
		StoryHash:       rec.StoryHash,
		MetadataURI:     rec.MetadataURI,
		Status:          string(rec.Status),
		TokenID:         rec.TokenID,
		TransactionHash: rec.TransactionHash,
		Error:           rec.Error,
		CreatedAt:       rec.CreatedAt,
		UpdatedAt:       rec.UpdatedAt,
	}
}

func (r storyRow) record() *ports.StoryRecord {
	return &ports.StoryRecord{
		ID:              r.ID,
		OwnerAddress:    r.OwnerAddress,
		Title:           r.Title,
		Genre:           r.Genre,
		Model:           r.Model,
		Text:            r.Text,
		StoryHash:       r.StoryHash,
		MetadataURI:     r.MetadataURI,
		Status:          ports.StoryStatus(r.Status),
		TokenID:         r.TokenID,
		TransactionHash: r.TransactionHash,
		Error:           r.Error,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
}
