package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/groqtales/groqtales-server/internal/core/ports"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(filepath.Join(t.TempDir(), "stories.db"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteStore_SaveStory(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rec := &ports.StoryRecord{
		ID:           "story-1",
		OwnerAddress: "0x1111111111111111111111111111111111111111",
		Title:        "The Dragon Who Codes",
		Genre:        "fantasy",
		Model:        "llama-3.3-70b-versatile",
		Text:         "Ember wrote code.",
		Status:       ports.StoryGenerated,
	}
	if err := store.SaveStory(ctx, rec); err != nil {
		t.Fatalf("SaveStory() error = %v", err)
	}

	got, err := store.GetStory(ctx, "story-1")
	if err != nil {
		t.Fatalf("GetStory() error = %v", err)
	}
	if got.Title != rec.Title {
		t.Errorf("Title = %v, want %v", got.Title, rec.Title)
	}
	if got.Text != rec.Text {
		t.Errorf("Text = %v, want %v", got.Text, rec.Text)
	}
	if got.Status != ports.StoryGenerated {
		t.Errorf("Status = %v, want %v", got.Status, ports.StoryGenerated)
	}
	if got.CreatedAt.IsZero() {
		t.Error("CreatedAt should be set")
	}

	if err := store.SaveStory(ctx, &ports.StoryRecord{ID: "story-1", Status: ports.StoryGenerated}); err == nil {
		t.Error("SaveStory() duplicate id should fail")
	}
}

func TestSQLiteStore_RecordMint(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rec := &ports.StoryRecord{
		ID:          "story-2",
		Title:       "t",
		Genre:       "mystery",
		Text:        "x",
		MetadataURI: "ipfs://QmOld",
		Status:      ports.StoryGenerated,
	}
	if err := store.SaveStory(ctx, rec); err != nil {
		t.Fatalf("SaveStory() error = %v", err)
	}

	err := store.RecordMint(ctx, "story-2", ports.MintOutcome{
		Status:          ports.StoryMinted,
		StoryHash:       "0xhash",
		TokenID:         "42",
		TransactionHash: "0xdeadbeef",
	})
	if err != nil {
		t.Fatalf("RecordMint() error = %v", err)
	}

	got, err := store.GetStory(ctx, "story-2")
	if err != nil {
		t.Fatalf("GetStory() error = %v", err)
	}
	if got.Status != ports.StoryMinted {
		t.Errorf("Status = %v, want minted", got.Status)
	}
	if got.TokenID != "42" || got.TransactionHash != "0xdeadbeef" {
		t.Errorf("token/tx = %q/%q", got.TokenID, got.TransactionHash)
	}
	if got.StoryHash != "0xhash" {
		t.Errorf("StoryHash = %q, want 0xhash", got.StoryHash)
	}
	// Empty outcome fields leave existing values alone
	if got.MetadataURI != "ipfs://QmOld" {
		t.Errorf("MetadataURI = %q, want ipfs://QmOld", got.MetadataURI)
	}

	err = store.RecordMint(ctx, "story-2", ports.MintOutcome{
		Status: ports.StoryMintFailed,
		Error:  "execution reverted: insufficient payment",
	})
	if err != nil {
		t.Fatalf("RecordMint() error = %v", err)
	}
	got, _ = store.GetStory(ctx, "story-2")
	if got.Status != ports.StoryMintFailed || got.Error == "" || got.TokenID != "" {
		t.Errorf("failed outcome not applied: %+v", got)
	}
}

func TestSQLiteStore_NotFound(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.GetStory(ctx, "nope"); !errors.Is(err, ports.ErrStoryNotFound) {
		t.Errorf("GetStory() error = %v, want ErrStoryNotFound", err)
	}
	if err := store.RecordMint(ctx, "nope", ports.MintOutcome{Status: ports.StoryMinted}); !errors.Is(err, ports.ErrStoryNotFound) {
		t.Errorf("RecordMint() error = %v, want ErrStoryNotFound", err)
	}
}

func TestSQLiteStore_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stories.db")
	ctx := context.Background()

	store, err := New(path)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := store.SaveStory(ctx, &ports.StoryRecord{ID: "keep", Title: "t", Genre: "horror", Text: "boo", Status: ports.StoryGenerated}); err != nil {
		t.Fatal(err)
	}
	store.Close()

	reopened, err := New(path)
	if err != nil {
		t.Fatalf("New() reopen error = %v", err)
	}
	defer reopened.Close()

	got, err := reopened.GetStory(ctx, "keep")
	if err != nil {
		t.Fatalf("GetStory() after reopen error = %v", err)
	}
	if got.Text != "boo" {
		t.Errorf("Text = %q, want boo", got.Text)
	}
}
