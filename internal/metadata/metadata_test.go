package metadata

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/groqtales/groqtales-server/internal/config"
	"github.com/groqtales/groqtales-server/internal/core/domain"
	"github.com/groqtales/groqtales-server/internal/core/ports"
)

func TestStoryHash(t *testing.T) {
	// Keccak-256 of the empty string
	assert.Equal(t, "0xc5d2460186f7233c927e7db2dcc703c0e500b653ca82273b7bfad8045d85a470", StoryHash(""))

	a := StoryHash("Ember compiled her first spell.")
	b := StoryHash("Ember compiled her first spell.")
	c := StoryHash("Ember compiled her second spell.")
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 66)
}

func testDocument() *ports.MetadataDocument {
	req := &domain.GenerationRequest{
		Prompt:       "a dragon who codes",
		OwnerAddress: "0x1111111111111111111111111111111111111111",
		Title:        "Ember",
		Genre:        domain.GenreFantasy,
	}
	story := &domain.GeneratedStory{
		Text:      "Ember compiled her first spell.",
		Model:     "llama-3.3-70b-versatile",
		CreatedAt: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	return NewDocument(req, story, StoryHash(story.Text))
}

func TestNewDocument(t *testing.T) {
	doc := testDocument()

	assert.Equal(t, "Ember", doc.Name)
	assert.Equal(t, "fantasy", doc.Genre)
	assert.Equal(t, "0x1111111111111111111111111111111111111111", doc.Owner)
	assert.Equal(t, "2025-01-02T03:04:05Z", doc.CreatedAt)
	assert.Equal(t, "Ember compiled her first spell.", doc.Description)
	assert.Contains(t, doc.Attributes, ports.MetadataAttribute{TraitType: "Word Count", Value: "5"})

	raw, err := json.Marshal(doc)
	require.NoError(t, err)
	for _, key := range []string{`"name"`, `"description"`, `"genre"`, `"owner"`, `"story_hash"`, `"content"`, `"created_at"`, `"attributes"`} {
		assert.Contains(t, string(raw), key)
	}
}

func TestDescription_Truncates(t *testing.T) {
	long := strings.Repeat("dragon ", 100)
	got := description(long)
	assert.True(t, strings.HasSuffix(got, "..."))
	assert.LessOrEqual(t, len([]rune(got)), descriptionLimit+3)
}

func TestInlineUploader(t *testing.T) {
	doc := testDocument()

	uri, err := InlineUploader{}.Upload(context.Background(), doc)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(uri, "data:application/json;base64,"))

	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(uri, "data:application/json;base64,"))
	require.NoError(t, err)
	var got ports.MetadataDocument
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, doc.StoryHash, got.StoryHash)
}

func TestPinningUploader(t *testing.T) {
	var gotAuth string
	var gotBody pinRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"IpfsHash":"QmStory","PinSize":512}`))
	}))
	defer srv.Close()

	u := NewPinningUploader(PinningConfig{URL: srv.URL, APIKey: "jwt-token", Client: srv.Client()})
	uri, err := u.Upload(context.Background(), testDocument())
	require.NoError(t, err)

	assert.Equal(t, "ipfs://QmStory", uri)
	assert.Equal(t, "Bearer jwt-token", gotAuth)
	assert.Equal(t, "Ember", gotBody.Metadata.Name)
	require.NotNil(t, gotBody.Content)
	assert.Equal(t, "Ember compiled her first spell.", gotBody.Content.Content)
}

func TestPinningUploader_Failures(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		payload string
	}{
		{"server error", http.StatusInternalServerError, `{"error":"boom"}`},
		{"unauthorized", http.StatusUnauthorized, `{"error":"bad key"}`},
		{"missing hash", http.StatusOK, `{}`},
		{"not json", http.StatusOK, `pinned!`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.payload))
			}))
			defer srv.Close()

			u := NewPinningUploader(PinningConfig{URL: srv.URL, Client: srv.Client()})
			_, err := u.Upload(context.Background(), testDocument())
			require.Error(t, err)
			assert.True(t, domain.IsType(err, domain.ErrorTypeUpstreamUnavailable), "got %v", err)
		})
	}
}

func TestNewUploader(t *testing.T) {
	_, inline := NewUploader(config.MetadataConfig{}, nil).(InlineUploader)
	assert.True(t, inline)

	_, pinning := NewUploader(config.MetadataConfig{UploadURL: "https://pin.example/pinning/pinJSONToIPFS"}, nil).(*PinningUploader)
	assert.True(t, pinning)
}
