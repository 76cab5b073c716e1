// Package metadata builds NFT metadata documents for stories and uploads them.
package metadata

import (
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/groqtales/groqtales-server/internal/core/domain"
	"github.com/groqtales/groqtales-server/internal/core/ports"
)

// StoryHash is the 0x-prefixed Keccak-256 of the story text. Identical text
// always yields the same hash.
func StoryHash(text string) string {
	return crypto.Keccak256Hash([]byte(text)).Hex()
}

// NewDocument builds the metadata document for a generated story.
func NewDocument(req *domain.GenerationRequest, story *domain.GeneratedStory, storyHash string) *ports.MetadataDocument {
	createdAt := story.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	genre := string(req.Genre)
	if genre == "" {
		genre = string(domain.GenreGeneral)
	}

	return &ports.MetadataDocument{
		Name:        req.Title,
		Description: description(story.Text),
		Genre:       genre,
		Owner:       req.OwnerAddress,
		StoryHash:   storyHash,
		Content:     story.Text,
		Model:       story.Model,
		CreatedAt:   createdAt.UTC().Format(time.RFC3339),
		Attributes: []ports.MetadataAttribute{
			{TraitType: "Genre", Value: genre},
			{TraitType: "Model", Value: story.Model},
			{TraitType: "Word Count", Value: strconv.Itoa(len(strings.Fields(story.Text)))},
		},
	}
}

const descriptionLimit = 200

// description is the first descriptionLimit runes of text, cut at a word boundary.
func description(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) <= descriptionLimit {
		return text
	}
	cut := string(runes[:descriptionLimit])
	if i := strings.LastIndex(cut, " "); i > descriptionLimit/2 {
		cut = cut[:i]
	}
	return cut + "..."
}
