package domain

import (
	"strings"
	"time"
)

// Genre is a story genre understood by the prompt templates.
type Genre string

const (
	GenreGeneral    Genre = "general"
	GenreFantasy    Genre = "fantasy"
	GenreSciFi      Genre = "sci-fi"
	GenreMystery    Genre = "mystery"
	GenreRomance    Genre = "romance"
	GenreHorror     Genre = "horror"
	GenreAdventure  Genre = "adventure"
	GenreThriller   Genre = "thriller"
	GenreComedy     Genre = "comedy"
	GenreDrama      Genre = "drama"
	GenreHistorical Genre = "historical"
)

var knownGenres = map[Genre]struct{}{
	GenreGeneral: {}, GenreFantasy: {}, GenreSciFi: {}, GenreMystery: {},
	GenreRomance: {}, GenreHorror: {}, GenreAdventure: {}, GenreThriller: {},
	GenreComedy: {}, GenreDrama: {}, GenreHistorical: {},
}

// ParseGenre normalizes s and reports whether it names a known genre.
// "science fiction" and "scifi" are accepted as sci-fi.
func ParseGenre(s string) (Genre, bool) {
	g := strings.ToLower(strings.TrimSpace(s))
	switch g {
	case "scifi", "science fiction", "science-fiction":
		g = string(GenreSciFi)
	}
	_, ok := knownGenres[Genre(g)]
	return Genre(g), ok
}

// GenerationRequest is the body of a generate-and-mint call.
type GenerationRequest struct {
	Prompt         string `json:"prompt" validate:"required"`
	OwnerAddress   string `json:"ownerAddress" validate:"required"`
	Title          string `json:"title,omitempty"`
	Genre          Genre  `json:"genre,omitempty"`
	APIKeyOverride string `json:"apiKey,omitempty"`
	Model          string `json:"model,omitempty"`
}

// GeneratedStory is the text produced by one completion call.
type GeneratedStory struct {
	Text      string    `json:"text"`
	Model     string    `json:"model"`
	CreatedAt time.Time `json:"createdAt"`

	// RateLimits is what the completion API reported alongside the answer, if anything.
	RateLimits *RateLimitInfo `json:"-"`
}

// RateLimitInfo contains rate limit information from the completion API.
type RateLimitInfo struct {
	RequestsLimit     int    `json:"requests_limit,omitempty"`
	RequestsRemaining int    `json:"requests_remaining,omitempty"`
	RequestsReset     string `json:"requests_reset,omitempty"` // Duration or timestamp

	TokensLimit     int    `json:"tokens_limit,omitempty"`
	TokensRemaining int    `json:"tokens_remaining,omitempty"`
	TokensReset     string `json:"tokens_reset,omitempty"`
}

// MintMetadata points the contract at the story's off-chain metadata.
type MintMetadata struct {
	StoryHash   string `json:"storyHash"`
	MetadataURI string `json:"metadataURI"`
}

// Usage reports token consumption for one completion.
type Usage struct {
	PromptTokens     int  `json:"promptTokens"`
	CompletionTokens int  `json:"completionTokens"`
	TotalTokens      int  `json:"totalTokens"`
	Estimated        bool `json:"estimated,omitempty"`
}
