// Package content builds story, analysis, idea and improvement prompts and
// runs them through a Generator.
package content

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/groqtales/groqtales-server/internal/core/domain"
	"github.com/groqtales/groqtales-server/internal/core/ports"
)

// Length is the size class requested from GenerateIdeas.
type Length string

const (
	LengthShort  Length = "short"
	LengthMedium Length = "medium"
	LengthLong   Length = "long"
)

var lengthWords = map[Length]string{
	LengthShort:  "under 1,000 words each",
	LengthMedium: "1,000 to 3,000 words each",
	LengthLong:   "over 3,000 words each",
}

// DefaultFocus is used by Improve when no focus is given.
const DefaultFocus = "overall quality"

// Options carries per-call completion settings.
type Options struct {
	Model  string
	APIKey string
}

// StoryRequest is the input to GenerateStory and StreamStory.
type StoryRequest struct {
	Prompt string
	Genre  string
	Title  string
	Options
}

// IdeasRequest is the input to GenerateIdeas.
type IdeasRequest struct {
	Genre  string
	Theme  string
	Length string
	Options
}

// Analysis is a structured critique. Raw holds the model's answer verbatim
// when it could not be parsed as JSON; the other fields are then empty.
type Analysis struct {
	Summary     string   `json:"summary,omitempty"`
	Strengths   []string `json:"strengths,omitempty"`
	Weaknesses  []string `json:"weaknesses,omitempty"`
	Suggestions []string `json:"suggestions,omitempty"`
	Themes      []string `json:"themes,omitempty"`
	Sentiment   string   `json:"sentiment,omitempty"`
	Score       float64  `json:"score,omitempty"`
	Raw         string   `json:"raw,omitempty"`
}

// Processor runs every prompt template through one Generator in buffered
// mode, except StreamStory.
type Processor struct {
	gen       ports.Generator
	templates *templateSet
	logger    *slog.Logger
}

// New creates a Processor using the embedded templates.
func New(gen ports.Generator, logger *slog.Logger) (*Processor, error) {
	set, err := loadTemplates(templatesYAML)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{gen: gen, templates: set, logger: logger}, nil
}

func (p *Processor) input(t *promptTemplate, data any, opts Options) (*ports.GenerateInput, error) {
	prompt, err := t.render(data)
	if err != nil {
		return nil, domain.ErrServer("failed to render prompt", err)
	}
	return &ports.GenerateInput{
		System:      t.system,
		Prompt:      prompt,
		Model:       opts.Model,
		APIKey:      opts.APIKey,
		Temperature: t.temperature,
		MaxTokens:   t.maxTokens,
	}, nil
}

func (p *Processor) storyInput(req StoryRequest) (*ports.GenerateInput, error) {
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return nil, domain.ErrInvalidRequest("prompt is required").WithParam("prompt")
	}
	genre := strings.TrimSpace(req.Genre)
	if genre == "" {
		genre = string(domain.GenreGeneral)
	}
	return p.input(p.templates.story, struct {
		Prompt, Genre, Title string
	}{prompt, genre, strings.TrimSpace(req.Title)}, req.Options)
}

// GenerateStory writes a story from a prompt.
func (p *Processor) GenerateStory(ctx context.Context, req StoryRequest) (*domain.GeneratedStory, error) {
	in, err := p.storyInput(req)
	if err != nil {
		return nil, err
	}
	return p.gen.Generate(ctx, in)
}

// StreamStory writes a story from a prompt, returning chunks as they arrive.
func (p *Processor) StreamStory(ctx context.Context, req StoryRequest) (ports.ChunkStream, error) {
	in, err := p.storyInput(req)
	if err != nil {
		return nil, err
	}
	return p.gen.Stream(ctx, in)
}

// Analyze asks for a JSON critique of text. Unparseable answers are returned
// in Analysis.Raw rather than as an error.
func (p *Processor) Analyze(ctx context.Context, text string, opts Options) (*Analysis, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, domain.ErrInvalidRequest("content is required").WithParam("content")
	}

	in, err := p.input(p.templates.analyze, struct{ Content string }{text}, opts)
	if err != nil {
		return nil, err
	}
	out, err := p.gen.Generate(ctx, in)
	if err != nil {
		return nil, err
	}

	analysis, err := parseAnalysis(out.Text)
	if err != nil {
		p.logger.WarnContext(ctx, "analysis was not valid JSON, returning raw text",
			slog.String("model", out.Model),
			slog.String("error", err.Error()),
		)
		return &Analysis{Raw: out.Text}, nil
	}
	return analysis, nil
}

// GenerateIdeas suggests story concepts for a genre.
func (p *Processor) GenerateIdeas(ctx context.Context, req IdeasRequest) (string, error) {
	genre := strings.TrimSpace(req.Genre)
	if genre == "" {
		return "", domain.ErrInvalidRequest("genre is required").WithParam("genre")
	}

	length := Length(strings.ToLower(strings.TrimSpace(req.Length)))
	if length == "" {
		length = LengthMedium
	}
	words, ok := lengthWords[length]
	if !ok {
		return "", domain.ErrInvalidRequest(
			fmt.Sprintf("length must be short, medium or long, got %q", req.Length),
		).WithParam("length")
	}

	in, err := p.input(p.templates.ideas, struct {
		Genre, Theme, Length, Words string
	}{genre, strings.TrimSpace(req.Theme), string(length), words}, req.Options)
	if err != nil {
		return "", err
	}
	out, err := p.gen.Generate(ctx, in)
	if err != nil {
		return "", err
	}
	return out.Text, nil
}

// Improve rewrites text with the given focus ("overall quality" when empty).
func (p *Processor) Improve(ctx context.Context, text, focus string, opts Options) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", domain.ErrInvalidRequest("content is required").WithParam("content")
	}
	focus = strings.TrimSpace(focus)
	if focus == "" {
		focus = DefaultFocus
	}

	in, err := p.input(p.templates.improve, struct {
		Content, Focus string
	}{text, focus}, opts)
	if err != nil {
		return "", err
	}
	out, err := p.gen.Generate(ctx, in)
	if err != nil {
		return "", err
	}
	return out.Text, nil
}

// parseAnalysis accepts a bare JSON object or one wrapped in markdown fences
// or surrounding prose.
func parseAnalysis(text string) (*Analysis, error) {
	s := strings.TrimSpace(text)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object found")
	}

	var a Analysis
	if err := json.Unmarshal([]byte(s[start:end+1]), &a); err != nil {
		return nil, err
	}
	return &a, nil
}
