// Package groq generates story text through Groq's OpenAI-compatible API.
package groq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/groqtales/groqtales-server/internal/config"
	"github.com/groqtales/groqtales-server/internal/core/domain"
	"github.com/groqtales/groqtales-server/internal/core/ports"
	"github.com/groqtales/groqtales-server/internal/telemetry"
	"github.com/groqtales/groqtales-server/internal/tokens"
)

// DefaultBaseURL is Groq's OpenAI-compatible endpoint.
const DefaultBaseURL = "https://api.groq.com/openai/v1"

// Client implements ports.Generator on top of go-openai.
type Client struct {
	apiKey       string
	baseURL      string
	defaultModel string
	timeout      time.Duration
	temperature  float32
	maxTokens    int

	httpClient *http.Client
	counter    *tokens.Counter
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client used for upstream calls.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithCounter sets the tokenizer used to estimate usage the API does not report.
func WithCounter(counter *tokens.Counter) Option {
	return func(c *Client) {
		c.counter = counter
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// New creates a client from the groq configuration section.
func New(cfg config.GroqConfig, opts ...Option) *Client {
	c := &Client{
		apiKey:       cfg.APIKey,
		baseURL:      cfg.BaseURL,
		defaultModel: cfg.DefaultModel,
		timeout:      cfg.Timeout,
		temperature:  cfg.Temperature,
		maxTokens:    cfg.MaxTokens,
		logger:       slog.Default(),
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	if c.defaultModel == "" || !SupportsModel(c.defaultModel) {
		c.defaultModel = DefaultModel
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.counter == nil {
		c.counter = tokens.NewCounter()
	}
	return c
}

var _ ports.Generator = (*Client)(nil)

// DefaultModel returns the model used when a request names none.
func (c *Client) DefaultModel() string {
	return c.defaultModel
}

// SupportsModel reports whether model is on the allow-list.
func (c *Client) SupportsModel(model string) bool {
	return SupportsModel(model)
}

// ResolveModel maps an empty id to the default and rejects unknown ids.
func (c *Client) ResolveModel(model string) (string, error) {
	if model == "" {
		return c.defaultModel, nil
	}
	if !SupportsModel(model) {
		return "", domain.ErrUnsupportedModel(model)
	}
	return model, nil
}

// CheckConfig fails when neither the override nor the configuration carries an API key.
func (c *Client) CheckConfig(apiKeyOverride string) error {
	if c.resolveKey(apiKeyOverride) == "" {
		return domain.ErrConfiguration("completion API key is not configured")
	}
	return nil
}

func (c *Client) resolveKey(override string) string {
	if k := strings.TrimSpace(override); k != "" {
		return k
	}
	return c.apiKey
}

func (c *Client) api(apiKey string) *openai.Client {
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = c.baseURL
	if c.httpClient != nil {
		cfg.HTTPClient = c.httpClient
	}
	return openai.NewClientWithConfig(cfg)
}

func (c *Client) buildRequest(in *ports.GenerateInput, model string) openai.ChatCompletionRequest {
	var messages []openai.ChatCompletionMessage
	if in.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: in.System,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: in.Prompt,
	})

	req := openai.ChatCompletionRequest{
		Model:       model,
		Messages:    messages,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	}
	if in.Temperature != nil {
		req.Temperature = *in.Temperature
	}
	if in.MaxTokens > 0 {
		req.MaxTokens = in.MaxTokens
	}
	return req
}

// Generate runs a buffered completion. The call is never retried.
func (c *Client) Generate(ctx context.Context, in *ports.GenerateInput) (*domain.GeneratedStory, error) {
	model, err := c.ResolveModel(in.Model)
	if err != nil {
		return nil, err
	}
	key := c.resolveKey(in.APIKey)
	if key == "" {
		return nil, domain.ErrConfiguration("completion API key is not configured")
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := c.api(key).CreateChatCompletion(ctx, c.buildRequest(in, model))
	if err != nil {
		telemetry.ObserveCompletion(model, "buffered", "error", time.Since(start).Seconds())
		c.logger.ErrorContext(ctx, "completion failed",
			slog.String("model", model),
			slog.String("error", err.Error()),
		)
		return nil, mapError(err)
	}

	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		telemetry.ObserveCompletion(model, "buffered", "empty", time.Since(start).Seconds())
		return nil, domain.ErrEmptyCompletion(model)
	}
	telemetry.ObserveCompletion(model, "buffered", "ok", time.Since(start).Seconds())

	text := resp.Choices[0].Message.Content
	usage := domain.Usage{
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
	}
	if usage.TotalTokens == 0 {
		usage = c.estimateUsage(in, text)
	}
	telemetry.AddTokens(model, usage.PromptTokens, usage.CompletionTokens, usage.Estimated)

	c.logger.DebugContext(ctx, "completion finished",
		slog.String("model", model),
		slog.Int("prompt_tokens", usage.PromptTokens),
		slog.Int("completion_tokens", usage.CompletionTokens),
	)

	return &domain.GeneratedStory{
		Text:       text,
		Model:      model,
		CreatedAt:  time.Now().UTC(),
		RateLimits: rateLimits(resp.GetRateLimitHeaders()),
	}, nil
}

// rateLimits converts the x-ratelimit-* headers. It returns nil when the
// response carried none.
func rateLimits(h openai.RateLimitHeaders) *domain.RateLimitInfo {
	if h.LimitRequests == 0 && h.LimitTokens == 0 {
		return nil
	}
	return &domain.RateLimitInfo{
		RequestsLimit:     h.LimitRequests,
		RequestsRemaining: h.RemainingRequests,
		RequestsReset:     h.ResetRequests.String(),
		TokensLimit:       h.LimitTokens,
		TokensRemaining:   h.RemainingTokens,
		TokensReset:       h.ResetTokens.String(),
	}
}

// Stream starts a streaming completion. The caller must Close the stream.
func (c *Client) Stream(ctx context.Context, in *ports.GenerateInput) (ports.ChunkStream, error) {
	model, err := c.ResolveModel(in.Model)
	if err != nil {
		return nil, err
	}
	key := c.resolveKey(in.APIKey)
	if key == "" {
		return nil, domain.ErrConfiguration("completion API key is not configured")
	}

	req := c.buildRequest(in, model)
	req.StreamOptions = &openai.StreamOptions{IncludeUsage: true}

	start := time.Now()
	stream, err := c.api(key).CreateChatCompletionStream(ctx, req)
	if err != nil {
		telemetry.ObserveCompletion(model, "stream", "error", time.Since(start).Seconds())
		c.logger.ErrorContext(ctx, "completion stream failed to start",
			slog.String("model", model),
			slog.String("error", err.Error()),
		)
		return nil, mapError(err)
	}

	return &chunkStream{
		stream:       stream,
		model:        model,
		promptTokens: c.counter.CountChat(in.System, in.Prompt),
		counter:      c.counter,
		start:        start,
	}, nil
}

// Ping lists models upstream to prove the API key and endpoint work.
func (c *Client) Ping(ctx context.Context, apiKey string) error {
	key := c.resolveKey(apiKey)
	if key == "" {
		return domain.ErrConfiguration("completion API key is not configured")
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	if _, err := c.api(key).ListModels(ctx); err != nil {
		return mapError(err)
	}
	return nil
}

func (c *Client) estimateUsage(in *ports.GenerateInput, text string) domain.Usage {
	prompt := c.counter.CountChat(in.System, in.Prompt)
	completion := c.counter.CountText(text)
	return domain.Usage{
		PromptTokens:     prompt,
		CompletionTokens: completion,
		TotalTokens:      prompt + completion,
		Estimated:        true,
	}
}

// mapError classifies go-openai failures as upstream_unavailable.
func mapError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return domain.ErrUpstreamUnavailable(
			fmt.Sprintf("completion API returned %d: %s", apiErr.HTTPStatusCode, apiErr.Message), err)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return domain.ErrUpstreamUnavailable(
			fmt.Sprintf("completion API returned %d", reqErr.HTTPStatusCode), err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.ErrUpstreamUnavailable("completion API timed out", err)
	}
	return domain.ErrUpstreamUnavailable("completion API request failed", err)
}
