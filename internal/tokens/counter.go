// Package tokens estimates token counts for prompts and completions.
//
// Groq's hosted models use their own tokenizers, none of which ship with a Go
// implementation, so counts are approximated with tiktoken's cl100k_base
// encoding and always reported as estimates.
package tokens

import (
	"fmt"
	"sync"

	"github.com/tiktoken-go/tokenizer"
)

// Per-message chat overhead, matching OpenAI's published accounting.
const (
	tokensPerMessage = 3
	tokensPerRole    = 1
	assistantPriming = 3
)

// Counter counts tokens with a tiktoken codec, falling back to the
// character Estimator when the codec cannot be loaded.
type Counter struct {
	encoding tokenizer.Encoding
	fallback *Estimator

	once  sync.Once
	codec tokenizer.Codec
	err   error
}

// NewCounter creates a counter using the cl100k_base encoding.
func NewCounter() *Counter {
	return &Counter{
		encoding: tokenizer.Cl100kBase,
		fallback: NewEstimator(),
	}
}

func (c *Counter) getCodec() (tokenizer.Codec, error) {
	c.once.Do(func() {
		c.codec, c.err = tokenizer.Get(c.encoding)
		if c.err != nil {
			c.err = fmt.Errorf("failed to get tokenizer encoding: %w", c.err)
		}
	})
	return c.codec, c.err
}

// CountText counts tokens in a plain text string.
func (c *Counter) CountText(text string) int {
	if text == "" {
		return 0
	}
	codec, err := c.getCodec()
	if err != nil {
		return c.fallback.CountText(text)
	}
	ids, _, err := codec.Encode(text)
	if err != nil {
		return c.fallback.CountText(text)
	}
	return len(ids)
}

// CountChat counts the prompt tokens of a system + user chat request.
func (c *Counter) CountChat(system, prompt string) int {
	total := assistantPriming
	if system != "" {
		total += tokensPerMessage + tokensPerRole + c.CountText(system)
	}
	total += tokensPerMessage + tokensPerRole + c.CountText(prompt)
	return total
}

// Estimator approximates token counts from character length.
type Estimator struct {
	// CharsPerToken is the average characters per token (default: 4)
	CharsPerToken float64
}

// NewEstimator creates a new token estimator.
func NewEstimator() *Estimator {
	return &Estimator{
		CharsPerToken: 4.0,
	}
}

// CountText estimates tokens in text, rounding up.
func (e *Estimator) CountText(text string) int {
	if text == "" {
		return 0
	}
	n := int(float64(len(text)) / e.CharsPerToken)
	if float64(n)*e.CharsPerToken < float64(len(text)) {
		n++
	}
	return n
}
