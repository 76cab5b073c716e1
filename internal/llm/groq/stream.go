package groq

import (
	"errors"
	"io"
	"sync"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/groqtales/groqtales-server/internal/core/domain"
	"github.com/groqtales/groqtales-server/internal/telemetry"
	"github.com/groqtales/groqtales-server/internal/tokens"
)

// chunkStream adapts a go-openai stream to ports.ChunkStream. It skips
// role-only and empty deltas and records metrics exactly once.
type chunkStream struct {
	stream       *openai.ChatCompletionStream
	model        string
	promptTokens int
	counter      *tokens.Counter
	start        time.Time

	chunks    int
	completed int
	usage     *openai.Usage
	err       error

	finishOnce sync.Once
	closeOnce  sync.Once
	closeErr   error
}

func (s *chunkStream) Recv() (string, error) {
	if s.err != nil {
		return "", s.err
	}
	for {
		resp, err := s.stream.Recv()
		if errors.Is(err, io.EOF) {
			if s.chunks == 0 {
				s.err = domain.ErrEmptyCompletion(s.model)
				s.finish("empty")
				return "", s.err
			}
			s.err = io.EOF
			s.finish("ok")
			return "", io.EOF
		}
		if err != nil {
			s.err = mapError(err)
			s.finish("error")
			return "", s.err
		}

		if resp.Usage != nil {
			s.usage = resp.Usage
		}
		if len(resp.Choices) == 0 {
			continue
		}
		delta := resp.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		s.chunks++
		s.completed += s.counter.CountText(delta)
		return delta, nil
	}
}

func (s *chunkStream) Close() error {
	s.closeOnce.Do(func() {
		if s.err == nil {
			s.finish("aborted")
		}
		s.closeErr = s.stream.Close()
	})
	return s.closeErr
}

func (s *chunkStream) finish(outcome string) {
	s.finishOnce.Do(func() {
		telemetry.ObserveCompletion(s.model, "stream", outcome, time.Since(s.start).Seconds())
		if s.usage != nil {
			telemetry.AddTokens(s.model, s.usage.PromptTokens, s.usage.CompletionTokens, false)
			return
		}
		telemetry.AddTokens(s.model, s.promptTokens, s.completed, true)
	})
}
