// Package groq serves the completion actions and the model list.
package groq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/groqtales/groqtales-server/internal/api"
	"github.com/groqtales/groqtales-server/internal/content"
	"github.com/groqtales/groqtales-server/internal/core/domain"
	"github.com/groqtales/groqtales-server/internal/core/ports"
	llmgroq "github.com/groqtales/groqtales-server/internal/llm/groq"
	"github.com/groqtales/groqtales-server/internal/server"
)

// Processor is the set of prompt operations behind POST /api/groq.
type Processor interface {
	GenerateStory(ctx context.Context, req content.StoryRequest) (*domain.GeneratedStory, error)
	StreamStory(ctx context.Context, req content.StoryRequest) (ports.ChunkStream, error)
	Analyze(ctx context.Context, text string, opts content.Options) (*content.Analysis, error)
	GenerateIdeas(ctx context.Context, req content.IdeasRequest) (string, error)
	Improve(ctx context.Context, text, focus string, opts content.Options) (string, error)
}

// Pinger checks connectivity to the completion API.
type Pinger interface {
	Ping(ctx context.Context, apiKey string) error
	DefaultModel() string
}

type Handler struct {
	processor Processor
	pinger    Pinger
	logger    *slog.Logger
}

func NewHandler(processor Processor, pinger Pinger, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{processor: processor, pinger: pinger, logger: logger}
}

// actionRequest carries the fields of every action; each action reads the
// ones it needs.
type actionRequest struct {
	Action  string `json:"action"`
	Prompt  string `json:"prompt"`
	Content string `json:"content"`
	Genre   string `json:"genre"`
	Title   string `json:"title"`
	Theme   string `json:"theme"`
	Length  string `json:"length"`
	Focus   string `json:"focus"`
	Model   string `json:"model"`
	APIKey  string `json:"apiKey"`
	Stream  bool   `json:"stream"`
}

func (req *actionRequest) options() content.Options {
	return content.Options{Model: strings.TrimSpace(req.Model), APIKey: req.APIKey}
}

type resultResponse struct {
	Result any    `json:"result"`
	Model  string `json:"model,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
	Type  string `json:"type"`
	Param string `json:"param,omitempty"`
}

// HandleAction dispatches POST /api/groq on the action field.
func (h *Handler) HandleAction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req actionRequest
	if err := api.DecodeJSON(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	action := strings.ToLower(strings.TrimSpace(req.Action))
	server.AddLogField(ctx, "action", action)
	server.AddLogField(ctx, "model", req.Model)

	switch action {
	case "generate":
		if req.Stream {
			h.stream(w, r, &req)
			return
		}
		story, err := h.processor.GenerateStory(ctx, content.StoryRequest{
			Prompt: req.Prompt, Genre: req.Genre, Title: req.Title, Options: req.options(),
		})
		if err != nil {
			h.fail(w, r, err)
			return
		}
		server.SetRateLimits(ctx, story.RateLimits)
		api.WriteJSON(w, http.StatusOK, resultResponse{Result: story.Text, Model: story.Model})

	case "analyze":
		analysis, err := h.processor.Analyze(ctx, req.Content, req.options())
		if err != nil {
			h.fail(w, r, err)
			return
		}
		api.WriteJSON(w, http.StatusOK, resultResponse{Result: analysis})

	case "ideas":
		ideas, err := h.processor.GenerateIdeas(ctx, content.IdeasRequest{
			Genre: req.Genre, Theme: req.Theme, Length: req.Length, Options: req.options(),
		})
		if err != nil {
			h.fail(w, r, err)
			return
		}
		api.WriteJSON(w, http.StatusOK, resultResponse{Result: ideas})

	case "improve":
		improved, err := h.processor.Improve(ctx, req.Content, req.Focus, req.options())
		if err != nil {
			h.fail(w, r, err)
			return
		}
		api.WriteJSON(w, http.StatusOK, resultResponse{Result: improved})

	case "":
		h.fail(w, r, domain.ErrInvalidRequest("action is required").WithParam("action"))

	default:
		h.fail(w, r, domain.ErrInvalidRequest(
			fmt.Sprintf("unknown action %q: use generate, analyze, ideas or improve", req.Action),
		).WithParam("action"))
	}
}

// stream answers with server-sent events: one data event per chunk, an
// error event if the upstream fails midway, then data: [DONE].
func (h *Handler) stream(w http.ResponseWriter, r *http.Request, req *actionRequest) {
	ctx := r.Context()

	flusher, ok := w.(http.Flusher)
	if !ok {
		h.fail(w, r, domain.ErrServer("streaming not supported", nil))
		return
	}

	// Errors before the first byte still get a JSON body and status code
	chunks, err := h.processor.StreamStory(ctx, content.StoryRequest{
		Prompt: req.Prompt, Genre: req.Genre, Title: req.Title, Options: req.options(),
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	defer chunks.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	sent := 0
	for {
		chunk, err := chunks.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if ctx.Err() != nil {
				// Client went away or the request timed out
				server.AddLogField(ctx, "stream", "aborted")
				return
			}
			apiErr := api.Classify(err)
			server.AddError(ctx, err)
			h.logger.WarnContext(ctx, "stream failed",
				slog.Int("chunks_sent", sent),
				slog.String("error", err.Error()))
			writeEvent(w, "error", errorResponse{Error: api.Message(apiErr), Type: string(apiErr.Type)})
			break
		}

		writeEvent(w, "", struct {
			Content string `json:"content"`
		}{chunk})
		flusher.Flush()
		sent++
	}

	fmt.Fprint(w, "data: [DONE]\n\n")
	flusher.Flush()
}

func writeEvent(w io.Writer, event string, payload any) {
	data, _ := json.Marshal(payload)
	if event != "" {
		fmt.Fprintf(w, "event: %s\n", event)
	}
	fmt.Fprintf(w, "data: %s\n\n", data)
}

// HandleInfo answers GET /api/groq. With action=test it pings the
// completion API, otherwise it lists the available models.
func (h *Handler) HandleInfo(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("action") == "test" {
		if err := h.pinger.Ping(r.Context(), ""); err != nil {
			apiErr := api.Classify(err)
			server.AddError(r.Context(), err)
			api.WriteJSON(w, apiErr.HTTPStatusCode(), map[string]any{
				"success": false,
				"message": api.Message(apiErr),
			})
			return
		}
		api.WriteJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"message": "Groq API connection successful",
		})
		return
	}

	models := make(map[string]string, len(llmgroq.Models))
	for _, m := range llmgroq.Models {
		models[m.ID] = m.Name
	}
	api.WriteJSON(w, http.StatusOK, map[string]any{
		"models":  models,
		"default": h.pinger.DefaultModel(),
	})
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	apiErr := api.Classify(err)
	server.AddError(r.Context(), err)
	api.WriteJSON(w, apiErr.HTTPStatusCode(), errorResponse{
		Error: api.Message(apiErr),
		Type:  string(apiErr.Type),
		Param: apiErr.Param,
	})
}
