// Package story serves the generate-and-mint endpoint and stored story lookups.
package story

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/groqtales/groqtales-server/internal/api"
	"github.com/groqtales/groqtales-server/internal/core/domain"
	"github.com/groqtales/groqtales-server/internal/core/ports"
	"github.com/groqtales/groqtales-server/internal/pipeline"
	"github.com/groqtales/groqtales-server/internal/server"
)

// Runner runs the generate-and-mint pipeline.
type Runner interface {
	Run(ctx context.Context, req *domain.GenerationRequest) (*pipeline.Result, error)
}

type Handler struct {
	runner Runner
	store  ports.StoryStore
	logger *slog.Logger
}

// NewHandler creates the story handler. store may be nil.
func NewHandler(runner Runner, store ports.StoryStore, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{runner: runner, store: store, logger: logger}
}

type mintRequest struct {
	Prompt       string `json:"prompt"`
	OwnerAddress string `json:"ownerAddress"`
	Title        string `json:"title"`
	Genre        string `json:"genre"`
	APIKey       string `json:"apiKey"`
	Model        string `json:"model"`
}

// NFT describes the token in a mint response.
type NFT struct {
	TokenID         string `json:"tokenId,omitempty"`
	TransactionHash string `json:"transactionHash"`
	StoryHash       string `json:"storyHash"`
	MetadataURI     string `json:"metadataURI"`
	StoryID         string `json:"storyId,omitempty"`
}

// StoryBody is the generated story echoed back to the caller.
type StoryBody struct {
	Title   string `json:"title"`
	Genre   string `json:"genre"`
	Content string `json:"content"`
	Model   string `json:"model"`
}

type MintResponse struct {
	Success bool       `json:"success"`
	Message string     `json:"message"`
	NFT     NFT        `json:"nft"`
	Story   *StoryBody `json:"story,omitempty"`
}

type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Type    string `json:"type"`
	Stage   string `json:"stage,omitempty"`
	Param   string `json:"param,omitempty"`
	// StoryID names the saved story when the failure came after it was
	// persisted; GET /api/stories/{id} returns its text.
	StoryID         string `json:"storyId,omitempty"`
	TransactionHash string `json:"transactionHash,omitempty"`
}

// HandleMint generates a story and mints it. A confirmed mint whose token id
// could not be found is answered with 200 and success=false.
func (h *Handler) HandleMint(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var body mintRequest
	if err := api.DecodeJSON(w, r, &body); err != nil {
		h.fail(w, r, &pipeline.StageError{Stage: pipeline.StageValidating, Err: err})
		return
	}

	res, err := h.runner.Run(ctx, &domain.GenerationRequest{
		Prompt:         body.Prompt,
		OwnerAddress:   body.OwnerAddress,
		Title:          body.Title,
		Genre:          domain.Genre(body.Genre),
		APIKeyOverride: body.APIKey,
		Model:          body.Model,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}

	nft := NFT{
		TransactionHash: res.Mint.TransactionHash(),
		StoryHash:       res.Metadata.StoryHash,
		MetadataURI:     res.Metadata.MetadataURI,
		StoryID:         res.StoryID,
	}
	resp := MintResponse{
		NFT: nft,
		Story: &StoryBody{
			Title:   res.Request.Title,
			Genre:   string(res.Request.Genre),
			Content: res.Story.Text,
			Model:   res.Story.Model,
		},
	}

	switch m := res.Mint.(type) {
	case domain.Minted:
		resp.Success = true
		resp.Message = "Story generated and minted successfully"
		resp.NFT.TokenID = m.TokenID
	case domain.Unresolved:
		resp.Message = "Transaction confirmed but the token id could not be determined; follow up with the transaction hash"
	}

	server.AddLogField(ctx, "tx_hash", nft.TransactionHash)
	server.AddLogField(ctx, "token_id", resp.NFT.TokenID)
	server.AddLogField(ctx, "story_id", res.StoryID)
	api.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	apiErr := api.Classify(err)
	var stage pipeline.Stage
	var storyID string
	var se *pipeline.StageError
	if errors.As(err, &se) {
		stage, storyID = se.Stage, se.StoryID
	}

	server.AddLogField(r.Context(), "stage", string(stage))
	server.AddLogField(r.Context(), "story_id", storyID)
	server.AddError(r.Context(), err)

	api.WriteJSON(w, apiErr.HTTPStatusCode(), ErrorResponse{
		Error:           api.Message(apiErr),
		Type:            string(apiErr.Type),
		Stage:           string(stage),
		Param:           apiErr.Param,
		StoryID:         storyID,
		TransactionHash: apiErr.TxHash,
	})
}

// HandleGetStory returns a stored story by id.
func (h *Handler) HandleGetStory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if h.store == nil {
		h.notFound(w, r, domain.ErrNotFound("story storage is disabled"))
		return
	}

	rec, err := h.store.GetStory(r.Context(), id)
	if errors.Is(err, ports.ErrStoryNotFound) {
		h.notFound(w, r, domain.ErrNotFound("story "+id+" not found"))
		return
	}
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to load story",
			slog.String("story_id", id),
			slog.String("error", err.Error()))
		h.fail(w, r, domain.ErrServer("failed to load story", err))
		return
	}

	api.WriteJSON(w, http.StatusOK, rec)
}

func (h *Handler) notFound(w http.ResponseWriter, r *http.Request, apiErr *domain.APIError) {
	server.AddError(r.Context(), apiErr)
	api.WriteJSON(w, apiErr.HTTPStatusCode(), ErrorResponse{
		Error: apiErr.Message,
		Type:  string(apiErr.Type),
	})
}
