// Package nft serves minting of already uploaded story metadata.
package nft

import (
	"context"
	"net/http"
	"strings"

	"github.com/groqtales/groqtales-server/internal/api"
	"github.com/groqtales/groqtales-server/internal/core/domain"
	"github.com/groqtales/groqtales-server/internal/pipeline"
	"github.com/groqtales/groqtales-server/internal/server"
)

// Minter mints existing metadata.
type Minter interface {
	MintExisting(ctx context.Context, meta domain.MintMetadata) (domain.MintResult, error)
}

type Handler struct {
	minter Minter
}

func NewHandler(minter Minter) *Handler {
	return &Handler{minter: minter}
}

type mintRequest struct {
	StoryHash   string `json:"storyHash"`
	MetadataURI string `json:"metadataURI"`
	UserAddress string `json:"userAddress"`
}

type MintResponse struct {
	Success         bool   `json:"success"`
	TokenID         string `json:"tokenId,omitempty"`
	TransactionHash string `json:"transactionHash,omitempty"`
	Message         string `json:"message,omitempty"`
	Error           string `json:"error,omitempty"`
	Stage           string `json:"stage,omitempty"`
}

// HandleMint mints a token for the given story hash and metadata URI.
func (h *Handler) HandleMint(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var body mintRequest
	if err := api.DecodeJSON(w, r, &body); err != nil {
		h.fail(w, r, &pipeline.StageError{Stage: pipeline.StageValidating, Err: err})
		return
	}
	body.UserAddress = strings.TrimSpace(body.UserAddress)
	if body.UserAddress == "" {
		h.fail(w, r, &pipeline.StageError{
			Stage: pipeline.StageValidating,
			Err:   domain.ErrInvalidRequest("userAddress is required").WithParam("userAddress"),
		})
		return
	}
	server.AddLogField(ctx, "owner", body.UserAddress)

	result, err := h.minter.MintExisting(ctx, domain.MintMetadata{
		StoryHash:   strings.TrimSpace(body.StoryHash),
		MetadataURI: strings.TrimSpace(body.MetadataURI),
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}

	resp := MintResponse{TransactionHash: result.TransactionHash()}
	switch m := result.(type) {
	case domain.Minted:
		resp.Success = true
		resp.TokenID = m.TokenID
	case domain.Unresolved:
		resp.Message = "Transaction confirmed but the token id could not be determined"
	}
	server.AddLogField(ctx, "tx_hash", resp.TransactionHash)
	api.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	apiErr := api.Classify(err)
	stage, _ := pipeline.StageOf(err)

	server.AddLogField(r.Context(), "stage", string(stage))
	server.AddError(r.Context(), err)

	api.WriteJSON(w, apiErr.HTTPStatusCode(), MintResponse{
		Error:           api.Message(apiErr),
		Stage:           string(stage),
		TransactionHash: apiErr.TxHash,
	})
}
