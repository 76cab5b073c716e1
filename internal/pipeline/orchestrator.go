package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/groqtales/groqtales-server/internal/content"
	"github.com/groqtales/groqtales-server/internal/core/domain"
	"github.com/groqtales/groqtales-server/internal/core/ports"
	"github.com/groqtales/groqtales-server/internal/metadata"
	"github.com/groqtales/groqtales-server/internal/telemetry"
)

// Stage names a step of a pipeline run.
type Stage string

const (
	StageValidating Stage = "validating"
	StageGenerating Stage = "generating"
	StageUploading  Stage = "uploading"
	StageMinting    Stage = "minting"
	StageDone       Stage = "done"
)

// StageError is returned when a stage fails. Err is usually a *domain.APIError.
// StoryID is set when the story was persisted before the failure, so its
// text can still be fetched.
type StageError struct {
	Stage   Stage
	StoryID string
	Err     error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// StageOf returns the stage that produced err, if any.
func StageOf(err error) (Stage, bool) {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage, true
	}
	return "", false
}

// RequestValidator normalizes a generation request.
type RequestValidator interface {
	Request(req *domain.GenerationRequest) (*domain.GenerationRequest, error)
}

// StoryWriter produces story text in buffered mode.
type StoryWriter interface {
	GenerateStory(ctx context.Context, req content.StoryRequest) (*domain.GeneratedStory, error)
}

// Deps are the collaborators of an Orchestrator. Store may be nil.
type Deps struct {
	Validator RequestValidator
	Writer    StoryWriter
	Generator ports.Generator
	Chain     ports.ChainConnector
	Uploader  ports.MetadataUploader
	Store     ports.StoryStore
	Logger    *slog.Logger
}

// Result is the outcome of a run that reached the done stage.
type Result struct {
	// StoryID is set when the story was persisted.
	StoryID  string
	Request  *domain.GenerationRequest
	Story    *domain.GeneratedStory
	Metadata domain.MintMetadata
	Mint     domain.MintResult
}

// Orchestrator runs the generate-and-mint pipeline.
type Orchestrator struct {
	validator RequestValidator
	writer    StoryWriter
	generator ports.Generator
	chain     ports.ChainConnector
	uploader  ports.MetadataUploader
	store     ports.StoryStore
	logger    *slog.Logger
	tracer    trace.Tracer
}

// New creates an Orchestrator.
func New(deps Deps) *Orchestrator {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		validator: deps.Validator,
		writer:    deps.Writer,
		generator: deps.Generator,
		chain:     deps.Chain,
		uploader:  deps.Uploader,
		store:     deps.Store,
		logger:    logger,
		tracer:    telemetry.Tracer(),
	}
}

// run tracks the stage a pipeline run is in.
type run struct {
	o       *Orchestrator
	ctx     context.Context
	span    trace.Span
	stage   Stage
	storyID string
	attrs   []any
}

func (r *run) enter(stage Stage) {
	r.stage = stage
	r.span.AddEvent(string(stage))
	r.o.logger.DebugContext(r.ctx, "pipeline stage", append([]any{slog.String("stage", string(stage))}, r.attrs...)...)
}

func (r *run) fail(err error) error {
	telemetry.IncStageFailure(string(r.stage))
	telemetry.IncPipelineRun("failed")

	r.span.RecordError(err)
	r.span.SetStatus(codes.Error, string(r.stage))

	attrs := append([]any{
		slog.String("stage", string(r.stage)),
		slog.String("error", err.Error()),
	}, r.attrs...)
	if apiErr, ok := domain.AsAPIError(err); ok && apiErr.Reason != "" {
		attrs = append(attrs, slog.String("reason", apiErr.Reason))
	}
	if r.storyID != "" {
		attrs = append(attrs, slog.String("story_id", r.storyID))
	}
	r.o.logger.ErrorContext(r.ctx, "pipeline failed", attrs...)

	return &StageError{Stage: r.stage, StoryID: r.storyID, Err: err}
}

// Run validates req, generates a story, uploads its metadata and mints it.
// Any failure is a *StageError naming the stage it happened in.
func (o *Orchestrator) Run(ctx context.Context, raw *domain.GenerationRequest) (*Result, error) {
	ctx, span := o.tracer.Start(ctx, "pipeline.Run")
	defer span.End()

	r := &run{o: o, ctx: ctx, span: span}

	r.enter(StageValidating)
	req, err := o.validator.Request(raw)
	if err != nil {
		return nil, r.fail(err)
	}
	r.attrs = []any{slog.String("owner", req.OwnerAddress), slog.String("genre", string(req.Genre))}
	if req.Model != "" {
		r.attrs = append(r.attrs, slog.String("model", req.Model))
	}
	span.SetAttributes(
		attribute.String("story.owner", req.OwnerAddress),
		attribute.String("story.genre", string(req.Genre)),
	)
	if err := o.generator.CheckConfig(req.APIKeyOverride); err != nil {
		return nil, r.fail(err)
	}
	if err := o.chain.CheckConfig(); err != nil {
		return nil, r.fail(err)
	}

	r.enter(StageGenerating)
	story, err := o.writer.GenerateStory(ctx, content.StoryRequest{
		Prompt: req.Prompt,
		Genre:  string(req.Genre),
		Title:  req.Title,
		Options: content.Options{
			Model:  req.Model,
			APIKey: req.APIKeyOverride,
		},
	})
	if err != nil {
		return nil, r.fail(err)
	}
	span.SetAttributes(attribute.String("story.model", story.Model))

	res := &Result{Request: req, Story: story}

	r.enter(StageUploading)
	res.Metadata.StoryHash = metadata.StoryHash(story.Text)
	uri, err := o.uploader.Upload(ctx, metadata.NewDocument(req, story, res.Metadata.StoryHash))
	if err != nil {
		return nil, r.fail(err)
	}
	res.Metadata.MetadataURI = uri
	res.StoryID = o.save(ctx, req, story, res.Metadata)
	r.storyID = res.StoryID

	r.enter(StageMinting)
	minter, err := o.chain.Connect(ctx)
	if err != nil {
		o.recordMint(ctx, res.StoryID, failedOutcome(res.Metadata, err))
		return nil, r.fail(err)
	}
	mint, err := minter.Mint(ctx, res.Metadata)
	if err != nil {
		o.recordMint(ctx, res.StoryID, failedOutcome(res.Metadata, err))
		return nil, r.fail(err)
	}
	res.Mint = mint
	o.recordMint(ctx, res.StoryID, mintOutcome(res.Metadata, mint))

	r.enter(StageDone)
	status := "minted"
	if _, ok := mint.(domain.Unresolved); ok {
		status = "unresolved"
		o.logger.WarnContext(ctx, "mint confirmed without token id",
			append([]any{slog.String("tx_hash", mint.TransactionHash()), slog.String("story_id", res.StoryID)}, r.attrs...)...)
	}
	telemetry.IncPipelineRun(status)
	span.SetAttributes(attribute.String("mint.tx_hash", mint.TransactionHash()))

	return res, nil
}

// MintExisting mints already uploaded metadata. It runs only the
// validating and minting stages.
func (o *Orchestrator) MintExisting(ctx context.Context, meta domain.MintMetadata) (domain.MintResult, error) {
	ctx, span := o.tracer.Start(ctx, "pipeline.MintExisting")
	defer span.End()

	r := &run{o: o, ctx: ctx, span: span, attrs: []any{slog.String("story_hash", meta.StoryHash)}}

	r.enter(StageValidating)
	if meta.StoryHash == "" {
		return nil, r.fail(domain.ErrInvalidRequest("storyHash is required").WithParam("storyHash"))
	}
	if meta.MetadataURI == "" {
		return nil, r.fail(domain.ErrInvalidRequest("metadataURI is required").WithParam("metadataURI"))
	}
	if err := o.chain.CheckConfig(); err != nil {
		return nil, r.fail(err)
	}

	r.enter(StageMinting)
	minter, err := o.chain.Connect(ctx)
	if err != nil {
		return nil, r.fail(err)
	}
	mint, err := minter.Mint(ctx, meta)
	if err != nil {
		return nil, r.fail(err)
	}

	r.enter(StageDone)
	if _, ok := mint.(domain.Unresolved); ok {
		telemetry.IncPipelineRun("unresolved")
	} else {
		telemetry.IncPipelineRun("minted")
	}
	return mint, nil
}

// save persists the story ahead of minting. Storage failures are logged and
// do not stop the run.
func (o *Orchestrator) save(ctx context.Context, req *domain.GenerationRequest, story *domain.GeneratedStory, meta domain.MintMetadata) string {
	if o.store == nil {
		return ""
	}
	rec := &ports.StoryRecord{
		ID:           uuid.NewString(),
		OwnerAddress: req.OwnerAddress,
		Title:        req.Title,
		Genre:        string(req.Genre),
		Model:        story.Model,
		Text:         story.Text,
		StoryHash:    meta.StoryHash,
		MetadataURI:  meta.MetadataURI,
		Status:       ports.StoryGenerated,
	}
	if err := o.store.SaveStory(ctx, rec); err != nil {
		o.logger.WarnContext(ctx, "failed to save story", slog.String("error", err.Error()))
		return ""
	}
	return rec.ID
}

func (o *Orchestrator) recordMint(ctx context.Context, id string, outcome ports.MintOutcome) {
	if o.store == nil || id == "" {
		return
	}
	if err := o.store.RecordMint(ctx, id, outcome); err != nil {
		o.logger.WarnContext(ctx, "failed to record mint outcome",
			slog.String("story_id", id),
			slog.String("error", err.Error()))
	}
}

func mintOutcome(meta domain.MintMetadata, result domain.MintResult) ports.MintOutcome {
	out := ports.MintOutcome{
		StoryHash:       meta.StoryHash,
		MetadataURI:     meta.MetadataURI,
		TransactionHash: result.TransactionHash(),
	}
	switch r := result.(type) {
	case domain.Minted:
		out.Status = ports.StoryMinted
		out.TokenID = r.TokenID
	case domain.Unresolved:
		out.Status = ports.StoryUnresolved
	}
	return out
}

func failedOutcome(meta domain.MintMetadata, err error) ports.MintOutcome {
	msg := err.Error()
	if apiErr, ok := domain.AsAPIError(err); ok {
		msg = apiErr.Message
		if apiErr.Reason != "" {
			msg += ": " + apiErr.Reason
		}
	}
	out := ports.MintOutcome{
		Status:      ports.StoryMintFailed,
		StoryHash:   meta.StoryHash,
		MetadataURI: meta.MetadataURI,
		Error:       msg,
	}
	// A send that never confirmed may still land; keep its hash
	if apiErr, ok := domain.AsAPIError(err); ok {
		out.TransactionHash = apiErr.TxHash
	}
	return out
}
