// Package validate checks and normalizes story generation requests.
package validate

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/groqtales/groqtales-server/internal/core/domain"
	"github.com/groqtales/groqtales-server/internal/tokens"
)

// ModelChecker reports whether a model id is on the allow-list.
type ModelChecker interface {
	SupportsModel(model string) bool
}

// Validator applies the request rules ahead of any network call.
type Validator struct {
	v               *validator.Validate
	models          ModelChecker
	counter         *tokens.Counter
	maxPromptTokens int
}

// New creates a Validator. models and counter may be nil, which disables the
// model allow-list and prompt length checks respectively.
func New(models ModelChecker, counter *tokens.Counter, maxPromptTokens int) *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Validator{
		v:               v,
		models:          models,
		counter:         counter,
		maxPromptTokens: maxPromptTokens,
	}
}

// Request validates req and returns a normalized copy with defaults applied.
// Failures are *domain.APIError of type invalid_request or unsupported_model.
func (val *Validator) Request(req *domain.GenerationRequest) (*domain.GenerationRequest, error) {
	if req == nil {
		return nil, domain.ErrInvalidRequest("request body is required")
	}

	out := *req
	out.Prompt = strings.TrimSpace(out.Prompt)
	out.OwnerAddress = strings.TrimSpace(out.OwnerAddress)
	out.Title = strings.TrimSpace(out.Title)
	out.APIKeyOverride = strings.TrimSpace(out.APIKeyOverride)
	out.Model = strings.TrimSpace(out.Model)

	if err := val.v.Struct(&out); err != nil {
		return nil, translate(err)
	}

	if out.Title == "" {
		out.Title = DefaultTitle()
	}

	if out.Genre == "" {
		out.Genre = domain.GenreGeneral
	} else {
		g, ok := domain.ParseGenre(string(out.Genre))
		if !ok {
			return nil, domain.ErrInvalidRequest(fmt.Sprintf("unknown genre %q", out.Genre)).WithParam("genre")
		}
		out.Genre = g
	}

	if out.Model != "" && val.models != nil && !val.models.SupportsModel(out.Model) {
		return nil, domain.ErrUnsupportedModel(out.Model)
	}

	if val.counter != nil && val.maxPromptTokens > 0 {
		if n := val.counter.CountText(out.Prompt); n > val.maxPromptTokens {
			return nil, domain.ErrInvalidRequest(
				fmt.Sprintf("prompt is too long: about %d tokens, limit is %d", n, val.maxPromptTokens),
			).WithParam("prompt")
		}
	}

	return &out, nil
}

// DefaultTitle returns "Untitled Story " followed by 8 random hex characters.
func DefaultTitle() string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "Untitled Story " + id[:8]
}

func translate(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return domain.ErrInvalidRequest(err.Error())
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return domain.ErrInvalidRequest(fe.Field() + " is required").WithParam(fe.Field())
	default:
		return domain.ErrInvalidRequest(fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag())).WithParam(fe.Field())
	}
}
