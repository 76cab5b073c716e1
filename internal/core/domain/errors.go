// Package domain provides the story service's canonical types and error taxonomy.
package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorType represents the category of an API error.
type ErrorType string

const (
	// ErrorTypeInvalidRequest indicates a client-fixable, malformed request.
	ErrorTypeInvalidRequest ErrorType = "invalid_request"

	// ErrorTypeUnsupportedModel indicates a model id outside the allow-list.
	ErrorTypeUnsupportedModel ErrorType = "unsupported_model"

	// ErrorTypeConfiguration indicates server misconfiguration detected before any network call.
	ErrorTypeConfiguration ErrorType = "configuration"

	// ErrorTypeUpstreamUnavailable indicates the completion API (or metadata host) failed.
	ErrorTypeUpstreamUnavailable ErrorType = "upstream_unavailable"

	// ErrorTypeEmptyCompletion indicates the completion API answered without content.
	ErrorTypeEmptyCompletion ErrorType = "empty_completion"

	// ErrorTypeRPC indicates a blockchain node or network failure.
	ErrorTypeRPC ErrorType = "rpc"

	// ErrorTypeContractRevert indicates the minting transaction was rejected on-chain.
	ErrorTypeContractRevert ErrorType = "contract_revert"

	// ErrorTypeAuthentication indicates a missing or invalid API key.
	ErrorTypeAuthentication ErrorType = "authentication"

	// ErrorTypeNotFound indicates a resource was not found.
	ErrorTypeNotFound ErrorType = "not_found"

	// ErrorTypeServer indicates an internal server error.
	ErrorTypeServer ErrorType = "server"
)

// APIError represents a canonical error that handlers translate into a JSON response.
type APIError struct {
	// Type is the category of error
	Type ErrorType `json:"type"`

	// Message is the human-readable error message
	Message string `json:"message"`

	// Param is the request field that caused the error (if applicable)
	Param string `json:"param,omitempty"`

	// Reason carries the decoded revert reason for contract reverts.
	Reason string `json:"reason,omitempty"`

	// TxHash is the hash of a transaction that was sent before the failure.
	TxHash string `json:"transactionHash,omitempty"`

	// StatusCode overrides the default HTTP status code
	StatusCode int `json:"-"`

	// Cause is the underlying error, kept for logging and errors.Is chains.
	Cause error `json:"-"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Type, e.Message)
	if e.Reason != "" {
		msg += " (" + e.Reason + ")"
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap exposes the underlying cause.
func (e *APIError) Unwrap() error {
	return e.Cause
}

// HTTPStatusCode returns the appropriate HTTP status code for this error.
func (e *APIError) HTTPStatusCode() int {
	if e.StatusCode != 0 {
		return e.StatusCode
	}

	switch e.Type {
	case ErrorTypeInvalidRequest, ErrorTypeUnsupportedModel:
		return http.StatusBadRequest
	case ErrorTypeAuthentication:
		return http.StatusUnauthorized
	case ErrorTypeNotFound:
		return http.StatusNotFound
	case ErrorTypeConfiguration:
		return http.StatusServiceUnavailable
	case ErrorTypeUpstreamUnavailable, ErrorTypeEmptyCompletion:
		return http.StatusBadGateway
	case ErrorTypeRPC, ErrorTypeContractRevert, ErrorTypeServer:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// NewAPIError creates a new API error.
func NewAPIError(errType ErrorType, message string) *APIError {
	return &APIError{
		Type:    errType,
		Message: message,
	}
}

// WithParam adds a parameter name to the error.
func (e *APIError) WithParam(param string) *APIError {
	e.Param = param
	return e
}

// WithReason attaches a revert reason.
func (e *APIError) WithReason(reason string) *APIError {
	e.Reason = reason
	return e
}

// WithTxHash records the hash of an already sent transaction.
func (e *APIError) WithTxHash(hash string) *APIError {
	e.TxHash = hash
	return e
}

// WithCause records the underlying error.
func (e *APIError) WithCause(err error) *APIError {
	e.Cause = err
	return e
}

// WithStatusCode sets a specific HTTP status code.
func (e *APIError) WithStatusCode(code int) *APIError {
	e.StatusCode = code
	return e
}

// AsAPIError finds the first *APIError in err's chain.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// IsType reports whether err carries an APIError of the given type.
func IsType(err error, errType ErrorType) bool {
	apiErr, ok := AsAPIError(err)
	return ok && apiErr.Type == errType
}

// Convenience constructors for common errors

// ErrInvalidRequest creates an invalid request error.
func ErrInvalidRequest(message string) *APIError {
	return NewAPIError(ErrorTypeInvalidRequest, message)
}

// ErrUnsupportedModel creates an unsupported model error.
func ErrUnsupportedModel(model string) *APIError {
	return NewAPIError(ErrorTypeUnsupportedModel, fmt.Sprintf("model %q is not supported", model)).
		WithParam("model")
}

// ErrConfiguration creates a configuration error.
func ErrConfiguration(message string) *APIError {
	return NewAPIError(ErrorTypeConfiguration, message)
}

// ErrUpstreamUnavailable creates an upstream failure error.
func ErrUpstreamUnavailable(message string, cause error) *APIError {
	return NewAPIError(ErrorTypeUpstreamUnavailable, message).WithCause(cause)
}

// ErrEmptyCompletion creates an empty completion error.
func ErrEmptyCompletion(model string) *APIError {
	return NewAPIError(ErrorTypeEmptyCompletion, fmt.Sprintf("model %s returned no content", model))
}

// ErrRPC creates a blockchain RPC error.
func ErrRPC(message string, cause error) *APIError {
	return NewAPIError(ErrorTypeRPC, message).WithCause(cause)
}

// ErrContractRevert creates a contract revert error carrying the revert reason.
func ErrContractRevert(reason string, cause error) *APIError {
	return NewAPIError(ErrorTypeContractRevert, "minting transaction reverted").
		WithReason(reason).
		WithCause(cause)
}

// ErrAuthentication creates an authentication error.
func ErrAuthentication(message string) *APIError {
	return NewAPIError(ErrorTypeAuthentication, message)
}

// ErrNotFound creates a not found error.
func ErrNotFound(message string) *APIError {
	return NewAPIError(ErrorTypeNotFound, message)
}

// ErrServer creates a server error.
func ErrServer(message string, cause error) *APIError {
	return NewAPIError(ErrorTypeServer, message).WithCause(cause)
}
