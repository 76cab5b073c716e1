// Package pipeline sequences the generate-and-mint flow.
//
// A run moves through fixed stages and stops at the first failure:
//
//	validating -> generating -> uploading -> minting -> done
//
// Validating checks the request and the completion and chain configuration
// without touching the network. Generating calls the completion API once in
// buffered mode. Uploading hashes the story and stores its metadata document.
// Minting submits one paid transaction and waits for its receipt.
//
// Nothing is retried and completed stages are not rolled back. When a story
// store is configured the story is saved before minting and the mint outcome
// is written back afterwards, so the text survives a failed mint.
//
// Failures are returned as *StageError wrapping a *domain.APIError.
package pipeline
