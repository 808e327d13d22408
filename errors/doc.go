// Package errors provides the structured error type shared by every pilgi
// package. An AppError carries a machine-readable code, an HTTP status
// mapping and a retryable flag, and renders to an RFC 7807 style envelope.
//
// The model and engine codes (ENGINE_NOT_READY, MODEL_LOAD_FAILED,
// ENGINE_FAULT) make up the closed failure taxonomy of a transcription
// session.
package errors
