// Package server provides the HTTP server: Gin routes served over HTTP/1.1
// and h2c on one port. The Server is itself a component.
//
// # Middleware
//
// ApplyMiddleware wraps the root handler (server/middleware):
//
//   - Recovery: panic recovery with structured logging
//   - RequestID: X-Request-Id generation and propagation
//   - CORS: cross-origin headers and preflight
//   - BodySizeLimit: request body cap for uploads
//   - RequestLogger: one log line per request, level by status
//
// # Endpoints
//
// RegisterDefaultEndpoints adds (server/endpoint):
//
//   - /health: component health aggregation
//   - /ready: 200 only once the model is loaded
//   - /version: build information
package server
