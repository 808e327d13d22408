// Package api serves the /api/v1 HTTP surface: model status and prepare,
// the model load event feed, streamed transcription sessions and artifact
// downloads.
package api
