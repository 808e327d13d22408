// Package logger provides structured logging for pilgi using zerolog.
//
// Output is JSON or a compact console format. Loggers can be scoped to a
// component and enriched with request and session ids from a context. Logs go to stderr by
// default so the CLI can print transcripts on stdout.
//
// # Configuration
//
//	logging:
//	  level: "info"
//	  format: "json"
//
// # Usage
//
//	log := logger.GetGlobalLogger().WithComponent("transcription")
//	log.Info("model ready", logger.Fields(logger.FieldModel, name))
package logger
