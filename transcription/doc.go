// Package transcription owns the speech-to-text core: the model lifecycle
// and the per-request session that turns one blocking engine call into a
// progressively revealed stream of events.
//
// # Model lifecycle
//
// A ModelRegistry loads the configured Backend at most once at a time.
// Under the eager policy the load runs in Start; under the lazy policy only
// an explicit EnsureLoaded (the "prepare" trigger) loads it. Concurrent
// callers wait for the in-flight load and share its result. Status never
// blocks.
//
//	reg := transcription.NewModelRegistry(cfg.Model, backend,
//		transcription.WithLogger(log),
//		transcription.WithMetrics(metrics),
//	)
//	handle, err := reg.EnsureLoaded(ctx)
//
// # Sessions
//
// NewSession returns a pull-based Stream. Every session ends in exactly one
// terminal event: a validation prompt, a not-ready notice, an error
// envelope, the empty-result sentinel, or the full text with its summary
// footer.
//
//	stream := transcription.NewSession(reg.Handle(), transcription.Request{AudioPath: path})
//	for ev, err := range stream.Events(ctx) {
//		if err != nil {
//			return err // cancelled
//		}
//		render(ev)
//	}
//
// PrepareDownload turns the text of the last event into a download artifact
// when, and only when, it is a terminal success.
//
// # Backends
//
//   - transcription/whisper: faster-whisper HTTP sidecar
//   - transcription/whispercpp: local whisper.cpp CLI with ffmpeg conversion
package transcription
