// Package resilience guards calls into slow or scarce resources.
//
// Bulkhead admits a fixed number of concurrent callers; MaxWait decides
// what happens to the rest. The transcription session uses it so a single
// loaded model is never driven by two sessions at once:
//
//	bh := resilience.NewBulkhead(resilience.DefaultBulkheadConfig("engine"))
//	release, err := bh.Acquire(ctx)
//	if resilience.IsRejected(err) {
//	    // engine busy
//	}
//	defer release()
//
// Retry re-runs a call with exponential backoff. Engine backends use it while
// waiting for a sidecar to come up or a model download to succeed.
package resilience
