// Package httpclient talks to engine sidecars over HTTP.
//
// Requests carry either a JSON value or an upload Form. Audio uploads are
// streamed from disk, never buffered whole. Failures come back as *Error with
// a Kind the caller can branch on:
//
//	form := httpclient.NewForm().
//	    Set("model", "base.en").
//	    Attach("audio", "talk.wav", f)
//
//	var out transcript
//	err := client.DoJSON(ctx, httpclient.Request{
//	    Method:  http.MethodPost,
//	    Path:    "/transcribe",
//	    Form:    form,
//	    Timeout: 30 * time.Minute,
//	}, &out)
//
// ToAppError converts client errors into the shared errors taxonomy.
package httpclient
