// Package sse delivers server-sent events.
//
// Two shapes are supported. A Writer streams one response, which is how a
// transcription session reports progress to its uploader. The Hub fans
// events out to long-lived subscribers selected by glob pattern; model
// load phases are broadcast to "model:*".
//
//	hub := sse.NewHub()
//	router.GET("/events", func(c *gin.Context) {
//	    sse.ServeSSE(hub, c.Writer, c.Request, "model:"+uuid.NewString(), nil, nil)
//	})
//	hub.Publish("model:*", ev)
package sse
