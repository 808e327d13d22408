package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/kbukum/pilgi/logger"
	"github.com/kbukum/pilgi/server"
	"github.com/kbukum/pilgi/sse"
	"github.com/kbukum/pilgi/transcription"
)

// ModelPattern matches every model event subscriber.
const ModelPattern = "model:*"

// ModelStatus reports the registry status. It never waits for a load.
func (h *Handler) ModelStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.registry.Report())
}

// PrepareModel loads the model and blocks until the attempt finishes. A
// ready model answers at once; concurrent calls share one load.
func (h *Handler) PrepareModel(c *gin.Context) {
	ctx := c.Request.Context()
	if _, err := h.registry.EnsureLoaded(ctx); err != nil {
		if ctx.Err() != nil {
			// Client went away; the load continues for everyone else.
			return
		}
		h.log.Warn("prepare failed", logger.ErrorFields("prepare", err))
		server.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.registry.Report())
}

// ModelEvents streams load phases. The current status is sent first so a
// subscriber never misses the state it joined in.
func (h *Handler) ModelEvents(c *gin.Context) {
	var initial []sse.Event
	if ev, err := sse.NewEvent(sse.EventTypeModel, h.registry.Report()); err == nil {
		initial = append(initial, ev)
	}
	sse.ServeSSE(h.hub, c.Writer, c.Request, "model:"+uuid.NewString(), initial,
		map[string]string{"remote_addr": c.ClientIP()})
}

// BroadcastLoadEvents returns a load observer that publishes every phase to
// model subscribers of hub.
func BroadcastLoadEvents(hub *sse.Hub) transcription.LoadObserver {
	return func(ev transcription.LoadEvent) {
		e, err := sse.NewEvent(sse.EventTypeModel, ev)
		if err != nil {
			logger.Warn("encode load event", logger.ErrorFields("broadcast", err))
			return
		}
		hub.Publish(ModelPattern, e)
	}
}
