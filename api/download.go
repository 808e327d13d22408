package api

import (
	"mime"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/pilgi/server"
)

// Download serves a stored artifact as a text attachment.
func (h *Handler) Download(c *gin.Context) {
	rc, rec, err := h.artifacts.Open(c.Request.Context(), c.Param("filename"))
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	defer rc.Close()

	c.DataFromReader(http.StatusOK, rec.Size, "text/plain; charset=utf-8", rc, map[string]string{
		"Content-Disposition": mime.FormatMediaType("attachment", map[string]string{"filename": rec.Filename}),
		"Cache-Control":       "no-store",
	})
}
