package api

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/kbukum/pilgi/errors"
	"github.com/kbukum/pilgi/logger"
	"github.com/kbukum/pilgi/server"
	"github.com/kbukum/pilgi/sse"
	"github.com/kbukum/pilgi/storage"
	"github.com/kbukum/pilgi/transcription"
	"github.com/kbukum/pilgi/validation"
)

// Form fields of a transcription request.
const (
	FieldFile     = "file"
	FieldLanguage = "language"
)

// ArtifactEvent announces the download of a finished session.
type ArtifactEvent struct {
	Filename  string    `json:"filename"`
	URL       string    `json:"url"`
	Size      int64     `json:"size"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Transcribe runs one session for the uploaded file and streams its
// events. Session failures, a missing file included, arrive as the
// terminal event of the stream rather than as an HTTP error.
func (h *Handler) Transcribe(c *gin.Context) {
	fh, err := c.FormFile(FieldFile)
	if err != nil && !stderrors.Is(err, http.ErrMissingFile) {
		server.RespondWithError(c, uploadError(err))
		return
	}
	if fh != nil && h.maxUpload > 0 && fh.Size > h.maxUpload {
		server.RespondWithError(c, tooLarge(h.maxUpload))
		return
	}
	language := c.PostForm(FieldLanguage)
	if appErr := validation.New().Language(FieldLanguage, language).Validate(); appErr != nil {
		server.RespondWithError(c, appErr)
		return
	}

	id := uuid.NewString()
	ctx := logger.ContextWithSessionID(c.Request.Context(), id)
	if h.session.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.session.Timeout)
		defer cancel()
	}

	// The upload is only stored when a session can use it. Without a ready
	// model the session still runs so the client gets the not-ready event.
	var audioPath string
	if fh != nil {
		if handle := h.registry.Handle(); handle != nil && handle.Ready() {
			path, cleanup, err := h.stage(ctx, id, fh)
			if err != nil {
				h.log.Error("store upload failed", logger.MergeWithError(logger.Fields(logger.FieldSessionID, id), err))
				server.RespondWithError(c, err)
				return
			}
			defer cleanup()
			audioPath = path
		} else {
			audioPath = fh.Filename
		}
	}

	stream := transcription.NewSession(
		h.registry.Handle(),
		h.session.Request(audioPath, language),
		append(h.session.Options(),
			transcription.WithSessionID(id),
			transcription.WithSessionLogger(h.log),
			transcription.WithSessionMetrics(h.metrics),
			transcription.WithServiceName(h.service),
		)...,
	)
	defer stream.Close()

	sw, err := sse.NewWriter(c.Writer)
	if err != nil {
		server.RespondWithError(c, errors.Internal(err))
		return
	}

	var last transcription.ProgressEvent
	for ev, err := range stream.Events(ctx) {
		if err != nil {
			if stderrors.Is(err, context.DeadlineExceeded) {
				_ = sw.Send(sse.EventTypeError, errors.Timeout("transcription").ToResponse())
			}
			return
		}
		if err := sw.Send(string(ev.Kind), ev); err != nil {
			return
		}
		last = ev
	}

	if last.Kind != transcription.KindSuccess {
		return
	}
	art, ok := transcription.PrepareDownload(last.Text, h.now())
	if !ok {
		return
	}
	rec, err := h.artifacts.Save(ctx, art)
	if err != nil {
		h.log.Error("save artifact failed", logger.MergeWithError(logger.Fields(logger.FieldSessionID, id), err))
		_ = sw.Send(sse.EventTypeError, errors.Wrap(err).ToResponse())
		return
	}
	_ = sw.Send(sse.EventTypeArtifact, ArtifactEvent{
		Filename:  rec.Filename,
		URL:       DownloadURL(rec.Filename),
		Size:      rec.Size,
		ExpiresAt: rec.ExpiresAt,
	})
}

// stage writes the upload to the upload store and returns a local path for
// the engine. cleanup removes the stored upload and any local copy.
func (h *Handler) stage(ctx context.Context, id string, fh *multipart.FileHeader) (string, func(), error) {
	store := h.uploads.Storage()
	if store == nil {
		return "", nil, errors.ServiceUnavailable("storage")
	}

	src, err := fh.Open()
	if err != nil {
		return "", nil, uploadError(err)
	}
	defer src.Close()

	key := storage.UploadKey(id, fh.Filename)
	if err := store.Upload(ctx, key, src); err != nil {
		return "", nil, errors.StorageError("store upload", err)
	}
	removeUpload := func() {
		if err := store.Delete(context.WithoutCancel(ctx), key); err != nil {
			h.log.Warn("delete upload failed", logger.MergeWithError(logger.Fields("key", key), err))
		}
	}

	if lp, ok := store.(storage.LocalPather); ok {
		if path, ok := lp.LocalPath(key); ok {
			return path, removeUpload, nil
		}
	}

	path, err := h.localCopy(ctx, store, key)
	if err != nil {
		removeUpload()
		return "", nil, errors.StorageError("fetch upload", err)
	}
	return path, func() {
		_ = os.Remove(path)
		removeUpload()
	}, nil
}

// localCopy downloads a stored upload into a temp file, keeping the
// extension so engines can sniff the container.
func (h *Handler) localCopy(ctx context.Context, store storage.Storage, key string) (string, error) {
	rc, err := store.Download(ctx, key)
	if err != nil {
		return "", err
	}
	defer rc.Close()

	f, err := os.CreateTemp("", "pilgi-upload-*"+filepath.Ext(key))
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(f, rc); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}

func uploadError(err error) *errors.AppError {
	var maxErr *http.MaxBytesError
	if stderrors.As(err, &maxErr) {
		return tooLarge(maxErr.Limit)
	}
	return errors.InvalidInput(FieldFile, "could not read the uploaded file").WithCause(err)
}

func tooLarge(limit int64) *errors.AppError {
	e := errors.InvalidInput(FieldFile, fmt.Sprintf("file exceeds the %d byte limit", limit))
	e.HTTPStatus = http.StatusRequestEntityTooLarge
	return e
}
