package app

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/kbukum/pilgi/bootstrap"
	"github.com/kbukum/pilgi/errors"
	"github.com/kbukum/pilgi/logger"
	"github.com/kbukum/pilgi/storage/local"
	"github.com/kbukum/pilgi/transcription"
	"github.com/kbukum/pilgi/validation"
)

// Task runs the model outside the HTTP service, for the one-shot CLI
// commands.
type Task struct {
	cfg   *Config
	model *transcription.ModelRegistry
	log   *logger.Logger
	now   func() time.Time
}

// NewTask builds the model registry and registers it on a.
func NewTask(a *bootstrap.App[*Config], opts ...Option) (*Task, error) {
	model, err := NewModelRegistry(a.Cfg, a.Logger, nil, opts...)
	if err != nil {
		return nil, err
	}
	if err := a.RegisterComponent(model); err != nil {
		return nil, err
	}
	return &Task{cfg: a.Cfg, model: model, log: a.Logger, now: time.Now}, nil
}

// Model returns the registry.
func (t *Task) Model() *transcription.ModelRegistry { return t.model }

// Prepare loads the model and returns its status.
func (t *Task) Prepare(ctx context.Context) (transcription.StatusReport, error) {
	_, err := t.model.EnsureLoaded(ctx)
	return t.model.Report(), err
}

// Transcribe loads the model, runs one session for path and hands every
// event to render. On success the artifact is written to outDir and its
// path returned. A failed session returns the error of its terminal event;
// an empty result returns no path and no error.
func (t *Task) Transcribe(ctx context.Context, path, language, outDir string, render func(transcription.ProgressEvent)) (string, error) {
	if appErr := validation.New().Language("language", language).Validate(); appErr != nil {
		return "", appErr
	}
	handle, err := t.model.EnsureLoaded(ctx)
	if err != nil {
		return "", err
	}

	stream := transcription.NewSession(handle,
		t.cfg.Transcription.Request(path, language),
		append(t.cfg.Transcription.Options(),
			transcription.WithSessionLogger(t.log),
			transcription.WithServiceName(t.cfg.Name),
		)...,
	)
	defer stream.Close()

	var last transcription.ProgressEvent
	for ev, err := range stream.Events(ctx) {
		if err != nil {
			return "", err
		}
		render(ev)
		last = ev
	}

	if last.Err != nil {
		return "", last.Err
	}
	art, ok := transcription.PrepareDownload(last.Text, t.now())
	if !ok {
		return "", nil
	}
	return t.write(ctx, outDir, art)
}

// write stores the artifact in dir without replacing an existing file.
func (t *Task) write(ctx context.Context, dir string, art *transcription.DownloadArtifact) (string, error) {
	store, err := local.Open(dir)
	if err != nil {
		return "", errors.StorageError("open output dir", err)
	}
	defer store.Close()

	ext := filepath.Ext(art.Filename)
	base := strings.TrimSuffix(art.Filename, ext)
	name := art.Filename
	for i := 2; ; i++ {
		exists, err := store.Exists(ctx, name)
		if err != nil {
			return "", errors.StorageError("check output", err)
		}
		if !exists {
			break
		}
		name = fmt.Sprintf("%s_%d%s", base, i, ext)
	}

	if err := store.Upload(ctx, name, bytes.NewReader(art.Content)); err != nil {
		return "", errors.StorageError("write transcript", err)
	}
	return filepath.Join(dir, name), nil
}
