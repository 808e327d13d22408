package storage

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"
	"time"
)

// ErrNotFound is returned by Download when no object exists at the path.
var ErrNotFound = errors.New("storage: object not found")

// Key prefixes separating uploaded media from generated artifacts.
const (
	PrefixUploads   = "uploads/"
	PrefixArtifacts = "artifacts/"
)

// FileInfo contains metadata about a stored object.
type FileInfo struct {
	Path         string
	Size         int64
	LastModified time.Time
}

// Storage defines the interface for object storage operations.
type Storage interface {
	// Upload writes data from reader to the given path.
	Upload(ctx context.Context, path string, reader io.Reader) error

	// Download returns a reader for the object at the given path.
	// The caller is responsible for closing the returned ReadCloser.
	Download(ctx context.Context, path string) (io.ReadCloser, error)

	// Delete removes the object at the given path.
	// Returns nil if the object does not exist.
	Delete(ctx context.Context, path string) error

	// Exists checks whether an object exists at the given path.
	Exists(ctx context.Context, path string) (bool, error)

	// List returns metadata for all objects whose path starts with prefix.
	List(ctx context.Context, prefix string) ([]FileInfo, error)
}

// LocalPather is implemented by backends that keep objects on the local
// filesystem. Engines that need a file path use it to skip a copy.
type LocalPather interface {
	LocalPath(path string) (string, bool)
}

// UploadKey returns the key for an uploaded media file. Only the base name
// of filename is kept.
func UploadKey(id, filename string) string {
	return PrefixUploads + id + "/" + SafeName(filename)
}

// ArtifactKey returns the key for a generated artifact.
func ArtifactKey(filename string) string {
	return PrefixArtifacts + SafeName(filename)
}

// SafeName reduces a client supplied file name to a single path segment.
func SafeName(filename string) string {
	name := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	if name == "." || name == "/" || name == ".." || name == "" {
		return "upload"
	}
	return name
}
