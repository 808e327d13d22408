// Package artifact keeps the downloadable transcripts produced by
// successful sessions.
//
// Content goes to object storage under "artifacts/"; an index with a TTL
// (Redis, or memory when Redis is off) decides which names are still
// served. A janitor removes expired objects and stale uploads.
package artifact

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/kbukum/pilgi/component"
	"github.com/kbukum/pilgi/errors"
	"github.com/kbukum/pilgi/logger"
	"github.com/kbukum/pilgi/provider"
	"github.com/kbukum/pilgi/redis"
	"github.com/kbukum/pilgi/storage"
	"github.com/kbukum/pilgi/transcription"
)

const (
	defaultTTL           = 24 * time.Hour
	defaultSweepInterval = 10 * time.Minute
	defaultKeyPrefix     = "pilgi:artifacts"
	maxNameAttempts      = 100
)

var (
	_ component.Component   = (*Store)(nil)
	_ component.Describable = (*Store)(nil)
)

// Config controls artifact retention.
type Config struct {
	// TTL is how long an artifact stays downloadable.
	TTL time.Duration `yaml:"ttl" mapstructure:"ttl"`
	// SweepInterval is how often expired objects are removed. Negative
	// disables the janitor.
	SweepInterval time.Duration `yaml:"sweep_interval" mapstructure:"sweep_interval"`
	// KeyPrefix namespaces index keys in Redis.
	KeyPrefix string `yaml:"key_prefix" mapstructure:"key_prefix"`
}

// ApplyDefaults fills in unset retention settings.
func (c *Config) ApplyDefaults() {
	if c.TTL <= 0 {
		c.TTL = defaultTTL
	}
	if c.SweepInterval == 0 {
		c.SweepInterval = defaultSweepInterval
	}
	if c.KeyPrefix == "" {
		c.KeyPrefix = defaultKeyPrefix
	}
}

// Record is the index entry of a saved artifact.
type Record struct {
	Filename  string    `json:"filename"`
	Key       string    `json:"key"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// StorageSource yields the object storage once it has started.
// *storage.Component satisfies it.
type StorageSource interface {
	Storage() storage.Storage
}

// StorageFunc adapts a function to StorageSource.
type StorageFunc func() storage.Storage

// Storage implements StorageSource.
func (f StorageFunc) Storage() storage.Storage { return f() }

// RedisSource yields a started Redis client. *redis.Component satisfies it.
type RedisSource interface {
	Client() *redis.Client
}

// Option configures a Store.
type Option func(*Store)

// WithIndex sets the index directly.
func WithIndex(idx provider.ContextStore[Record]) Option {
	return func(s *Store) { s.index = idx }
}

// WithRedisIndex keeps the index in Redis. The client is resolved on Start.
func WithRedisIndex(src RedisSource) Option {
	return func(s *Store) { s.redis = src }
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(s *Store) { s.log = l }
}

// WithClock replaces the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Store saves and serves artifacts.
type Store struct {
	cfg   Config
	src   StorageSource
	redis RedisSource
	log   *logger.Logger
	now   func() time.Time

	mu      sync.Mutex // serializes name selection
	storage storage.Storage
	index   provider.ContextStore[Record]
	backend string

	stop chan struct{}
	done chan struct{}
}

// New creates a Store over the given storage. Call Start before use.
func New(cfg Config, src StorageSource, opts ...Option) *Store {
	cfg.ApplyDefaults()
	s := &Store{
		cfg: cfg,
		src: src,
		log: logger.GetGlobalLogger(),
		now: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.WithComponent("artifacts")
	return s
}

// Config returns the effective configuration.
func (s *Store) Config() Config { return s.cfg }

// Name returns the component name.
func (s *Store) Name() string { return "artifacts" }

// Start resolves storage and the index and starts the janitor.
func (s *Store) Start(_ context.Context) error {
	st := s.src.Storage()
	if st == nil {
		return fmt.Errorf("artifacts: storage is not started")
	}
	s.storage = st

	switch {
	case s.index != nil:
		s.backend = "custom"
	case s.redis != nil && s.redis.Client() != nil:
		s.index = redis.NewIndex[Record](s.redis.Client(), s.cfg.KeyPrefix)
		s.backend = "redis"
	default:
		s.index = provider.NewMemoryStore[Record]().WithClock(s.now)
		s.backend = "memory"
	}

	if s.cfg.SweepInterval > 0 {
		s.stop = make(chan struct{})
		s.done = make(chan struct{})
		go s.janitor(s.stop, s.done)
	}
	s.log.Info("artifact store started", logger.Fields(
		"index", s.backend,
		"ttl", s.cfg.TTL.String(),
	))
	return nil
}

// Stop stops the janitor.
func (s *Store) Stop(ctx context.Context) error {
	if s.stop == nil {
		return nil
	}
	close(s.stop)
	select {
	case <-s.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	s.stop = nil
	return nil
}

// Health reports whether the store has started.
func (s *Store) Health(_ context.Context) component.Health {
	if s.storage == nil {
		return component.Health{Name: s.Name(), Status: component.StatusUnhealthy, Message: "not started"}
	}
	return component.Health{Name: s.Name(), Status: component.StatusHealthy}
}

// Describe returns infrastructure summary info for the bootstrap display.
func (s *Store) Describe() component.Description {
	index := s.backend
	if index == "" {
		index = "pending"
	}
	return component.Description{
		Name:    "Artifacts",
		Type:    "storage",
		Details: fmt.Sprintf("index=%s ttl=%s", index, s.cfg.TTL),
	}
}

// Save stores art and indexes it. If the name is taken a numeric suffix is
// added: transcription_1760000000_2.txt.
func (s *Store) Save(ctx context.Context, art *transcription.DownloadArtifact) (Record, error) {
	if art == nil || art.Filename == "" {
		return Record{}, errors.InvalidInput("artifact", "filename is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	name, err := s.freeName(ctx, storage.SafeName(art.Filename))
	if err != nil {
		return Record{}, errors.StorageError("save artifact", err)
	}

	key := storage.ArtifactKey(name)
	if err := s.storage.Upload(ctx, key, bytes.NewReader(art.Content)); err != nil {
		return Record{}, errors.StorageError("save artifact", err)
	}

	now := s.now()
	rec := Record{
		Filename:  name,
		Key:       key,
		Size:      int64(len(art.Content)),
		CreatedAt: now,
		ExpiresAt: now.Add(s.cfg.TTL),
	}
	if err := s.index.Save(ctx, name, &rec, s.cfg.TTL); err != nil {
		_ = s.storage.Delete(ctx, key)
		return Record{}, errors.StorageError("index artifact", err)
	}

	s.log.Info("artifact saved", logger.Fields("filename", name, "size", rec.Size))
	return rec, nil
}

func (s *Store) freeName(ctx context.Context, name string) (string, error) {
	ext := path.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for i := 1; i <= maxNameAttempts; i++ {
		candidate := name
		if i > 1 {
			candidate = fmt.Sprintf("%s_%d%s", stem, i, ext)
		}
		rec, err := s.index.Load(ctx, candidate)
		if err != nil {
			return "", err
		}
		if rec != nil {
			continue
		}
		exists, err := s.storage.Exists(ctx, storage.ArtifactKey(candidate))
		if err != nil {
			return "", err
		}
		if !exists {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("no free name for %s after %d attempts", name, maxNameAttempts)
}

// Open returns the content of a live artifact. Unknown, expired and
// malformed names are NOT_FOUND.
func (s *Store) Open(ctx context.Context, filename string) (io.ReadCloser, Record, error) {
	if filename == "" || storage.SafeName(filename) != filename {
		return nil, Record{}, errors.NotFound("artifact", filename)
	}
	rec, err := s.index.Load(ctx, filename)
	if err != nil {
		return nil, Record{}, errors.StorageError("open artifact", err)
	}
	if rec == nil {
		return nil, Record{}, errors.NotFound("artifact", filename)
	}

	rc, err := s.storage.Download(ctx, rec.Key)
	if err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			_ = s.index.Delete(ctx, filename)
			return nil, Record{}, errors.NotFound("artifact", filename)
		}
		return nil, Record{}, errors.StorageError("open artifact", err)
	}
	return rc, *rec, nil
}

// Sweep deletes artifacts and uploads older than the TTL and returns how
// many objects were removed.
func (s *Store) Sweep(ctx context.Context) (int, error) {
	if mem, ok := s.index.(*provider.MemoryStore[Record]); ok {
		mem.Sweep()
	}

	cutoff := s.now().Add(-s.cfg.TTL)
	removed := 0
	var errs []error
	for _, prefix := range []string{storage.PrefixArtifacts, storage.PrefixUploads} {
		files, err := s.storage.List(ctx, prefix)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		for _, f := range files {
			if f.LastModified.IsZero() || !f.LastModified.Before(cutoff) {
				continue
			}
			if err := s.storage.Delete(ctx, f.Path); err != nil {
				errs = append(errs, err)
				continue
			}
			if prefix == storage.PrefixArtifacts {
				_ = s.index.Delete(ctx, path.Base(f.Path))
			}
			removed++
		}
	}
	return removed, stderrors.Join(errs...)
}

func (s *Store) janitor(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), s.cfg.SweepInterval)
			n, err := s.Sweep(ctx)
			cancel()
			if err != nil {
				s.log.Warn("artifact sweep failed", logger.ErrorFields("sweep", err))
			} else if n > 0 {
				s.log.Info("expired artifacts removed", logger.Fields("count", n))
			}
		}
	}
}
