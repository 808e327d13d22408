package storage

import (
	"fmt"
	"sync"

	"github.com/kbukum/pilgi/logger"
)

// Factory opens a backend from the storage config.
type Factory func(cfg Config) (Storage, error)

var (
	factoriesMu sync.RWMutex
	factories   = make(map[string]Factory)
)

// RegisterFactory makes a backend available under name. Backend packages
// call it from init, so they must be imported for side effects:
//
//	import _ "github.com/kbukum/pilgi/storage/s3"
func RegisterFactory(name string, f Factory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	factories[name] = f
}

// New validates cfg and opens the backend it selects.
func New(cfg Config, log *logger.Logger) (Storage, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("storage: %w", err)
	}

	factoriesMu.RLock()
	f, ok := factories[cfg.Provider]
	factoriesMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("storage: provider %q is not linked in", cfg.Provider)
	}

	log.Info("opening storage", logger.Fields("provider", cfg.Provider))
	return f(cfg)
}
