// -----------------------------------------------------------------------
// Site registry - configured site descriptors and driver instantiation
// -----------------------------------------------------------------------

package sites

import (
	"fmt"
	"sync"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/lwfm/internal/common"
	"github.com/ternarybob/lwfm/internal/interfaces"
)

// DriverFactory constructs a site driver for one configured site. The
// runtime gives the driver its callback surface into the middleware.
type DriverFactory func(name string, cfg common.SiteConfig, rt interfaces.Runtime, logger arbor.ILogger) (interfaces.SiteDriver, error)

// Registry resolves site names to configured descriptors and live driver
// instances. Driver classes register a factory by class name; drivers are
// instantiated lazily, once per site.
type Registry struct {
	configs   map[string]common.SiteConfig
	factories map[string]DriverFactory
	drivers   map[string]interfaces.SiteDriver
	rt        interfaces.Runtime
	logger    arbor.ILogger
	mu        sync.Mutex
}

// NewRegistry creates a registry over the configured sites.
func NewRegistry(configs map[string]common.SiteConfig, logger arbor.ILogger) *Registry {
	return &Registry{
		configs:   configs,
		factories: make(map[string]DriverFactory),
		drivers:   make(map[string]interfaces.SiteDriver),
		logger:    logger,
	}
}

// RegisterClass registers a driver factory under a class name referenced
// by site configs.
func (r *Registry) RegisterClass(class string, factory DriverFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[class] = factory
}

// BindRuntime attaches the middleware callback surface. Must be called
// before the first Driver lookup.
func (r *Registry) BindRuntime(rt interfaces.Runtime) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rt = rt
}

// Config returns the descriptor for a configured site.
func (r *Registry) Config(name string) (common.SiteConfig, error) {
	cfg, ok := r.configs[name]
	if !ok {
		return common.SiteConfig{}, fmt.Errorf("unknown site: %s", name)
	}
	return cfg, nil
}

// IsRemote reports whether the named site is flagged remote.
func (r *Registry) IsRemote(name string) bool {
	cfg, ok := r.configs[name]
	return ok && cfg.Remote
}

// Driver returns the live in-process driver for a site, instantiating it
// on first use.
func (r *Registry) Driver(name string) (interfaces.SiteDriver, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if driver, ok := r.drivers[name]; ok {
		return driver, nil
	}

	cfg, ok := r.configs[name]
	if !ok {
		return nil, fmt.Errorf("unknown site: %s", name)
	}
	factory, ok := r.factories[cfg.Class]
	if !ok {
		return nil, fmt.Errorf("no driver class registered for site %s (class %s)", name, cfg.Class)
	}
	if r.rt == nil {
		return nil, fmt.Errorf("registry runtime not bound")
	}

	driver, err := factory(name, cfg, r.rt, r.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to instantiate driver for site %s: %w", name, err)
	}
	r.drivers[name] = driver
	return driver, nil
}
