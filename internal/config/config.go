package config

import (
	"fmt"
	"log"
	"os"
	"regexp"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration for tcplb.
type Config struct {
	Listen ListenConfig `yaml:"listen"`
	Pool   PoolConfig   `yaml:"pool"`
	Admin  AdminConfig  `yaml:"admin"`
	Roster RosterConfig `yaml:"roster"`
}

// ListenConfig defines the ports tcplb listens on.
type ListenConfig struct {
	Port    int `yaml:"port"`
	APIPort int `yaml:"api_port"`
}

// PoolConfig defines the defaults applied to every backend in the roster.
type PoolConfig struct {
	MaxConnections int           `yaml:"max_connections"`
	DialTimeout    time.Duration `yaml:"dial_timeout"`
	PollTimeout    time.Duration `yaml:"poll_timeout"`
	DebugPoll      bool          `yaml:"debug_poll"`
}

// AdminConfig configures the admin REST API's authentication.
type AdminConfig struct {
	TokenHash string `yaml:"token_hash"`
	Salt      string `yaml:"salt"`
}

// RosterConfig locates the backend roster file.
type RosterConfig struct {
	Path string `yaml:"path"`
}

// EffectivePollTimeout returns the poll timeout to hand to the readiness
// multiplexer, switching to the debug value when DebugPoll is set — this
// mirrors the original program's compile-time DEBUG_POLL_TIMEOUT_IN_MS
// switch as a runtime config flag instead.
func (p PoolConfig) EffectivePollTimeout() time.Duration {
	if p.DebugPoll {
		return 10000 * time.Millisecond
	}
	if p.PollTimeout > 0 {
		return p.PollTimeout
	}
	return 100 * time.Millisecond
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// substituteEnvVars replaces ${VAR_NAME} patterns with environment variable values.
func substituteEnvVars(data []byte) []byte {
	return envVarPattern.ReplaceAllFunc(data, func(match []byte) []byte {
		varName := envVarPattern.FindSubmatch(match)[1]
		if val, ok := os.LookupEnv(string(varName)); ok {
			return []byte(val)
		}
		return match
	})
}

// Load reads and parses a YAML config file with env var substitution.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	data = substituteEnvVars(data)

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyDefaults(cfg)
	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Listen.Port == 0 {
		cfg.Listen.Port = 1800
	}
	if cfg.Listen.APIPort == 0 {
		cfg.Listen.APIPort = 8080
	}
	if cfg.Pool.MaxConnections == 0 {
		cfg.Pool.MaxConnections = 1000
	}
	if cfg.Pool.DialTimeout == 0 {
		cfg.Pool.DialTimeout = 5 * time.Second
	}
	if cfg.Roster.Path == "" {
		cfg.Roster.Path = "./servers_metadata.txt"
	}
}

func validate(cfg *Config) error {
	if cfg.Listen.Port <= 0 || cfg.Listen.Port > 65535 {
		return fmt.Errorf("listen.port out of range: %d", cfg.Listen.Port)
	}
	if cfg.Pool.MaxConnections <= 0 {
		return fmt.Errorf("pool.max_connections must be positive")
	}
	return nil
}

// Watcher watches the app config file for changes and calls the callback
// with the reloaded config. It never re-reads the roster — dynamic backend
// membership at runtime is out of scope, so only non-roster settings
// (pool defaults, admin auth) are hot-reloadable.
type Watcher struct {
	path     string
	callback func(*Config)
	watcher  *fsnotify.Watcher
	mu       sync.Mutex
	stopCh   chan struct{}
}

// NewWatcher creates a new config file watcher.
func NewWatcher(path string, callback func(*Config)) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating file watcher: %w", err)
	}

	if err := w.Add(path); err != nil {
		w.Close()
		return nil, fmt.Errorf("watching config file: %w", err)
	}

	cw := &Watcher{
		path:     path,
		callback: callback,
		watcher:  w,
		stopCh:   make(chan struct{}),
	}

	go cw.run()
	return cw, nil
}

func (cw *Watcher) run() {
	var debounce *time.Timer
	for {
		select {
		case event, ok := <-cw.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				if debounce != nil {
					debounce.Stop()
				}
				debounce = time.AfterFunc(500*time.Millisecond, func() {
					cw.reload()
				})
			}
		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("[config] watcher error: %v", err)
		case <-cw.stopCh:
			return
		}
	}
}

func (cw *Watcher) reload() {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	cfg, err := Load(cw.path)
	if err != nil {
		log.Printf("[config] hot-reload failed: %v", err)
		return
	}

	log.Printf("[config] configuration reloaded from %s", cw.path)
	cw.callback(cfg)
}

// Stop stops the config watcher.
func (cw *Watcher) Stop() error {
	close(cw.stopCh)
	return cw.watcher.Close()
}
