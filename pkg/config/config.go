// Package config loads and validates the application configuration from
// hardcoded defaults, an optional YAML file and command-line flags, in
// ascending precedence.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/cast"
	"github.com/spf13/pflag"
)

// Manager handles loading and accessing the application configuration.
type Manager struct {
	k       *koanf.Koanf
	current Config
}

// NewManager returns an empty configuration manager.
func NewManager() *Manager {
	return &Manager{k: koanf.New(".")}
}

// DefaultConfig returns the hardcoded baseline configuration.
func DefaultConfig() Config {
	return Config{
		Log: LogConfig{Level: "info"},
		Scan: ScanConfig{
			Port:         22,
			KeyAlgo:      "ecdsa",
			ConnTimeout:  8 * time.Second,
			MinPrefixLen: 8,
		},
		Whois: WhoisConfig{
			Server:  "whois.radb.net:43",
			Timeout: 20 * time.Second,
		},
		Output: OutputConfig{
			Format:   "text",
			Progress: true,
		},
	}
}

// defaultConfigAsMap feeds the defaults to koanf's confmap provider so every
// key exists before file and flag overrides merge in.
func defaultConfigAsMap() map[string]interface{} {
	def := DefaultConfig()
	return map[string]interface{}{
		"log.level":           def.Log.Level,
		"scan.port":           def.Scan.Port,
		"scan.key_algo":       def.Scan.KeyAlgo,
		"scan.exec_ks":        def.Scan.ExecKeyScan,
		"scan.conn_timeout":   def.Scan.ConnTimeout.String(),
		"scan.max_sockets":    def.Scan.MaxSockets,
		"scan.min_prefix_len": def.Scan.MinPrefixLen,
		"whois.server":        def.Whois.Server,
		"whois.timeout":       def.Whois.Timeout.String(),
		"output.format":       def.Output.Format,
		"output.progress":     def.Output.Progress,
	}
}

// flagKeys maps command-line flag names onto configuration keys.
var flagKeys = map[string]string{
	"port":         "scan.port",
	"key-algo":     "scan.key_algo",
	"exec-ks":      "scan.exec_ks",
	"timeout":      "scan.conn_timeout",
	"max-sockets":  "scan.max_sockets",
	"min-prefix":   "scan.min_prefix_len",
	"whois-server": "whois.server",
	"output":       "output.format",
	"progress":     "output.progress",
	"log-level":    "log.level",
}

// Load merges defaults, the optional YAML config file, and command-line flags
// (highest precedence), then validates the result.
func (m *Manager) Load(flags *pflag.FlagSet, configFile string) error {
	if err := m.k.Load(confmap.Provider(defaultConfigAsMap(), "."), nil); err != nil {
		return fmt.Errorf("loading defaults: %w", err)
	}

	if configFile != "" {
		if err := m.k.Load(file.Provider(configFile), yaml.Parser()); err != nil {
			return fmt.Errorf("loading config file %q: %w", configFile, err)
		}
	}

	if flags != nil {
		provider := posflag.ProviderWithFlag(flags, ".", m.k, func(f *pflag.Flag) (string, interface{}) {
			key, ok := flagKeys[f.Name]
			if !ok {
				return "", nil // flag not bound to configuration
			}
			return key, posflag.FlagVal(flags, f)
		})
		if err := m.k.Load(provider, nil); err != nil {
			return fmt.Errorf("loading command-line flags: %w", err)
		}
	}

	var cfg Config
	if err := m.k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return fmt.Errorf("unmarshaling config: %w", err)
	}

	// Durations may arrive as "8s" strings from YAML or as typed values from
	// flags; coerce them off the raw tree.
	var err error
	if cfg.Scan.ConnTimeout, err = cast.ToDurationE(m.k.Get("scan.conn_timeout")); err != nil {
		return fmt.Errorf("invalid scan.conn_timeout: %w", err)
	}
	if cfg.Whois.Timeout, err = cast.ToDurationE(m.k.Get("whois.timeout")); err != nil {
		return fmt.Errorf("invalid whois.timeout: %w", err)
	}
	cfg.Log.Level = strings.ToLower(cfg.Log.Level)

	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	m.current = cfg
	return nil
}

// Get returns a copy of the current configuration.
func (m *Manager) Get() Config {
	return m.current
}
