package config

import "time"

// Config is the full application configuration, threaded explicitly from the
// CLI down through driver, pool and handshake engine.
type Config struct {
	Log    LogConfig    `koanf:"log"`
	Scan   ScanConfig   `koanf:"scan"`
	Whois  WhoisConfig  `koanf:"whois"`
	Output OutputConfig `koanf:"output"`
}

// LogConfig controls global logging.
type LogConfig struct {
	Level string `koanf:"level"`
}

// ScanConfig controls the probe run.
type ScanConfig struct {
	Port    int    `koanf:"port" validate:"min=1,max=65535"`
	KeyAlgo string `koanf:"key_algo" validate:"oneof=ecdsa ed25519 rsa"`

	// ExecKeyScan delegates key retrieval to the external tool; the scanner
	// itself only port-scans.
	ExecKeyScan bool `koanf:"exec_ks"`

	// ConnTimeout is the per-connection wall-clock budget. Filled from the
	// raw config value so both "8s" and plain seconds work.
	ConnTimeout time.Duration `koanf:"-" validate:"min=0"`

	// MaxSockets caps the concurrency ceiling; 0 keeps the descriptor-budget
	// default.
	MaxSockets int `koanf:"max_sockets" validate:"min=0"`

	// MinPrefixLen rejects CIDR blocks shorter than this prefix.
	MinPrefixLen int `koanf:"min_prefix_len" validate:"min=0,max=32"`
}

// WhoisConfig controls the routing-registry lookup.
type WhoisConfig struct {
	Server  string        `koanf:"server"`
	Timeout time.Duration `koanf:"-" validate:"min=0"`
}

// OutputConfig controls result presentation.
type OutputConfig struct {
	Format   string `koanf:"format" validate:"oneof=text json yaml"`
	Progress bool   `koanf:"progress"`
}
