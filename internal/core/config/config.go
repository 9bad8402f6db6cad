package config

import (
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const DefaultPath = "./weave.toml"

type Config struct {
	Version       int           `toml:"version"`
	Entries       []string      `toml:"entries"`
	Root          string        `toml:"root"`
	Compiler      Compiler      `toml:"compiler"`
	Output        Output        `toml:"output"`
	Remote        Remote        `toml:"remote"`
	Watch         Watch         `toml:"watch"`
	Exclude       Exclude       `toml:"exclude"`
	DB            Database      `toml:"db"`
	Observability Observability `toml:"observability"`

	// Options is the validated, typed form of Compiler. It is populated by
	// Load and Default and never read from TOML.
	Options CompilerOptions `toml:"-"`
}

type Compiler struct {
	Target         string `toml:"target"`
	Module         string `toml:"module"`
	Strategy       string `toml:"strategy"`
	Declaration    bool   `toml:"declaration"`
	SourceMap      bool   `toml:"source_map"`
	RemoveComments bool   `toml:"remove_comments"`
	NoImplicitAny  bool   `toml:"no_implicit_any"`
	OutFile        string `toml:"out_file"`
}

type Output struct {
	Dir        string `toml:"dir"`
	Reflection string `toml:"reflection"`
	SARIF      string `toml:"sarif"`
	Graph      string `toml:"graph"`
}

type Remote struct {
	Timeout   time.Duration `toml:"timeout"`
	Rate      float64       `toml:"rate"`
	Burst     int           `toml:"burst"`
	CacheSize int           `toml:"cache_size"`
}

type Watch struct {
	Debounce time.Duration `toml:"debounce"`
}

type Exclude struct {
	Dirs  []string `toml:"dirs"`
	Files []string `toml:"files"`
}

type Database struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

type Observability struct {
	MetricsAddr  string  `toml:"metrics_addr"`
	OTLPEndpoint string  `toml:"otlp_endpoint"`
	ServiceName  string  `toml:"service_name"`
	SampleRate   float64 `toml:"sample_rate"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(string(data))
}

// Parse decodes TOML text, applies defaults and validates the result.
func Parse(data string) (*Config, error) {
	var cfg Config
	if _, err := toml.Decode(data, &cfg); err != nil {
		return nil, err
	}
	if err := finalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a validated configuration for runs without a config file.
func Default() *Config {
	cfg := &Config{}
	if err := finalize(cfg); err != nil {
		// The zero configuration only contains defaults, which always validate.
		panic(err)
	}
	return cfg
}

func finalize(cfg *Config) error {
	applyDefaults(cfg)

	if err := validateVersion(cfg); err != nil {
		return err
	}
	opts, err := cfg.Compiler.Options()
	if err != nil {
		return err
	}
	cfg.Options = opts
	if err := validateRemote(cfg); err != nil {
		return err
	}
	if err := validateExclude(cfg); err != nil {
		return err
	}
	if err := validateDatabase(cfg); err != nil {
		return err
	}
	return validateObservability(cfg)
}

func applyDefaults(cfg *Config) {
	if cfg.Version == 0 {
		cfg.Version = 1
	}

	if strings.TrimSpace(cfg.Compiler.Target) == "" {
		cfg.Compiler.Target = "es5"
	}
	if strings.TrimSpace(cfg.Compiler.Module) == "" {
		cfg.Compiler.Module = "none"
	}
	if strings.TrimSpace(cfg.Compiler.Strategy) == "" {
		cfg.Compiler.Strategy = "per_unit"
	}
	if strings.TrimSpace(cfg.Compiler.OutFile) == "" {
		cfg.Compiler.OutFile = "bundle.js"
	}

	if strings.TrimSpace(cfg.Output.Dir) == "" {
		cfg.Output.Dir = "out"
	}

	if cfg.Remote.Timeout <= 0 {
		cfg.Remote.Timeout = 30 * time.Second
	}
	if cfg.Remote.Rate == 0 {
		cfg.Remote.Rate = 10
	}
	if cfg.Remote.Burst == 0 {
		cfg.Remote.Burst = 1
	}
	if cfg.Remote.CacheSize == 0 {
		cfg.Remote.CacheSize = 256
	}

	// Default debounce if not set.
	if cfg.Watch.Debounce == 0 {
		cfg.Watch.Debounce = 300 * time.Millisecond
	}
	if len(cfg.Exclude.Dirs) == 0 {
		cfg.Exclude.Dirs = []string{".git", "node_modules"}
	}

	if strings.TrimSpace(cfg.DB.Path) == "" {
		cfg.DB.Path = "data/weave.db"
	}

	if strings.TrimSpace(cfg.Observability.ServiceName) == "" {
		cfg.Observability.ServiceName = "weave"
	}
	if cfg.Observability.SampleRate == 0 {
		cfg.Observability.SampleRate = 1.0
	}
}
