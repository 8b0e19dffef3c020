package runtime

import (
	"github.com/caarlos0/env/v11"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-bridge/errors"
	"github.com/wippyai/wasm-bridge/resolve"
)

// EnvPrefix prefixes every configuration variable.
const EnvPrefix = "BRIDGE_"

// Config is the runtime configuration.
type Config struct {
	// Mode selects the type universe consulted for logical names.
	Mode resolve.Mode `env:"MODE" envDefault:"module"`
	// Module is loaded by the CLI when no path is given.
	Module string `env:"MODULE"`

	CodecMaxDepth    int  `env:"CODEC_MAX_DEPTH" envDefault:"100"`
	CodecSkipUnknown bool `env:"CODEC_SKIP_UNKNOWN"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	// MemoryLimitPages caps wasm linear memory in 64KB pages.
	MemoryLimitPages uint32 `env:"MEMORY_LIMIT_PAGES"`
	// SavePath is the SQLite file behind Store. Empty disables it.
	SavePath string `env:"SAVE_PATH"`
	// Release drops per-field diagnostics and logs in production format.
	Release bool `env:"RELEASE"`
}

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() Config {
	return Config{
		Mode:          resolve.ModeModule,
		CodecMaxDepth: 100,
		LogLevel:      "info",
	}
}

// LoadConfig reads the configuration from the process environment.
func LoadConfig() (Config, error) {
	return loadConfig(env.Options{Prefix: EnvPrefix})
}

// LoadConfigFrom reads the configuration from environ instead of the process
// environment. Keys carry the BRIDGE_ prefix.
func LoadConfigFrom(environ map[string]string) (Config, error) {
	return loadConfig(env.Options{Prefix: EnvPrefix, Environment: environ})
}

func loadConfig(opts env.Options) (Config, error) {
	cfg, err := env.ParseAsWithOptions[Config](opts)
	if err != nil {
		return Config{}, errors.Wrap(errors.PhaseLoad, errors.KindInvalidInput, err, "parse env")
	}
	return cfg, nil
}

// NewLogger builds the logger described by cfg.
func NewLogger(cfg Config) (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(cfg.LogLevel)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseLoad, errors.KindInvalidInput, err, "log level")
	}
	zc := zap.NewDevelopmentConfig()
	if cfg.Release {
		zc = zap.NewProductionConfig()
	}
	zc.Level = level
	return zc.Build()
}
