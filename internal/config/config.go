// Package config loads bridge settings from defaults, an optional YAML file,
// BLSBRIDGE_* environment variables and command-line flags, in increasing
// order of precedence.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// EnvPrefix prefixes every environment override, e.g. BLSBRIDGE_WASM_DEBUG.
const EnvPrefix = "BLSBRIDGE"

// Backend names.
const (
	BackendNative = "native"
	BackendWasm   = "wasm"
)

type Config struct {
	Backend  string       `mapstructure:"backend"`
	LogLevel string       `mapstructure:"log_level"`
	Native   NativeConfig `mapstructure:"native"`
	Wasm     WasmConfig   `mapstructure:"wasm"`
}

// NativeConfig locates the shared library.
type NativeConfig struct {
	// Directory holding the cargo build output.
	LibDir string `mapstructure:"lib_dir"`
	// Library name without platform prefix or extension.
	LibName string `mapstructure:"lib_name"`
	// Symbol manifest override. Empty means the embedded manifest.
	SymbolsFile string `mapstructure:"symbols_file"`
}

// WasmConfig holds Wasm runtime configuration.
type WasmConfig struct {
	ModulePath string `mapstructure:"module_path"`
	// Memory limit per module (in pages, 64KB each).
	MemoryPages uint32 `mapstructure:"memory_pages"`
	// Compilation cache directory.
	CacheDir string `mapstructure:"cache_dir"`
	// Keep debug info for trap stack traces.
	Debug bool `mapstructure:"debug"`
}

// flagKeys maps command-line flags onto configuration keys.
var flagKeys = map[string]string{
	"backend":           "backend",
	"log-level":         "log_level",
	"lib-dir":           "native.lib_dir",
	"lib-name":          "native.lib_name",
	"symbols-file":      "native.symbols_file",
	"wasm-module":       "wasm.module_path",
	"wasm-memory-pages": "wasm.memory_pages",
	"wasm-cache-dir":    "wasm.cache_dir",
	"wasm-debug":        "wasm.debug",
}

// SetDefaults registers the default of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("backend", BackendNative)
	v.SetDefault("log_level", "info")

	v.SetDefault("native.lib_dir", "./target/release")
	v.SetDefault("native.lib_name", "blst_deno")
	v.SetDefault("native.symbols_file", "")

	v.SetDefault("wasm.module_path", "./lib/blst_deno_bg.wasm")
	v.SetDefault("wasm.memory_pages", 256) // 16MB
	v.SetDefault("wasm.cache_dir", "")
	v.SetDefault("wasm.debug", false)
}

// Flags returns a flag set covering every key. Unset flags do not override
// other sources.
func Flags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("blsbridge", pflag.ContinueOnError)
	fs.String("config", "", "Path to configuration file")
	fs.String("backend", BackendNative, "Backend to use (native, wasm)")
	fs.String("log-level", "info", "Log level (debug, info, warn, error)")
	fs.String("lib-dir", "./target/release", "Directory containing the native library")
	fs.String("lib-name", "blst_deno", "Native library name")
	fs.String("symbols-file", "", "Symbol manifest override")
	fs.String("wasm-module", "./lib/blst_deno_bg.wasm", "Path to the Wasm module")
	fs.Uint32("wasm-memory-pages", 256, "Wasm memory limit in 64KiB pages")
	fs.String("wasm-cache-dir", "", "Directory for the Wasm compilation cache")
	fs.Bool("wasm-debug", false, "Keep Wasm debug info")
	return fs
}

// Load builds the configuration. fs is where configPath is read from; flags
// may be nil.
func Load(fs afero.Fs, configPath string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	v.SetFs(fs)

	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", configPath, err)
		}
	}

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects settings no backend can run with.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendNative, BackendWasm:
	default:
		return fmt.Errorf("unknown backend %q (want %s or %s)", c.Backend, BackendNative, BackendWasm)
	}

	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log_level: %w", err)
	}

	if c.Wasm.MemoryPages == 0 || c.Wasm.MemoryPages > 65536 {
		return fmt.Errorf("wasm.memory_pages must be in [1, 65536], got %d", c.Wasm.MemoryPages)
	}

	if c.Backend == BackendWasm && c.Wasm.ModulePath == "" {
		return fmt.Errorf("wasm.module_path is required for the wasm backend")
	}

	return nil
}

// NewLogger builds the process logger for the configured level.
func (c *Config) NewLogger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, err
	}

	if level == zapcore.DebugLevel {
		return zap.NewDevelopment()
	}

	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}
