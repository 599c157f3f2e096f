package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// loggerKey is used to store the logger in context.
type loggerKey struct{}

// maxUpwardSearchLevels limits how far up the directory tree to search for
// config files.
const maxUpwardSearchLevels = 10

// Package-level koanf instance and config file tracking
var (
	k              = koanf.New(".")
	configFileUsed string
	currentConfig  *Config
)

// configExistsIn checks if a pitctl config file exists in the directory.
func configExistsIn(dir string) string {
	for _, name := range []string{"pitctl.yaml", "pitctl.yml"} {
		candidate := filepath.Join(dir, name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}

// findProjectRootUpward searches upward from startDir for a pitctl config
// file. Returns empty string if not found within maxUpwardSearchLevels.
func findProjectRootUpward(startDir string) string {
	dir := startDir
	for i := 0; i < maxUpwardSearchLevels; i++ {
		if configExistsIn(dir) != "" {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}

// ResetConfig resets the koanf instance. Used for testing.
func ResetConfig() {
	k = koanf.New(".")
	configFileUsed = ""
	currentConfig = nil
}

// LoadConfig loads configuration from file, environment variables, and
// flags. Precedence (highest to lowest): flags > env vars > config file >
// defaults.
func LoadConfig(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k = koanf.New(".")

	// Determine the project root: the explicit config file's directory,
	// or the nearest directory up from CWD holding a pitctl.yaml, or CWD.
	projectRoot := ""
	if cfgFile != "" {
		if abs, err := filepath.Abs(cfgFile); err == nil {
			projectRoot = filepath.Dir(abs)
		}
	}
	if projectRoot == "" {
		if cwd, err := os.Getwd(); err == nil {
			projectRoot = findProjectRootUpward(cwd)
			if projectRoot == "" {
				projectRoot = cwd
			}
		} else {
			projectRoot = "."
		}
	}

	// Paths passed as flags are relative to CWD, not the project root.
	var flagImageFolder, flagOutputPath, flagMarkerFile, flagStatePath string
	if flags != nil {
		abs := func(name string) string {
			if !flags.Changed(name) {
				return ""
			}
			v, _ := flags.GetString(name)
			if v == "" {
				return ""
			}
			a, err := filepath.Abs(v)
			if err != nil {
				return v
			}
			return a
		}
		flagImageFolder = abs("image-folder")
		flagOutputPath = abs("output-path")
		flagMarkerFile = abs("marker-file")
		flagStatePath = abs("state")
	}

	// 1. Load defaults
	if err := k.Load(confmap.Provider(map[string]interface{}{
		"image_type":          DefaultImageType,
		"quality":             DefaultQuality,
		"state_path":          DefaultStateFile,
		"environment":         DefaultEnv,
		"verbose":             false,
		"output":              DefaultOutput,
		"metashape.offscreen": true,
		"tiles.port":          DefaultTilesPort,
		"tiles.cors":          true,
	}, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Find and load config file
	if cfgFile == "" {
		cfgFile = configExistsIn(projectRoot)
	}
	configFileUsed = cfgFile
	if configFileUsed != "" {
		if err := k.Load(file.Provider(configFileUsed), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", configFileUsed, err)
		}
	}

	// 3. Load environment variables (PITCTL_ prefix)
	// Transform: PITCTL_MARKER_FILE -> marker_file
	if err := k.Load(env.Provider("PITCTL_", ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, "PITCTL_"))
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Load flags (highest priority)
	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			if !f.Changed {
				return "", nil
			}
			// Transform kebab-case to snake_case for config keys
			key := strings.ReplaceAll(f.Name, "-", "_")

			// The CLI uses --state and --env for brevity
			switch key {
			case "state":
				key = "state_path"
			case "env":
				key = "environment"
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	// 5. Unmarshal into Config struct
	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	cfg.ProjectRoot = projectRoot

	// 6. Apply environment-specific overrides
	if cfg.Environment != "" && cfg.Environments != nil {
		if envCfg, ok := cfg.Environments[cfg.Environment]; ok {
			if envCfg.ImageFolder != "" {
				cfg.ImageFolder = envCfg.ImageFolder
			}
			if envCfg.OutputPath != "" {
				cfg.OutputPath = envCfg.OutputPath
			}
			if envCfg.StatePath != "" {
				cfg.StatePath = envCfg.StatePath
			}
			if envCfg.Batch != nil {
				cfg.Batch = mergeBatchConfig(cfg.Batch, envCfg.Batch)
			}
			if envCfg.Archive != nil {
				cfg.Archive = envCfg.Archive
			}
		}
	}

	// 7. Resolve relative paths. Flag-provided paths were already made
	// absolute against CWD; everything else resolves against the project
	// root.
	resolve := func(flagVal, cfgVal string) string {
		if flagVal != "" {
			return flagVal
		}
		if cfgVal == "" || filepath.IsAbs(cfgVal) {
			return cfgVal
		}
		return filepath.Join(projectRoot, cfgVal)
	}
	cfg.ImageFolder = resolve(flagImageFolder, cfg.ImageFolder)
	cfg.OutputPath = resolve(flagOutputPath, cfg.OutputPath)
	cfg.MarkerFile = resolve(flagMarkerFile, cfg.MarkerFile)
	cfg.StatePath = resolve(flagStatePath, cfg.StatePath)

	// 8. Expand ${VAR} references in archive settings so bucket URLs can
	// carry credentials-bearing parameters without living in the file.
	if cfg.Archive != nil {
		cfg.Archive.Bucket = expandEnvVars(cfg.Archive.Bucket)
		cfg.Archive.Prefix = expandEnvVars(cfg.Archive.Prefix)
	}

	currentConfig = &cfg
	return &cfg, nil
}

// mergeBatchConfig merges two batch configs, with override taking
// precedence.
func mergeBatchConfig(base, override *BatchConfig) *BatchConfig {
	if base == nil {
		return override
	}
	if override == nil {
		return base
	}
	merged := *base
	if override.Account != "" {
		merged.Account = override.Account
	}
	if override.Partition != "" {
		merged.Partition = override.Partition
	}
	if override.TimeLimit != "" {
		merged.TimeLimit = override.TimeLimit
	}
	if override.NTasks != 0 {
		merged.NTasks = override.NTasks
	}
	if override.Memory != "" {
		merged.Memory = override.Memory
	}
	if override.NodeList != "" {
		merged.NodeList = override.NodeList
	}
	if override.GPUs != 0 {
		merged.GPUs = override.GPUs
	}
	if override.Runtime != "" {
		merged.Runtime = override.Runtime
	}
	if override.Container != "" {
		merged.Container = override.Container
	}
	if override.LogFile != "" {
		merged.LogFile = override.LogFile
	}
	return &merged
}

// GetConfigFileUsed returns the path to the config file being used, if any.
func GetConfigFileUsed() string {
	return configFileUsed
}

// GetCurrentConfig returns the currently loaded configuration.
func GetCurrentConfig() *Config {
	return currentConfig
}

// LoggerKey returns the context key used for storing the logger. This
// allows the commands package to retrieve the logger from context without
// creating an import cycle with the cli package.
func LoggerKey() interface{} {
	return loggerKey{}
}

// GetLogger retrieves the logger from the command context.
func GetLogger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return l
	}
	return slog.New(slog.DiscardHandler)
}

// expandEnvVars expands ${VAR} patterns with environment variable values.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)
	return re.ReplaceAllStringFunc(s, func(match string) string {
		if val := os.Getenv(match[2 : len(match)-1]); val != "" {
			return val
		}
		return match
	})
}
