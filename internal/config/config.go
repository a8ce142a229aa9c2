package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/tidwall/jsonc"
	"github.com/wagate/wagate/pkg/types"
)

// Load loads configuration from multiple sources (priority order):
// 1. Global config (~/.config/wagate/)
// 2. wagate.json / wagate.jsonc in the given directory
// 3. WAGATE_CONFIG file
// 4. WAGATE_CONFIG_CONTENT inline JSON
// 5. Environment variables
func Load(directory string) (*types.Config, error) {
	config := &types.Config{}

	// Track loaded files to avoid duplicates
	loaded := make(map[string]bool)

	loadOnce := func(path string, baseDir string) {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return
		}
		if loaded[absPath] {
			return
		}
		if loadConfigFile(path, config, baseDir) == nil {
			loaded[absPath] = true
		}
	}

	// 1. XDG global config (~/.config/wagate/)
	globalPath := GetPaths().Config
	loadOnce(filepath.Join(globalPath, "wagate.json"), globalPath)
	loadOnce(filepath.Join(globalPath, "wagate.jsonc"), globalPath)

	// 2. Directory config
	if directory != "" {
		loadOnce(filepath.Join(directory, "wagate.json"), directory)
		loadOnce(filepath.Join(directory, "wagate.jsonc"), directory)
	}

	// 3. WAGATE_CONFIG file override
	if configPath := os.Getenv("WAGATE_CONFIG"); configPath != "" {
		configDir := filepath.Dir(configPath)
		loadOnce(configPath, configDir)
	}

	// 4. WAGATE_CONFIG_CONTENT inline JSON
	if configContent := os.Getenv("WAGATE_CONFIG_CONTENT"); configContent != "" {
		var inlineConfig types.Config
		if err := json.Unmarshal([]byte(configContent), &inlineConfig); err == nil {
			mergeConfig(config, &inlineConfig)
		}
	}

	// 5. Environment variables (highest priority)
	applyEnvOverrides(config)

	return config, nil
}

// loadConfigFile loads a single config file with interpolation support.
func loadConfigFile(path string, config *types.Config, baseDir string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err // File doesn't exist, skip
	}

	// Strip JSONC comments using tidwall/jsonc
	data = jsonc.ToJSON(data)

	// Apply interpolation
	data = interpolate(data, baseDir)

	var fileConfig types.Config
	if err := json.Unmarshal(data, &fileConfig); err != nil {
		return err
	}

	mergeConfig(config, &fileConfig)
	return nil
}

// interpolate processes {env:VAR} and {file:path} placeholders.
func interpolate(data []byte, baseDir string) []byte {
	str := string(data)

	// Handle {env:VAR_NAME} placeholders
	envPattern := regexp.MustCompile(`\{env:([^}]+)\}`)
	str = envPattern.ReplaceAllStringFunc(str, func(match string) string {
		varName := envPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})

	// Handle {file:path} placeholders
	filePattern := regexp.MustCompile(`\{file:([^}]+)\}`)
	str = filePattern.ReplaceAllStringFunc(str, func(match string) string {
		filePath := filePattern.FindStringSubmatch(match)[1]

		// Resolve path
		if strings.HasPrefix(filePath, "~/") {
			home := os.Getenv("HOME")
			filePath = filepath.Join(home, filePath[2:])
		} else if !filepath.IsAbs(filePath) {
			filePath = filepath.Join(baseDir, filePath)
		}

		content, err := os.ReadFile(filePath)
		if err != nil {
			return match // Keep original if file not found
		}

		// Escape for JSON string
		escaped := strings.ReplaceAll(strings.TrimSpace(string(content)), "\\", "\\\\")
		escaped = strings.ReplaceAll(escaped, "\"", "\\\"")
		escaped = strings.ReplaceAll(escaped, "\n", "\\n")
		escaped = strings.ReplaceAll(escaped, "\r", "\\r")
		escaped = strings.ReplaceAll(escaped, "\t", "\\t")

		return escaped
	})

	return []byte(str)
}

// mergeConfig merges source config into target.
func mergeConfig(target, source *types.Config) {
	if source.Schema != "" {
		target.Schema = source.Schema
	}
	if source.DataDir != "" {
		target.DataDir = source.DataDir
	}
	if source.APIKey != "" {
		target.APIKey = source.APIKey
	}

	// Server
	if source.Server.Host != "" {
		target.Server.Host = source.Server.Host
	}
	if source.Server.Port != 0 {
		target.Server.Port = source.Server.Port
	}
	if source.Server.EnableCORS {
		target.Server.EnableCORS = true
	}
	if source.Server.ReadTimeout != 0 {
		target.Server.ReadTimeout = source.Server.ReadTimeout
	}
	if source.Server.WriteTimeout != 0 {
		target.Server.WriteTimeout = source.Server.WriteTimeout
	}

	// Log
	if source.Log.Level != "" {
		target.Log.Level = source.Log.Level
	}
	if source.Log.Pretty {
		target.Log.Pretty = true
	}

	// Database
	if source.Database.Path != "" {
		target.Database.Path = source.Database.Path
	}

	// Provider
	if source.Provider.Driver != "" {
		target.Provider.Driver = source.Provider.Driver
	}
	if source.Provider.Options != nil {
		if target.Provider.Options == nil {
			target.Provider.Options = make(map[string]string)
		}
		for k, v := range source.Provider.Options {
			target.Provider.Options[k] = v
		}
	}
}

// applyEnvOverrides applies environment variable overrides.
func applyEnvOverrides(config *types.Config) {
	if host := os.Getenv("WAGATE_HOST"); host != "" {
		config.Server.Host = host
	}
	if port := os.Getenv("WAGATE_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if dir := os.Getenv("WAGATE_DATA_DIR"); dir != "" {
		config.DataDir = dir
	}
	if path := os.Getenv("WAGATE_DB_PATH"); path != "" {
		config.Database.Path = path
	}
	if level := os.Getenv("WAGATE_LOG_LEVEL"); level != "" {
		config.Log.Level = level
	}
	if key := os.Getenv("WAGATE_API_KEY"); key != "" {
		config.APIKey = key
	}
	if driver := os.Getenv("WAGATE_PROVIDER"); driver != "" {
		config.Provider.Driver = driver
	}
}

// Finalize fills in defaults for anything the sources left unset.
func Finalize(config *types.Config) {
	paths := GetPaths()
	if config.DataDir == "" {
		config.DataDir = paths.Data
	}
	if config.Database.Path == "" {
		config.Database.Path = filepath.Join(config.DataDir, "wagate.db")
	}
	if config.Server.Host == "" {
		config.Server.Host = "127.0.0.1"
	}
	if config.Server.Port == 0 {
		config.Server.Port = 8320
	}
	if config.Log.Level == "" {
		config.Log.Level = "info"
	}
	if config.Provider.Driver == "" {
		config.Provider.Driver = "sim"
	}
}

// Save saves the configuration to a file.
func Save(config *types.Config, path string) error {
	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// GetConfigDir returns the config directory to use.
// Prefers WAGATE_CONFIG_DIR, then ~/.config/wagate.
func GetConfigDir() string {
	if dir := os.Getenv("WAGATE_CONFIG_DIR"); dir != "" {
		return dir
	}
	return GetPaths().Config
}
