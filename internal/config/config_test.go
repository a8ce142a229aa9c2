package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolateEnv points HOME and XDG_CONFIG_HOME at temp dirs so tests never
// pick up a real user config.
func isolateEnv(t *testing.T) string {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "wagate-test-*")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(tmpDir) })

	oldHome := os.Getenv("HOME")
	oldXDG := os.Getenv("XDG_CONFIG_HOME")
	os.Setenv("HOME", tmpDir)
	os.Setenv("XDG_CONFIG_HOME", filepath.Join(tmpDir, "xdg"))
	t.Cleanup(func() {
		os.Setenv("HOME", oldHome)
		if oldXDG == "" {
			os.Unsetenv("XDG_CONFIG_HOME")
		} else {
			os.Setenv("XDG_CONFIG_HOME", oldXDG)
		}
	})

	return tmpDir
}

func TestLoadDirectoryConfig(t *testing.T) {
	tmpDir := isolateEnv(t)

	cfgJSON := `{
		"server": {
			"host": "0.0.0.0",
			"port": 9001,
			"cors": true
		},
		"log": {
			"level": "debug",
			"pretty": true
		},
		"provider": {
			"driver": "sim",
			"options": {
				"pairDelayMs": "50"
			}
		},
		"apiKey": "secret-token"
	}`

	configPath := filepath.Join(tmpDir, "wagate.json")
	require.NoError(t, os.WriteFile(configPath, []byte(cfgJSON), 0644))

	cfg, err := Load(tmpDir)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 9001, cfg.Server.Port)
	assert.True(t, cfg.Server.EnableCORS)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, cfg.Log.Pretty)
	assert.Equal(t, "sim", cfg.Provider.Driver)
	assert.Equal(t, "50", cfg.Provider.Options["pairDelayMs"])
	assert.Equal(t, "secret-token", cfg.APIKey)
}

func TestJSONCComments(t *testing.T) {
	tmpDir := isolateEnv(t)

	jsoncConfig := `{
		// This is a single-line comment
		"server": {
			"port": 9002
		},
		/* This is a
		   multi-line comment */
		"log": {
			"level": "warn" // inline comment
		}
	}`

	configPath := filepath.Join(tmpDir, "wagate.jsonc")
	require.NoError(t, os.WriteFile(configPath, []byte(jsoncConfig), 0644))

	cfg, err := Load(tmpDir)
	require.NoError(t, err)

	assert.Equal(t, 9002, cfg.Server.Port)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestEnvInterpolation(t *testing.T) {
	os.Setenv("TEST_WAGATE_KEY", "interpolated-key")
	defer os.Unsetenv("TEST_WAGATE_KEY")

	tmpDir := isolateEnv(t)

	cfgJSON := `{
		"apiKey": "{env:TEST_WAGATE_KEY}"
	}`

	configPath := filepath.Join(tmpDir, "wagate.json")
	require.NoError(t, os.WriteFile(configPath, []byte(cfgJSON), 0644))

	cfg, err := Load(tmpDir)
	require.NoError(t, err)

	assert.Equal(t, "interpolated-key", cfg.APIKey)
}

func TestFileInterpolation(t *testing.T) {
	tmpDir := isolateEnv(t)

	// Create a token file to include
	tokenFile := filepath.Join(tmpDir, "token.txt")
	require.NoError(t, os.WriteFile(tokenFile, []byte("file-token\n"), 0644))

	// Relative path resolves against the config file directory
	cfgJSON := `{
		"apiKey": "{file:token.txt}"
	}`

	configPath := filepath.Join(tmpDir, "wagate.json")
	require.NoError(t, os.WriteFile(configPath, []byte(cfgJSON), 0644))

	cfg, err := Load(tmpDir)
	require.NoError(t, err)

	assert.Equal(t, "file-token", cfg.APIKey)
}

func TestConfigMerge(t *testing.T) {
	tmpDir := isolateEnv(t)

	// Global config (~/.config/wagate in the isolated XDG home)
	globalConfig := `{
		"server": {
			"host": "0.0.0.0",
			"port": 9000
		},
		"provider": {
			"driver": "sim",
			"options": {
				"pairDelayMs": "50"
			}
		}
	}`

	globalDir := filepath.Join(tmpDir, "xdg", "wagate")
	require.NoError(t, os.MkdirAll(globalDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(globalDir, "wagate.json"), []byte(globalConfig), 0644))

	// Directory config (should override)
	dirConfig := `{
		"server": {
			"port": 9100
		},
		"provider": {
			"options": {
				"echo": "true"
			}
		}
	}`

	workDir, err := os.MkdirTemp("", "wagate-work-*")
	require.NoError(t, err)
	defer os.RemoveAll(workDir)
	require.NoError(t, os.WriteFile(filepath.Join(workDir, "wagate.json"), []byte(dirConfig), 0644))

	cfg, err := Load(workDir)
	require.NoError(t, err)

	// Directory port should override global
	assert.Equal(t, 9100, cfg.Server.Port)

	// Global host should be preserved
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)

	// Provider options should be merged
	assert.Equal(t, "50", cfg.Provider.Options["pairDelayMs"])
	assert.Equal(t, "true", cfg.Provider.Options["echo"])
}

func TestEnvVarOverride(t *testing.T) {
	os.Setenv("WAGATE_PORT", "9999")
	os.Setenv("WAGATE_LOG_LEVEL", "error")
	defer func() {
		os.Unsetenv("WAGATE_PORT")
		os.Unsetenv("WAGATE_LOG_LEVEL")
	}()

	tmpDir := isolateEnv(t)

	cfgJSON := `{
		"server": {
			"port": 9001
		},
		"log": {
			"level": "debug"
		}
	}`

	configPath := filepath.Join(tmpDir, "wagate.json")
	require.NoError(t, os.WriteFile(configPath, []byte(cfgJSON), 0644))

	cfg, err := Load(tmpDir)
	require.NoError(t, err)

	// Environment variables should override file config
	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, "error", cfg.Log.Level)
}

func TestInlineConfigContent(t *testing.T) {
	tmpDir := isolateEnv(t)

	os.Setenv("WAGATE_CONFIG_CONTENT", `{"server":{"port":9555},"provider":{"driver":"sim"}}`)
	defer os.Unsetenv("WAGATE_CONFIG_CONTENT")

	cfg, err := Load(tmpDir)
	require.NoError(t, err)

	assert.Equal(t, 9555, cfg.Server.Port)
	assert.Equal(t, "sim", cfg.Provider.Driver)
}

func TestConfigFileOverride(t *testing.T) {
	tmpDir := isolateEnv(t)

	customConfig := `{
		"server": {
			"port": 9777
		}
	}`

	customPath := filepath.Join(tmpDir, "custom.json")
	require.NoError(t, os.WriteFile(customPath, []byte(customConfig), 0644))

	os.Setenv("WAGATE_CONFIG", customPath)
	defer os.Unsetenv("WAGATE_CONFIG")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 9777, cfg.Server.Port)
}

func TestFinalizeDefaults(t *testing.T) {
	tmpDir := isolateEnv(t)
	_ = tmpDir

	cfg, err := Load("")
	require.NoError(t, err)

	Finalize(cfg)

	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 8320, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "sim", cfg.Provider.Driver)
	assert.NotEmpty(t, cfg.DataDir)
	assert.Equal(t, filepath.Join(cfg.DataDir, "wagate.db"), cfg.Database.Path)
}

func TestSaveAndReload(t *testing.T) {
	tmpDir := isolateEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)
	cfg.Server.Port = 9888
	cfg.APIKey = "saved-token"

	savePath := filepath.Join(tmpDir, "saved", "wagate.json")
	require.NoError(t, Save(cfg, savePath))

	os.Setenv("WAGATE_CONFIG", savePath)
	defer os.Unsetenv("WAGATE_CONFIG")

	reloaded, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 9888, reloaded.Server.Port)
	assert.Equal(t, "saved-token", reloaded.APIKey)
}
