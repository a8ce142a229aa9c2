// Package config provides configuration loading, merging, and path management
// for wagate.
//
// # Configuration Loading
//
// The Load function searches for and merges configuration from multiple
// sources in priority order:
//
//  1. Global config (~/.config/wagate/wagate.json or wagate.jsonc)
//  2. wagate.json / wagate.jsonc in the working directory
//  3. WAGATE_CONFIG file
//  4. WAGATE_CONFIG_CONTENT inline JSON
//  5. Environment variables (WAGATE_HOST, WAGATE_PORT, WAGATE_DATA_DIR,
//     WAGATE_DB_PATH, WAGATE_LOG_LEVEL, WAGATE_API_KEY, WAGATE_PROVIDER)
//
// More specific sources override more general ones; environment variables
// have the highest precedence. Finalize fills in defaults for anything the
// sources left unset, including the XDG data directory and the SQLite path.
//
// # Supported Formats
//
// Both JSON and JSONC (JSON with Comments) are accepted; JSONC files are
// processed using tidwall/jsonc.
//
// # Variable Interpolation
//
// Configuration files support two placeholder forms:
//   - {env:VAR_NAME} - expands to the environment variable value
//   - {file:path} - expands to file contents (escaped for JSON)
//
// File paths support absolute paths, paths relative to the config file
// directory, and ~/ home expansion. Example:
//
//	{
//	  "apiKey": "{file:~/.wagate-token}",
//	  "provider": {
//	    "driver": "sim",
//	    "options": {
//	      "pairDelayMs": "{env:WAGATE_SIM_PAIR_DELAY}"
//	    }
//	  }
//	}
//
// # Path Management
//
// The package provides XDG Base Directory Specification compliant path
// management through the Paths type:
//   - Data: ~/.local/share/wagate (XDG_DATA_HOME)
//   - Config: ~/.config/wagate (XDG_CONFIG_HOME)
//   - State: ~/.local/state/wagate (XDG_STATE_HOME)
//
// On Windows, these paths are adapted to use APPDATA as appropriate.
//
// # Usage Example
//
//	cfg, err := config.Load(".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	config.Finalize(cfg)
//
//	paths := config.GetPaths()
//	if err := paths.EnsurePaths(); err != nil {
//	    log.Fatal(err)
//	}
package config
