package types

// Config represents the wagate configuration.
type Config struct {
	// Schema reference (for editor support)
	Schema string `json:"$schema,omitempty"`

	Server   ServerConfig          `json:"server,omitempty"`
	Log      LogConfig             `json:"log,omitempty"`
	Database DatabaseConfig        `json:"database,omitempty"`
	Provider SessionProviderConfig `json:"provider,omitempty"`

	// Root directory for provider state and the default database location.
	DataDir string `json:"dataDir,omitempty"`

	// Static bearer token for the admin API; empty disables auth.
	APIKey string `json:"apiKey,omitempty"`
}

// ServerConfig holds the admin HTTP API settings.
type ServerConfig struct {
	Host         string `json:"host,omitempty"`
	Port         int    `json:"port,omitempty"`
	EnableCORS   bool   `json:"cors,omitempty"`
	ReadTimeout  int    `json:"readTimeout,omitempty"`  // seconds
	WriteTimeout int    `json:"writeTimeout,omitempty"` // seconds
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `json:"level,omitempty"` // "debug"|"info"|"warn"|"error"
	Pretty bool   `json:"pretty,omitempty"`
}

// DatabaseConfig holds session store settings.
type DatabaseConfig struct {
	Path string `json:"path,omitempty"` // SQLite file; defaults under DataDir
}

// SessionProviderConfig selects and configures the session provider driver.
type SessionProviderConfig struct {
	Driver  string            `json:"driver,omitempty"` // "sim"
	Options map[string]string `json:"options,omitempty"`
}
