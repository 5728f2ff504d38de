// Package aicarousel is a single-endpoint gateway over multiple AI chat
// providers. It rotates requests across active upstreams, falls back
// through each provider's model list, and fails over to the next provider
// when an upstream cannot produce a first chunk.
package aicarousel

// Config is the server configuration. Every field has a default so an
// empty config runs; environment variables override file values.
type Config struct {
	// Port is the HTTP listen port.
	Port int `json:"port" yaml:"port"`
	// DBPath is the SQLite database file. Ignored when DatabaseURL is set.
	DBPath string `json:"db_path" yaml:"db_path"`
	// DatabaseURL selects Postgres instead of the embedded SQLite file.
	DatabaseURL string `json:"database_url" yaml:"database_url"`
	// ModelsPath is the per-provider models JSON file.
	ModelsPath string `json:"models_path" yaml:"models_path"`
	// LogLevel is debug, info, warn, or error.
	LogLevel string `json:"log_level" yaml:"log_level"`
	// LogFormat is "json" or "text".
	LogFormat string `json:"log_format" yaml:"log_format"`
}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() Config {
	return Config{
		Port:       7123,
		DBPath:     "aicarousel.db",
		ModelsPath: "models.json",
		LogLevel:   "info",
		LogFormat:  "json",
	}
}
