package config

// Config is the CLI configuration, loaded from config.yaml in the user
// config directory and overridable through AUTHBRIDGE_* environment
// variables.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Auth    AuthConfig    `yaml:"auth"`
	Storage StorageConfig `yaml:"storage"`
	Login   LoginConfig   `yaml:"login"`
}

// ServerConfig locates the auth server.
type ServerConfig struct {
	// BaseURL is the auth server origin, including any mount path.
	BaseURL string `yaml:"baseURL" env:"AUTHBRIDGE_BASE_URL"`

	// Scheme is the app deep-link scheme. Empty for CLI use, where the
	// loopback callback stands in for a deep link.
	Scheme string `yaml:"scheme" env:"AUTHBRIDGE_SCHEME"`
}

// AuthConfig tunes the credential and flow layers.
type AuthConfig struct {
	// StoragePrefix namespaces the credential storage keys.
	StoragePrefix string `yaml:"storagePrefix" env:"AUTHBRIDGE_STORAGE_PREFIX"`

	// CookiePrefixes identifies auth cookies by name prefix.
	CookiePrefixes []string `yaml:"cookiePrefixes" env:"AUTHBRIDGE_COOKIE_PREFIXES"`

	// FlowTimeout bounds one OAuth exchange, as a Go duration string.
	FlowTimeout string `yaml:"flowTimeout" env:"AUTHBRIDGE_FLOW_TIMEOUT"`
}

// StorageConfig selects and configures the credential backend.
type StorageConfig struct {
	// Backend is one of "memory", "file", "redis".
	Backend string `yaml:"backend" env:"AUTHBRIDGE_STORAGE_BACKEND"`

	// Dir overrides the file backend directory.
	Dir string `yaml:"dir" env:"AUTHBRIDGE_STORAGE_DIR"`

	Redis RedisConfig `yaml:"redis"`
}

// RedisConfig configures the Redis backend.
type RedisConfig struct {
	Addr      string `yaml:"addr" env:"AUTHBRIDGE_REDIS_ADDR"`
	Password  string `yaml:"password" env:"AUTHBRIDGE_REDIS_PASSWORD"`
	DB        int    `yaml:"db" env:"AUTHBRIDGE_REDIS_DB"`
	KeyPrefix string `yaml:"keyPrefix" env:"AUTHBRIDGE_REDIS_KEY_PREFIX"`
}

// LoginConfig configures the interactive login command.
type LoginConfig struct {
	// Provider is the social provider passed to the sign-in endpoint.
	Provider string `yaml:"provider" env:"AUTHBRIDGE_PROVIDER"`

	// CallbackPort is the loopback listener port; 0 picks a free port.
	CallbackPort int `yaml:"callbackPort" env:"AUTHBRIDGE_CALLBACK_PORT"`
}
