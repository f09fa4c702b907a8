package config

// GetDefaultConfig returns the built-in configuration. File and environment
// values are layered on top of it.
func GetDefaultConfig() Config {
	return Config{
		Auth: AuthConfig{
			StoragePrefix:  "better-auth",
			CookiePrefixes: []string{"better-auth"},
			FlowTimeout:    "10m",
		},
		Storage: StorageConfig{
			Backend: "file",
			Redis: RedisConfig{
				Addr: "localhost:6379",
			},
		},
		Login: LoginConfig{
			Provider: "google",
		},
	}
}
