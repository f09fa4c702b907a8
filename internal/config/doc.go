// Package config loads the CLI configuration. Values come from three layers
// in increasing precedence: built-in defaults, config.yaml in the user
// config directory (~/.config/authbridge), and AUTHBRIDGE_* environment
// variables.
package config
