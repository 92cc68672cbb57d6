// Package config loads, normalizes, and validates the scribed TOML
// configuration file.
package config
