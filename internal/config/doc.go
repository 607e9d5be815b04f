// Package config loads and validates application configuration from
// environment variables and an optional YAML file. Environment variables
// take precedence over file values, which take precedence over defaults.
package config
