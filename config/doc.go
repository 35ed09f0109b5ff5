// Package config handles loading and parsing of configuration from YAML files
// and environment variables. It defines the application configuration structure
// including server settings, backends with their primary/backup roles, strategy
// selection, circuit breaking, retries and health check intervals.
package config
