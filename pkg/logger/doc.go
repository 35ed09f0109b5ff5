// Package logger builds the application's structured logger on top of
// log/slog. The level and source annotation come from configuration, and the
// output format follows the deployment environment: JSON in prod, text
// elsewhere.
package logger
