// Package httpserver wraps net/http with validated listen addresses and
// graceful shutdown.
package httpserver
