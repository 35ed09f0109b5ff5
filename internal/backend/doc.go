// Package backend implements reverse proxy functionality for backend servers.
// It provides connection tracking, response time monitoring, primary/backup
// roles for failover selection, and HTTP request forwarding.
package backend
