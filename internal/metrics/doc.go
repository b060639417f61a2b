// Package metrics defines the Prometheus metrics exported by the server.
package metrics
