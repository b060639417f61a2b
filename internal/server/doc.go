// Package server implements the HTTP API: chunk upload, session finalization,
// the live objection assistant and the monitoring endpoints.
package server
