// Package summary wraps the text-generation collaborator.
// It produces the end-of-session analysis, the degraded fallback used when
// the model stays unavailable, and short live objection-handling hints.
package summary
