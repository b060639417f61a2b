// Package session holds the server-side state of recording sessions.
// It provides the session model, the Store abstraction with in-memory and
// Redis implementations, and the Manager that ingests transcribed chunks,
// finalizes sessions and evicts idle ones.
package session
