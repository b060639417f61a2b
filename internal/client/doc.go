// Package client records a meeting and streams it to the server: sources are
// segmented into chunks, each chunk is uploaded concurrently with retries, and
// the session is finalized once pending uploads drain or a wait bound passes.
package client
