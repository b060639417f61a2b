// Package retry provides a bounded retry policy with linear backoff.
// Errors are classified as transient or terminal; terminal errors and context
// cancellation stop the retry loop immediately.
package retry
