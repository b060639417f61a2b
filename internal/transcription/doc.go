// Package transcription implements the speech-to-text collaborator.
// Providers are the OpenAI Whisper API and any endpoint accepting a multipart
// audio upload. Errors are classified as transient or terminal for the retry
// policy applied by the caller.
package transcription
