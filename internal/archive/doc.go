// Package archive keeps finalized sessions in a SQLite database so that
// transcripts and analyses survive after the live session is gone.
package archive
