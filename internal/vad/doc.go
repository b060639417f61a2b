// Package vad provides energy-based voice activity detection.
// The segmenter uses it to drop intervals that contain only silence before
// they are encoded and uploaded.
package vad
