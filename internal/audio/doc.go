// Package audio handles capture buffering, dual-source mixing and segmentation.
// Captured PCM accumulates in a Buffer per source; the Segmenter cuts one
// self-contained WAV segment per interval, mixing two sources sample by sample
// with a soft-knee compressor when both are present.
package audio
