package audio

import "math"

// Mixer combines two mono sources sample by sample.
// Each sample is weighted by its source gain, averaged, and passed through a
// soft-knee compressor: values above Threshold are scaled by Ratio beyond the
// knee, then clamped to [-1, 1].
type Mixer struct {
	GainA     float64 // system / remote audio
	GainB     float64 // microphone
	Threshold float64
	Ratio     float64
}

// DefaultMixer returns unity gains with threshold 0.8 and ratio 0.5
func DefaultMixer() Mixer {
	return Mixer{GainA: 1, GainB: 1, Threshold: 0.8, Ratio: 0.5}
}

// Compress applies the soft-knee compressor to a single sample
func (m Mixer) Compress(x float64) float64 {
	abs := math.Abs(x)
	if abs > m.Threshold {
		abs = m.Threshold + (abs-m.Threshold)*m.Ratio
		x = math.Copysign(abs, x)
	}
	return clamp(x)
}

// Mix returns max(len(a), len(b)) samples. The shorter buffer is treated as
// zero-padded. A source that is empty or entirely silent is treated as absent,
// so the other source is only gained and compressed, not halved.
func (m Mixer) Mix(a, b []float64) []float64 {
	n := len(a)
	if len(b) > n {
		n = len(b)
	}
	out := make([]float64, n)

	switch {
	case isSilent(a) && isSilent(b):
		return out
	case isSilent(b):
		m.passThrough(out, a, m.GainA)
		return out
	case isSilent(a):
		m.passThrough(out, b, m.GainB)
		return out
	}

	for i := 0; i < n; i++ {
		var sa, sb float64
		if i < len(a) {
			sa = a[i]
		}
		if i < len(b) {
			sb = b[i]
		}
		out[i] = m.Compress((m.GainA*sa + m.GainB*sb) * 0.5)
	}
	return out
}

// Single gains and compresses a lone source
func (m Mixer) Single(a []float64) []float64 {
	out := make([]float64, len(a))
	m.passThrough(out, a, m.GainA)
	return out
}

func (m Mixer) passThrough(out, src []float64, gain float64) {
	for i, s := range src {
		out[i] = m.Compress(gain * s)
	}
}

func isSilent(samples []float64) bool {
	for _, s := range samples {
		if s != 0 {
			return false
		}
	}
	return true
}
