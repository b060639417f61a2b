package audio

import "math"

// Int16ToFloat converts PCM-16 samples to floats in [-1, 1)
func Int16ToFloat(samples []int16) []float64 {
	out := make([]float64, len(samples))
	for i, s := range samples {
		out[i] = float64(s) / 32768.0
	}
	return out
}

// FloatToInt16 quantizes float samples, clamping to [-1, 1] first
func FloatToInt16(samples []float64) []int16 {
	out := make([]int16, len(samples))
	for i, s := range samples {
		s = clamp(s)
		if s >= 0 {
			out[i] = int16(math.Round(s * 32767))
		} else {
			out[i] = int16(math.Round(s * 32768))
		}
	}
	return out
}

func clamp(x float64) float64 {
	if x > 1 {
		return 1
	}
	if x < -1 {
		return -1
	}
	return x
}
