package audio

import "math"

// ResampleLinear converts samples from inRate to outRate. Source and
// destination sample positions are both spread over [0,1) and the output is
// linearly interpolated from the source, holding the last sample past the end.
// The output has round(len*outRate/inRate) samples.
func ResampleLinear(samples []int16, inRate, outRate int) []int16 {
	if inRate == outRate {
		return samples
	}
	if len(samples) == 0 || inRate <= 0 || outRate <= 0 {
		return nil
	}
	outLen := int(math.Round(float64(len(samples)) * float64(outRate) / float64(inRate)))
	if outLen <= 0 {
		return nil
	}
	n := len(samples)
	step := float64(n) / float64(outLen)
	out := make([]int16, outLen)
	for i := 0; i < outLen; i++ {
		pos := float64(i) * step
		i0 := int(pos)
		if i0 >= n-1 {
			out[i] = samples[n-1]
			continue
		}
		frac := pos - float64(i0)
		s0 := float64(samples[i0])
		s1 := float64(samples[i0+1])
		out[i] = ClampInt16(s0 + (s1-s0)*frac)
	}
	return out
}
