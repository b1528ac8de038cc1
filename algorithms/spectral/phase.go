package spectral

import "math"

// Unwrap removes 2*pi jumps from a sequence of angles so that consecutive
// values never differ by more than pi. The first value is left unchanged.
func Unwrap(phase []float64) []float64 {
	out := make([]float64, len(phase))
	if len(phase) == 0 {
		return out
	}

	out[0] = phase[0]
	correction := 0.0
	for i := 1; i < len(phase); i++ {
		d := phase[i] - phase[i-1]
		dd := math.Mod(d+math.Pi, 2*math.Pi)
		if dd < 0 {
			dd += 2 * math.Pi
		}
		dd -= math.Pi
		// keep the sign of genuine +pi steps
		if dd == -math.Pi && d > 0 {
			dd = math.Pi
		}
		if math.Abs(d) >= math.Pi {
			correction += dd - d
		}
		out[i] = phase[i] + correction
	}
	return out
}

// UnwrapTime unwraps a time x frequency phase matrix along the time axis,
// independently for each frequency bin.
func UnwrapTime(phases [][]float64) [][]float64 {
	out := make([][]float64, len(phases))
	if len(phases) == 0 {
		return out
	}

	bins := len(phases[0])
	for t := range phases {
		out[t] = make([]float64, bins)
	}

	track := make([]float64, len(phases))
	for k := range bins {
		for t := range phases {
			track[t] = phases[t][k]
		}
		for t, v := range Unwrap(track) {
			out[t][k] = v
		}
	}
	return out
}

// PrincipalArgument wraps an angle into (-pi, pi].
func PrincipalArgument(x float64) float64 {
	return x - 2*math.Pi*math.Ceil((x-math.Pi)/(2*math.Pi))
}
