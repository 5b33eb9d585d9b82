package logic

// SignalFilter tracks the ambient light baseline with an exponential moving
// average. Samples are clamped to [0,1] so the baseline never leaves it.
type SignalFilter struct {
	baseline float64
}

// NewSignalFilter creates a filter starting at the given baseline.
func NewSignalFilter(initial float64) *SignalFilter {
	return &SignalFilter{baseline: Clamp01(initial)}
}

// Update folds sample into the baseline and returns the new value.
// alpha is chosen by the caller each tick so the smoothing speed can change
// with the mode without losing history.
func (f *SignalFilter) Update(sample, alpha float64) float64 {
	a := Clamp01(alpha)
	f.baseline = (1-a)*f.baseline + a*Clamp01(sample)
	return f.baseline
}

// Calibrate replaces the baseline with the arithmetic mean of samples.
// An empty burst leaves the baseline untouched.
func (f *SignalFilter) Calibrate(samples []float64) float64 {
	if len(samples) == 0 {
		return f.baseline
	}
	var acc float64
	for _, s := range samples {
		acc += Clamp01(s)
	}
	f.baseline = acc / float64(len(samples))
	return f.baseline
}

// Set overrides the baseline.
func (f *SignalFilter) Set(v float64) {
	f.baseline = Clamp01(v)
}

// Baseline returns the current baseline.
func (f *SignalFilter) Baseline() float64 {
	return f.baseline
}
