package ppg

// Peak Template Tracking
//
// The template is a normalized (zero-mean, unit-variance) fixed-width window
// representing the average shape of recently accepted peaks, maintained as a
// rolling mean of the last few high-confidence windows. New candidates are
// scored by Pearson correlation against it. The template only mutates after a
// high-confidence accepted peak, so a run of bad beats cannot corrupt it.

import "math"

type peakTemplate struct {
	width   int
	depth   int
	windows [][]float64 // normalized accepted windows, oldest first
	mean    []float64   // rolling mean, re-normalized
}

func newPeakTemplate(width, depth int) *peakTemplate {
	if width < 3 {
		width = 3
	}
	if depth < 1 {
		depth = 1
	}
	return &peakTemplate{width: width, depth: depth}
}

// ready reports whether a template exists to correlate against.
func (t *peakTemplate) ready() bool { return t.mean != nil }

// update folds a new accepted-peak window into the rolling template. Windows
// of the wrong width or with zero variance are ignored.
func (t *peakTemplate) update(window []float64) {
	if len(window) != t.width {
		return
	}
	normalized := make([]float64, t.width)
	copy(normalized, window)
	if !normalizeWindow(normalized) {
		return // flat window carries no shape information
	}

	t.windows = append(t.windows, normalized)
	if len(t.windows) > t.depth {
		t.windows = t.windows[1:]
	}

	mean := make([]float64, t.width)
	for _, w := range t.windows {
		for i, v := range w {
			mean[i] += v
		}
	}
	for i := range mean {
		mean[i] /= float64(len(t.windows))
	}
	if !normalizeWindow(mean) {
		return
	}
	t.mean = mean
}

// correlate returns the Pearson correlation between the window and the
// template, or 0 when no template exists or the window is degenerate.
func (t *peakTemplate) correlate(window []float64) float64 {
	if t.mean == nil || len(window) != t.width {
		return 0
	}
	normalized := make([]float64, t.width)
	copy(normalized, window)
	if !normalizeWindow(normalized) {
		return 0
	}
	return pearson(normalized, t.mean)
}

func (t *peakTemplate) reset() {
	t.windows = nil
	t.mean = nil
}

// normalizeWindow shifts to zero mean and scales to unit variance in place.
// It returns false when the window has no variance to normalize by.
func normalizeWindow(w []float64) bool {
	if len(w) == 0 {
		return false
	}
	var mean float64
	for _, v := range w {
		mean += v
	}
	mean /= float64(len(w))

	var sumSq float64
	for i := range w {
		w[i] -= mean
		sumSq += w[i] * w[i]
	}
	stdDev := math.Sqrt(sumSq / float64(len(w)))
	if stdDev < 1e-12 || math.IsNaN(stdDev) {
		return false
	}
	for i := range w {
		w[i] /= stdDev
	}
	return true
}

// pearson computes the correlation of two equal-length series. Inputs here are
// already zero-mean unit-variance, so this reduces to the mean dot product,
// but the full form keeps the function correct for arbitrary input.
func pearson(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var meanA, meanB float64
	for i := range a {
		meanA += a[i]
		meanB += b[i]
	}
	meanA /= float64(len(a))
	meanB /= float64(len(b))

	var cov, varA, varB float64
	for i := range a {
		da := a[i] - meanA
		db := b[i] - meanB
		cov += da * db
		varA += da * da
		varB += db * db
	}
	if varA < 1e-12 || varB < 1e-12 {
		return 0
	}
	return cov / math.Sqrt(varA*varB)
}
