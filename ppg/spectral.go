package ppg

// Spectral Warmup Seed
//
// Peak detection needs a rough heart-rate estimate before it has accumulated
// any accepted peaks: the adaptive filter windows and the harmonic delays all
// key off it. Once the signal buffer first fills during warmup, a radix-2 FFT
// over the buffered filtered samples locates the dominant frequency inside
// the physiological band and seeds the smoothed BPM. The seed is replaced by
// the first accepted interval; spectral estimation never overrides the
// peak-derived rate.

import (
	"math"
	"math/cmplx"
)

// estimateSpectralBPM returns the dominant in-band frequency of the samples
// expressed in beats per minute, or 0 when no usable estimate exists.
func estimateSpectralBPM(samples []float64, sampleRate, minBPM, maxBPM float64) float64 {
	if sampleRate <= 0 || len(samples) < 32 {
		return 0
	}

	// Truncate to the largest power of two, keeping the newest samples.
	size := 1
	for size*2 <= len(samples) {
		size *= 2
	}
	windowed := make([]float64, size)
	offset := len(samples) - size

	// Hann window against spectral leakage, mean removed so the DC bin does
	// not dominate.
	var mean float64
	for _, v := range samples[offset:] {
		mean += v
	}
	mean /= float64(size)
	for i := 0; i < size; i++ {
		hann := 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(size-1)))
		windowed[i] = (samples[offset+i] - mean) * hann
	}

	spectrum := fft(windowed)

	lowHz := minBPM / 60.0
	highHz := maxBPM / 60.0
	binHz := sampleRate / float64(size)

	bestBin := -1
	bestMagnitude := 0.0
	for bin := 1; bin < size/2; bin++ {
		freq := float64(bin) * binHz
		if freq < lowHz || freq > highHz {
			continue
		}
		magnitude := cmplx.Abs(spectrum[bin])
		if magnitude > bestMagnitude {
			bestMagnitude = magnitude
			bestBin = bin
		}
	}
	if bestBin < 0 || bestMagnitude < 1e-9 {
		return 0
	}

	return float64(bestBin) * binHz * 60.0
}

// fft computes the discrete Fourier transform via the recursive Cooley-Tukey
// radix-2 algorithm. The input length must be a power of two.
func fft(input []float64) []complex128 {
	values := make([]complex128, len(input))
	for i, v := range input {
		values[i] = complex(v, 0)
	}
	return recursiveFFT(values)
}

func recursiveFFT(values []complex128) []complex128 {
	n := len(values)
	if n <= 1 {
		return values
	}

	even := make([]complex128, n/2)
	odd := make([]complex128, n/2)
	for i := 0; i < n/2; i++ {
		even[i] = values[2*i]
		odd[i] = values[2*i+1]
	}

	even = recursiveFFT(even)
	odd = recursiveFFT(odd)

	result := make([]complex128, n)
	for k := 0; k < n/2; k++ {
		angle := -2 * math.Pi * float64(k) / float64(n)
		twiddle := complex(math.Cos(angle), math.Sin(angle))
		result[k] = even[k] + twiddle*odd[k]
		result[k+n/2] = even[k] - twiddle*odd[k]
	}
	return result
}
