package fbank

import "math"

// hannWindow generates a periodic Hann window of the given length.
func hannWindow(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(n))
	}
	return w
}

// hammingWindow generates a symmetric Hamming window of the given length.
func hammingWindow(n int) []float64 {
	w := make([]float64, n)
	if n == 1 {
		w[0] = 1
		return w
	}
	for i := range w {
		w[i] = 0.54 - 0.46*math.Cos(2*math.Pi*float64(i)/float64(n-1))
	}
	return w
}

// Slaney mel scale: linear below 1 kHz, logarithmic above.
const (
	fSP       = 200.0 / 3
	minLogHz  = 1000.0
	minLogMel = minLogHz / fSP
)

var logStep = math.Log(6.4) / 27.0

// hzToMel converts frequency in Hz to the Slaney mel scale.
func hzToMel(hz float64) float64 {
	if hz >= minLogHz {
		return minLogMel + math.Log(hz/minLogHz)/logStep
	}
	return hz / fSP
}

// melToHz converts Slaney mel back to Hz.
func melToHz(mel float64) float64 {
	if mel >= minLogMel {
		return minLogHz * math.Exp(logStep*(mel-minLogMel))
	}
	return fSP * mel
}

// melFilterBank creates the mel filterbank matrix with Slaney area
// normalization. Returns [numMels][halfFFT] where halfFFT = fftSize/2 + 1.
func melFilterBank(numMels, fftSize, sampleRate int, lowFreq, highFreq float64) [][]float64 {
	halfFFT := fftSize/2 + 1
	fftFreqs := make([]float64, halfFFT)
	for k := range fftFreqs {
		fftFreqs[k] = float64(k) * float64(sampleRate) / float64(fftSize)
	}

	// numMels + 2 equally spaced mel points, converted back to Hz.
	lowMel := hzToMel(lowFreq)
	highMel := hzToMel(highFreq)
	hz := make([]float64, numMels+2)
	step := (highMel - lowMel) / float64(numMels+1)
	for i := range hz {
		hz[i] = melToHz(lowMel + float64(i)*step)
	}

	bank := make([][]float64, numMels)
	for m := 0; m < numMels; m++ {
		left, center, right := hz[m], hz[m+1], hz[m+2]
		norm := 2.0 / (right - left)
		filter := make([]float64, halfFFT)
		for k, f := range fftFreqs {
			lower := (f - left) / (center - left)
			upper := (right - f) / (right - center)
			w := math.Max(0, math.Min(lower, upper))
			filter[k] = w * norm
		}
		bank[m] = filter
	}
	return bank
}
