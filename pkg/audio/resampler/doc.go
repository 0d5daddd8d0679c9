// Package resampler converts waveforms between sample rates using a pure Go
// polyphase resampler (no CGO/FFI dependencies).
//
// Feature extraction assumes a single, fixed sample rate. Every decoded
// waveform passes through [Resample] first so that frame timing and mel
// band edges mean the same thing for every clip.
//
// Example usage:
//
//	w, err := wav.DecodeFile("clip.wav")
//	if err != nil {
//	    return err
//	}
//	w, err = resampler.Resample(w, 22050)
package resampler
