// Package audio groups the audio front end used by feature extraction.
//
// Sub-packages:
//
//   - wav: WAV decoding and encoding into mono float waveforms
//   - resampler: sample rate conversion
//   - fbank: framing, power spectra and mel filterbanks
//
// A file goes through them in that order:
//
//	w, err := wav.DecodeFile("clip.wav")
//	w, err = resampler.Resample(w, 22050)
//	ext, err := fbank.New(fbank.DefaultConfig())
//	mel := ext.Extract(w.Samples)
//	fbank.PowerToDB(mel, 80)
package audio
