// Package features turns decoded waveforms into fixed-shape MFCC matrices.
//
// Every clip, regardless of duration, yields a matrix of exactly
// NumCoefficients rows by MaxPadLen frames:
//
//   - shorter clips are zero-padded on the trailing frame axis;
//   - longer clips keep only the first MaxPadLen frames.
//
// The truncation window is always the head of the clip, never centered or
// random. Extraction is deterministic: the same waveform and configuration
// produce bit-identical output.
//
// The pipeline is resample → centered STFT (Hann) → mel power (Slaney) →
// dB with top_db clipping → orthonormal DCT-II, matching librosa's
// feature.mfcc defaults.
//
// [CachedExtractor] adds a persistent cache keyed by file identity and the
// configuration fingerprint, so repeated dataset builds skip the DSP work.
package features
