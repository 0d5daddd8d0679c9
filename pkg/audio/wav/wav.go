// Package wav decodes RIFF/WAVE files into normalized mono waveforms and
// encodes waveforms back to 16-bit PCM WAV.
//
// Decoding is strict: the container must be valid PCM, mono, and contain
// at least one sample. Anything else fails with an error wrapping
// [ErrDecode] so callers can decide whether to skip the file or abort.
package wav

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/go-audio/audio"
	gowav "github.com/go-audio/wav"
)

// ErrDecode is returned (wrapped) when a source cannot be turned into a
// waveform: unsupported format, corrupt container, multi-channel audio, or
// zero-length data.
var ErrDecode = errors.New("wav: decode error")

const (
	formatPCM        = 1
	formatExtensible = 0xFFFE
)

// Waveform is a mono sequence of samples normalized to [-1, 1].
type Waveform struct {
	Samples    []float64
	SampleRate int
}

// Duration returns the length of the waveform.
func (w Waveform) Duration() time.Duration {
	if w.SampleRate <= 0 {
		return 0
	}
	return time.Duration(len(w.Samples)) * time.Second / time.Duration(w.SampleRate)
}

// Validate checks the waveform invariants required before feature extraction.
func (w Waveform) Validate() error {
	if w.SampleRate <= 0 {
		return fmt.Errorf("%w: invalid sample rate %d", ErrDecode, w.SampleRate)
	}
	if len(w.Samples) == 0 {
		return fmt.Errorf("%w: zero-length audio", ErrDecode)
	}
	return nil
}

// DecodeFile reads and decodes the WAV file at path.
func DecodeFile(path string) (Waveform, error) {
	f, err := os.Open(path)
	if err != nil {
		return Waveform{}, fmt.Errorf("%w: %s: %v", ErrDecode, path, err)
	}
	defer f.Close()
	w, err := Decode(f)
	if err != nil {
		return Waveform{}, fmt.Errorf("%s: %w", path, err)
	}
	return w, nil
}

// DecodeBytes decodes an in-memory WAV file.
func DecodeBytes(data []byte) (Waveform, error) {
	return Decode(bytes.NewReader(data))
}

// Decode decodes a WAV stream into a mono waveform.
func Decode(r io.ReadSeeker) (Waveform, error) {
	d := gowav.NewDecoder(r)
	if !d.IsValidFile() {
		return Waveform{}, fmt.Errorf("%w: not a valid WAV file", ErrDecode)
	}
	if d.WavAudioFormat != formatPCM && d.WavAudioFormat != formatExtensible {
		return Waveform{}, fmt.Errorf("%w: unsupported audio format %#x", ErrDecode, d.WavAudioFormat)
	}
	if d.NumChans != 1 {
		return Waveform{}, fmt.Errorf("%w: expected mono, got %d channels", ErrDecode, d.NumChans)
	}
	buf, err := d.FullPCMBuffer()
	if err != nil {
		return Waveform{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if len(buf.Data) == 0 {
		return Waveform{}, fmt.Errorf("%w: zero-length audio", ErrDecode)
	}

	depth := int(d.BitDepth)
	samples := make([]float64, len(buf.Data))
	switch depth {
	case 8:
		// 8-bit WAV is unsigned with a 128 midpoint.
		for i, v := range buf.Data {
			samples[i] = float64(v-128) / 128.0
		}
	case 16, 24, 32:
		scale := float64(int64(1) << (depth - 1))
		for i, v := range buf.Data {
			samples[i] = float64(v) / scale
		}
	default:
		return Waveform{}, fmt.Errorf("%w: unsupported bit depth %d", ErrDecode, depth)
	}

	return Waveform{Samples: samples, SampleRate: int(d.SampleRate)}, nil
}

// Encode writes w as a 16-bit mono PCM WAV file. Samples outside [-1, 1]
// are clipped.
func Encode(out io.WriteSeeker, w Waveform) error {
	if w.SampleRate <= 0 {
		return fmt.Errorf("wav: invalid sample rate %d", w.SampleRate)
	}
	data := make([]int, len(w.Samples))
	for i, s := range w.Samples {
		v := s * 32767.0
		if v > 32767 {
			v = 32767
		} else if v < -32768 {
			v = -32768
		}
		data[i] = int(v)
	}
	enc := gowav.NewEncoder(out, w.SampleRate, 16, 1, formatPCM)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: w.SampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("wav: encode: %w", err)
	}
	return enc.Close()
}

// WriteFile encodes w to a new file at path.
func WriteFile(path string, w Waveform) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Encode(f, w); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
