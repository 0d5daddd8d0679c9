package nn

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"
)

// ErrModelFormat is returned when a model file has an unknown magic,
// an unsupported version or inconsistent contents.
var ErrModelFormat = errors.New("nn: invalid model format")

const (
	fileMagic = "MOODNN"

	// FormatVersion is written after the magic. Files with any other
	// version are rejected.
	FormatVersion uint16 = 1
)

type tensor struct {
	Name string    `msgpack:"name"`
	Rows int       `msgpack:"rows"`
	Cols int       `msgpack:"cols"`
	Data []float64 `msgpack:"data"`
}

type fileBody struct {
	Config Config            `msgpack:"config"`
	Meta   map[string]string `msgpack:"meta,omitempty"`
	Params []tensor          `msgpack:"params"`
}

// Save writes the model: magic, big-endian uint16 version, msgpack body.
func (m *Model) Save(w io.Writer) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(fileMagic); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.BigEndian, FormatVersion); err != nil {
		return err
	}
	body := fileBody{Config: m.cfg, Meta: m.Meta}
	for _, p := range m.params() {
		r, c := p.w.Dims()
		body.Params = append(body.Params, tensor{
			Name: p.name,
			Rows: r,
			Cols: c,
			Data: p.w.RawMatrix().Data,
		})
	}
	if err := msgpack.NewEncoder(bw).Encode(&body); err != nil {
		return fmt.Errorf("nn: encode model: %w", err)
	}
	return bw.Flush()
}

// MarshalBinary returns the encoded model file.
func (m *Model) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	if err := m.Save(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Load reads a model written by Save.
func Load(r io.Reader) (*Model, error) {
	header := make([]byte, len(fileMagic)+2)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, fmt.Errorf("%w: short header: %v", ErrModelFormat, err)
	}
	if string(header[:len(fileMagic)]) != fileMagic {
		return nil, fmt.Errorf("%w: bad magic", ErrModelFormat)
	}
	if v := binary.BigEndian.Uint16(header[len(fileMagic):]); v != FormatVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrModelFormat, v)
	}

	var body fileBody
	if err := msgpack.NewDecoder(r).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrModelFormat, err)
	}
	if err := body.Config.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrModelFormat, err)
	}

	byName := make(map[string]tensor, len(body.Params))
	for _, t := range body.Params {
		byName[t.Name] = t
	}
	// Every tensor is checked against the config before anything is
	// allocated, so a damaged header cannot ask for more memory than the
	// file actually carried.
	for _, s := range paramShapes(body.Config) {
		t, ok := byName[s.name]
		if !ok {
			return nil, fmt.Errorf("%w: missing tensor %s", ErrModelFormat, s.name)
		}
		if t.Rows != s.rows || t.Cols != s.cols || !holds(t) {
			return nil, fmt.Errorf("%w: tensor %s is %dx%d with %d values, want %dx%d",
				ErrModelFormat, s.name, t.Rows, t.Cols, len(t.Data), s.rows, s.cols)
		}
	}

	m := build(body.Config, nil)
	if body.Meta != nil {
		m.Meta = body.Meta
	}
	for _, p := range m.params() {
		copy(p.w.RawMatrix().Data, byName[p.name].Data)
	}
	return m, nil
}

type paramShape struct {
	name       string
	rows, cols int
}

// paramShapes lists the tensors build allocates for cfg, in params order.
func paramShapes(cfg Config) []paramShape {
	lstm := func(name string, in, units int) []paramShape {
		return []paramShape{
			{name + "/kernel", in, 4 * units},
			{name + "/recurrent_kernel", units, 4 * units},
			{name + "/bias", 1, 4 * units},
		}
	}
	dense := func(name string, in, out int) []paramShape {
		return []paramShape{{name + "/kernel", in, out}, {name + "/bias", 1, out}}
	}
	var out []paramShape
	out = append(out, lstm("lstm1", cfg.InputSize, cfg.LSTM1)...)
	out = append(out, lstm("lstm2", cfg.LSTM1, cfg.LSTM2)...)
	out = append(out, dense("dense1", cfg.LSTM2, cfg.Dense)...)
	out = append(out, dense("dense2", cfg.Dense, cfg.Classes)...)
	return out
}

// holds reports whether t.Data is exactly Rows×Cols values, without
// computing a product that could overflow.
func holds(t tensor) bool {
	if t.Rows <= 0 || t.Cols <= 0 {
		return false
	}
	n := len(t.Data)
	return n%t.Cols == 0 && n/t.Cols == t.Rows
}

// Unmarshal decodes a model file held in memory.
func Unmarshal(data []byte) (*Model, error) {
	return Load(bytes.NewReader(data))
}
