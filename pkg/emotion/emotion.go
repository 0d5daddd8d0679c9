// Package emotion defines the closed set of emotion labels recognized by the
// classifier and the name-to-index mapping used for training targets.
//
// The mapping is part of the model contract: a checkpoint trained with one
// mapping produces meaningless output under another. Labels are therefore a
// static enumeration, never discovered from directory names.
//
//	angry   = 0
//	happy   = 1
//	neutral = 2
//	sad     = 3
package emotion

import (
	"fmt"
	"slices"
)

// Label is an emotion category. Its integer value is the training target
// index and the position in a probability vector.
type Label int

const (
	Angry Label = iota
	Happy
	Neutral
	Sad
)

// NumLabels is the size of the closed label set.
const NumLabels = 4

var names = [NumLabels]string{"angry", "happy", "neutral", "sad"}

// All returns every label in index order.
func All() []Label {
	return []Label{Angry, Happy, Neutral, Sad}
}

// Valid reports whether l belongs to the closed label set.
func (l Label) Valid() bool {
	return l >= 0 && int(l) < NumLabels
}

func (l Label) String() string {
	if !l.Valid() {
		return fmt.Sprintf("Label(%d)", int(l))
	}
	return names[l]
}

// MarshalText implements encoding.TextMarshaler so labels render by name in
// JSON and YAML output.
func (l Label) MarshalText() ([]byte, error) {
	if !l.Valid() {
		return nil, fmt.Errorf("emotion: invalid label %d", int(l))
	}
	return []byte(names[l]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (l *Label) UnmarshalText(b []byte) error {
	v, err := Parse(string(b))
	if err != nil {
		return err
	}
	*l = v
	return nil
}

// Parse returns the label with the given name.
func Parse(name string) (Label, error) {
	i := slices.Index(names[:], name)
	if i < 0 {
		return 0, fmt.Errorf("emotion: unknown label %q", name)
	}
	return Label(i), nil
}

// Map is an explicit folder-name to label table. Only names present in the
// map are considered valid training folders.
type Map map[string]Label

// DefaultMap returns the canonical mapping {angry:0, happy:1, neutral:2, sad:3}.
func DefaultMap() Map {
	m := make(Map, NumLabels)
	for _, l := range All() {
		m[l.String()] = l
	}
	return m
}

// Lookup returns the label mapped to name.
func (m Map) Lookup(name string) (Label, bool) {
	l, ok := m[name]
	return l, ok
}

// Names returns the mapped folder names ordered by label index, then name.
func (m Map) Names() []string {
	out := make([]string, 0, len(m))
	for name := range m {
		out = append(out, name)
	}
	slices.SortFunc(out, func(a, b string) int {
		if m[a] != m[b] {
			return int(m[a]) - int(m[b])
		}
		if a < b {
			return -1
		}
		if a > b {
			return 1
		}
		return 0
	})
	return out
}

// Validate checks that every mapped label is in the closed set.
func (m Map) Validate() error {
	if len(m) == 0 {
		return fmt.Errorf("emotion: empty label map")
	}
	for name, l := range m {
		if !l.Valid() {
			return fmt.Errorf("emotion: folder %q maps to invalid label %d", name, int(l))
		}
	}
	return nil
}
