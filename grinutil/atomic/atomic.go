// Package atomic wraps go.uber.org/atomic with the handful of types the
// relay needs, each copying on Load/Store so callers can't mutate shared
// state through an aliased slice.
package atomic

import "go.uber.org/atomic"

// String is a copy-on-access atomic string.
type String struct{ v atomic.String }

func (s *String) Load() string     { return s.v.Load() }
func (s *String) Store(val string) { s.v.Store(val) }

// Bool is an atomic boolean.
type Bool struct{ v atomic.Bool }

func (b *Bool) Load() bool     { return b.v.Load() }
func (b *Bool) Store(val bool) { b.v.Store(val) }

// Bytes is a copy-on-access atomic byte slice.
type Bytes struct{ v atomic.Value }

// NewBytes creates a Bytes initialised to val (copied).
func NewBytes(val []byte) *Bytes {
	b := &Bytes{}
	b.Store(val)
	return b
}

func (b *Bytes) Load() []byte {
	v := b.v.Load()
	if v == nil {
		return nil
	}
	src := v.([]byte)
	out := make([]byte, len(src))
	copy(out, src)
	return out
}

func (b *Bytes) Store(val []byte) {
	cp := make([]byte, len(val))
	copy(cp, val)
	b.v.Store(cp)
}
