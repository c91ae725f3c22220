package library

import (
	"bytes"
	"encoding/binary"
	"math"

	"github.com/pkg/errors"
)

var (
	ErrCorrupt      = errors.New("corrupt record")
	ErrFieldTooLong = errors.New("field does not fit record")
)

// writer accumulates a little-endian record. The first failure sticks.
type writer struct {
	buf bytes.Buffer
	err error
}

func (w *writer) u16(v int) {
	if w.err != nil {
		return
	}
	if v < 0 || v > math.MaxUint16 {
		w.err = errors.Wrapf(ErrFieldTooLong, "value %d", v)
		return
	}
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], uint16(v))
	w.buf.Write(b[:])
}

func (w *writer) i16(v int) {
	if w.err != nil {
		return
	}
	if v < math.MinInt16 || v > math.MaxInt16 {
		w.err = errors.Wrapf(ErrFieldTooLong, "value %d", v)
		return
	}
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], uint16(int16(v)))
	w.buf.Write(b[:])
}

func (w *writer) str(s string) {
	w.u16(len(s))
	w.raw(s)
}

func (w *writer) raw(s string) {
	if w.err == nil {
		w.buf.WriteString(s)
	}
}

func (w *writer) fixed(s string, n int) {
	if w.err != nil {
		return
	}
	b := make([]byte, n)
	copy(b, s)
	w.buf.Write(b)
}

func (w *writer) bytes() ([]byte, error) {
	if w.err != nil {
		return nil, w.err
	}
	return w.buf.Bytes(), nil
}

type reader struct {
	data []byte
	err  error
}

func (r *reader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if len(r.data) < n {
		r.err = errors.Wrapf(ErrCorrupt, "need %d bytes, have %d", n, len(r.data))
		return nil
	}
	b := r.data[:n]
	r.data = r.data[n:]
	return b
}

func (r *reader) u16() int {
	b := r.take(2)
	if b == nil {
		return 0
	}
	return int(binary.LittleEndian.Uint16(b))
}

func (r *reader) i16() int {
	b := r.take(2)
	if b == nil {
		return 0
	}
	return int(int16(binary.LittleEndian.Uint16(b)))
}

func (r *reader) str() string {
	n := r.u16()
	return string(r.take(n))
}

func (r *reader) fixed(n int) string {
	return string(bytes.TrimRight(r.take(n), "\x00"))
}
