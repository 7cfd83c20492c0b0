// Package codec reads and writes the binary search index and render cache
// files. Both formats are little-endian, start with a magic number and a
// format version, and encode strings as a u32 byte length followed by UTF-8.
package codec

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"unicode/utf8"

	apperrors "github.com/Adithya-Monish-Kumar-K/Lecture-Search-Platform/pkg/errors"
)

// FormatVersion is the only version this package reads and writes.
const FormatVersion uint32 = 1

// writer buffers output and keeps the first error, so encoders can write a
// whole record and check once.
type writer struct {
	bw  *bufio.Writer
	buf [8]byte
	err error
}

func newWriter(w io.Writer) *writer {
	return &writer{bw: bufio.NewWriter(w)}
}

func (w *writer) write(b []byte) {
	if w.err != nil {
		return
	}
	_, w.err = w.bw.Write(b)
}

func (w *writer) u16(v uint16) {
	binary.LittleEndian.PutUint16(w.buf[:2], v)
	w.write(w.buf[:2])
}

func (w *writer) i16(v int16) {
	w.u16(uint16(v))
}

func (w *writer) u32(v uint32) {
	binary.LittleEndian.PutUint32(w.buf[:4], v)
	w.write(w.buf[:4])
}

func (w *writer) f32(v float32) {
	w.u32(math.Float32bits(v))
}

func (w *writer) str(s string) {
	if uint64(len(s)) > math.MaxUint32 {
		w.fail(fmt.Errorf("string of %d bytes does not fit the format", len(s)))
		return
	}
	w.u32(uint32(len(s)))
	if w.err != nil {
		return
	}
	_, w.err = w.bw.WriteString(s)
}

func (w *writer) fail(err error) {
	if w.err == nil {
		w.err = err
	}
}

func (w *writer) flush() error {
	if w.err != nil {
		return w.err
	}
	return w.bw.Flush()
}

// reader decodes from an in-memory buffer and keeps the first error. Every
// failure wraps ErrCorruptData.
type reader struct {
	data []byte
	off  int
	err  error
}

func newReader(data []byte) *reader {
	return &reader{data: data}
}

func (r *reader) take(n int, what string) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || len(r.data)-r.off < n {
		r.err = apperrors.Corruptf("truncated %s at offset %d", what, r.off)
		return nil
	}
	b := r.data[r.off : r.off+n]
	r.off += n
	return b
}

func (r *reader) u16(what string) uint16 {
	b := r.take(2, what)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint16(b)
}

func (r *reader) i16(what string) int16 {
	return int16(r.u16(what))
}

func (r *reader) u32(what string) uint32 {
	b := r.take(4, what)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

func (r *reader) f32(what string) float32 {
	return math.Float32frombits(r.u32(what))
}

func (r *reader) str(what string) string {
	n := r.u32(what + " length")
	if r.err != nil {
		return ""
	}
	if uint64(n) > uint64(r.remaining()) {
		r.err = apperrors.Corruptf("truncated %s at offset %d", what, r.off)
		return ""
	}
	b := r.take(int(n), what)
	if b == nil {
		return ""
	}
	if !utf8.Valid(b) {
		r.err = apperrors.Corruptf("invalid UTF-8 in %s at offset %d", what, r.off-len(b))
		return ""
	}
	return string(b)
}

func (r *reader) remaining() int {
	return len(r.data) - r.off
}

// capacity bounds a slice preallocation by what the remaining bytes could
// possibly hold, so a corrupt count cannot allocate unbounded memory.
func (r *reader) capacity(count uint32, minRecord int) int {
	most := r.remaining() / minRecord
	if uint64(count) < uint64(most) {
		return int(count)
	}
	return most
}

func (r *reader) corrupt(format string, args ...any) {
	if r.err == nil {
		r.err = apperrors.Corruptf(format, args...)
	}
}

func (r *reader) header(magic uint32, what string) {
	got := r.u32(what + " magic")
	if r.err != nil {
		return
	}
	if got != magic {
		r.err = apperrors.Corruptf("bad %s magic %#08x", what, got)
		return
	}
	version := r.u32(what + " version")
	if r.err == nil && version != FormatVersion {
		r.err = fmt.Errorf("%s version %d, want %d: %w", what, version, FormatVersion, apperrors.ErrUnsupportedVersion)
	}
}

func (r *reader) finish(what string) error {
	if r.err != nil {
		return r.err
	}
	if r.remaining() != 0 {
		return apperrors.Corruptf("%d trailing bytes after %s", r.remaining(), what)
	}
	return nil
}
