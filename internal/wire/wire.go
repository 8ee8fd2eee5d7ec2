package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"slices"
)

// PrefixSize is the width of every container length prefix.
const PrefixSize = 4

var (
	ErrShortBuffer  = errors.New("wire: unexpected end of input")
	ErrBudget       = errors.New("wire: read overruns container budget")
	ErrEmptyElement = errors.New("wire: element consumed no bytes")
	ErrTrailing     = errors.New("wire: unconsumed bytes")
	ErrUnbalanced   = errors.New("wire: unbalanced container")
	ErrTooLarge     = errors.New("wire: container larger than 4GiB")
	ErrCorrupt      = errors.New("wire: corrupt entry")
)

// Writer appends little-endian scalars and length-prefixed containers.
// Prefixes are reserved on Open and backpatched on Close; open containers
// nest through a LIFO stack of pending offsets.
// The zero value is ready to use. A Writer is not safe for concurrent use.
type Writer struct {
	buf     []byte
	pending []int
}

func (w *Writer) Reset() {
	w.buf = w.buf[:0]
	w.pending = w.pending[:0]
}

func (w *Writer) Len() int   { return len(w.buf) }
func (w *Writer) Depth() int { return len(w.pending) }

// Bytes returns the buffer without copying. It stays valid until the next write.
func (w *Writer) Bytes() []byte { return w.buf }

// Detach hands the buffer over to the caller and leaves the writer empty.
func (w *Writer) Detach() []byte {
	b := w.buf
	w.buf = nil
	w.pending = w.pending[:0]
	return b
}

// Reserve grows the capacity for at least n more bytes.
func (w *Writer) Reserve(n int) { w.buf = slices.Grow(w.buf, n) }

func (w *Writer) PutU8(v byte)      { w.buf = append(w.buf, v) }
func (w *Writer) PutU32(v uint32)   { w.buf = binary.LittleEndian.AppendUint32(w.buf, v) }
func (w *Writer) PutBytes(b []byte) { w.buf = append(w.buf, b...) }

func (w *Writer) PutBool(v bool) {
	if v {
		w.PutU8(1)
		return
	}
	w.PutU8(0)
}

// Open reserves a zeroed prefix slot at the end of the buffer and pushes its offset.
func (w *Writer) Open() {
	w.pending = append(w.pending, len(w.buf))
	w.buf = append(w.buf, 0, 0, 0, 0)
}

// Close pops the innermost pending slot and patches it with the number of
// bytes written after it.
func (w *Writer) Close() error {
	n := len(w.pending)
	if n == 0 {
		return ErrUnbalanced
	}
	off := w.pending[n-1]
	w.pending = w.pending[:n-1]

	size := len(w.buf) - off - PrefixSize
	if uint64(size) > math.MaxUint32 {
		return ErrTooLarge
	}
	binary.LittleEndian.PutUint32(w.buf[off:off+PrefixSize], uint32(size))
	return nil
}

type frame struct {
	end       int // absolute offset one past the payload
	mark      int // cursor at the last settlement
	remaining int // budget not yet settled
	announced bool
}

// Reader is a bounds-checked cursor over a buffer. Containers opened with
// Open push a budget frame; reads never cross the innermost frame's end.
// A Reader is not safe for concurrent use.
type Reader struct {
	buf    []byte
	pos    int
	frames []frame
}

func NewReader(b []byte) *Reader { return &Reader{buf: b} }

func (r *Reader) Reset(b []byte) {
	r.buf = b
	r.pos = 0
	r.frames = r.frames[:0]
}

func (r *Reader) Pos() int   { return r.pos }
func (r *Reader) Depth() int { return len(r.frames) }

// Unread reports the bytes left in the whole buffer.
func (r *Reader) Unread() int { return len(r.buf) - r.pos }

// Budget reports the bytes left in the innermost container, or in the buffer
// when no container is open.
func (r *Reader) Budget() int { return r.limit() - r.pos }

func (r *Reader) limit() int {
	if n := len(r.frames); n > 0 {
		return r.frames[n-1].end
	}
	return len(r.buf)
}

func (r *Reader) take(n int) ([]byte, error) {
	if n < 0 || n > len(r.buf)-r.pos {
		return nil, ErrShortBuffer
	}
	if n > r.limit()-r.pos {
		return nil, ErrBudget
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

func (r *Reader) U8() (byte, error) {
	b, err := r.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *Reader) U32() (uint32, error) {
	b, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

// Bytes returns the next n bytes as a subslice of the underlying buffer (no copy).
func (r *Reader) Bytes(n int) ([]byte, error) { return r.take(n) }

// Open reads a length prefix and pushes a budget frame covering the payload.
func (r *Reader) Open() error {
	n, err := r.U32()
	if err != nil {
		return err
	}
	if uint64(n) > uint64(len(r.buf)-r.pos) {
		return ErrShortBuffer
	}
	if uint64(n) > uint64(r.limit()-r.pos) {
		return ErrBudget
	}
	size := int(n)
	r.frames = append(r.frames, frame{end: r.pos + size, mark: r.pos, remaining: size})
	return nil
}

// Next charges the bytes consumed since the previous settlement to the
// innermost budget and reports whether another element follows.
// An announced element that consumed nothing is an error.
func (r *Reader) Next() (bool, error) {
	f, err := r.settle()
	if err != nil {
		return false, err
	}
	f.announced = f.remaining > 0
	return f.announced, nil
}

// Close settles the innermost frame, requires its budget to be exhausted and pops it.
func (r *Reader) Close() error {
	f, err := r.settle()
	if err != nil {
		return err
	}
	if f.remaining != 0 {
		return ErrTrailing
	}
	r.frames = r.frames[:len(r.frames)-1]
	return nil
}

// Done verifies that no container is open and the whole buffer was consumed.
func (r *Reader) Done() error {
	if len(r.frames) != 0 {
		return ErrUnbalanced
	}
	if r.pos != len(r.buf) {
		return ErrTrailing
	}
	return nil
}

func (r *Reader) settle() (*frame, error) {
	n := len(r.frames)
	if n == 0 {
		return nil, ErrUnbalanced
	}
	f := &r.frames[n-1]
	delta := r.pos - f.mark
	if delta == 0 && f.announced {
		return nil, ErrEmptyElement
	}
	if delta > f.remaining {
		return nil, ErrBudget
	}
	f.remaining -= delta
	f.mark = r.pos
	f.announced = false
	return f, nil
}

// Entry envelope used by stores:
//
//	magic(4) | ver(1) | len(u32 le) | payload(len)
const entryVersion byte = 1

var magic4 = [...]byte{'S', 'H', 'P', 'C'}

func hasMagic(b []byte) bool {
	return len(b) >= 4 && bytes.Equal(b[:4], magic4[:])
}

func EncodeEntry(payload []byte) ([]byte, error) {
	var w Writer
	w.Reserve(len(magic4) + 1 + PrefixSize + len(payload))
	w.PutBytes(magic4[:])
	w.PutU8(entryVersion)
	w.Open()
	w.PutBytes(payload)
	if err := w.Close(); err != nil {
		return nil, err
	}
	return w.Detach(), nil
}

// DecodeEntry returns the payload as a subslice of b (zero-copy).
func DecodeEntry(b []byte) ([]byte, error) {
	if len(b) < len(magic4)+1 || !hasMagic(b) || b[4] != entryVersion {
		return nil, ErrCorrupt
	}
	r := NewReader(b[5:])
	if err := r.Open(); err != nil {
		return nil, ErrCorrupt
	}
	payload, err := r.Bytes(r.Budget())
	if err != nil {
		return nil, ErrCorrupt
	}
	if err := r.Close(); err != nil {
		return nil, ErrCorrupt
	}
	if err := r.Done(); err != nil {
		return nil, ErrCorrupt
	}
	return payload, nil
}
