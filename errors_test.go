package shapecodec

import (
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/unkn0wn-root/shapecodec/internal/wire"
)

func TestErrorIsMatchesKind(t *testing.T) {
	err := &Error{Op: OpDecode, Kind: KindMalformed, Offset: 3, Cause: wire.ErrBudget}

	if !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected match on kind")
	}
	if errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("unexpected match on other kind")
	}
	if !errors.Is(err, &Error{Op: OpDecode, Kind: KindMalformed}) {
		t.Fatalf("expected match on op and kind")
	}
	if errors.Is(err, &Error{Op: OpEncode, Kind: KindMalformed}) {
		t.Fatalf("unexpected match on other op")
	}
	if !errors.Is(err, wire.ErrBudget) {
		t.Fatalf("expected cause to unwrap")
	}
}

func TestErrorMessage(t *testing.T) {
	err := &Error{
		Op:     OpDecode,
		Kind:   KindMalformed,
		Path:   []string{"Items", "[2]", "Flag"},
		Offset: 17,
		GoType: "bool",
		Detail: "invalid bool byte 0x05",
		Cause:  wire.ErrShortBuffer,
	}
	msg := err.Error()
	for _, want := range []string{
		"[decode] malformed",
		"at Items[2].Flag",
		"(offset 17)",
		"Go type bool - invalid bool byte 0x05",
		"caused by: wire: unexpected end of input",
	} {
		if !strings.Contains(msg, want) {
			t.Fatalf("message %q lacks %q", msg, want)
		}
	}
}

func TestAnnotateCopies(t *testing.T) {
	base := &Error{Kind: KindMalformed, Path: []string{"B"}}
	got := annotate(base, "A").(*Error)
	if strings.Join(got.Path, ".") != "A.B" {
		t.Fatalf("path = %v", got.Path)
	}
	if len(base.Path) != 1 {
		t.Fatalf("original mutated: %v", base.Path)
	}

	annotate(ErrMalformed, "X")
	if len(ErrMalformed.Path) != 0 {
		t.Fatalf("sentinel mutated: %v", ErrMalformed.Path)
	}

	plain := errors.New("plain")
	if annotate(plain, "X") != plain {
		t.Fatalf("foreign errors must pass through")
	}
}

type entry struct {
	level string
	msg   string
	f     Fields
}

type recordingLogger struct {
	mu      sync.Mutex
	entries []entry
}

func (l *recordingLogger) add(level, msg string, f Fields) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, entry{level, msg, f})
}

func (l *recordingLogger) Debug(msg string, f Fields) { l.add("debug", msg, f) }
func (l *recordingLogger) Info(msg string, f Fields)  { l.add("info", msg, f) }
func (l *recordingLogger) Warn(msg string, f Fields)  { l.add("warn", msg, f) }
func (l *recordingLogger) Error(msg string, f Fields) { l.add("error", msg, f) }

func TestFailuresAreLogged(t *testing.T) {
	log := &recordingLogger{}
	e := NewEncoder(Options{Logger: log})
	if _, err := e.Encode(int64(1)); err == nil {
		t.Fatalf("expected error")
	}
	d := NewDecoder(Options{Logger: log})
	var p pair
	if err := d.Decode([]byte{0x02}, &p); err == nil {
		t.Fatalf("expected error")
	}
	if _, err := e.Encode(uint8(1)); err != nil {
		t.Fatalf("Encode: %v", err)
	}

	if len(log.entries) != 2 {
		t.Fatalf("expected 2 log entries, got %d", len(log.entries))
	}
	if log.entries[0].level != "debug" || log.entries[0].f["type"] != "int64" {
		t.Fatalf("unexpected encode entry: %+v", log.entries[0])
	}
	if log.entries[1].msg != "shapecodec: decode failed" || log.entries[1].f["err"] == nil {
		t.Fatalf("unexpected decode entry: %+v", log.entries[1])
	}
}

func TestZeroValueEncoderDecoder(t *testing.T) {
	var e Encoder
	b, err := e.Encode([]uint8{1})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	var d Decoder
	var out []uint8
	if err := d.Decode(b, &out); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(out) != 1 || out[0] != 1 {
		t.Fatalf("got %v", out)
	}
}
