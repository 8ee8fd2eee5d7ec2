package shapecodec

import (
	"fmt"
	"strings"
)

// Op names the stage that failed.
type Op string

const (
	OpCompile Op = "compile" // Go type to shape
	OpEncode  Op = "encode"
	OpDecode  Op = "decode"
)

// Kind classifies a failure. Compare with errors.Is against the Err* sentinels.
type Kind string

const (
	KindUnsupported   Kind = "unsupported_type"
	KindMalformed     Kind = "malformed"
	KindVariantRange  Kind = "variant_range"
	KindDepthLimit    Kind = "depth_limit"
	KindInvalidTarget Kind = "invalid_target"
)

// Sentinels for errors.Is. They match any *Error of the same Kind.
var (
	ErrUnsupportedType = &Error{Kind: KindUnsupported}
	ErrMalformed       = &Error{Kind: KindMalformed}
	ErrVariantRange    = &Error{Kind: KindVariantRange}
	ErrDepthLimit      = &Error{Kind: KindDepthLimit}
	ErrInvalidTarget   = &Error{Kind: KindInvalidTarget}
)

// Error is returned by every encode and decode failure.
type Error struct {
	Cause  error
	Op     Op
	Kind   Kind
	GoType string
	Detail string
	Path   []string // outermost first
	Offset int      // byte offset in the buffer, -1 if unknown
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("shapecodec: ")
	if e.Op != "" {
		b.WriteByte('[')
		b.WriteString(string(e.Op))
		b.WriteString("] ")
	}
	b.WriteString(string(e.Kind))

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(joinPath(e.Path))
	}
	if e.Offset >= 0 && e.Op != "" {
		fmt.Fprintf(&b, " (offset %d)", e.Offset)
	}
	if e.GoType != "" {
		b.WriteString(": Go type ")
		b.WriteString(e.GoType)
	}
	if e.Detail != "" {
		if e.GoType != "" {
			b.WriteString(" - ")
		} else {
			b.WriteString(": ")
		}
		b.WriteString(e.Detail)
	}
	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Cause }

// Is matches by Kind, and by Op when the target sets one.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Op != "" && t.Op != e.Op {
		return false
	}
	return e.Kind == t.Kind
}

func joinPath(p []string) string {
	var b strings.Builder
	for i, seg := range p {
		if i > 0 && !strings.HasPrefix(seg, "[") {
			b.WriteByte('.')
		}
		b.WriteString(seg)
	}
	return b.String()
}

func newError(op Op, kind Kind, offset int, detail string, args ...any) *Error {
	if len(args) > 0 {
		detail = fmt.Sprintf(detail, args...)
	}
	return &Error{Op: op, Kind: kind, Offset: offset, Detail: detail}
}

func unsupported(goType, detail string) *Error {
	return &Error{Op: OpCompile, Kind: KindUnsupported, GoType: goType, Detail: detail, Offset: -1}
}

// annotate prepends a path segment. The error is copied so shared values are never mutated.
func annotate(err error, seg string) error {
	e, ok := err.(*Error)
	if !ok {
		return err
	}
	cp := *e
	cp.Path = make([]string, 0, len(e.Path)+1)
	cp.Path = append(cp.Path, seg)
	cp.Path = append(cp.Path, e.Path...)
	return &cp
}
