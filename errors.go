package avcodec

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// ErrorKind classifies codec failures. Each kind is itself an error, so
// callers can test for it with errors.Is(err, avcodec.MissingField).
type ErrorKind int

const (
	// MissingField: a required position is absent.
	MissingField ErrorKind = iota + 1
	// InvalidType: wrong variant for the requested shape, or a number/char failed to parse.
	InvalidType
	// MissingAggregateRoot: the root value is not a struct, tuple, map or enum.
	MissingAggregateRoot
	// UnsupportedKeyType: a composite value was used as a map key.
	UnsupportedKeyType
	// UnsupportedShape: the shape cannot be represented in either direction.
	UnsupportedShape
	// UnknownField: a stored key matches no struct field (strict decoding only).
	UnknownField
)

func (k ErrorKind) Error() string {
	switch k {
	case MissingField:
		return "missing field"
	case InvalidType:
		return "invalid type"
	case MissingAggregateRoot:
		return "base value must be an aggregate"
	case UnsupportedKeyType:
		return "key not representable"
	case UnsupportedShape:
		return "unsupported shape"
	case UnknownField:
		return "unknown field"
	default:
		return "ErrorKind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Error is returned by every encode and decode operation.
type Error struct {
	Kind ErrorKind
	Path string       // key path of the offending position, empty for the root
	Type reflect.Type // Go type being encoded or decoded, if known
	Msg  string
	Err  error
}

func errf(kind ErrorKind, path string, typ reflect.Type, err error, format string, args ...any) error {
	return &Error{kind, path, typ, fmt.Sprintf(format, args...), err}
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	k, ok := target.(ErrorKind)
	return ok && k == e.Kind
}

func (e *Error) Error() string {
	var buf strings.Builder
	buf.WriteString("avcodec: ")
	if e.Path != "" {
		buf.WriteString(e.Path)
		buf.WriteString(": ")
	}
	buf.WriteString(e.Kind.Error())
	if e.Type != nil {
		buf.WriteString(" (")
		buf.WriteString(e.Type.String())
		buf.WriteByte(')')
	}
	if e.Msg != "" {
		buf.WriteString(": ")
		buf.WriteString(e.Msg)
	}
	if e.Err != nil {
		buf.WriteString(": ")
		buf.WriteString(e.Err.Error())
	}
	return buf.String()
}

// DataError reports malformed serialized data.
type DataError struct {
	Data []byte
	Off  int
	Err  error
	Msg  string
}

func dataErrf(data []byte, off int, err error, format string, args ...any) error {
	return &DataError{data, off, err, fmt.Sprintf(format, args...)}
}

func (e *DataError) Unwrap() error {
	return e.Err
}

func (e *DataError) Error() string {
	const prefixLen = 64
	const suffixLen = 32
	n := len(e.Data)
	if n <= prefixLen+suffixLen {
		if e.Err != nil {
			return fmt.Sprintf("%s: %v: (%d) %x", e.Msg, e.Err, n, e.Data)
		} else {
			return fmt.Sprintf("%s: (%d) %x", e.Msg, n, e.Data)
		}
	} else {
		p, s := e.Data[:prefixLen], e.Data[n-suffixLen:]
		if e.Err != nil {
			return fmt.Sprintf("%s: %v: (%d) %x...%x", e.Msg, e.Err, n, p, s)
		} else {
			return fmt.Sprintf("%s: (%d) %x...%x", e.Msg, n, p, s)
		}
	}
}

func keyPath(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}

func indexPath(path string, i int) string {
	return path + "[" + strconv.Itoa(i) + "]"
}
