package itemstore

import (
	"errors"
	"fmt"
	"strings"

	"github.com/andreyvit/avcodec"
)

var (
	ErrTableNotFound = errors.New("table not found")
	ErrTableExists   = errors.New("table already exists")
	ErrInvalidKey    = errors.New("invalid key")
	ErrReadOnly      = errors.New("write in a read-only transaction")
)

type TableError struct {
	Table string
	Key   []byte
	Msg   string
	Err   error
}

func tableErrf(table string, key []byte, err error, format string, args ...any) *TableError {
	return &TableError{table, key, fmt.Sprintf(format, args...), err}
}

func (e *TableError) Unwrap() error {
	return e.Err
}

func (e *TableError) Error() string {
	var buf strings.Builder
	buf.WriteString(e.Table)
	if e.Key != nil {
		buf.WriteByte('/')
		if tup, err := decodeTuple(e.Key); err == nil {
			buf.WriteString(tup.String())
		} else {
			buf.WriteString(hexstr(e.Key))
		}
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

func dataErrf(data []byte, off int, err error, format string, args ...any) error {
	return &avcodec.DataError{Data: data, Off: off, Err: err, Msg: fmt.Sprintf(format, args...)}
}
