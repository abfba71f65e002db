package avcodec

import (
	"reflect"
)

type posKind uint8

const (
	posRoot posKind = iota
	posKey
	posIndex
	posValue
)

// cursor is an immutable position in the tree being decoded. Nested decodes
// derive new cursors from it and never modify the one they were handed.
type cursor struct {
	pos    posKind
	fields Item           // the root item, or the map holding key
	list   AttributeValue // the list holding index, or the value itself for posValue
	key    string
	index  int
	path   string
}

func rootCursor(item Item) cursor {
	return cursor{pos: posRoot, fields: item}
}

func valueCursor(av AttributeValue) cursor {
	return cursor{pos: posValue, list: av}
}

func (c cursor) atRoot() bool {
	return c.pos == posRoot
}

func (c cursor) child(fields Item, key string) cursor {
	return cursor{pos: posKey, fields: fields, key: key, path: keyPath(c.path, key)}
}

func (c cursor) elem(list AttributeValue, i int) cursor {
	return cursor{pos: posIndex, list: list, index: i, path: indexPath(c.path, i)}
}

// withValue reads av in place of whatever is stored at the cursor's path.
func (c cursor) withValue(av AttributeValue) cursor {
	return cursor{pos: posValue, list: av, path: c.path}
}

// fetch returns the value at the cursor. It is never found at the root,
// which has no single value. A value with no populated variant panics.
func (c cursor) fetch() (AttributeValue, bool) {
	var av AttributeValue
	var ok bool
	switch c.pos {
	case posKey:
		av, ok = c.fields[c.key]
	case posIndex:
		av, ok = c.list.Elem(c.index)
	case posValue:
		av, ok = c.list, true
	default:
		return av, false
	}
	if ok && !av.IsValid() {
		panic(emptyValuePanic(c.path))
	}
	return av, ok
}

// aggregate resolves the map an aggregate reads its entries from: the item
// itself at the root, the M stored at the cursor anywhere else.
func (c cursor) aggregate(typ reflect.Type) (Item, error) {
	if c.pos == posRoot {
		return c.fields, nil
	}
	av, ok := c.fetch()
	if !ok {
		return nil, errf(MissingField, c.path, typ, nil, "")
	}
	m, ok := av.AsMap()
	if !ok {
		return nil, c.wrongKind(av, typ, "M")
	}
	return m, nil
}

func (c cursor) wrongKind(av AttributeValue, typ reflect.Type, expected string) error {
	return errf(InvalidType, c.path, typ, nil, "expected %s, got %v", expected, av.Kind())
}
