package itemstore

import (
	"bytes"

	"github.com/andreyvit/avcodec"
)

type QueryOptions struct {
	// Limit caps the number of returned items, 0 means no limit.
	Limit   int
	Reverse bool
}

// Cursor iterates over items of a table in key order.
//
//	c := tx.Query("pets", q, itemstore.QueryOptions{})
//	for c.Next() {
//		item := c.Item()
//	}
//	if err := c.Err(); err != nil { ... }
type Cursor struct {
	tx      *Tx
	tm      *tableMeta
	sc      storageCursor
	prefix  []byte
	pk      []byte
	query   *avcodec.Query
	reverse bool
	limit   int

	started bool
	done    bool
	count   int
	steps   int

	key  avcodec.Item
	item avcodec.Item
	meta ItemMeta
	err  error
}

// ctxCheckInterval is how many storage steps a cursor makes between
// context checks.
const ctxCheckInterval = 256

// Query returns a cursor over items matching q. When q constrains the
// partition key, only that partition is visited; otherwise the whole
// table is scanned and filtered.
func (tx *Tx) Query(table string, q *avcodec.Query, opt QueryOptions) *Cursor {
	c := &Cursor{tx: tx, query: q, reverse: opt.Reverse, limit: opt.Limit}
	tm, err := tx.table(table)
	if err != nil {
		c.fail(err)
		return c
	}
	c.tm = tm
	b, err := tx.tableBucket(tm)
	if err != nil {
		c.fail(err)
		return c
	}
	c.sc = b.Cursor()

	if q != nil {
		if av, ok := q.ExpressionAttributeValues[":"+tm.PartitionKey]; ok {
			pk, ok := appendKeyElement(nil, av)
			if !ok {
				c.fail(tableErrf(table, nil, ErrInvalidKey, "key attribute %s must be a non-empty S, N or B, got %v", tm.PartitionKey, av.Kind()))
				return c
			}
			c.pk = pk
			c.prefix = pk
		}
	}
	return c
}

// Scan returns a cursor over all items of the table.
func (tx *Tx) Scan(table string, opt QueryOptions) *Cursor {
	return tx.Query(table, nil, opt)
}

func (c *Cursor) fail(err error) {
	c.err = err
	c.done = true
	c.item, c.key = nil, nil
}

func (c *Cursor) first() ([]byte, []byte) {
	switch {
	case c.prefix == nil && !c.reverse:
		return c.sc.First()
	case c.prefix == nil:
		return c.sc.Last()
	case !c.reverse:
		return c.sc.Seek(c.prefix)
	default:
		return c.sc.SeekLast(c.prefix)
	}
}

func (c *Cursor) step() ([]byte, []byte) {
	if c.reverse {
		return c.sc.Prev()
	}
	return c.sc.Next()
}

func (c *Cursor) Next() bool {
	if c.done {
		return false
	}
	if c.limit > 0 && c.count >= c.limit {
		c.done = true
		c.item, c.key = nil, nil
		return false
	}
	for {
		var k, v []byte
		if !c.started {
			c.started = true
			k, v = c.first()
		} else {
			k, v = c.step()
		}
		if k == nil || (c.prefix != nil && !bytes.HasPrefix(k, c.prefix)) {
			c.done = true
			c.item, c.key = nil, nil
			return false
		}

		c.steps++
		if c.steps%ctxCheckInterval == 0 {
			if err := c.tx.ctx.Err(); err != nil {
				c.fail(err)
				return false
			}
		}

		if c.pk != nil {
			// a longer partition key value can share the prefix
			tup, err := decodeTuple(k)
			if err != nil {
				c.fail(tableErrf(c.tm.name, k, err, "invalid key"))
				return false
			}
			if len(tup) == 0 || !bytes.Equal(tup[0], c.pk) {
				continue
			}
		}

		item, meta, err := decodeStoredItem(v)
		if err != nil {
			c.fail(tableErrf(c.tm.name, k, err, ""))
			return false
		}
		if c.query != nil && !c.query.Matches(item) {
			continue
		}
		key, err := c.tm.decodeKey(k)
		if err != nil {
			c.fail(tableErrf(c.tm.name, k, err, "invalid key"))
			return false
		}
		c.key, c.item, c.meta = key, item, meta
		c.count++
		return true
	}
}

// Key returns the key attributes of the current item.
func (c *Cursor) Key() avcodec.Item {
	return c.key
}

func (c *Cursor) Item() avcodec.Item {
	return c.item
}

func (c *Cursor) Meta() ItemMeta {
	return c.meta
}

func (c *Cursor) Err() error {
	return c.err
}

// All collects the remaining items of the cursor.
func All(c *Cursor) ([]avcodec.Item, error) {
	var items []avcodec.Item
	for c.Next() {
		items = append(items, c.Item())
	}
	return items, c.Err()
}
