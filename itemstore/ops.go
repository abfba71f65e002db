package itemstore

import (
	"bytes"
	"context"

	"github.com/andreyvit/avcodec"
)

// ItemMeta describes how an item is stored.
type ItemMeta struct {
	// ModCount is incremented by every Put that changes the item.
	ModCount   uint64
	Format     avcodec.Format
	Compressed bool
	// Size is the stored size in bytes, not counting the header.
	Size int
}

// PutItem writes the item, replacing any item with the same key. Writing an
// identical item is a no-op that keeps the mod count.
func (tx *Tx) PutItem(table string, item avcodec.Item) (ItemMeta, error) {
	if err := tx.checkWritable(); err != nil {
		return ItemMeta{}, err
	}
	tm, err := tx.table(table)
	if err != nil {
		return ItemMeta{}, err
	}
	b, err := tx.tableBucket(tm)
	if err != nil {
		return ItemMeta{}, err
	}

	keyBuf := keyBytesPool.Get().([]byte)
	defer keyBytesPool.Put(keyBuf[:0])
	keyRaw, err := tm.encodeKey(keyBuf, item)
	if err != nil {
		return ItemMeta{}, err
	}

	rawBuf := valueBytesPool.Get().([]byte)
	defer valueBytesPool.Put(rawBuf[:0])
	raw, err := avcodec.AppendItem(rawBuf, tx.store.format, item)
	if err != nil {
		return ItemMeta{}, tableErrf(table, keyRaw, err, "encoding item")
	}
	if len(raw) > maxRawSize {
		return ItemMeta{}, tableErrf(table, keyRaw, nil, "item size %d exceeds the limit of %d bytes", len(raw), maxRawSize)
	}

	var old value
	oldValueRaw := b.Get(keyRaw)
	if oldValueRaw != nil {
		if err := old.decode(oldValueRaw); err != nil {
			return ItemMeta{}, tableErrf(table, keyRaw, err, "decoding old value")
		}
		if old.Flags.format() == tx.store.format {
			oldRaw, err := old.plain(nil)
			if err != nil {
				return ItemMeta{}, tableErrf(table, keyRaw, err, "decoding old value")
			}
			if bytes.Equal(oldRaw, raw) {
				if tx.store.verbose {
					tx.store.logf("db: PUT.NOOP %s/%v => m=%d %s", table, tm.keyItem(item), old.ModCount, loggableItem(item))
				}
				return old.ItemMeta(), nil
			}
		}
	}
	newModCount := old.ModCount + 1

	valueBuf := valueBytesPool.Get().([]byte)
	valueRaw := reserveValueHeader(valueBuf)
	var compressed bool
	if tx.store.compress {
		valueRaw, compressed = compress(valueRaw, raw)
	}
	if !compressed {
		valueRaw = appendRaw(valueRaw, raw)
	}
	valueRaw = putValueHeader(valueRaw, makeValueFlags(tx.store.format, compressed), newModCount, len(raw))
	tx.addValueBuf(valueRaw)

	if err := b.Put(keyRaw, valueRaw); err != nil {
		return ItemMeta{}, tableErrf(table, keyRaw, err, "put")
	}
	tx.markWritten()

	if tx.store.verbose {
		tx.store.logf("db: PUT %s/%v => m=%d %s", table, tm.keyItem(item), newModCount, loggableItem(item))
	}

	var vle value
	if err := vle.decode(valueRaw); err != nil {
		panic(err) // we just wrote it
	}
	return vle.ItemMeta(), nil
}

// GetItem returns the item with the given key attributes, or nil if there
// is none.
func (tx *Tx) GetItem(table string, key avcodec.Item) (avcodec.Item, ItemMeta, error) {
	tm, err := tx.table(table)
	if err != nil {
		return nil, ItemMeta{}, err
	}
	b, err := tx.tableBucket(tm)
	if err != nil {
		return nil, ItemMeta{}, err
	}

	keyBuf := keyBytesPool.Get().([]byte)
	defer keyBytesPool.Put(keyBuf[:0])
	keyRaw, err := tm.encodeKey(keyBuf, key)
	if err != nil {
		return nil, ItemMeta{}, err
	}

	valueRaw := b.Get(keyRaw)
	if valueRaw == nil {
		if tx.store.verbose {
			tx.store.logf("db: GET %s/%v => NONE", table, key)
		}
		return nil, ItemMeta{}, nil
	}
	item, meta, err := decodeStoredItem(valueRaw)
	if err != nil {
		return nil, meta, tableErrf(table, keyRaw, err, "")
	}
	if tx.store.verbose {
		tx.store.logf("db: GET %s/%v => m=%d", table, key, meta.ModCount)
	}
	return item, meta, nil
}

// DeleteItem removes the item with the given key attributes and reports
// whether it existed.
func (tx *Tx) DeleteItem(table string, key avcodec.Item) (bool, error) {
	if err := tx.checkWritable(); err != nil {
		return false, err
	}
	tm, err := tx.table(table)
	if err != nil {
		return false, err
	}
	b, err := tx.tableBucket(tm)
	if err != nil {
		return false, err
	}

	keyBuf := keyBytesPool.Get().([]byte)
	defer keyBytesPool.Put(keyBuf[:0])
	keyRaw, err := tm.encodeKey(keyBuf, key)
	if err != nil {
		return false, err
	}
	if b.Get(keyRaw) == nil {
		if tx.store.verbose {
			tx.store.logf("db: DELETE.NOTFOUND %s/%v", table, key)
		}
		return false, nil
	}
	if err := b.Delete(keyRaw); err != nil {
		return false, tableErrf(table, keyRaw, err, "delete")
	}
	tx.markWritten()
	if tx.store.verbose {
		tx.store.logf("db: DELETE %s/%v", table, key)
	}
	return true, nil
}

func decodeStoredItem(valueRaw []byte) (avcodec.Item, ItemMeta, error) {
	var vle value
	if err := vle.decode(valueRaw); err != nil {
		return nil, ItemMeta{}, err
	}
	item, err := vle.item()
	if err != nil {
		return nil, vle.ItemMeta(), err
	}
	return item, vle.ItemMeta(), nil
}

func loggableItem(item avcodec.Item) string {
	if item == nil {
		return "<none>"
	}
	return avcodec.MapValue(item).String()
}

func (s *Store) CreateTable(ctx context.Context, name string, ks KeySchema) error {
	return s.Update(ctx, func(tx *Tx) error {
		return tx.CreateTable(name, ks)
	})
}

func (s *Store) DeleteTable(ctx context.Context, name string) error {
	return s.Update(ctx, func(tx *Tx) error {
		return tx.DeleteTable(name)
	})
}

func (s *Store) DescribeTable(ctx context.Context, name string) (td TableDescription, err error) {
	err = s.View(ctx, func(tx *Tx) error {
		td, err = tx.DescribeTable(name)
		return err
	})
	return
}

func (s *Store) ListTables(ctx context.Context) (tables []TableDescription, err error) {
	err = s.View(ctx, func(tx *Tx) error {
		tables, err = tx.ListTables()
		return err
	})
	return
}

func (s *Store) PutItem(ctx context.Context, table string, item avcodec.Item) (meta ItemMeta, err error) {
	err = s.Update(ctx, func(tx *Tx) error {
		meta, err = tx.PutItem(table, item)
		return err
	})
	return
}

func (s *Store) GetItem(ctx context.Context, table string, key avcodec.Item) (item avcodec.Item, err error) {
	err = s.View(ctx, func(tx *Tx) error {
		item, _, err = tx.GetItem(table, key)
		return err
	})
	return
}

func (s *Store) DeleteItem(ctx context.Context, table string, key avcodec.Item) (found bool, err error) {
	err = s.Update(ctx, func(tx *Tx) error {
		found, err = tx.DeleteItem(table, key)
		return err
	})
	return
}

func (s *Store) Query(ctx context.Context, table string, q *avcodec.Query, opt QueryOptions) (items []avcodec.Item, err error) {
	err = s.View(ctx, func(tx *Tx) error {
		items, err = All(tx.Query(table, q, opt))
		return err
	})
	return
}

func (s *Store) Scan(ctx context.Context, table string, opt QueryOptions) (items []avcodec.Item, err error) {
	err = s.View(ctx, func(tx *Tx) error {
		items, err = All(tx.Scan(table, opt))
		return err
	})
	return
}
