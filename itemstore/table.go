package itemstore

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/andreyvit/avcodec"
	"github.com/vmihailenco/msgpack/v5"
)

const (
	tablesBucket      = "tables"
	tableBucketPrefix = "t:"
)

// KeySchema names the key attributes of a table.
type KeySchema struct {
	PartitionKey string `msgpack:"pk"`
	SortKey      string `msgpack:"sk,omitempty"`
}

// TableDescription is what DescribeTable and ListTables report.
type TableDescription struct {
	Name string
	KeySchema
	Created time.Time
}

type tableMeta struct {
	name string
	KeySchema
	Created time.Time `msgpack:"ct"`
}

func (tm *tableMeta) bucketName() string {
	return tableBucketPrefix + tm.name
}

func (tm *tableMeta) description() TableDescription {
	return TableDescription{Name: tm.name, KeySchema: tm.KeySchema, Created: tm.Created}
}

func validateTableName(name string) error {
	if name == "" {
		return fmt.Errorf("itemstore: empty table name")
	}
	if len(name) > 255 || strings.ContainsAny(name, "\x00") {
		return fmt.Errorf("itemstore: invalid table name %q", name)
	}
	return nil
}

func (ks KeySchema) validate() error {
	if ks.PartitionKey == "" {
		return fmt.Errorf("itemstore: partition key name is required")
	}
	if ks.SortKey == ks.PartitionKey {
		return fmt.Errorf("itemstore: sort key %q duplicates the partition key", ks.SortKey)
	}
	return nil
}

func (ks KeySchema) names() []string {
	if ks.SortKey == "" {
		return []string{ks.PartitionKey}
	}
	return []string{ks.PartitionKey, ks.SortKey}
}

func (tx *Tx) CreateTable(name string, ks KeySchema) error {
	if err := tx.checkWritable(); err != nil {
		return err
	}
	if err := validateTableName(name); err != nil {
		return err
	}
	if err := ks.validate(); err != nil {
		return err
	}
	if _, err := tx.table(name); err == nil {
		return tableErrf(name, nil, ErrTableExists, "")
	}

	tm := &tableMeta{name: name, KeySchema: ks, Created: time.Now().UTC().Truncate(time.Millisecond)}
	raw, err := msgpack.Marshal(tm)
	if err != nil {
		return tableErrf(name, nil, err, "encoding table metadata")
	}
	tb, err := tx.stx.CreateBucket(tablesBucket)
	if err != nil {
		return tableErrf(name, nil, err, "creating %s bucket", tablesBucket)
	}
	if err := tb.Put([]byte(name), raw); err != nil {
		return tableErrf(name, nil, err, "saving table metadata")
	}
	if _, err := tx.stx.CreateBucket(tm.bucketName()); err != nil {
		return tableErrf(name, nil, err, "creating bucket")
	}
	tx.markWritten()
	if tx.tables == nil {
		tx.tables = make(map[string]*tableMeta)
	}
	tx.tables[name] = tm

	if tx.store.verbose {
		tx.store.logf("db: CREATE TABLE %s (%s)", name, strings.Join(ks.names(), ", "))
	}
	return nil
}

// DeleteTable drops the table and all of its items.
func (tx *Tx) DeleteTable(name string) error {
	if err := tx.checkWritable(); err != nil {
		return err
	}
	tm, err := tx.table(name)
	if err != nil {
		return err
	}
	if err := tx.stx.DeleteBucket(tm.bucketName()); err != nil && err != ErrBucketNotFound {
		return tableErrf(name, nil, err, "deleting bucket")
	}
	if err := tx.stx.Bucket(tablesBucket).Delete([]byte(name)); err != nil {
		return tableErrf(name, nil, err, "deleting table metadata")
	}
	delete(tx.tables, name)
	tx.markWritten()

	if tx.store.verbose {
		tx.store.logf("db: DELETE TABLE %s", name)
	}
	return nil
}

func (tx *Tx) DescribeTable(name string) (TableDescription, error) {
	tm, err := tx.table(name)
	if err != nil {
		return TableDescription{}, err
	}
	return tm.description(), nil
}

// ListTables returns all tables ordered by name.
func (tx *Tx) ListTables() ([]TableDescription, error) {
	tb := tx.stx.Bucket(tablesBucket)
	if tb == nil {
		return nil, nil
	}
	var result []TableDescription
	c := tb.Cursor()
	for k, v := c.First(); k != nil; k, v = c.Next() {
		tm, err := decodeTableMeta(string(k), v)
		if err != nil {
			return nil, err
		}
		result = append(result, tm.description())
	}
	slices.SortFunc(result, func(a, b TableDescription) int {
		return strings.Compare(a.Name, b.Name)
	})
	return result, nil
}

func (tx *Tx) table(name string) (*tableMeta, error) {
	if tm := tx.tables[name]; tm != nil {
		return tm, nil
	}
	tb := tx.stx.Bucket(tablesBucket)
	var raw []byte
	if tb != nil {
		raw = tb.Get([]byte(name))
	}
	if raw == nil {
		return nil, tableErrf(name, nil, ErrTableNotFound, "")
	}
	tm, err := decodeTableMeta(name, raw)
	if err != nil {
		return nil, err
	}
	if tx.tables == nil {
		tx.tables = make(map[string]*tableMeta)
	}
	tx.tables[name] = tm
	return tm, nil
}

func decodeTableMeta(name string, raw []byte) (*tableMeta, error) {
	tm := &tableMeta{name: name}
	if err := msgpack.Unmarshal(raw, tm); err != nil {
		return nil, tableErrf(name, nil, dataErrf(raw, 0, err, "invalid table metadata"), "")
	}
	return tm, nil
}

func (tx *Tx) tableBucket(tm *tableMeta) (storageBucket, error) {
	b := tx.stx.Bucket(tm.bucketName())
	if b == nil {
		return nil, tableErrf(tm.name, nil, ErrBucketNotFound, "missing items bucket")
	}
	return b, nil
}

// encodeKey builds the storage key from the item's key attributes.
func (tm *tableMeta) encodeKey(buf []byte, item avcodec.Item) ([]byte, error) {
	var tb tupleEncoder
	for _, name := range tm.names() {
		av, found := item[name]
		if !found {
			return nil, tableErrf(tm.name, nil, ErrInvalidKey, "missing key attribute %s", name)
		}
		tb.begin(buf)
		var ok bool
		buf, ok = appendKeyElement(buf, av)
		if !ok {
			return nil, tableErrf(tm.name, nil, ErrInvalidKey, "key attribute %s must be a non-empty S, N or B, got %v", name, av.Kind())
		}
	}
	return tb.finalize(buf), nil
}

// keyItem extracts the key attributes of an item.
func (tm *tableMeta) keyItem(item avcodec.Item) avcodec.Item {
	key := make(avcodec.Item, 2)
	for _, name := range tm.names() {
		if av, ok := item[name]; ok {
			key[name] = av
		}
	}
	return key
}

// decodeKey turns a storage key back into key attributes.
func (tm *tableMeta) decodeKey(raw []byte) (avcodec.Item, error) {
	tup, err := decodeTuple(raw)
	if err != nil {
		return nil, err
	}
	names := tm.names()
	if len(tup) != len(names) {
		return nil, fmt.Errorf("key has %d elements, wanted %d", len(tup), len(names))
	}
	key := make(avcodec.Item, len(names))
	for i, name := range names {
		av, err := decodeKeyElement(tup[i])
		if err != nil {
			return nil, err
		}
		key[name] = av
	}
	return key, nil
}
