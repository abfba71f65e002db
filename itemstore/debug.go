package itemstore

import (
	"fmt"
	"strings"
)

type DumpFlags uint64

const (
	DumpTableHeaders = DumpFlags(1 << iota)
	DumpItems
	DumpStats

	DumpAll = DumpFlags(0xFFFFFFFFFFFFFFFF)
)

var (
	dumpSep1 = strings.Repeat("=", 80)
	dumpSep2 = strings.Repeat("-", 60)
)

func (f DumpFlags) Contains(v DumpFlags) bool {
	return (f & v) == v
}

// Dump renders the contents of every table for debugging and tests.
func (tx *Tx) Dump(f DumpFlags) (string, error) {
	tables, err := tx.ListTables()
	if err != nil {
		return "", err
	}
	var buf strings.Builder
	for _, td := range tables {
		err := tx.dumpTable(&buf, f, td)
		if err != nil {
			return "", err
		}
	}
	return buf.String(), nil
}

func (tx *Tx) dumpTable(w *strings.Builder, f DumpFlags, td TableDescription) error {
	prefix := td.Name
	s, err := tx.TableStats(td.Name)
	if err != nil {
		return err
	}

	if f.Contains(DumpTableHeaders) {
		fmt.Fprintln(w, dumpSep1)
		if td.SortKey != "" {
			fmt.Fprintf(w, "%s [%s, %s] (%d items)\n", prefix, td.PartitionKey, td.SortKey, s.Items)
		} else {
			fmt.Fprintf(w, "%s [%s] (%d items)\n", prefix, td.PartitionKey, s.Items)
		}
	}
	if f.Contains(DumpStats) {
		fmt.Fprintf(w, "%s.stats: data_size = %d, data_alloc = %d\n", prefix, s.DataSize, s.DataAlloc)
	}

	if f.Contains(DumpItems) {
		if f.Contains(DumpStats) {
			fmt.Fprintln(w, dumpSep2)
		}
		tm, err := tx.table(td.Name)
		if err != nil {
			return err
		}
		b, err := tx.tableBucket(tm)
		if err != nil {
			return err
		}
		c := b.Cursor()
		var pos int
		for k, v := c.First(); k != nil; k, v = c.Next() {
			pos++
			item, meta, err := decodeStoredItem(v)
			if err != nil {
				fmt.Fprintf(w, "%s.%d = (m%d) ** ERROR: %v\n", prefix, pos, meta.ModCount, err)
				continue
			}
			var z string
			if meta.Compressed {
				z = " z"
			}
			fmt.Fprintf(w, "%s.%d = (m%d%s) %s\n", prefix, pos, meta.ModCount, z, loggableItem(item))
		}
	}
	return nil
}
