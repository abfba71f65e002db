package itemstore

import "context"

type TableStats struct {
	Items int

	DataSize  int64
	DataAlloc int64
}

func (tx *Tx) TableStats(table string) (TableStats, error) {
	tm, err := tx.table(table)
	if err != nil {
		return TableStats{}, err
	}
	b, err := tx.tableBucket(tm)
	if err != nil {
		return TableStats{}, err
	}
	bs := b.Stats()
	return TableStats{
		Items:     bs.KeyN,
		DataSize:  bs.LeafInuse,
		DataAlloc: bs.TotalAlloc(),
	}, nil
}

func (s *Store) TableStats(ctx context.Context, table string) (ts TableStats, err error) {
	err = s.View(ctx, func(tx *Tx) error {
		ts, err = tx.TableStats(table)
		return err
	})
	return
}

// Size returns the size of the underlying database in bytes.
func (tx *Tx) Size() int64 {
	return tx.stx.Size()
}
