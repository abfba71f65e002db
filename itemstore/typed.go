package itemstore

import (
	"context"

	"github.com/andreyvit/avcodec"
)

// Put encodes v with avcodec and stores it in table.
func Put[T any](ctx context.Context, s *Store, table string, v T) (ItemMeta, error) {
	item, err := avcodec.Marshal(v)
	if err != nil {
		return ItemMeta{}, err
	}
	return s.PutItem(ctx, table, item)
}

// Get loads the item whose key attributes are the fields of key (any
// struct or map accepted by avcodec.Marshal), returning nil if not found.
func Get[T any](ctx context.Context, s *Store, table string, key any) (*T, error) {
	keyItem, err := avcodec.Marshal(key)
	if err != nil {
		return nil, err
	}
	item, err := s.GetItem(ctx, table, keyItem)
	if err != nil || item == nil {
		return nil, err
	}
	result := new(T)
	if err := avcodec.Unmarshal(item, result); err != nil {
		return nil, tableErrf(table, nil, err, "decoding item")
	}
	return result, nil
}

// QueryInto selects items whose attributes equal the set fields of filter
// (see avcodec.BuildQuery) and decodes them into T.
func QueryInto[T any](ctx context.Context, s *Store, table string, filter any, opt QueryOptions) ([]T, error) {
	q, err := avcodec.BuildQuery(filter)
	if err != nil {
		return nil, err
	}
	items, err := s.Query(ctx, table, q, opt)
	if err != nil {
		return nil, err
	}
	result := make([]T, len(items))
	for i, item := range items {
		if err := avcodec.Unmarshal(item, &result[i]); err != nil {
			return nil, tableErrf(table, nil, err, "decoding item")
		}
	}
	return result, nil
}
