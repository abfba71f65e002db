package itemstore

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"
)

type Tx struct {
	store    *Store
	stx      storageTx
	ctx      context.Context
	writable bool
	written  bool
	closed   bool

	startTime time.Time
	stack     string

	tables map[string]*tableMeta

	// Bolt requires values passed to Put to stay intact until the
	// transaction ends.
	valueBufs [][]byte
}

// View runs f in a read-only transaction.
func (s *Store) View(ctx context.Context, f func(tx *Tx) error) error {
	tx, err := s.Begin(ctx, false)
	if err != nil {
		return err
	}
	defer tx.Close()
	return safelyCall(f, tx)
}

// Update runs f in a writable transaction, committing if f returns nil and
// ctx is still alive. A panic in f is returned as an error and rolls back.
func (s *Store) Update(ctx context.Context, f func(tx *Tx) error) error {
	tx, err := s.Begin(ctx, true)
	if err != nil {
		return err
	}
	defer tx.Close()
	err = safelyCall(f, tx)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return tx.Commit()
}

// Begin starts a transaction that must be closed by the caller.
func (s *Store) Begin(ctx context.Context, writable bool) (*Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	stx, err := s.st.BeginTx(writable)
	if err != nil {
		return nil, fmt.Errorf("itemstore: begin: %w", err)
	}
	tx := &Tx{
		store:     s,
		stx:       stx,
		ctx:       ctx,
		writable:  writable,
		startTime: time.Now(),
	}
	if writable {
		s.WriterCount.Add(1)
		s.WriteCount.Add(1)
	} else {
		s.ReaderCount.Add(1)
		s.ReadCount.Add(1)
	}
	if trackTxns {
		tx.stack = string(debug.Stack())
		s.addTx(tx)
	}
	return tx, nil
}

type panicked struct {
	reason any
	stack  string
}

func (p panicked) Error() string {
	return fmt.Sprintf("panic: %v\n\n%s", p.reason, p.stack)
}

func safelyCall(fn func(*Tx) error, tx *Tx) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = panicked{p, string(debug.Stack())}
		}
	}()
	return fn(tx)
}

func (tx *Tx) Store() *Store {
	return tx.store
}

func (tx *Tx) Context() context.Context {
	return tx.ctx
}

func (tx *Tx) IsWritable() bool {
	return tx.writable
}

func (tx *Tx) checkWritable() error {
	if !tx.writable {
		return ErrReadOnly
	}
	return nil
}

func (tx *Tx) markWritten() {
	tx.written = true
}

func (tx *Tx) addValueBuf(buf []byte) {
	if tx.valueBufs == nil {
		tx.valueBufs = arrayOfBytesPool.Get().([][]byte)
	}
	tx.valueBufs = append(tx.valueBufs, buf)
}

func (tx *Tx) Commit() error {
	if tx.closed {
		return fmt.Errorf("itemstore: commit of a closed transaction")
	}
	err := tx.stx.Commit()
	if err != nil {
		return fmt.Errorf("itemstore: commit: %w", err)
	}
	if tx.written && tx.store.verbose {
		tx.store.logf("db: COMMIT after %d ms", time.Since(tx.startTime).Milliseconds())
	}
	return nil
}

// Close rolls back the transaction unless it has been committed.
func (tx *Tx) Close() {
	if tx.closed {
		return
	}
	tx.closed = true
	err := tx.stx.Rollback()
	if err != nil {
		panic(err) // not expected to happen, Rollback after Commit is a no-op
	}
	if tx.writable {
		tx.store.WriterCount.Add(-1)
	} else {
		tx.store.ReaderCount.Add(-1)
	}
	if trackTxns {
		tx.store.removeTx(tx)
	}
	tx.release()
}

func (tx *Tx) release() {
	if tx.valueBufs != nil {
		for i, buf := range tx.valueBufs {
			valueBytesPool.Put(buf[:0])
			tx.valueBufs[i] = nil
		}
		arrayOfBytesPool.Put(tx.valueBufs[:0])
		tx.valueBufs = nil
	}
}
