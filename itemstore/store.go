// Package itemstore keeps avcodec items in an embedded sorted key-value
// store, laid out like DynamoDB tables: each table has a partition key and
// an optional sort key, and items are addressed by their key attributes.
package itemstore

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/andreyvit/avcodec"
	"go.etcd.io/bbolt"
)

const trackTxns = true

type Store struct {
	st       storage
	logf     func(format string, args ...any)
	verbose  bool
	format   avcodec.Format
	compress bool

	ReaderCount atomic.Int64
	WriterCount atomic.Int64
	ReadCount   atomic.Uint64
	WriteCount  atomic.Uint64

	txns     []*Tx
	txnsLock sync.Mutex
}

type Options struct {
	Logf      func(format string, args ...any)
	Verbose   bool
	IsTesting bool
	MmapSize  int

	// Format is used for newly written items. Items written in other
	// formats stay readable.
	Format avcodec.Format

	// Compress enables zstd compression of larger items.
	Compress bool
}

// Open opens or creates a Bolt database file.
func Open(path string, opt Options) (*Store, error) {
	bopt := &bbolt.Options{}
	*bopt = *bbolt.DefaultOptions
	bopt.Timeout = 10 * time.Second
	if opt.IsTesting {
		bopt.NoSync = true
		bopt.NoFreelistSync = true
		bopt.InitialMmapSize = 1024 * 1024 * 5
	} else {
		bopt.InitialMmapSize = 1024 * 1024 * 256
		bopt.FreelistType = bbolt.FreelistMapType
	}
	if opt.MmapSize != 0 {
		bopt.InitialMmapSize = opt.MmapSize
	}

	bdb, err := bbolt.Open(path, 0666, bopt)
	if err != nil {
		return nil, fmt.Errorf("itemstore: %w", err)
	}
	return newStore(newBoltStorage(bdb), opt), nil
}

// OpenMemory returns a store that lives in memory only.
func OpenMemory(opt Options) *Store {
	return newStore(newMemStorage(), opt)
}

func newStore(st storage, opt Options) *Store {
	logf := opt.Logf
	if logf == nil {
		logf = func(format string, args ...any) {
			slog.Debug(fmt.Sprintf(format, args...))
		}
	}
	return &Store{
		st:       st,
		logf:     logf,
		verbose:  opt.Verbose,
		format:   opt.Format,
		compress: opt.Compress,
	}
}

func (s *Store) Format() avcodec.Format {
	return s.format
}

func (s *Store) Close() error {
	err := s.st.Close()
	if err != nil {
		return fmt.Errorf("itemstore: closing: %w", err)
	}
	return nil
}

func (s *Store) addTx(tx *Tx) {
	s.txnsLock.Lock()
	defer s.txnsLock.Unlock()
	s.txns = append(s.txns, tx)
}

func (s *Store) removeTx(tx *Tx) {
	s.txnsLock.Lock()
	defer s.txnsLock.Unlock()

	found := slices.Index(s.txns, tx)
	if found < 0 {
		panic("tx not found in list")
	}

	n := len(s.txns)
	s.txns[found] = s.txns[n-1]
	s.txns[n-1] = nil // ensure it gets collected
	s.txns = s.txns[:n-1]
}

func (s *Store) DescribeOpenTxns() string {
	if !trackTxns {
		return "OPEN TX TRACKING DISABLED"
	}

	s.txnsLock.Lock()
	txns := slices.Clone(s.txns)
	s.txnsLock.Unlock()

	if len(txns) == 0 {
		return "NO OPEN TRANSACTIONS"
	}

	slices.SortFunc(txns, func(a, b *Tx) int {
		return a.startTime.Compare(b.startTime)
	})

	now := time.Now()

	var buf strings.Builder
	fmt.Fprintf(&buf, "%d OPEN TRANSACTIONS:\n", len(txns))
	for _, tx := range txns {
		ms := now.Sub(tx.startTime).Milliseconds()
		if ms < 100 {
			fmt.Fprintf(&buf, "\n---\nopen for %d ms\n", ms)
		} else {
			fmt.Fprintf(&buf, "\n---\nopen for %d ms:\n%s", ms, tx.stack)
		}
	}
	return buf.String()
}
