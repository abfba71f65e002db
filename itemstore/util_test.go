package itemstore

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/andreyvit/avcodec"
	"github.com/google/go-cmp/cmp"
)

func init() {
	slog.SetLogLoggerLevel(slog.LevelDebug)
}

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

func ensure(err error) {
	if err != nil {
		panic(err)
	}
}

func deepEqual[T any](t testing.TB, a, e T) {
	if diff := cmp.Diff(e, a); diff != "" {
		t.Helper()
		t.Errorf("** got %v, wanted %v (-wanted +got):\n%s", a, e, diff)
	}
}

func itemEqual(t testing.TB, a, e avcodec.Item) {
	if !a.Equal(e) {
		t.Helper()
		t.Errorf("** got %s, wanted %s", loggableItem(a), loggableItem(e))
	}
}

func itemsEqual(t testing.TB, a, e []avcodec.Item) {
	t.Helper()
	if len(a) != len(e) {
		t.Errorf("** got %d items, wanted %d", len(a), len(e))
	}
	for i := range min(len(a), len(e)) {
		itemEqual(t, a[i], e[i])
	}
}

// setup opens a Bolt-backed store in a temp directory.
func setup(t testing.TB, opt Options) *Store {
	t.Helper()
	opt.IsTesting = true
	opt.Logf = t.Logf
	dbFile := filepath.Join(t.TempDir(), "items.db")
	s := must(Open(dbFile, opt))
	t.Cleanup(func() { ensure(s.Close()) })
	return s
}

// eachBackend runs f against a Bolt-backed and an in-memory store.
func eachBackend(t *testing.T, opt Options, f func(t *testing.T, s *Store)) {
	t.Run("bolt", func(t *testing.T) {
		f(t, setup(t, opt))
	})
	t.Run("memory", func(t *testing.T) {
		opt := opt
		opt.IsTesting = true
		opt.Logf = t.Logf
		s := OpenMemory(opt)
		t.Cleanup(func() { ensure(s.Close()) })
		f(t, s)
	})
}

func update(t testing.TB, s *Store, f func(tx *Tx)) {
	t.Helper()
	ensure(s.Update(context.Background(), func(tx *Tx) error {
		f(tx)
		return nil
	}))
}

func view(t testing.TB, s *Store, f func(tx *Tx)) {
	t.Helper()
	ensure(s.View(context.Background(), func(tx *Tx) error {
		f(tx)
		return nil
	}))
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func S(s string) avcodec.AttributeValue { return avcodec.StringValue(s) }
func N(s string) avcodec.AttributeValue { return avcodec.NumberValue(s) }
