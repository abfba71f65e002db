package itemstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/andreyvit/avcodec"
)

type (
	Pet struct {
		Owner string   `ddb:"owner"`
		Name  string   `ddb:"name"`
		Age   int      `ddb:"age"`
		Tags  []string `ddb:"tags,set,omitempty"`
		Bio   string   `ddb:"bio,omitempty"`
	}

	PetKey struct {
		Owner string `ddb:"owner"`
		Name  string `ddb:"name"`
	}

	PetFilter struct {
		Owner *string `ddb:"owner"`
		Age   *int    `ddb:"age"`
	}
)

var petsSchema = KeySchema{PartitionKey: "owner", SortKey: "name"}

func createPets(t testing.TB, s *Store) {
	t.Helper()
	ensure(s.CreateTable(context.Background(), "pets", petsSchema))
}

func pet(owner, name string, age int) avcodec.Item {
	return avcodec.Item{"owner": S(owner), "name": S(name), "age": N(fmt.Sprint(age))}
}

func TestStore_CRUD(t *testing.T) {
	eachBackend(t, Options{}, func(t *testing.T, s *Store) {
		ctx := context.Background()
		createPets(t, s)

		rex := pet("kim", "Rex", 3)
		meta := must(s.PutItem(ctx, "pets", rex))
		deepEqual(t, meta.ModCount, uint64(1))

		itemEqual(t, must(s.GetItem(ctx, "pets", avcodec.Item{"owner": S("kim"), "name": S("Rex")})), rex)
		if a := must(s.GetItem(ctx, "pets", avcodec.Item{"owner": S("kim"), "name": S("Max")})); a != nil {
			t.Errorf("** GetItem(missing) = %v, wanted nil", loggableItem(a))
		}

		older := pet("kim", "Rex", 4)
		meta = must(s.PutItem(ctx, "pets", older))
		deepEqual(t, meta.ModCount, uint64(2))
		itemEqual(t, must(s.GetItem(ctx, "pets", rex)), older)

		deepEqual(t, must(s.DeleteItem(ctx, "pets", rex)), true)
		deepEqual(t, must(s.DeleteItem(ctx, "pets", rex)), false)
		if a := must(s.GetItem(ctx, "pets", rex)); a != nil {
			t.Errorf("** GetItem(deleted) = %v, wanted nil", loggableItem(a))
		}
	})
}

func TestStore_PutNoop(t *testing.T) {
	eachBackend(t, Options{Verbose: true}, func(t *testing.T, s *Store) {
		ctx := context.Background()
		createPets(t, s)

		must(s.PutItem(ctx, "pets", pet("kim", "Rex", 3)))
		meta := must(s.PutItem(ctx, "pets", pet("kim", "Rex", 3)))
		deepEqual(t, meta.ModCount, uint64(1))
		meta = must(s.PutItem(ctx, "pets", pet("kim", "Rex", 5)))
		deepEqual(t, meta.ModCount, uint64(2))
	})
}

func TestStore_Formats(t *testing.T) {
	long := strings.Repeat("chases squirrels, ", 40)
	for _, format := range []avcodec.Format{avcodec.MsgPack, avcodec.JSON, avcodec.CBOR} {
		for _, z := range []bool{false, true} {
			t.Run(fmt.Sprintf("%v/z=%v", format, z), func(t *testing.T) {
				ctx := context.Background()
				s := setup(t, Options{Format: format, Compress: z})
				createPets(t, s)

				item := pet("kim", "Rex", 3)
				item["bio"] = S(long)
				item["photo"] = avcodec.BinaryValue([]byte{0xFF, 0xD8})
				item["tags"] = avcodec.StringSetValue("good", "loud")
				item["vet"] = avcodec.NullValue()

				meta := must(s.PutItem(ctx, "pets", item))
				deepEqual(t, meta.Format, format)
				deepEqual(t, meta.Compressed, z)
				itemEqual(t, must(s.GetItem(ctx, "pets", item)), item)
			})
		}
	}
}

func TestStore_ReadsOtherFormats(t *testing.T) {
	ctx := context.Background()
	s := setup(t, Options{Format: avcodec.JSON})
	createPets(t, s)
	must(s.PutItem(ctx, "pets", pet("kim", "Rex", 3)))

	// reopen-like switch of the write format
	s.format = avcodec.CBOR
	itemEqual(t, must(s.GetItem(ctx, "pets", pet("kim", "Rex", 0))), pet("kim", "Rex", 3))
	meta := must(s.PutItem(ctx, "pets", pet("kim", "Rex", 3)))
	deepEqual(t, meta.Format, avcodec.CBOR)
	deepEqual(t, meta.ModCount, uint64(2))
}

func TestStore_Query(t *testing.T) {
	eachBackend(t, Options{}, func(t *testing.T, s *Store) {
		ctx := context.Background()
		createPets(t, s)

		items := []avcodec.Item{
			pet("kim", "Rex", 3),
			pet("kim", "Bo", 5),
			pet("kim", "Ace", 3),
			pet("kimberly", "Zed", 3),
			pet("al", "Max", 3),
		}
		update(t, s, func(tx *Tx) {
			for _, item := range items {
				must(tx.PutItem("pets", item))
			}
		})

		kim := "kim"
		q := must(avcodec.BuildQuery(PetFilter{Owner: &kim}))
		itemsEqual(t, must(s.Query(ctx, "pets", q, QueryOptions{})), []avcodec.Item{
			pet("kim", "Ace", 3), pet("kim", "Bo", 5), pet("kim", "Rex", 3),
		})
		itemsEqual(t, must(s.Query(ctx, "pets", q, QueryOptions{Reverse: true})), []avcodec.Item{
			pet("kim", "Rex", 3), pet("kim", "Bo", 5), pet("kim", "Ace", 3),
		})
		itemsEqual(t, must(s.Query(ctx, "pets", q, QueryOptions{Limit: 2})), []avcodec.Item{
			pet("kim", "Ace", 3), pet("kim", "Bo", 5),
		})

		three := 3
		q = must(avcodec.BuildQuery(PetFilter{Owner: &kim, Age: &three}))
		itemsEqual(t, must(s.Query(ctx, "pets", q, QueryOptions{})), []avcodec.Item{
			pet("kim", "Ace", 3), pet("kim", "Rex", 3),
		})

		// no partition key, so the whole table is filtered
		q = must(avcodec.BuildQuery(PetFilter{Age: &three}))
		itemsEqual(t, must(s.Query(ctx, "pets", q, QueryOptions{})), []avcodec.Item{
			pet("al", "Max", 3), pet("kim", "Ace", 3), pet("kim", "Rex", 3), pet("kimberly", "Zed", 3),
		})

		all := must(s.Scan(ctx, "pets", QueryOptions{}))
		deepEqual(t, len(all), len(items))
	})
}

func TestCursor_KeyAndMeta(t *testing.T) {
	s := setup(t, Options{})
	createPets(t, s)
	must(s.PutItem(context.Background(), "pets", pet("kim", "Rex", 3)))

	view(t, s, func(tx *Tx) {
		c := tx.Scan("pets", QueryOptions{})
		if !c.Next() {
			t.Fatalf("** Next() = false, wanted an item; err = %v", c.Err())
		}
		itemEqual(t, c.Key(), avcodec.Item{"owner": S("kim"), "name": S("Rex")})
		deepEqual(t, c.Meta().ModCount, uint64(1))
		if c.Next() {
			t.Errorf("** Next() = true after the last item")
		}
		ensure(c.Err())
	})
}

func TestStore_Tables(t *testing.T) {
	eachBackend(t, Options{}, func(t *testing.T, s *Store) {
		ctx := context.Background()
		createPets(t, s)
		ensure(s.CreateTable(ctx, "owners", KeySchema{PartitionKey: "id"}))

		err := s.CreateTable(ctx, "pets", petsSchema)
		if !errors.Is(err, ErrTableExists) {
			t.Errorf("** CreateTable(existing) err = %v, wanted ErrTableExists", err)
		}
		if err := s.CreateTable(ctx, "bad", KeySchema{PartitionKey: "a", SortKey: "a"}); err == nil {
			t.Errorf("** CreateTable(pk = sk) succeeded")
		}

		td := must(s.DescribeTable(ctx, "pets"))
		deepEqual(t, td.KeySchema, petsSchema)
		if td.Created.IsZero() {
			t.Errorf("** Created is zero")
		}

		var names []string
		for _, td := range must(s.ListTables(ctx)) {
			names = append(names, td.Name)
		}
		deepEqual(t, names, []string{"owners", "pets"})

		must(s.PutItem(ctx, "pets", pet("kim", "Rex", 3)))
		ensure(s.DeleteTable(ctx, "pets"))
		_, err = s.GetItem(ctx, "pets", pet("kim", "Rex", 3))
		if !errors.Is(err, ErrTableNotFound) {
			t.Errorf("** GetItem(deleted table) err = %v, wanted ErrTableNotFound", err)
		}

		// recreated table starts empty
		createPets(t, s)
		deepEqual(t, len(must(s.Scan(ctx, "pets", QueryOptions{}))), 0)
	})
}

func TestStore_InvalidKeys(t *testing.T) {
	ctx := context.Background()
	s := setup(t, Options{})
	createPets(t, s)

	tests := []avcodec.Item{
		{"owner": S("kim")},
		{"owner": S(""), "name": S("Rex")},
		{"owner": avcodec.BoolValue(true), "name": S("Rex")},
	}
	for _, item := range tests {
		_, err := s.PutItem(ctx, "pets", item)
		if !errors.Is(err, ErrInvalidKey) {
			t.Errorf("** PutItem(%s) err = %v, wanted ErrInvalidKey", loggableItem(item), err)
		}
	}
}

func TestTx_Errors(t *testing.T) {
	eachBackend(t, Options{}, func(t *testing.T, s *Store) {
		ctx := context.Background()
		createPets(t, s)

		err := s.View(ctx, func(tx *Tx) error {
			_, err := tx.PutItem("pets", pet("kim", "Rex", 3))
			return err
		})
		if !errors.Is(err, ErrReadOnly) {
			t.Errorf("** PutItem in View err = %v, wanted ErrReadOnly", err)
		}

		err = s.Update(ctx, func(tx *Tx) error {
			must(tx.PutItem("pets", pet("kim", "Rex", 3)))
			panic("boom")
		})
		if err == nil || !strings.Contains(err.Error(), "panic: boom") {
			t.Errorf("** Update(panic) err = %v, wanted panic error", err)
		}

		failure := errors.New("failure")
		err = s.Update(ctx, func(tx *Tx) error {
			must(tx.PutItem("pets", pet("kim", "Rex", 3)))
			return failure
		})
		if err != failure {
			t.Errorf("** Update err = %v, wanted %v", err, failure)
		}
		deepEqual(t, len(must(s.Scan(ctx, "pets", QueryOptions{}))), 0)

		cctx, cancel := context.WithCancel(ctx)
		cancel()
		err = s.Update(cctx, func(tx *Tx) error { return nil })
		if !errors.Is(err, context.Canceled) {
			t.Errorf("** Update(canceled) err = %v, wanted context.Canceled", err)
		}
	})
}

func TestStore_DescribeOpenTxns(t *testing.T) {
	s := setup(t, Options{})
	tx := must(s.Begin(context.Background(), false))
	if desc := s.DescribeOpenTxns(); !strings.Contains(desc, "1 OPEN TRANSACTIONS") {
		t.Errorf("** DescribeOpenTxns() = %q, wanted 1 open transaction", desc)
	}
	deepEqual(t, s.ReaderCount.Load(), int64(1))
	tx.Close()
	tx.Close()
	if desc := s.DescribeOpenTxns(); desc != "NO OPEN TRANSACTIONS" {
		t.Errorf("** DescribeOpenTxns() = %q, wanted NO OPEN TRANSACTIONS", desc)
	}
	deepEqual(t, s.ReaderCount.Load(), int64(0))
	deepEqual(t, s.ReadCount.Load(), uint64(1))
}

func TestStore_Dump(t *testing.T) {
	s := OpenMemory(Options{})
	defer s.Close()
	createPets(t, s)
	must(s.PutItem(context.Background(), "pets", pet("kim", "Rex", 3)))

	view(t, s, func(tx *Tx) {
		a := must(tx.Dump(DumpTableHeaders | DumpItems))
		e := dumpSep1 + "\n" +
			"pets [owner, name] (1 items)\n" +
			`pets.1 = (m1) {"M":{"age":{"N":"3"},"name":{"S":"Rex"},"owner":{"S":"kim"}}}` + "\n"
		deepEqual(t, a, e)
	})

	stats := must(s.TableStats(context.Background(), "pets"))
	deepEqual(t, stats.Items, 1)
	if stats.DataSize == 0 {
		t.Errorf("** DataSize = 0")
	}
}

func TestTyped(t *testing.T) {
	eachBackend(t, Options{Compress: true}, func(t *testing.T, s *Store) {
		ctx := context.Background()
		createPets(t, s)

		rex := Pet{Owner: "kim", Name: "Rex", Age: 3, Tags: []string{"good"}, Bio: strings.Repeat("woof ", 100)}
		bo := Pet{Owner: "kim", Name: "Bo", Age: 5}
		must(Put(ctx, s, "pets", rex))
		must(Put(ctx, s, "pets", bo))

		deepEqual(t, must(Get[Pet](ctx, s, "pets", PetKey{"kim", "Rex"})), &rex)
		if a := must(Get[Pet](ctx, s, "pets", PetKey{"kim", "Max"})); a != nil {
			t.Errorf("** Get(missing) = %v, wanted nil", a)
		}

		kim := "kim"
		deepEqual(t, must(QueryInto[Pet](ctx, s, "pets", PetFilter{Owner: &kim}, QueryOptions{})), []Pet{bo, rex})
	})
}

func TestOpen_CreatesFile(t *testing.T) {
	path := t.TempDir() + "/new.db"
	s := must(Open(path, Options{IsTesting: true}))
	ensure(s.Close())
	if !fileExists(path) {
		t.Errorf("** Open did not create %s", path)
	}
}
