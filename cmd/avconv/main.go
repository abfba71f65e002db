// avconv converts DynamoDB items between DynamoDB JSON, MsgPack and CBOR,
// and can load items into an itemstore database.
//
//	avconv -f json -t cbor item.json > item.cbor
//	avconv -f cbor --indent < item.cbor
//	avconv --db pets.db --table pets --pk owner --sk name item.json
//	avconv --db pets.db --dump
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/pflag"

	"github.com/andreyvit/avcodec"
	"github.com/andreyvit/avcodec/itemstore"
)

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	from, to  string
	indent    bool
	validate  bool
	db, table string
	pk, sk    string
	dump      bool
	compress  bool
	verbose   bool
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	var opt options
	flagSet := pflag.NewFlagSet("avconv", pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	flagSet.StringVarP(&opt.from, "from", "f", "json", "input format: json, msgpack or cbor")
	flagSet.StringVarP(&opt.to, "to", "t", "json", "output format: json, msgpack or cbor")
	flagSet.BoolVar(&opt.indent, "indent", false, "indent JSON output")
	flagSet.BoolVar(&opt.validate, "validate", false, "only check that the input is a valid item")
	flagSet.StringVar(&opt.db, "db", "", "itemstore database file")
	flagSet.StringVar(&opt.table, "table", "", "put the item into this table of --db")
	flagSet.StringVar(&opt.pk, "pk", "", "partition key attribute, when --table has to be created")
	flagSet.StringVar(&opt.sk, "sk", "", "sort key attribute, when --table has to be created")
	flagSet.BoolVar(&opt.dump, "dump", false, "print the contents of --db")
	flagSet.BoolVar(&opt.compress, "compress", false, "compress items written to --db")
	flagSet.BoolVarP(&opt.verbose, "verbose", "v", false, "log debug messages to stderr")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	level := slog.LevelWarn
	if opt.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	if opt.dump {
		if opt.db == "" {
			return fmt.Errorf("--dump requires --db")
		}
		return dump(ctx, logger, opt, stdout)
	}

	from, err := avcodec.ParseFormat(opt.from)
	if err != nil {
		return err
	}
	to, err := avcodec.ParseFormat(opt.to)
	if err != nil {
		return err
	}

	var input io.Reader = stdin
	switch rest := flagSet.Args(); len(rest) {
	case 0:
	case 1:
		f, err := os.Open(rest[0])
		if err != nil {
			return err
		}
		defer f.Close()
		input = f
	default:
		return fmt.Errorf("unexpected argument: %s", rest[1])
	}

	raw, err := io.ReadAll(input)
	if err != nil {
		return err
	}
	item, err := avcodec.UnmarshalItem(from, raw)
	if err != nil {
		return err
	}
	logger.Debug("read item", "format", from, "bytes", len(raw), "attrs", len(item))

	switch {
	case opt.validate:
		fmt.Fprintln(stdout, "OK")
		return nil
	case opt.table != "":
		if opt.db == "" {
			return fmt.Errorf("--table requires --db")
		}
		return put(ctx, logger, opt, item, stdout)
	}

	out, err := avcodec.MarshalItem(to, item)
	if err != nil {
		return err
	}
	if to == avcodec.JSON {
		if opt.indent {
			var buf bytes.Buffer
			if err := json.Indent(&buf, out, "", "  "); err != nil {
				return err
			}
			out = buf.Bytes()
		}
		out = append(out, '\n')
	}
	_, err = stdout.Write(out)
	return err
}

func openStore(logger *slog.Logger, opt options) (*itemstore.Store, error) {
	to, err := avcodec.ParseFormat(opt.to)
	if err != nil {
		return nil, err
	}
	return itemstore.Open(opt.db, itemstore.Options{
		Logf: func(format string, args ...any) {
			logger.Debug(fmt.Sprintf(format, args...))
		},
		Verbose:  opt.verbose,
		Format:   to,
		Compress: opt.compress,
	})
}

func put(ctx context.Context, logger *slog.Logger, opt options, item avcodec.Item, stdout io.Writer) error {
	store, err := openStore(logger, opt)
	if err != nil {
		return err
	}
	defer store.Close()

	var meta itemstore.ItemMeta
	err = store.Update(ctx, func(tx *itemstore.Tx) error {
		_, err := tx.DescribeTable(opt.table)
		if errors.Is(err, itemstore.ErrTableNotFound) {
			if opt.pk == "" {
				return fmt.Errorf("table %s does not exist, pass --pk to create it", opt.table)
			}
			err = tx.CreateTable(opt.table, itemstore.KeySchema{PartitionKey: opt.pk, SortKey: opt.sk})
		}
		if err != nil {
			return err
		}
		meta, err = tx.PutItem(opt.table, item)
		return err
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "%s: m=%d size=%d\n", opt.table, meta.ModCount, meta.Size)
	return nil
}

func dump(ctx context.Context, logger *slog.Logger, opt options, stdout io.Writer) error {
	store, err := openStore(logger, opt)
	if err != nil {
		return err
	}
	defer store.Close()
	return store.View(ctx, func(tx *itemstore.Tx) error {
		s, err := tx.Dump(itemstore.DumpAll)
		if err != nil {
			return err
		}
		_, err = io.WriteString(stdout, s)
		return err
	})
}
