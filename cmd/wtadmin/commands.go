package main

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/pflag"

	"github.com/tuannm99/wormtable"
	"github.com/tuannm99/wormtable/internal/alias/util"
	"github.com/tuannm99/wormtable/internal/config"
)

func sizeFlag(fs *pflag.FlagSet, name, usage string) {
	var b config.ByteSize
	fs.Var(&b, name, usage)
}

func readFlags(fs *pflag.FlagSet) {
	sizeFlag(fs, "read-cache-size", "page cache for reading the table, e.g. 32M")
}

var buildCmd = command{
	usage: "build <schema.xml> <rows.tsv|-> <home>",
	flags: func(fs *pflag.FlagSet) {
		sizeFlag(fs, "cache-size", "page cache while writing, e.g. 64M")
		sizeFlag(fs, "buffer-size", "bytes of rows held before a flush")
		fs.Int("max-rows", 0, "rows held before a flush")
		fs.Uint64("progress", 0, "log progress every N rows")
		fs.Bool("header", false, "skip the first line of the input")
	},
	run: runBuild,
}

func runBuild(e *env, args []string) error {
	if len(args) != 3 {
		return errUsage
	}
	opts := e.cfg.Options()
	s, err := wormtable.ReadSchema(args[0], opts.Limits)
	if err != nil {
		return err
	}

	var in io.Reader = os.Stdin
	if args[1] != "-" {
		f, err := os.Open(args[1])
		if err != nil {
			return err
		}
		defer util.CloseFileFunc(f)
		in = f
	}
	header, _ := e.fs.GetBool("header")

	start := time.Now()
	b := wormtable.NewTableBuilder(args[2], s, opts)
	if err := b.Open(); err != nil {
		return err
	}
	if err := loadRows(b, in, header, opts.Index.ProgressInterval); err != nil {
		return errors.Join(err, b.Abort())
	}
	if err := b.Finalise(); err != nil {
		return err
	}
	fmt.Fprintf(e.out, "built %s: %d rows in %s\n", args[2], b.NumRows(), time.Since(start).Round(time.Millisecond))
	return nil
}

// loadRows reads one row per line, one tab separated field per column in
// schema order. Empty fields leave the column unset.
func loadRows(b *wormtable.TableBuilder, in io.Reader, header bool, every uint64) error {
	cols := b.Schema().Columns()
	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 0, 64*1024), 16*wormtable.MaxRowSize)

	line := 0
	for sc.Scan() {
		line++
		if header && line == 1 {
			continue
		}
		text := sc.Bytes()
		if len(bytes.TrimSpace(text)) == 0 {
			continue
		}
		fields := bytes.Split(text, []byte{'\t'})
		if len(fields) != len(cols) {
			return fmt.Errorf("line %d: %d fields, want %d", line, len(fields), len(cols))
		}
		for i, f := range fields {
			if len(f) == 0 {
				continue
			}
			if err := b.InsertEncodedElements(cols[i], f); err != nil {
				return fmt.Errorf("line %d: %s: %w", line, cols[i].Name(), err)
			}
		}
		if err := b.CommitRow(); err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
		if every > 0 && b.NumRows()%every == 0 {
			slog.Debug("wtadmin.build.progress", "rows", b.NumRows())
		}
	}
	return sc.Err()
}

var addCmd = command{
	usage: "add <home> <col[+col...]>...",
	flags: func(fs *pflag.FlagSet) {
		readFlags(fs)
		sizeFlag(fs, "index-cache-size", "page cache of each index being written")
		sizeFlag(fs, "sort-buffer-size", "memory for sorting keys before spilling")
		fs.String("temp-dir", "", "directory for sort runs (default: the table home)")
		fs.Uint64("progress", 0, "log progress every N rows")
	},
	run: runAdd,
}

func runAdd(e *env, args []string) error {
	if len(args) < 2 {
		return errUsage
	}
	t, err := wormtable.OpenTable(args[0], e.cfg.Options())
	if err != nil {
		return err
	}
	defer t.Close()

	specs := make([][]string, len(args)-1)
	for i, a := range args[1:] {
		specs[i] = strings.Split(a, "+")
	}
	if err := wormtable.BuildIndexes(t, specs, progressLogger(t.NumRows())); err != nil {
		return err
	}
	for _, a := range args[1:] {
		fmt.Fprintf(e.out, "index %s ready\n", a)
	}
	return nil
}

func progressLogger(total uint64) wormtable.BuildProgressFunc {
	return func(name string, n uint64) {
		pct := 100.0
		if total > 0 {
			pct = 100 * float64(n) / float64(total)
		}
		slog.Debug("wtadmin.index.progress",
			"index", name,
			"rows", n,
			"pct", fmt.Sprintf("%.1f", pct),
		)
	}
}

var showCmd = command{
	usage: "show <home>",
	flags: readFlags,
	run: func(e *env, args []string) error {
		if len(args) != 1 {
			return errUsage
		}
		t, err := wormtable.OpenTable(args[0], e.cfg.Options())
		if err != nil {
			return err
		}
		defer t.Close()

		m := t.Meta()
		fmt.Fprintf(e.out, "home:     %s\n", t.Home())
		fmt.Fprintf(e.out, "build:    %s\n", m.BuildID)
		fmt.Fprintf(e.out, "rows:     %d\n", m.NumRows)
		fmt.Fprintf(e.out, "limits:   max_row_size=%d max_num_elements=%d\n", m.Limits.MaxRowSize, m.Limits.MaxNumElements)
		fmt.Fprintf(e.out, "finished: %s\n", m.FinishedAt.Format(time.RFC3339))
		if err := t.Schema().Show(e.out); err != nil {
			return err
		}
		return printIndexes(e.out, t)
	},
}

var listCmd = command{
	usage: "list <home>",
	flags: readFlags,
	run: func(e *env, args []string) error {
		if len(args) != 1 {
			return errUsage
		}
		t, err := wormtable.OpenTable(args[0], e.cfg.Options())
		if err != nil {
			return err
		}
		defer t.Close()
		return printIndexes(e.out, t)
	},
}

func printIndexes(w io.Writer, t *wormtable.Table) error {
	metas, err := t.Indexes()
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
	fmt.Fprintln(tw, "index\tentries\tbuilt\tstatus")
	for _, m := range metas {
		status := "ok"
		if m.BuildID != t.Meta().BuildID {
			status = "stale"
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", m.Name, m.Entries, m.BuiltAt.Format(time.RFC3339), status)
	}
	return tw.Flush()
}

var dumpCmd = command{
	usage: "dump <home> [col...] [--index name] [--start v[,v...]] [--stop v[,v...]]",
	flags: func(fs *pflag.FlagSet) {
		readFlags(fs)
		sizeFlag(fs, "index-cache-size", "page cache of the index")
		fs.String("index", "", "read in the order of this index, e.g. chrom+pos")
		fs.String("start", "", "inclusive lower bound, comma separated values")
		fs.String("stop", "", "inclusive upper bound, comma separated values")
	},
	run: runDump,
}

func runDump(e *env, args []string) error {
	if len(args) < 1 {
		return errUsage
	}
	t, err := wormtable.OpenTable(args[0], e.cfg.Options())
	if err != nil {
		return err
	}
	defer t.Close()

	name, _ := e.fs.GetString("index")
	startText, _ := e.fs.GetString("start")
	stopText, _ := e.fs.GetString("stop")

	var it *wormtable.RowIterator
	if name == "" {
		if startText != "" || stopText != "" {
			return fmt.Errorf("--start and --stop need --index: %w", wormtable.ErrNoIndex)
		}
		it, err = t.Rows(args[1:]...)
	} else {
		it, err = indexRows(t, name, args[1:], startText, stopText)
	}
	if err != nil {
		return err
	}
	defer it.Close()

	w := bufio.NewWriter(e.out)
	cols := it.Columns()
	fmt.Fprint(w, "#")
	for i, c := range cols {
		if i > 0 {
			fmt.Fprint(w, "\t")
		}
		fmt.Fprint(w, c.Name())
	}
	fmt.Fprintln(w)
	for it.Next() {
		for i, v := range it.Row() {
			if i > 0 {
				_ = w.WriteByte('\t')
			}
			_, _ = w.WriteString(formatValue(v))
		}
		_ = w.WriteByte('\n')
	}
	return errors.Join(it.Err(), w.Flush())
}

func indexRows(t *wormtable.Table, name string, cols []string, startText, stopText string) (*wormtable.RowIterator, error) {
	ix, err := t.Index(strings.Split(name, "+")...)
	if err != nil {
		return nil, err
	}
	if err := ix.Open(); err != nil {
		return nil, err
	}
	var lo, hi []any
	if startText != "" {
		if lo, err = ix.ParseBound(strings.Split(startText, ",")); err != nil {
			return nil, fmt.Errorf("--start: %w", err)
		}
	}
	if stopText != "" {
		if hi, err = ix.ParseBound(strings.Split(stopText, ",")); err != nil {
			return nil, fmt.Errorf("--stop: %w", err)
		}
	}
	return ix.Rows(cols, lo, hi)
}

var countsCmd = command{
	usage: "counts <home> <index>",
	flags: readFlags,
	run: func(e *env, args []string) error {
		if len(args) != 2 {
			return errUsage
		}
		t, err := wormtable.OpenTable(args[0], e.cfg.Options())
		if err != nil {
			return err
		}
		defer t.Close()

		ix, err := t.Index(strings.Split(args[1], "+")...)
		if err != nil {
			return err
		}
		if err := ix.Open(); err != nil {
			return err
		}
		counts, err := ix.Counts()
		if err != nil {
			return err
		}
		for _, c := range counts {
			fmt.Fprintf(e.out, "%s\t%d\n", c.Value, c.Count)
		}
		return nil
	},
}

var dropCmd = command{
	usage: "drop <home> <index>",
	run: func(e *env, args []string) error {
		if len(args) != 2 {
			return errUsage
		}
		t, err := wormtable.OpenTable(args[0], e.cfg.Options())
		if err != nil {
			return err
		}
		defer t.Close()

		ix, err := t.Index(strings.Split(args[1], "+")...)
		if err != nil {
			return err
		}
		ok, err := ix.Built()
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: %s", wormtable.ErrIndexNotBuilt, args[1])
		}
		if err := ix.Drop(); err != nil {
			return err
		}
		fmt.Fprintf(e.out, "dropped %s\n", ix.Name())
		return nil
	},
}
