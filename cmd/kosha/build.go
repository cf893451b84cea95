package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/hupe1980/kosha"
	"github.com/hupe1980/kosha/codec"
	"github.com/spf13/cobra"
)

// inputRecord is one line of build input.
type inputRecord struct {
	Key   string          `json:"key"`
	Entry json.RawMessage `json:"entry"`
}

func newBuildCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build a store from JSON lines",
		Long: `Reads JSON lines of the form {"key": "...", "entry": {...}} where entry uses
the json codec's tagged form, and writes a new store generation to --out.`,
		Example: `  kosha build --in forms.jsonl --out ./lexicon --compression zstd
  kosha build --in - --out s3://my-bucket/lexicon < forms.jsonl`,
		Args: cobra.NoArgs,
		RunE: a.runBuild,
	}
	f := cmd.Flags()
	f.String("in", "-", "input file, - for stdin")
	f.String("out", "", "store location (directory, s3://bucket/prefix or minio://endpoint/bucket/prefix)")
	f.String("codec", codec.Default.Name(), "entry codec (binary, json)")
	f.String("compression", "none", "entry blob compression (none, lz4, zstd)")
	f.Int("block-size", kosha.DefaultBlockSize, "logical size of compressed blocks")
	f.Int("restart-interval", 16, "keys between full keys in the key index")
	f.Float64("bloom-fpr", kosha.DefaultBloomFalsePositiveRate, "bloom filter false positive rate")
	f.Int64("memory-limit", 0, "bytes of buffered records before insert fails, 0 for no limit")
	f.Int64("io-limit", 0, "segment write throughput in bytes per second, 0 for no limit")
	f.Int("workers", 4, "segments written concurrently")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}

func (a *app) runBuild(cmd *cobra.Command, _ []string) error {
	v := a.v
	ctx := cmd.Context()

	c, ok := codec.ByName(v.GetString("codec"))
	if !ok {
		return fmt.Errorf("unknown codec %q (known: %v)", v.GetString("codec"), codec.Names())
	}
	comp, err := kosha.ParseCompression(v.GetString("compression"))
	if err != nil {
		return err
	}

	opts := append(a.options(),
		kosha.WithCodec(c),
		kosha.WithCompression(comp),
		kosha.WithBlockSize(v.GetInt("block-size")),
		kosha.WithRestartInterval(v.GetInt("restart-interval")),
		kosha.WithBloomFalsePositiveRate(v.GetFloat64("bloom-fpr")),
		kosha.WithMemoryLimit(v.GetInt64("memory-limit")),
		kosha.WithIOLimit(v.GetInt64("io-limit")),
		kosha.WithWorkers(v.GetInt("workers")),
	)

	loc, err := parseLocation(v.GetString("out"))
	if err != nil {
		return err
	}
	var b *kosha.Builder
	if loc.scheme == "file" {
		b, err = kosha.NewBuilder(loc.path, opts...)
	} else {
		store, serr := a.openStore(ctx, loc)
		if serr != nil {
			return serr
		}
		b, err = kosha.NewBuilderWithStore(store, opts...)
	}
	if err != nil {
		return err
	}

	in := cmd.InOrStdin()
	if name := v.GetString("in"); name != "-" {
		f, err := os.Open(name)
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}

	start := time.Now()
	if err := readInput(in, b); err != nil {
		return err
	}
	n := b.Len()
	if err := b.Finish(ctx); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "built %s: %d entries in %s\n", loc, n, time.Since(start).Round(time.Millisecond))
	return nil
}

// readInput inserts every input line into b. Blank lines are skipped.
func readInput(r io.Reader, b *kosha.Builder) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16<<20)

	var dec codec.JSON
	for line := 1; sc.Scan(); line++ {
		raw := sc.Bytes()
		if len(bytes.TrimSpace(raw)) == 0 {
			continue
		}
		var rec inputRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
		e, err := dec.Decode(rec.Entry)
		if err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
		if err := b.Insert(rec.Key, e); err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
	}
	return sc.Err()
}
