// Copyright 2015, Joe Tsai. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

// Package bench measures the bzip2 codec against other compressors for
// encode speed, decode speed and compression ratio.
//
// Codecs register themselves per Format from build-tagged files, so a codec
// whose dependency is unwanted can be left out with its no_*_lib tag.
package bench

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"testing"
	"text/tabwriter"

	strconv "github.com/dsnet/golib/unitconv"
	"github.com/pkg/errors"

	"github.com/dsnet/pbzip2/internal/testutil"
)

type Format int

const (
	FormatBZ2 Format = iota
	FormatFlate
	FormatXZ
)

func (f Format) String() string {
	switch f {
	case FormatBZ2:
		return "bz2"
	case FormatFlate:
		return "fl"
	case FormatXZ:
		return "xz"
	default:
		return "unknown"
	}
}

type Test int

const (
	TestEncodeRate Test = iota
	TestDecodeRate
	TestCompressRatio
)

func (t Test) String() string {
	switch t {
	case TestEncodeRate:
		return "encRate"
	case TestDecodeRate:
		return "decRate"
	case TestCompressRatio:
		return "ratio"
	default:
		return "unknown"
	}
}

// Encoder returns a compressor writing to w at the given level.
type Encoder func(w io.Writer, lvl int) io.WriteCloser

// Decoder returns a decompressor reading from r.
type Decoder func(r io.Reader) io.ReadCloser

var (
	Encoders = map[Format]map[string]Encoder{}
	Decoders = map[Format]map[string]Decoder{}

	// Paths are searched, in order, for inputs that are not synthetic corpora.
	Paths []string
)

func RegisterEncoder(format Format, name string, enc Encoder) {
	if Encoders[format] == nil {
		Encoders[format] = make(map[string]Encoder)
	}
	Encoders[format][name] = enc
}

func RegisterDecoder(format Format, name string, dec Decoder) {
	if Decoders[format] == nil {
		Decoders[format] = make(map[string]Decoder)
	}
	Decoders[format][name] = dec
}

// LoadInput returns n bytes of the named input. Names of synthetic corpora
// are generated and anything else is loaded as a file from Paths.
func LoadInput(name string, n int) ([]byte, error) {
	if gen, ok := testutil.Corpora[name]; ok {
		return gen(n), nil
	}
	return testutil.LoadFile(findFile(name), n)
}

// Case is one input configuration measured for every codec in a Suite.
type Case struct {
	File  string
	Level int
	Size  int
}

// Cases returns the cross product of files, levels and sizes.
func Cases(files []string, levels, sizes []int) []Case {
	var cs []Case
	for _, f := range files {
		for _, l := range levels {
			for _, n := range sizes {
				cs = append(cs, Case{File: f, Level: l, Size: n})
			}
		}
	}
	return cs
}

type Result struct {
	R float64 // Rate (MB/s) or ratio (rawSize/compSize)
	D float64 // R relative to the first codec in the row
}

type Row struct {
	Name    string
	Results []Result // One per codec
}

// Table holds the results of one Test over one Format.
type Table struct {
	Format Format
	Test   Test
	Codecs []string
	Rows   []Row
}

// Suite runs a Test over every Case for a set of codecs of one Format.
type Suite struct {
	Format Format
	Codecs []string
	Cases  []Case

	// Ref produces the compressed inputs for TestDecodeRate.
	// The same encoder must be used for every decoder so results compare.
	Ref Encoder

	// Tick, if set, is called before every measurement.
	Tick func()
}

type measureFunc func(input []byte, codec string, lvl int) Result

// Run measures every codec on every case. Inputs that fail to load or
// compress yield zero results rather than aborting the run.
func (s *Suite) Run(t Test) (*Table, error) {
	var measure measureFunc
	switch t {
	case TestEncodeRate:
		measure = func(input []byte, codec string, lvl int) Result {
			return rate(BenchmarkEncoder(input, Encoders[s.Format][codec], lvl))
		}
	case TestDecodeRate:
		if s.Ref == nil {
			return nil, errors.Errorf("bench: no reference encoder for %v", s.Format)
		}
		measure = func(input []byte, codec string, _ int) Result {
			return rate(BenchmarkDecoder(input, Decoders[s.Format][codec]))
		}
	case TestCompressRatio:
		measure = func(input []byte, codec string, lvl int) Result {
			output, err := compress(Encoders[s.Format][codec], input, lvl)
			if err != nil || len(output) == 0 {
				return Result{}
			}
			return Result{R: float64(len(input)) / float64(len(output))}
		}
	default:
		return nil, errors.Errorf("bench: unknown test %v", t)
	}

	tbl := &Table{Format: s.Format, Test: t, Codecs: s.Codecs}
	for _, c := range s.Cases {
		input, err := LoadInput(c.File, c.Size)
		row := Row{
			Name:    getName(c.File, c.Level, len(input)),
			Results: make([]Result, len(s.Codecs)),
		}
		if err == nil && t == TestDecodeRate {
			input, err = compress(s.Ref, input, c.Level)
		}
		for j, codec := range s.Codecs {
			if s.Tick != nil {
				s.Tick()
			}
			if err == nil {
				row.Results[j] = measure(input, codec, c.Level)
			}
		}
		for j := range row.Results {
			row.Results[j].D = row.Results[j].R / row.Results[0].R
		}
		tbl.Rows = append(tbl.Rows, row)
	}
	return tbl, nil
}

// Print writes the table with one value and one delta column per codec.
// Missing and non-finite values are left blank.
func (t *Table) Print(w io.Writer) error {
	unit, suffix := "MB/s", ""
	if t.Test == TestCompressRatio {
		unit, suffix = "ratio", "x"
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprint(tw, "benchmark\t")
	for _, c := range t.Codecs {
		fmt.Fprintf(tw, "%s %s\tdelta\t", c, unit)
	}
	fmt.Fprintln(tw)
	for _, row := range t.Rows {
		fmt.Fprintf(tw, "%s\t", row.Name)
		for _, r := range row.Results {
			fmt.Fprintf(tw, "%s\t%s\t", formatValue(r.R, suffix), formatValue(r.D, "x"))
		}
		fmt.Fprintln(tw)
	}
	return tw.Flush()
}

func formatValue(v float64, suffix string) string {
	if v == 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return ""
	}
	return fmt.Sprintf("%.2f%s", v, suffix)
}

// BenchmarkEncoder benchmarks a single encoder on the given input data using
// the selected compression level and reports the result.
func BenchmarkEncoder(input []byte, enc Encoder, lvl int) testing.BenchmarkResult {
	return testing.Benchmark(func(b *testing.B) {
		if enc == nil {
			b.Fatal("nil Encoder")
		}
		b.StopTimer()
		runtime.GC()
		b.SetBytes(int64(len(input)))
		b.StartTimer()
		for i := 0; i < b.N; i++ {
			if _, err := compressTo(io.Discard, enc, input, lvl); err != nil {
				b.Fatalf("unexpected error: %v", err)
			}
		}
	})
}

// BenchmarkDecoder benchmarks a single decoder on the given pre-compressed
// input data and reports the result.
func BenchmarkDecoder(input []byte, dec Decoder) testing.BenchmarkResult {
	return testing.Benchmark(func(b *testing.B) {
		if dec == nil {
			b.Fatal("nil Decoder")
		}
		b.StopTimer()
		runtime.GC()
		b.StartTimer()
		for i := 0; i < b.N; i++ {
			rd := dec(bufio.NewReader(bytes.NewReader(input)))
			cnt, err := io.Copy(io.Discard, rd)
			if cerr := rd.Close(); err == nil {
				err = cerr
			}
			if err != nil {
				b.Fatalf("unexpected error: %v", err)
			}
			b.SetBytes(cnt)
		}
	})
}

// rate converts a benchmark of per-op byte throughput into MB/s.
func rate(r testing.BenchmarkResult) Result {
	if r.N == 0 || r.T <= 0 {
		return Result{}
	}
	return Result{R: float64(r.Bytes) * float64(r.N) / r.T.Seconds() / 1e6}
}

func compress(enc Encoder, input []byte, lvl int) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := compressTo(&buf, enc, input, lvl); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func compressTo(w io.Writer, enc Encoder, input []byte, lvl int) (int64, error) {
	wr := enc(w, lvl)
	n, err := io.Copy(wr, bytes.NewReader(input))
	if cerr := wr.Close(); err == nil {
		err = cerr
	}
	return n, errors.Wrap(err, "compress")
}

func findFile(file string) string {
	if filepath.IsAbs(file) {
		return file
	}
	for _, dir := range Paths {
		p := filepath.Join(dir, file)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return file
}

var reExp = regexp.MustCompile(`\.0*e\+0*`)

// getName labels a row as file:level:size, with the size printed either in
// short decimal exponent form (1e6) or with a binary prefix (976.56Ki).
func getName(f string, l, n int) string {
	var sn string
	switch n {
	case 1e3, 1e4, 1e5, 1e6, 1e7, 1e8, 1e9, 1e10, 1e11, 1e12:
		sn = reExp.ReplaceAllString(fmt.Sprintf("%e", float64(n)), "e")
	default:
		sn = strings.Replace(strconv.FormatPrefix(float64(n), strconv.Base1024, 2), ".00", "", -1)
	}
	return fmt.Sprintf("%s:%d:%s", filepath.Base(f), l, sn)
}
