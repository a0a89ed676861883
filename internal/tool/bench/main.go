// Copyright 2015, Joe Tsai. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

//go:build ignore
// +build ignore

// Command bench compares the bzip2 codec with other registered compressors.
//
// Example usage:
//
//	$ go run main.go \
//		-formats bz2             \
//		-tests   encRate,decRate \
//		-codecs  std,ds,dsp      \
//		-files   text,binary     \
//		-levels  1,6,9           \
//		-sizes   1e5,1e6,1e7
//
// Inputs are either the names of synthetic corpora (binary, digits, random,
// repeats, text and zeros) or files found under the -paths directories.
package main

import (
	"flag"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"
	"time"

	strconv "github.com/dsnet/golib/unitconv"
	"github.com/pkg/errors"

	"github.com/dsnet/pbzip2/internal/testutil"
	"github.com/dsnet/pbzip2/internal/tool/bench"
)

var (
	allFormats = []bench.Format{bench.FormatBZ2, bench.FormatFlate, bench.FormatXZ}
	allTests   = []bench.Test{bench.TestEncodeRate, bench.TestDecodeRate, bench.TestCompressRatio}

	// refOrder lists the preferred encoders for producing decoder inputs.
	refOrder = []string{"ds", "std", "kp", "uk"}
)

type config struct {
	formats []bench.Format
	tests   []bench.Test
	codecs  []string
	files   []string
	levels  []int
	sizes   []int
}

var listSep = regexp.MustCompile("[,:]")

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	return listSep.Split(s, -1)
}

func joinStringers[T fmt.Stringer](vs []T) string {
	var ss []string
	for _, v := range vs {
		ss = append(ss, v.String())
	}
	return strings.Join(ss, ",")
}

// registeredCodecs lists every codec name, with "std" first when present.
func registeredCodecs() []string {
	seen := map[string]bool{}
	for _, m := range bench.Encoders {
		for k := range m {
			seen[k] = true
		}
	}
	for _, m := range bench.Decoders {
		for k := range m {
			seen[k] = true
		}
	}
	var names []string
	for k := range seen {
		names = append(names, k)
	}
	sort.Slice(names, func(i, j int) bool {
		if (names[i] == "std") != (names[j] == "std") {
			return names[i] == "std"
		}
		return names[i] < names[j]
	})
	return names
}

func parseNumbers(s, what string) ([]int, error) {
	var ns []int
	for _, v := range splitList(s) {
		f, err := strconv.ParsePrefix(v, strconv.AutoParse)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid %s %q", what, v)
		}
		ns = append(ns, int(f))
	}
	return ns, nil
}

func parseConfig(args []string) (*config, error) {
	var availFormats []bench.Format
	for _, f := range allFormats {
		if len(bench.Encoders[f]) > 0 || len(bench.Decoders[f]) > 0 {
			availFormats = append(availFormats, f)
		}
	}

	fs := flag.NewFlagSet("bench", flag.ContinueOnError)
	formats := fs.String("formats", joinStringers(availFormats), "List of formats to benchmark")
	tests := fs.String("tests", joinStringers(allTests), "List of different benchmark tests")
	codecs := fs.String("codecs", strings.Join(registeredCodecs(), ","), "List of codecs to benchmark")
	paths := fs.String("paths", ".", "List of paths to search for test files")
	files := fs.String("files", strings.Join(testutil.CorpusNames(), ","), "List of input files to benchmark")
	levels := fs.String("levels", "1,6,9", "List of compression levels to benchmark")
	sizes := fs.String("sizes", "1e5,1e6,1e7", "List of input sizes to benchmark")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg := &config{codecs: splitList(*codecs), files: splitList(*files)}
	bench.Paths = splitList(*paths)
	for _, s := range splitList(*formats) {
		var found bool
		for _, f := range allFormats {
			if f.String() == s {
				cfg.formats, found = append(cfg.formats, f), true
			}
		}
		if !found {
			return nil, errors.Errorf("unknown format %q", s)
		}
	}
	for _, s := range splitList(*tests) {
		var found bool
		for _, t := range allTests {
			if t.String() == s {
				cfg.tests, found = append(cfg.tests, t), true
			}
		}
		if !found {
			return nil, errors.Errorf("unknown test %q", s)
		}
	}
	var err error
	if cfg.levels, err = parseNumbers(*levels, "level"); err != nil {
		return nil, err
	}
	if cfg.sizes, err = parseNumbers(*sizes, "size"); err != nil {
		return nil, err
	}
	return cfg, nil
}

func referenceEncoder(f bench.Format) bench.Encoder {
	for _, c := range refOrder {
		if enc, ok := bench.Encoders[f][c]; ok {
			return enc
		}
	}
	for _, enc := range bench.Encoders[f] {
		return enc
	}
	return nil
}

func run(cfg *config) error {
	cases := bench.Cases(cfg.files, cfg.levels, cfg.sizes)
	for _, f := range cfg.formats {
		var encs, decs []string
		for _, c := range cfg.codecs {
			if _, ok := bench.Encoders[f][c]; ok {
				encs = append(encs, c)
			}
			if _, ok := bench.Decoders[f][c]; ok {
				decs = append(decs, c)
			}
		}

		for _, t := range cfg.tests {
			fmt.Printf("BENCHMARK: %v:%v\n", f, t)
			suite := &bench.Suite{Format: f, Codecs: encs, Cases: cases}
			if t == bench.TestDecodeRate {
				suite.Codecs, suite.Ref = decs, referenceEncoder(f)
			}
			switch {
			case len(encs) == 0:
				fmt.Printf("\tSKIP: no encoders available\n\n")
				continue
			case len(suite.Codecs) == 0:
				fmt.Printf("\tSKIP: no decoders available\n\n")
				continue
			}

			var done int
			total := len(suite.Codecs) * len(cases)
			suite.Tick = func() {
				fmt.Printf("\t[%6.2f%%] %d of %d\r", 100*float64(done)/float64(total), done, total)
				done++
			}
			tbl, err := suite.Run(t)
			if err != nil {
				return err
			}
			if err := tbl.Print(os.Stdout); err != nil {
				return err
			}
			fmt.Println()
		}
	}
	return nil
}

func main() {
	cfg, err := parseConfig(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	start := time.Now()
	if err := run(cfg); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Printf("RUNTIME: %v\n", time.Since(start))
}
