// Copyright 2015, Joe Tsai. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

// Package testutil holds helpers shared by the codec tests, fuzzers and
// benchmarks: deterministic corpora, scripted bit-streams and faulty I/O.
package testutil

import (
	"encoding/hex"
	"errors"
	"io"
	"os"
)

// ResizeData returns exactly n bytes derived from input.
// A negative n returns input unchanged. When n exceeds len(input), the input
// is tiled, with every repetition XORed by an increasing mask so that the
// copies are not byte-identical.
func ResizeData(input []byte, n int) []byte {
	switch {
	case n < 0:
		return input
	case n <= len(input):
		return input[:n]
	case len(input) == 0:
		panic("testutil: cannot resize empty input")
	}
	out := make([]byte, 0, n)
	for mask := byte(0); len(out) < n; mask++ {
		for _, b := range input[:min(len(input), n-len(out))] {
			out = append(out, b^mask)
		}
	}
	return out
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// LoadFile reads file and resizes it to n bytes with ResizeData.
func LoadFile(file string, n int) ([]byte, error) {
	b, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}
	if n > 0 && len(b) == 0 {
		return nil, errors.New("testutil: empty file: " + file)
	}
	return ResizeData(b, n), nil
}

// MustDecodeHex decodes a hexadecimal string or panics.
func MustDecodeHex(s string) []byte {
	b, err := hex.DecodeString(s)
	if err != nil {
		panic(err)
	}
	return b
}

// MustDecodeBitGen decodes a BitGen script or panics.
func MustDecodeBitGen(s string) []byte {
	b, err := DecodeBitGen(s)
	if err != nil {
		panic(err)
	}
	return b
}

// BuggyReader reads up to N bytes from R and then fails with Err.
type BuggyReader struct {
	R   io.Reader
	N   int64
	Err error
}

func (br *BuggyReader) Read(buf []byte) (int, error) {
	if br.N <= 0 {
		return 0, br.Err
	}
	if int64(len(buf)) > br.N {
		buf = buf[:br.N]
	}
	n, err := br.R.Read(buf)
	br.N -= int64(n)
	return n, err
}

// BuggyWriter accepts up to N bytes into W and then fails with Err.
// A write straddling the limit is truncated and reports Err.
type BuggyWriter struct {
	W   io.Writer
	N   int64
	Err error
}

func (bw *BuggyWriter) Write(buf []byte) (int, error) {
	short := int64(len(buf)) > bw.N
	if short {
		buf = buf[:bw.N]
	}
	n, err := bw.W.Write(buf)
	bw.N -= int64(n)
	if err == nil && short {
		err = bw.Err
	}
	return n, err
}
