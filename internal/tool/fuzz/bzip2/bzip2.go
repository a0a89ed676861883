// Copyright 2016, Joe Tsai. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

//go:build gofuzz
// +build gofuzz

package bzip2

import (
	"bytes"
	stdbzip2 "compress/bzip2"
	"io"

	"github.com/dsnet/pbzip2"
	"github.com/dsnet/pbzip2/bzip2"
)

func Fuzz(data []byte) int {
	data, ok := testDecoders(data)
	for _, level := range []int{1, 5, 9} {
		testEncoder(data, level, 0)
		testEncoder(data, level, 3)
	}
	testTransform(data)
	if ok {
		return 1 // Favor valid inputs
	}
	return 0
}

// testDecoders tests that the input can be handled by both this decoder and
// the standard library decoder. This test does not panic if both decoders
// run into an error, since it means that they both agree that the input is
// bad.
func testDecoders(data []byte) ([]byte, bool) {
	gr, err := bzip2.NewReader(bytes.NewReader(data), nil)
	if err != nil {
		panic(err)
	}
	defer gr.Close()
	sr := stdbzip2.NewReader(bytes.NewReader(data))

	gb, gerr := io.ReadAll(gr)
	sb, serr := io.ReadAll(sr)

	switch {
	case gerr == nil && serr == nil:
		if !bytes.Equal(gb, sb) {
			panic("mismatching bytes")
		}
		if err := gr.Close(); err != nil {
			panic(err)
		}
		return gb, true
	case gerr != nil && serr == nil:
		// The standard library accepts randomized blocks and ignores some
		// trailing garbage.
		if err, ok := gerr.(pbzip2.Error); ok && (err.IsDeprecated() || err.IsCorrupted()) {
			return sb, false
		}
		panic(gerr)
	case gerr == nil && serr != nil:
		// This decoder accepts RLE1 runs cut short at the end of a block.
		return gb, false
	default:
		return nil, false
	}
}

// testEncoder encodes the input data and then checks that both decoders can
// properly decompress the output.
func testEncoder(data []byte, level, workers int) {
	bb := new(bytes.Buffer)
	gw, err := bzip2.NewWriter(bb, &bzip2.WriterConfig{Level: level, Workers: workers})
	if err != nil {
		panic(err)
	}
	defer gw.Close()
	n, err := gw.Write(data)
	if n != len(data) || err != nil {
		panic(err)
	}
	if err := gw.Close(); err != nil {
		panic(err)
	}

	b, ok := testDecoders(bb.Bytes())
	if !ok {
		panic("decoder error")
	}
	if !bytes.Equal(b, data) {
		panic("mismatching bytes")
	}
}

// testTransform checks that the block sorting transform is reversible.
func testTransform(data []byte) {
	buf := append([]byte(nil), data...)
	ptr := bzip2.ForwardBWT(buf)
	bzip2.ReverseBWT(buf, ptr)
	if !bytes.Equal(buf, data) {
		panic("mismatching bytes")
	}
}
