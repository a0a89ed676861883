// Copyright 2015, Joe Tsai. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

package bzip2

import (
	"bytes"
	stdbzip2 "compress/bzip2"
	"fmt"
	"io"
	"testing"

	"github.com/dsnet/pbzip2/internal/testutil"
)

func compress(t testing.TB, input []byte, conf *WriterConfig) []byte {
	var buf bytes.Buffer
	wr, err := NewWriter(&buf, conf)
	if err != nil {
		t.Fatalf("unexpected NewWriter error: %v", err)
	}
	cnt, err := io.Copy(wr, bytes.NewReader(input))
	if err != nil {
		t.Fatalf("unexpected write error: %v", err)
	}
	if cnt != int64(len(input)) {
		t.Fatalf("write count mismatch: got %d, want %d", cnt, len(input))
	}
	if err := wr.Close(); err != nil {
		t.Fatalf("unexpected close error: %v", err)
	}
	if wr.InputOffset != int64(len(input)) {
		t.Errorf("input offset mismatch: got %d, want %d", wr.InputOffset, len(input))
	}
	if wr.OutputOffset != int64(buf.Len()) {
		t.Errorf("output offset mismatch: got %d, want %d", wr.OutputOffset, buf.Len())
	}
	if got, want := wr.Checksum(), updateCRC(0, input); got != want {
		t.Errorf("checksum mismatch: got %08x, want %08x", got, want)
	}
	return buf.Bytes()
}

func decompress(input []byte) ([]byte, error) {
	rd, err := NewReader(bytes.NewReader(input), nil)
	if err != nil {
		return nil, err
	}
	output, err := io.ReadAll(rd)
	if err != nil {
		return output, err
	}
	return output, rd.Close()
}

func TestRoundTrip(t *testing.T) {
	size := 250000
	if testing.Short() {
		size = 50000
	}

	for _, name := range testutil.CorpusNames() {
		input := testutil.Corpora[name](size)
		for _, lvl := range []int{BestSpeed, 5, BestCompression} {
			var want []byte
			for _, workers := range []int{0, 1, 4} {
				desc := fmt.Sprintf("%s/level%d/workers%d", name, lvl, workers)
				output := compress(t, input, &WriterConfig{Level: lvl, Workers: workers})

				// The output must not depend on the number of workers.
				if want == nil {
					want = output
				} else if !bytes.Equal(output, want) {
					t.Errorf("%s, compressed output differs from serial output", desc)
				}

				got, err := decompress(output)
				if err != nil {
					t.Errorf("%s, unexpected read error: %v", desc, err)
				}
				if !bytes.Equal(got, input) {
					t.Errorf("%s, output data mismatch", desc)
				}

				got, err = io.ReadAll(stdbzip2.NewReader(bytes.NewReader(output)))
				if err != nil {
					t.Errorf("%s, unexpected compress/bzip2 error: %v", desc, err)
				}
				if !bytes.Equal(got, input) {
					t.Errorf("%s, compress/bzip2 output data mismatch", desc)
				}
			}
		}
	}
}

// TestRoundTripLevels compresses an input spanning several blocks at every
// level and checks that both decoders recover it.
func TestRoundTripLevels(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping multi-megabyte round trip in short mode")
	}

	input := testutil.Corpora["binary"](3e6)
	for lvl := BestSpeed; lvl <= BestCompression; lvl++ {
		var want []byte
		for _, workers := range []int{0, 1, 4} {
			desc := fmt.Sprintf("level%d/workers%d", lvl, workers)
			output := compress(t, input, &WriterConfig{Level: lvl, Workers: workers})
			if want == nil {
				want = output
			} else if !bytes.Equal(output, want) {
				t.Errorf("%s, compressed output differs from serial output", desc)
				continue
			}
			if workers > 0 {
				continue // Identical to the serial output already decoded
			}

			rd, err := NewReader(bytes.NewReader(output), nil)
			if err != nil {
				t.Fatalf("%s, unexpected NewReader error: %v", desc, err)
			}
			got, err := io.ReadAll(rd)
			if err != nil {
				t.Errorf("%s, unexpected read error: %v", desc, err)
			}
			if !bytes.Equal(got, input) {
				t.Errorf("%s, output data mismatch", desc)
			}
			if rd.blkCnt < 2 {
				t.Errorf("%s, block count mismatch: got %d, want several", desc, rd.blkCnt)
			}

			got, err = io.ReadAll(stdbzip2.NewReader(bytes.NewReader(output)))
			if err != nil {
				t.Errorf("%s, unexpected compress/bzip2 error: %v", desc, err)
			}
			if !bytes.Equal(got, input) {
				t.Errorf("%s, compress/bzip2 output data mismatch", desc)
			}
		}
	}
}

func TestRoundTripOptions(t *testing.T) {
	input := testutil.Text(120000)
	var vectors = []WriterConfig{
		{MaxCodeLen: 9},
		{MaxCodeLen: 20},
		{Iterations: 1},
		{Iterations: 16},
		{Level: BestSpeed, Workers: 2, Backlog: 1},
		{Level: BestSpeed, Workers: 3, Backlog: 9},
	}
	for i, conf := range vectors {
		conf := conf
		output := compress(t, input, &conf)
		got, err := decompress(output)
		if err != nil {
			t.Errorf("test %d, unexpected read error: %v", i, err)
		}
		if !bytes.Equal(got, input) {
			t.Errorf("test %d, output data mismatch", i)
		}
	}
}

// TestBlockBoundaries writes inputs around the size of a block, where runs
// of repeated bytes must never straddle two blocks.
func TestBlockBoundaries(t *testing.T) {
	max := maxBlockSize(BestSpeed)
	var vectors = [][]byte{
		testutil.Random(max - 1),
		testutil.Random(max),
		testutil.Random(max + 1),
		append(testutil.Random(max-2), 'a', 'a', 'a', 'a', 'a', 'a'),
		append(testutil.Random(max-3), 'a', 'a', 'a', 'a', 'a', 'a'),
		append(testutil.Random(max-4), 'a', 'a', 'a', 'a', 'a', 'a'),
		bytes.Repeat([]byte("abcd"), max),
	}
	for i, input := range vectors {
		for _, workers := range []int{0, 2} {
			output := compress(t, input, &WriterConfig{Level: BestSpeed, Workers: workers})
			got, err := decompress(output)
			if err != nil {
				t.Errorf("test %d, unexpected read error: %v", i, err)
			}
			if !bytes.Equal(got, input) {
				t.Errorf("test %d, output data mismatch", i)
			}
		}
	}
}

func TestEmptyStream(t *testing.T) {
	const want = "425a683917724538509000000000"
	output := compress(t, nil, nil)
	if got := fmt.Sprintf("%x", output); got != want {
		t.Errorf("output mismatch:\ngot  %s\nwant %s", got, want)
	}
	got, err := decompress(output)
	if err != nil {
		t.Errorf("unexpected read error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("output length mismatch: got %d, want 0", len(got))
	}
}

func TestMultiStream(t *testing.T) {
	in1, in2 := testutil.Digits(150000), testutil.Text(70000)
	var input, stream []byte
	for _, in := range [][]byte{in1, nil, in2, in1} {
		input = append(input, in...)
		stream = append(stream, compress(t, in, &WriterConfig{Level: BestSpeed, Workers: 2})...)
	}

	rd, err := NewReader(bytes.NewReader(stream), nil)
	if err != nil {
		t.Fatalf("unexpected NewReader error: %v", err)
	}
	output, err := io.ReadAll(rd)
	if err != nil {
		t.Errorf("unexpected read error: %v", err)
	}
	if !bytes.Equal(output, input) {
		t.Errorf("output data mismatch")
	}
	if rd.InputOffset != int64(len(stream)) {
		t.Errorf("input offset mismatch: got %d, want %d", rd.InputOffset, len(stream))
	}
	if rd.OutputOffset != int64(len(input)) {
		t.Errorf("output offset mismatch: got %d, want %d", rd.OutputOffset, len(input))
	}
	if got, want := rd.Checksum(), updateCRC(0, input); got != want {
		t.Errorf("checksum mismatch: got %08x, want %08x", got, want)
	}
}

func TestCombineCRC(t *testing.T) {
	input := testutil.Text(10000)
	want := updateCRC(0, input)
	for _, n := range []int{0, 1, 4999, 10000} {
		crc1 := updateCRC(0, input[:n])
		crc2 := updateCRC(0, input[n:])
		if got := combineCRC(crc1, crc2, int64(len(input)-n)); got != want {
			t.Errorf("split %d, checksum mismatch: got %08x, want %08x", n, got, want)
		}
	}
	if got := updateCRC(0, []byte("hello world\n")); got != 0x4eece836 {
		t.Errorf("checksum mismatch: got %08x, want %08x", got, 0x4eece836)
	}
}

func benchmarkEncode(b *testing.B, name string, level, workers, n int) {
	b.StopTimer()
	b.SetBytes(int64(n))
	buf := testutil.Corpora[name](n)
	b.ReportAllocs()
	b.StartTimer()
	for i := 0; i < b.N; i++ {
		wr, err := NewWriter(io.Discard, &WriterConfig{Level: level, Workers: workers})
		if err != nil {
			b.Fatalf("unexpected error: %v", err)
		}
		if _, err := wr.Write(buf); err != nil {
			b.Fatalf("unexpected error: %v", err)
		}
		if err := wr.Close(); err != nil {
			b.Fatalf("unexpected error: %v", err)
		}
	}
}

func BenchmarkEncodeDigitsSerial1e6(b *testing.B)   { benchmarkEncode(b, "digits", 9, 0, 1e6) }
func BenchmarkEncodeDigitsParallel1e6(b *testing.B) { benchmarkEncode(b, "digits", 1, 4, 1e6) }
func BenchmarkEncodeTextSerial1e6(b *testing.B)     { benchmarkEncode(b, "text", 9, 0, 1e6) }
func BenchmarkEncodeTextParallel1e6(b *testing.B)   { benchmarkEncode(b, "text", 1, 4, 1e6) }
func BenchmarkEncodeZerosSerial1e6(b *testing.B)    { benchmarkEncode(b, "zeros", 9, 0, 1e6) }
