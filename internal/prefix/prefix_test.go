// Copyright 2015, Joe Tsai. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

package prefix

import (
	"bufio"
	"bytes"
	"io"
	"math"
	"sort"
	"strings"
	"testing"

	"github.com/dsnet/pbzip2"
	"github.com/dsnet/pbzip2/internal"
	"github.com/dsnet/pbzip2/internal/testutil"
	"github.com/google/go-cmp/cmp"
)

var testCodes = func() (codes PrefixCodes) {
	for i := 0; i < 100; i++ {
		codes = append(codes, PrefixCode{Sym: uint32(len(codes)), Cnt: 0})
	}
	for i := 0; i < 25; i++ {
		codes = append(codes, PrefixCode{Sym: uint32(len(codes)), Cnt: 10})
	}
	for i := 0; i < 5; i++ {
		codes = append(codes, PrefixCode{Sym: uint32(len(codes)), Cnt: 1000})
	}
	codes.SortByCount()
	if err := GenerateLengths(codes, 15); err != nil {
		panic(err)
	}
	codes.SortBySymbol()
	if err := GeneratePrefixes(codes); err != nil {
		panic(err)
	}
	return codes
}()

func TestGenerate(t *testing.T) {
	r := testutil.NewRand(0)
	shuffled := func(freqs ...uint) PrefixCodes {
		codes := make(PrefixCodes, len(freqs))
		for i, j := range r.Perm(len(freqs)) {
			codes[i] = PrefixCode{Sym: uint32(i), Cnt: uint32(freqs[j])}
		}
		codes.SortByCount()
		return codes
	}
	geometric := func(n int) PrefixCodes {
		freqs := make([]uint, n)
		for i := range freqs {
			freqs[i] = 1 << uint(i)
		}
		return shuffled(freqs...)
	}
	// mtfLike mimics the skew of an MTF/RLE2 symbol histogram:
	// RUNA and RUNB dominate and counts fall off with the symbol index.
	mtfLike := func(n int) PrefixCodes {
		freqs := make([]uint, n)
		for i := range freqs {
			freqs[i] = uint(50000 / (i*i + 1))
		}
		return shuffled(freqs...)
	}

	type vector struct {
		name    string
		maxBits uint // 0 skips GenerateLengths and uses the given lengths
		input   PrefixCodes
		valid   bool
	}
	var vectors = []vector{
		{"Empty", 17, shuffled(), true},
		{"SingleUnused", 17, shuffled(0), true},
		{"Single", 17, shuffled(5), true},
		{"TwoUnused", 17, shuffled(0, 0), true},
		{"Two", 17, shuffled(5, 15), true},
		{"Small", 17, shuffled(1, 1, 2, 4), true},
		{"SmallLimited", 2, shuffled(1, 1, 2, 4), true},
		{"SmallTooLimited", 1, shuffled(1, 1, 2, 4), false},
		{"Flat", 7, shuffled(100, 101, 102, 103), true},
		{"Steps", 9, shuffled(2, 2, 2, 2, 5, 5, 5), true},
		{"Ramp", 17, shuffled(1, 2, 3, 4, 5, 6, 7, 8, 9), true},
		{"RampWithUnused", 17, shuffled(0, 0, 0, 0, 0, 1, 2, 3, 4, 5, 6, 7, 8, 9), true},
		{"Geometric17", 20, geometric(17), true},
		{"Geometric20", 17, geometric(20), true},
		{"Geometric17Limited", 12, geometric(17), true},
		{"Geometric17Tight", 9, geometric(17), true},
		{"Geometric16Minimal", 4, geometric(16), true},
		{"MTFAlphabet", 17, mtfLike(258), true},
		{"MTFAlphabetShort", 9, mtfLike(258), true},
		{"MTFAlphabetTooShort", 8, mtfLike(258), false},
		{"NotSortedByCount", 17, PrefixCodes{{Sym: 0, Cnt: 3}, {Sym: 1, Cnt: 2}, {Sym: 2, Cnt: 1}}, false},
		{"NotSortedBySymbol", 0, PrefixCodes{{Sym: 2, Len: 1}, {Sym: 1, Len: 2}, {Sym: 0, Len: 2}}, false},
		{"DuplicateSymbol", 0, PrefixCodes{{Sym: 5, Len: 1}, {Sym: 5, Len: 1}}, false},
		{"OverlongSingle", 0, PrefixCodes{{Sym: 0, Len: 500}}, false},
		{"ZeroLength", 0, PrefixCodes{{Sym: 0, Len: 1}, {Sym: 1, Len: 2}, {Sym: 2, Len: 0}}, false},
		{"Incomplete", 0, PrefixCodes{{Sym: 0, Len: 3}, {Sym: 1, Len: 4}, {Sym: 2, Len: 3}}, true},
		{"Oversubscribed", 0, PrefixCodes{{Sym: 0, Len: 1}, {Sym: 1, Len: 3}, {Sym: 2, Len: 4}, {Sym: 3, Len: 3}, {Sym: 4, Len: 2}}, false},
	}

	for _, v := range vectors {
		t.Run(v.name, func(t *testing.T) {
			codes := v.input
			if v.maxBits > 0 {
				if err := GenerateLengths(codes, v.maxBits); err != nil {
					if v.valid {
						t.Fatalf("unexpected GenerateLengths error: %v", err)
					}
					return
				}
				verifyLengths(t, codes, v.maxBits)
				codes.SortBySymbol()
			}

			if err := GeneratePrefixes(codes); err != nil {
				if v.valid {
					t.Fatalf("unexpected GeneratePrefixes error: %v", err)
				}
				return
			}
			if !v.valid {
				t.Fatal("unexpected success")
			}
			if !codes.checkPrefixes() {
				t.Error("prefixes are not unique")
			}
			if !codes.checkCanonical() {
				t.Error("prefixes are not canonical")
			}
		})
	}
}

// verifyLengths checks codes freshly sorted by count and assigned lengths:
// the tree is complete, lengths never grow with the count, maxBits holds and
// an unconstrained code lands within 15% of the entropy bound.
func verifyLengths(t *testing.T, codes PrefixCodes, maxBits uint) {
	t.Helper()
	var sum uint32
	var maxLen uint
	lens := make([]int, len(codes))
	for i, c := range codes {
		lens[i] = int(c.Len)
		sum += c.Cnt
		if uint(c.Len) > maxLen {
			maxLen = uint(c.Len)
		}
	}
	if len(codes) > 1 && !codes.checkLengths() {
		t.Error("incomplete tree generated")
	}
	if !sort.IsSorted(sort.Reverse(sort.IntSlice(lens))) {
		t.Errorf("bit-lengths are not sorted: %v", lens)
	}
	if maxLen > maxBits {
		t.Errorf("max bit-length exceeded: %d > %d", maxLen, maxBits)
	}
	if len(codes) < 4 || sum == 0 || maxBits < 15 {
		return
	}

	var entropy float64
	for _, c := range codes {
		if c.Cnt > 0 {
			p := float64(c.Cnt) / float64(sum)
			entropy -= p * math.Log2(p)
		}
	}
	got := float64(codes.Length()) / float64(sum)
	if worst := math.Log2(float64(len(codes))); got > worst {
		t.Errorf("coding cost above uniform: %0.3f > %0.3f", got, worst)
	}
	if got < entropy || got > 1.15*entropy {
		t.Errorf("coding cost %0.3f outside [%0.3f, %0.3f]", got, entropy, 1.15*entropy)
	}
}

func TestTable(t *testing.T) {
	var vectors = []struct {
		codes   PrefixCodes
		minLen  uint32
		maxLen  uint32
		symbols []uint32
		bases   map[uint32]uint32
		limits  map[uint32]uint32
	}{{
		codes: PrefixCodes{
			{Sym: 0, Len: 2}, {Sym: 1, Len: 1}, {Sym: 2, Len: 3}, {Sym: 3, Len: 3},
		},
		minLen:  1,
		maxLen:  3,
		symbols: []uint32{1, 0, 2, 3},
		bases:   map[uint32]uint32{1: 0, 2: 2, 3: 6},
		limits:  map[uint32]uint32{1: 0, 2: 2, 3: 7},
	}, {
		// Single-length table.
		codes: PrefixCodes{
			{Sym: 0, Len: 2}, {Sym: 1, Len: 2}, {Sym: 2, Len: 2}, {Sym: 3, Len: 2},
		},
		minLen:  2,
		maxLen:  2,
		symbols: []uint32{0, 1, 2, 3},
		bases:   map[uint32]uint32{2: 0},
		limits:  map[uint32]uint32{2: 3},
	}, {
		// Gap in the bit-lengths.
		codes: PrefixCodes{
			{Sym: 7, Len: 4}, {Sym: 8, Len: 1}, {Sym: 9, Len: 4}, {Sym: 10, Len: 3}, {Sym: 11, Len: 4}, {Sym: 12, Len: 4},
		},
		minLen:  1,
		maxLen:  4,
		symbols: []uint32{8, 10, 7, 9, 11, 12},
		bases:   map[uint32]uint32{1: 0, 3: 4, 4: 10},
		limits:  map[uint32]uint32{1: 0, 3: 4, 4: 13},
	}}

	for i, v := range vectors {
		if err := GeneratePrefixes(v.codes); err != nil {
			t.Fatalf("test %d, unexpected error: %v", i, err)
		}
		var pt Table
		pt.Init(v.codes)

		if pt.MinLen != v.minLen || pt.MaxLen != v.maxLen {
			t.Errorf("test %d, length range mismatch: got %d..%d, want %d..%d", i, pt.MinLen, pt.MaxLen, v.minLen, v.maxLen)
		}
		if diff := cmp.Diff(v.symbols, pt.Symbols); diff != "" {
			t.Errorf("test %d, symbol order mismatch (-want +got):\n%s", i, diff)
		}
		for l, base := range v.bases {
			if pt.Bases[l] != base || pt.Limits[l] != v.limits[l] {
				t.Errorf("test %d, length %d range mismatch: got %d..%d, want %d..%d", i, l, pt.Bases[l], pt.Limits[l], base, v.limits[l])
			}
		}
		for _, c := range v.codes {
			val, nb := pt.Code(uint(c.Sym))
			if val != c.Val || nb != c.Len {
				t.Errorf("test %d, symbol %d code mismatch: got %d:%b, want %d:%b", i, c.Sym, nb, val, c.Len, c.Val)
			}
		}
	}
}

func TestPrefix(t *testing.T) {
	var makeCodes = func(freqs []uint, maxBits uint) PrefixCodes {
		codes := make(PrefixCodes, len(freqs))
		for i, n := range freqs {
			codes[i] = PrefixCode{Sym: uint32(i), Cnt: uint32(n)}
		}
		codes.SortByCount()
		if err := GenerateLengths(codes, maxBits); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		codes.SortBySymbol()
		if err := GeneratePrefixes(codes); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		return codes
	}

	var vectors = []struct {
		codes PrefixCodes
	}{{
		codes: makeCodes([]uint{0}, 15),
	}, {
		codes: makeCodes([]uint{2, 4, 3, 2, 2, 4}, 15),
	}, {
		codes: makeCodes([]uint{2, 2, 2, 2, 5, 5, 5}, 15),
	}, {
		codes: makeCodes([]uint{100, 101, 102, 103}, 15),
	}, {
		codes: makeCodes([]uint{
			1, 1, 1, 1, 1, 2, 2, 2, 3, 4, 5, 6, 6, 7, 8, 9, 9, 10, 11, 11, 12, 12,
			14, 15, 15, 16, 18, 18, 19, 19, 20, 20, 20, 25, 25, 27, 29, 31, 32, 35,
			39, 44, 47, 52, 60, 62, 71, 73, 74, 82, 86, 97, 98, 103, 108, 110, 112,
			125, 130, 142, 154, 155, 160, 185, 198, 204, 204, 219, 222, 259, 262,
			292, 296, 302, 334, 434, 450, 679, 697, 1032, 1441, 1888, 1892, 2188,
		}, 15),
	}, {
		codes: testCodes,
	}, {
		// Sparsely allocated symbols.
		codes: []PrefixCode{
			{Sym: 16, Val: 0, Len: 1},
			{Sym: 32, Val: 2, Len: 2},
			{Sym: 64, Val: 6, Len: 3},
			{Sym: 128, Val: 7, Len: 3},
		},
	}, {
		// Large number of symbols.
		codes: func() PrefixCodes {
			freqs := make([]uint, 4096)
			for i := range freqs {
				freqs[i] = uint(i)
			}
			return makeCodes(freqs, 15)
		}(),
	}, {
		// Length limited symbols of geometric frequency.
		codes: func() PrefixCodes {
			freqs := make([]uint, 24)
			for i := range freqs {
				freqs[i] = 1 << uint(i)
			}
			return makeCodes(freqs, 20)
		}(),
	}, {
		// Every symbol of a full MTF alphabet equally likely.
		codes: func() PrefixCodes {
			freqs := make([]uint, 258)
			for i := range freqs {
				freqs[i] = 1
			}
			return makeCodes(freqs, 17)
		}(),
	}, {
		// Maximally skewed tree: one code per length 1..16 plus a second 16-bit code.
		codes: func() (codes PrefixCodes) {
			for i := 1; i <= 17; i++ {
				codes = append(codes, PrefixCode{Sym: uint32(i), Len: uint32(i)})
			}
			codes[len(codes)-1].Len = 16
			if err := GeneratePrefixes(codes); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			return codes
		}(),
	}}

	for i, v := range vectors {
		var pt Table
		pt.Init(v.codes)

		// Create an arbitrary list of symbols to encode.
		r := testutil.NewRand(i)
		syms := make([]uint, 1000)
		for i := range syms {
			syms[i] = uint(v.codes[r.Intn(len(v.codes))].Sym)
		}

		// Write some symbols.
		var buf bytes.Buffer
		var pw Writer
		pw.Init(&buf)
		for _, sym := range syms {
			pw.WriteSymbol(sym, &pt)
		}
		nb := pw.BitsWritten()
		pw.WritePads()
		if _, err := pw.Flush(); err != nil {
			t.Errorf("test %d, unexpected Writer error: %v", i, err)
		}
		if pw.Offset != int64(buf.Len()) {
			t.Errorf("test %d, offset mismatch: got %d, want %d", i, pw.Offset, buf.Len())
		}

		// Read some symbols.
		var pr Reader
		pr.Init(&buf)
		for j := range syms {
			sym := pr.ReadSymbol(&pt)
			if sym != syms[j] {
				t.Errorf("test %d, read back wrong symbol: got %d, want %d", i, sym, syms[j])
				break
			}
		}
		if got := pr.BitsRead(); got != nb {
			t.Errorf("test %d, bits read mismatch: got %d, want %d", i, got, nb)
		}
		if pads := pr.ReadPads(); pads != 0 {
			t.Errorf("test %d, unexpected padding bits: got %d, want 0", i, pads)
		}
		if ofs := pr.FlushOffset(); ofs != pw.Offset {
			t.Errorf("test %d, offset mismatch: got %d, want %d", i, ofs, pw.Offset)
		}
	}
}

func TestReader(t *testing.T) {
	var readers = map[string]func([]byte) io.Reader{
		"io.Reader": func(b []byte) io.Reader {
			return struct{ io.Reader }{bytes.NewReader(b)}
		},
		"bytes.Buffer": func(b []byte) io.Reader {
			return bytes.NewBuffer(b)
		},
		"bytes.Reader": func(b []byte) io.Reader {
			return bytes.NewReader(b)
		},
		"strings.Reader": func(b []byte) io.Reader {
			return strings.NewReader(string(b))
		},
		"pbzip2.ByteReader": func(b []byte) io.Reader {
			return struct{ pbzip2.ByteReader }{bytes.NewReader(b)}
		},
		"pbzip2.BufferedReader": func(b []byte) io.Reader {
			return struct{ pbzip2.BufferedReader }{bufio.NewReader(bytes.NewReader(b))}
		},
	}

	// Script a random sequence of operations and encode it.
	type op struct {
		sym  bool
		val  uint
		bits uint
	}
	var pt Table
	pt.Init(testCodes)
	r := testutil.NewRand(0)
	var ops []op
	var buf bytes.Buffer
	var pw Writer
	pw.Init(&buf)
	for pw.BitsWritten() < 8*4096 {
		if r.Intn(2) == 0 {
			nb := uint(r.Intn(33))
			v := uint(r.Int()) & (1<<nb - 1)
			ops = append(ops, op{val: v, bits: nb})
			pw.WriteBits(v, nb)
		} else {
			sym := uint(testCodes[r.Intn(len(testCodes))].Sym)
			ops = append(ops, op{sym: true, val: sym})
			pw.WriteSymbol(sym, &pt)
		}
	}
	nb := pw.BitsWritten()
	pw.WritePads()
	pw.WriteBits(0xa5, 8) // Trailing byte that must remain unread
	if _, err := pw.Flush(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	input := buf.Bytes()

	for name, newReader := range readers {
		var pr Reader
		rd := newReader(input)
		pr.Init(rd)
		for j, o := range ops {
			var got uint
			if o.sym {
				got = pr.ReadSymbol(&pt)
			} else {
				got = pr.ReadBits(o.bits)
			}
			if got != o.val {
				t.Errorf("%s, op %d, value mismatch: got %d, want %d", name, j, got, o.val)
				break
			}
		}
		if got := pr.BitsRead(); got != nb {
			t.Errorf("%s, bits read mismatch: got %d, want %d", name, got, nb)
		}
		if pads := pr.ReadPads(); pads != 0 {
			t.Errorf("%s, bit padding mismatch: got %d, want 0", name, pads)
		}
		if ofs := pr.FlushOffset(); ofs != int64(len(input)-1) {
			t.Errorf("%s, offset mismatch: got %d, want %d", name, ofs, len(input)-1)
		}
		if pr.AtEOF() {
			t.Errorf("%s, unexpected EOF before trailing byte", name)
		}
		if got := pr.ReadBits(8); got != 0xa5 {
			t.Errorf("%s, trailing byte mismatch: got %#x, want 0xa5", name, got)
		}
		if !pr.AtEOF() {
			t.Errorf("%s, missing EOF after trailing byte", name)
		}
	}
}

func TestReaderErrors(t *testing.T) {
	var readSymbol = func(input []byte, pt *Table) (err error) {
		defer func() {
			if ex := recover(); ex != nil {
				err = ex.(error)
			}
		}()
		var pr Reader
		pr.Init(bytes.NewReader(input))
		pr.ReadSymbol(pt)
		return nil
	}

	// Incomplete tree where the bit-string "11" is unused.
	codes := PrefixCodes{{Sym: 0, Len: 1}, {Sym: 1, Len: 2}}
	if err := GeneratePrefixes(codes); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var pt Table
	pt.Init(codes)

	if err := readSymbol([]byte{0xc0}, &pt); err != internal.ErrInvalid {
		t.Errorf("unused code error mismatch: got %v, want %v", err, internal.ErrInvalid)
	}
	if err := readSymbol([]byte{}, &pt); err != io.ErrUnexpectedEOF {
		t.Errorf("truncated input error mismatch: got %v, want %v", err, io.ErrUnexpectedEOF)
	}
	if err := readSymbol([]byte{0x80}, &pt); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := readSymbol([]byte{0x00}, new(Table)); err != internal.ErrInvalid {
		t.Errorf("empty table error mismatch: got %v, want %v", err, internal.ErrInvalid)
	}
}

func TestWriteBitString(t *testing.T) {
	r := testutil.NewRand(0)
	for i := 0; i < 50; i++ {
		// Encode some random bit-string with an unaligned length.
		nb := int64(r.Intn(200))
		src := r.Bytes(int(nb+7) / 8)
		if rem := nb % 8; rem > 0 {
			src[len(src)-1] &= 0xff << uint(8-rem)
		}

		// Splice it after an unaligned prefix and compare bit-for-bit.
		lead := uint(r.Intn(8))
		var want, got bytes.Buffer
		var pw1, pw2 Writer
		pw1.Init(&want)
		pw2.Init(&got)
		pw1.WriteBits(0x55, lead)
		pw2.WriteBits(0x55, lead)
		for j := int64(0); j < nb; j++ {
			pw1.WriteBits(uint(src[j/8]>>(7-uint(j%8))&1), 1)
		}
		pw2.WriteBitString(src, nb)
		if pw1.BitsWritten() != pw2.BitsWritten() {
			t.Errorf("test %d, bit count mismatch: got %d, want %d", i, pw2.BitsWritten(), pw1.BitsWritten())
		}
		pw1.WritePads()
		pw2.WritePads()
		pw1.Flush()
		pw2.Flush()
		if !bytes.Equal(got.Bytes(), want.Bytes()) {
			t.Errorf("test %d, output mismatch:\ngot  %x\nwant %x", i, got.Bytes(), want.Bytes())
		}
	}
}

func TestString(t *testing.T) {
	codes := PrefixCodes{{Sym: 0, Len: 2, Cnt: 3}, {Sym: 1, Len: 1, Cnt: 10}, {Sym: 2, Len: 3}, {Sym: 3, Len: 3, Cnt: 1}}
	if err := GeneratePrefixes(codes); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var pt Table
	pt.Init(codes)

	wantCodes := " 0:  10  3\n 1:   0 10\n 2: 110  0\n 3: 111  1\n"
	if got := codes.String(); got != wantCodes {
		t.Errorf("PrefixCodes.String mismatch:\ngot  %q\nwant %q", got, wantCodes)
	}
	wantTable := "len  1: 0-0 [1]\nlen  2: 10-10 [0]\nlen  3: 110-111 [2 3]\n"
	if got := pt.String(); got != wantTable {
		t.Errorf("Table.String mismatch:\ngot  %q\nwant %q", got, wantTable)
	}
}
