// Copyright 2015, Joe Tsai. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

// Package prefix implements length-limited canonical prefix codes and the
// MSB-first bit reader and writer used to consume them.
package prefix

import (
	"sort"

	"github.com/dsnet/pbzip2/internal"
)

// MaxPrefixBits is the longest prefix code supported by a Table.
const MaxPrefixBits = 24

const (
	countBits = 5
	countMask = (1 << countBits) - 1
)

// PrefixCode is a representation of a prefix code, which is conceptually a
// mapping from some arbitrary symbol to some bit-string.
//
// The Sym and Cnt fields are typically provided by the user,
// while the Len and Val fields are generated by this package.
type PrefixCode struct {
	Sym uint32 // The symbol being mapped
	Cnt uint32 // The number times this symbol is used
	Len uint32 // Bit-length of the prefix code
	Val uint32 // Value of the prefix code (most-significant bit first)
}
type PrefixCodes []PrefixCode

type prefixCodesBySymbol []PrefixCode

func (c prefixCodesBySymbol) Len() int           { return len(c) }
func (c prefixCodesBySymbol) Less(i, j int) bool { return c[i].Sym < c[j].Sym }
func (c prefixCodesBySymbol) Swap(i, j int)      { c[i], c[j] = c[j], c[i] }

type prefixCodesByCount []PrefixCode

func (c prefixCodesByCount) Len() int { return len(c) }
func (c prefixCodesByCount) Less(i, j int) bool {
	return c[i].Cnt < c[j].Cnt || (c[i].Cnt == c[j].Cnt && c[i].Sym < c[j].Sym)
}
func (c prefixCodesByCount) Swap(i, j int) { c[i], c[j] = c[j], c[i] }

func (pc PrefixCodes) SortBySymbol() { sort.Sort(prefixCodesBySymbol(pc)) }
func (pc PrefixCodes) SortByCount()  { sort.Sort(prefixCodesByCount(pc)) }

// Length computes the total bit-length using the Len and Cnt fields.
func (pc PrefixCodes) Length() (nb uint) {
	for _, c := range pc {
		nb += uint(c.Len * c.Cnt)
	}
	return nb
}

// checkLengths reports whether the codes form a complete prefix tree.
func (pc PrefixCodes) checkLengths() bool {
	sum := 1 << MaxPrefixBits
	for _, c := range pc {
		sum -= (1 << MaxPrefixBits) >> uint(c.Len)
	}
	return sum == 0 || len(pc) == 0
}

// checkPrefixes reports whether all codes have non-overlapping prefixes.
func (pc PrefixCodes) checkPrefixes() bool {
	for i, c1 := range pc {
		for j, c2 := range pc {
			mask := uint32(1)<<c1.Len - 1
			if i != j && c1.Len <= c2.Len && c1.Val&mask == (c2.Val>>(c2.Len-c1.Len))&mask {
				return false
			}
		}
	}
	return true
}

// checkCanonical reports whether all codes are canonical.
// That is, they have the following properties:
//
//	1. All codes of a given bit-length are consecutive values.
//	2. Shorter codes lexicographically precede longer codes.
//
// The codes must have unique symbols and be sorted by the symbol.
func (pc PrefixCodes) checkCanonical() bool {
	// Rule 1.
	var vals [MaxPrefixBits + 1]PrefixCode
	for _, c := range pc {
		if c.Len > 0 {
			if vals[c.Len].Cnt > 0 && vals[c.Len].Val+1 != c.Val {
				return false
			}
			vals[c.Len].Val = c.Val
			vals[c.Len].Cnt++
		}
	}

	// Rule 2.
	var last PrefixCode
	for _, v := range vals {
		if v.Cnt > 0 {
			curVal := v.Val - v.Cnt + 1
			if last.Cnt != 0 && last.Val >= curVal>>(v.Len-last.Len) {
				return false
			}
			last = v
		}
	}
	return true
}

// GenerateLengths assigns non-zero bit-lengths to all codes. Codes with high
// frequency counts will be assigned shorter codes to reduce bit entropy.
// This function is used primarily by compressors.
//
// The input codes must have the Cnt field populated, be sorted by count.
// Even if a code has a count of 0, a non-zero bit-length will be assigned.
//
// The result will have the Len field populated. The algorithm used guarantees
// that Len <= maxBits and that it is a complete prefix tree. The resulting
// codes will remain sorted by count.
func GenerateLengths(codes PrefixCodes, maxBits uint) error {
	if len(codes) <= 1 {
		if len(codes) == 1 {
			codes[0].Len = 1
		}
		return nil
	}

	// Verify that the codes are in ascending order by count.
	for i := range codes[:len(codes)-1] {
		if codes[i].Cnt > codes[i+1].Cnt {
			return internal.Error("non-monotonically increasing symbol counts")
		}
	}
	if maxBits > MaxPrefixBits || uint(len(codes)) > 1<<maxBits {
		return internal.Error("prefix tree cannot satisfy the length limit")
	}

	// Build the Huffman tree with two queues: the sorted leaves and the
	// internal nodes, which are created in non-decreasing weight order.
	// Zero counts are weighed as one so that every symbol stays encodable.
	n := len(codes)
	weights := make([]uint64, 2*n-1)
	parents := make([]int32, 2*n-1)
	for i, c := range codes {
		weights[i] = uint64(c.Cnt)
		if c.Cnt == 0 {
			weights[i] = 1
		}
	}
	leaf, node, next := 0, n, n
	pick := func() int {
		if leaf < n && (node >= next || weights[leaf] <= weights[node]) {
			leaf++
			return leaf - 1
		}
		node++
		return node - 1
	}
	for ; next < 2*n-1; next++ {
		a, b := pick(), pick()
		weights[next] = weights[a] + weights[b]
		parents[a], parents[b] = int32(next), int32(next)
	}

	// Compute the depth of every leaf and histogram them.
	depths := weights // Reuse the weights buffer
	depths[2*n-2] = 0
	for i := 2*n - 3; i >= 0; i-- {
		depths[i] = depths[parents[i]] + 1
	}
	blCnts := make([]uint32, n)
	var maxDepth int
	for _, d := range depths[:n] {
		blCnts[d]++
		if maxDepth < int(d) {
			maxDepth = int(d)
		}
	}

	// Move overly deep leaves up the tree. Two sibling leaves at the deepest
	// level are promoted as a pair: one replaces their parent while the other
	// hangs below a shallower leaf that is demoted to an internal node.
	for i := maxDepth; i > int(maxBits); i-- {
		for blCnts[i] > 0 {
			j := i - 2
			for blCnts[j] == 0 {
				j--
			}
			blCnts[i] -= 2
			blCnts[i-1]++
			blCnts[j+1] += 2
			blCnts[j]--
		}
	}

	// Assign the longest lengths to the least frequent symbols.
	var idx int
	for l := len(blCnts) - 1; l > 0; l-- {
		for k := uint32(0); k < blCnts[l]; k++ {
			codes[idx].Len = uint32(l)
			idx++
		}
	}
	if internal.Debug && !codes.checkLengths() {
		panic("incomplete prefix tree generated")
	}
	return nil
}

// GeneratePrefixes assigns a prefix value to all codes according to the
// bit-lengths. This function is used by both compressors and decompressors.
//
// The input codes must have the Sym and Len fields populated and be
// sorted by symbol. The bit-lengths of each code must be properly allocated,
// such that it forms a prefix tree that is not over-subscribed. Incomplete
// trees are permitted; decoding an unused bit-string fails later.
//
// The result will have the Val field populated and will produce a canonical
// prefix tree. The resulting codes will remain sorted by symbol.
func GeneratePrefixes(codes PrefixCodes) error {
	if len(codes) == 0 {
		return nil
	}

	// Compute basic statistics on the symbols.
	var bitCnts [MaxPrefixBits + 1]uint32
	minBits, maxBits := uint32(MaxPrefixBits), uint32(0)
	for i, c := range codes {
		if i > 0 && c.Sym <= codes[i-1].Sym {
			return internal.Error("non-unique or non-monotonically increasing symbols")
		}
		if c.Len == 0 || c.Len > MaxPrefixBits {
			return internal.Error("invalid prefix bit-length")
		}
		if minBits > c.Len {
			minBits = c.Len
		}
		if maxBits < c.Len {
			maxBits = c.Len
		}
		bitCnts[c.Len]++
	}

	// Compute the next code for a symbol of a given bit length.
	var nextCodes [MaxPrefixBits + 1]uint32
	var code uint32
	for i := minBits; i <= maxBits; i++ {
		code <<= 1
		nextCodes[i] = code
		code += bitCnts[i]
	}
	if code > 1<<maxBits {
		return internal.Error("over-subscribed prefix tree")
	}

	// Assign the code to each symbol.
	for i, c := range codes {
		codes[i].Val = nextCodes[c.Len]
		nextCodes[c.Len]++
	}

	if internal.Debug && !codes.checkPrefixes() {
		panic("overlapping prefixes detected")
	}
	if internal.Debug && !codes.checkCanonical() {
		panic("non-canonical prefixes detected")
	}
	return nil
}

// Table is a canonical prefix code table. The same immutable value is used
// by Writer.WriteSymbol to encode and by Reader.ReadSymbol to decode.
//
// For every bit-length L in MinLen..MaxLen, the codes of length L are the
// consecutive values Bases[L]..Limits[L], and they map in order to the
// symbols Symbols[Offsets[L]:Offsets[L]+Counts[L]]. Limits[L] is only
// meaningful when Counts[L] > 0.
type Table struct {
	MinLen  uint32
	MaxLen  uint32
	Counts  [MaxPrefixBits + 1]uint32
	Offsets [MaxPrefixBits + 1]uint32
	Bases   [MaxPrefixBits + 1]uint32
	Limits  [MaxPrefixBits + 1]uint32
	Symbols []uint32 // Symbols ordered by ascending (length, symbol)

	codes []uint32 // Indexed by symbol; Val<<countBits | Len
}

// Init initializes the Table from the bit-lengths of the given codes.
// The codes must be sorted by symbol and satisfy GeneratePrefixes.
func (t *Table) Init(codes PrefixCodes) {
	*t = Table{Symbols: t.Symbols[:0], codes: t.codes[:0]}
	if len(codes) == 0 {
		return
	}

	var maxSym uint32
	t.MinLen = MaxPrefixBits
	for _, c := range codes {
		if c.Len < t.MinLen {
			t.MinLen = c.Len
		}
		if c.Len > t.MaxLen {
			t.MaxLen = c.Len
		}
		if c.Sym > maxSym {
			maxSym = c.Sym
		}
		t.Counts[c.Len]++
	}

	var off, code uint32
	for l := t.MinLen; l <= t.MaxLen; l++ {
		t.Offsets[l] = off
		t.Bases[l] = code
		t.Limits[l] = code + t.Counts[l] - 1
		off += t.Counts[l]
		code = (code + t.Counts[l]) << 1
	}

	t.Symbols = allocUint32s(t.Symbols, len(codes))
	var next [MaxPrefixBits + 1]uint32
	copy(next[:], t.Offsets[:])
	for _, c := range codes {
		t.Symbols[next[c.Len]] = c.Sym
		next[c.Len]++
	}

	t.codes = allocUint32s(t.codes, int(maxSym)+1)
	for i := range t.codes {
		t.codes[i] = 0
	}
	for l := t.MinLen; l <= t.MaxLen; l++ {
		for k := uint32(0); k < t.Counts[l]; k++ {
			sym := t.Symbols[t.Offsets[l]+k]
			t.codes[sym] = (t.Bases[l]+k)<<countBits | l
		}
	}
}

// Code returns the prefix value and bit-length assigned to sym.
// The bit-length is zero if the symbol is not in the table.
func (t *Table) Code(sym uint) (val, nb uint32) {
	if sym >= uint(len(t.codes)) {
		return 0, 0
	}
	c := t.codes[sym]
	return c >> countBits, c & countMask
}

func allocUint32s(s []uint32, n int) []uint32 {
	if cap(s) >= n {
		return s[:n]
	}
	return make([]uint32, n, n*3/2)
}
