// Copyright 2015, Joe Tsai. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

package bzip2

import "github.com/dsnet/pbzip2/internal/prefix"

// numTreesLUT maps the size of a block, as a percentage of the largest block
// for its compression level, to the number of prefix trees used to code it.
var numTreesLUT [101]uint8

// selTables holds the prefix tables used to code the MTF transformed
// selectors, indexed by the number of trees. The selector index i is coded
// with i one bits followed by a zero bit, which is exactly the canonical code
// with bit-lengths 1, 2, ..., numTrees.
var selTables [maxNumTrees + 1]prefix.Table

func init() {
	thresholds := [...]struct{ pct, numTrees int }{
		{0, 2}, {3, 3}, {6, 4}, {12, 5}, {25, 6},
	}
	for _, th := range thresholds {
		for pct := th.pct; pct < len(numTreesLUT); pct++ {
			numTreesLUT[pct] = uint8(th.numTrees)
		}
	}

	for n := minNumTrees; n <= maxNumTrees; n++ {
		codes := make(prefix.PrefixCodes, n)
		for i := range codes {
			codes[i] = prefix.PrefixCode{Sym: uint32(i), Len: uint32(i + 1)}
		}
		if err := prefix.GeneratePrefixes(codes); err != nil {
			panic(err)
		}
		selTables[n].Init(codes)
	}
}

// treeCount returns the number of trees to use for a block of blkLen bytes
// coded as numSyms symbols, where maxLen is the largest possible block.
func treeCount(blkLen, maxLen, numSyms int) int {
	pct := 100 * blkLen / maxLen
	if pct >= len(numTreesLUT) {
		pct = len(numTreesLUT) - 1
	}
	n := int(numTreesLUT[pct])
	if numGroups := (numSyms + groupSize - 1) / groupSize; n > numGroups {
		n = numGroups // Extra trees would never be selected
	}
	if n < minNumTrees {
		n = minNumTrees
	}
	return n
}

// treeBuilder chooses the prefix trees for a block and the tree that codes
// each group of symbols.
type treeBuilder struct {
	numTrees  int
	alphaSize int
	sels      []uint8
	codes     [maxNumTrees][maxNumSyms]prefix.PrefixCode
	trees     [maxNumTrees]prefix.Table
	lens      [maxNumTrees][maxNumSyms]uint8
}

// Build assigns round-robin trees to the groups of syms and then alternates
// between regenerating every tree from the groups assigned to it and moving
// each group to its cheapest tree. It stops once no group moves or after
// iters rounds. The final trees always match the final assignment.
func (tb *treeBuilder) Build(syms []uint16, alphaSize, numTrees, iters int, maxBits uint) {
	numGroups := (len(syms) + groupSize - 1) / groupSize
	if cap(tb.sels) < numGroups {
		tb.sels = make([]uint8, numGroups)
	}
	tb.sels = tb.sels[:numGroups]
	tb.numTrees, tb.alphaSize = numTrees, alphaSize
	for g := range tb.sels {
		tb.sels[g] = uint8(g % numTrees)
	}

	stale := true
	for i := 0; i < iters && stale; i++ {
		tb.generate(syms, maxBits)
		stale = false
		for g := range tb.sels {
			group := syms[g*groupSize:]
			if len(group) > groupSize {
				group = group[:groupSize]
			}

			best, bestCost := tb.sels[g], -1
			for t := 0; t < numTrees; t++ {
				var cost int
				lens := &tb.lens[t]
				for _, s := range group {
					cost += int(lens[s])
				}
				if bestCost < 0 || cost < bestCost {
					best, bestCost = uint8(t), cost
				}
			}
			if tb.sels[g] != best {
				tb.sels[g] = best
				stale = true
			}
		}
	}
	if stale {
		tb.generate(syms, maxBits)
	}
}

// generate regenerates every tree from the symbol frequencies of the groups
// currently assigned to it.
func (tb *treeBuilder) generate(syms []uint16, maxBits uint) {
	var freqs [maxNumTrees][maxNumSyms]uint32
	for g, t := range tb.sels {
		group := syms[g*groupSize:]
		if len(group) > groupSize {
			group = group[:groupSize]
		}
		for _, s := range group {
			freqs[t][s]++
		}
	}

	for t := 0; t < tb.numTrees; t++ {
		codes := prefix.PrefixCodes(tb.codes[t][:tb.alphaSize])
		for s := range codes {
			codes[s] = prefix.PrefixCode{Sym: uint32(s), Cnt: freqs[t][s]}
		}
		codes.SortByCount()
		if err := prefix.GenerateLengths(codes, maxBits); err != nil {
			panic(err)
		}
		codes.SortBySymbol()
		if err := prefix.GeneratePrefixes(codes); err != nil {
			panic(err)
		}
		tb.trees[t].Init(codes)
		for s, c := range codes {
			tb.lens[t][s] = uint8(c.Len)
		}
	}
}

// writeSelectors writes the number of trees and the MTF coded selectors.
func writeSelectors(pw *prefix.Writer, sels []uint8, numTrees int) {
	pw.WriteBits(uint(numTrees), 3)
	pw.WriteBits(uint(len(sels)), numSelBits)

	var mtf [maxNumTrees]uint8
	for i := range mtf {
		mtf[i] = uint8(i)
	}
	for _, s := range sels {
		var idx int
		for mtf[idx] != s {
			idx++
		}
		copy(mtf[1:], mtf[:idx])
		mtf[0] = s
		pw.WriteSymbol(uint(idx), &selTables[numTrees])
	}
}

// readSelectors reads the number of trees and the selectors, undoing their
// MTF transform. Selectors beyond maxSelectors are read and discarded.
func readSelectors(pr *prefix.Reader, sels []uint8) (numTrees int, _ []uint8) {
	numTrees = int(pr.ReadBits(3))
	if numTrees < minNumTrees || numTrees > maxNumTrees {
		panic(ErrCorrupt)
	}
	numSels := int(pr.ReadBits(numSelBits))
	if numSels == 0 {
		panic(ErrCorrupt)
	}

	var mtf [maxNumTrees]uint8
	for i := range mtf {
		mtf[i] = uint8(i)
	}
	sels = sels[:0]
	for i := 0; i < numSels; i++ {
		idx := pr.ReadSymbol(&selTables[numTrees])
		if i >= maxSelectors {
			continue
		}
		s := mtf[idx]
		copy(mtf[1:], mtf[:idx])
		mtf[0] = s
		sels = append(sels, s)
	}
	return numTrees, sels
}

// writeCodeLengths writes the bit-lengths of codes, which must be sorted by
// symbol, as a sequence of deltas from a 5-bit starting length.
func writeCodeLengths(pw *prefix.Writer, codes prefix.PrefixCodes) {
	curLen := codes[0].Len
	pw.WriteBits(uint(curLen), 5)
	for _, c := range codes {
		for curLen < c.Len {
			pw.WriteBits(2, 2) // 10
			curLen++
		}
		for curLen > c.Len {
			pw.WriteBits(3, 2) // 11
			curLen--
		}
		pw.WriteBits(0, 1)
	}
}

// readCodeLengths reads the bit-lengths of all codes and assigns each code
// its symbol and canonical prefix value.
func readCodeLengths(pr *prefix.Reader, codes prefix.PrefixCodes) {
	curLen := uint32(pr.ReadBits(5))
	for s := range codes {
		for {
			if curLen < 1 || curLen > maxPrefixLen {
				panic(ErrCorrupt)
			}
			if pr.ReadBits(1) == 0 {
				break
			}
			if pr.ReadBits(1) == 0 {
				curLen++
			} else {
				curLen--
			}
		}
		codes[s] = prefix.PrefixCode{Sym: uint32(s), Len: curLen}
	}
	if err := prefix.GeneratePrefixes(codes); err != nil {
		panic(ErrCorrupt) // Over-subscribed tree
	}
}
