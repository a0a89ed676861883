// Copyright 2015, Joe Tsai. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

package bzip2

import (
	"bytes"

	"github.com/dsnet/pbzip2/internal/prefix"
)

type encodeOptions struct {
	maxBlock   int  // Largest RLE1 block for the compression level
	maxBits    uint // Longest prefix code that may be generated
	iterations int  // Rounds of tree refinement
}

// encodedBlock is a compressed block, starting with its block magic.
// Blocks are not byte aligned within a stream, so data holds a bit string
// that is packed MSB first and is bits long.
type encodedBlock struct {
	data []byte
	bits int64

	crc    uint32 // Checksum of the uncompressed block
	rawLen int64  // Length of the uncompressed block

	numTrees int
	numSels  int

	err error
}

// blockEncoder compresses single blocks. It keeps scratch buffers between
// calls and must not be used concurrently.
type blockEncoder struct {
	bwt burrowsWheelerTransform
	mtf moveToFront
	tb  treeBuilder
	wr  prefix.Writer
}

// Encode compresses the RLE1 encoded block blk, whose uncompressed data has
// the checksum crc. The contents of blk are destroyed.
func (e *blockEncoder) Encode(blk []byte, crc uint32, opts encodeOptions) encodedBlock {
	var used [256]bool
	for _, b := range blk {
		used[b] = true
	}
	var dictBuf [256]uint8
	dict := dictBuf[:0]
	for b, ok := range used {
		if ok {
			dict = append(dict, uint8(b))
		}
	}

	ptr := e.bwt.Encode(blk)
	e.mtf.Init(dict)
	syms := e.mtf.Encode(blk)

	alphaSize := len(dict) + 2
	numTrees := treeCount(len(blk), opts.maxBlock, len(syms))
	e.tb.Build(syms, alphaSize, numTrees, opts.iterations, opts.maxBits)

	buf := new(bytes.Buffer)
	buf.Grow(len(blk)/2 + 64)
	pw := &e.wr
	pw.Init(buf)

	pw.WriteBits(blkMagic>>24, 24)
	pw.WriteBits(blkMagic&0xffffff, 24)
	pw.WriteBits(uint(crc), crcBits)
	pw.WriteBits(0, 1) // Randomized blocks are never written
	pw.WriteBits(uint(ptr), ptrBits)

	// Write the two-level bitmap of used symbols.
	var ranges uint
	for i := 0; i < 16; i++ {
		for _, ok := range used[16*i : 16*i+16] {
			if ok {
				ranges |= 1 << uint(15-i)
				break
			}
		}
	}
	pw.WriteBits(ranges, 16)
	for i := 0; i < 16; i++ {
		if ranges&(1<<uint(15-i)) == 0 {
			continue
		}
		var bits uint
		for j, ok := range used[16*i : 16*i+16] {
			if ok {
				bits |= 1 << uint(15-j)
			}
		}
		pw.WriteBits(bits, 16)
	}

	writeSelectors(pw, e.tb.sels, numTrees)
	for t := 0; t < numTrees; t++ {
		writeCodeLengths(pw, e.tb.codes[t][:alphaSize])
	}

	for g, t := range e.tb.sels {
		group := syms[g*groupSize:]
		if len(group) > groupSize {
			group = group[:groupSize]
		}
		tree := &e.tb.trees[t]
		for _, s := range group {
			pw.WriteSymbol(uint(s), tree)
		}
	}

	nb := pw.BitsWritten()
	pw.WritePads()
	if _, err := pw.Flush(); err != nil {
		panic(err)
	}
	return encodedBlock{
		data:     buf.Bytes(),
		bits:     nb,
		crc:      crc,
		numTrees: numTrees,
		numSels:  len(e.tb.sels),
	}
}
