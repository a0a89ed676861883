// Copyright 2015, Joe Tsai. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

package bzip2

import (
	"io"

	"github.com/dsnet/pbzip2/internal/prefix"
)

// blockDecoder decompresses single blocks, one stage at a time.
// All methods panic on malformed input.
type blockDecoder struct {
	crc      uint32 // Checksum stored in the block header
	ptr      int
	dictBuf  [256]uint8
	dictLen  int
	numTrees int
	sels     []uint8
	codes    [maxNumSyms]prefix.PrefixCode
	trees    [maxNumTrees]prefix.Table

	syms []uint16
	blk  []byte // BWT last column
	out  []byte // Uncompressed block

	mtf moveToFront
	bwt bwtReader
	rle runLengthDecoder
}

// ReadHeader reads the block fields that follow the block magic up to and
// including the bitmap of used symbols.
func (d *blockDecoder) ReadHeader(pr *prefix.Reader) {
	d.crc = uint32(pr.ReadBits(crcBits))
	if pr.ReadBits(1) != 0 {
		panic(ErrDeprecated) // Randomized blocks
	}
	d.ptr = int(pr.ReadBits(ptrBits))

	d.dictLen = 0
	ranges := pr.ReadBits(16)
	for i := 0; i < 16; i++ {
		if ranges&(1<<uint(15-i)) == 0 {
			continue
		}
		bits := pr.ReadBits(16)
		for j := 0; j < 16; j++ {
			if bits&(1<<uint(15-j)) > 0 {
				d.dictBuf[d.dictLen] = uint8(16*i + j)
				d.dictLen++
			}
		}
	}
	if d.dictLen == 0 {
		panic(ErrCorrupt)
	}
}

// ReadSelectors reads the tree count and the selector of every group.
func (d *blockDecoder) ReadSelectors(pr *prefix.Reader) {
	d.numTrees, d.sels = readSelectors(pr, d.sels)
}

// ReadTables reads the code lengths of every tree.
func (d *blockDecoder) ReadTables(pr *prefix.Reader) {
	alphaSize := d.dictLen + 2
	for t := 0; t < d.numTrees; t++ {
		codes := d.codes[:alphaSize]
		readCodeLengths(pr, codes)
		d.trees[t].Init(codes)
	}
}

// ReadBody reads the coded symbols up to EOB and reverses every transform.
// The result holds at most maxBlock bytes prior to RLE1 decoding and is only
// valid until the next call. It also returns the checksum of the result.
func (d *blockDecoder) ReadBody(pr *prefix.Reader, maxBlock int) ([]byte, uint32) {
	eob := uint(d.dictLen) + 1
	syms := d.syms[:0]
groups:
	for g := 0; ; g++ {
		if g >= len(d.sels) {
			panic(ErrCorrupt)
		}
		tree := &d.trees[d.sels[g]]
		for i := 0; i < groupSize; i++ {
			s := pr.ReadSymbol(tree)
			if s == eob {
				break groups
			}
			if len(syms) >= maxBlock {
				panic(ErrCorrupt) // Every symbol yields at least one byte
			}
			syms = append(syms, uint16(s))
		}
	}
	d.syms = syms

	if cap(d.blk) < maxBlock {
		d.blk = make([]byte, 0, maxBlock)
	}
	d.mtf.Init(d.dictBuf[:d.dictLen])
	blk, err := d.mtf.Decode(syms, d.blk[:0:maxBlock])
	if err != nil {
		panic(err)
	}
	if d.ptr >= len(blk) {
		panic(ErrCorrupt)
	}

	var freqs [256]int
	for _, b := range blk {
		freqs[b]++
	}
	d.bwt.Init(blk, &freqs, d.ptr)
	d.rle.Init(&d.bwt)

	if cap(d.out) < len(blk) {
		d.out = make([]byte, 0, len(blk)+len(blk)/2)
	}
	out := d.out[:0]
	for {
		if len(out) == cap(out) {
			out = append(out, 0)[:len(out)]
		}
		n, err := d.rle.Read(out[len(out):cap(out)])
		out = out[:len(out)+n]
		if err == io.EOF {
			break
		}
	}
	d.out = out
	return out, updateCRC(0, out)
}
