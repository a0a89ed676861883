// Copyright 2015, Joe Tsai. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

package bzip2

// The Burrows-Wheeler Transform implementation used here sorts the cyclic
// rotations of the block directly with a three-way radix quicksort, rather
// than building a suffix array over a doubled copy of the input. The sorter
// needs a small read-only overshoot region after the block which holds the
// beginning of the block again.
//
// The inverse transform is lazy. After an O(n) setup pass, each call to
// ReadByte yields the next byte of the original block, which allows the
// following RLE1 decoding stage to stream directly from the last column.
//
// References:
//	https://www.hpl.hp.com/techreports/Compaq-DEC/SRC-RR-124.pdf
//	https://github.com/cscott/compressjs/blob/master/lib/BWT.js

import (
	"io"

	"github.com/dsnet/pbzip2/bzip2/internal/radix"
)

type burrowsWheelerTransform struct {
	buf []byte
	sa  []int32
	rd  bwtReader
}

// Encode replaces buf with the last column of its sorted rotation matrix and
// returns the row of the original block in that matrix.
// An empty block has no rows, for which -1 is returned.
func (bwt *burrowsWheelerTransform) Encode(buf []byte) (ptr int) {
	n := len(buf)
	if n == 0 {
		return -1
	}

	if cap(bwt.buf) < n+radix.Overshoot {
		bwt.buf = make([]byte, n+radix.Overshoot)
	}
	t := bwt.buf[:n+radix.Overshoot]
	copy(t, buf)
	for i := n; i < len(t); i += n {
		copy(t[i:], buf)
	}
	if cap(bwt.sa) < n {
		bwt.sa = make([]int32, n)
	}
	sa := bwt.sa[:n]

	radix.ComputeRotations(t, sa)

	for i, s := range sa {
		if s == 0 {
			ptr = i
			s = int32(n)
		}
		buf[i] = t[s-1]
	}
	return ptr
}

// Decode reverses Encode in place.
func (bwt *burrowsWheelerTransform) Decode(buf []byte, ptr int) {
	if len(buf) == 0 {
		return
	}
	if cap(bwt.buf) < len(buf) {
		bwt.buf = make([]byte, len(buf))
	}
	last := bwt.buf[:len(buf)]
	copy(last, buf)

	bwt.rd.Init(last, nil, ptr)
	for i := range buf {
		buf[i], _ = bwt.rd.ReadByte()
	}
}

// bwtReader yields the original block from the last column of its sorted
// rotation matrix one byte at a time.
type bwtReader struct {
	last []byte
	next []uint32
	pos  uint32
	left int
}

// Init prepares the reader to invert last, whose original row is ptr.
// If freqs is non-nil, it must hold the byte frequencies of last.
// The ptr must be within the bounds of last.
func (br *bwtReader) Init(last []byte, freqs *[256]int, ptr int) {
	var c [256]int
	if freqs != nil {
		c = *freqs
	} else {
		for _, v := range last {
			c[v]++
		}
	}

	var sum int
	for i, v := range c {
		sum += v
		c[i] = sum - v
	}

	if cap(br.next) < len(last) {
		br.next = make([]uint32, len(last))
	}
	next := br.next[:len(last)]
	for i, b := range last {
		next[c[b]] = uint32(i)
		c[b]++
	}

	br.last = last
	br.next = next
	br.left = len(last)
	if br.left > 0 {
		br.pos = next[ptr]
	}
}

func (br *bwtReader) ReadByte() (byte, error) {
	if br.left == 0 {
		return 0, io.EOF
	}
	b := br.last[br.pos]
	br.pos = br.next[br.pos]
	br.left--
	return b, nil
}

func (br *bwtReader) Read(buf []byte) (int, error) {
	if br.left == 0 {
		return 0, io.EOF
	}
	var i int
	for i < len(buf) && br.left > 0 {
		buf[i] = br.last[br.pos]
		br.pos = br.next[br.pos]
		br.left--
		i++
	}
	return i, nil
}
