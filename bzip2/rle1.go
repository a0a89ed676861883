// Copyright 2015, Joe Tsai. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

package bzip2

import (
	"io"

	"github.com/dsnet/pbzip2/internal"
)

// rleDone is returned by runLengthEncoding.Write when the block is full.
// It never leaves the package.
var rleDone error = internal.Error("rle1 block is full")

// runLengthEncoding implements the first run-length encoding stage of bzip2.
// Every run of 4 to 255 identical bytes is replaced by the first 4 bytes
// followed by a count byte holding the number of remaining repetitions.
// Longer runs are broken into several of these.
//
// The encoder writes into a fixed size block buffer and refuses any byte
// that does not fit. A byte that completes a run of 4 is only accepted when
// there is room for both it and the count byte.
type runLengthEncoding struct {
	buf     []byte
	idx     int
	lastVal int
	lastCnt int
}

func (rle *runLengthEncoding) Init(buf []byte) {
	*rle = runLengthEncoding{buf: buf, lastVal: -1}
}

// Write encodes as much of buf as fits in the block. It returns rleDone if
// some of buf could not be consumed.
func (rle *runLengthEncoding) Write(buf []byte) (int, error) {
	for i, b := range buf {
		cnt := 1
		if rle.lastVal == int(b) && rle.lastCnt < 255 {
			cnt = rle.lastCnt + 1
		}
		switch {
		case cnt < 4:
			if rle.idx >= len(rle.buf) {
				return i, rleDone
			}
			rle.buf[rle.idx] = b
			rle.idx++
		case cnt == 4:
			if rle.idx+1 >= len(rle.buf) {
				return i, rleDone
			}
			rle.buf[rle.idx] = b
			rle.buf[rle.idx+1] = 0
			rle.idx += 2
		default:
			rle.buf[rle.idx-1]++
		}
		rle.lastVal, rle.lastCnt = int(b), cnt
	}
	return len(buf), nil
}

// Len reports the number of encoded bytes in the block.
func (rle *runLengthEncoding) Len() int { return rle.idx }

// Bytes returns the encoded block.
func (rle *runLengthEncoding) Bytes() []byte { return rle.buf[:rle.idx] }

// runLengthDecoder reverses runLengthEncoding, pulling encoded bytes from an
// io.ByteReader as the output is consumed.
//
// The decoder is lenient: a run of 4 at the very end of a block may omit its
// count byte, and counts up to 255 are accepted.
type runLengthDecoder struct {
	rd      io.ByteReader
	lastVal int
	lastCnt int
	repeat  int // Pending copies of lastVal
}

func (rle *runLengthDecoder) Init(r io.ByteReader) {
	*rle = runLengthDecoder{rd: r, lastVal: -1}
}

func (rle *runLengthDecoder) Read(buf []byte) (int, error) {
	var i int
	for i < len(buf) {
		if rle.repeat > 0 {
			n := rle.repeat
			if n > len(buf)-i {
				n = len(buf) - i
			}
			for j := range buf[i : i+n] {
				buf[i+j] = byte(rle.lastVal)
			}
			i += n
			rle.repeat -= n
			continue
		}

		b, err := rle.rd.ReadByte()
		if err != nil {
			return i, err
		}
		if rle.lastCnt == 4 {
			rle.repeat = int(b)
			rle.lastCnt = 0
			continue
		}
		if rle.lastVal != int(b) {
			rle.lastVal, rle.lastCnt = int(b), 0
		}
		rle.lastCnt++
		buf[i] = b
		i++
	}
	return i, nil
}
