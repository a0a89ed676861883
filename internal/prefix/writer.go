// Copyright 2015, Joe Tsai. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

package prefix

import (
	"io"

	"github.com/dsnet/pbzip2/internal"
)

// Writer implements a prefix encoder that packs bits most-significant first.
// Errors from the underlying io.Writer are raised as panics so that callers
// can recover them in a single place.
type Writer struct {
	Offset int64 // Number of bytes written to the underlying io.Writer

	wr      io.Writer
	bufBits uint64 // Buffer to hold some bits
	numBits uint   // Number of valid bits in bufBits; always < 8 between calls
	buf     [512]byte
	cntBuf  int
}

// Init initializes the Writer to write to w.
func (pw *Writer) Init(w io.Writer) {
	*pw = Writer{wr: w}
}

// BitsWritten reports the total number of bits issued to the Writer.
func (pw *Writer) BitsWritten() int64 {
	return 8*(pw.Offset+int64(pw.cntBuf)) + int64(pw.numBits)
}

// WriteBits writes the lower nb bits of v in MSB order.
// The value of nb must be within 0..32.
func (pw *Writer) WriteBits(v, nb uint) {
	pw.bufBits = pw.bufBits<<nb | uint64(v&(1<<nb-1))
	pw.numBits += nb
	for pw.numBits >= 8 {
		pw.numBits -= 8
		pw.writeByte(byte(pw.bufBits >> pw.numBits))
	}
}

// WriteBitString writes the first nb bits of buf, which must be packed
// in MSB order. It is used to splice together separately encoded blocks.
func (pw *Writer) WriteBitString(buf []byte, nb int64) {
	n := int(nb / 8)
	if pw.numBits == 0 {
		for _, c := range buf[:n] {
			pw.writeByte(c)
		}
	} else {
		for _, c := range buf[:n] {
			pw.WriteBits(uint(c), 8)
		}
	}
	if rem := uint(nb % 8); rem > 0 {
		pw.WriteBits(uint(buf[n]>>(8-rem)), rem)
	}
}

// WritePads writes 0-7 zero bits to the bit buffer to achieve byte-alignment.
func (pw *Writer) WritePads() {
	if pw.numBits > 0 {
		pw.WriteBits(0, 8-pw.numBits)
	}
}

// WriteSymbol writes the prefix code of sym using the provided Table.
func (pw *Writer) WriteSymbol(sym uint, t *Table) {
	val, nb := t.Code(sym)
	if nb == 0 {
		panic(internal.Error("symbol not in prefix table"))
	}
	pw.WriteBits(uint(val), uint(nb))
}

// Flush writes all complete bytes to the underlying io.Writer.
// Any partial byte remains in the bit buffer.
func (pw *Writer) Flush() (int64, error) {
	if pw.cntBuf == 0 {
		return pw.Offset, nil
	}
	n, err := pw.wr.Write(pw.buf[:pw.cntBuf])
	pw.Offset += int64(n)
	pw.cntBuf = copy(pw.buf[:], pw.buf[n:pw.cntBuf])
	if err == nil && pw.cntBuf > 0 {
		err = io.ErrShortWrite
	}
	return pw.Offset, err
}

func (pw *Writer) writeByte(c byte) {
	if pw.cntBuf == len(pw.buf) {
		if _, err := pw.Flush(); err != nil {
			panic(err)
		}
	}
	pw.buf[pw.cntBuf] = c
	pw.cntBuf++
}
