// Copyright 2015, Joe Tsai. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

package prefix

import (
	"bufio"
	"bytes"
	"io"
	"strings"

	"github.com/dsnet/pbzip2"
	"github.com/dsnet/pbzip2/internal"
)

// Reader implements a prefix decoder over a bit-stream that is packed
// most-significant bit first.
//
// The Reader preserves the property that it will never read more bytes than
// is necessary from a pbzip2.ByteReader. If the underlying reader is a
// pbzip2.BufferedReader, then Peek and Discard are used to fill the bit buffer
// with as many bits as possible while still only advancing the read offset
// by the number of bytes actually consumed.
type Reader struct {
	Offset int64 // Number of bytes read from the underlying io.Reader

	rd      pbzip2.ByteReader
	bufRd   pbzip2.BufferedReader
	bufBits uint64 // Buffer to hold some bits; the oldest bits are highest
	numBits uint   // Number of valid bits in bufBits

	// These fields are only used if rd is a pbzip2.BufferedReader.
	bufPeek     []byte // Buffer for the Peek data
	discardBits int    // Number of bits to discard from reader
	fedBits     uint   // Number of bits fed in last call to FeedBits
}

// Init initializes the Reader to read from r.
func (pr *Reader) Init(r io.Reader) {
	*pr = Reader{}

	switch rr := r.(type) {
	case *bytes.Buffer:
		pr.bufRd = &buffer{Buffer: rr}
	case *bytes.Reader:
		pr.bufRd = newSeekReader(rr)
	case *strings.Reader:
		pr.bufRd = newSeekReader(rr)
	case pbzip2.BufferedReader:
		pr.bufRd = rr
	case pbzip2.ByteReader:
		pr.rd = rr
	default:
		pr.bufRd = bufio.NewReader(r)
	}
}

// BitsRead reports the total number of bits consumed.
func (pr *Reader) BitsRead() int64 {
	if pr.bufRd != nil {
		discardBits := pr.discardBits + int(pr.fedBits-pr.numBits)
		return 8*pr.Offset + int64(discardBits)
	}
	return 8*pr.Offset - int64(pr.numBits)
}

// FlushOffset updates the read offset of the underlying reader.
// If the reader is a pbzip2.BufferedReader, then this calls Discard to
// advance past every byte that has been fully or partially consumed.
func (pr *Reader) FlushOffset() int64 {
	if pr.bufRd == nil {
		return pr.Offset
	}

	// Update the number of total bits to discard.
	pr.discardBits += int(pr.fedBits - pr.numBits)
	pr.fedBits = pr.numBits

	// Discard some bytes to update read offset.
	nd := (pr.discardBits + 7) / 8 // Round up to nearest byte
	nd, _ = pr.bufRd.Discard(nd)
	pr.discardBits -= nd * 8 // -7..0
	pr.Offset += int64(nd)

	// These are invalid after Discard.
	pr.bufPeek = nil
	return pr.Offset
}

// FeedBits ensures that at least nb bits exist in the bit buffer.
// It panics with io.ErrUnexpectedEOF if the input ends prematurely.
func (pr *Reader) FeedBits(nb uint) {
	if pr.bufRd != nil {
		pr.discardBits += int(pr.fedBits - pr.numBits)
		for {
			if len(pr.bufPeek) == 0 {
				pr.fedBits = pr.numBits // Don't discard bits just added
				pr.FlushOffset()

				var err error
				cntPeek := 8 // Minimum Peek amount to make progress
				if pr.bufRd.Buffered() > cntPeek {
					cntPeek = pr.bufRd.Buffered()
				}
				pr.bufPeek, err = pr.bufRd.Peek(cntPeek)
				if skip := int(pr.numBits / 8); skip < len(pr.bufPeek) {
					pr.bufPeek = pr.bufPeek[skip:] // Skip buffered bits
				} else {
					pr.bufPeek = nil
				}
				if len(pr.bufPeek) == 0 {
					if pr.numBits >= nb {
						break
					}
					if err == nil || err == io.EOF {
						err = io.ErrUnexpectedEOF
					}
					panic(err)
				}
			}
			cnt := int(64-pr.numBits) / 8
			if cnt > len(pr.bufPeek) {
				cnt = len(pr.bufPeek)
			}
			for _, c := range pr.bufPeek[:cnt] {
				pr.bufBits = pr.bufBits<<8 | uint64(c)
				pr.numBits += 8
			}
			pr.bufPeek = pr.bufPeek[cnt:]
			if pr.numBits > 56 {
				break
			}
		}
		pr.fedBits = pr.numBits
	} else {
		for pr.numBits < nb {
			c, err := pr.rd.ReadByte()
			if err != nil {
				if err == io.EOF {
					err = io.ErrUnexpectedEOF
				}
				panic(err)
			}
			pr.bufBits = pr.bufBits<<8 | uint64(c)
			pr.numBits += 8
			pr.Offset++
		}
	}
}

// AtEOF reports whether all bits have been consumed and the underlying
// reader has no more data. It is only meaningful on a byte boundary.
func (pr *Reader) AtEOF() bool {
	if pr.numBits > 0 {
		return false
	}
	if pr.bufRd != nil {
		pr.FlushOffset()
		b, err := pr.bufRd.Peek(1)
		if len(b) == 0 && err != nil && err != io.EOF {
			panic(err)
		}
		return len(b) == 0
	}
	c, err := pr.rd.ReadByte()
	if err != nil {
		if err == io.EOF {
			return true
		}
		panic(err)
	}
	pr.bufBits, pr.numBits = uint64(c), 8
	pr.Offset++
	return false
}

// ReadBits reads nb bits in MSB order from the underlying reader.
// The value of nb must be within 0..32.
func (pr *Reader) ReadBits(nb uint) uint {
	if nb == 0 {
		return 0
	}
	pr.FeedBits(nb)
	val := uint(pr.bufBits>>(pr.numBits-nb)) & (1<<nb - 1)
	pr.numBits -= nb
	return val
}

// ReadPads reads 0-7 bits from the bit buffer to achieve byte-alignment.
func (pr *Reader) ReadPads() uint {
	nb := pr.numBits % 8
	val := uint(pr.bufBits>>(pr.numBits-nb)) & (1<<nb - 1)
	pr.numBits -= nb
	return val
}

// ReadSymbol reads the next prefix symbol using the provided Table.
// Codes of increasing length are tried one bit at a time until the
// accumulated value falls within the range of codes of that length.
func (pr *Reader) ReadSymbol(t *Table) uint {
	if len(t.Symbols) == 0 {
		panic(internal.ErrInvalid) // Decode with empty tree
	}

	nb := t.MinLen
	val := uint32(pr.ReadBits(uint(nb)))
	for {
		if t.Counts[nb] > 0 && val <= t.Limits[nb] {
			return uint(t.Symbols[t.Offsets[nb]+val-t.Bases[nb]])
		}
		if nb >= t.MaxLen {
			panic(internal.ErrInvalid)
		}
		val = val<<1 | uint32(pr.ReadBits(1))
		nb++
	}
}
