// Copyright 2016, Joe Tsai. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

package testutil

import (
	"encoding/hex"
	"errors"
	"strconv"
	"strings"
)

// DecodeBitGen decodes a BitGen script into the bytes it describes.
//
// BitGen lets a test spell out a bzip2 stream one field at a time. All bits
// are packed most-significant first, which is the order bzip2 uses.
// The script is a sequence of whitespace separated tokens; a '#' starts a
// comment that runs to the end of the line.
//
// The script must begin with the token ">>>". A lone ">" token is accepted
// and ignored, as is a leading '>' on any other token.
//
// Tokens:
//	[01]{1,64}         a literal bit-string, written left to right
//	D<n>:<decimal>     an n-bit unsigned value (0 <= n <= 64)
//	H<n>:<hex>         the same, with the value in hexadecimal
//	X:<hex>            raw bytes; the stream must be byte-aligned
//
// Any token may carry a "*<count>" suffix to repeat it.
// The final partial byte is padded with zero bits.
//
// Example:
//	>>>
//	X:425a6839            # "BZh9"
//	H48:314159265359      # block magic
//	D32:0 0 D24:0         # CRC, not randomized, origin pointer
//	0*16                  # empty bitmap
func DecodeBitGen(str string) ([]byte, error) {
	var toks []string
	for _, line := range strings.Split(str, "\n") {
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		toks = append(toks, strings.Fields(line)...)
	}
	if len(toks) == 0 || toks[0] != ">>>" {
		return nil, errors.New("testutil: BitGen script must start with >>>")
	}

	var bb bitBuffer
	for _, t := range toks[1:] {
		t = strings.TrimPrefix(t, ">")
		if t == "" {
			continue
		}

		rep := 1
		if i := strings.LastIndexByte(t, '*'); i >= 0 {
			n, err := strconv.Atoi(t[i+1:])
			if err != nil || n < 0 {
				return nil, errors.New("testutil: invalid repeat count: " + t)
			}
			t, rep = t[:i], n
		}

		switch {
		case t == "":
			return nil, errors.New("testutil: empty token")
		case strings.Trim(t, "01") == "":
			if len(t) > 64 {
				return nil, errors.New("testutil: bit-string too long: " + t)
			}
			v, _ := strconv.ParseUint(t, 2, 64)
			for i := 0; i < rep; i++ {
				bb.writeBits(v, uint(len(t)))
			}
		case t[0] == 'D' || t[0] == 'H':
			v, n, err := parseNumeric(t)
			if err != nil {
				return nil, err
			}
			for i := 0; i < rep; i++ {
				bb.writeBits(v, n)
			}
		case strings.HasPrefix(t, "X:"):
			b, err := hex.DecodeString(t[2:])
			if err != nil || len(b) == 0 {
				return nil, errors.New("testutil: invalid raw bytes token: " + t)
			}
			for i := 0; i < rep; i++ {
				if err := bb.writeBytes(b); err != nil {
					return nil, err
				}
			}
		default:
			return nil, errors.New("testutil: invalid token: " + t)
		}
	}
	return bb.buf, nil
}

// parseNumeric parses a D<n>:<val> or H<n>:<val> token.
func parseNumeric(t string) (v uint64, n uint, err error) {
	i := strings.IndexByte(t, ':')
	if i < 2 {
		return 0, 0, errors.New("testutil: invalid numeric token: " + t)
	}
	base := 10
	if t[0] == 'H' {
		base = 16
	}
	nb, err1 := strconv.ParseUint(t[1:i], 10, 8)
	v, err2 := strconv.ParseUint(t[i+1:], base, 64)
	if err1 != nil || err2 != nil || nb > 64 {
		return 0, 0, errors.New("testutil: invalid numeric token: " + t)
	}
	if nb < 64 && v>>nb != 0 {
		return 0, 0, errors.New("testutil: value overflows width: " + t)
	}
	return v, uint(nb), nil
}

// bitBuffer accumulates bits MSB-first. It stands in for prefix.Writer,
// which cannot be imported here without an import cycle in its tests.
type bitBuffer struct {
	buf  []byte
	nbit uint // Number of bits used in the last byte; 0 means aligned
}

func (bb *bitBuffer) writeBits(v uint64, n uint) {
	for n > 0 {
		n--
		if bb.nbit == 0 {
			bb.buf = append(bb.buf, 0)
		}
		if v>>n&1 != 0 {
			bb.buf[len(bb.buf)-1] |= 0x80 >> bb.nbit
		}
		bb.nbit = (bb.nbit + 1) % 8
	}
}

func (bb *bitBuffer) writeBytes(b []byte) error {
	if bb.nbit != 0 {
		return errors.New("testutil: unaligned raw bytes")
	}
	bb.buf = append(bb.buf, b...)
	return nil
}
