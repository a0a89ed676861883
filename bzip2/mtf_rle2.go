// Copyright 2015, Joe Tsai. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

package bzip2

const (
	runA = 0 // Bijective base-2 digit with value 1
	runB = 1 // Bijective base-2 digit with value 2
)

// moveToFront implements both the MTF and RLE2 stages of bzip2 at the same
// time. Any runs of zeros in the MTF output are replaced by the bijective
// base-2 numeration of the run length, written with the RUNA and RUNB
// symbols. Every other MTF index i is shifted up to the symbol i+1, and the
// symbol sequence ends with the EOB symbol, which is one past the largest
// possible index.
//
// For example, if the normal MTF output was:
//	idxs: []uint8{0, 0, 1, 6, 3, 0, 0, 0, 2}
//
// Then with an alphabet of 7 symbols, the actual output will be:
//	syms: []uint16{RUNB, 2, 7, 4, RUNA, RUNA, 3, EOB}
type moveToFront struct {
	dictBuf [256]uint8
	dictLen int

	syms []uint16
}

// Init initializes the moveToFront codec. The dict must contain all of the
// symbols in the alphabet used in future operations. A copy of the input dict
// will be made so that it will not be mutated.
func (m *moveToFront) Init(dict []uint8) {
	if len(dict) > len(m.dictBuf) {
		panic("alphabet too large")
	}
	copy(m.dictBuf[:], dict)
	m.dictLen = len(dict)
}

// EOB reports the end-of-block symbol for the current alphabet.
func (m *moveToFront) EOB() uint16 { return uint16(m.dictLen) + 1 }

// Encode returns the symbol sequence for vals, terminated by EOB.
// The returned slice is only valid until the next call to Encode.
func (m *moveToFront) Encode(vals []byte) []uint16 {
	dict := m.dictBuf[:m.dictLen]
	syms := m.syms[:0]

	var run uint32
	for _, val := range vals {
		// Normal move-to-front transform.
		var idx uint8 // Reverse lookup idx in dict
		for di, dv := range dict {
			if dv == val {
				idx = uint8(di)
				break
			}
		}
		copy(dict[1:], dict[:idx])
		dict[0] = val

		// Run-length encoding augmentation.
		if idx == 0 {
			run++
			continue
		}
		syms = appendRun(syms, run)
		syms = append(syms, uint16(idx)+1)
		run = 0
	}
	syms = appendRun(syms, run)
	syms = append(syms, m.EOB())

	m.syms = syms
	return syms
}

func appendRun(syms []uint16, run uint32) []uint16 {
	if run == 0 {
		return syms
	}
	rc := runCode(run).Encode()
	bits := rc >> 5
	for n := rc & 0x1f; n > 0; n-- {
		syms = append(syms, uint16(bits&1))
		bits >>= 1
	}
	return syms
}

// Decode appends the values for syms to buf[:0] and returns the result.
// Decoding stops at the EOB symbol, if present. The capacity of buf bounds
// the output; exceeding it, or any symbol beyond EOB, is reported as
// ErrCorrupt.
func (m *moveToFront) Decode(syms []uint16, buf []byte) ([]byte, error) {
	dict := m.dictBuf[:m.dictLen]
	vals := buf[:0]

	var run, pwr int
	for _, sym := range syms {
		// Run-length encoding augmentation.
		if sym <= runB {
			if len(dict) == 0 {
				return vals, ErrCorrupt
			}
			run += (int(sym) + 1) << uint(pwr)
			pwr++
			if run > cap(vals)-len(vals) {
				return vals, ErrCorrupt
			}
			continue
		}
		if run > 0 {
			vals = appendRepeat(vals, dict[0], run)
			run, pwr = 0, 0
		}

		// Normal move-to-front transform.
		idx := int(sym) - 1
		if idx >= len(dict) {
			if idx == len(dict) {
				return vals, nil // EOB
			}
			return vals, ErrCorrupt
		}
		if len(vals) == cap(vals) {
			return vals, ErrCorrupt
		}
		val := dict[idx] // Forward lookup val in dict
		copy(dict[1:], dict[:idx])
		dict[0] = val
		vals = append(vals, val)
	}
	if run > 0 {
		vals = appendRepeat(vals, dict[0], run)
	}
	return vals, nil
}

func appendRepeat(vals []byte, val byte, n int) []byte {
	i := len(vals)
	vals = vals[:i+n]
	for j := range vals[i:] {
		vals[i+j] = val
	}
	return vals
}

// For the RLE encoding that is applied after MTF, a bijective base-2 numeration
// is used. This is a variable length code, so the length of the input effects
// the value of the output.
//
// To save space, the RLE encoding is stored in a single uint32, where the lower
// 5-bits are used for the bit-length, the upper 27-bits are for the RLE code
// itself. RUNA is represented by a 0; RUNB is represented by a 1. The bits
// are packed in LE order; that is, the least significant bit is in the LSB
// position of the integer. This encoding has a maximum size of ~256MiB.
type runCode uint32

func (v runCode) Encode() (x uint32) {
	var n int
	if v > 0 {
		for rep := v - 1; ; rep = (rep - 2) / 2 {
			if x >>= 1; rep&1 > 0 {
				x |= 0x80000000
			}
			n++
			if rep < 2 {
				break
			}
		}
		if n > 27 {
			return ^uint32(0) // Invalid value to cause problems later
		}
	}
	return (x >> uint(27-n)) | uint32(n)
}

func (v runCode) Decode() (x uint32) {
	repPwr := uint32(1)
	n := int(v & 0x1f)
	v >>= 5
	for i := 0; i < n; i++ {
		x += repPwr << (v & 1)
		repPwr <<= 1
		v >>= 1
	}
	if n > 27 {
		return ^uint32(0) // Invalid value to cause problems later
	}
	return x
}
