// Copyright 2015, Joe Tsai. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

package testutil

import (
	"encoding/binary"
	"sort"
)

// Corpus generates n bytes of deterministic test data.
type Corpus func(n int) []byte

// Corpora is the set of synthetic test inputs, each shaped to exercise a
// different property of a block compressor.
var Corpora = map[string]Corpus{
	"binary":  Binary,
	"digits":  Digits,
	"random":  Random,
	"repeats": Repeats,
	"text":    Text,
	"zeros":   Zeros,
}

// CorpusNames returns the names of Corpora in sorted order.
func CorpusNames() []string {
	var names []string
	for name := range Corpora {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Zeros returns n zero bytes. A single repeated byte is the worst case for
// naive rotation sorting.
func Zeros(n int) []byte { return make([]byte, n) }

// Random returns n incompressible bytes.
func Random(n int) []byte { return NewRand(0).Bytes(n) }

// Digits returns n random decimal digits, which have low entropy per byte
// but little structure.
func Digits(n int) []byte {
	r := NewRand(1)
	b := r.Bytes(n)
	for i, c := range b {
		b[i] = '0' + c%10
	}
	return b
}

var textWords = []string{
	"the", "of", "and", "to", "a", "in", "that", "it", "was", "he", "for",
	"his", "with", "as", "had", "you", "not", "be", "her", "on", "at", "by",
	"which", "have", "or", "from", "this", "him", "but", "all", "she", "they",
	"were", "my", "are", "me", "one", "their", "so", "an", "said", "them",
	"we", "who", "would", "been", "will", "no", "when", "there", "if", "more",
	"out", "up", "into", "do", "any", "your", "what", "has", "man", "could",
	"other", "than", "our", "some", "very", "time", "upon", "about", "may",
	"its", "only", "now", "like", "little", "then", "can", "should", "made",
	"did", "us", "such", "great", "before", "must", "two", "these", "see",
	"know", "over", "much", "down", "after", "first", "good", "men", "river",
	"raft", "town", "widow", "island", "steamboat", "shore", "night",
}

// Text returns n bytes of pseudo-English prose with a skewed word
// distribution, short lines, and punctuation.
func Text(n int) []byte {
	r := NewRand(2)
	b := make([]byte, 0, n+16)
	var col int
	capital := true
	for len(b) < n {
		// Favor the front of the word list quadratically.
		k := r.Intn(len(textWords))
		w := textWords[k*r.Intn(len(textWords))/len(textWords)]
		if capital {
			b = append(b, w[0]-'a'+'A')
			b = append(b, w[1:]...)
			capital = false
		} else {
			b = append(b, w...)
		}
		col += len(w)
		switch p := r.Intn(100); {
		case p < 8:
			b = append(b, '.')
			capital = true
		case p < 14:
			b = append(b, ',')
		}
		if col > 68 {
			b = append(b, '\n')
			col = 0
		} else {
			b = append(b, ' ')
			col++
		}
	}
	return b[:n]
}

// Binary returns n bytes of structured binary records: slowly increasing
// little-endian counters, small flag fields, and embedded identifiers.
func Binary(n int) []byte {
	r := NewRand(3)
	b := make([]byte, 0, n+32)
	var rec [24]byte
	var seq uint64
	for len(b) < n {
		seq += uint64(1 + r.Intn(4))
		binary.LittleEndian.PutUint64(rec[0:], seq)
		binary.LittleEndian.PutUint32(rec[8:], uint32(r.Intn(1<<10)))
		binary.LittleEndian.PutUint16(rec[12:], uint16(r.Intn(4)))
		for i := 14 + copy(rec[14:], textWords[r.Intn(16)]); i < len(rec); i++ {
			rec[i] = 0
		}
		b = append(b, rec[:]...)
	}
	return b[:n]
}

// Repeats returns n bytes of mostly random data where a large bulk of it is
// a copy from some distance ago. Long repeated substrings stress the tie
// resolution of rotation sorting.
func Repeats(n int) []byte {
	var b []byte
	r := NewRand(4)

	randLen := func() (l int) {
		switch p := r.Intn(100); {
		case p < 15: // 4..8
			l = 4 + r.Intn(4)
		case p < 30: // 8..16
			l = 8 + r.Intn(8)
		case p < 45: // 16..32
			l = 16 + r.Intn(16)
		case p < 60: // 32..64
			l = 32 + r.Intn(32)
		case p < 75: // 64..128
			l = 64 + r.Intn(64)
		case p < 90: // 128..256
			l = 128 + r.Intn(128)
		default: // 256..512
			l = 256 + r.Intn(256)
		}
		return l
	}

	randDist := func() (d int) {
		for d == 0 || d > len(b) {
			// Distances are chosen from power-of-two buckets up to 32KiB.
			lo := 1 << uint(r.Intn(15))
			d = lo + r.Intn(lo)
		}
		return d
	}

	writeRand := func(l int) {
		b = append(b, r.Bytes(l)...)
	}

	writeCopy := func(d, l int) {
		for i := 0; i < l; i++ {
			b = append(b, b[len(b)-d])
		}
	}

	writeRand(512)
	for len(b) < n {
		switch p := r.Intn(10); {
		case p < 1:
			writeRand(randLen())
		case p < 9:
			// Write a long distance copy.
			d, l := randDist(), randLen()
			for d <= l {
				d, l = randDist(), randLen()
			}
			writeCopy(d, l)
		default:
			// Write a possibly short distance copy.
			writeCopy(randDist(), randLen())
		}
	}
	return b[:n]
}
