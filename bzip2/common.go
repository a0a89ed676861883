// Copyright 2015, Joe Tsai. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

// Package bzip2 implements the BZip2 compressed data format.
//
// The Writer compresses independent blocks in parallel on a bounded pool of
// goroutines while always emitting them in input order. The Reader decodes
// one block at a time and verifies every block and stream checksum before
// releasing any data. Concatenated streams are read back-to-back.
//
// Canonical C implementation:
//	http://bzip.org
//
// Unofficial format specification:
//	https://github.com/dsnet/compress/blob/master/doc/bzip2-format.pdf
package bzip2

import (
	"fmt"
	"hash/crc32"
	"runtime"

	hashutil "github.com/dsnet/golib/hashmerge"
	"github.com/dsnet/pbzip2"
	"github.com/dsnet/pbzip2/internal"
)

// There does not exist a formal specification of the BZip2 format. As such,
// much of this work is derived by either reverse engineering the original C
// source code or using smaller specifications written by third-parties.

const (
	hdrMagic = 0x425a         // Hex of "BZ"
	blkMagic = 0x314159265359 // BCD of PI
	endMagic = 0x177245385090 // BCD of sqrt(PI)

	magicBits = 48
	crcBits   = 32
	ptrBits   = 24

	blockSize = 100000 // Block size unit for each compression level

	minNumTrees  = 2
	maxNumTrees  = 6
	maxNumSyms   = 258 // Up to 256 used bytes, plus RUNA/RUNB and EOB
	maxPrefixLen = 20  // Longest prefix code the format permits
	groupSize    = 50  // Number of symbols coded by each selector

	maxSelectors = 2 + (9*blockSize)/groupSize
	numSelBits   = 15
)

const (
	BestSpeed          = 1
	BestCompression    = 9
	DefaultCompression = BestCompression
)

// FormatError reports a malformed or unsupported stream.
type FormatError string

func (e FormatError) Error() string { return "bzip2: " + string(e) }
func (e FormatError) CompressError() {}
func (e FormatError) IsDeprecated() bool { return e == errDeprecated }
func (e FormatError) IsCorrupted() bool { return e != errDeprecated }

// ChecksumError reports that the data of a block or of a whole stream does
// not match its stored checksum. No data from a mismatching block is ever
// returned by the Reader.
type ChecksumError struct {
	Block int64  // One-based index of the block; zero for the stream trailer
	Want  uint32 // Checksum stored in the stream
	Got   uint32 // Checksum of the decoded data
}

func (e *ChecksumError) Error() string {
	if e.Block > 0 {
		return fmt.Sprintf("bzip2: block checksum mismatch in block %d: got %08x, want %08x", e.Block, e.Got, e.Want)
	}
	return fmt.Sprintf("bzip2: file checksum mismatch: got %08x, want %08x", e.Got, e.Want)
}
func (e *ChecksumError) CompressError() {}
func (e *ChecksumError) IsDeprecated() bool { return false }
func (e *ChecksumError) IsCorrupted() bool { return true }

// UsageError reports an invalid configuration or an operation on a closed
// stream. It is returned synchronously by the call that caused it.
type UsageError string

func (e UsageError) Error() string { return "bzip2: " + string(e) }
func (e UsageError) CompressError() {}
func (e UsageError) IsDeprecated() bool { return false }
func (e UsageError) IsCorrupted() bool { return false }

// ResourceError reports that a block could not be encoded because of an
// unexpected fault in a worker. Any output already written must be discarded.
type ResourceError struct {
	Block int64 // One-based index of the block
	Err   error
}

func (e *ResourceError) Error() string {
	return fmt.Sprintf("bzip2: encoding block %d failed: %v", e.Block, e.Err)
}
func (e *ResourceError) Unwrap() error { return e.Err }
func (e *ResourceError) Cause() error { return e.Err }
func (e *ResourceError) CompressError() {}
func (e *ResourceError) IsDeprecated() bool { return false }
func (e *ResourceError) IsCorrupted() bool { return false }

const (
	errCorrupt    FormatError = "stream is corrupted"
	errDeprecated FormatError = "deprecated stream format"
)

var (
	ErrCorrupt    error = errCorrupt
	ErrDeprecated error = errDeprecated
	ErrClosed     error = UsageError("stream is closed")
	ErrPoolClosed error = UsageError("worker pool is closed")
)

var (
	_ pbzip2.Error = FormatError("")
	_ pbzip2.Error = UsageError("")
	_ pbzip2.Error = (*ChecksumError)(nil)
	_ pbzip2.Error = (*ResourceError)(nil)
)

func errRecover(err *error) {
	switch ex := recover().(type) {
	case nil:
		// Do nothing.
	case runtime.Error:
		panic(ex)
	case internal.Error:
		*err = ErrCorrupt
	case error:
		*err = ex
	default:
		panic(ex)
	}
}

// maxBlockSize returns the largest RLE1 encoded block for the given level.
// The reference encoder leaves 19 bytes of headroom.
func maxBlockSize(level int) int { return level*blockSize - 19 }

// updateCRC returns the result of adding the bytes in buf to the crc.
func updateCRC(crc uint32, buf []byte) uint32 {
	// The CRC-32 computation in bzip2 treats bytes as having bits in big-endian
	// order. That is, the MSB is read before the LSB. Thus, we can use the
	// standard library version of CRC-32 IEEE with some minor adjustments.
	crc = internal.ReverseUint32(crc)
	var arr [4096]byte
	for len(buf) > 0 {
		cnt := copy(arr[:], buf)
		buf = buf[cnt:]
		for i, b := range arr[:cnt] {
			arr[i] = internal.ReverseLUT[b]
		}
		crc = crc32.Update(crc, crc32.IEEETable, arr[:cnt])
	}
	return internal.ReverseUint32(crc)
}

// combineCRC combines two CRC-32 checksums together.
func combineCRC(crc1, crc2 uint32, len2 int64) uint32 {
	crc1 = internal.ReverseUint32(crc1)
	crc2 = internal.ReverseUint32(crc2)
	crc := hashutil.CombineCRC32(crc32.IEEE, crc1, crc2, len2)
	return internal.ReverseUint32(crc)
}

// updateStreamCRC folds a block checksum into the running stream checksum.
func updateStreamCRC(crc, blkCRC uint32) uint32 {
	return (crc<<1 | crc>>31) ^ blkCRC
}
