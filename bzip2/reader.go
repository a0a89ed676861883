// Copyright 2015, Joe Tsai. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

package bzip2

import (
	"io"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/dsnet/pbzip2/internal/prefix"
)

// ReaderConfig configures a Reader. A nil config selects the defaults.
type ReaderConfig struct {
	// Logger receives structured events. Nil selects log.NewNopLogger().
	// Stream headers, trailers and decoded blocks are logged at debug level;
	// a failed Read is logged at error level.
	Logger log.Logger

	_ struct{} // Blank field to prevent unkeyed struct literals
}

// Reader decompresses one or more concatenated bzip2 streams.
//
// Each block is fully decoded and its checksum verified before any of its
// data is returned by Read.
type Reader struct {
	InputOffset  int64 // Total number of bytes read from underlying io.Reader
	OutputOffset int64 // Total number of bytes emitted from Read

	rd     prefix.Reader
	err    error         // Persistent error
	toRead []byte        // Uncompressed data ready to be emitted from Read
	step   func(*Reader) // Single step of decompression work (can panic)
	logger log.Logger

	level   int    // Block size of the current stream in units of 100kB
	blkCnt  int64  // Number of blocks decoded
	streams int    // Number of streams started
	endCRC  uint32 // Running checksum of the current stream
	crc     uint32 // Checksum of all output

	blk blockDecoder
}

// NewReader returns a new Reader that decompresses data from r.
func NewReader(r io.Reader, conf *ReaderConfig) (*Reader, error) {
	zr := new(Reader)
	zr.logger = log.NewNopLogger()
	if conf != nil && conf.Logger != nil {
		zr.logger = conf.Logger
	}
	if err := zr.Reset(r); err != nil {
		return nil, err
	}
	return zr, nil
}

// Checksum reports the CRC-32 of all data decoded so far, with the bit
// order used by bzip2.
func (zr *Reader) Checksum() uint32 { return zr.crc }

func (zr *Reader) Read(buf []byte) (int, error) {
	for {
		if len(zr.toRead) > 0 {
			cnt := copy(buf, zr.toRead)
			zr.toRead = zr.toRead[cnt:]
			zr.OutputOffset += int64(cnt)
			return cnt, nil
		}
		if zr.err != nil {
			return 0, zr.err
		}

		// Perform next step in decompression process.
		zr.rd.Offset = zr.InputOffset
		func() {
			defer errRecover(&zr.err)
			zr.step(zr)
		}()
		zr.InputOffset = zr.rd.FlushOffset()
		if zr.err != nil && zr.err != io.EOF {
			level.Error(zr.logger).Log("msg", "read failed", "offset", zr.InputOffset, "err", zr.err)
		}
	}
}

// Close ends decompression. Any further reads fail with ErrClosed.
// It does not close the underlying io.Reader.
func (zr *Reader) Close() error {
	if zr.err == nil || zr.err == io.EOF || zr.err == ErrClosed {
		zr.toRead = nil // Make sure future reads fail
		zr.err = ErrClosed
		return nil
	}
	return zr.err // Return the persistent error
}

// Reset discards the Reader's state and makes it equivalent to the result
// of NewReader, but reading from r instead.
func (zr *Reader) Reset(r io.Reader) error {
	*zr = Reader{
		rd:     zr.rd,
		step:   (*Reader).readStreamHeader,
		logger: zr.logger,
		blk:    zr.blk,
	}
	zr.rd.Init(r)
	return nil
}

// readStreamHeader reads the "BZh" magic and the block size.
func (zr *Reader) readStreamHeader() {
	if zr.rd.ReadBits(16) != hdrMagic {
		panic(ErrCorrupt)
	}
	switch zr.rd.ReadBits(8) {
	case 'h':
	case '0':
		panic(ErrDeprecated) // BZip1 streams
	default:
		panic(ErrCorrupt)
	}
	lvl := int(zr.rd.ReadBits(8)) - '0'
	if lvl < BestSpeed || lvl > BestCompression {
		panic(ErrCorrupt)
	}

	zr.level = lvl
	zr.endCRC = 0
	zr.streams++
	level.Debug(zr.logger).Log("msg", "stream header", "stream", zr.streams, "level", lvl)
	zr.step = (*Reader).readBlockHeader
}

// readBlockHeader reads the magic that starts either a block or the stream
// trailer.
func (zr *Reader) readBlockHeader() {
	magic := uint64(zr.rd.ReadBits(24))<<24 | uint64(zr.rd.ReadBits(24))
	switch magic {
	case blkMagic:
		zr.blk.ReadHeader(&zr.rd)
		zr.step = (*Reader).readSelectors
	case endMagic:
		want := uint32(zr.rd.ReadBits(crcBits))
		if want != zr.endCRC {
			panic(&ChecksumError{Want: want, Got: zr.endCRC})
		}
		zr.rd.ReadPads()
		level.Debug(zr.logger).Log("msg", "stream trailer", "stream", zr.streams, "crc", want)
		zr.step = (*Reader).readNextStream
	default:
		panic(ErrCorrupt)
	}
}

func (zr *Reader) readSelectors() {
	zr.blk.ReadSelectors(&zr.rd)
	zr.step = (*Reader).readTables
}

func (zr *Reader) readTables() {
	zr.blk.ReadTables(&zr.rd)
	zr.step = (*Reader).readBody
}

// readBody decodes the block data and only releases it once it matches the
// block checksum.
func (zr *Reader) readBody() {
	out, crc := zr.blk.ReadBody(&zr.rd, zr.level*blockSize)
	zr.blkCnt++
	if crc != zr.blk.crc {
		panic(&ChecksumError{Block: zr.blkCnt, Want: zr.blk.crc, Got: crc})
	}
	zr.endCRC = updateStreamCRC(zr.endCRC, crc)
	zr.crc = combineCRC(zr.crc, crc, int64(len(out)))
	zr.toRead = out
	level.Debug(zr.logger).Log("msg", "block decoded", "block", zr.blkCnt,
		"size", len(out), "trees", zr.blk.numTrees, "selectors", len(zr.blk.sels))
	zr.step = (*Reader).readBlockHeader
}

// readNextStream ends decompression at EOF and otherwise expects another
// stream to follow.
func (zr *Reader) readNextStream() {
	if zr.rd.AtEOF() {
		panic(io.EOF)
	}
	zr.readStreamHeader()
}
