// Copyright 2015, Joe Tsai. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

package bzip2

import (
	"io"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"

	"github.com/dsnet/pbzip2/internal/prefix"
)

const (
	defaultMaxCodeLen = 17
	defaultIterations = 4
)

// WriterConfig configures a Writer. A nil config or zero fields select the
// defaults.
type WriterConfig struct {
	// Level is the compression level within BestSpeed..BestCompression.
	// It sets the block size in units of 100kB.
	Level int

	// Workers is the number of goroutines that compress blocks.
	// If zero, blocks are compressed by the goroutine calling Write or Close.
	Workers int

	// Pool is a shared pool of workers to use instead of Workers.
	// The Writer never closes it.
	Pool *Pool

	// Backlog is the largest number of blocks that may be compressed ahead
	// of the output. The default is twice the number of workers.
	Backlog int

	// MaxCodeLen is the longest prefix code within 9..20. The default is 17.
	MaxCodeLen int

	// Iterations is the number of tree refinement rounds within 1..16.
	// The default is 4.
	Iterations int

	// Logger receives structured events. Nil selects log.NewNopLogger().
	// Each written block and the closed stream are logged at debug level;
	// a failed Write or Close is logged at error level.
	Logger log.Logger

	_ struct{} // Blank field to prevent unkeyed struct literals
}

// blockJob is a block handed off for compression. The job owns buf.
type blockJob struct {
	seq    int64
	buf    []byte // Full block buffer
	blk    []byte // RLE1 encoded data within buf
	crc    uint32
	rawLen int64
	opts   encodeOptions
}

// testHookEncode, if set, is called before every block is compressed.
var testHookEncode func(seq int64)

// Writer compresses data into a single bzip2 stream.
//
// Blocks are compressed concurrently when workers are configured, but are
// always written in order. The first error encountered by any block is
// returned by every later call.
type Writer struct {
	InputOffset  int64 // Total number of bytes issued to Write
	OutputOffset int64 // Total number of bytes written to underlying io.Writer

	wr       prefix.Writer
	err      error
	level    int
	backlog  int
	workers  int
	opts     encodeOptions
	logger   log.Logger
	wroteHdr bool

	rle    runLengthEncoding
	blkBuf []byte
	blkCRC uint32 // Checksum of the current block
	blkLen int64  // Uncompressed size of the current block
	endCRC uint32 // Stream checksum
	crc    uint32 // Checksum of all input

	enc     *blockEncoder // Only used without a pool
	pool    *Pool
	ownPool bool
	slots   []chan encodedBlock // Results of in-flight blocks by sequence
	free    chan []byte         // Block buffers released by workers
	seq     int64               // Number of blocks submitted
	next    int64               // Number of blocks written
}

// NewWriter returns a new Writer that compresses data to w.
func NewWriter(w io.Writer, conf *WriterConfig) (*Writer, error) {
	var c WriterConfig
	if conf != nil {
		c = *conf
	}
	if c.Level == 0 {
		c.Level = DefaultCompression
	}
	if c.MaxCodeLen == 0 {
		c.MaxCodeLen = defaultMaxCodeLen
	}
	if c.Iterations == 0 {
		c.Iterations = defaultIterations
	}
	if c.Logger == nil {
		c.Logger = log.NewNopLogger()
	}
	switch {
	case c.Level < BestSpeed || c.Level > BestCompression:
		return nil, UsageError("invalid compression level")
	case c.Workers < 0:
		return nil, UsageError("invalid number of workers")
	case c.Backlog < 0:
		return nil, UsageError("invalid backlog")
	case c.MaxCodeLen < 9 || c.MaxCodeLen > maxPrefixLen:
		return nil, UsageError("invalid maximum code length")
	case c.Iterations < 1 || c.Iterations > 16:
		return nil, UsageError("invalid number of iterations")
	}

	zw := &Writer{
		level:   c.Level,
		backlog: c.Backlog,
		workers: c.Workers,
		pool:    c.Pool,
		logger:  c.Logger,
		opts: encodeOptions{
			maxBlock:   maxBlockSize(c.Level),
			maxBits:    uint(c.MaxCodeLen),
			iterations: c.Iterations,
		},
	}
	if zw.pool != nil {
		zw.workers = zw.pool.Workers()
	}
	if zw.backlog == 0 {
		zw.backlog = 2 * zw.workers
	}
	if zw.workers > 0 && zw.backlog > 0 {
		zw.free = make(chan []byte, zw.backlog)
	}
	if err := zw.Reset(w); err != nil {
		return nil, err
	}
	return zw, nil
}

// Checksum reports the CRC-32 of all data issued to Write, with the bit
// order used by bzip2. It only covers blocks already written out.
func (zw *Writer) Checksum() uint32 { return zw.crc }

func (zw *Writer) Write(buf []byte) (int, error) {
	if zw.err != nil {
		return 0, zw.err
	}

	var cnt int
	func() {
		defer errRecover(&zw.err)
		for len(buf) > 0 {
			n, err := zw.rle.Write(buf)
			zw.blkCRC = updateCRC(zw.blkCRC, buf[:n])
			zw.blkLen += int64(n)
			cnt += n
			buf = buf[n:]
			if err == rleDone {
				zw.flushBlock()
			}
		}
	}()
	zw.InputOffset += int64(cnt)
	zw.OutputOffset = zw.wr.Offset
	if zw.err != nil {
		level.Error(zw.logger).Log("msg", "write failed", "err", zw.err)
	}
	return cnt, zw.err
}

// Close flushes all buffered data, writes the stream trailer and releases
// any workers owned by the Writer. It does not close the underlying
// io.Writer.
func (zw *Writer) Close() error {
	if zw.err == ErrClosed {
		return nil
	}
	if zw.err == nil {
		func() {
			defer errRecover(&zw.err)
			zw.flushBlock()
			for zw.next < zw.seq {
				zw.writeBlock(<-zw.slots[zw.next%int64(len(zw.slots))])
			}
			if !zw.wroteHdr {
				zw.writeHeader()
			}
			zw.wr.WriteBits(endMagic>>24, 24)
			zw.wr.WriteBits(endMagic&0xffffff, 24)
			zw.wr.WriteBits(uint(zw.endCRC), crcBits)
			zw.wr.WritePads()
			if _, err := zw.wr.Flush(); err != nil {
				panic(err)
			}
		}()
		zw.OutputOffset = zw.wr.Offset
	}
	if zw.ownPool && zw.pool != nil {
		zw.pool.Close()
		zw.pool = nil
	}
	if zw.err != nil {
		level.Error(zw.logger).Log("msg", "close failed", "err", zw.err)
		return zw.err
	}
	level.Debug(zw.logger).Log("msg", "stream closed", "blocks", zw.seq, "in", zw.InputOffset, "out", zw.OutputOffset)
	zw.err = ErrClosed
	return nil
}

// Reset discards the Writer's state and makes it equivalent to the result
// of NewWriter with the original configuration, but writing to w instead.
// Blocks still being compressed for the previous stream are dropped.
func (zw *Writer) Reset(w io.Writer) error {
	if zw.workers > 0 && zw.pool == nil {
		pool, err := NewPool(zw.workers)
		if err != nil {
			return err
		}
		zw.pool, zw.ownPool = pool, true
	}

	*zw = Writer{
		wr:      zw.wr,
		level:   zw.level,
		backlog: zw.backlog,
		workers: zw.workers,
		opts:    zw.opts,
		logger:  zw.logger,
		blkBuf:  zw.blkBuf,
		enc:     zw.enc,
		pool:    zw.pool,
		ownPool: zw.ownPool,
		free:    zw.free,
	}
	zw.wr.Init(w)
	if zw.pool == nil {
		if zw.enc == nil {
			zw.enc = new(blockEncoder)
		}
	} else {
		zw.slots = make([]chan encodedBlock, zw.backlog)
		for i := range zw.slots {
			zw.slots[i] = make(chan encodedBlock, 1)
		}
	}
	zw.rle.Init(zw.newBlockBuf())
	return nil
}

func (zw *Writer) newBlockBuf() []byte {
	if zw.pool == nil && zw.blkBuf != nil {
		return zw.blkBuf
	}
	select {
	case buf := <-zw.free:
		zw.blkBuf = buf
	default:
		zw.blkBuf = make([]byte, zw.opts.maxBlock)
	}
	return zw.blkBuf
}

// flushBlock hands the current block off for compression and starts a new
// one. Completed blocks are written out as long as they are in order.
func (zw *Writer) flushBlock() {
	if zw.rle.Len() == 0 {
		return
	}
	zw.seq++
	job := blockJob{
		seq:    zw.seq,
		buf:    zw.blkBuf,
		blk:    zw.rle.Bytes(),
		crc:    zw.blkCRC,
		rawLen: zw.blkLen,
		opts:   zw.opts,
	}
	zw.blkCRC, zw.blkLen = 0, 0

	if zw.pool == nil {
		zw.writeBlock(encodeBlock(zw.enc, job))
		zw.rle.Init(zw.newBlockBuf())
		return
	}

	n := int64(len(zw.slots))
	for zw.seq-zw.next > n {
		zw.writeBlock(<-zw.slots[zw.next%n])
	}
	slot, free := zw.slots[(zw.seq-1)%n], zw.free
	err := zw.pool.submit(func(enc *blockEncoder) {
		slot <- encodeBlock(enc, job)
		select {
		case free <- job.buf:
		default:
		}
	})
	if err != nil {
		panic(err)
	}
	zw.rle.Init(zw.newBlockBuf())

	for zw.next < zw.seq {
		select {
		case blk := <-zw.slots[zw.next%n]:
			zw.writeBlock(blk)
		default:
			return
		}
	}
}

// encodeBlock compresses a block, converting any fault into a ResourceError.
func encodeBlock(enc *blockEncoder, job blockJob) (blk encodedBlock) {
	defer func() {
		if ex := recover(); ex != nil {
			err, ok := ex.(error)
			if ok {
				err = errors.WithStack(err)
			} else {
				err = errors.Errorf("%v", ex)
			}
			blk = encodedBlock{err: &ResourceError{Block: job.seq, Err: err}}
		}
	}()
	if testHookEncode != nil {
		testHookEncode(job.seq)
	}
	blk = enc.Encode(job.blk, job.crc, job.opts)
	blk.rawLen = job.rawLen
	return blk
}

func (zw *Writer) writeHeader() {
	zw.wr.WriteBits(hdrMagic, 16)
	zw.wr.WriteBits('h', 8)
	zw.wr.WriteBits(uint('0'+zw.level), 8)
	zw.wroteHdr = true
}

// writeBlock appends the next block in sequence to the stream.
func (zw *Writer) writeBlock(blk encodedBlock) {
	if blk.err != nil {
		panic(blk.err)
	}
	zw.next++
	if !zw.wroteHdr {
		zw.writeHeader()
	}
	zw.wr.WriteBitString(blk.data, blk.bits)
	zw.endCRC = updateStreamCRC(zw.endCRC, blk.crc)
	zw.crc = combineCRC(zw.crc, blk.crc, blk.rawLen)
	if _, err := zw.wr.Flush(); err != nil {
		panic(err)
	}
	level.Debug(zw.logger).Log("msg", "block written", "block", zw.next,
		"raw", blk.rawLen, "bits", blk.bits, "trees", blk.numTrees, "selectors", blk.numSels)
}
