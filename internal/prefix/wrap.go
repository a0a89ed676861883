// Copyright 2015, Joe Tsai. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

package prefix

import (
	"bytes"
	"io"
)

// In-memory sources are extended to satisfy pbzip2.BufferedReader, so the
// bit reader can peek ahead without copying them into a bufio.Reader and
// without consuming bytes beyond the end of a stream.

// buffer peeks directly into the unread portion of a bytes.Buffer.
type buffer struct {
	*bytes.Buffer
}

func (r *buffer) Buffered() int { return r.Len() }

func (r *buffer) Peek(n int) ([]byte, error) {
	b := r.Bytes()
	if len(b) < n {
		return b, io.EOF
	}
	return b[:n], nil
}

func (r *buffer) Discard(n int) (int, error) {
	if b := r.Next(n); len(b) < n {
		return len(b), io.EOF
	}
	return n, nil
}

// seekSource is the common method set of bytes.Reader and strings.Reader.
type seekSource interface {
	io.Reader
	io.ReaderAt
	io.Seeker
	Len() int
}

// seekReader serves peeks of a seekSource from a window of up to
// len(arr) bytes read at the current position. The source position only
// advances on Discard.
type seekReader struct {
	src seekSource
	pos int64  // Source position of window[0]
	win []byte // Cached bytes starting at pos
	arr [512]byte
}

func newSeekReader(src seekSource) *seekReader {
	return &seekReader{src: src}
}

func (r *seekReader) Read(buf []byte) (int, error) { return r.src.Read(buf) }

func (r *seekReader) offset() int64 {
	pos, _ := r.src.Seek(0, io.SeekCurrent)
	return pos
}

func (r *seekReader) Buffered() int {
	if n := r.src.Len(); n < len(r.arr) {
		return n
	}
	return len(r.arr)
}

func (r *seekReader) Peek(n int) ([]byte, error) {
	if n > len(r.arr) {
		return nil, io.ErrShortBuffer
	}

	pos := r.offset()
	if off := pos - r.pos; off >= 0 && off < int64(len(r.win)) {
		r.win, r.pos = r.win[off:], pos
		if len(r.win) >= n {
			return r.win[:n], nil
		}
	}

	cnt, err := r.src.ReadAt(r.arr[:], pos)
	r.win, r.pos = r.arr[:cnt], pos
	if cnt < n {
		if err == nil {
			err = io.EOF
		}
		return r.win, err
	}
	return r.win[:n], nil
}

func (r *seekReader) Discard(n int) (int, error) {
	var err error
	if rem := r.src.Len(); n > rem {
		n, err = rem, io.EOF
	}
	r.src.Seek(int64(n), io.SeekCurrent)
	return n, err
}
