// Copyright 2015, Joe Tsai. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

//go:build !no_ds_lib
// +build !no_ds_lib

package bench

import (
	"io"
	"runtime"

	"github.com/dsnet/pbzip2/bzip2"
)

func init() {
	RegisterEncoder(FormatBZ2, "ds",
		func(w io.Writer, lvl int) io.WriteCloser {
			zw, err := bzip2.NewWriter(w, &bzip2.WriterConfig{Level: lvl})
			if err != nil {
				panic(err)
			}
			return zw
		})
	RegisterEncoder(FormatBZ2, "dsp",
		func(w io.Writer, lvl int) io.WriteCloser {
			zw, err := bzip2.NewWriter(w, &bzip2.WriterConfig{
				Level:   lvl,
				Workers: runtime.GOMAXPROCS(0),
			})
			if err != nil {
				panic(err)
			}
			return zw
		})
	RegisterDecoder(FormatBZ2, "ds",
		func(r io.Reader) io.ReadCloser {
			zr, err := bzip2.NewReader(r, nil)
			if err != nil {
				panic(err)
			}
			return zr
		})
}
