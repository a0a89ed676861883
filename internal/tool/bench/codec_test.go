// Copyright 2016, Joe Tsai. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

package bench

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/dsnet/pbzip2/internal/testutil"
)

// TestCodecs tests that the output of each registered encoder is a valid input
// for each registered decoder. This test runs in O(n^2) where n is the number
// of registered codecs.
func TestCodecs(t *testing.T) {
	for _, name := range testutil.CorpusNames() {
		dd, err := LoadInput(name, 250000)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		t.Run(fmt.Sprintf("Input:%v", name), func(t *testing.T) { testFormats(t, dd) })
	}
}

func testFormats(t *testing.T, dd []byte) {
	t.Parallel()
	for _, ft := range []Format{FormatBZ2, FormatFlate, FormatXZ} {
		if len(Encoders[ft]) == 0 || len(Decoders[ft]) == 0 {
			continue
		}
		ft := ft
		t.Run(fmt.Sprintf("Format:%v", ft), func(t *testing.T) { testEncoders(t, ft, dd) })
	}
}

func testEncoders(t *testing.T, ft Format, dd []byte) {
	t.Parallel()
	const level = 6
	for encName := range Encoders[ft] {
		encName := encName
		t.Run(fmt.Sprintf("Encoder:%v", encName), func(t *testing.T) {
			de, err := compress(Encoders[ft][encName], dd, level)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			testDecoders(t, ft, dd, de)
		})
	}
}

func testDecoders(t *testing.T, ft Format, dd, de []byte) {
	t.Parallel()
	for decName := range Decoders[ft] {
		decName := decName
		t.Run(fmt.Sprintf("Decoder:%v", decName), func(t *testing.T) {
			bd := new(bytes.Buffer)
			zr := Decoders[ft][decName](bytes.NewReader(de))
			if _, err := io.Copy(bd, zr); err != nil {
				t.Fatalf("unexpected Read error: %v", err)
			}
			if err := zr.Close(); err != nil {
				t.Fatalf("unexpected Close error: %v", err)
			}
			if !bytes.Equal(bd.Bytes(), dd) {
				t.Error("data mismatch")
			}
		})
	}
}

func TestGetName(t *testing.T) {
	var vectors = []struct {
		file  string
		level int
		size  int
		want  string
	}{
		{"text", 9, 1e6, "text:9:1e6"},
		{"/tmp/digits.txt", 1, 1e4, "digits.txt:1:1e4"},
	}
	for _, v := range vectors {
		if got := getName(v.file, v.level, v.size); got != v.want {
			t.Errorf("getName(%q, %d, %d) = %q, want %q", v.file, v.level, v.size, got, v.want)
		}
	}
}

func TestSuite(t *testing.T) {
	encs := []string{"ds", "dsp"}
	for _, c := range encs {
		if Encoders[FormatBZ2][c] == nil {
			t.Skipf("encoder %q not registered", c)
		}
	}
	cases := Cases([]string{"zeros", "digits"}, []int{1}, []int{1e4})
	if len(cases) != 2 {
		t.Fatalf("got %d cases, want 2", len(cases))
	}

	var ticks int
	suite := &Suite{Format: FormatBZ2, Codecs: encs, Cases: cases, Tick: func() { ticks++ }}
	tbl, err := suite.Run(TestCompressRatio)
	if err != nil {
		t.Fatalf("unexpected Run error: %v", err)
	}
	if ticks != len(encs)*len(cases) {
		t.Errorf("tick count mismatch: got %d, want %d", ticks, len(encs)*len(cases))
	}
	if len(tbl.Rows) != len(cases) {
		t.Fatalf("row count mismatch: got %d, want %d", len(tbl.Rows), len(cases))
	}
	for _, row := range tbl.Rows {
		r0, r1 := row.Results[0], row.Results[1]
		if r0.R <= 1 {
			t.Errorf("%s: ratio %v, want > 1", row.Name, r0.R)
		}
		if r0.R != r1.R || r0.D != 1 || r1.D != 1 {
			t.Errorf("%s: serial and parallel results differ: %+v", row.Name, row.Results)
		}
	}
	if tbl.Rows[0].Name != "zeros:1:1e4" {
		t.Errorf("row name mismatch: got %q", tbl.Rows[0].Name)
	}

	var buf bytes.Buffer
	if err := tbl.Print(&buf); err != nil {
		t.Fatalf("unexpected Print error: %v", err)
	}
	if got := strings.Count(buf.String(), "\n"); got != 1+len(cases) {
		t.Errorf("printed %d lines, want %d", got, 1+len(cases))
	}

	if _, err := (&Suite{Format: FormatBZ2, Codecs: encs}).Run(TestDecodeRate); err == nil {
		t.Error("expected error for decode run without reference encoder")
	}
}
