// Copyright 2015, Joe Tsai. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

package prefix

import (
	"fmt"
	"strings"
	"text/tabwriter"
)

// String lists one code per line as symbol, prefix bits and count.
// Symbols without a length show "-" for their bits.
func (pc PrefixCodes) String() string {
	var sb strings.Builder
	tw := tabwriter.NewWriter(&sb, 0, 0, 1, ' ', tabwriter.AlignRight)
	for _, c := range pc {
		bits := "-"
		if c.Len > 0 {
			bits = fmt.Sprintf("%0*b", int(c.Len), c.Val)
		}
		fmt.Fprintf(tw, "%d:\t%s\t%d\t\n", c.Sym, bits, c.Cnt)
	}
	tw.Flush()
	return sb.String()
}

// String lists each used bit-length with its range of prefix values and the
// symbols assigned to it.
func (t Table) String() string {
	var sb strings.Builder
	for l := t.MinLen; l <= t.MaxLen && len(t.Symbols) > 0; l++ {
		if t.Counts[l] == 0 {
			continue
		}
		syms := t.Symbols[t.Offsets[l] : t.Offsets[l]+t.Counts[l]]
		fmt.Fprintf(&sb, "len %2d: %0*b-%0*b %v\n", l, int(l), t.Bases[l], int(l), t.Limits[l], syms)
	}
	return sb.String()
}
