// Copyright 2015, Joe Tsai. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

// Package radix sorts the cyclic rotations of a block of bytes.
//
// The sort is a Bentley-Sedgewick three-way radix quicksort that compares
// rotations one byte at a time. Rotations that still compare equal after
// Overshoot bytes are resolved by prefix doubling on rotation ranks, so the
// result is exact for every input, including highly periodic ones.
//
// References:
//	https://www.cs.princeton.edu/~rs/strings/paper.pdf
//	https://doi.org/10.1016/j.tcs.2007.07.017
package radix

import (
	"bytes"
	"sort"

	"github.com/dsnet/pbzip2/internal"
)

// Overshoot is the number of bytes past the end of a block that must be
// readable by ComputeRotations.
const Overshoot = 128

// insertSortMax is the largest range that is sorted by insertion sort.
const insertSortMax = 16

type span struct{ lo, hi int32 }

type task struct {
	lo, hi int32
	d      int32
}

// ComputeRotations computes the ascending lexicographic order of the
// len(SA) cyclic rotations of T[:len(SA)] and stores their starting offsets
// in SA. T must hold at least len(SA)+Overshoot bytes where
// T[len(SA)+i] == T[i%len(SA)].
//
// Rotations that are equal in their entirety are stored in an unspecified
// relative order.
func ComputeRotations(T []byte, SA []int32) {
	n := len(SA)
	if len(T) < n+Overshoot {
		panic("radix: missing overshoot region")
	}
	if n == 0 {
		return
	}
	if internal.Debug {
		for i := 0; i < Overshoot; i++ {
			if T[n+i] != T[i%n] {
				panic("radix: overshoot region is not cyclic")
			}
		}
	}

	for i := range SA {
		SA[i] = int32(i)
	}
	groups := multikeySort(T, SA)
	if len(groups) > 0 {
		refineGroups(SA, groups)
	}
}

// multikeySort sorts SA by the first Overshoot bytes of each rotation and
// returns the ranges whose rotations are still tied.
func multikeySort(T []byte, SA []int32) (groups []span) {
	stack := []task{{0, int32(len(SA)), 0}}
	for len(stack) > 0 {
		t := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		lo, hi, d := t.lo, t.hi, t.d
		for hi-lo > 1 {
			if d >= Overshoot {
				groups = append(groups, span{lo, hi})
				break
			}
			if hi-lo <= insertSortMax {
				groups = insertionSort(T, SA[lo:hi], lo, d, groups)
				break
			}

			// Partition into (< pivot, == pivot, > pivot) at byte offset d.
			v := medianOf3(T, SA, lo, hi, d)
			lt, i, gt := lo, lo, hi
			for i < gt {
				switch c := T[SA[i]+d]; {
				case c < v:
					SA[lt], SA[i] = SA[i], SA[lt]
					lt++
					i++
				case c > v:
					gt--
					SA[gt], SA[i] = SA[i], SA[gt]
				default:
					i++
				}
			}
			if lt-lo > 1 {
				stack = append(stack, task{lo, lt, d})
			}
			if hi-gt > 1 {
				stack = append(stack, task{gt, hi, d})
			}
			lo, hi, d = lt, gt, d+1
		}
	}
	return groups
}

func medianOf3(T []byte, SA []int32, lo, hi, d int32) byte {
	a := T[SA[lo]+d]
	b := T[SA[lo+(hi-lo)/2]+d]
	c := T[SA[hi-1]+d]
	if a > b {
		a, b = b, a
	}
	if b > c {
		b = c
	}
	if a > b {
		b = a
	}
	return b
}

// insertionSort sorts a small range of rotations that share their first d
// bytes and appends any ranges that remain tied after Overshoot bytes.
func insertionSort(T []byte, sa []int32, base, d int32, groups []span) []span {
	key := func(i int) []byte {
		return T[sa[i]+d : sa[i]+Overshoot]
	}
	for i := 1; i < len(sa); i++ {
		for j := i; j > 0 && bytes.Compare(key(j-1), key(j)) > 0; j-- {
			sa[j-1], sa[j] = sa[j], sa[j-1]
		}
	}
	for i := 0; i < len(sa); {
		j := i + 1
		for j < len(sa) && bytes.Equal(key(i), key(j)) {
			j++
		}
		if j-i > 1 {
			groups = append(groups, span{base + int32(i), base + int32(j)})
		}
		i = j
	}
	return groups
}

// groupSorter orders a range of SA by a precomputed key per position.
type groupSorter struct {
	sa   []int32
	keys []int32
}

func (s groupSorter) Len() int           { return len(s.sa) }
func (s groupSorter) Less(i, j int) bool { return s.keys[i] < s.keys[j] }
func (s groupSorter) Swap(i, j int) {
	s.sa[i], s.sa[j] = s.sa[j], s.sa[i]
	s.keys[i], s.keys[j] = s.keys[j], s.keys[i]
}

// refineGroups resolves tied ranges by prefix doubling. On entry, SA is
// sorted by the first h = Overshoot bytes of each rotation. Each pass sorts
// every tied range by the rank of the rotation starting h bytes later, which
// orders it by the first 2h bytes.
//
// The rank of a rotation is the last index of the range it belongs to.
func refineGroups(SA []int32, groups []span) {
	n := int32(len(SA))
	ranks := make([]int32, n)
	for i, j := range SA {
		ranks[j] = int32(i)
	}
	for _, g := range groups {
		for _, j := range SA[g.lo:g.hi] {
			ranks[j] = g.hi - 1
		}
	}

	keys := make([]int32, n)
	var next []span
	var pending []span
	for h := int32(Overshoot); len(groups) > 0 && h < n; h *= 2 {
		// Compute all keys before any rank is updated.
		for _, g := range groups {
			for i := g.lo; i < g.hi; i++ {
				keys[i] = ranks[(SA[i]+h)%n]
			}
		}

		next, pending = next[:0], pending[:0]
		for _, g := range groups {
			gs := groupSorter{SA[g.lo:g.hi], keys[g.lo:g.hi]}
			if gs.keys[0] == gs.keys[len(gs.keys)-1] && allEqual(gs.keys) {
				next = append(next, g) // Nothing to split
				continue
			}
			sort.Sort(gs)
			for i := g.lo; i < g.hi; {
				j := i + 1
				for j < g.hi && keys[j] == keys[i] {
					j++
				}
				pending = append(pending, span{i, j})
				if j-i > 1 {
					next = append(next, span{i, j})
				}
				i = j
			}
		}

		// Update ranks for every split range.
		for _, s := range pending {
			for _, j := range SA[s.lo:s.hi] {
				ranks[j] = s.hi - 1
			}
		}
		groups, next = next, groups
	}
}

func allEqual(keys []int32) bool {
	for _, k := range keys[1:] {
		if k != keys[0] {
			return false
		}
	}
	return true
}
