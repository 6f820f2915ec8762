/*
 * Copyright (C) 2020-2022, IrineSistiana
 *
 * This file is part of multilist.
 *
 * multilist is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * multilist is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with this program.  If not, see <https://www.gnu.org/licenses/>.
 */

package multilist

import (
	"fmt"
	"math"
)

const nilIdx int32 = -1

// link is the (next, prev) pair of one element in one list.
// linked is kept separately because a sole member of a list has
// both neighbours nil, same as a non-member.
type link struct {
	next, prev int32
	linked     bool
}

var emptyLink = link{next: nilIdx, prev: nilIdx}

// storage is one slab slot. Its link pairs are row idx of Multilist.links.
type storage[V any] struct {
	value    V
	gen      uint32
	live     bool
	members  int   // number of lists holding this element
	nextFree int32 // free chain, valid only when !live
}

// alloc takes a slot from the free chain, or grows the slab by one slot
// and one row of link pairs. Every link pair of the slot starts empty.
func (m *Multilist[V]) alloc(v V) int32 {
	var idx int32
	if m.free != nilIdx {
		idx = m.free
		m.free = m.slots[idx].nextFree
		row := m.row(idx)
		for i := range row {
			row[i] = emptyLink
		}
	} else {
		if len(m.slots) >= math.MaxInt32 {
			panic("multilist: slab exhausted")
		}
		idx = int32(len(m.slots))
		m.slots = append(m.slots, storage[V]{})
		for i := 0; i < m.stride; i++ {
			m.links = append(m.links, emptyLink)
		}
	}

	s := &m.slots[idx]
	s.value = v
	s.live = true
	s.members = 0
	s.nextFree = nilIdx
	m.live++
	m.orphans++
	return idx
}

// release moves the value out of a slot that is no longer a member of
// any list and puts the slot on the free chain. Bumping gen invalidates
// every handle to the old element.
func (m *Multilist[V]) release(idx int32) V {
	s := &m.slots[idx]
	if s.members != 0 {
		panic(fmt.Errorf("%w: releasing an element still linked in %d lists", ErrCorrupt, s.members))
	}
	v := s.value
	var zero V
	s.value = zero
	s.live = false
	s.gen++
	s.nextFree = m.free
	m.free = idx
	m.live--
	m.orphans--
	return v
}

func (m *Multilist[V]) row(idx int32) []link {
	off := int(idx) * m.stride
	return m.links[off : off+m.stride]
}

func (m *Multilist[V]) link(idx int32, list int) *link {
	return &m.links[int(idx)*m.stride+list]
}
