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

// Package multilist implements an intrusive set of doubly-linked lists,
// indexed by number, that share one pool of elements. An element can be
// a member of any subset of the lists and occupies exactly one slab slot
// no matter how many lists it joins.
//
// An element is created in one list with PushBack. It can then be found
// with an iterator and added to other lists with PushBackExisting, or
// taken out of a single list with RemoveExisting. PopBack takes the last
// element of a list out of every list and returns its value. The lists
// collectively own the elements: Drain releases all of them.
//
// RemoveExisting never frees an element, even when it leaves its last
// list. Such an element is an orphan; it stays allocated until Remove or
// Drain reclaims it. Orphans reports how many there are.
//
// Multilist is not safe for concurrent use.
package multilist

import (
	"fmt"
	"iter"
)

type listHead struct {
	head, tail int32
	length     int
}

// Multilist is a fixed number of lists sharing one element pool.
type Multilist[V any] struct {
	lists  []listHead
	stride int

	slots []storage[V]
	links []link
	free  int32

	live    int
	orphans int
}

// New creates a Multilist with listCount lists, all empty.
// It panics if listCount is not positive.
func New[V any](listCount int) *Multilist[V] {
	if listCount <= 0 {
		panic(fmt.Sprintf("multilist: invalid list count: %d", listCount))
	}
	m := &Multilist[V]{
		lists:  make([]listHead, listCount),
		stride: listCount,
		free:   nilIdx,
	}
	for i := range m.lists {
		m.lists[i] = listHead{head: nilIdx, tail: nilIdx}
	}
	return m
}

func (m *Multilist[V]) ListCount() int {
	return len(m.lists)
}

func (m *Multilist[V]) IsEmpty(list int) bool {
	return m.list(list).head == nilIdx
}

// Len returns the number of members of the list.
func (m *Multilist[V]) Len(list int) int {
	return m.list(list).length
}

// Live returns the number of allocated elements, orphans included.
func (m *Multilist[V]) Live() int {
	return m.live
}

// Cap returns the number of element slots held by the container, free
// slots included. It only grows when no freed slot is available.
func (m *Multilist[V]) Cap() int {
	return len(m.slots)
}

// Orphans returns the number of allocated elements that are in no list.
func (m *Multilist[V]) Orphans() int {
	return m.orphans
}

// PushBack stores v in a new element and appends it to the list.
func (m *Multilist[V]) PushBack(list int, v V) Handle[V] {
	m.list(list)
	idx := m.alloc(v)
	m.pushBack(list, idx)
	return m.handle(idx)
}

// PushBackExisting appends an element that already exists to another list.
// It panics if h is not a live element of m or if the element is already
// a member of the list.
func (m *Multilist[V]) PushBackExisting(list int, h Handle[V]) {
	m.list(list)
	m.mustOwn(h)
	if m.link(h.idx, list).linked {
		panic(linkError(ErrAlreadyLinked, list))
	}
	m.pushBack(list, h.idx)
}

// RemoveExisting removes the element from the list only. Its membership
// in other lists is not touched.
//
// NB: If the element is no longer a member of any list, it is leaked until
// Remove or Drain. Use PopBack or Remove to take an element out for good.
func (m *Multilist[V]) RemoveExisting(list int, h Handle[V]) {
	m.list(list)
	m.mustOwn(h)
	if err := m.checkLinked(list, h.idx); err != nil {
		panic(err)
	}
	m.unlink(list, h.idx)
}

// MoveToBack moves a member of the list to the back of it in O(1).
// Does not change length.
func (m *Multilist[V]) MoveToBack(list int, h Handle[V]) {
	l := m.list(list)
	m.mustOwn(h)
	if err := m.checkLinked(list, h.idx); err != nil {
		panic(err)
	}
	if l.tail == h.idx {
		return
	}
	m.unlink(list, h.idx)
	m.pushBack(list, h.idx)
}

// PopBack removes the last element of the list from every list it is a
// member of, frees it and returns its value. ok is false if the list is
// empty.
func (m *Multilist[V]) PopBack(list int) (v V, ok bool) {
	tail := m.list(list).tail
	if tail == nilIdx {
		return
	}
	return m.retire(tail), true
}

// Remove takes the element out of every list it is a member of, frees it
// and returns its value. Unlike PopBack it accepts orphans.
func (m *Multilist[V]) Remove(h Handle[V]) V {
	m.mustOwn(h)
	return m.retire(h.idx)
}

// Drain empties list 0, then list 1 and so on, then reclaims orphans.
// release, if not nil, is called exactly once for every freed value.
// It returns the number of freed elements.
func (m *Multilist[V]) Drain(release func(v V)) (n int) {
	for i := range m.lists {
		for {
			v, ok := m.PopBack(i)
			if !ok {
				break
			}
			if release != nil {
				release(v)
			}
			n++
		}
	}
	for idx := range m.slots {
		if !m.slots[idx].live {
			continue
		}
		v := m.release(int32(idx))
		if release != nil {
			release(v)
		}
		n++
	}
	return n
}

// Close frees every element. Handles obtained before Close become stale.
func (m *Multilist[V]) Close() {
	m.Drain(nil)
}

// Front returns the first element of the list.
func (m *Multilist[V]) Front(list int) (Handle[V], bool) {
	idx := m.list(list).head
	if idx == nilIdx {
		return Handle[V]{}, false
	}
	return m.handle(idx), true
}

// Back returns the last element of the list.
func (m *Multilist[V]) Back(list int) (Handle[V], bool) {
	idx := m.list(list).tail
	if idx == nilIdx {
		return Handle[V]{}, false
	}
	return m.handle(idx), true
}

// Iter returns an iterator seeded at the head of the list.
func (m *Multilist[V]) Iter(list int) *Iterator[V] {
	return &Iterator[V]{
		m:    m,
		cur:  m.list(list).head,
		list: list,
	}
}

// All yields the members of the list in order. The next element is read
// before yielding, so the yielded element may be removed from the list
// (or retired) inside the loop.
func (m *Multilist[V]) All(list int) iter.Seq[Handle[V]] {
	m.list(list)
	return func(yield func(Handle[V]) bool) {
		it := m.Iter(list)
		for {
			h, ok := it.Next()
			if !ok || !yield(h) {
				return
			}
		}
	}
}

// Validate reports the error a mutating call would panic with when given h.
// A nil error means h is a live element of m.
func (m *Multilist[V]) Validate(h Handle[V]) error {
	if h.m != m {
		if h.m == nil {
			return ErrStaleHandle
		}
		return ErrForeignHandle
	}
	if h.idx < 0 || int(h.idx) >= len(m.slots) {
		return ErrStaleHandle
	}
	s := &m.slots[h.idx]
	if !s.live || s.gen != h.gen {
		return ErrStaleHandle
	}
	return nil
}

func (m *Multilist[V]) list(list int) *listHead {
	if list < 0 || list >= len(m.lists) {
		panic(listIndexError(list, len(m.lists)))
	}
	return &m.lists[list]
}

func (m *Multilist[V]) mustOwn(h Handle[V]) {
	if err := m.Validate(h); err != nil {
		panic(err)
	}
}

func (m *Multilist[V]) handle(idx int32) Handle[V] {
	return Handle[V]{m: m, idx: idx, gen: m.slots[idx].gen}
}

// checkLinked verifies that idx is a member of the list and that its
// neighbours (or the list table, at the edges) point back at it.
func (m *Multilist[V]) checkLinked(list int, idx int32) error {
	l := m.link(idx, list)
	if !l.linked {
		return linkError(ErrNotLinked, list)
	}
	lh := &m.lists[list]
	if l.next == nilIdx {
		if lh.tail != idx {
			return linkError(ErrCorrupt, list)
		}
	} else if m.link(l.next, list).prev != idx {
		return linkError(ErrCorrupt, list)
	}
	if l.prev == nilIdx {
		if lh.head != idx {
			return linkError(ErrCorrupt, list)
		}
	} else if m.link(l.prev, list).next != idx {
		return linkError(ErrCorrupt, list)
	}
	return nil
}

func (m *Multilist[V]) pushBack(list int, idx int32) {
	lh := &m.lists[list]
	l := m.link(idx, list)

	if lh.tail == nilIdx {
		lh.head = idx
	} else {
		m.link(lh.tail, list).next = idx
		l.prev = lh.tail
	}
	l.next = nilIdx
	l.linked = true
	lh.tail = idx
	lh.length++

	s := &m.slots[idx]
	if s.members == 0 {
		m.orphans--
	}
	s.members++
}

func (m *Multilist[V]) unlink(list int, idx int32) {
	lh := &m.lists[list]
	l := m.link(idx, list)
	p, n := l.prev, l.next

	if n != nilIdx {
		m.link(n, list).prev = p
	} else {
		lh.tail = p
	}
	if p != nilIdx {
		m.link(p, list).next = n
	} else {
		lh.head = n
	}
	*l = emptyLink
	lh.length--

	s := &m.slots[idx]
	s.members--
	if s.members == 0 {
		m.orphans++
	}
}

// retire unlinks idx from every list it belongs to before the value is
// moved out; no list may reference a freed slot.
func (m *Multilist[V]) retire(idx int32) V {
	for i := range m.lists {
		if !m.link(idx, i).linked {
			continue
		}
		if err := m.checkLinked(i, idx); err != nil {
			panic(err)
		}
	}
	for i := range m.lists {
		if m.link(idx, i).linked {
			m.unlink(i, idx)
		}
	}
	return m.release(idx)
}
