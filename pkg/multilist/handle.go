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

// Handle identifies one element of a Multilist. It does not own the
// element. Handles are small values and compare equal iff they refer to
// the same element.
//
// A handle goes stale when its element is freed by PopBack, Remove or
// Drain. Using a stale handle panics with ErrStaleHandle; the slot may
// have been reused by then, the generation check catches that.
type Handle[V any] struct {
	m   *Multilist[V]
	idx int32
	gen uint32
}

// Value returns the stored value.
func (h Handle[V]) Value() V {
	h.mustLive()
	return h.m.slots[h.idx].value
}

// Valid reports whether h still refers to a live element.
func (h Handle[V]) Valid() bool {
	return h.m != nil && h.m.Validate(h) == nil
}

// IsMemberOf reports whether the element is currently a member of the list.
func (h Handle[V]) IsMemberOf(list int) bool {
	h.mustLive()
	h.m.list(list)
	return h.m.link(h.idx, list).linked
}

// Next returns the element after h in the list.
func (h Handle[V]) Next(list int) (Handle[V], bool) {
	return h.neighbour(list, true)
}

// Prev returns the element before h in the list.
func (h Handle[V]) Prev(list int) (Handle[V], bool) {
	return h.neighbour(list, false)
}

func (h Handle[V]) neighbour(list int, next bool) (Handle[V], bool) {
	h.mustLive()
	h.m.list(list)
	l := h.m.link(h.idx, list)
	idx := l.prev
	if next {
		idx = l.next
	}
	if idx == nilIdx {
		return Handle[V]{}, false
	}
	return h.m.handle(idx), true
}

func (h Handle[V]) mustLive() {
	if h.m == nil {
		panic(ErrStaleHandle)
	}
	h.m.mustOwn(h)
}
