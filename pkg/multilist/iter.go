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

// Iterator walks one list from head to tail. It cannot be restarted.
// Iterators come from Multilist.Iter; a zero Iterator is exhausted.
// Changing the list while an Iterator is in use has undefined results
// for the Iterator; see Multilist.All for a loop that tolerates removing
// the current element.
type Iterator[V any] struct {
	m    *Multilist[V]
	cur  int32
	list int
}

// Next returns the current element and advances. ok is false once the
// end of the list is reached.
func (it *Iterator[V]) Next() (h Handle[V], ok bool) {
	if it.m == nil || it.cur == nilIdx {
		return
	}
	idx := it.cur
	it.cur = it.m.link(idx, it.list).next
	return it.m.handle(idx), true
}
