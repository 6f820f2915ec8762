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
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSlab_OneRowPerElement(t *testing.T) {
	for _, n := range []int{1, 3, 8} {
		m := New[int](n)
		for i := 0; i < 10; i++ {
			m.PushBack(i%n, i)
		}
		require.Len(t, m.slots, 10)
		require.Len(t, m.links, 10*n)
	}
}

func TestSlab_Reuse(t *testing.T) {
	m := New[*int](2)
	v := 1
	old := m.PushBack(0, &v)
	m.PushBackExisting(1, old)

	p, ok := m.PopBack(0)
	require.True(t, ok)
	require.Same(t, &v, p)
	require.Nil(t, m.slots[old.idx].value, "freed slot must not keep the value reachable")

	h := m.PushBack(1, nil)
	require.Equal(t, old.idx, h.idx, "freed slot is reused")
	require.Len(t, m.slots, 1)
	require.NotEqual(t, old, h)

	// The reused slot starts with empty links in every list.
	require.False(t, h.IsMemberOf(0))
	require.True(t, h.IsMemberOf(1))

	// The old handle is stale even though its slot is live again.
	require.False(t, old.Valid())
	requirePanicIs(t, ErrStaleHandle, func() { old.Value() })
	requirePanicIs(t, ErrStaleHandle, func() { m.PushBackExisting(0, old) })
	requirePanicIs(t, ErrStaleHandle, func() { m.Remove(old) })
}

func TestSlab_FreeChain(t *testing.T) {
	m := New[int](1)
	for i := 0; i < 4; i++ {
		m.PushBack(0, i)
	}
	for i := 0; i < 4; i++ {
		_, ok := m.PopBack(0)
		require.True(t, ok)
	}
	require.Equal(t, 0, m.Live())

	for i := 0; i < 6; i++ {
		m.PushBack(0, i)
	}
	require.Len(t, m.slots, 6)
	require.Equal(t, 6, m.Cap())
	require.Equal(t, 6, m.Len(0))
	require.Equal(t, 6, m.Live())
}

func TestRelease_LinkedElement(t *testing.T) {
	m := New[int](1)
	h := m.PushBack(0, 1)
	requirePanicIs(t, ErrCorrupt, func() { m.release(h.idx) })
}

func TestCheckLinked_Corrupt(t *testing.T) {
	m := New[int](1)
	a := m.PushBack(0, 1)
	b := m.PushBack(0, 2)

	// Break the back link of b.
	m.link(b.idx, 0).prev = nilIdx
	requirePanicIs(t, ErrCorrupt, func() { m.RemoveExisting(0, b) })
	requirePanicIs(t, ErrCorrupt, func() { m.Remove(b) })
	require.True(t, b.IsMemberOf(0))
	require.True(t, a.IsMemberOf(0))
	require.Equal(t, 2, m.Len(0))
}
