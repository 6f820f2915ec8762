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
	"errors"
	"fmt"
)

// Contract violations. Mutating methods panic with an error that wraps
// one of these, so a recovered value can be matched with errors.Is.
var (
	ErrListIndex     = errors.New("multilist: list index out of range")
	ErrForeignHandle = errors.New("multilist: handle belongs to another multilist")
	ErrStaleHandle   = errors.New("multilist: handle refers to a retired element")
	ErrAlreadyLinked = errors.New("multilist: element is already a member of the list")
	ErrNotLinked     = errors.New("multilist: element is not a member of the list")
	ErrCorrupt       = errors.New("multilist: list links are inconsistent")
)

func listIndexError(list, count int) error {
	return fmt.Errorf("%w: %d, list count is %d", ErrListIndex, list, count)
}

func linkError(err error, list int) error {
	return fmt.Errorf("%w: list %d", err, list)
}
