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

package coremain

import (
	"github.com/pmkol/multilist/mlog"
)

// Config is the top level config.
type Config struct {
	Log     mlog.LogConfig `yaml:"log"`
	Include []string       `yaml:"include"`

	// Lists names the scheduler lists in index order.
	// Default is [task, run].
	Lists       []string `yaml:"lists"`
	HistorySize int      `yaml:"history_size"`

	Steps []StepConfig `yaml:"steps"`

	Tick TickConfig `yaml:"tick"`
	API  APIConfig  `yaml:"api"`
}

// StepConfig is one scenario step.
//
// Ops:
//
//	spawn:  new task {pid, gid, name} into list.
//	attach: existing task into list, chosen by where (in from), pos (in from) or pid.
//	detach: task out of list, chosen by pos or pid.
//	pop:    retire the last task of list.
//	exit:   retire task pid.
//	tick:   move the first task of list to its back.
//	dump:   print every list.
type StepConfig struct {
	Op    string `yaml:"op"`
	List  string `yaml:"list"`
	From  string `yaml:"from"`
	Pos   *int   `yaml:"pos"`
	PID   int    `yaml:"pid"`
	GID   int    `yaml:"gid"`
	Name  string `yaml:"name"`
	Where string `yaml:"where"`
}

type TickConfig struct {
	// List is rotated round-robin. Empty disables the tick loop.
	List string `yaml:"list"`

	// Interval in milliseconds. Default is 1000.
	Interval int `yaml:"interval"`
}

type APIConfig struct {
	HTTP string `yaml:"http"`
}
