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

// Package sched keeps kernel style task bookkeeping on top of a
// multilist: every task is stored once and can be linked into any of a
// set of named lists (by default a task list and a run list).
package sched

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"go.uber.org/zap"

	"github.com/pmkol/multilist/pkg/lru"
	"github.com/pmkol/multilist/pkg/multilist"
	"github.com/pmkol/multilist/pkg/utils"
)

const (
	TaskList = "task"
	RunList  = "run"

	maxLists = 64
)

var (
	ErrUnknownList   = errors.New("unknown list")
	ErrUnknownTask   = errors.New("unknown task")
	ErrDuplicateTask = errors.New("duplicated task")
	ErrAlreadyMember = errors.New("task is already in the list")
	ErrNotMember     = errors.New("task is not in the list")
	ErrPosition      = errors.New("no task at position")
	ErrClosed        = errors.New("scheduler closed")
)

var nopLogger = zap.NewNop()

type Task struct {
	PID  int    `yaml:"pid"`
	GID  int    `yaml:"gid"`
	Name string `yaml:"name,omitempty"`
}

type Opts struct {
	// Lists names the lists in index order.
	// Default is [task, run].
	Lists []string

	// HistorySize is the number of retired tasks Recent remembers.
	// Default is 64.
	HistorySize int

	// ExprCacheSize is the number of compiled selection expressions kept.
	// Default is 32.
	ExprCacheSize int

	// Logger is the *zap.Logger for this Scheduler.
	// A nil Logger will disable logging.
	Logger *zap.Logger
}

func (opts *Opts) init() error {
	if len(opts.Lists) == 0 {
		opts.Lists = []string{TaskList, RunList}
	}
	if !utils.CheckNumRange(len(opts.Lists), 1, maxLists) {
		return fmt.Errorf("too many lists: %d, max is %d", len(opts.Lists), maxLists)
	}
	utils.SetDefaultNum(&opts.HistorySize, 64)
	utils.SetDefaultNum(&opts.ExprCacheSize, 32)
	if opts.Logger == nil {
		opts.Logger = nopLogger
	}
	return nil
}

// Scheduler is safe for concurrent use. The multilist it wraps is not;
// every access goes through s.m.
type Scheduler struct {
	opts Opts

	m       sync.Mutex
	closed  bool
	ml      *multilist.Multilist[Task]
	index   map[string]int
	tasks   map[int]multilist.Handle[Task]
	history *lru.LRU[int, Task]
	exprs   *lru.LRU[string, *expr]

	pops  uint64
	ticks uint64
}

func New(opts Opts) (*Scheduler, error) {
	if err := opts.init(); err != nil {
		return nil, err
	}

	index := make(map[string]int, len(opts.Lists))
	for i, name := range opts.Lists {
		if len(name) == 0 {
			return nil, fmt.Errorf("list #%d has no name", i)
		}
		if _, dup := index[name]; dup {
			return nil, fmt.Errorf("duplicated list name %s", name)
		}
		index[name] = i
	}

	return &Scheduler{
		opts:    opts,
		ml:      multilist.New[Task](len(opts.Lists)),
		index:   index,
		tasks:   make(map[int]multilist.Handle[Task]),
		history: lru.NewLRU[int, Task](opts.HistorySize, nil),
		exprs:   lru.NewLRU[string, *expr](opts.ExprCacheSize, nil),
	}, nil
}

// Lists returns the list names in index order.
func (s *Scheduler) Lists() []string {
	return slices.Clone(s.opts.Lists)
}

// Spawn stores a new task and appends it to the list.
func (s *Scheduler) Spawn(list string, t Task) error {
	s.m.Lock()
	defer s.m.Unlock()

	idx, err := s.listIndex(list)
	if err != nil {
		return err
	}
	if _, dup := s.tasks[t.PID]; dup {
		return fmt.Errorf("%w: pid %d", ErrDuplicateTask, t.PID)
	}
	s.tasks[t.PID] = s.ml.PushBack(idx, t)
	s.opts.Logger.Debug("task spawned", zap.Int("pid", t.PID), zap.String("list", list))
	return nil
}

// Attach appends an existing task to another list.
func (s *Scheduler) Attach(list string, pid int) error {
	s.m.Lock()
	defer s.m.Unlock()

	idx, err := s.listIndex(list)
	if err != nil {
		return err
	}
	h, err := s.lookup(pid)
	if err != nil {
		return err
	}
	return s.attach(idx, h)
}

// AttachAt appends the task found at position pos of list from to list.
func (s *Scheduler) AttachAt(list, from string, pos int) error {
	s.m.Lock()
	defer s.m.Unlock()

	idx, err := s.listIndex(list)
	if err != nil {
		return err
	}
	fromIdx, err := s.listIndex(from)
	if err != nil {
		return err
	}
	h, err := s.at(fromIdx, pos)
	if err != nil {
		return err
	}
	return s.attach(idx, h)
}

// AttachWhere appends every task of list from that matches the expression
// and is not in list yet. It returns the number of attached tasks.
func (s *Scheduler) AttachWhere(list, from, where string) (int, error) {
	s.m.Lock()
	defer s.m.Unlock()

	idx, err := s.listIndex(list)
	if err != nil {
		return 0, err
	}
	fromIdx, err := s.listIndex(from)
	if err != nil {
		return 0, err
	}
	e, err := s.compile(where)
	if err != nil {
		return 0, err
	}

	var matched []multilist.Handle[Task]
	for h := range s.ml.All(fromIdx) {
		ok, err := e.match(h.Value())
		if err != nil {
			return 0, err
		}
		if ok && !h.IsMemberOf(idx) {
			matched = append(matched, h)
		}
	}
	for _, h := range matched {
		s.ml.PushBackExisting(idx, h)
	}
	return len(matched), nil
}

// Detach removes a task from one list only. A task that is left in no
// list stays known to the Scheduler until Exit.
func (s *Scheduler) Detach(list string, pid int) error {
	s.m.Lock()
	defer s.m.Unlock()

	idx, err := s.listIndex(list)
	if err != nil {
		return err
	}
	h, err := s.lookup(pid)
	if err != nil {
		return err
	}
	return s.detach(idx, h)
}

// DetachAt removes the task at position pos from the list only.
func (s *Scheduler) DetachAt(list string, pos int) error {
	s.m.Lock()
	defer s.m.Unlock()

	idx, err := s.listIndex(list)
	if err != nil {
		return err
	}
	h, err := s.at(idx, pos)
	if err != nil {
		return err
	}
	return s.detach(idx, h)
}

// PopBack retires the last task of the list. The task leaves every list.
func (s *Scheduler) PopBack(list string) (Task, bool, error) {
	s.m.Lock()
	defer s.m.Unlock()

	idx, err := s.listIndex(list)
	if err != nil {
		return Task{}, false, err
	}
	t, ok := s.ml.PopBack(idx)
	if !ok {
		return Task{}, false, nil
	}
	s.retired(t)
	return t, true, nil
}

// Exit retires a task wherever it is, orphans included.
func (s *Scheduler) Exit(pid int) (Task, error) {
	s.m.Lock()
	defer s.m.Unlock()

	if s.closed {
		return Task{}, ErrClosed
	}
	h, err := s.lookup(pid)
	if err != nil {
		return Task{}, err
	}
	t := s.ml.Remove(h)
	s.retired(t)
	return t, nil
}

// Tick moves the first task of the list to its back and returns it.
// On the run list this is a round-robin pick.
func (s *Scheduler) Tick(list string) (Task, bool, error) {
	s.m.Lock()
	defer s.m.Unlock()

	idx, err := s.listIndex(list)
	if err != nil {
		return Task{}, false, err
	}
	h, ok := s.ml.Front(idx)
	if !ok {
		return Task{}, false, nil
	}
	s.ml.MoveToBack(idx, h)
	s.ticks++
	return h.Value(), true, nil
}

// Tasks returns the tasks of the list in order.
func (s *Scheduler) Tasks(list string) ([]Task, error) {
	s.m.Lock()
	defer s.m.Unlock()

	idx, err := s.listIndex(list)
	if err != nil {
		return nil, err
	}
	return s.collect(idx), nil
}

// Select returns the tasks of the list that match the expression.
// The expression sees the variables pid, gid and name.
func (s *Scheduler) Select(list, where string) ([]Task, error) {
	s.m.Lock()
	defer s.m.Unlock()

	idx, err := s.listIndex(list)
	if err != nil {
		return nil, err
	}
	e, err := s.compile(where)
	if err != nil {
		return nil, err
	}
	var out []Task
	for h := range s.ml.All(idx) {
		t := h.Value()
		ok, err := e.match(t)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, t)
		}
	}
	return out, nil
}

// Recent returns a recently retired task.
func (s *Scheduler) Recent(pid int) (Task, bool) {
	s.m.Lock()
	defer s.m.Unlock()
	return s.history.Get(pid)
}

type ListSnapshot struct {
	Name  string `yaml:"name"`
	Tasks []Task `yaml:"tasks"`
}

type Snapshot struct {
	Lists   []ListSnapshot `yaml:"lists"`
	Orphans []Task         `yaml:"orphans,omitempty"`
}

// Snapshot copies every list, and the tasks that are in no list.
func (s *Scheduler) Snapshot() Snapshot {
	s.m.Lock()
	defer s.m.Unlock()

	var snap Snapshot
	for i, name := range s.opts.Lists {
		snap.Lists = append(snap.Lists, ListSnapshot{Name: name, Tasks: s.collect(i)})
	}
	for _, h := range s.tasks {
		if !s.linkedAnywhere(h) {
			snap.Orphans = append(snap.Orphans, h.Value())
		}
	}
	slices.SortFunc(snap.Orphans, func(a, b Task) int { return a.PID - b.PID })
	return snap
}

type Stats struct {
	Lengths []int
	Live    int
	Orphans int
	Pops    uint64
	Ticks   uint64
}

func (s *Scheduler) Stats() Stats {
	s.m.Lock()
	defer s.m.Unlock()

	st := Stats{
		Lengths: make([]int, s.ml.ListCount()),
		Live:    s.ml.Live(),
		Orphans: s.ml.Orphans(),
		Pops:    s.pops,
		Ticks:   s.ticks,
	}
	for i := range st.Lengths {
		st.Lengths[i] = s.ml.Len(i)
	}
	return st
}

// Close retires every task. Further calls that change lists return ErrClosed.
func (s *Scheduler) Close() error {
	s.m.Lock()
	defer s.m.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	n := s.ml.Drain(nil)
	clear(s.tasks)
	s.opts.Logger.Info("scheduler closed", zap.Int("released", n))
	return nil
}

func (s *Scheduler) listIndex(list string) (int, error) {
	if s.closed {
		return 0, ErrClosed
	}
	idx, ok := s.index[list]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownList, list)
	}
	return idx, nil
}

func (s *Scheduler) lookup(pid int) (multilist.Handle[Task], error) {
	h, ok := s.tasks[pid]
	if !ok {
		return h, fmt.Errorf("%w: pid %d", ErrUnknownTask, pid)
	}
	return h, nil
}

func (s *Scheduler) at(idx, pos int) (multilist.Handle[Task], error) {
	if pos >= 0 {
		it := s.ml.Iter(idx)
		for i := 0; ; i++ {
			h, ok := it.Next()
			if !ok {
				break
			}
			if i == pos {
				return h, nil
			}
		}
	}
	return multilist.Handle[Task]{}, fmt.Errorf("%w: %d in %s", ErrPosition, pos, s.opts.Lists[idx])
}

func (s *Scheduler) attach(idx int, h multilist.Handle[Task]) error {
	if h.IsMemberOf(idx) {
		return fmt.Errorf("%w: pid %d, list %s", ErrAlreadyMember, h.Value().PID, s.opts.Lists[idx])
	}
	s.ml.PushBackExisting(idx, h)
	return nil
}

func (s *Scheduler) detach(idx int, h multilist.Handle[Task]) error {
	pid := h.Value().PID
	if !h.IsMemberOf(idx) {
		return fmt.Errorf("%w: pid %d, list %s", ErrNotMember, pid, s.opts.Lists[idx])
	}
	s.ml.RemoveExisting(idx, h)
	if !s.linkedAnywhere(h) {
		s.opts.Logger.Warn("task is in no list, it stays allocated until exit", zap.Int("pid", pid))
	}
	return nil
}

func (s *Scheduler) linkedAnywhere(h multilist.Handle[Task]) bool {
	for i := range s.opts.Lists {
		if h.IsMemberOf(i) {
			return true
		}
	}
	return false
}

func (s *Scheduler) collect(idx int) []Task {
	out := make([]Task, 0, s.ml.Len(idx))
	for h := range s.ml.All(idx) {
		out = append(out, h.Value())
	}
	return out
}

func (s *Scheduler) retired(t Task) {
	delete(s.tasks, t.PID)
	s.history.Add(t.PID, t)
	s.pops++
	s.opts.Logger.Debug("task retired", zap.Int("pid", t.PID))
}
