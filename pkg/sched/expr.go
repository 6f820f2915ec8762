package sched

import (
	"errors"
	"fmt"

	"github.com/Knetic/govaluate"
)

var ErrBadExpr = errors.New("bad expression")

type expr struct {
	src string
	e   *govaluate.EvaluableExpression
}

// compile returns a cached expression if there is one.
func (s *Scheduler) compile(src string) (*expr, error) {
	if e, ok := s.exprs.Get(src); ok {
		return e, nil
	}
	ge, err := govaluate.NewEvaluableExpression(src)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadExpr, err)
	}
	e := &expr{src: src, e: ge}
	s.exprs.Add(src, e)
	return e, nil
}

func (e *expr) match(t Task) (bool, error) {
	r, err := e.e.Evaluate(map[string]interface{}{
		"pid":  float64(t.PID),
		"gid":  float64(t.GID),
		"name": t.Name,
	})
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrBadExpr, err)
	}
	b, ok := r.(bool)
	if !ok {
		return false, fmt.Errorf("%w: %s is not a condition", ErrBadExpr, e.src)
	}
	return b, nil
}
