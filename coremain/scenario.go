package coremain

import (
	"fmt"
	"io"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/pmkol/multilist/pkg/sched"
)

func runSteps(s *sched.Scheduler, steps []StepConfig, out io.Writer, lg *zap.Logger) error {
	for i := range steps {
		st := &steps[i]
		if err := runStep(s, st, out, lg); err != nil {
			return fmt.Errorf("step #%d (%s) failed, %w", i, st.Op, err)
		}
	}
	return nil
}

func runStep(s *sched.Scheduler, st *StepConfig, out io.Writer, lg *zap.Logger) error {
	switch st.Op {
	case "spawn":
		return s.Spawn(st.List, sched.Task{PID: st.PID, GID: st.GID, Name: st.Name})

	case "attach":
		from := st.From
		if len(from) == 0 {
			from = s.Lists()[0]
		}
		switch {
		case len(st.Where) > 0:
			n, err := s.AttachWhere(st.List, from, st.Where)
			if err != nil {
				return err
			}
			lg.Info("tasks attached", zap.String("list", st.List), zap.String("where", st.Where), zap.Int("count", n))
			return nil
		case st.Pos != nil:
			return s.AttachAt(st.List, from, *st.Pos)
		default:
			return s.Attach(st.List, st.PID)
		}

	case "detach":
		if st.Pos != nil {
			return s.DetachAt(st.List, *st.Pos)
		}
		return s.Detach(st.List, st.PID)

	case "pop":
		t, ok, err := s.PopBack(st.List)
		if err != nil {
			return err
		}
		if ok {
			lg.Info("task popped", zap.String("list", st.List), zap.Int("pid", t.PID))
		}
		return nil

	case "exit":
		_, err := s.Exit(st.PID)
		return err

	case "tick":
		_, _, err := s.Tick(st.List)
		return err

	case "dump":
		return dump(out, s.Snapshot())

	default:
		return fmt.Errorf("unknown op %q", st.Op)
	}
}

func dump(out io.Writer, snap sched.Snapshot) error {
	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err := enc.Encode(snap); err != nil {
		return fmt.Errorf("failed to encode lists, %w", err)
	}
	return enc.Close()
}
