package coremain

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/pprof"
	"slices"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/pmkol/multilist/mlog"
	"github.com/pmkol/multilist/pkg/pool"
	"github.com/pmkol/multilist/pkg/safe_close"
	"github.com/pmkol/multilist/pkg/sched"
)

// Server runs the scenario steps, then keeps the scheduler alive behind
// an http api and a round-robin tick loop.
type Server struct {
	logger *zap.Logger
	cfg    *Config

	sched        *sched.Scheduler
	tickInterval atomic.Int64
	reload       chan struct{}
	closeLog     func() error

	httpAPIMux *http.ServeMux
	metricsReg *prometheus.Registry

	sc *safe_close.SafeClose
}

func NewServer(cfg *Config) (*Server, error) {
	lg, closeLog, err := mlog.NewLogger(&cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("failed to init logger: %w", err)
	}

	s, err := newScheduler(cfg, lg)
	if err != nil {
		closeLog()
		return nil, err
	}

	m := &Server{
		logger:     lg,
		cfg:        cfg,
		sched:      s,
		reload:     make(chan struct{}, 1),
		closeLog:   closeLog,
		httpAPIMux: http.NewServeMux(),
		metricsReg: newMetricsReg(),
		sc:         safe_close.NewSafeClose(),
	}
	m.tickInterval.Store(int64(tickInterval(cfg)))

	if len(cfg.Tick.List) > 0 && !slices.Contains(s.Lists(), cfg.Tick.List) {
		s.Close()
		closeLog()
		return nil, fmt.Errorf("tick list %s is not configured", cfg.Tick.List)
	}

	if err := runSteps(s, cfg.Steps, io.Discard, lg); err != nil {
		s.Close()
		closeLog()
		return nil, err
	}

	prometheus.WrapRegistererWithPrefix("multilist_", m.metricsReg).MustRegister(sched.NewCollector(s))
	m.httpAPIMux.Handle("/metrics", promhttp.HandlerFor(m.metricsReg, promhttp.HandlerOpts{}))
	m.httpAPIMux.HandleFunc("/lists", m.serveLists)
	m.httpAPIMux.HandleFunc("/debug/pprof/", pprof.Index)
	m.httpAPIMux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	m.httpAPIMux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	m.httpAPIMux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	m.httpAPIMux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	return m, nil
}

// Run blocks until the server is closed or fails. The scheduler and
// the log file are closed before Run returns.
func (m *Server) Run() error {
	defer m.closeLog()
	defer m.sched.Close()

	if len(m.cfg.API.HTTP) == 0 && len(m.cfg.Tick.List) == 0 {
		m.sc.Done()
		return errors.New("neither api nor tick loop is configured")
	}

	if httpAddr := m.cfg.API.HTTP; len(httpAddr) > 0 {
		httpServer := &http.Server{
			Addr:    httpAddr,
			Handler: m.httpAPIMux,
		}
		m.sc.Attach(func(done func(), closeSignal <-chan struct{}) {
			defer done()
			errChan := make(chan error, 1)
			go func() {
				m.logger.Info("starting api http server", zap.String("addr", httpAddr))
				errChan <- httpServer.ListenAndServe()
			}()
			select {
			case err := <-errChan:
				m.sc.SendCloseSignal(err)
			case <-closeSignal:
				httpServer.Close()
			}
		})
	}

	if list := m.cfg.Tick.List; len(list) > 0 {
		m.sc.Attach(func(done func(), closeSignal <-chan struct{}) {
			defer done()
			m.tickLoop(list, closeSignal)
		})
	}

	<-m.sc.ReceiveCloseSignal()
	m.sc.Done()
	m.sc.CloseWait()
	return m.sc.Err()
}

// Close stops the server and waits for Run to return.
func (m *Server) Close() {
	m.sc.CloseWait()
}

// SetTickInterval changes the tick interval. A running tick loop re-arms
// its timer with d right away.
func (m *Server) SetTickInterval(d time.Duration) {
	m.tickInterval.Store(int64(d))
	select {
	case m.reload <- struct{}{}:
	default:
	}
}

func (m *Server) tickLoop(list string, closeSignal <-chan struct{}) {
	timer := pool.GetTimer(time.Duration(m.tickInterval.Load()))
	defer pool.ReleaseTimer(timer)

	for {
		select {
		case <-closeSignal:
			return
		case <-m.reload:
			pool.ResetAndDrainTimer(timer, time.Duration(m.tickInterval.Load()))
		case <-timer.C:
			t, ok, err := m.sched.Tick(list)
			if err != nil {
				m.sc.SendCloseSignal(fmt.Errorf("tick failed, %w", err))
				return
			}
			if ok {
				m.logger.Debug("tick", zap.String("list", list), zap.Int("pid", t.PID))
			}
			pool.ResetAndDrainTimer(timer, time.Duration(m.tickInterval.Load()))
		}
	}
}

// serveLists writes the lists as yaml. With ?list=name&where=expr it
// writes the matching tasks of one list.
func (m *Server) serveLists(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")

	list := req.URL.Query().Get("list")
	if len(list) == 0 {
		if err := dump(w, m.sched.Snapshot()); err != nil {
			m.logger.Warn("failed to write lists", zap.Error(err))
		}
		return
	}

	where := req.URL.Query().Get("where")
	if len(where) == 0 {
		where = "true"
	}
	tasks, err := m.sched.Select(list, where)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	snap := sched.Snapshot{Lists: []sched.ListSnapshot{{Name: list, Tasks: tasks}}}
	if err := dump(w, snap); err != nil {
		m.logger.Warn("failed to write lists", zap.Error(err))
	}
}

func newMetricsReg() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	reg.MustRegister(collectors.NewGoCollector())
	return reg
}
