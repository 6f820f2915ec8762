package coremain

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/pmkol/multilist/mlog"
	"github.com/pmkol/multilist/pkg/sched"
)

// The task list / run list walkthrough, as a scenario file.
const scenarioYAML = `
log:
  level: error
lists: [task, run]
steps:
  - {op: spawn, list: task, pid: 1, gid: 2}
  - {op: spawn, list: task, pid: 3, gid: 4}
  - {op: spawn, list: task, pid: 5, gid: 6}
  - {op: attach, list: run, from: task, pos: 2}
  - {op: attach, list: run, from: task, pos: 0}
  - {op: attach, list: run, from: task, pos: 1}
  - {op: detach, list: task, pos: 1}
  - {op: spawn, list: task, pid: 7, gid: 8}
  - {op: pop, list: run}
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0644))
	return p
}

func snapshotPIDs(snap sched.Snapshot) map[string][]int {
	out := make(map[string][]int)
	for _, l := range snap.Lists {
		pids := []int{}
		for _, t := range l.Tasks {
			pids = append(pids, t.PID)
		}
		out[l.Name] = pids
	}
	return out
}

func TestLoadConfig(t *testing.T) {
	p := writeFile(t, t.TempDir(), "config.yaml", scenarioYAML+`
tick: {list: run, interval: 20}
api: {http: "127.0.0.1:0"}
`)
	cfg, v, err := loadConfig(p)
	require.NoError(t, err)
	require.Equal(t, p, v.ConfigFileUsed())
	require.Equal(t, []string{"task", "run"}, cfg.Lists)
	require.Len(t, cfg.Steps, 9)
	require.NotNil(t, cfg.Steps[3].Pos)
	require.Equal(t, 2, *cfg.Steps[3].Pos)
	require.Nil(t, cfg.Steps[0].Pos)
	require.Equal(t, "error", cfg.Log.Level)
	require.Equal(t, 20*time.Millisecond, tickInterval(cfg))

	bad := writeFile(t, t.TempDir(), "bad.yaml", "nope: 1\n")
	_, _, err = loadConfig(bad)
	require.Error(t, err)
}

func TestMergeInclude(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "leaf.yaml", "steps:\n  - {op: spawn, list: task, pid: 1}\n")
	writeFile(t, dir, "mid.yaml", "include: ["+filepath.Join(dir, "leaf.yaml")+"]\nsteps:\n  - {op: spawn, list: task, pid: 2}\n")
	top := writeFile(t, dir, "top.yaml", "include: ["+filepath.Join(dir, "mid.yaml")+"]\nsteps:\n  - {op: spawn, list: task, pid: 3}\n")

	cfg, _, err := loadConfig(top)
	require.NoError(t, err)
	require.NoError(t, mergeInclude(cfg, 0, []string{top}))

	var pids []int
	for _, st := range cfg.Steps {
		pids = append(pids, st.PID)
	}
	require.Equal(t, []int{1, 2, 3}, pids)

	loop := writeFile(t, dir, "loop.yaml", "include: ["+filepath.Join(dir, "loop.yaml")+"]\n")
	cfg, _, err = loadConfig(loop)
	require.NoError(t, err)
	require.ErrorContains(t, mergeInclude(cfg, 0, []string{loop}), "maximum include depth")
}

func TestRunScenario(t *testing.T) {
	p := writeFile(t, t.TempDir(), "config.yaml", scenarioYAML)

	out := new(bytes.Buffer)
	require.NoError(t, RunScenario(&serverFlags{c: p}, out))

	var snap sched.Snapshot
	require.NoError(t, yaml.Unmarshal(out.Bytes(), &snap))
	require.Equal(t, map[string][]int{
		"task": {1, 5, 7},
		"run":  {5, 1},
	}, snapshotPIDs(snap))
	require.Empty(t, snap.Orphans)
}

func TestRunSteps_Errors(t *testing.T) {
	s, err := sched.New(sched.Opts{})
	require.NoError(t, err)
	defer s.Close()

	err = runSteps(s, []StepConfig{{Op: "spawn", List: "task", PID: 1}, {Op: "fly"}}, io.Discard, nopLogger())
	require.ErrorContains(t, err, "step #1 (fly)")

	err = runSteps(s, []StepConfig{{Op: "attach", List: "task", PID: 1}}, io.Discard, nopLogger())
	require.ErrorIs(t, err, sched.ErrAlreadyMember)

	require.NoError(t, runSteps(s, []StepConfig{
		{Op: "attach", List: "run", Where: "pid == 1"},
		{Op: "tick", List: "run"},
		{Op: "detach", List: "task", PID: 1},
		{Op: "exit", PID: 1},
	}, io.Discard, nopLogger()))
	require.Equal(t, 0, s.Stats().Live)
}

func TestServer(t *testing.T) {
	cfg := &Config{
		Log:   mlogErrorOnly(),
		Steps: []StepConfig{{Op: "spawn", List: "run", PID: 1}, {Op: "spawn", List: "run", PID: 2}},
		Tick:  TickConfig{List: "run", Interval: 5},
	}
	srv, err := NewServer(cfg)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	srv.httpAPIMux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/lists?list=run&where=pid%3D%3D2", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var snap sched.Snapshot
	require.NoError(t, yaml.Unmarshal(rec.Body.Bytes(), &snap))
	require.Equal(t, map[string][]int{"run": {2}}, snapshotPIDs(snap))

	rec = httptest.NewRecorder()
	srv.httpAPIMux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/lists?list=sleep", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Run() }()
	require.Eventually(t, func() bool { return srv.sched.Stats().Ticks >= 2 }, time.Second, 5*time.Millisecond)

	rec = httptest.NewRecorder()
	srv.httpAPIMux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, strings.Contains(rec.Body.String(), `multilist_list_length{list="run"} 2`))

	srv.Close()
	require.NoError(t, <-errCh)
	require.Equal(t, 0, srv.sched.Stats().Live)
}

func TestServer_SetTickInterval(t *testing.T) {
	srv, err := NewServer(&Config{
		Log:   mlogErrorOnly(),
		Steps: []StepConfig{{Op: "spawn", List: "run", PID: 1}, {Op: "spawn", List: "run", PID: 2}},
		Tick:  TickConfig{List: "run", Interval: 3600000},
	})
	require.NoError(t, err)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Run() }()

	// The pending one hour timer is re-armed, not waited out.
	srv.SetTickInterval(5 * time.Millisecond)
	require.Eventually(t, func() bool { return srv.sched.Stats().Ticks >= 2 }, time.Second, 5*time.Millisecond)

	srv.Close()
	require.NoError(t, <-errCh)
}

func TestWatchConfig(t *testing.T) {
	const cfgYAML = `
log: {level: error}
steps:
  - {op: spawn, list: run, pid: 1}
tick: {list: run, interval: %d}
`
	p := writeFile(t, t.TempDir(), "config.yaml", fmt.Sprintf(cfgYAML, 3600000))
	cfg, v, err := loadConfig(p)
	require.NoError(t, err)
	srv, err := NewServer(cfg)
	require.NoError(t, err)
	watchConfig(srv, v)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Run() }()
	require.Equal(t, uint64(0), srv.sched.Stats().Ticks)

	require.NoError(t, os.WriteFile(p, []byte(fmt.Sprintf(cfgYAML, 5)), 0644))
	require.Eventually(t, func() bool { return srv.sched.Stats().Ticks >= 2 }, 3*time.Second, 5*time.Millisecond)
	require.Equal(t, 5*time.Millisecond, time.Duration(srv.tickInterval.Load()))

	srv.Close()
	require.NoError(t, <-errCh)
}

func TestCloseOnSignal(t *testing.T) {
	newSrv := func() *Server {
		srv, err := NewServer(&Config{Log: mlogErrorOnly(), Tick: TickConfig{List: "run", Interval: 3600000}})
		require.NoError(t, err)
		return srv
	}

	// Run returned by itself: the watcher must not outlive it.
	srv := newSrv()
	done := make(chan struct{})
	exited := make(chan struct{})
	go func() {
		closeOnSignal(srv, make(chan os.Signal), done)
		close(exited)
	}()
	close(done)
	select {
	case <-exited:
	case <-time.After(time.Second):
		t.Fatal("closeOnSignal did not return after done was closed")
	}

	srv = newSrv()
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Run() }()
	sigCh := make(chan os.Signal, 1)
	sigCh <- os.Interrupt
	closeOnSignal(srv, sigCh, make(chan struct{}))
	require.NoError(t, <-errCh)
}

func TestNewServer_BadTickList(t *testing.T) {
	_, err := NewServer(&Config{Log: mlogErrorOnly(), Tick: TickConfig{List: "sleep"}})
	require.Error(t, err)

	srv, err := NewServer(&Config{Log: mlogErrorOnly()})
	require.NoError(t, err)
	require.Error(t, srv.Run())
}

func nopLogger() *zap.Logger {
	return zap.NewNop()
}

func mlogErrorOnly() mlog.LogConfig {
	return mlog.LogConfig{Level: "error"}
}
