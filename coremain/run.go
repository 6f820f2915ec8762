package coremain

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-viper/mapstructure/v2"
	"github.com/kardianos/service"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/pmkol/multilist/mlog"
	"github.com/pmkol/multilist/pkg/sched"
)

type serverFlags struct {
	c         string
	dir       string
	cpu       int
	asService bool
}

var rootCmd = &cobra.Command{
	Use:   "multilist",
	Short: "Task bookkeeping on an intrusive multi-list.",
}

func init() {
	rf := new(serverFlags)
	runCmd := &cobra.Command{
		Use:   "run [-c config_file] [-d working_dir]",
		Short: "Run the scenario steps once and print every list.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return RunScenario(rf, cmd.OutOrStdout())
		},
		DisableFlagsInUseLine: true,
		SilenceUsage:          true,
	}
	rootCmd.AddCommand(runCmd)
	fs := runCmd.Flags()
	fs.StringVarP(&rf.c, "config", "c", "", "config file")
	fs.StringVarP(&rf.dir, "dir", "d", "", "working dir")

	sf := new(serverFlags)
	startCmd := &cobra.Command{
		Use:   "start [-c config_file] [-d working_dir]",
		Short: "Run the scenario steps, then serve the api and the tick loop.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if sf.asService {
				svc, err := service.New(&serverService{f: sf}, svcCfg)
				if err != nil {
					return fmt.Errorf("failed to init service, %w", err)
				}
				return svc.Run()
			}
			return StartServer(sf)
		},
		DisableFlagsInUseLine: true,
		SilenceUsage:          true,
	}
	rootCmd.AddCommand(startCmd)
	fs = startCmd.Flags()
	fs.StringVarP(&sf.c, "config", "c", "", "config file")
	fs.StringVarP(&sf.dir, "dir", "d", "", "working dir")
	fs.IntVar(&sf.cpu, "cpu", 0, "set runtime.GOMAXPROCS")
	fs.BoolVar(&sf.asService, "as-service", false, "start as a service")
	fs.MarkHidden("as-service")

	serviceCmd := &cobra.Command{
		Use:   "service",
		Short: "Manage multilist as a system service.",
	}
	serviceCmd.PersistentPreRunE = initService
	serviceCmd.AddCommand(
		newSvcInstallCmd(),
		newSvcUninstallCmd(),
		newSvcStartCmd(),
		newSvcStopCmd(),
		newSvcRestartCmd(),
		newSvcStatusCmd(),
	)
	rootCmd.AddCommand(serviceCmd)
}

func Run() error {
	return rootCmd.Execute()
}

// RunScenario loads the config, runs its steps and writes the final lists to out.
func RunScenario(sf *serverFlags, out io.Writer) error {
	cfg, _, err := prepare(sf)
	if err != nil {
		return err
	}
	lg, closeLog, err := mlog.NewLogger(&cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to init logger: %w", err)
	}
	defer closeLog()

	s, err := newScheduler(cfg, lg)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := runSteps(s, cfg.Steps, out, lg); err != nil {
		return err
	}
	return dump(out, s.Snapshot())
}

func StartServer(sf *serverFlags) error {
	if sf.cpu > 0 {
		runtime.GOMAXPROCS(sf.cpu)
	}

	srv, v, err := prepareServer(sf)
	if err != nil {
		return err
	}

	watchConfig(srv, v)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	done := make(chan struct{})
	defer close(done)
	go closeOnSignal(srv, sigCh, done)

	if err := srv.Run(); err != nil {
		return fmt.Errorf("multilist exited, %w", err)
	}
	return nil
}

// closeOnSignal closes srv when a signal arrives. It returns without
// closing once done is closed.
func closeOnSignal(srv *Server, sigCh <-chan os.Signal, done <-chan struct{}) {
	select {
	case sig := <-sigCh:
		mlog.L().Info("exiting", zap.Stringer("signal", sig))
		srv.Close()
	case <-done:
	}
}

// watchConfig applies the tick interval of the config file each time
// the file is rewritten.
func watchConfig(srv *Server, v *viper.Viper) {
	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		cfg, err := decodeConfig(v)
		if err != nil {
			mlog.L().Warn("failed to reload config", zap.String("file", e.Name), zap.Error(err))
			return
		}
		srv.SetTickInterval(tickInterval(cfg))
		mlog.L().Info("config reloaded", zap.String("file", e.Name), zap.Duration("tick_interval", tickInterval(cfg)))
	})
	v.WatchConfig()
}

func prepareServer(sf *serverFlags) (*Server, *viper.Viper, error) {
	cfg, v, err := prepare(sf)
	if err != nil {
		return nil, nil, err
	}
	srv, err := NewServer(cfg)
	if err != nil {
		return nil, nil, err
	}
	return srv, v, nil
}

// prepare changes the working dir and loads the config with its includes.
func prepare(sf *serverFlags) (*Config, *viper.Viper, error) {
	if len(sf.dir) > 0 {
		err := os.Chdir(sf.dir)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to change the current working directory, %w", err)
		}
		mlog.L().Info("working directory changed", zap.String("path", sf.dir))
	}

	cfg, v, err := loadConfig(sf.c)
	if err != nil {
		return nil, nil, fmt.Errorf("fail to load config, %w", err)
	}

	if err := mergeInclude(cfg, 0, []string{v.ConfigFileUsed()}); err != nil {
		return nil, nil, fmt.Errorf("failed to load sub config file, %w", err)
	}
	return cfg, v, nil
}

func newScheduler(cfg *Config, lg *zap.Logger) (*sched.Scheduler, error) {
	s, err := sched.New(sched.Opts{
		Lists:       cfg.Lists,
		HistorySize: cfg.HistorySize,
		Logger:      lg,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to init scheduler, %w", err)
	}
	return s, nil
}

func tickInterval(cfg *Config) time.Duration {
	ms := cfg.Tick.Interval
	if ms <= 0 {
		ms = 1000
	}
	return time.Duration(ms) * time.Millisecond
}

// loadConfig load a config from a file. If filePath is empty, it will
// automatically search and load a file which name start with "config".
func loadConfig(filePath string) (*Config, *viper.Viper, error) {
	v := viper.New()

	if len(filePath) > 0 {
		v.SetConfigFile(filePath)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg, err := decodeConfig(v)
	if err != nil {
		return nil, nil, err
	}
	return cfg, v, nil
}

func decodeConfig(v *viper.Viper) (*Config, error) {
	decoderOpt := func(cfg *mapstructure.DecoderConfig) {
		cfg.ErrorUnused = true
		cfg.TagName = "yaml"
		cfg.WeaklyTypedInput = true
	}

	cfg := new(Config)
	if err := v.Unmarshal(cfg, decoderOpt); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return cfg, nil
}

// mergeInclude prepends the steps of included files, depth first. Lists
// and other scalar settings of included files are ignored.
func mergeInclude(cfg *Config, depth int, paths []string) error {
	depth++
	if depth > 8 {
		return fmt.Errorf("maximum include depth reached, include path is %s", strings.Join(paths, " -> "))
	}

	var included []StepConfig
	for _, subCfgFile := range cfg.Include {
		subPaths := append(paths, subCfgFile)
		mlog.L().Info("reading sub config", zap.String("file", subCfgFile))
		subCfg, _, err := loadConfig(subCfgFile)
		if err != nil {
			return fmt.Errorf("failed to load sub config, %w", err)
		}
		if err := mergeInclude(subCfg, depth, subPaths); err != nil {
			return err
		}
		included = append(included, subCfg.Steps...)
	}

	cfg.Steps = append(included, cfg.Steps...)
	return nil
}
