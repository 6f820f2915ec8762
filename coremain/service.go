package coremain

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/kardianos/service"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pmkol/multilist/mlog"
)

type serverService struct {
	f   *serverFlags
	srv *Server
}

func (ss *serverService) Start(s service.Service) error {
	mlog.L().Info("starting service", zap.String("platform", s.Platform()))
	srv, _, err := prepareServer(ss.f)
	if err != nil {
		return err
	}
	ss.srv = srv
	go func() {
		if err := srv.Run(); err != nil {
			mlog.L().Error("server exited", zap.Error(err))
			os.Exit(1)
		}
	}()
	return nil
}

func (ss *serverService) Stop(s service.Service) error {
	mlog.L().Info("service is shutting down")
	if ss.srv != nil {
		ss.srv.Close()
	}
	return nil
}

var (
	svcCfg = &service.Config{
		Name:        "multilist",
		DisplayName: "multilist",
		Description: "Task bookkeeping on an intrusive multi-list.",
	}
	svc service.Service
)

func initService(_ *cobra.Command, _ []string) error {
	s, err := service.New(&serverService{}, svcCfg)
	if err != nil {
		return fmt.Errorf("cannot init service, %w", err)
	}
	svc = s
	return nil
}

func newSvcInstallCmd() *cobra.Command {
	sf := new(serverFlags)
	c := &cobra.Command{
		Use:   "install [-d working_dir] [-c config_file]",
		Short: "Install multilist as a system service.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(sf.dir) == 0 {
				wd, err := os.Getwd()
				if err != nil {
					return fmt.Errorf("failed to get current working directory, %w", err)
				}
				sf.dir = wd
			} else if !filepath.IsAbs(sf.dir) {
				abs, err := filepath.Abs(sf.dir)
				if err != nil {
					return fmt.Errorf("failed to resolve working directory, %w", err)
				}
				sf.dir = abs
			}

			svcCfg.Arguments = []string{"start", "--as-service", "-d", sf.dir}
			if len(sf.c) > 0 {
				svcCfg.Arguments = append(svcCfg.Arguments, "-c", sf.c)
			}
			s, err := service.New(&serverService{f: sf}, svcCfg)
			if err != nil {
				return fmt.Errorf("cannot init service, %w", err)
			}
			return s.Install()
		},
		SilenceUsage: true,
	}
	c.Flags().StringVarP(&sf.dir, "dir", "d", "", "working dir")
	c.Flags().StringVarP(&sf.c, "config", "c", "", "config file")
	return c
}

func newSvcControlCmd(action, short string) *cobra.Command {
	return &cobra.Command{
		Use:   action,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			return service.Control(svc, action)
		},
		SilenceUsage: true,
	}
}

func newSvcUninstallCmd() *cobra.Command {
	return newSvcControlCmd("uninstall", "Uninstall multilist from system service.")
}

func newSvcStartCmd() *cobra.Command {
	return newSvcControlCmd("start", "Start multilist system service.")
}

func newSvcStopCmd() *cobra.Command {
	return newSvcControlCmd("stop", "Stop multilist system service.")
}

func newSvcRestartCmd() *cobra.Command {
	return newSvcControlCmd("restart", "Restart multilist system service.")
}

func newSvcStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Status of multilist system service.",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := svc.Status()
			if err != nil {
				if errors.Is(err, service.ErrNotInstalled) {
					fmt.Fprintln(cmd.OutOrStdout(), "not installed")
					return nil
				}
				return fmt.Errorf("cannot get service status, %w", err)
			}
			var out string
			switch s {
			case service.StatusRunning:
				out = "running"
			case service.StatusStopped:
				out = "stopped"
			default:
				out = "unknown"
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
		SilenceUsage: true,
	}
}
