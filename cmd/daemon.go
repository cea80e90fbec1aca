/*
Copyright 2016 The GoStor Authors All rights reserved.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/s2p-go/s2pd/internal/bus"
	"github.com/s2p-go/s2pd/internal/controller"
	"github.com/s2p-go/s2pd/internal/daemon"
	"github.com/s2p-go/s2pd/internal/executor"
	"github.com/s2p-go/s2pd/internal/propsconfig"
	"github.com/s2p-go/s2pd/internal/statusapi"
)

// NewDaemonCommand builds the scsid root command.
func NewDaemonCommand() *cobra.Command {
	var controlAddr string
	var statusAddr string
	var configPath string
	var logLevel string

	cmd := &cobra.Command{
		Use:   "scsid",
		Short: "Run the parallel SCSI target daemon",
		Long:  `scsid accepts control-channel connections, attaches devices, and drives the SCSI bus loop.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(controlAddr, statusAddr, configPath, logLevel)
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&controlAddr, "control-addr", fmt.Sprintf(":%d", daemon.DefaultControlPort), "control-channel listen address")
	flags.StringVar(&statusAddr, "status-addr", ":6869", "read-only status API listen address")
	flags.StringVar(&configPath, "config", "", "path to the properties file (defaults to the config dir)")
	flags.StringVar(&logLevel, "log", "info", "log level")
	return cmd
}

func runDaemon(controlAddr, statusAddr, configPath, logLevel string) error {
	logger := log.New()
	level, err := log.ParseLevel(logLevel)
	if err != nil {
		return fmt.Errorf("unknown log level: %v", logLevel)
	}
	logger.SetLevel(level)

	if configPath == "" {
		dir, err := propsconfig.ConfigDir()
		if err != nil {
			return err
		}
		configPath = dir + "/" + propsconfig.PropertiesFileName
	}

	factory := controller.NewFactory()
	extMap := extmapFor(configPath, logger)

	exec := executor.New(factory, daemon.NewDeviceFactory(extMap))
	applyStartupConfig(exec, factory, configPath, logger)

	d := daemon.New(exec, factory, bus.NewLoopback(), logger)

	status := statusapi.New(exec, logger)
	go func() {
		if err := status.ListenAndServe(statusAddr); err != nil {
			logger.WithError(err).Error("status API exited")
		}
	}()

	stopAll := make(chan os.Signal, 1)
	signal.Notify(stopAll, syscall.SIGINT, syscall.SIGTERM)
	daemonErr := make(chan error, 1)
	go func() { daemonErr <- d.ListenAndServe(controlAddr) }()

	select {
	case err := <-daemonErr:
		if err != nil {
			logger.WithError(err).Warn("daemon exited with error")
			return err
		}
	case <-stopAll:
		d.Shutdown()
	}
	return nil
}
