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
	"strings"

	"github.com/spf13/cobra"

	"github.com/s2p-go/s2pd/internal/daemon"
)

// NewControlCommand builds the scsictl root command, the control-channel
// counterpart to NewDaemonCommand.
func NewControlCommand() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "scsictl",
		Short: "Control a running scsid daemon over its binary control channel",
	}
	cmd.PersistentFlags().StringVar(&addr, "addr", fmt.Sprintf("127.0.0.1:%d", daemon.DefaultControlPort), "daemon control-channel address")

	cli := newControlClient("")
	cmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		cli.addr = addr
	}
	cmd.AddCommand(
		newAttachCommand(cli),
		newDetachCommand(cli),
		newDetachAllCommand(cli),
		newInsertCommand(cli),
		newEjectCommand(cli),
		newStartCommand(cli),
		newStopCommand(cli),
		newProtectCommand(cli),
		newUnprotectCommand(cli),
		newListCommand(cli),
		newVersionCommand(),
	)
	return cmd
}

// NoArgs validates args and returns an error if there are any args, matching
// cobra's convention for leaf commands that take none.
func NoArgs(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return nil
	}
	if cmd.HasSubCommands() {
		return fmt.Errorf("\n" + strings.TrimRight(cmd.UsageString(), "\n"))
	}
	return fmt.Errorf("%q accepts no argument(s)", cmd.CommandPath())
}
