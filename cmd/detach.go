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

	"github.com/spf13/cobra"

	"github.com/s2p-go/s2pd/internal/executor"
)

// newSimpleDeviceCommand builds the shared shape of every device lifecycle
// verb that takes nothing but --id/--lun: detach, eject, start, stop,
// protect, unprotect.
func newSimpleDeviceCommand(cli *controlClient, use, short string, op executor.Operation) *cobra.Command {
	var id, lun int
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			reply, err := cli.send(executor.Command{Operation: op, ID: id, Lun: lun})
			if err != nil {
				return err
			}
			if !reply.Status {
				return fmt.Errorf("%s failed: %s", use, reply.Message)
			}
			fmt.Printf("%s %d:%d\n", use, id, lun)
			return nil
		},
	}
	flags := cmd.Flags()
	flags.IntVar(&id, "id", 0, "target ID")
	flags.IntVar(&lun, "lun", 0, "logical unit number")
	return cmd
}

func newDetachCommand(cli *controlClient) *cobra.Command {
	return newSimpleDeviceCommand(cli, "detach", "Detach a device from a target ID and LUN", executor.OpDetach)
}

func newEjectCommand(cli *controlClient) *cobra.Command {
	return newSimpleDeviceCommand(cli, "eject", "Eject media from a removable device", executor.OpEject)
}

func newStartCommand(cli *controlClient) *cobra.Command {
	return newSimpleDeviceCommand(cli, "start", "Start a stopped unit", executor.OpStart)
}

func newStopCommand(cli *controlClient) *cobra.Command {
	return newSimpleDeviceCommand(cli, "stop", "Stop a unit", executor.OpStop)
}

func newProtectCommand(cli *controlClient) *cobra.Command {
	return newSimpleDeviceCommand(cli, "protect", "Write-protect a device", executor.OpProtect)
}

func newUnprotectCommand(cli *controlClient) *cobra.Command {
	return newSimpleDeviceCommand(cli, "unprotect", "Clear a device's write-protect flag", executor.OpUnprotect)
}

func newDetachAllCommand(cli *controlClient) *cobra.Command {
	return &cobra.Command{
		Use:   "detach-all",
		Short: "Detach every device from every target",
		RunE: func(cmd *cobra.Command, args []string) error {
			reply, err := cli.send(executor.Command{Operation: executor.OpDetachAll})
			if err != nil {
				return err
			}
			if !reply.Status {
				return fmt.Errorf("detach-all failed: %s", reply.Message)
			}
			fmt.Println("detached all devices")
			return nil
		},
	}
}
