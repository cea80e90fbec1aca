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

func newAttachCommand(cli *controlClient) *cobra.Command {
	var id, lun int
	var devType, filename string
	var blockSize uint32

	cmd := &cobra.Command{
		Use:   "attach",
		Short: "Attach a device to a target ID and LUN",
		RunE: func(cmd *cobra.Command, args []string) error {
			reply, err := cli.send(executor.Command{
				Operation:  executor.OpAttach,
				ID:         id,
				Lun:        lun,
				DeviceType: devType,
				Filename:   filename,
				BlockSize:  blockSize,
			})
			if err != nil {
				return err
			}
			if !reply.Status {
				return fmt.Errorf("attach failed: %s", reply.Message)
			}
			fmt.Printf("attached %d:%d\n", id, lun)
			return nil
		},
	}
	flags := cmd.Flags()
	flags.IntVar(&id, "id", 0, "target ID")
	flags.IntVar(&lun, "lun", 0, "logical unit number")
	flags.StringVar(&devType, "type", "", "device type (defaults to resolving from the filename extension)")
	flags.StringVar(&filename, "file", "", "backing image file")
	flags.Uint32Var(&blockSize, "block-size", 0, "block size in bytes (defaults to 512)")
	return cmd
}

func newInsertCommand(cli *controlClient) *cobra.Command {
	var id, lun int
	var filename string

	cmd := &cobra.Command{
		Use:   "insert",
		Short: "Insert media into a removable device's empty slot",
		RunE: func(cmd *cobra.Command, args []string) error {
			reply, err := cli.send(executor.Command{
				Operation: executor.OpInsert,
				ID:        id,
				Lun:       lun,
				Filename:  filename,
			})
			if err != nil {
				return err
			}
			if !reply.Status {
				return fmt.Errorf("insert failed: %s", reply.Message)
			}
			fmt.Printf("inserted media into %d:%d\n", id, lun)
			return nil
		},
	}
	flags := cmd.Flags()
	flags.IntVar(&id, "id", 0, "target ID")
	flags.IntVar(&lun, "lun", 0, "logical unit number")
	flags.StringVar(&filename, "file", "", "backing image file")
	return cmd
}
