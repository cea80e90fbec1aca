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
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/s2p-go/s2pd/internal/executor"
)

func newListCommand(cli *controlClient) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List attached devices",
		RunE: func(cmd *cobra.Command, args []string) error {
			reply, err := cli.send(executor.Command{Operation: executor.OpNoOperation})
			if err != nil {
				return err
			}
			if !reply.Status {
				return fmt.Errorf("list failed: %s", reply.Message)
			}
			w := tabwriter.NewWriter(os.Stdout, 8, 1, 3, ' ', 0)
			fmt.Fprintln(w, "ID\tLUN\tTYPE\tVENDOR\tPRODUCT\tFILE\tSIZE")
			for _, d := range reply.Devices {
				fmt.Fprintf(w, "%d\t%d\t%s\t%s\t%s\t%s\t%d\n",
					d.ID, d.Lun, d.Type, d.Vendor, d.Product, d.Filename, uint64(d.BlockSize)*uint64(d.BlockCount))
			}
			return w.Flush()
		},
	}
	return cmd
}
