package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/s2p-go/s2pd/internal/statusapi"
)

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the scsictl version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("scsictl %s\n", statusapi.Version)
		},
	}
}
