// Command coursepack validates, exports and inspects course documents.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "coursepack",
		Short:         "Build and inspect self-contained course packages",
		SilenceUsage:  true,
	}
	root.AddCommand(newValidateCmd(), newExportCmd(), newInspectCmd(), newSimulateCmd())
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
