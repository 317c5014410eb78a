package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mind-engage/coursepack/internal/content"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <document>...",
		Short: "Check course documents for authoring mistakes",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			failed := 0
			for _, p := range args {
				doc, err := content.Load(p)
				if err == nil {
					err = content.Validate(doc)
				}
				if err != nil {
					failed++
					fmt.Fprintf(out, "FAIL %s\n  %v\n", p, err)
					continue
				}
				fmt.Fprintf(out, "ok   %s\n", p)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d documents invalid", failed, len(args))
			}
			return nil
		},
	}
}
