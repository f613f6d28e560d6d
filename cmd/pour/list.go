package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List packages installed in the prefix",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := a.manager()
			if err != nil {
				return err
			}
			receipts, err := m.Receipts().List()
			if err != nil {
				return err
			}
			if len(receipts) == 0 {
				fmt.Fprintln(a.stdout, "no packages installed")
				return nil
			}
			for _, r := range receipts {
				fmt.Fprintf(a.stdout, "%-20s %-12s %-14s %s\n", r.Name, r.Version, r.Platform, humanize.Time(r.InstalledAt))
			}
			return nil
		},
	}
}
