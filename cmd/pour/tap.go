package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ZebulonRouseFrantzich/pour/internal/git"
)

// newTap is replaced in tests.
var newTap = func(dir string) git.Tap { return git.NewClient(dir) }

func newTapCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "tap <git-url>",
		Short: "Clone a formula repository into the formula directory",
		Long: `tap clones a git repository of formula files into the formula directory.
The directory must be missing or empty. Use "pour update" to pull new
formula versions afterwards.`,
		Example: `pour tap https://github.com/example/pour-formulas.git`,
		Args:    usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := formulaDir()
			if err != nil {
				return err
			}
			tap := newTap(dir)
			a.log.Info("cloning tap", "url", args[0], "dir", dir)
			if err := tap.Clone(cmd.Context(), args[0]); err != nil {
				return err
			}
			head, err := tap.HeadCommit(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "%s tapped %s at %s\n", color.GreenString("✓"), args[0], shortHash(head))
			return nil
		},
	}
}

func newUpdateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "update",
		Short: "Pull the latest formulas from the tap",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := formulaDir()
			if err != nil {
				return err
			}
			tap := newTap(dir)
			ok, err := tap.IsGitRepo(cmd.Context())
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("formula directory %s is not a tap; run \"pour tap <git-url>\" first", dir)
			}

			updated, err := tap.Pull(cmd.Context())
			if err != nil {
				return err
			}
			head, err := tap.HeadCommit(cmd.Context())
			if err != nil {
				return err
			}
			if !updated {
				fmt.Fprintf(a.stdout, "%s formulas already up to date (%s)\n", color.YellowString("="), shortHash(head))
				return nil
			}
			fmt.Fprintf(a.stdout, "%s formulas updated to %s\n", color.GreenString("✓"), shortHash(head))
			return nil
		},
	}
}

func shortHash(h string) string {
	if len(h) > 7 {
		return h[:7]
	}
	return h
}
