package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ZebulonRouseFrantzich/pour/internal/installer"
	"github.com/ZebulonRouseFrantzich/pour/internal/platform"
)

// targetKey is the --platform override, or the probed host when empty.
func targetKey(ctx context.Context, m *installer.Manager, override string) (platform.Key, error) {
	if override == "" {
		return m.HostKey(ctx)
	}
	key, err := platform.ParseKey(override)
	if err != nil {
		return platform.Key{}, &usageError{err: fmt.Errorf("--platform: %w", err)}
	}
	return key, nil
}

func newResolveCmd(a *app) *cobra.Command {
	var platformFlag string

	cmd := &cobra.Command{
		Use:   "resolve <package>",
		Short: "Show which artifact would be installed, without downloading it",
		Example: `
# The artifact for this host
pour resolve changie

# The artifact an arm64 Mac would get
pour resolve changie --platform darwin/arm64`,
		Args: usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := a.manager()
			if err != nil {
				return err
			}
			key, err := targetKey(cmd.Context(), m, platformFlag)
			if err != nil {
				return err
			}

			f, art, err := m.Resolve(cmd.Context(), args[0], key)
			if err != nil {
				return err
			}

			fmt.Fprintf(a.stdout, "%s %s for %s\n", color.CyanString(f.Name), f.Version, key)
			fmt.Fprintf(a.stdout, "  url:       %s\n", art.URL)
			fmt.Fprintf(a.stdout, "  checksum:  %s\n", art.Checksum)
			if art.SignatureURL != "" {
				fmt.Fprintf(a.stdout, "  signature: %s\n", art.SignatureURL)
			}
			for _, act := range art.Install {
				fmt.Fprintf(a.stdout, "  install:   %s\n", act)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&platformFlag, "platform", "", "resolve for os/arch instead of this host")
	return cmd
}

func newInfoCmd(a *app) *cobra.Command {
	var platformFlag string

	cmd := &cobra.Command{
		Use:   "info <package>",
		Short: "Show formula metadata and its platform table",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := a.manager()
			if err != nil {
				return err
			}
			f, err := m.Registry().Load(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			// an undetectable host only loses the marker
			key, keyErr := targetKey(cmd.Context(), m, platformFlag)
			if keyErr != nil && platformFlag != "" {
				return keyErr
			}

			fmt.Fprintf(a.stdout, "%s %s\n", color.CyanString(f.Name), f.Version)
			if f.Desc != "" {
				fmt.Fprintln(a.stdout, f.Desc)
			}
			if f.Homepage != "" {
				fmt.Fprintf(a.stdout, "homepage: %s\n", f.Homepage)
			}
			if f.License != "" {
				fmt.Fprintf(a.stdout, "license:  %s\n", f.License)
			}
			if f.Source != "" {
				fmt.Fprintf(a.stdout, "formula:  %s\n", f.Source)
			}

			fmt.Fprintln(a.stdout, "platforms:")
			for _, k := range f.Catalog.Keys() {
				art, _ := f.Catalog.Lookup(k)
				marker := " "
				if keyErr == nil && k == key {
					marker = color.GreenString("*")
				}
				fmt.Fprintf(a.stdout, "  %s %-14s %s\n", marker, k, strings.TrimSpace(art.URL))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&platformFlag, "platform", "", "mark os/arch instead of this host")
	return cmd
}
