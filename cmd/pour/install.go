package main

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ZebulonRouseFrantzich/pour/internal/installer"
)

func newInstallCmd(a *app) *cobra.Command {
	var opts installer.Options

	cmd := &cobra.Command{
		Use:     "install <package>...",
		Short:   "Download, verify and install packages for this host",
		Long:    installLongDescription,
		Example: installExample,
		Args:    usageArgs(cobra.MinimumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := a.manager()
			if err != nil {
				return err
			}

			results, err := m.InstallAll(cmd.Context(), args, opts)
			for _, res := range results {
				if res != nil {
					printResult(a, res)
				}
			}
			return err
		},
	}

	cmd.Flags().BoolVarP(&opts.Force, "force", "f", false, "reinstall even if the installed receipt is current")
	cmd.Flags().BoolVar(&opts.SkipSignature, "skip-signature", false, "do not check detached signatures")
	cmd.Flags().IntP("jobs", "j", installer.DefaultJobs, "packages to install in parallel")
	_ = viper.BindPFlag(JobsKey, cmd.Flags().Lookup("jobs"))

	return cmd
}

func printResult(a *app, res *installer.Result) {
	if res.Skipped {
		fmt.Fprintf(a.stdout, "%s %s %s already installed\n", color.YellowString("="), res.Package, res.Version)
		return
	}

	signed := ""
	if res.Signed {
		signed = ", signature ok"
	}
	fmt.Fprintf(a.stdout, "%s %s %s (%s, %s%s) in %s\n",
		color.GreenString("✓"), res.Package, res.Version, res.Key,
		humanize.Bytes(uint64(res.Size)), signed, res.Duration.Round(time.Millisecond))
	for _, f := range res.Files {
		fmt.Fprintf(a.stdout, "    %s\n", f)
	}
}

const (
	installLongDescription = `Install resolves each package's artifact for the probed host platform,
downloads it (retrying transient network errors), verifies its checksum and
optional signature, extracts it and runs its install steps into the prefix.

Packages are installed in parallel and independently; when several fail, the
exit code is that of the first failing package in argument order. The host
platform is always probed; use 'pour resolve --platform' to inspect other
platforms.`

	installExample = `
# Install changie into ~/.pour
pour install changie

# Install into a custom prefix, two packages at a time
pour install --prefix /opt/tools -j 2 changie gh`
)
