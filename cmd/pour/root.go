package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ZebulonRouseFrantzich/pour/internal/fetch"
	"github.com/ZebulonRouseFrantzich/pour/internal/installer"
	"github.com/ZebulonRouseFrantzich/pour/internal/logging"
	"github.com/ZebulonRouseFrantzich/pour/internal/platform"
)

const (
	PrefixKey     = "prefix"
	FormulaDirKey = "formula_dir"
	CacheDirKey   = "cache_dir"
	JobsKey       = "jobs"
	RetriesKey    = "retries"
)

// newDetector probes the host. Tests replace it.
var newDetector = platform.NewDetector

// app is the state shared by every subcommand of one invocation.
type app struct {
	cfgFile string
	stdout  io.Writer
	stderr  io.Writer
	log     logging.Logger
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	a := &app{stdout: stdout, stderr: stderr, log: logging.Nop()}

	rootCmd := &cobra.Command{
		Use:     "pour",
		Short:   "Install prebuilt release artifacts from formula catalogs",
		Long:    rootLongDescription,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			configPath, configErr := initConfig(a.cfgFile)
			a.log = logging.Init(a.stderr)
			if viper.GetBool(logging.NoColorKey) {
				color.NoColor = true
			}
			if configErr != nil { // handle error after logging is initialized
				return configErr
			}
			if configPath != "" {
				log.Debug().Msgf("using config file: %s", configPath)
			}
			return nil
		},
	}
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)
	rootCmd.SetVersionTemplate("pour {{.Version}}\n")

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "config file (default is .pour.yaml in the current dir, $HOME or $XDG_CONFIG_HOME/pour)")

	flags.String("log-level", "warn", "log level: debug, info, warn, error")
	_ = viper.BindPFlag(logging.LevelKey, flags.Lookup("log-level"))

	flags.String("log-format", "console", "log format: console, json")
	_ = viper.BindPFlag(logging.FormatKey, flags.Lookup("log-format"))

	flags.Bool("no-color", false, "disable color output")
	_ = viper.BindPFlag(logging.NoColorKey, flags.Lookup("no-color"))

	flags.String("prefix", "", "install prefix (default $HOME/.pour)")
	_ = viper.BindPFlag(PrefixKey, flags.Lookup("prefix"))

	flags.String("formula-dir", "", "directory of formula files (default $XDG_CONFIG_HOME/pour/formulas)")
	_ = viper.BindPFlag(FormulaDirKey, flags.Lookup("formula-dir"))

	flags.String("cache-dir", "", "download cache (default $XDG_CACHE_HOME/pour)")
	_ = viper.BindPFlag(CacheDirKey, flags.Lookup("cache-dir"))

	flags.Uint("retries", fetch.DefaultRetries, "download retries after the first attempt")
	_ = viper.BindPFlag(RetriesKey, flags.Lookup("retries"))

	viper.SetEnvPrefix("POUR")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv() // read in environment variables that match

	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return &usageError{err: err}
	})
	rootCmd.SilenceUsage = true
	rootCmd.SilenceErrors = true

	rootCmd.AddCommand(
		newInstallCmd(a),
		newResolveCmd(a),
		newInfoCmd(a),
		newListCmd(a),
		newTapCmd(a),
		newUpdateCmd(a),
	)
	return rootCmd
}

// run executes the CLI and returns the process exit code.
func run(args []string, stdout, stderr io.Writer) int {
	viper.Reset()
	rootCmd := newRootCmd(stdout, stderr)
	rootCmd.SetArgs(args)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	if err != nil && strings.HasPrefix(err.Error(), "unknown command") {
		err = &usageError{err: err}
	}
	if err != nil {
		printError(stderr, err)
	}
	return exitCode(err)
}

func printError(w io.Writer, err error) {
	red := color.New(color.FgRed, color.Bold)
	errs := firstBatch(err)
	if len(errs) == 0 {
		errs = []error{err}
	}
	for _, e := range errs {
		red.Fprint(w, "error: ")
		fmt.Fprintln(w, e)
	}
}

// usageArgs turns an argument validation failure into a usage error.
func usageArgs(check cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := check(cmd, args); err != nil {
			return &usageError{err: err}
		}
		return nil
	}
}

func initConfig(cfgFile string) (string, error) {
	// reads in config file and ENV variables if set.
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		// search order: current dir, $HOME, XDG config
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
		}

		config, err := os.UserConfigDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(config, "pour"))
		}

		viper.SetConfigType("yaml")
		viper.SetConfigName(".pour")
	}

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err != nil {
		var notFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &notFoundError) {
			return "", err
		}
	} else {
		return viper.ConfigFileUsed(), nil
	}

	return "", nil
}

// stringOr returns the viper value for key, or def when unset.
func stringOr(key string, def func() (string, error)) (string, error) {
	if v := viper.GetString(key); v != "" {
		return v, nil
	}
	return def()
}

func formulaDir() (string, error) {
	dir, err := stringOr(FormulaDirKey, func() (string, error) {
		dir, err := os.UserConfigDir()
		return filepath.Join(dir, "pour", "formulas"), err
	})
	if err != nil {
		return "", fmt.Errorf("resolve formula dir: %w", err)
	}
	return dir, nil
}

func (a *app) manager() (*installer.Manager, error) {
	prefix, err := stringOr(PrefixKey, func() (string, error) {
		home, err := os.UserHomeDir()
		return filepath.Join(home, ".pour"), err
	})
	if err != nil {
		return nil, fmt.Errorf("resolve prefix: %w", err)
	}

	formulas, err := formulaDir()
	if err != nil {
		return nil, err
	}

	cacheDir, err := stringOr(CacheDirKey, func() (string, error) {
		dir, err := os.UserCacheDir()
		return filepath.Join(dir, "pour"), err
	})
	if err != nil {
		return nil, fmt.Errorf("resolve cache dir: %w", err)
	}

	downloader := fetch.NewDownloader(cacheDir,
		fetch.WithRetries(viper.GetUint(RetriesKey)),
		fetch.WithLogger(a.log),
	)

	return installer.NewManager(installer.Config{
		Prefix:     prefix,
		FormulaDir: formulas,
		Jobs:       viper.GetInt(JobsKey),
		Detector:   newDetector(),
		Fetcher:    downloader,
		Logger:     a.log,
	})
}

const rootLongDescription = `pour installs prebuilt release artifacts described by formula files.

A formula lists one artifact per platform (operating system and CPU
architecture) with its download URL, checksum and install steps. pour probes
the host, picks the matching artifact, verifies the download and copies the
listed files into the prefix.

Exit codes:
  0  success
  1  other failure
  2  usage error
  3  no artifact for this platform
  4  checksum or signature mismatch
  5  an install step failed`
