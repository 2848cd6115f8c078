// Package cli wires configuration, logging and the pipeline stages behind a
// cobra command tree.
package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/lucky845/gtipsync/internal/ui"
)

// Version is stamped by the main package.
var Version = "dev"

type app struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	configPath string
	envFile    string
	logLevel   string
	logFormat  string

	exitCode int
}

// Run executes the command line and returns the process exit status.
func Run(args []string, stdout, stderr io.Writer) int {
	return run(args, os.Stdin, stdout, stderr)
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	a := &app{stdin: stdin, stdout: stdout, stderr: stderr}
	root := a.rootCommand()
	root.SetArgs(args)
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)

	if err := root.Execute(); err != nil {
		var ue *usageError
		if errors.As(err, &ue) {
			_, _ = fmt.Fprintln(stderr, ui.ErrorMsg("%v", ue.err))
			return 2
		}
		_, _ = fmt.Fprintln(stderr, ui.ErrorMsg("%v", err))
		return 1
	}
	return a.exitCode
}

type usageError struct{ err error }

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

func (a *app) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "gtipsync",
		Short: "Find reachable Google Translate addresses and publish them to a gist",
		Long: "gtipsync downloads the GoogleTranslateIpCheck probe for this platform, runs it, " +
			"collects the hosts lines for the translate endpoints and publishes them to a GitHub gist " +
			"that hosts sync tools can subscribe to.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error { return &usageError{err} })

	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "config file (default $GTIPSYNC_CONFIG or <user config dir>/gtipsync/config.yaml)")
	pf.StringVar(&a.envFile, "env-file", "", "dotenv file to load (default ./.env when present)")
	pf.StringVar(&a.logLevel, "log-level", "", "log level: trace, debug, info, warn, error")
	pf.StringVar(&a.logFormat, "log-format", "", "log format: auto, json, console")

	root.AddCommand(a.runCommand(), a.resolveCommand(), a.versionCommand())
	return root
}
