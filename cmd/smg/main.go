package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// Exit codes for analysis verdicts.
const (
	ExitUnsafe  = 1
	ExitUnknown = 2
	ExitError   = 3
)

func main() {
	code, err := run(context.Background(), os.Args[1:], os.Stdout, os.Stderr)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
	os.Exit(code)
}

// run executes the command line and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) (int, error) {
	root := NewRootCommand(stdout, stderr)
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)

	var verdict *verdictError
	switch {
	case err == nil:
		return 0, nil
	case errors.As(err, &verdict):
		return verdict.code, nil
	default:
		return ExitError, err
	}
}

// verdictError carries a non-zero exit code for an unsafe or unknown result.
type verdictError struct {
	code int
}

func (e *verdictError) Error() string { return fmt.Sprintf("exit status %d", e.code) }

// options holds flags shared by all subcommands.
type options struct {
	stdout, stderr io.Writer

	configPath string
	verbose    bool
}

// logger returns a development logger when verbose, otherwise a nop logger.
func (o *options) logger() (*zap.Logger, error) {
	if !o.verbose {
		return zap.NewNop(), nil
	}
	return zap.NewDevelopment()
}

// NewRootCommand returns the "smg" command and its subcommands.
func NewRootCommand(stdout, stderr io.Writer) *cobra.Command {
	opts := &options{stdout: stdout, stderr: stderr}

	cmd := &cobra.Command{
		Use:           "smg",
		Short:         "smg - symbolic memory graph analysis of C-like heap programs",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "analysis configuration file")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging")

	cmd.AddCommand(newCheckCommand(opts))
	cmd.AddCommand(newLayoutCommand(opts))
	cmd.AddCommand(newDotCommand(opts))
	return cmd
}
