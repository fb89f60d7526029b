package main

import (
	"os"

	"github.com/benbjohnson/smg/dot"
	"github.com/spf13/cobra"
)

func newDotCommand(opts *options) *cobra.Command {
	var flags checkFlags
	var output string

	cmd := &cobra.Command{
		Use:   "dot PROGRAM.yaml",
		Short: "Render the memory graph of the first violating state in DOT format",
		Long: `Explores the program and writes the memory graph of the first violating
state. When the program is safe the initial state is written instead.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.load(cmd, &flags, args[0])
			if err != nil {
				return err
			}
			defer a.close()
			defer a.logger.Sync()

			a.explorer.StopOnViolation = true
			result, err := a.explorer.Run(cmd.Context())
			if err != nil {
				return err
			}

			state := a.explorer.RootState()
			if len(result.Violations) > 0 {
				state = result.Violations[0].State
			}

			if output == "" {
				return dot.Write(opts.stdout, state)
			}
			f, err := os.Create(output)
			if err != nil {
				return err
			}
			defer f.Close()
			if err := dot.Write(f, state); err != nil {
				return err
			}
			return f.Close()
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file, stdout by default")
	return cmd
}
