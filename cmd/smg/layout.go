package main

import (
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/benbjohnson/smg"
	"github.com/spf13/cobra"
)

func newLayoutCommand(opts *options) *cobra.Command {
	var machine string
	var rejectZeroLength bool

	cmd := &cobra.Command{
		Use:   "layout PROGRAM.yaml [TYPE...]",
		Short: "Print the size, alignment and member offsets of program types",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dopts := smg.DecodeOptions{Machine: machine, RejectZeroLengthArrays: rejectZeroLength}
			prog, err := dopts.ReadFile(args[0])
			if err != nil {
				return err
			}

			names := args[1:]
			if len(names) == 0 {
				names = typeNames(prog)
			}

			w := tabwriter.NewWriter(opts.stdout, 0, 8, 2, ' ', 0)
			for _, name := range names {
				t := prog.LookupType(name)
				if t == nil {
					return fmt.Errorf("unknown type: %q", name)
				}
				if err := writeLayout(w, prog.Machine, name, t); err != nil {
					return err
				}
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&machine, "machine", "", "machine model when the program names none: lp64, ilp32")
	cmd.Flags().BoolVar(&rejectZeroLength, "reject-zero-length-arrays", false, "treat zero-length arrays as errors")
	return cmd
}

// typeNames returns the tagged types and typedefs of prog in sorted order.
func typeNames(prog *smg.Program) []string {
	var a []string
	for name := range prog.Types {
		a = append(a, name)
	}
	for name := range prog.Typedefs {
		a = append(a, name)
	}
	sort.Strings(a)
	return a
}

func writeLayout(w *tabwriter.Writer, m smg.MachineModel, name string, t *smg.Type) error {
	l, err := m.Layout(t)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%s\tsize=%d\talign=%d\n", name, l.Size, l.Align)
	for _, f := range l.Fields {
		field := f.Name
		if field == "" {
			field = "(anonymous)"
		}
		if f.Bitfield {
			fmt.Fprintf(w, "  %s\t%s\toffset=%d\tbits=%d:%d\n", field, f.Type, f.Offset, f.BitOffset, f.BitWidth)
		} else {
			fmt.Fprintf(w, "  %s\t%s\toffset=%d\tsize=%d\n", field, f.Type, f.Offset, f.Size)
		}
	}
	return nil
}
