package main

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/benbjohnson/smg"
	"github.com/davecgh/go-spew/spew"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// checkFlags are the analysis settings that override the config file.
type checkFlags struct {
	entry           string
	search          string
	subsumption     string
	solver          string
	maxStates       int
	maxPathLength   int
	seed            int64
	stopOnViolation bool
	mallocMayFail   bool
	unknownFuncs    string
	mainLeaks       bool
}

func (f *checkFlags) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVar(&f.entry, "entry", "main", "entry function")
	flags.StringVar(&f.search, "search", "dfs", "search strategy: dfs, bfs, random, random-path, multi")
	flags.StringVar(&f.subsumption, "subsumption", "exact", "subsumption policy: exact, none")
	flags.StringVar(&f.solver, "solver", "none", "constraint solver: none, z3")
	flags.IntVar(&f.maxStates, "max-states", 0, "state budget, 0 for unlimited")
	flags.IntVar(&f.maxPathLength, "max-path-length", 0, "path length budget, 0 for unlimited")
	flags.Int64Var(&f.seed, "seed", 0, "random seed for randomized searchers")
	flags.BoolVar(&f.stopOnViolation, "stop-on-violation", false, "stop at the first violation")
	flags.BoolVar(&f.mallocMayFail, "malloc-may-fail", false, "allocations may return NULL")
	flags.StringVar(&f.unknownFuncs, "unknown-functions", "strict", "unknown function policy: strict, assume-safe")
	flags.BoolVar(&f.mainLeaks, "non-freed-in-main-is-leak", false, "report memory still referenced by main at exit")
}

// apply overrides config values with flags set on the command line.
func (f *checkFlags) apply(cmd *cobra.Command, config *smg.Config) {
	changed := cmd.Flags().Changed
	if changed("entry") {
		config.Entry = f.entry
	}
	if changed("search") {
		config.Explorer.Search = f.search
	}
	if changed("subsumption") {
		config.Explorer.Subsumption = f.subsumption
	}
	if changed("solver") {
		config.Solver = f.solver
	}
	if changed("max-states") {
		config.Explorer.MaxStates = f.maxStates
	}
	if changed("max-path-length") {
		config.Explorer.MaxPathLength = f.maxPathLength
	}
	if changed("seed") {
		config.Explorer.Seed = f.seed
	}
	if changed("stop-on-violation") {
		config.Explorer.StopOnViolation = f.stopOnViolation
	}
	if changed("malloc-may-fail") {
		config.Memory.MallocMayFail = f.mallocMayFail
	}
	if changed("unknown-functions") {
		config.Memory.UnknownFunctions = f.unknownFuncs
	}
	if changed("non-freed-in-main-is-leak") {
		config.Memory.NonFreedInMainIsLeak = f.mainLeaks
	}
}

// analysis is a loaded program with its configured explorer.
type analysis struct {
	path     string
	prog     *smg.Program
	explorer *smg.Explorer
	logger   *zap.Logger
	close    func()
}

// load reads the config and program and builds the explorer.
func (o *options) load(cmd *cobra.Command, flags *checkFlags, path string) (*analysis, error) {
	config := smg.DefaultConfig()
	if o.configPath != "" {
		var err error
		if config, err = smg.ReadConfigFile(o.configPath); err != nil {
			return nil, err
		}
	}
	flags.apply(cmd, &config)
	if err := config.Validate(); err != nil {
		return nil, err
	}

	logger, err := o.logger()
	if err != nil {
		return nil, err
	}

	prog, err := config.DecodeOptions().ReadFile(path)
	if err != nil {
		return nil, err
	}

	e, err := config.NewExplorer(prog)
	if err != nil {
		return nil, err
	}
	solver, closeSolver, err := newSolver(config.Solver)
	if err != nil {
		return nil, err
	}
	e.Solver = solver
	e.Logger = logger
	e.Interpreter.Logger = logger
	e.Interpreter.Checker.Logger = logger

	return &analysis{path: path, prog: prog, explorer: e, logger: logger, close: closeSolver}, nil
}

func newCheckCommand(opts *options) *cobra.Command {
	var flags checkFlags
	var format, dumpPath string

	cmd := &cobra.Command{
		Use:   "check PROGRAM.yaml",
		Short: "Explore a program and report memory-safety violations",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "text" && format != "yaml" {
				return fmt.Errorf("unknown format: %q", format)
			}

			a, err := opts.load(cmd, &flags, args[0])
			if err != nil {
				return err
			}
			defer a.close()
			defer a.logger.Sync()

			result, err := a.explorer.Run(cmd.Context())
			if err != nil {
				return err
			}

			if format == "yaml" {
				if err := writeYAMLReport(opts, a.path, result); err != nil {
					return err
				}
			} else {
				writeTextReport(opts, a.path, result)
			}

			if dumpPath != "" {
				if err := writeDump(dumpPath, result); err != nil {
					return err
				}
			}
			return verdictExit(result.Verdict)
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&format, "format", "text", "output format: text, yaml")
	cmd.Flags().StringVar(&dumpPath, "dump", "", "write a snapshot of the result to a file")
	return cmd
}

// verdictExit returns the error that sets the exit code for verdict.
func verdictExit(verdict smg.Verdict) error {
	switch verdict {
	case smg.VerdictUnsafe:
		return &verdictError{code: ExitUnsafe}
	case smg.VerdictUnknown:
		return &verdictError{code: ExitUnknown}
	}
	return nil
}

func writeTextReport(opts *options, path string, result *smg.Result) {
	w := opts.stdout

	var verdict string
	switch result.Verdict {
	case smg.VerdictSafe:
		verdict = color.GreenString("SAFE")
	case smg.VerdictUnsafe:
		verdict = color.RedString("UNSAFE")
	default:
		verdict = color.YellowString("UNKNOWN")
	}
	fmt.Fprintf(w, "%s: %s\n", path, verdict)
	if result.Reason != "" {
		fmt.Fprintf(w, "  reason: %s\n", result.Reason)
	}

	for _, v := range result.Violations {
		fmt.Fprintf(w, "  %s at %s: %s\n", color.RedString(string(v.Kind)), v.Location, v.Message)
		if len(v.Witness.Path) > 0 {
			fmt.Fprintf(w, "    path: %s\n", strings.Join(v.Witness.Path, " -> "))
		}
		for _, name := range v.Witness.Names() {
			fmt.Fprintf(w, "    %s = %s\n", name, v.Witness.Values[name])
		}
	}

	s := result.Stats
	fmt.Fprintf(w, "  states=%d steps=%d pruned=%d subsumed=%d pending=%d errors=%d\n",
		s.States, s.Steps, s.Pruned, s.Subsumed, s.Pending, s.Errors)
}

// report is the YAML rendering of a result.
type report struct {
	Program    string            `yaml:"program"`
	Verdict    smg.Verdict       `yaml:"verdict"`
	Reason     string            `yaml:"reason,omitempty"`
	Violations []violationReport `yaml:"violations,omitempty"`
	Stats      smg.Stats         `yaml:"stats"`
}

type violationReport struct {
	Kind     smg.ViolationKind `yaml:"kind"`
	Location string            `yaml:"location"`
	Line     int               `yaml:"line,omitempty"`
	Message  string            `yaml:"message"`
	Path     []string          `yaml:"path,omitempty"`
	Values   map[string]string `yaml:"values,omitempty"`
}

func newReport(path string, result *smg.Result) report {
	r := report{
		Program: path,
		Verdict: result.Verdict,
		Reason:  result.Reason,
		Stats:   result.Stats,
	}
	for _, v := range result.Violations {
		r.Violations = append(r.Violations, violationReport{
			Kind:     v.Kind,
			Location: v.Location,
			Line:     v.Position.Line,
			Message:  v.Message,
			Path:     v.Witness.Path,
			Values:   v.Witness.Values,
		})
	}
	return r
}

func writeYAMLReport(opts *options, path string, result *smg.Result) error {
	enc := yaml.NewEncoder(opts.stdout)
	enc.SetIndent(2)
	if err := enc.Encode(newReport(path, result)); err != nil {
		return err
	}
	return enc.Close()
}

// writeDump writes a go-spew snapshot of the result and the final state of
// each violating path.
func writeDump(path string, result *smg.Result) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	cfg := spew.ConfigState{Indent: "  ", MaxDepth: 4, DisablePointerAddresses: true, SortKeys: true}
	cfg.Fdump(f, result.Verdict, result.Stats, result.Reason)

	violations := append([]*smg.Violation(nil), result.Violations...)
	sort.SliceStable(violations, func(i, j int) bool { return violations[i].Kind < violations[j].Kind })
	for _, v := range violations {
		fmt.Fprintf(f, "\n%s\n", v)
		cfg.Fdump(f, v.Witness)
		fmt.Fprint(f, v.State.Dump())
	}
	return f.Close()
}
