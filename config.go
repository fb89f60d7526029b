package smg

import (
	"math/rand"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config represents the analysis configuration file.
type Config struct {
	// Function where analysis begins.
	Entry string `yaml:"entry"`

	// Machine model used for programs that do not name one.
	Machine string `yaml:"machine"`

	// Constraint solver backend: "none" or "z3".
	Solver string `yaml:"solver"`

	Explorer ExplorerConfig `yaml:"explorer"`
	Memory   MemoryConfig   `yaml:"memory"`
}

// ExplorerConfig configures state space exploration.
type ExplorerConfig struct {
	Search          string `yaml:"search"`
	Subsumption     string `yaml:"subsumption"`
	MaxStates       int    `yaml:"max-states"`
	MaxPathLength   int    `yaml:"max-path-length"`
	StopOnViolation bool   `yaml:"stop-on-violation"`
	Seed            int64  `yaml:"seed"`
}

// MemoryConfig configures the memory model.
type MemoryConfig struct {
	MallocMayFail        bool   `yaml:"malloc-may-fail"`
	CheckLeaksOnReturn   bool   `yaml:"check-leaks-on-return"`
	NonFreedInMainIsLeak bool   `yaml:"non-freed-in-main-is-leak"`
	UnknownFunctions     string `yaml:"unknown-functions"`
	ZeroLengthArrays     bool   `yaml:"zero-length-arrays"`

	AllocationFunctions         []string `yaml:"allocation-functions"`
	ZeroingAllocationFunctions  []string `yaml:"zeroing-allocation-functions"`
	DeallocationFunctions       []string `yaml:"deallocation-functions"`
	ExternalAllocationFunctions []string `yaml:"external-allocation-functions"`
	StackAllocationFunctions    []string `yaml:"stack-allocation-functions"`
	ExternalAllocationSize      uint64   `yaml:"external-allocation-size"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	opts := DefaultInterpreterOptions()
	return Config{
		Entry:   "main",
		Machine: LP64.Name,
		Solver:  "none",
		Explorer: ExplorerConfig{
			Search:        "dfs",
			Subsumption:   "exact",
			MaxStates:     100000,
			MaxPathLength: 10000,
		},
		Memory: MemoryConfig{
			MallocMayFail:               opts.MallocMayFail,
			CheckLeaksOnReturn:          opts.CheckLeaksOnReturn,
			NonFreedInMainIsLeak:        opts.NonFreedInMainIsLeak,
			UnknownFunctions:            string(opts.UnknownFunctions),
			ZeroLengthArrays:            true,
			AllocationFunctions:         opts.AllocationFunctions,
			ZeroingAllocationFunctions:  opts.ZeroingAllocationFunctions,
			DeallocationFunctions:       opts.DeallocationFunctions,
			ExternalAllocationFunctions: opts.ExternalAllocationFunctions,
			StackAllocationFunctions:    opts.StackAllocationFunctions,
			ExternalAllocationSize:      opts.ExternalAllocationSize,
		},
	}
}

// ReadConfigFile decodes the YAML configuration at path over the defaults.
func ReadConfigFile(path string) (Config, error) {
	config := DefaultConfig()

	f, err := os.Open(path)
	if err != nil {
		return config, errors.Wrap(err, "open config")
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&config); err != nil {
		return config, errors.Wrapf(err, "decode config %s", path)
	}
	return config, config.Validate()
}

// Validate returns an error if the configuration is inconsistent.
func (c *Config) Validate() error {
	if c.Entry == "" {
		return errors.New("config: entry function required")
	}
	if _, err := ParseMachineModel(c.Machine); err != nil {
		return errors.Wrap(err, "config")
	}
	switch c.Solver {
	case "", "none", "z3":
	default:
		return errors.Errorf("config: unknown solver: %q", c.Solver)
	}
	if _, err := NewSearcher(c.Explorer.Search, nil); err != nil {
		return errors.Wrap(err, "config")
	}
	if _, err := ParseSubsumption(c.Explorer.Subsumption); err != nil {
		return errors.Wrap(err, "config")
	}
	if c.Explorer.MaxStates < 0 || c.Explorer.MaxPathLength < 0 {
		return errors.New("config: budgets must not be negative")
	}
	switch UnknownFunctionPolicy(c.Memory.UnknownFunctions) {
	case UnknownFunctionStrict, UnknownFunctionAssumeSafe:
	default:
		return errors.Errorf("config: unknown function policy: %q", c.Memory.UnknownFunctions)
	}
	if c.Memory.ExternalAllocationSize >= MaxObjectSize {
		return errors.Errorf("config: external allocation size %d too large", c.Memory.ExternalAllocationSize)
	}
	return nil
}

// DecodeOptions returns the program decoding options.
func (c *Config) DecodeOptions() DecodeOptions {
	return DecodeOptions{
		Machine:                c.Machine,
		RejectZeroLengthArrays: !c.Memory.ZeroLengthArrays,
	}
}

// InterpreterOptions returns the memory model options.
func (c *Config) InterpreterOptions() InterpreterOptions {
	return InterpreterOptions{
		MallocMayFail:               c.Memory.MallocMayFail,
		CheckLeaksOnReturn:          c.Memory.CheckLeaksOnReturn,
		NonFreedInMainIsLeak:        c.Memory.NonFreedInMainIsLeak,
		UnknownFunctions:            UnknownFunctionPolicy(c.Memory.UnknownFunctions),
		AllocationFunctions:         c.Memory.AllocationFunctions,
		ZeroingAllocationFunctions:  c.Memory.ZeroingAllocationFunctions,
		DeallocationFunctions:       c.Memory.DeallocationFunctions,
		ExternalAllocationFunctions: c.Memory.ExternalAllocationFunctions,
		StackAllocationFunctions:    c.Memory.StackAllocationFunctions,
		ExternalAllocationSize:      c.Memory.ExternalAllocationSize,
	}
}

// NewExplorer returns an explorer over prog configured by c. The solver is
// left for the caller to attach.
func (c *Config) NewExplorer(prog *Program) (*Explorer, error) {
	searcher, err := NewSearcher(c.Explorer.Search, rand.New(rand.NewSource(c.Explorer.Seed)))
	if err != nil {
		return nil, err
	}
	subsumption, err := ParseSubsumption(c.Explorer.Subsumption)
	if err != nil {
		return nil, err
	}

	e := NewExplorer(NewInterpreter(prog, c.InterpreterOptions()))
	e.Entry = c.Entry
	e.Searcher = searcher
	e.Subsumption = subsumption
	e.MaxStates = c.Explorer.MaxStates
	e.MaxPathLength = c.Explorer.MaxPathLength
	e.StopOnViolation = c.Explorer.StopOnViolation
	return e, nil
}
