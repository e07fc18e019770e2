// Package app implements the command-line flows.  Each Run function parses
// its arguments, does its work and returns the process exit code.
package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lanl/qanneal/bqm"
	"github.com/lanl/qanneal/internal/report"
	"github.com/lanl/qanneal/qubo"
	"github.com/lanl/qanneal/sapi"
)

// Exit codes.
const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

// defaultLocalSolver is used when no solver is named and the connection is
// local.
const defaultLocalSolver = "c4-sw_optimize"

// shownRecords bounds the sample rows printed for large models.
const shownRecords = 5

// commonOptions are the flags shared by every command.
type commonOptions struct {
	logLevel string
	logJSON  bool
	strict   bool
	timeout  time.Duration
}

func (o *commonOptions) register(fs *flag.FlagSet) {
	fs.StringVar(&o.logLevel, "log-level", "info", "minimum log level (debug, info, warn, error)")
	fs.BoolVar(&o.logJSON, "log-json", false, "write logs as JSON")
	fs.BoolVar(&o.strict, "strict", false, "exit with status 1 when a check fails")
	fs.DurationVar(&o.timeout, "timeout", 0, "give up after this long (0 for no limit)")
}

func (o *commonOptions) logger(w io.Writer) (*sapi.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(o.logLevel)); err != nil {
		return nil, fmt.Errorf("invalid -log-level %q: %w", o.logLevel, err)
	}
	if o.logJSON {
		return sapi.NewJSONLogger(w, level), nil
	}
	return sapi.NewTextLogger(w, level), nil
}

// run sets up logging and the deadline, then calls body.  body reports
// whether every check it made passed.
func (o *commonOptions) run(ctx context.Context, stderr io.Writer, body func(context.Context, *sapi.Logger) (bool, error)) int {
	log, err := o.logger(stderr)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitUsage
	}
	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}
	ok, err := body(ctx, log)
	if err != nil {
		log.ErrorContext(ctx, "command failed", "error", err)
		return exitFailure
	}
	if !ok && o.strict {
		return exitFailure
	}
	return exitOK
}

// samplingOptions select and drive the sampler.
type samplingOptions struct {
	commonOptions
	config        string
	profile       string
	solver        string
	endpoint      string
	local         bool
	exact         bool
	reads         int
	label         string
	seed          uint64
	cacheDir      string
	chainStrength float64
}

func (o *samplingOptions) register(fs *flag.FlagSet, reads int, label string) {
	o.commonOptions.register(fs)
	fs.StringVar(&o.config, "config", "", "dwave.conf `file` (default: search the usual places)")
	fs.StringVar(&o.profile, "profile", "", "configuration profile")
	fs.StringVar(&o.solver, "solver", "", "solver name (default: from the configuration, or "+defaultLocalSolver+" locally)")
	fs.StringVar(&o.endpoint, "endpoint", "", "SAPI URL, overriding the configuration")
	fs.BoolVar(&o.local, "local", false, "use the local solvers regardless of the configuration")
	fs.BoolVar(&o.exact, "exact", false, "solve by exhaustive enumeration instead of a solver")
	fs.IntVar(&o.reads, "reads", reads, "number of reads")
	fs.StringVar(&o.label, "label", label, "problem label")
	fs.Uint64Var(&o.seed, "seed", 0, "random seed for local solvers and the embedder (0 for random)")
	fs.StringVar(&o.cacheDir, "embedding-cache", "", "`directory` of cached embeddings (empty disables caching)")
	fs.Float64Var(&o.chainStrength, "chain-strength", 0, "chain coupler magnitude (0 for 1.5 times the largest bias)")
}

func (o *samplingOptions) params() sapi.SampleParams {
	return sapi.SampleParams{
		NumReads:      o.reads,
		Label:         o.label,
		ChainStrength: o.chainStrength,
	}
}

// sampler builds the sampler the flags describe: an exact enumerator, or an
// embedding composite over a local or remote solver.
func (o *samplingOptions) sampler(ctx context.Context, log *sapi.Logger) (sapi.Sampler, error) {
	if o.exact {
		return sapi.ExactSampler{}, nil
	}
	opts := []sapi.Option{sapi.WithLogger(log)}
	if o.seed != 0 {
		opts = append(opts, sapi.WithSeed(o.seed))
	}

	var conn *sapi.Connection
	name := o.solver
	if o.local {
		conn = sapi.LocalConnection(opts...)
	} else {
		cfg, err := sapi.LoadConfig(o.config, o.profile)
		if err != nil {
			return nil, err
		}
		if o.endpoint != "" {
			cfg.Endpoint = o.endpoint
		}
		if name == "" {
			name = cfg.Solver
		}
		conn, err = cfg.Connect(opts...)
		if err != nil {
			return nil, err
		}
	}
	if name == "" {
		if !conn.IsLocal() {
			return nil, errors.New("no solver named; use -solver, DWAVE_API_SOLVER or the profile's solver key")
		}
		name = defaultLocalSolver
	}
	solver, err := conn.Solver(ctx, name)
	if err != nil {
		return nil, err
	}

	fep := sapi.NewFindEmbeddingParameters()
	if o.seed != 0 {
		fep.UseRandomSeed = true
		fep.RandomSeed = o.seed
	}
	return &sapi.EmbeddingComposite{
		Child:    solver,
		Params:   fep,
		CacheDir: o.cacheDir,
	}, nil
}

// sampleModel samples m with the configured sampler.
func (o *samplingOptions) sampleModel(ctx context.Context, log *sapi.Logger, m *bqm.Model) (*sapi.SampleSet, error) {
	s, err := o.sampler(ctx, log)
	if err != nil {
		return nil, err
	}
	return s.Sample(ctx, m, o.params())
}

// embedAndSample samples m like sampleModel, but an embedding sampler first
// computes the embedding on its own so its time can be reported on w.
func (o *samplingOptions) embedAndSample(ctx context.Context, log *sapi.Logger, w io.Writer, m *bqm.Model) (*sapi.SampleSet, error) {
	s, err := o.sampler(ctx, log)
	if err != nil {
		return nil, err
	}
	ec, ok := s.(*sapi.EmbeddingComposite)
	if !ok {
		return s.Sample(ctx, m, o.params())
	}
	start := time.Now()
	chains, err := ec.Embed(ctx, m)
	if err != nil {
		return nil, err
	}
	if err := report.Timing(w, "embedding time", time.Since(start)); err != nil {
		return nil, err
	}
	fixed := &sapi.FixedEmbeddingComposite{
		Child:     ec.Child,
		Embedding: chains,
		Logger:    ec.Logger,
	}
	return fixed.Sample(ctx, m, o.params())
}

// parse parses args.  It returns false with the exit code when the command
// should stop.
func parse(fs *flag.FlagSet, args []string) (int, bool) {
	err := fs.Parse(args)
	switch {
	case err == nil:
		if fs.NArg() > 0 {
			fmt.Fprintf(fs.Output(), "unexpected arguments: %q\n", fs.Args())
			return exitUsage, false
		}
		return exitOK, true
	case errors.Is(err, flag.ErrHelp):
		return exitOK, false
	default:
		return exitUsage, false
	}
}

func newFlagSet(name string, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	return fs
}

// assignment converts a sample to the integer map the qubo checks use.
func assignment(s bqm.Sample) map[string]int {
	a := make(map[string]int, len(s))
	for k, v := range s {
		a[k] = int(v)
	}
	return a
}

// reportSample prints the best records of ss and, when expected is not nil,
// whether the best sample matches it.
func reportSample(w io.Writer, ss *sapi.SampleSet, expected map[string]int) (bool, error) {
	if err := report.SampleSet(w, ss, shownRecords); err != nil {
		return false, err
	}
	best, ok := ss.First()
	if !ok {
		return false, errors.New("sampler returned no samples")
	}
	if err := report.Timing(w, "sampling time", ss.Timing); err != nil {
		return false, err
	}
	if expected == nil {
		return true, nil
	}
	match := qubo.MatchAssignment(assignment(best.Sample), expected)
	return match, report.Check(w, "matches expected", match)
}

// RunExplicit samples the hand-written QUBO of the reference instance and
// compares the best sample with its known ground state.
func RunExplicit(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("qubo-explicit", stderr)
	var o samplingOptions
	o.register(fs, 1000, "QUBO_Example")
	if code, ok := parse(fs, args); !ok {
		return code
	}
	return o.run(ctx, stderr, func(ctx context.Context, log *sapi.Logger) (bool, error) {
		ss, err := o.embedAndSample(ctx, log, stdout, qubo.ExplicitSteiner().ToBQM())
		if err != nil {
			return false, err
		}
		return reportSample(stdout, ss, qubo.ExpectedSteinerAssignment())
	})
}

// RunSteiner builds the QUBO of an instance description (the reference
// instance by default) and samples it.
func RunSteiner(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("qubo-steiner", stderr)
	var o samplingOptions
	o.register(fs, 100, "QUBO_Example")
	graphPath := fs.String("graph", "", "YAML or JSON instance `file` (default: the built-in example)")
	alpha := fs.Float64("alpha", 0, "penalty strength (default: the instance's alpha)")
	if code, ok := parse(fs, args); !ok {
		return code
	}
	return o.run(ctx, stderr, func(ctx context.Context, log *sapi.Logger) (bool, error) {
		g, err := loadGraph(*graphPath)
		if err != nil {
			return false, err
		}
		a := g.Alpha
		if *alpha != 0 {
			a = *alpha
		}
		t, err := qubo.Build(g, a)
		if err != nil {
			return false, err
		}
		if err := report.Table(stdout, "qubo", t); err != nil {
			return false, err
		}
		ss, err := o.embedAndSample(ctx, log, stdout, t.ToBQM())
		if err != nil {
			return false, err
		}
		var expected map[string]int
		if *graphPath == "" && a == qubo.ExampleAlpha {
			expected = qubo.ExpectedSteinerAssignment()
		}
		return reportSample(stdout, ss, expected)
	})
}

func loadGraph(path string) (qubo.Graph, error) {
	if path == "" {
		return qubo.ExampleGraph(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return qubo.Graph{}, err
	}
	defer f.Close()
	return qubo.LoadGraph(f)
}

// RunVerify builds the reference instance's QUBO and checks it against the
// hand-written table.  It never contacts a solver.
func RunVerify(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("qubo-verify", stderr)
	var o commonOptions
	o.register(fs)
	raw := fs.Bool("raw", false, "print the built table in generation order, without merging pairs")
	if code, ok := parse(fs, args); !ok {
		return code
	}
	return o.run(ctx, stderr, func(ctx context.Context, log *sapi.Logger) (bool, error) {
		var opts []qubo.BuildOption
		if *raw {
			opts = append(opts, qubo.WithRawOrdering())
		}
		built, err := qubo.Build(qubo.ExampleGraph(), qubo.ExampleAlpha, opts...)
		if err != nil {
			return false, err
		}
		explicit := qubo.ExplicitSteiner()
		if err := report.Table(stdout, "built", built); err != nil {
			return false, err
		}
		if err := report.Table(stdout, "explicit", explicit); err != nil {
			return false, err
		}
		ms := qubo.Diff(built, explicit)
		if err := report.Mismatches(stdout, ms); err != nil {
			return false, err
		}
		log.DebugContext(ctx, "tables compared", "built", len(built), "explicit", len(explicit), "mismatches", len(ms))
		return len(ms) == 0, report.Check(stdout, "equal", len(ms) == 0)
	})
}

// RunIsingSmoke samples a two-spin Ising model through an embedding
// composite and prints every distinct sample.
func RunIsingSmoke(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("ising-smoke", stderr)
	var o samplingOptions
	o.register(fs, 100, "Ising_Smoke")
	if code, ok := parse(fs, args); !ok {
		return code
	}
	return o.run(ctx, stderr, func(ctx context.Context, log *sapi.Logger) (bool, error) {
		m := bqm.FromIsing(
			map[string]float64{"a": -1, "b": 1},
			map[[2]string]float64{{"a", "b"}: 0.5},
			0,
		)
		ss, err := o.sampleModel(ctx, log, m)
		if err != nil {
			return false, err
		}
		if err := report.SampleSet(stdout, ss, 0); err != nil {
			return false, err
		}
		return true, report.Timing(stdout, "sampling time", ss.Timing)
	})
}
