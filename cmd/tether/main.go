package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/sambeau/tether/config"
	"github.com/sambeau/tether/pkg/tether/closure"
	"github.com/sambeau/tether/pkg/tether/detect"
	"github.com/sambeau/tether/pkg/tether/logging"
	"github.com/sambeau/tether/pkg/tether/manifest"
	"github.com/sambeau/tether/pkg/tether/pipes"
	"github.com/sambeau/tether/pkg/tether/repl"
	"github.com/sambeau/tether/pkg/tether/values"
)

// Version information, set at build time via -ldflags
var (
	Version = "dev"     // -X main.Version=$(git describe --tags --always)
	Commit  = "unknown" // -X main.Commit=$(git rev-parse --short HEAD)
)

func main() {
	ctx := context.Background()
	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr, os.Getenv); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// run is the main entry point, designed for testability (Mat Ryer pattern)
func run(ctx context.Context, args []string, stdout, stderr io.Writer, getenv func(string) string) error {
	if len(args) == 0 {
		printUsage(stderr)
		return errors.New("no command given")
	}

	switch args[0] {
	case "eval":
		return runEval(args[1:], stdout, stderr, getenv)
	case "watch":
		return runWatch(ctx, args[1:], stdout, stderr, getenv)
	case "fmt":
		return runFmt(args[1:], stdout, stderr, getenv)
	case "repl":
		return runRepl(args[1:], stdout, stderr, getenv)
	case "-h", "-help", "--help", "help":
		printUsage(stdout)
		return nil
	case "-version", "--version", "version":
		fmt.Fprintf(stdout, "tether version %s (%s)\n", Version, Commit)
		return nil
	}

	printUsage(stderr)
	return fmt.Errorf("unknown command %q", args[0])
}

func printUsage(w io.Writer) {
	fmt.Fprintf(w, `tether - evaluate and watch template binding expressions

Usage:
  tether <command> [options] [manifest]

Commands:
  eval      Evaluate every expression binding once and print the results
  watch     Re-run change detection whenever the manifest is saved
  fmt       Print each binding's expression source
  repl      Interactive shell over a manifest

Options:
  --config PATH      Path to config file (default: auto-detect)
  --locale TAG       Override the locale used by pipes (e.g. en-GB)
  --binding KEY      eval: evaluate a single binding
  --json             eval: print results as a JSON object
  --version          Show version
  --help             Show this help

The manifest defaults to the "manifest" setting in the config file.

Config Resolution:
  1. --config flag
  2. TETHER_CONFIG environment variable
  3. ./tether.yaml
  4. ./tether.toml
  5. ~/.config/tether/tether.yaml

Examples:
  tether eval bindings.yaml
  tether eval --binding greeting --locale de-DE bindings.toml
  tether watch bindings.yaml
  tether repl bindings.yaml

`)
}

// env is what every command needs: validated config, a logger and the
// loaded manifest.
type env struct {
	cfg      *config.Config
	logger   logging.Logger
	closures *closure.Map
	registry *pipes.Registry
	manifest *manifest.Manifest
	close    func() error
}

// commonFlags registers the flags shared by every command.
type commonFlags struct {
	configPath *string
	locale     *string
}

func newFlagSet(name string) (*flag.FlagSet, commonFlags) {
	flags := flag.NewFlagSet("tether "+name, flag.ContinueOnError)
	flags.SetOutput(io.Discard) // Suppress default -h output
	return flags, commonFlags{
		configPath: flags.String("config", "", "Path to config file"),
		locale:     flags.String("locale", "", "Override the pipe locale"),
	}
}

// parse handles -h the way every command does.
func parse(flags *flag.FlagSet, args []string, stdout, stderr io.Writer) (bool, error) {
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			printUsage(stdout)
			return true, nil
		}
		printUsage(stderr)
		return false, err
	}
	return false, nil
}

func setup(common commonFlags, manifestArg string, stdout, stderr io.Writer, getenv func(string) string) (*env, error) {
	cfg, configFile, err := config.LoadWithPath(*common.configPath, getenv)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	// Apply CLI overrides
	if *common.locale != "" {
		cfg.Locale = *common.locale
	}

	// Full validation after CLI overrides applied
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	logger, closeLog, err := openLogger(cfg.Logging, stdout, stderr)
	if err != nil {
		return nil, err
	}
	if configFile != "" {
		logger.Debugf("config: %s", configFile)
	}

	path := manifestArg
	if path == "" {
		path = cfg.Manifest
	}
	if path == "" {
		closeLog()
		return nil, errors.New("no manifest given (pass a path or set `manifest` in the config)")
	}

	closures := closure.New()
	m, err := manifest.Load(path, closures)
	if err != nil {
		closeLog()
		return nil, err
	}
	logger.Debugf("loaded %s: %d bindings", path, len(m.Bindings))

	return &env{
		cfg:      cfg,
		logger:   logger,
		closures: closures,
		registry: pipes.NewRegistry(pipes.Options{Locale: cfg.Locale}),
		manifest: m,
		close:    closeLog,
	}, nil
}

// openLogger builds the logger described by cfg. Output is stderr, stdout
// or a file path, which is appended to.
func openLogger(cfg config.LoggingConfig, stdout, stderr io.Writer) (logging.Logger, func() error, error) {
	level, err := logging.ParseLevel(cfg.Level)
	if err != nil {
		return nil, nil, err
	}
	var w io.Writer
	closeFn := func() error { return nil }
	switch cfg.Output {
	case "stderr", "":
		w = stderr
	case "stdout":
		w = stdout
	default:
		f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("opening log file: %w", err)
		}
		w = f
		closeFn = f.Close
	}
	return logging.New(w, level, cfg.Format), closeFn, nil
}

// newDetector registers the manifest's bindings with pipes resolved.
func (e *env) newDetector(m *manifest.Manifest) (*detect.Detector, error) {
	d := detect.New(detect.WithLogger(e.logger), detect.WithResolver(e.registry.Resolve))
	if err := d.AddBindings(m.Bindings); err != nil {
		return nil, err
	}
	return d, nil
}

func runEval(args []string, stdout, stderr io.Writer, getenv func(string) string) error {
	flags, common := newFlagSet("eval")
	var (
		binding = flags.String("binding", "", "Evaluate a single binding")
		asJSON  = flags.Bool("json", false, "Print results as a JSON object")
	)
	if done, err := parse(flags, args, stdout, stderr); done || err != nil {
		return err
	}

	e, err := setup(common, flags.Arg(0), stdout, stderr, getenv)
	if err != nil {
		return err
	}
	defer e.close()

	d, err := e.newDetector(e.manifest)
	if err != nil {
		return err
	}
	if *binding != "" {
		r, ok := d.Record(*binding)
		if !ok {
			return fmt.Errorf("no expression binding %q in %s", *binding, e.manifest.Path)
		}
		d = detect.New(detect.WithLogger(e.logger))
		if _, err := d.Add(r.Key, r.Expression); err != nil {
			return err
		}
	}

	changes := d.DetectChanges(e.manifest.Context)
	results := values.NewMap(len(changes))
	failed := 0
	for _, c := range changes {
		if c.Err != nil {
			failed++
			fmt.Fprintf(stderr, "%s: error: %v\n", c.Record.Key, c.Err)
			continue
		}
		results.Set(c.Record.Key, c.Current)
	}

	if *asJSON {
		data, err := json.MarshalIndent(results, "", "  ")
		if err != nil {
			return fmt.Errorf("encoding results: %w", err)
		}
		fmt.Fprintf(stdout, "%s\n", data)
	} else {
		results.Range(func(k, v any) bool {
			fmt.Fprintf(stdout, "%s = %s\n", k, values.Inspect(v))
			return true
		})
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d bindings failed", failed, len(changes))
	}
	return nil
}

func runFmt(args []string, stdout, stderr io.Writer, getenv func(string) string) error {
	flags, common := newFlagSet("fmt")
	if done, err := parse(flags, args, stdout, stderr); done || err != nil {
		return err
	}

	e, err := setup(common, flags.Arg(0), stdout, stderr, getenv)
	if err != nil {
		return err
	}
	defer e.close()

	for _, b := range e.manifest.Bindings {
		if b.HasName() {
			fmt.Fprintf(stdout, "%s -> %s\n", b.Key, b.Name)
			continue
		}
		fmt.Fprintf(stdout, "%s = %s\n", b.Key, b.Expression.Source)
	}
	return nil
}

func runRepl(args []string, stdout, stderr io.Writer, getenv func(string) string) error {
	flags, common := newFlagSet("repl")
	if done, err := parse(flags, args, stdout, stderr); done || err != nil {
		return err
	}

	e, err := setup(common, flags.Arg(0), stdout, stderr, getenv)
	if err != nil {
		return err
	}
	defer e.close()

	s, err := repl.NewSession(e.manifest, e.registry, e.closures, detect.WithLogger(e.logger))
	if err != nil {
		return err
	}
	repl.Start(stdout, s, fmt.Sprintf("%s (%s)", Version, Commit))
	return nil
}

func runWatch(ctx context.Context, args []string, stdout, stderr io.Writer, getenv func(string) string) error {
	flags, common := newFlagSet("watch")
	if done, err := parse(flags, args, stdout, stderr); done || err != nil {
		return err
	}

	e, err := setup(common, flags.Arg(0), stdout, stderr, getenv)
	if err != nil {
		return err
	}
	defer e.close()

	// Set up signal handling for graceful shutdown
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return e.watchManifest(ctx, stdout)
}
