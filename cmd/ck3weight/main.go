package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"ck3weight/internal/conditions"
	"ck3weight/internal/config"
	"ck3weight/internal/export"
	"ck3weight/internal/loader"
	"ck3weight/internal/model"
	"ck3weight/internal/mods"
	"ck3weight/internal/pipeline"
	"ck3weight/internal/setup"
	"ck3weight/internal/watch"
)

// command describes a CLI subcommand.
type command struct {
	name  string
	short string
	usage string
	long  string
	run   func(args []string) error
}

// commands is filled in init because runInit refers back to it through
// parseFlags, which a package-level initializer cannot express.
var commands []command

func init() {
	commands = []command{
		{
			name:  "init",
			short: "Create or update the configuration file",
			usage: "ck3weight init [-config path] [-mod name] [-defaults]",
			long: `Write the configuration file (default .ck3weight/config.yaml).

Prompts for the mod name, author, target directory and processing options,
using the current configuration as defaults. With -mod, the named installed
mod is looked up first and becomes the target. With -defaults, no prompt is
shown and the current values are written as they are.
`,
			run: runInit,
		},
		{
			name:  "process",
			short: "Generate AI weights for every marked region",
			usage: "ck3weight process [-config path] [-dry-run] [-report file] [-v] [dir]",
			long: `Scan the event files of the target directory and replace every marked
region with the trigger generated from its character model.

The target is dir when given, otherwise the configured events directory.
Files are backed up before they are rewritten and only written when their
content changes. -dry-run computes everything without writing. -report
writes the run summary as YAML.
`,
			run: runProcess,
		},
		{
			name:  "scan",
			short: "List the marked regions of the target directory",
			usage: "ck3weight scan [-config path] [-v] [dir]",
			long: `List every marked region with its model reference and whether that
model is known. Nothing is written.
`,
			run: runScan,
		},
		{
			name:  "validate",
			short: "Validate all character models",
			usage: "ck3weight validate [-config path] [-v]",
			long: `Check every character model for unknown traits and conflicting trait
roles. Exits with an error when any model is invalid.
`,
			run: runValidate,
		},
		{
			name:  "weights",
			short: "Show weight breakdowns",
			usage: "ck3weight weights [-config path] [-v] [model]",
			long: `Without arguments, list the base, trait, modifier and total weight of
every model together with trait usage. With a model name, show that model's
breakdown row by row.
`,
			run: runWeights,
		},
		{
			name:  "docs",
			short: "Export models and traits as a markdown vault",
			usage: "ck3weight docs [-config path] [-v] <out-dir>",
			long: `Write index.md, interactions.md, traits/<name>.md and models/<name>.md
under out-dir. Existing pages are overwritten.
`,
			run: runDocs,
		},
		{
			name:  "mods",
			short: "List installed mods",
			usage: "ck3weight mods [-config path]",
			long: `List the mods found in the Steam Workshop and Paradox mod directories
named in the configuration.
`,
			run: runMods,
		},
		{
			name:  "conditions",
			short: "Browse the condition catalog",
			usage: "ck3weight conditions [-config path] [query]",
			long: `Without arguments, list every condition identifier by category. With a
query, show the definitions whose name or description contains it.
`,
			run: runConditions,
		},
		{
			name:  "watch",
			short: "Re-process event files when they change",
			usage: "ck3weight watch [-config path] [-debounce d] [-v] [dir]",
			long: `Process the target directory once, then watch it and re-process every
event file that changes. Stop with Ctrl-C.
`,
			run: runWatch,
		},
	}
}

// stdout receives command output.
var stdout io.Writer = os.Stdout

func printUsage(w io.Writer) {
	fmt.Fprintf(w, "ck3weight — CK3 AI weight generator\n\n")
	fmt.Fprintf(w, "Usage:\n  ck3weight <command> [arguments]\n\n")
	fmt.Fprintf(w, "Commands:\n")
	for _, cmd := range commands {
		fmt.Fprintf(w, "  %-11s %s\n", cmd.name, cmd.short)
	}
	fmt.Fprintf(w, "\nRun 'ck3weight help <command>' for details on a specific command.\n")
}

func printCommandHelp(w io.Writer, name string) {
	for _, cmd := range commands {
		if cmd.name == name {
			fmt.Fprintf(w, "Usage: %s\n\n%s", cmd.usage, cmd.long)
			return
		}
	}
	fmt.Fprintf(w, "ck3weight: unknown command %q\n\nRun 'ck3weight help' for usage.\n", name)
}

func dispatch(args []string) error {
	if len(args) == 0 || args[0] == "--help" || args[0] == "-h" {
		printUsage(stdout)
		return nil
	}
	if args[0] == "help" {
		if len(args) >= 2 {
			printCommandHelp(stdout, args[1])
		} else {
			printUsage(stdout)
		}
		return nil
	}
	for _, cmd := range commands {
		if cmd.name == args[0] {
			return cmd.run(args[1:])
		}
	}
	return fmt.Errorf("unknown command %q\n\nRun 'ck3weight help' for usage.", args[0])
}

// ---------------------------------------------------------------------------
// Shared setup
// ---------------------------------------------------------------------------

// options holds the flags every command accepts.
type options struct {
	configPath string
	verbose    bool
}

func newFlagSet(name string, o *options) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&o.configPath, "config", config.DefaultPath, "configuration file")
	fs.BoolVar(&o.verbose, "v", false, "debug logging")
	return fs
}

// parseFlags parses args and turns flag errors into usage errors.
func parseFlags(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		for _, cmd := range commands {
			if cmd.name == fs.Name() {
				return fmt.Errorf("%w\nusage: %s", err, cmd.usage)
			}
		}
		return err
	}
	return nil
}

// env is what a command works with after flags are parsed.
type env struct {
	cfg config.Config
	log *zap.Logger
}

func openEnv(o options) (*env, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := newLogger(o.verbose || cfg.Output.VerboseLogging)
	if err != nil {
		return nil, err
	}
	return &env{cfg: cfg, log: logger}, nil
}

func (e *env) close() { _ = e.log.Sync() }

// newLogger builds the stderr console logger.
func newLogger(verbose bool) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	zc.Encoding = "console"
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zc.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	zc.DisableStacktrace = true
	if verbose {
		zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	logger, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger, nil
}

// loadData reads traits, models and conditions from the configured data
// directories. Per-file problems are logged and skipped.
func (e *env) loadData() (*model.Engine, *conditions.Catalog, error) {
	res, err := loader.Load(loader.Paths{
		Traits:     e.cfg.Data.TraitsDir,
		Models:     e.cfg.Data.ModelsDir,
		Conditions: e.cfg.Data.ConditionsDir,
	})
	for _, w := range res.Warnings {
		e.log.Warn("data file skipped", zap.String("file", w.File), zap.Error(w.Err))
	}
	if err != nil {
		return nil, nil, fmt.Errorf("load data: %w", err)
	}
	e.log.Debug("data loaded",
		zap.Int("traits", res.Registry.Len()),
		zap.Int("models", len(res.Models)),
		zap.Int("conditions", res.Catalog.Len()))
	return model.NewEngine(res.Registry, res.Models), res.Catalog, nil
}

// processor loads the data and builds a pipeline processor.
func (e *env) processor() (*pipeline.Processor, error) {
	engine, cat, err := e.loadData()
	if err != nil {
		return nil, err
	}
	return pipeline.New(e.cfg, engine, cat, e.log)
}

// target returns the directory to process: the argument when given,
// otherwise the configured events directory under the working directory.
func (e *env) target(args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("working directory: %w", err)
	}
	return e.cfg.TargetPath(wd), nil
}

// ---------------------------------------------------------------------------
// init
// ---------------------------------------------------------------------------

func runInit(args []string) error {
	var o options
	fs := newFlagSet("init", &o)
	modName := fs.String("mod", "", "installed mod to target")
	defaults := fs.Bool("defaults", false, "write without prompting")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	e, err := openEnv(o)
	if err != nil {
		return err
	}
	defer e.close()

	cfg := e.cfg
	if *modName != "" {
		m, err := mods.Find(cfg, *modName)
		if err != nil {
			return err
		}
		e.log.Info("targeting mod", zap.String("mod", m.Label()), zap.String("dir", m.Dir))
		cfg = setup.FromMod(cfg, m)
	}

	if !*defaults {
		if cfg, err = promptConfig(cfg); err != nil {
			return fmt.Errorf("prompt: %w", err)
		}
	}

	if err := config.Save(o.configPath, cfg); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "wrote configuration to %s\n", o.configPath)
	return nil
}

// ---------------------------------------------------------------------------
// process
// ---------------------------------------------------------------------------

func runProcess(args []string) error {
	var o options
	fs := newFlagSet("process", &o)
	dryRun := fs.Bool("dry-run", false, "compute changes without writing")
	report := fs.String("report", "", "write the run summary as YAML to this file")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	e, err := openEnv(o)
	if err != nil {
		return err
	}
	defer e.close()

	dir, err := e.target(fs.Args())
	if err != nil {
		return err
	}
	p, err := e.processor()
	if err != nil {
		return err
	}
	p.DryRun = *dryRun

	sum, err := p.Run(dir)
	if err != nil {
		return err
	}
	if e.cfg.Output.ShowSummary {
		renderSummary(stdout, sum)
	}
	if *report != "" {
		if err := writeReport(*report, sum); err != nil {
			return err
		}
	}
	if len(sum.Errors) > 0 {
		return fmt.Errorf("one or more errors during processing")
	}
	return nil
}

func writeReport(path string, sum pipeline.Summary) error {
	data, err := yaml.Marshal(sum)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// scan
// ---------------------------------------------------------------------------

func runScan(args []string) error {
	var o options
	fs := newFlagSet("scan", &o)
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	e, err := openEnv(o)
	if err != nil {
		return err
	}
	defer e.close()

	dir, err := e.target(fs.Args())
	if err != nil {
		return err
	}
	engine, _, err := e.loadData()
	if err != nil {
		return err
	}
	p, err := pipeline.New(e.cfg, engine, nil, e.log)
	if err != nil {
		return err
	}
	results, err := p.Scan(dir)
	if err != nil {
		return err
	}

	var rows []scanRow
	var anyErr bool
	for _, r := range results {
		if r.Err != nil {
			e.log.Warn("file failed", zap.String("file", r.File), zap.Error(r.Err))
			anyErr = true
			continue
		}
		for _, b := range r.Blocks {
			_, known := engine.Character(b.Model)
			rows = append(rows, scanRow{
				File:     r.File,
				Line:     b.Start.Line,
				Model:    b.Model,
				Resolved: known,
				Comments: len(b.Comments),
			})
		}
	}
	renderScan(stdout, rows)
	if anyErr {
		return fmt.Errorf("one or more errors during scanning")
	}
	return nil
}

// ---------------------------------------------------------------------------
// validate
// ---------------------------------------------------------------------------

func runValidate(args []string) error {
	var o options
	fs := newFlagSet("validate", &o)
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	e, err := openEnv(o)
	if err != nil {
		return err
	}
	defer e.close()

	engine, _, err := e.loadData()
	if err != nil {
		return err
	}
	results := engine.ValidateAll()
	renderValidation(stdout, results)

	invalid := 0
	for _, r := range results {
		if !r.Valid {
			invalid++
		}
	}
	if invalid > 0 {
		return fmt.Errorf("%d of %d models failed validation", invalid, len(results))
	}
	return nil
}

// ---------------------------------------------------------------------------
// weights
// ---------------------------------------------------------------------------

func runWeights(args []string) error {
	var o options
	fs := newFlagSet("weights", &o)
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	e, err := openEnv(o)
	if err != nil {
		return err
	}
	defer e.close()

	engine, _, err := e.loadData()
	if err != nil {
		return err
	}
	reg := engine.Registry()
	interactions := engine.Interactions()

	if fs.NArg() > 0 {
		name := fs.Arg(0)
		m, ok := engine.Character(name)
		if !ok {
			return fmt.Errorf("%w: %s", model.ErrUnknownModel, name)
		}
		renderBreakdown(stdout, model.Breakdown(m, reg, interactions))
		return nil
	}

	chars := engine.Characters()
	rows := make([]model.WeightBreakdown, 0, len(chars))
	for _, m := range chars {
		rows = append(rows, model.Breakdown(m, reg, interactions))
	}
	renderWeights(stdout, rows, model.TraitUsage(chars, reg))
	return nil
}

// ---------------------------------------------------------------------------
// docs
// ---------------------------------------------------------------------------

func runDocs(args []string) error {
	var o options
	fs := newFlagSet("docs", &o)
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return fmt.Errorf("usage: ck3weight docs [-config path] <out-dir>")
	}
	outDir := fs.Arg(0)

	e, err := openEnv(o)
	if err != nil {
		return err
	}
	defer e.close()

	engine, _, err := e.loadData()
	if err != nil {
		return err
	}
	bundle, err := export.Generate(engine)
	if err != nil {
		return err
	}
	if err := export.Write(bundle, outDir); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "wrote %d pages to %s\n", len(bundle.Paths()), outDir)
	return nil
}

// ---------------------------------------------------------------------------
// mods
// ---------------------------------------------------------------------------

func runMods(args []string) error {
	var o options
	fs := newFlagSet("mods", &o)
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	e, err := openEnv(o)
	if err != nil {
		return err
	}
	defer e.close()

	list, err := mods.List(e.cfg)
	if err != nil {
		return err
	}
	renderMods(stdout, list)
	return nil
}

// ---------------------------------------------------------------------------
// conditions
// ---------------------------------------------------------------------------

func runConditions(args []string) error {
	var o options
	fs := newFlagSet("conditions", &o)
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	e, err := openEnv(o)
	if err != nil {
		return err
	}
	defer e.close()

	cat, warns := loader.LoadConditions(e.cfg.Data.ConditionsDir)
	for _, w := range warns {
		e.log.Warn("data file skipped", zap.String("file", w.File), zap.Error(w.Err))
	}
	if fs.NArg() > 0 {
		renderDefinitions(stdout, cat.Search(fs.Arg(0)))
		return nil
	}
	renderCatalog(stdout, cat)
	return nil
}

// ---------------------------------------------------------------------------
// watch
// ---------------------------------------------------------------------------

func runWatch(args []string) error {
	var o options
	fs := newFlagSet("watch", &o)
	debounce := fs.Duration("debounce", watch.DefaultDebounce, "quiet period before a file is processed")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	e, err := openEnv(o)
	if err != nil {
		return err
	}
	defer e.close()

	dir, err := e.target(fs.Args())
	if err != nil {
		return err
	}
	p, err := e.processor()
	if err != nil {
		return err
	}

	sum, err := p.Run(dir)
	if err != nil {
		return err
	}
	e.log.Info("initial run",
		zap.Int("files", sum.FilesProcessed),
		zap.Int("triggers", sum.TriggersGenerated),
		zap.Int("written", sum.FilesWritten))

	w, err := watch.New(watch.Config{
		Dir:      dir,
		Accept:   p.Accepts,
		Debounce: *debounce,
		Logger:   e.log,
		Handle: func(path string) {
			res, err := p.ProcessFile(path)
			if err != nil {
				e.log.Warn("file failed", zap.String("file", path), zap.Error(err))
				return
			}
			e.log.Info("processed",
				zap.String("file", path),
				zap.Int("regions", res.Regions),
				zap.Int("triggers", res.Generated),
				zap.Bool("written", res.Written))
		},
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := w.Start(ctx); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "watching %s (Ctrl-C to stop)\n", dir)
	<-ctx.Done()
	w.Stop()

	if s := w.Stats(); s.Errors > 0 {
		return errors.New("one or more errors during watching")
	}
	return nil
}

func main() {
	if err := dispatch(os.Args[1:]); err != nil {
		log.Fatal(err)
	}
}
