// Package main is the Kakusu CLI entry point.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/hyperjump/kakusu/internal/anonymizer"
	"github.com/hyperjump/kakusu/internal/artifact"
	"github.com/hyperjump/kakusu/internal/cli"
	"github.com/hyperjump/kakusu/internal/config"
	"github.com/hyperjump/kakusu/internal/docid"
	"github.com/hyperjump/kakusu/internal/metrics"
	"github.com/hyperjump/kakusu/internal/models"
	"github.com/hyperjump/kakusu/internal/recognizer"
	"github.com/hyperjump/kakusu/internal/redact"
	"github.com/hyperjump/kakusu/internal/server"
	"github.com/hyperjump/kakusu/internal/watcher"
	"github.com/hyperjump/kakusu/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/kakusu/config.yaml"

// configPathFromEnv returns KAKUSU_CONFIG when set, else the default path.
func configPathFromEnv() string {
	if p := os.Getenv("KAKUSU_CONFIG"); p != "" {
		return p
	}
	return defaultConfigPath
}

// loadConfig loads config from path. When path is the default, config.yaml in the current
// directory wins if present; when neither exists the built-in defaults are used.
// Returns the config and the path that was actually loaded ("" for defaults).
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, err := os.Getwd(); err == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, err := os.Stat(fallback); err == nil {
				path = fallback
			}
		}
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			cfg := config.Default()
			config.ApplyEnv(cfg)
			return cfg, "", nil
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	args := reorderArgs(os.Args[2:])
	var err error
	switch command {
	case "extract":
		err = runExtract(args)
	case "anonymize":
		err = runAnonymize(args)
	case "run":
		err = runRun(args)
	case "preview":
		err = runPreview(args)
	case "reverse":
		err = runReverse(args)
	case "reset":
		err = runReset(args)
	case "server":
		err = runServer(args)
	case "watch":
		err = runWatch(args)
	case "version", "--version", "-v":
		fmt.Printf("kakusu version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		if errors.Is(err, anonymizer.ErrEmptyInput) {
			fmt.Fprintf(os.Stderr, "Nothing to process: %v\n", err)
		} else {
			fmt.Fprintf(os.Stderr, "%s failed: %v\n", command, err)
		}
		os.Exit(1)
	}
}

// reorderArgs moves flags (and their values) that appear after positional arguments to the
// front, since the flag package stops at the first non-flag argument.
func reorderArgs(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

// app holds what every command needs.
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	metrics *metrics.Metrics
	service *anonymizer.Service
	closer  io.Closer
}

func (a *app) Close() {
	if a.closer != nil {
		_ = a.closer.Close()
	}
	_ = a.logger.Sync()
}

type commonFlags struct {
	configPath *string
	debug      *bool
	output     *string
}

func addCommonFlags(fs *flag.FlagSet) commonFlags {
	return commonFlags{
		configPath: fs.String("config", configPathFromEnv(), "config file path (env KAKUSU_CONFIG)"),
		debug:      fs.Bool("debug", false, "enable debug logging"),
		output:     fs.String("output", "text", "output format: text or json"),
	}
}

func (c commonFlags) format() cli.OutputFormat {
	return cli.ParseOutputFormat(*c.output)
}

// newApp loads config and builds the recognizer and service.
func newApp(c commonFlags) (*app, error) {
	cfg, resolved, err := loadConfig(*c.configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	debug := cfg.Debug || *c.debug
	logger, err := utils.NewLogger(debug)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	logger.Debug("config loaded", zap.String("config_path", resolved), zap.Bool("debug", debug))

	rec, err := recognizer.New(&cfg.Recognizer, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize recognizer: %w", err)
	}
	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
	}
	svc := anonymizer.New(cfg, rec, anonymizer.WithLogger(logger), anonymizer.WithMetrics(m))
	return &app{cfg: cfg, logger: logger, metrics: m, service: svc, closer: rec}, nil
}

// signalContext is cancelled on SIGINT/SIGTERM so an interrupted extraction saves its checkpoint.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// progressPrinter reports extraction progress on stderr in text mode.
func progressPrinter(format cli.OutputFormat) func(done, total int, fraction float64) {
	if format == cli.OutputJSON {
		return nil
	}
	return func(done, total int, fraction float64) {
		fmt.Fprintf(os.Stderr, "\rextracting: %3.0f%% (%d/%d)", fraction*100, done, total)
		if fraction >= 1 {
			fmt.Fprintln(os.Stderr)
		}
	}
}

// outputPath returns dir/<base of input><suffix>.
func outputPath(dir, input, suffix string) string {
	base := filepath.Base(input)
	return filepath.Join(dir, strings.TrimSuffix(base, filepath.Ext(base))+suffix)
}

func readMappingFile(path string) (*models.Mapping, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return artifact.ReadMapping(f)
}

func oneFile(fs *flag.FlagSet, usage string) (string, error) {
	if fs.NArg() != 1 {
		return "", fmt.Errorf("usage: kakusu %s", usage)
	}
	return fs.Arg(0), nil
}

func runExtract(args []string) error {
	fs := flag.NewFlagSet("extract", flag.ExitOnError)
	common := addCommonFlags(fs)
	reset := fs.Bool("reset", false, "discard saved progress and start over")
	coverage := fs.Float64("coverage", 0, "percent of chunks to scan this run (default from config)")
	keywords := fs.String("keywords", "", "comma-separated words to always replace")
	template := fs.String("template", "", "path of the edit template CSV (default <output_dir>/<file>.edits.csv)")
	_ = fs.Parse(args)
	input, err := oneFile(fs, "extract [flags] <file>")
	if err != nil {
		return err
	}

	a, err := newApp(common)
	if err != nil {
		return err
	}
	defer a.Close()
	text, err := a.service.ReadDocument(input)
	if err != nil {
		return err
	}
	ctx, stop := signalContext()
	defer stop()

	res, err := a.service.Extract(ctx, anonymizer.ExtractRequest{
		Text:            text,
		Reset:           *reset,
		CoveragePercent: *coverage,
		Progress:        progressPrinter(common.format()),
	})
	if err != nil {
		if res != nil && errors.Is(err, context.Canceled) {
			fmt.Fprintf(os.Stderr, "\ninterrupted; progress saved (%d/%d chunks)\n", res.Result.State.ProcessedChunks, res.Result.Total)
		}
		return err
	}

	path := *template
	if path == "" {
		path = outputPath(a.cfg.Anonymize.OutputDir, input, ".edits.csv")
	}
	kws := append(append([]string(nil), a.cfg.Anonymize.Keywords...), redact.ParseKeywords(*keywords)...)
	edits := anonymizer.Edits(res.Entities, a.service.Categories(), kws)
	if err := writeTemplateFile(a.service, path, edits); err != nil {
		return err
	}
	return cli.WriteExtract(os.Stdout, cli.NewExtractSummary(res, path), common.format())
}

func writeTemplateFile(svc *anonymizer.Service, path string, edits *models.Mapping) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create template: %w", err)
	}
	if err := svc.WriteTemplate(f, edits); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func runAnonymize(args []string) error {
	fs := flag.NewFlagSet("anonymize", flag.ExitOnError)
	common := addCommonFlags(fs)
	mappingPath := fs.String("mapping", "", "edit template CSV from extract (Original,Replacement)")
	keywords := fs.String("keywords", "", "comma-separated words to always replace")
	seed := fs.Int("seed", 0, "first placeholder number (default from config)")
	out := fs.String("out", "", "artifact path (default <output_dir>/<file>.zip)")
	_ = fs.Parse(args)
	input, err := oneFile(fs, "anonymize --mapping <edits.csv> [flags] <file>")
	if err != nil {
		return err
	}
	if *mappingPath == "" && *keywords == "" {
		return errors.New("nothing to replace: pass --mapping or --keywords, or use kakusu run")
	}

	a, err := newApp(common)
	if err != nil {
		return err
	}
	defer a.Close()
	text, err := a.service.ReadDocument(input)
	if err != nil {
		return err
	}
	edits := models.NewMapping()
	if *mappingPath != "" {
		if edits, err = readMappingFile(*mappingPath); err != nil {
			return fmt.Errorf("failed to read mapping: %w", err)
		}
	}
	for _, kw := range redact.ParseKeywords(*keywords) {
		edits.Add(kw)
	}
	anon, err := a.service.Anonymize(text, edits, *seed)
	if err != nil {
		return err
	}
	return writeArtifact(a, input, *out, anon, common.format())
}

func writeArtifact(a *app, input, out string, anon *anonymizer.Anonymized, format cli.OutputFormat) error {
	if out == "" {
		out = outputPath(a.cfg.Anonymize.OutputDir, input, ".zip")
	}
	if err := os.MkdirAll(filepath.Dir(out), 0755); err != nil {
		return err
	}
	if err := a.service.WriteArtifact(out, anon); err != nil {
		return err
	}
	return cli.WriteAnonymize(os.Stdout, out, anon, format)
}

func runRun(args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	common := addCommonFlags(fs)
	reset := fs.Bool("reset", false, "discard saved progress and start over")
	mappingPath := fs.String("mapping", "", "CSV of explicit replacements; other entities get placeholders")
	keywords := fs.String("keywords", "", "comma-separated words to always replace")
	seed := fs.Int("seed", 0, "first placeholder number (default from config)")
	out := fs.String("out", "", "artifact path (default <output_dir>/<file>.zip)")
	_ = fs.Parse(args)
	input, err := oneFile(fs, "run [flags] <file>")
	if err != nil {
		return err
	}

	a, err := newApp(common)
	if err != nil {
		return err
	}
	defer a.Close()
	text, err := a.service.ReadDocument(input)
	if err != nil {
		return err
	}
	var overrides *models.Mapping
	if *mappingPath != "" {
		if overrides, err = readMappingFile(*mappingPath); err != nil {
			return fmt.Errorf("failed to read mapping: %w", err)
		}
	}
	ctx, stop := signalContext()
	defer stop()
	res, err := a.service.Run(ctx, anonymizer.RunRequest{
		Text:      text,
		Reset:     *reset,
		Keywords:  redact.ParseKeywords(*keywords),
		Overrides: overrides,
		Seed:      *seed,
		Progress:  progressPrinter(common.format()),
	})
	if err != nil {
		return err
	}
	return writeArtifact(a, input, *out, res.Anonymized, common.format())
}

func runPreview(args []string) error {
	fs := flag.NewFlagSet("preview", flag.ExitOnError)
	common := addCommonFlags(fs)
	mappingPath := fs.String("mapping", "", "edit template CSV; when empty, entities are extracted first")
	keywords := fs.String("keywords", "", "comma-separated words to always replace")
	seed := fs.Int("seed", 0, "first placeholder number (default from config)")
	percent := fs.Float64("percent", 0, "leading percent of the text to show (default from config)")
	_ = fs.Parse(args)
	input, err := oneFile(fs, "preview [flags] <file>")
	if err != nil {
		return err
	}

	a, err := newApp(common)
	if err != nil {
		return err
	}
	defer a.Close()
	text, err := a.service.ReadDocument(input)
	if err != nil {
		return err
	}
	kws := redact.ParseKeywords(*keywords)
	var edits *models.Mapping
	if *mappingPath != "" {
		if edits, err = readMappingFile(*mappingPath); err != nil {
			return fmt.Errorf("failed to read mapping: %w", err)
		}
		for _, kw := range kws {
			edits.Add(kw)
		}
	} else {
		ctx, stop := signalContext()
		defer stop()
		res, err := a.service.Extract(ctx, anonymizer.ExtractRequest{Text: text, Progress: progressPrinter(common.format())})
		if err != nil {
			return err
		}
		kws = append(append([]string(nil), a.cfg.Anonymize.Keywords...), kws...)
		edits = anonymizer.Edits(res.Entities, a.service.Categories(), kws)
	}
	return cli.WritePreview(os.Stdout, a.service.Preview(text, edits, *seed, *percent), common.format())
}

func runReverse(args []string) error {
	fs := flag.NewFlagSet("reverse", flag.ExitOnError)
	common := addCommonFlags(fs)
	mappingPath := fs.String("mapping", "", "mapping CSV (either column order); not needed for an artifact ZIP")
	out := fs.String("out", "", "write the restored text here instead of stdout")
	_ = fs.Parse(args)
	input, err := oneFile(fs, "reverse [--mapping <mappings.csv>] <artifact.zip|text file>")
	if err != nil {
		return err
	}

	a, err := newApp(common)
	if err != nil {
		return err
	}
	defer a.Close()

	var restored string
	if *mappingPath == "" {
		if restored, err = a.service.ReverseArtifact(input); err != nil {
			return err
		}
	} else {
		m, err := readMappingFile(*mappingPath)
		if err != nil {
			return fmt.Errorf("failed to read mapping: %w", err)
		}
		text, err := a.service.ReadDocument(input)
		if err != nil {
			return err
		}
		if restored, err = a.service.Reverse(text, m); err != nil {
			return err
		}
	}
	if *out == "" {
		_, err = io.WriteString(os.Stdout, restored)
		return err
	}
	return os.WriteFile(*out, []byte(restored), 0644)
}

func runReset(args []string) error {
	fs := flag.NewFlagSet("reset", flag.ExitOnError)
	common := addCommonFlags(fs)
	key := fs.String("key", "", "checkpoint key (default derived from the file's text)")
	_ = fs.Parse(args)

	a, err := newApp(common)
	if err != nil {
		return err
	}
	defer a.Close()
	k := *key
	if k == "" {
		input, err := oneFile(fs, "reset [--key <key>] <file>")
		if err != nil {
			return err
		}
		text, err := a.service.ReadDocument(input)
		if err != nil {
			return err
		}
		k = docid.FromText(text)
	}
	if !docid.Valid(k) {
		return fmt.Errorf("invalid key %q", k)
	}
	cleared, err := a.service.Reset(context.Background(), k)
	if err != nil {
		return err
	}
	return cli.WriteReset(os.Stdout, k, cleared, common.format())
}

func startWatcher(ctx context.Context, a *app, inbox, outbox string) (*watcher.Watcher, error) {
	in := watcher.NewInbox(a.service, outbox, a.logger)
	w := watcher.NewWatcher(inbox, a.cfg.Watch.Extensions, in.Process, watcher.WithLogger(a.logger))
	if err := w.Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start watcher: %w", err)
	}
	w.SyncExistingFiles()
	a.logger.Info("watching inbox", zap.String("inbox", inbox), zap.String("outbox", outbox))
	return w, nil
}

func runServer(args []string) error {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	common := addCommonFlags(fs)
	_ = fs.Parse(args)

	a, err := newApp(common)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signalContext()
	defer stop()
	if a.cfg.Watch.Inbox != "" && a.cfg.Watch.Outbox != "" {
		w, err := startWatcher(ctx, a, a.cfg.Watch.Inbox, a.cfg.Watch.Outbox)
		if err != nil {
			return err
		}
		defer w.Stop()
	}

	srv := server.NewServer(a.service, a.cfg, a.metrics, a.logger)
	errc := make(chan error, 1)
	go func() { errc <- srv.Start() }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	a.logger.Info("shutting down")
	shutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Stop(shutdown)
}

func runWatch(args []string) error {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	common := addCommonFlags(fs)
	inbox := fs.String("inbox", "", "directory to watch (default from config)")
	outbox := fs.String("outbox", "", "directory for artifacts (default from config)")
	_ = fs.Parse(args)

	a, err := newApp(common)
	if err != nil {
		return err
	}
	defer a.Close()
	in, out := *inbox, *outbox
	if in == "" {
		in = a.cfg.Watch.Inbox
	}
	if out == "" {
		out = a.cfg.Watch.Outbox
	}
	if in == "" || out == "" {
		return errors.New("watch needs an inbox and an outbox (flags or watch.inbox / watch.outbox)")
	}

	ctx, stop := signalContext()
	defer stop()
	w, err := startWatcher(ctx, a, in, out)
	if err != nil {
		return err
	}
	<-ctx.Done()
	w.Stop()
	a.logger.Info("watcher stopped")
	return nil
}

func printUsage() {
	fmt.Println(`kakusu - Reversible text anonymizer

Usage:
  kakusu extract [flags] <file>      Find people and companies; write an edit template CSV
  kakusu anonymize [flags] <file>    Replace entities using an edited template; write an artifact ZIP
  kakusu run [flags] <file>          Extract and anonymize in one step with automatic placeholders
  kakusu preview [flags] <file>      Show the replacements in the first part of the text
  kakusu reverse [flags] <file>      Restore the original text from an artifact ZIP or text + mapping
  kakusu reset [flags] <file>        Discard saved extraction progress
  kakusu server [flags]              Start the HTTP server
  kakusu watch [flags]               Anonymize files dropped into an inbox directory
  kakusu version                     Show version
  kakusu help                        Show this help

Common Flags:
  --config string    Config file path (default: $KAKUSU_CONFIG or /usr/local/etc/kakusu/config.yaml)
  --debug            Enable debug logging
  --output string    Output format: text or json (default: text)

Extract Flags:
  --reset            Discard saved progress and start over
  --coverage float   Percent of chunks to scan this run
  --keywords string  Comma-separated words to always replace
  --template string  Where to write the edit template CSV

Anonymize / Run Flags:
  --mapping string   Edit template CSV (run: explicit replacements only)
  --keywords string  Comma-separated words to always replace
  --seed int         First placeholder number
  --out string       Artifact path
  --reset            (run) Discard saved progress and start over

Preview Flags:
  --mapping string   Edit template CSV (default: extract first)
  --percent float    Leading percent of the text to show

Reverse Flags:
  --mapping string   Mapping CSV for a text file (not needed for an artifact ZIP)
  --out string       Write the restored text to a file

Examples:
  kakusu extract report.docx
  kakusu anonymize --mapping report.edits.csv report.docx
  kakusu run --keywords "Project Falcon" report.pdf
  kakusu preview --percent 10 report.txt
  kakusu reverse report.zip
  kakusu reverse --mapping mappings.csv modified_text.txt
  kakusu reset report.docx`)
}
