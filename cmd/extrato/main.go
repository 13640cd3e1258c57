package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/solufin/extrato/internal/config"
	"github.com/solufin/extrato/internal/importer"
	"github.com/solufin/extrato/internal/logging"
	"github.com/solufin/extrato/internal/registry"
	"github.com/solufin/extrato/internal/report"
	"github.com/solufin/extrato/internal/rules"
	"github.com/solufin/extrato/internal/scanner"
	"github.com/solufin/extrato/internal/server"
	"github.com/solufin/extrato/internal/store/sqlite"
	"github.com/solufin/extrato/internal/ui"
)

const version = "0.1.0"

var (
	versionFlag = flag.Bool("version", false, "Show version")

	// One-shot import flags
	inputDir   = flag.String("input", "", "Statement file or directory to import")
	owner      = flag.String("owner", "", "Owner id the transactions belong to (required with -input)")
	dbPath     = flag.String("db", "", "SQLite database path (default from DATABASE_PATH)")
	rulesFile  = flag.String("rules", "", "Category rules YAML file (default: embedded rules)")
	dryRun     = flag.Bool("dry-run", false, "Parse and categorize without writing to the database")
	verbose    = flag.Bool("verbose", false, "Show detailed per-file logs")
	outputFile = flag.String("output", "", "Write a JSON import report to this file (default: stdout summary only)")

	// Server flags
	serve = flag.Bool("serve", false, "Run the HTTP import API instead of a one-shot import")
	addr  = flag.String("addr", "", "Listen address for -serve (default :PORT from env)")
)

func main() {
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, `extrato - bank statement import and categorization

Usage:
  extrato [flags]

Flags:
`)
		flag.PrintDefaults()
		fmt.Fprint(os.Stderr, `
Examples:
  # Import a directory of statements into a local database
  extrato -input ~/extratos -owner joao -db extrato.db

  # Dry run with a custom rule table
  extrato -input fatura.csv -owner joao -rules rules.yaml -dry-run

  # Run the HTTP API backed by Firestore
  extrato -serve -addr :8080

`)
	}

	flag.Parse()

	if *versionFlag {
		fmt.Printf("extrato version %s\n", version)
		os.Exit(0)
	}

	cfg := config.Load()

	if *serve {
		if err := runServer(cfg); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if *inputDir == "" {
		fmt.Fprintf(os.Stderr, "Error: -input flag is required (or use -serve)\n\n")
		flag.Usage()
		os.Exit(1)
	}
	if *owner == "" {
		fmt.Fprintf(os.Stderr, "Error: -owner flag is required\n\n")
		flag.Usage()
		os.Exit(1)
	}

	if err := runImport(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runImport(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if !*verbose {
		ui.Header("Importing Bank Statements")
		ui.Step(1, 3, "Scanning for statement files")
	}

	files, err := scanner.New(*inputDir).Scan()
	if err != nil {
		return fmt.Errorf("failed to scan %s: %w", *inputDir, err)
	}
	if len(files) == 0 {
		return fmt.Errorf("no statement files found in %s (supported: .csv, .ofx, .qfx)", *inputDir)
	}
	if *verbose {
		fmt.Fprintf(os.Stderr, "Found %d statement files\n", len(files))
		for _, f := range files {
			fmt.Fprintf(os.Stderr, "  - %s\n", f)
		}
	} else {
		ui.Success(fmt.Sprintf("Found %d statement files", len(files)))
	}

	if !*verbose {
		ui.Step(2, 3, "Loading category rules")
	}
	rulesPath := *rulesFile
	if rulesPath == "" {
		rulesPath = cfg.RulesPath
	}
	engine, err := rules.Load(rulesPath)
	if err != nil {
		return err
	}
	if *verbose {
		fmt.Fprintf(os.Stderr, "Loaded %d category rules\n", len(engine.Rules()))
	}

	path := *dbPath
	if path == "" {
		path = cfg.DatabasePath
	}
	st, err := sqlite.Open(path)
	if err != nil {
		return err
	}
	defer st.Close()

	log := logging.Nop()
	if *verbose {
		log = logging.New(cfg.LogLevel)
	}
	categorizer := rules.NewCategorizer(engine, rules.StoreLookup(st))
	imp := importer.New(st, registry.New(), categorizer, log, importer.Options{
		MaxRows: cfg.MaxRows,
		DryRun:  *dryRun,
	})

	if !*verbose {
		ui.Step(3, 3, "Importing statements")
	}

	rep := report.New(*owner, *dryRun)
	failed := 0
	for i, file := range files {
		if *verbose {
			fmt.Fprintf(os.Stderr, "  Importing %s\n", file)
		} else {
			fmt.Fprintf(os.Stderr, "\r  Progress: %d/%d files...", i+1, len(files))
		}

		content, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", file, err)
		}

		summary, err := imp.RunFile(ctx, *owner, file, content)
		if err != nil {
			// A bad file should not sink the rest of the batch.
			rep.AddFailure(file, err)
			failed++
			if *verbose {
				fmt.Fprintf(os.Stderr, "  FAILED %s: %v\n", file, err)
			}
			continue
		}
		rep.AddResult(file, summary)
	}
	if !*verbose {
		fmt.Fprintf(os.Stderr, "\r  Progress: %d/%d files - done\n", len(files), len(files))
	}

	if *outputFile != "" {
		if err := rep.WriteToFile(*outputFile); err != nil {
			return err
		}
		ui.Info(fmt.Sprintf("Report written to %s", *outputFile))
	}

	if *dryRun {
		ui.Warning("Dry run: nothing was written to the database")
	}
	ui.Success(fmt.Sprintf("Imported %d transactions (%d duplicates skipped, %d rows failed)",
		rep.Inserted, rep.Duplicates, rep.FailedRows))
	if failed > 0 {
		ui.Error(fmt.Sprintf("%d file(s) could not be imported", failed))
		return fmt.Errorf("%d of %d files failed", failed, len(files))
	}
	return nil
}

func runServer(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := logging.New(cfg.LogLevel)

	srv, err := server.New(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	defer srv.Close()

	listenAddr := *addr
	if listenAddr == "" {
		listenAddr = ":" + cfg.Port
	}

	httpServer := &http.Server{
		Addr:    listenAddr,
		Handler: srv.Handler(cfg),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", listenAddr).Msg("listening")
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		log.Info().Msg("shutting down")
		return httpServer.Shutdown(context.Background())
	}
}
