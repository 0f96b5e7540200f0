package main

import (
	"errors"
	"fmt"
	"io"
	"log"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"tripload/internal/config"
	"tripload/internal/pipeline"
	"tripload/internal/probe"
)

func newRootCmd(stdout, stderr io.Writer, deps appDeps) *cobra.Command {
	root := &cobra.Command{
		Use:   "tripload",
		Short: "Load taxi trip files into a relational table",
		Long: `tripload scans a directory for trip files, normalizes their records,
writes a CSV cache artifact per file and inserts the rows in batches.

Exit Codes:
  0  - Run completed (failed files and batches are logged)
  1  - Fatal error (configuration, connection, mapping)
  2  - CLI usage error`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args: func(_ *cobra.Command, args []string) error {
			if len(args) > 0 {
				return usageError{fmt.Errorf("unknown command %q", args[0])}
			}
			return nil
		},
		RunE: func(*cobra.Command, []string) error {
			return usageError{errors.New("missing command (load, validate, pipelines, probe)")}
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError{err}
	})

	root.PersistentFlags().String("config", "", "YAML file with pipeline definitions (overrides and extends the presets)")
	root.PersistentFlags().BoolP("verbose", "v", false, "enable verbose logs")

	root.AddCommand(
		newLoadCmd(stdout, stderr, deps),
		newValidateCmd(stdout, stderr),
		newPipelinesCmd(stdout),
		newProbeCmd(stdout, stderr),
	)
	return root
}

func noArgs(cmd *cobra.Command, args []string) error {
	if err := cobra.NoArgs(cmd, args); err != nil {
		return usageError{err}
	}
	return nil
}

type loadFlags struct {
	pipeline       string
	insertMethod   string
	singleRow      bool
	batchSize      int
	metricsBackend string
}

func newLoadCmd(stdout, stderr io.Writer, deps appDeps) *cobra.Command {
	var f loadFlags
	cmd := &cobra.Command{
		Use:   "load",
		Short: "Run one pipeline",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if strings.TrimSpace(f.pipeline) == "" {
				return usageError{errors.New("load: --pipeline is required")}
			}
			switch f.insertMethod {
			case "", config.InsertExecutemany, config.InsertInfile:
			default:
				return usageError{fmt.Errorf("load: --insert-method %q (want %s|%s)", f.insertMethod, config.InsertExecutemany, config.InsertInfile)}
			}
			return runLoad(cmd, f, stdout, stderr, deps)
		},
	}
	cmd.Flags().StringVar(&f.pipeline, "pipeline", "", "pipeline name (see 'tripload pipelines')")
	cmd.Flags().StringVar(&f.insertMethod, "insert-method", "", "executemany|infile (default from the pipeline, else executemany)")
	cmd.Flags().BoolVar(&f.singleRow, "single-row", false, "insert one row per transaction and stop at the first failing row")
	cmd.Flags().IntVar(&f.batchSize, "batch-size", 0, "rows per batch (default from the pipeline, else 1000)")
	cmd.Flags().StringVar(&f.metricsBackend, "metrics-backend", "none", "metrics backend: none|datadog")
	return cmd
}

func runLoad(cmd *cobra.Command, f loadFlags, stdout, stderr io.Writer, deps appDeps) error {
	ctx := cmd.Context()
	verbose, _ := cmd.Flags().GetBool("verbose")
	cfgPath, _ := cmd.Flags().GetString("config")

	if err := deps.loadDotenv(); err != nil && verbose {
		fmt.Fprintf(stderr, "env: no .env loaded: %v\n", err)
	}

	pipelines, err := config.LoadPipelines(cfgPath)
	if err != nil {
		return fmt.Errorf("load pipelines: %w", err)
	}
	p, err := config.Find(pipelines, f.pipeline)
	if err != nil {
		return err
	}
	if f.insertMethod != "" {
		p.InsertMethod = f.insertMethod
	}
	if f.singleRow {
		p.SingleRow = true
	}
	if cmd.Flags().Changed("batch-size") {
		p.BatchSize = f.batchSize
	}

	issues := config.ValidatePipeline(p)
	for _, iss := range issues {
		fmt.Fprintln(stderr, iss)
	}
	if config.HasErrors(issues) {
		return fmt.Errorf("pipeline %s is invalid", p.Name)
	}

	cfg := config.FromEnv(deps.lookupEnv)
	sc, err := cfg.Database.Storage()
	if err != nil {
		return err
	}

	runID := deps.newRunID()
	logger := log.New(stderr, "", log.LstdFlags)
	logger.Printf("run=%s pipeline=%s table=%s insert_method=%s batch_size=%d", runID, p.Name, p.Table, p.InsertMethod, p.BatchSize)
	if verbose {
		logger.Printf("run=%s target %s", runID, cfg.Database)
	}

	mc := cfg.Metrics
	mc.Tags = append(slices.Clone(mc.Tags), "run:"+runID)
	cleanup, err := deps.initMetrics(ctx, p.Name, f.metricsBackend, mc)
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}
	defer cleanup()

	repo, err := deps.openRepo(ctx, sc)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer func() {
		if err := repo.Close(); err != nil {
			logger.Printf("run=%s close connection: %v", runID, err)
		}
	}()

	r, err := pipeline.Build(p, repo, logger)
	if err != nil {
		return err
	}
	sum, err := r.Run(ctx)
	printSummary(stdout, p.Name, runID, sum)
	if err != nil {
		return fmt.Errorf("run: %w", err)
	}
	return nil
}

func printSummary(w io.Writer, name, runID string, s pipeline.Summary) {
	fmt.Fprintf(w, "pipeline=%s run=%s files_found=%d processed=%d skipped=%d empty=%d failed=%d\n",
		name, runID, s.FilesFound, s.FilesProcessed, s.FilesSkipped, s.FilesEmpty, s.FilesFailed)
	fmt.Fprintf(w, "records_read=%d dropped=%d rows_inserted=%d batches_ok=%d batches_failed=%d row_failures=%d\n",
		s.RecordsRead, s.RecordsDropped, s.RowsInserted, s.BatchesOK, s.BatchesFailed, s.RowFailures)

	if len(s.BulkCommands) == 0 {
		return
	}
	fmt.Fprintln(w, "\nAll LOAD DATA INFILE commands:")
	for _, c := range s.BulkCommands {
		fmt.Fprintf(w, "\n%s\n", c)
	}
}

func newValidateCmd(stdout, stderr io.Writer) *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check pipeline definitions without touching the database",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfgPath, _ := cmd.Flags().GetString("config")
			pipelines, err := config.LoadPipelines(cfgPath)
			if err != nil {
				return fmt.Errorf("load pipelines: %w", err)
			}
			if name != "" {
				p, err := config.Find(pipelines, name)
				if err != nil {
					return err
				}
				pipelines = []config.Pipeline{p}
			}

			invalid := 0
			for _, p := range pipelines {
				issues := config.ValidatePipeline(p.WithDefaults())
				for _, iss := range issues {
					fmt.Fprintf(stderr, "%s: %s\n", p.Name, iss)
				}
				if config.HasErrors(issues) {
					invalid++
					continue
				}
				fmt.Fprintf(stdout, "%s: ok\n", p.Name)
			}
			if invalid > 0 {
				return fmt.Errorf("%d pipeline(s) invalid", invalid)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "pipeline", "", "validate only this pipeline")
	return cmd
}

func newPipelinesCmd(stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "pipelines",
		Short: "List the available pipelines",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfgPath, _ := cmd.Flags().GetString("config")
			pipelines, err := config.LoadPipelines(cfgPath)
			if err != nil {
				return fmt.Errorf("load pipelines: %w", err)
			}

			tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tSOURCE\tTABLE\tCACHE\tPOLICY")
			for _, p := range pipelines {
				p = p.WithDefaults()
				src := p.Source.Dir + "/" + p.Source.Pattern
				if p.Source.Filter != "" {
					src += " ~ " + p.Source.Filter
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", p.Name, src, p.Table, p.Cache.Dir, p.Cache.Policy)
			}
			return tw.Flush()
		},
	}
}

func newProbeCmd(stdout, stderr io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "probe FILE...",
		Short: "Summarize source files without loading them",
		Args: func(cmd *cobra.Command, args []string) error {
			if err := cobra.MinimumNArgs(1)(cmd, args); err != nil {
				return usageError{err}
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			failed := 0
			for _, path := range args {
				rep, err := probe.File(cmd.Context(), path)
				if err != nil {
					failed++
					fmt.Fprintln(stderr, err)
					continue
				}
				if err := rep.Write(stdout); err != nil {
					return err
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d file(s) could not be read", failed, len(args))
			}
			return nil
		},
	}
}
