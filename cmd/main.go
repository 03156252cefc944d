package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rojenarda/electricity-data-fetching-tr/internal/config"
	"github.com/rojenarda/electricity-data-fetching-tr/internal/dataset"
	"github.com/rojenarda/electricity-data-fetching-tr/internal/epias"
	"github.com/rojenarda/electricity-data-fetching-tr/internal/exchange"
	"github.com/rojenarda/electricity-data-fetching-tr/internal/holiday"
	"github.com/rojenarda/electricity-data-fetching-tr/internal/merge"
	"github.com/rojenarda/electricity-data-fetching-tr/internal/metrics"
	"github.com/rojenarda/electricity-data-fetching-tr/internal/pipeline"
	"github.com/rojenarda/electricity-data-fetching-tr/internal/recorder"
	"github.com/rojenarda/electricity-data-fetching-tr/internal/scheduler"
	"github.com/rojenarda/electricity-data-fetching-tr/internal/series"
	"github.com/spf13/cobra"
)

var (
	configFile     string
	envFile        string
	datasetDir     string
	timezone       string
	accessKey      string
	parquetEnabled bool
	parquetDir     string
	sqlitePath     string
	fromDate       string
	toDate         string
	filePath       string
	exportDir      string
	configOut      string
	replaceLastDay bool
	historyLimit   int
	verbose        bool
	version        bool
)

var version_string = "0.1.1"

func main() {
	// Define the root command
	rootCmd := &cobra.Command{
		Use:   "elecdata",
		Short: "A utility to build hourly Turkish electricity market datasets",
		Long: `A standalone utility for fetching hourly electricity market series from EPIAS,
merging them with calendar features and USD-normalised prices, and keeping the
resulting CSV dataset up to date.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if verbose {
				log.SetFlags(log.LstdFlags | log.Lshortfile)
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if version {
				fmt.Printf("elecdata version %s\n", version_string)
				return nil
			}
			return cmd.Help()
		},
	}

	// Define flags
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "config.yaml", "Path to config file")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Path to a .env file with secrets")
	rootCmd.PersistentFlags().StringVar(&datasetDir, "dataset-dir", "", "Directory for dataset files")
	rootCmd.PersistentFlags().StringVar(&timezone, "timezone", "", "Market timezone (default Europe/Istanbul)")
	rootCmd.PersistentFlags().StringVar(&accessKey, "access-key", "", "Exchange rates API access key")
	rootCmd.PersistentFlags().BoolVar(&parquetEnabled, "parquet", false, "Convert the dataset to Parquet after each run")
	rootCmd.PersistentFlags().StringVar(&parquetDir, "parquet-dir", "", "Output directory for Parquet files")
	rootCmd.PersistentFlags().StringVar(&sqlitePath, "sqlite", "", "SQLite file for the run history")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "Enable verbose logging")
	rootCmd.Flags().BoolVar(&version, "version", false, "Print version information")

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Fetch a date range into a new dataset",
		RunE:  runCreate,
	}
	createCmd.Flags().StringVar(&fromDate, "from", "", "Start date (YYYY-MM-DD or YYYY-MM-DD HH:MM)")
	createCmd.Flags().StringVar(&toDate, "to", "", "End date (YYYY-MM-DD or YYYY-MM-DD HH:MM), a date includes its last hour")
	createCmd.Flags().StringVar(&filePath, "file", "", "Dataset file (default <dataset-dir>/dataset_electricity_<from>_<to>.csv)")
	createCmd.MarkFlagRequired("from")
	createCmd.MarkFlagRequired("to")

	updateCmd := &cobra.Command{
		Use:   "update",
		Short: "Append the newest hours to an existing dataset",
		RunE:  runUpdate,
	}
	updateCmd.Flags().StringVar(&filePath, "file", "", "Dataset file to update")
	updateCmd.Flags().BoolVar(&replaceLastDay, "replace-last-day", false, "Refetch the last 24 rows before appending")
	updateCmd.MarkFlagRequired("file")

	scheduleCmd := &cobra.Command{
		Use:   "schedule",
		Short: "Update a dataset on the configured cron schedule",
		RunE:  runSchedule,
	}
	scheduleCmd.Flags().StringVar(&filePath, "file", "", "Dataset file to keep updated (default schedule.file)")

	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Convert a dataset to monthly Parquet files",
		RunE:  runExport,
	}
	exportCmd.Flags().StringVar(&filePath, "file", "", "Dataset file to convert")
	exportCmd.Flags().StringVar(&exportDir, "out", "", "Output directory (default dataset.parquet_dir)")
	exportCmd.MarkFlagRequired("file")

	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent runs from the run history",
		RunE:  runHistory,
	}
	historyCmd.Flags().IntVar(&historyLimit, "limit", 10, "Number of runs to show")

	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration helpers",
	}
	configInitCmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default configuration",
		RunE:  runConfigInit,
	}
	configInitCmd.Flags().StringVar(&configOut, "out", "config.yaml", "Where to write the configuration")
	configCmd.AddCommand(configInitCmd)

	rootCmd.AddCommand(createCmd, updateCmd, scheduleCmd, exportCmd, historyCmd, configCmd)

	// Execute the command
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads the configuration and applies command-line overrides
func loadConfig(requireExchange bool) (config.Config, *time.Location, error) {
	if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
		log.Printf("Warning: could not load %s: %v", envFile, err)
	}

	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("error loading configuration: %w", err)
	}

	// Override configuration with command-line flags
	if datasetDir != "" {
		cfg.Dataset.Dir = datasetDir
	}
	if timezone != "" {
		cfg.Market.Timezone = timezone
	}
	if accessKey != "" {
		cfg.Exchange.AccessKey = accessKey
	}
	if parquetEnabled {
		cfg.Dataset.ParquetEnabled = true
	}
	if parquetDir != "" {
		cfg.Dataset.ParquetDir = parquetDir
	}
	if sqlitePath != "" {
		cfg.Recorder.SQLitePath = sqlitePath
	}

	if err := cfg.Validate(requireExchange); err != nil {
		return config.Config{}, nil, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, loc, nil
}

// signalContext is cancelled on SIGINT or SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigchan := make(chan os.Signal, 1)
	signal.Notify(sigchan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigchan:
			log.Printf("Received signal %v, finishing the current window before shutdown...", sig)
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, func() {
		signal.Stop(sigchan)
		cancel()
	}
}

func openRecorder(cfg *config.Config) (recorder.Recorder, error) {
	if cfg.Recorder.SQLitePath == "" {
		return recorder.NewNoopRecorder(), nil
	}
	rec, err := recorder.NewSQLiteRecorder(cfg.Recorder.SQLitePath)
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// buildPipeline wires the market client, series catalog, merger and writer
func buildPipeline(cfg *config.Config, loc *time.Location, rec recorder.Recorder) (*pipeline.Pipeline, error) {
	client := epias.NewClient(time.Duration(cfg.Market.RequestTimeoutSeconds) * time.Second)

	defs, ratios := cfg.SeriesDefinitions()
	catalog, err := series.NewCatalog(defs, ratios, client, loc, series.WithPublishHour(cfg.Market.PublishHour))
	if err != nil {
		return nil, fmt.Errorf("invalid series catalog: %w", err)
	}
	fetchers, err := catalog.Fetchers(cfg.Dataset.Series)
	if err != nil {
		return nil, err
	}

	holidays, err := holiday.NewTurkey(cfg.Calendar.ExtraHolidays)
	if err != nil {
		return nil, err
	}

	merger := merge.NewMerger(fetchers, holidays, merge.Currency{
		Base:    cfg.Dataset.Currency.BaseColumn,
		Target:  cfg.Dataset.Currency.TargetColumn,
		Convert: cfg.Dataset.Currency.Convert,
	})

	opts := []pipeline.Option{
		pipeline.WithWindowSpan(cfg.WindowSpan()),
		pipeline.WithRecorder(rec),
	}
	if cfg.ConvertsCurrency() {
		rates, err := exchange.NewClient(cfg.Exchange.BaseURL, cfg.Exchange.AccessKey, cfg.Exchange.ShiftDays,
			time.Duration(cfg.Exchange.RequestTimeoutSeconds)*time.Second)
		if err != nil {
			return nil, err
		}
		opts = append(opts, pipeline.WithResolverFactory(func() merge.FactorResolver {
			return exchange.NewResolver(rates, cfg.Exchange.BaseCurrency, cfg.Exchange.TargetCurrency)
		}))
	}
	if cfg.Dataset.ParquetEnabled {
		opts = append(opts, pipeline.WithParquetExport(cfg.Dataset.ParquetDir))
	}

	return pipeline.New(merger, dataset.CSVWriter{}, loc, opts...), nil
}

// parseDate accepts a date or a date with hour in loc. A bare date used as
// an end bound covers the whole day.
func parseDate(value string, loc *time.Location, endOfDay bool) (time.Time, error) {
	value = strings.TrimSpace(value)
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.In(loc), nil
	}
	if t, err := time.ParseInLocation("2006-01-02", value, loc); err == nil {
		if endOfDay {
			t = t.Add(23 * time.Hour)
		}
		return t, nil
	}
	t, err := dataset.ParseTimestamp(value, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, use YYYY-MM-DD or YYYY-MM-DD HH:MM", value)
	}
	return t, nil
}

func runCreate(cmd *cobra.Command, args []string) error {
	cfg, loc, err := loadConfig(true)
	if err != nil {
		return err
	}

	start, err := parseDate(fromDate, loc, false)
	if err != nil {
		return err
	}
	end, err := parseDate(toDate, loc, true)
	if err != nil {
		return err
	}

	path := filePath
	if path == "" {
		path = filepath.Join(cfg.Dataset.Dir, fmt.Sprintf("dataset_electricity_%s_%s.csv",
			start.Format("2006-01-02"), end.Format("2006-01-02")))
	}

	rec, err := openRecorder(&cfg)
	if err != nil {
		return err
	}
	defer rec.Close()

	p, err := buildPipeline(&cfg, loc, rec)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	log.Printf("Creating %s for %s - %s", path, start.Format("2006-01-02 15:04"), end.Format("2006-01-02 15:04"))
	if err := p.Run(ctx, start, end, path, false); err != nil {
		return fmt.Errorf("failed to create dataset: %w", err)
	}
	log.Println("Dataset created successfully")
	return nil
}

func runUpdate(cmd *cobra.Command, args []string) error {
	cfg, loc, err := loadConfig(true)
	if err != nil {
		return err
	}

	rec, err := openRecorder(&cfg)
	if err != nil {
		return err
	}
	defer rec.Close()

	p, err := buildPipeline(&cfg, loc, rec)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	if err := pipeline.NewUpdater(p, filePath, loc, nil).Update(ctx, replaceLastDay); err != nil {
		return fmt.Errorf("failed to update dataset: %w", err)
	}
	log.Println("Dataset update completed successfully")
	return nil
}

func runSchedule(cmd *cobra.Command, args []string) error {
	cfg, loc, err := loadConfig(true)
	if err != nil {
		return err
	}
	path := filePath
	if path == "" {
		path = cfg.Schedule.File
	}

	rec, err := openRecorder(&cfg)
	if err != nil {
		return err
	}
	defer rec.Close()

	p, err := buildPipeline(&cfg, loc, rec)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	metrics.Init()
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{Addr: cfg.Metrics.ListenAddr, Handler: mux}
	go func() {
		log.Printf("Serving metrics on %s/metrics", cfg.Metrics.ListenAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("Metrics server stopped: %v", err)
		}
	}()
	defer func() {
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		server.Shutdown(shutdownCtx)
	}()

	sched := scheduler.NewScheduler(ctx, loc, pipeline.NewUpdater(p, path, loc, nil), cfg.Schedule.ReplaceLastDay)
	if err := sched.Register(cfg.Schedule.Cron); err != nil {
		return err
	}
	if cfg.Schedule.RunOnStart {
		sched.RunNow()
	}
	sched.Start()
	log.Printf("Updating %s on schedule %q", path, cfg.Schedule.Cron)

	<-ctx.Done()
	sched.Stop()
	return nil
}

func runExport(cmd *cobra.Command, args []string) error {
	cfg, loc, err := loadConfig(false)
	if err != nil {
		return err
	}
	dir := exportDir
	if dir == "" {
		dir = cfg.Dataset.ParquetDir
	}

	files, err := dataset.ExportParquet(filePath, dir, loc)
	if err != nil {
		return fmt.Errorf("failed to export dataset: %w", err)
	}
	log.Printf("Wrote %d parquet files to %s", len(files), dir)
	return nil
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig(false)
	if err != nil {
		return err
	}
	if cfg.Recorder.SQLitePath == "" {
		return fmt.Errorf("no run history configured, set recorder.sqlite_path or --sqlite")
	}

	rec, err := recorder.NewSQLiteRecorder(cfg.Recorder.SQLitePath)
	if err != nil {
		return err
	}
	defer rec.Close()

	runs, err := rec.RecentRuns(historyLimit)
	if err != nil {
		return err
	}
	for _, r := range runs {
		line := fmt.Sprintf("%s  %-9s  %-6s  %s - %s  rows=%d windows=%d  %s",
			r.StartedAt.Format("2006-01-02 15:04:05"), r.Status, r.Mode,
			r.RangeStart.Format("2006-01-02 15:04"), r.RangeEnd.Format("2006-01-02 15:04"),
			r.Rows, r.Windows, r.Path)
		if r.Error != "" {
			line += "  error: " + r.Error
		}
		fmt.Println(line)
	}
	return nil
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	if _, err := os.Stat(configOut); err == nil {
		return fmt.Errorf("%s already exists", configOut)
	}
	cfg := config.Default()
	if err := cfg.Save(configOut); err != nil {
		return err
	}
	fmt.Printf("Wrote default configuration to %s\n", configOut)
	return nil
}
