package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/TobiSchelling/habrpipe/internal/artifact"
	"github.com/TobiSchelling/habrpipe/internal/config"
	"github.com/TobiSchelling/habrpipe/internal/database"
	"github.com/TobiSchelling/habrpipe/internal/extract"
	"github.com/TobiSchelling/habrpipe/internal/load"
	"github.com/TobiSchelling/habrpipe/internal/normalize"
	"github.com/TobiSchelling/habrpipe/internal/pgstore"
	"github.com/TobiSchelling/habrpipe/internal/pipeline"
	"github.com/TobiSchelling/habrpipe/internal/report"
	"github.com/TobiSchelling/habrpipe/internal/server"
	"github.com/TobiSchelling/habrpipe/internal/store"
)

var version = "dev"

var (
	verbose    bool
	configPath string
	cfg        *config.Config
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "habrpipe",
	Short:   "Habr article listing ETL",
	Long:    "habrpipe scrapes Habr article listings, normalizes them and upserts them into a database.",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if verbose {
			log.SetFlags(log.LstdFlags | log.Lshortfile)
		} else {
			log.SetFlags(log.LstdFlags)
		}

		// Skip config loading for init and version
		if cmd.Name() == "init" || cmd.Name() == "version" {
			return nil
		}

		path, err := config.ResolveConfigPath(configPath)
		if err != nil {
			return err
		}
		cfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if strings.EqualFold(cfg.Logging.Level, "debug") {
			log.SetFlags(log.LstdFlags | log.Lshortfile)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(extractCmd)
	rootCmd.AddCommand(normalizeCmd)
	rootCmd.AddCommand(loadCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(serveCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("habrpipe", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration in ~/.config/habrpipe/",
	RunE: func(cmd *cobra.Command, args []string) error {
		target := filepath.Join(config.ConfigDir(), "config.yaml")
		if _, err := os.Stat(target); err == nil {
			fmt.Printf("Config already exists: %s\n", target)
			return nil
		}

		if err := os.MkdirAll(config.ConfigDir(), 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}

		if err := os.WriteFile(target, config.DefaultConfigYAML, 0o644); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}

		fmt.Printf("Created config: %s\n", target)
		fmt.Println("Edit it to change pages, pacing and the storage driver.")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show artifacts and database status",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		n, err := st.CountArticles(ctx)
		if err != nil {
			return fmt.Errorf("counting articles: %w", err)
		}

		fmt.Printf("Data directory: %s\n\n", cfg.GetDataDir())
		fmt.Println("Artifacts:")
		for _, path := range []string{cfg.RawPath(), cfg.CleanJSONPath(), cfg.CleanCSVPath()} {
			state := "missing"
			if artifact.Exists(path) {
				state = "present"
			}
			fmt.Printf("  %s: %s\n", filepath.Base(path), state)
		}
		fmt.Printf("\nStorage (%s):\n", cfg.Storage.Driver)
		fmt.Printf("  Articles: %d\n", n)

		latest, err := st.LatestArticle(ctx)
		if err != nil {
			return fmt.Errorf("reading latest article: %w", err)
		}
		if latest != nil {
			fmt.Printf("  Last written: %s (%s)\n", latest.Title, latest.UpdatedAt)
			fmt.Printf("    %s\n", latest.URL)
		}
		return nil
	},
}

// --- stage commands ---

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Scrape listing pages into raw_articles.json",
	RunE: func(cmd *cobra.Command, args []string) error {
		fetcher, err := newFetcher()
		if err != nil {
			return err
		}
		if cfg.Source.Headless {
			log.Println("Headless mode requested; pages are fetched over HTTP")
		}

		src := cfg.Source
		result, err := extract.NewExtractor(fetcher, src.Pages, src.Delay(), cfg.RawPath()).Run(cmd.Context())
		if err != nil {
			return err
		}

		fmt.Println("\nExtraction complete:")
		fmt.Printf("  Pages fetched: %d (%d failed)\n", result.Pages, result.FailedPages)
		fmt.Printf("  Article blocks: %d (%d without title)\n", result.Blocks, result.Untitled)
		fmt.Printf("  Articles written: %d\n", result.Articles)
		fmt.Printf("  Output: %s\n", result.Path)
		return nil
	},
}

var normalizeCmd = &cobra.Command{
	Use:   "normalize",
	Short: "Clean raw_articles.json into cleaned_articles.json and .csv",
	RunE: func(cmd *cobra.Command, args []string) error {
		result, err := normalize.NewNormalizer(cfg.RawPath(), cfg.CleanJSONPath(), cfg.CleanCSVPath()).Run()
		if err != nil {
			return err
		}

		fmt.Println("\nNormalization complete:")
		fmt.Printf("  Rows in: %d\n", result.RowsIn)
		fmt.Printf("  Dropped without url or title: %d\n", result.MissingKey)
		fmt.Printf("  Duplicates removed: %d\n", result.Duplicates)
		fmt.Printf("  Rows out: %d\n", result.RowsOut)

		if len(result.Coercions) > 0 {
			fmt.Println("\nValues coerced to zero:")
			cols := make([]string, 0, len(result.Coercions))
			for col := range result.Coercions {
				cols = append(cols, col)
			}
			sort.Strings(cols)
			for _, col := range cols {
				fmt.Printf("  %s: %d\n", col, result.Coercions[col])
			}
		}
		fmt.Printf("\nOutput: %s, %s\n", result.JSONPath, result.CSVPath)
		return nil
	},
}

var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Upsert cleaned_articles.json into the database",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		result, err := load.NewLoader(st, cfg.Storage.BatchSize, cfg.CleanJSONPath()).Run(ctx)
		if err != nil {
			return err
		}

		fmt.Println("\nLoad complete:")
		fmt.Printf("  Run: %s\n", result.RunID)
		fmt.Printf("  Inserted: %d\n", result.Inserted)
		fmt.Printf("  Updated: %d\n", result.Updated)
		fmt.Printf("  Errors: %d\n", result.Errors)
		fmt.Printf("  Total processed: %d\n", result.TotalProcessed)
		return nil
	},
}

// --- run command ---

var dryRun bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full pipeline: extract -> normalize -> load",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		fetcher, err := newFetcher()
		if err != nil {
			return err
		}
		pipe := pipeline.New(cfg, st, fetcher)

		var result *pipeline.Result
		if dryRun {
			result = pipe.DryRun(ctx)
		} else {
			result = pipe.Run(ctx)
		}

		for i, step := range result.Steps {
			fmt.Printf("\nStep %d/3: %s\n", i+1, step.Name)
			if step.Err != nil {
				fmt.Printf("  Error: %v\n", step.Err)
			} else {
				fmt.Printf("  %s\n", step.Summary)
			}
		}

		if err := result.Err(); err != nil {
			return err
		}
		if !dryRun {
			fmt.Println("\nPipeline complete! Run 'habrpipe stats' to see the results.")
		}
		return nil
	},
}

func init() {
	runCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show what would be done without executing")
}

// --- stats command ---

var htmlOut string

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print database statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		stats, err := st.Stats(ctx)
		if err != nil {
			return fmt.Errorf("getting stats: %w", err)
		}

		if htmlOut != "" {
			if err := report.WriteHTML(htmlOut, stats, time.Now()); err != nil {
				return fmt.Errorf("writing report: %w", err)
			}
			fmt.Printf("Report written to %s\n", htmlOut)
			return nil
		}
		fmt.Print(report.Markdown(stats, time.Now()))
		return nil
	},
}

func init() {
	statsCmd.Flags().StringVar(&htmlOut, "html", "", "Write the report as HTML to this file")
}

// --- serve command ---

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the local web server",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}
		fmt.Printf("Starting server at http://localhost:%d\n", port)
		fmt.Println("Press Ctrl+C to stop")
		return server.Serve(st, port)
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Port to run server on (default from config)")
}

func newFetcher() (*extract.HTTPFetcher, error) {
	return extract.NewHTTPFetcher(cfg.Source.BaseURL, cfg.Source.UserAgent, cfg.Source.PageTimeout())
}

func openStore(ctx context.Context) (store.Store, error) {
	if cfg.Storage.Driver == config.DriverPostgres {
		pg, err := pgstore.Open(ctx, cfg.Storage.DSN)
		if err != nil {
			return nil, err
		}
		return pg, nil
	}

	dataDir := cfg.GetDataDir()
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	db, err := database.Open(cfg.SQLitePath())
	if err != nil {
		return nil, err
	}
	return db, nil
}
