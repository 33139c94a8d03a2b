package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/modelseed-go/internal/catalog"
	"github.com/raphaelgruber/modelseed-go/internal/hub"
	"github.com/raphaelgruber/modelseed-go/internal/models"
	"github.com/raphaelgruber/modelseed-go/internal/ollama"
	"github.com/raphaelgruber/modelseed-go/internal/pipeline"
	"github.com/raphaelgruber/modelseed-go/internal/stage"
)

var (
	runSelection    pipeline.Selection
	runStageName    string
	runDryRun       bool
	runShowProgress bool
	runDataDir      string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the seeding pipeline",
	Long: `Run the full pipeline (extract, enrich, map-tags, map-models, seed,
archive) or a single stage of it.

Component types default to the configured values and can be overridden
per run. Dry-run runs every stage and validation over the working
stores but submits nothing to the catalog and leaves the mapped store
and the archive untouched.

Examples:
  modelseed run
  modelseed run --dry-run
  modelseed run --extractor jsonfile --seeder mock
  modelseed run --stage map-tags`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVar(&runSelection.Extractor, "extractor", "", "extractor type ("+typeList(stage.KindExtractor)+")")
	runCmd.Flags().StringVar(&runSelection.Enricher, "enricher", "", "enricher type ("+typeList(stage.KindEnricher)+")")
	runCmd.Flags().StringVar(&runSelection.TagMapper, "tag-mapper", "", "tag mapper type ("+typeList(stage.KindTagMapper)+")")
	runCmd.Flags().StringVar(&runSelection.ModelMapper, "model-mapper", "", "model mapper type ("+typeList(stage.KindModelMapper)+")")
	runCmd.Flags().StringVar(&runSelection.Seeder, "seeder", "", "seeder type ("+typeList(stage.KindSeeder)+")")
	runCmd.Flags().StringVar(&runSelection.Archiver, "archiver", "", "archiver type ("+typeList(stage.KindArchiver)+")")
	runCmd.Flags().StringVar(&runStageName, "stage", "", "run only this stage ("+strings.Join(stage.Order, ", ")+")")
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "validate everything, submit nothing, leave mapped store and archive untouched")
	runCmd.Flags().BoolVar(&runShowProgress, "progress", false, "show a live progress display")
	runCmd.Flags().StringVar(&runDataDir, "data-dir", "", "override the data directory")
}

func typeList(kind stage.Kind) string {
	return strings.Join(stage.Types(kind), ", ")
}

func runRun(cmd *cobra.Command, args []string) error {
	if runDataDir != "" {
		os.Setenv("MODELSEED_DATA_DIR", runDataDir)
		cfg = reloadConfig()
	}

	deps, err := buildDeps(runDryRun)
	if err != nil {
		return err
	}

	p, err := pipeline.New(deps, runSelection)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var report *models.RunReport
	if runShowProgress {
		report, err = runWithProgress(ctx, p)
	} else if runStageName != "" {
		report, err = p.RunStage(ctx, runStageName)
	} else {
		report, err = p.Run(ctx)
	}
	if report != nil {
		fmt.Print(renderReport(report))
		if path, saveErr := pipeline.SaveReport(cfg.ReportsDir, report); saveErr != nil {
			fmt.Fprintf(os.Stderr, "Warning: could not save run report: %v\n", saveErr)
		} else {
			fmt.Printf("Report saved to %s\n", path)
		}
	}
	if err != nil {
		return err
	}
	if report != nil && !report.Success {
		return fmt.Errorf("%d record(s) failed, see report %s", len(report.Failures), report.RunID)
	}
	return nil
}

// buildDeps wires stores and the clients the selected components need.
// Clients are cheap to construct, so all three are always available.
func buildDeps(dryRun bool) (stage.Deps, error) {
	stores, err := stage.OpenStores(cfg)
	if err != nil {
		return stage.Deps{}, fmt.Errorf("open stores: %w", err)
	}
	return stage.Deps{
		Config: cfg,
		Logger: logger,
		Stores: stores,
		Ollama: ollama.New(cfg.OllamaHost, cfg.APITimeout),
		Hub:    hub.New(cfg.HubAPIURL, cfg.HubAPIKey, cfg.APITimeout),
		Catalog: catalog.New(catalog.Options{
			BaseURL:  cfg.CatalogAPIURL,
			APIKey:   cfg.CatalogAPIKey,
			Timeout:  cfg.APITimeout,
			Attempts: cfg.RetryAttempts,
			Backoff:  cfg.RetryBackoff,
			Logger:   logger,
		}),
		DryRun: dryRun,
		Seeded: stage.NewSeedLog(),
	}, nil
}
