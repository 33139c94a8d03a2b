package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/modelseed-go/internal/models"
	"github.com/raphaelgruber/modelseed-go/internal/stage"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show store record counts and the latest run report",
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	stores, err := stage.OpenStores(cfg)
	if err != nil {
		return fmt.Errorf("open stores: %w", err)
	}

	rows := []struct {
		name string
		st   interface{ List() ([]string, error) }
	}{
		{"raw", stores.Raw},
		{"enriched", stores.Enriched},
		{"processed", stores.Processed},
		{"mapped", stores.Mapped},
		{"archive", stores.Archive},
	}

	fmt.Println("Stores:")
	for _, row := range rows {
		ids, err := row.st.List()
		if err != nil {
			return fmt.Errorf("list %s store: %w", row.name, err)
		}
		fmt.Printf("  %-10s %d record(s)\n", row.name, len(ids))
	}

	report, err := latestReport(cfg.ReportsDir)
	if err != nil {
		return err
	}
	if report == nil {
		fmt.Println("\nNo run reports yet.")
		return nil
	}
	fmt.Print(renderReport(report))
	return nil
}

// latestReport loads the most recent report file, or nil when the
// reports directory is empty or missing.
func latestReport(dir string) (*models.RunReport, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read reports dir: %w", err)
	}

	var newest string
	var newestTime int64
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if t := info.ModTime().UnixNano(); t > newestTime {
			newestTime = t
			newest = e.Name()
		}
	}
	if newest == "" {
		return nil, nil
	}

	data, err := os.ReadFile(filepath.Join(dir, newest))
	if err != nil {
		return nil, fmt.Errorf("read report %s: %w", newest, err)
	}
	var report models.RunReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("parse report %s: %w", newest, err)
	}
	sort.Slice(report.Stages, func(i, j int) bool {
		return stageIndex(report.Stages[i].Stage) < stageIndex(report.Stages[j].Stage)
	})
	return &report, nil
}

func stageIndex(name string) int {
	for i, n := range stage.Order {
		if n == name {
			return i
		}
	}
	return len(stage.Order)
}
