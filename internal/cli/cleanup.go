package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/modelseed-go/internal/stage"
	"github.com/raphaelgruber/modelseed-go/internal/store"
)

var (
	cleanupAll   bool
	cleanupForce bool
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Remove intermediate records that are already archived",
	Long: `Remove records from the raw, enriched, processed and mapped stores
whose identifier is already present in the archive. With --all, every
intermediate record is removed regardless of archive state. The
archive itself is never touched.

Requires confirmation unless --force is used.`,
	RunE: runCleanup,
}

func init() {
	cleanupCmd.Flags().BoolVar(&cleanupAll, "all", false, "remove all intermediate records, not just archived ones")
	cleanupCmd.Flags().BoolVarP(&cleanupForce, "force", "f", false, "skip confirmation")
}

func runCleanup(cmd *cobra.Command, args []string) error {
	stores, err := stage.OpenStores(cfg)
	if err != nil {
		return fmt.Errorf("open stores: %w", err)
	}

	intermediates := []struct {
		name string
		st   *store.Store
	}{
		{"raw", stores.Raw},
		{"enriched", stores.Enriched},
		{"processed", stores.Processed},
		{"mapped", stores.Mapped},
	}

	var doomed []struct{ storeName, id string }
	for _, im := range intermediates {
		ids, err := im.st.List()
		if err != nil {
			return fmt.Errorf("list %s store: %w", im.name, err)
		}
		for _, id := range ids {
			if !cleanupAll && !stores.Archive.Exists(id) {
				continue
			}
			doomed = append(doomed, struct{ storeName, id string }{im.name, id})
		}
	}

	if len(doomed) == 0 {
		fmt.Println("Nothing to remove.")
		return nil
	}

	if !cleanupForce {
		fmt.Printf("About to remove %d record(s) from intermediate stores.\n", len(doomed))
		fmt.Print("Continue? [y/N]: ")

		reader := bufio.NewReader(os.Stdin)
		response, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("read input: %w", err)
		}
		response = strings.TrimSpace(strings.ToLower(response))
		if response != "y" && response != "yes" {
			fmt.Println("Cancelled.")
			return nil
		}
	}

	byStore := map[string]*store.Store{
		"raw": stores.Raw, "enriched": stores.Enriched,
		"processed": stores.Processed, "mapped": stores.Mapped,
	}
	for _, d := range doomed {
		if err := byStore[d.storeName].Remove(d.id); err != nil {
			return fmt.Errorf("remove %s from %s store: %w", d.id, d.storeName, err)
		}
		logger.Debug("removed record", "store", d.storeName, "id", d.id)
	}

	fmt.Printf("Removed %d record(s).\n", len(doomed))
	return nil
}
