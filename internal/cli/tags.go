package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/modelseed-go/internal/catalog"
	"github.com/raphaelgruber/modelseed-go/internal/stage"
)

var tagsCmd = &cobra.Command{
	Use:   "tags",
	Short: "Inspect and sync the tag map",
	Long: `Work with the tag map that resolves record tag names to destination
catalog tag identifiers.

Subcommands:
  list    Show the local tag map (default)
  sync    Fetch the catalog's tags and rewrite the local tag map
  create  Register tags in the catalog and record their ids`,
	RunE: runTagsList,
}

var tagsListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show the local tag map",
	RunE:  runTagsList,
}

var tagsSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Fetch the catalog's tags and rewrite the local tag map",
	RunE:  runTagsSync,
}

var tagsCreateCmd = &cobra.Command{
	Use:   "create <name>...",
	Short: "Register tags in the catalog and record their ids",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runTagsCreate,
}

func init() {
	tagsCmd.AddCommand(tagsListCmd)
	tagsCmd.AddCommand(tagsSyncCmd)
	tagsCmd.AddCommand(tagsCreateCmd)
}

func runTagsList(cmd *cobra.Command, args []string) error {
	tm, err := stage.LoadTagMap(cfg.TagMapFile)
	if err != nil {
		return err
	}
	names := tm.Names()
	if len(names) == 0 {
		fmt.Printf("Tag map %s is empty. Run 'modelseed tags sync' to fill it from the catalog.\n", cfg.TagMapFile)
		return nil
	}
	for _, name := range names {
		id, _ := tm.Resolve(name)
		fmt.Printf("  %-24s %s\n", name, id)
	}
	fmt.Printf("%d tag(s) in %s\n", len(names), cfg.TagMapFile)
	return nil
}

func runTagsSync(cmd *cobra.Command, args []string) error {
	client := catalog.New(catalog.Options{
		BaseURL:  cfg.CatalogAPIURL,
		APIKey:   cfg.CatalogAPIKey,
		Timeout:  cfg.APITimeout,
		Attempts: cfg.RetryAttempts,
		Backoff:  cfg.RetryBackoff,
		Logger:   logger,
	})

	tags, err := client.ListTags(context.Background())
	if err != nil {
		return fmt.Errorf("fetch catalog tags: %w", err)
	}

	tm, err := stage.LoadTagMap(cfg.TagMapFile)
	if err != nil {
		return err
	}
	for _, tag := range tags {
		if err := tm.Add(tag.Name, tag.ID); err != nil {
			return fmt.Errorf("update tag map: %w", err)
		}
	}
	fmt.Printf("Synced %d tag(s) into %s\n", len(tags), cfg.TagMapFile)
	return nil
}

func runTagsCreate(cmd *cobra.Command, args []string) error {
	client := catalog.New(catalog.Options{
		BaseURL:  cfg.CatalogAPIURL,
		APIKey:   cfg.CatalogAPIKey,
		Timeout:  cfg.APITimeout,
		Attempts: cfg.RetryAttempts,
		Backoff:  cfg.RetryBackoff,
		Logger:   logger,
	})

	tm, err := stage.LoadTagMap(cfg.TagMapFile)
	if err != nil {
		return err
	}
	for _, name := range args {
		if id, ok := tm.Resolve(name); ok {
			fmt.Printf("  %-24s %s (already mapped)\n", name, id)
			continue
		}
		id, err := client.CreateTag(context.Background(), name)
		if err != nil {
			return err
		}
		if err := tm.Add(name, id); err != nil {
			return fmt.Errorf("update tag map: %w", err)
		}
		fmt.Printf("  %-24s %s\n", name, id)
	}
	return nil
}
