package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/modelseed-go/internal/models"
	"github.com/raphaelgruber/modelseed-go/internal/stage"
	"github.com/raphaelgruber/modelseed-go/internal/store"
)

var validateStage string

var validateCmd = &cobra.Command{
	Use:   "validate [path]",
	Short: "Validate records against the catalog schema",
	Long: `Validate records without submitting anything. By default the mapped
store is checked against the destination catalog's field constraints.
With --stage, the corresponding configured store is checked instead;
raw, enriched and processed records get structural checks only. An
optional path argument validates an arbitrary record directory.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runValidate,
}

func init() {
	validateCmd.Flags().StringVar(&validateStage, "stage", "mapped", "record level to validate (raw, enriched, processed, mapped)")
}

func runValidate(cmd *cobra.Command, args []string) error {
	switch validateStage {
	case "raw", "enriched", "processed", "mapped":
	default:
		return fmt.Errorf("unknown stage %q (want raw, enriched, processed or mapped)", validateStage)
	}

	st, err := validateStore(args)
	if err != nil {
		return err
	}

	ids, err := st.List()
	if err != nil {
		return fmt.Errorf("list records: %w", err)
	}
	if len(ids) == 0 {
		fmt.Println("No records to validate.")
		return nil
	}

	t := defaultTheme
	invalid := 0
	for _, id := range ids {
		rec, err := st.Read(id)
		if err != nil {
			invalid++
			fmt.Printf("%s %s: %v\n", t.errorStyle().Render("✗"), id, err)
			continue
		}
		var errs []string
		if validateStage == "mapped" {
			errs = stage.ValidatePayload(rec)
		} else {
			errs = validateStructure(rec)
		}
		if len(errs) > 0 {
			invalid++
			fmt.Printf("%s %s\n", t.errorStyle().Render("✗"), id)
			for _, e := range errs {
				fmt.Printf("    %s\n", e)
			}
			continue
		}
		fmt.Printf("%s %s\n", t.completedStyle().Render("✓"), id)
	}

	if invalid > 0 {
		return fmt.Errorf("%d of %d record(s) invalid", invalid, len(ids))
	}
	fmt.Printf("\nAll %d record(s) valid.\n", len(ids))
	return nil
}

func validateStore(args []string) (*store.Store, error) {
	if len(args) == 1 {
		return store.New(args[0])
	}

	stores, err := stage.OpenStores(cfg)
	if err != nil {
		return nil, fmt.Errorf("open stores: %w", err)
	}
	switch validateStage {
	case "raw":
		return stores.Raw, nil
	case "enriched":
		return stores.Enriched, nil
	case "processed":
		return stores.Processed, nil
	default:
		return stores.Mapped, nil
	}
}

// validateStructure checks the shape shared by pre-mapping records.
func validateStructure(rec models.Record) []string {
	var errs []string
	if rec.Name() == "" {
		errs = append(errs, "name is required")
	}
	if raw, ok := rec["tags"]; ok {
		entries, isSlice := raw.([]any)
		if _, isStrings := raw.([]string); !isSlice && !isStrings {
			errs = append(errs, "tags must be a list")
		}
		for i, e := range entries {
			if s, ok := e.(string); !ok || s == "" {
				errs = append(errs, fmt.Sprintf("tags[%d] must be a non-empty string", i))
			}
		}
	}
	if validateStage == "processed" && len(rec.TagIDs()) == 0 {
		errs = append(errs, "tagIds are required after tag mapping")
	}
	return errs
}
