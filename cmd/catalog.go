package cmd

import (
	"context"
	"fmt"
	"log"
	"os"

	"moduleinstaller/selector"

	"github.com/spf13/cobra"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Inspect the update catalog",
	Long:  `Commands for inspecting the units and updates offered by the configured catalog sources.`,
}

var catalogListCmd = &cobra.Command{
	Use:   "list",
	Short: "List catalog units",
	Long: `Refresh the catalog sources and list every unit with its newest update.

Remote indexes younger than the configured TTL are served from the cache.`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := listCatalog(cmd.Context()); err != nil {
			log.Printf("[ERROR] %v", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(catalogCmd)
	catalogCmd.AddCommand(catalogListCmd)
}

func listCatalog(ctx context.Context) error {
	cfg, err := TryGetConfig()
	if err != nil {
		return err
	}

	a, err := newApp(cfg, cfg.CatalogTTL())
	if err != nil {
		return err
	}
	defer a.Close()

	if ctx == nil {
		ctx = context.Background()
	}
	if err := a.catalog.RefreshAll(ctx); err != nil {
		log.Printf("Warning: some catalog sources failed to refresh: %v", err)
	}

	units := a.catalog.Units()
	if len(units) == 0 {
		fmt.Println("No units in catalog")
		return nil
	}

	for _, unit := range units {
		latest := "-"
		if c, ok := selector.PickLatest(unit.Updates); ok {
			latest = c.Version
			if c.RequiresRestart {
				latest += " (restart)"
			}
		}
		installed := "-"
		if unit.Installed != nil {
			installed = unit.Installed.Version
		}

		marker := " "
		if unit.CodeName == cfg.Unit.CodeName {
			marker = "*"
		}
		fmt.Printf("%s %-40s latest=%-18s installed=%-10s updates=%d source=%s\n",
			marker, unit.CodeName, latest, installed, len(unit.Updates), unit.Source)
	}

	return nil
}
