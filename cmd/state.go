package cmd

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"
)

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Manage the persisted install flag",
}

var stateResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Clear the install flag (operator use)",
	Long: `Clears the install flag so the next run checks the catalog again.

This is a manual recovery tool. The install run itself only ever sets the
flag; nothing but this command clears it.`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := resetState(); err != nil {
			log.Printf("[ERROR] %v", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(stateCmd)
	stateCmd.AddCommand(stateResetCmd)
}

func resetState() error {
	cfg, err := TryGetConfig()
	if err != nil {
		return err
	}

	a, err := newApp(cfg, cfg.CatalogTTL())
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.store.Set(cfg.Unit.FlagKey, false); err != nil {
		return fmt.Errorf("failed to clear %s: %w", cfg.Unit.FlagKey, err)
	}
	fmt.Printf("Cleared %s in namespace %s\n", cfg.Unit.FlagKey, cfg.State.Namespace)
	return nil
}
