package cmd

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the install state of the configured unit",
	Long:  `Display the install flag, the installed version and any pending restart.`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := showStatus(); err != nil {
			log.Printf("[ERROR] %v", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func showStatus() error {
	cfg, err := TryGetConfig()
	if err != nil {
		return err
	}

	a, err := newApp(cfg, cfg.CatalogTTL())
	if err != nil {
		return err
	}
	defer a.Close()

	fmt.Printf("Unit: %s\n", cfg.Unit.CodeName)

	done, err := a.store.Get(cfg.Unit.FlagKey)
	if err != nil {
		fmt.Printf("Install flag: %s (%v)\n", color.RedString("unreadable"), err)
	} else {
		fmt.Printf("Install flag: %s=%s (%s backend)\n", cfg.Unit.FlagKey, flagLabel(done), cfg.State.Backend)
	}

	installed, err := a.subsystem.Installed(cfg.Unit.CodeName)
	switch {
	case err != nil:
		fmt.Printf("Installed: %s (%v)\n", color.RedString("unknown"), err)
	case installed == nil:
		fmt.Printf("Installed: %s\n", color.YellowString("no"))
	default:
		fmt.Printf("Installed: %s at %s\n", color.GreenString(installed.Version), installed.Path)
	}

	pending, err := a.subsystem.RestartPending()
	if err != nil {
		return fmt.Errorf("failed to read pending restart: %w", err)
	}
	if pending == nil {
		fmt.Println("Restart pending: no")
	} else {
		fmt.Printf("Restart pending: %s (%s, requested %s for %s)\n",
			color.YellowString("yes"), pending.ID, pending.RequestedAt.Format(time.RFC3339), strings.Join(pending.Units, ", "))
	}

	return nil
}

func flagLabel(done bool) string {
	if done {
		return color.GreenString("true")
	}
	return color.YellowString("false")
}
