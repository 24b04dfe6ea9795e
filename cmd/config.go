package cmd

import (
	"encoding/json"
	"fmt"
	"log"
	"os"

	"moduleinstaller/config"

	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect the configuration",
	Long:  `Commands for checking the configuration file and the values in effect.`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Long:  `Prints the configuration with defaults and flag overrides applied.`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := showConfig(); err != nil {
			log.Printf("[ERROR] %v", err)
			os.Exit(1)
		}
	},
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration file",
	Long:  `Loads the configuration file and reports the first problem found. A missing file is an error here.`,
	Run: func(cmd *cobra.Command, args []string) {
		if _, err := config.Load(configFile); err != nil {
			log.Printf("[ERROR] %v", err)
			os.Exit(1)
		}
		log.Printf("[SUCCESS] %s is valid", configFile)
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)
}

func showConfig() error {
	cfg, err := TryGetConfig()
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode configuration: %w", err)
	}
	fmt.Println(string(data))
	return nil
}
