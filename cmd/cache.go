package cmd

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the download cache",
	Long:  `Manage the cache of catalog indexes and downloaded module artifacts.`,
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Clear all cached files",
	Long:  `Clear all cached files from the cache directory.`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := handleCacheClear(); err != nil {
			log.Printf("[ERROR] %v", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheClearCmd)
}

func handleCacheClear() error {
	cfg, err := TryGetConfig()
	if err != nil {
		return err
	}

	c, err := newCache(cfg)
	if err != nil {
		return err
	}

	fmt.Printf("Clearing cache directory: %s\n", c.Dir())

	removed, err := c.Clear()
	if err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}

	fmt.Printf("Removed %d cached file(s)\n", removed)
	return nil
}
