package cmd

import (
	"fmt"
	"log"
	"os"

	"moduleinstaller/cache"
	"moduleinstaller/config"

	"github.com/spf13/cobra"
)

var (
	// Global flags shared across commands
	verbose    bool
	configFile string
	cacheDir   string

	// Version is set by the build process
	Version string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "moduleinstaller",
	Short: "Module installer - makes sure a required module is installed",
	Long: `Module installer checks the update catalog for a required module and, when it
is missing, downloads, validates and installs the newest available version.

The install runs once. Afterwards a persisted flag short-circuits every start.`,
}

// Execute adds all child commands to the root command and sets appropriate flags.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", config.DefaultConfigFile, "Path to the configuration file")
	rootCmd.PersistentFlags().StringVar(&cacheDir, "cache-dir", "", "Directory for cached catalogs and artifacts (overrides the config file)")
}

// GetVersion returns the current version string
func GetVersion() string {
	if Version == "" {
		return "dev"
	}
	return Version
}

// GetUserAgent returns the User-Agent string for HTTP requests
func GetUserAgent() string {
	return fmt.Sprintf("ModuleInstaller/%s", GetVersion())
}

// GetConfig loads the configuration or exits
func GetConfig() *config.Config {
	cfg, err := TryGetConfig()
	if err != nil {
		log.Printf("Failed to load configuration from %s: %v", configFile, err)
		os.Exit(1)
	}
	return cfg
}

// TryGetConfig loads the configuration and applies flag overrides
func TryGetConfig() (*config.Config, error) {
	cfg, err := config.LoadOrDefault(configFile)
	if err != nil {
		return nil, err
	}
	if cacheDir != "" {
		cfg.CacheDir = cacheDir
	}
	return cfg, nil
}

func newCache(cfg *config.Config) (*cache.Cache, error) {
	c, err := cache.New(cfg.CacheDir, GetUserAgent(), verbose)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cache: %w", err)
	}
	return c, nil
}
