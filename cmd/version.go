package cmd

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Long:  `Display the current version of the module installer.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("ModuleInstaller version %s\n", GetVersion())
		fmt.Printf("%s\n", releaseURL(GetVersion()))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

var releaseVersion = regexp.MustCompile(`^v?\d+\.\d+\.\d+(-[\w.]+)?$`)

func releaseURL(version string) string {
	path := "https://github.com/moduleinstaller/moduleinstaller"
	if !releaseVersion.MatchString(version) {
		return fmt.Sprintf("%s/releases/latest", path)
	}

	return fmt.Sprintf("%s/releases/tag/v%s", path, strings.TrimPrefix(version, "v"))
}
