package cmd

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"moduleinstaller/installer"

	"github.com/spf13/cobra"
)

var forceRun bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Make sure the required module is installed",
	Long: `Run the startup hook for the configured unit.

When the install flag is unset the catalog is refreshed, the newest update for
the unit is selected, and it is downloaded, validated and installed. Once the
unit is handled the flag is set and later runs return immediately.

Use --force to skip the flag check and evaluate the catalog again.`,
	Run: func(cmd *cobra.Command, args []string) {
		os.Exit(runInstall())
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().BoolVarP(&forceRun, "force", "f", false, "Run even if the install flag is already set")
}

func runInstall() int {
	log.Printf("ModuleInstaller version %s", GetVersion())

	a, err := newApp(GetConfig(), 0)
	if err != nil {
		log.Printf("[ERROR] %v", err)
		return 1
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	seq := a.sequencer()

	var result *installer.Result
	if forceRun {
		r := seq.Run(ctx)
		result = &r
	} else {
		result = installer.NewHook(a.store, a.cfg.Unit.FlagKey, seq, a.events).Ready(ctx)
	}

	if result == nil {
		return 0
	}

	log.Printf("Run %s finished: %s", result.RunID, describe(result))
	if result.Outcome == installer.OutcomeFailed {
		return 1
	}
	return 0
}

func describe(r *installer.Result) string {
	s := string(r.Outcome)
	if r.Version != "" {
		s += " (" + r.Unit + " " + r.Version + ")"
	}
	if r.Err != nil {
		s += ": " + r.Err.Error()
	}
	return s
}
