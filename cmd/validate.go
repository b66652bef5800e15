package cmd

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// validateCmd builds the router without running it
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check a configuration file and exit",
	Run: func(cmd *cobra.Command, args []string) {
		setLogLevel()
		cfg := mustLoadConfig(cmd)
		r, err := buildRouter(cfg)
		if err != nil {
			logrus.Fatalf("Invalid configuration: %v", err)
		}
		_ = r.Close()
		fmt.Printf("configuration OK: %d backends, weights sum %.6f\n", len(cfg.Backends), cfg.Weights.Sum())
	},
}

func init() {
	addCommonFlags(validateCmd)
	rootCmd.AddCommand(validateCmd)
}
