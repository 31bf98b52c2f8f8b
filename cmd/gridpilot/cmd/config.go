package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/voluzi/gridpilot/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Prints the effective configuration as TOML",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadFile(configFile, manifestsDir)
		if err != nil {
			return err
		}
		out, err := cfg.Encode()
		if err != nil {
			return err
		}
		_, err = fmt.Fprint(cmd.OutOrStdout(), out)
		return err
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
}
