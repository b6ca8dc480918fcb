package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/BenjaminSRussell/sitemapper/internal/config"
	"github.com/BenjaminSRussell/sitemapper/internal/types"
)

func newConfigCmd() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Work with sitemapper config files",
	}

	var output string
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a config file with every default filled in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if output == "" {
				return config.Write(cmd.OutOrStdout(), types.DefaultConfig())
			}

			file, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("failed to create config file: %w", err)
			}
			if err := config.Write(file, types.DefaultConfig()); err != nil {
				file.Close()
				return err
			}
			if err := file.Close(); err != nil {
				return err
			}

			fmt.Fprintf(cmd.ErrOrStderr(), "Wrote default config to %s\n", output)
			return nil
		},
	}
	initCmd.Flags().StringVarP(&output, "output", "o", "", "Write to this file instead of stdout")

	configCmd.AddCommand(initCmd)
	return configCmd
}
