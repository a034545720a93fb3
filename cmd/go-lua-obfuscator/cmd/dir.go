package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/whit3rabbit/luamixer/pkg/api"
)

// dirCmd represents the obfuscate dir command
var dirCmd = &cobra.Command{
	Use:   "dir <source_directory> <target_directory>",
	Short: "Obfuscate Lua code in a directory recursively",
	Long: `Recursively scans the source directory for Lua files (based on the
configured extensions), applies obfuscation with an independent session per
file, and writes the results to the target directory, preserving the
original structure. Non-Lua files are copied through unchanged.`,
	Args: cobra.ExactArgs(2),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		sourceDir := args[0]
		info, err := os.Stat(sourceDir)
		if err != nil {
			if os.IsNotExist(err) {
				return fmt.Errorf("source directory '%s' not found", sourceDir)
			}
			return fmt.Errorf("error checking source directory '%s': %w", sourceDir, err)
		}
		if !info.IsDir() {
			return fmt.Errorf("source path '%s' is not a directory", sourceDir)
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg == nil {
			return fmt.Errorf("configuration not loaded")
		}
		cmd.SilenceUsage = true

		sourceDir, targetDir := args[0], args[1]
		if !cfg.Silent {
			fmt.Fprintln(os.Stderr, "--- Directory Obfuscation ---")
			fmt.Fprintf(os.Stderr, "Source Directory: %s\n", sourceDir)
			fmt.Fprintf(os.Stderr, "Target Directory: %s\n", targetDir)
			fmt.Fprintln(os.Stderr, "-----------------------------")
		}

		obf := &api.Obfuscator{Config: cfg}
		if err := obf.ObfuscateDirectory(sourceDir, targetDir); err != nil {
			return fmt.Errorf("directory obfuscation failed: %w", err)
		}
		if !cfg.Silent {
			fmt.Fprintln(os.Stderr, "Directory processing finished.")
		}
		return nil
	},
}

func init() {
	obfuscateCmd.AddCommand(dirCmd)
}
