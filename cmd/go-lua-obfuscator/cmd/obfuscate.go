package cmd

import (
	"github.com/spf13/cobra"
)

// obfuscateCmd represents the base command for obfuscation actions
var obfuscateCmd = &cobra.Command{
	Use:   "obfuscate",
	Short: "Obfuscates Lua code using various methods",
	Long: `Provides subcommands to obfuscate individual files or entire directories.

Example:
  go-lua-obfuscator obfuscate file input.lua -o output.lua --seed 42
  go-lua-obfuscator obfuscate dir ./src ./dist`,
}

func init() {
	rootCmd.AddCommand(obfuscateCmd)
}
