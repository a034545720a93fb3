// Package cmd implements the command line interface for the application.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/whit3rabbit/luamixer/internal/config"
)

var (
	cfgFile string         // config file path from the flag
	cfg     *config.Config // loaded configuration, shared by subcommands

	// Flag variables mapped to config fields for override
	silentMode    bool  // -> cfg.Silent
	abortOnError  bool  // -> cfg.AbortOnError
	seedFlag      int64 // -> cfg.Seed
	renameVars    bool  // -> cfg.Obfuscation.Rename.Enabled
	aliasGlobals  bool  // -> cfg.Obfuscation.Aliases.Enabled
	stripComments bool  // -> cfg.Obfuscation.Comments.Strip
	nestLiterals  bool  // -> cfg.Obfuscation.Nesting.Enabled
	ultraMode     bool  // -> cfg.Obfuscation.Nesting.Ultra
	encodeStrings bool  // -> cfg.Obfuscation.Strings.Enabled
	dispatchCode  bool  // -> cfg.Obfuscation.Dispatch.Enabled
	validate      bool  // -> cfg.Obfuscation.Validation.Enabled
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "go-lua-obfuscator",
	Short: "A CLI tool to obfuscate Lua and Luau code deterministically.",
	Long: `go-lua-obfuscator rewrites Lua/Luau source so it is hard to read
while behaving exactly like the original. All transformations are driven by
a single seed, so a build can be reproduced bit for bit.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cfg == nil {
			loadedCfg, err := config.LoadConfig(cfgFile)
			if err != nil {
				return fmt.Errorf("error loading configuration: %w", err)
			}
			cfg = loadedCfg
			applyFlagOverrides(cfg, cmd)
		}
		return nil
	},
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// applyFlagOverrides applies command-line flag values to the config struct.
// Only overrides if the flag was explicitly set by the user.
func applyFlagOverrides(cfg *config.Config, cmd *cobra.Command) {
	if cmd.Flags().Changed("silent") {
		cfg.Silent = silentMode
	}
	if cmd.Flags().Changed("abort-on-error") {
		cfg.AbortOnError = abortOnError
	}
	if cmd.Flags().Changed("seed") {
		cfg.Seed = seedFlag
	}
	if cmd.Flags().Changed("rename") {
		cfg.Obfuscation.Rename.Enabled = renameVars
	}
	if cmd.Flags().Changed("aliases") {
		cfg.Obfuscation.Aliases.Enabled = aliasGlobals
	}
	if cmd.Flags().Changed("strip-comments") {
		cfg.Obfuscation.Comments.Strip = stripComments
	}
	if cmd.Flags().Changed("nesting") {
		cfg.Obfuscation.Nesting.Enabled = nestLiterals
	}
	if cmd.Flags().Changed("ultra") {
		cfg.Obfuscation.Nesting.Ultra = ultraMode
	}
	if cmd.Flags().Changed("strings") {
		cfg.Obfuscation.Strings.Enabled = encodeStrings
	}
	if cmd.Flags().Changed("dispatch") {
		cfg.Obfuscation.Dispatch.Enabled = dispatchCode
	}
	if cmd.Flags().Changed("validate") {
		cfg.Obfuscation.Validation.Enabled = validate
	}
}

// Execute adds all child commands to the root command and sets flags
// appropriately. Called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./config.yaml)")

	rootCmd.PersistentFlags().BoolVarP(&silentMode, "silent", "s", false, "Suppress informational output (overrides config)")
	rootCmd.PersistentFlags().BoolVar(&abortOnError, "abort-on-error", true, "Stop processing on the first error (overrides config)")
	rootCmd.PersistentFlags().Int64Var(&seedFlag, "seed", 0, "Random seed, 0 derives one from system entropy (overrides config)")
	rootCmd.PersistentFlags().BoolVar(&renameVars, "rename", true, "Enable/disable identifier renaming (overrides config)")
	rootCmd.PersistentFlags().BoolVar(&aliasGlobals, "aliases", true, "Enable/disable global alias prelude (overrides config)")
	rootCmd.PersistentFlags().BoolVar(&stripComments, "strip-comments", true, "Enable/disable comment stripping (overrides config)")
	rootCmd.PersistentFlags().BoolVar(&nestLiterals, "nesting", true, "Enable/disable literal nesting (overrides config)")
	rootCmd.PersistentFlags().BoolVar(&ultraMode, "ultra", false, "Use the aggressive nesting profile (overrides config)")
	rootCmd.PersistentFlags().BoolVar(&encodeStrings, "strings", true, "Enable/disable string literal encoding (overrides config)")
	rootCmd.PersistentFlags().BoolVar(&dispatchCode, "dispatch", true, "Enable/disable dispatch scaffold generation (overrides config)")
	rootCmd.PersistentFlags().BoolVar(&validate, "validate", true, "Enable/disable output validation via luau-compile (overrides config)")
}
