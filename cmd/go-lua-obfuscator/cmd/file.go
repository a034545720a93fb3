package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/whit3rabbit/luamixer/internal/obfuscator"
)

var (
	outputFile string // flag variable for output file path
	showReport bool   // flag variable for report emission
)

// fileCmd represents the obfuscate file command
var fileCmd = &cobra.Command{
	Use:   "file <lua_file_path>",
	Short: "Obfuscate a single Lua file",
	Long: `Reads a single Lua or Luau file, applies the configured obfuscation
techniques, and outputs the result to stdout or a specified file. With
--report, a JSON summary of the run is written to stderr.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg == nil {
			return fmt.Errorf("configuration not loaded")
		}
		cmd.SilenceUsage = true
		filePath := args[0]

		content, err := os.ReadFile(filePath)
		if err != nil {
			return fmt.Errorf("error reading file %s: %w", filePath, err)
		}

		if !cfg.Silent {
			fmt.Fprintf(os.Stderr, "Processing file: %s\n", filePath)
		}

		sess := obfuscator.NewSession(cfg, cfg.Seed)
		output, report, err := sess.ProcessSource(context.Background(), string(content))
		if err != nil {
			emitReport(report)
			return fmt.Errorf("error processing file %s: %w", filePath, err)
		}

		if showReport {
			emitReport(report)
		}

		if outputFile != "" {
			if !cfg.Silent {
				fmt.Fprintf(os.Stderr, "Info: writing output to file: %s\n", outputFile)
			}
			if err := os.WriteFile(outputFile, []byte(output), 0644); err != nil {
				return fmt.Errorf("error writing to output file %s: %w", outputFile, err)
			}
		} else {
			fmt.Print(output)
		}
		return nil
	},
}

// emitReport writes the run report as JSON on stderr so stdout stays clean
// for the transformed source.
func emitReport(report *obfuscator.Report) {
	if report == nil {
		return
	}
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to encode report: %v\n", err)
		return
	}
	fmt.Fprintln(os.Stderr, string(data))
}

func init() {
	obfuscateCmd.AddCommand(fileCmd)
	fileCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file path (default: stdout)")
	fileCmd.Flags().BoolVar(&showReport, "report", false, "Emit a JSON run report on stderr")
}
