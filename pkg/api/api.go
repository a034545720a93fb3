// Package api provides the public API for using the Lua obfuscator as a
// library.
//
// The API mirrors the command-line interface: obfuscate a code string, a
// single file, or a whole directory tree. Every input gets its own
// obfuscation session, so name mappings never leak between files.
//
// Basic usage example:
//
//	obf, err := api.New(api.Options{Seed: 42})
//	if err != nil {
//	    log.Fatalf("failed to create obfuscator: %v", err)
//	}
//
//	out, report, err := obf.ObfuscateCode("local x = 1\nreturn x")
//	if err != nil {
//	    log.Fatalf("failed to obfuscate: %v", err)
//	}
//	fmt.Println(out)
//	fmt.Printf("renamed %d variables\n", report.VariablesRenamed)
package api

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/whit3rabbit/luamixer/internal/config"
	"github.com/whit3rabbit/luamixer/internal/obfuscator"
)

// Report re-exports the per-run summary produced by the pipeline.
type Report = obfuscator.Report

// PrintInfo prints formatted information to stdout, respecting the Testing
// flag. Forwards to the internal config.PrintInfo function.
func PrintInfo(format string, args ...interface{}) {
	config.PrintInfo(format, args...)
}

// Obfuscator is the main entry point for obfuscation operations. It holds
// the loaded configuration; per-input session state is created on demand.
type Obfuscator struct {
	Config *config.Config

	seed int64
}

// Options configures a new Obfuscator instance.
type Options struct {
	// ConfigPath is the path to a YAML configuration file. Empty means
	// defaults (a ./config.yaml is still picked up when present).
	ConfigPath string

	// Seed fixes the random seed for reproducible output. Zero defers to
	// the config file, then to system entropy.
	Seed int64

	// Silent suppresses informational messages.
	Silent bool
}

// New creates an Obfuscator from the given options.
func New(options Options) (*Obfuscator, error) {
	cfg, err := config.LoadConfig(options.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if options.Silent {
		cfg.Silent = true
	}
	return &Obfuscator{Config: cfg, seed: options.Seed}, nil
}

// ObfuscateCode obfuscates a string of Lua source and returns the result
// with its report.
func (o *Obfuscator) ObfuscateCode(code string) (string, *Report, error) {
	sess := obfuscator.NewSession(o.Config, o.seed)
	out, report, err := sess.ProcessSource(context.Background(), code)
	if err != nil {
		return "", report, fmt.Errorf("failed to obfuscate code: %w", err)
	}
	return out, report, nil
}

// ObfuscateFile obfuscates a Lua file and returns the result with its
// report.
func (o *Obfuscator) ObfuscateFile(filePath string) (string, *Report, error) {
	content, err := os.ReadFile(filePath)
	if err != nil {
		return "", nil, fmt.Errorf("failed to read file %s: %w", filePath, err)
	}
	out, report, err := o.ObfuscateCode(string(content))
	if err != nil {
		return "", report, fmt.Errorf("failed to obfuscate file %s: %w", filePath, err)
	}
	return out, report, nil
}

// ObfuscateFileToFile obfuscates a Lua file and writes the result to
// another file, creating parent directories as needed.
func (o *Obfuscator) ObfuscateFileToFile(inputPath, outputPath string) (*Report, error) {
	out, report, err := o.ObfuscateFile(inputPath)
	if err != nil {
		return report, err
	}
	if dir := filepath.Dir(outputPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return report, fmt.Errorf("failed to create output directory %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(outputPath, []byte(out), 0644); err != nil {
		return report, fmt.Errorf("failed to write output file %s: %w", outputPath, err)
	}
	return report, nil
}

// ObfuscateDirectory obfuscates all Lua files in a directory tree and
// writes the results to another directory, preserving structure. Each file
// gets an independent session. Non-Lua files are copied through verbatim.
func (o *Obfuscator) ObfuscateDirectory(inputDir, outputDir string) error {
	info, err := os.Stat(inputDir)
	if err != nil {
		return fmt.Errorf("failed to stat input directory %s: %w", inputDir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("input path %s is not a directory", inputDir)
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory %s: %w", outputDir, err)
	}
	return o.processDirectoryRecursive(inputDir, outputDir)
}

func (o *Obfuscator) processDirectoryRecursive(inputDir, outputDir string) error {
	entries, err := os.ReadDir(inputDir)
	if err != nil {
		return fmt.Errorf("failed to read directory %s: %w", inputDir, err)
	}

	for _, entry := range entries {
		inputPath := filepath.Join(inputDir, entry.Name())
		outputPath := filepath.Join(outputDir, entry.Name())

		if entry.IsDir() {
			if err := os.MkdirAll(outputPath, 0755); err != nil {
				return fmt.Errorf("failed to create output directory %s: %w", outputPath, err)
			}
			if err := o.processDirectoryRecursive(inputPath, outputPath); err != nil {
				return err
			}
			continue
		}

		if o.isLuaFile(entry.Name()) {
			if _, err := o.ObfuscateFileToFile(inputPath, outputPath); err != nil {
				if o.Config.AbortOnError {
					return fmt.Errorf("failed to process %s: %w", inputPath, err)
				}
				fmt.Fprintf(os.Stderr, "Warning: failed to process %s: %v\n", inputPath, err)
				continue
			}
			if !o.Config.Silent {
				PrintInfo("Processed: %s -> %s\n", inputPath, outputPath)
			}
			continue
		}

		content, err := os.ReadFile(inputPath)
		if err != nil {
			return fmt.Errorf("failed to read file %s: %w", inputPath, err)
		}
		if err := os.WriteFile(outputPath, content, 0644); err != nil {
			return fmt.Errorf("failed to write file %s: %w", outputPath, err)
		}
		if !o.Config.Silent {
			PrintInfo("Copied: %s -> %s\n", inputPath, outputPath)
		}
	}
	return nil
}

// isLuaFile reports whether a filename carries one of the configured
// source extensions.
func (o *Obfuscator) isLuaFile(filename string) bool {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
	if ext == "" {
		return false
	}
	exts := o.Config.Extensions
	if len(exts) == 0 {
		exts = []string{"lua", "luau"}
	}
	for _, e := range exts {
		if strings.EqualFold(e, ext) {
			return true
		}
	}
	return false
}
