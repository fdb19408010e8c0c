// rulemap analyzes a source repository and produces a structural parse
// document, which its `rules` subcommand turns into a business-rule catalog.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/pcheng/rulemap/internal/config"
	"github.com/pcheng/rulemap/internal/model"
	"github.com/pcheng/rulemap/internal/walk"
)

var version = "dev"

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	if len(args) > 0 && args[0] == "rules" {
		return runRules(args[1:], stdout, stderr)
	}

	fs := flag.NewFlagSet("rulemap", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var (
		output      string
		configPath  string
		showVersion bool
	)

	fs.StringVar(&output, "o", "parsed_code.json", "output file for the parse document")
	fs.StringVar(&output, "output", "parsed_code.json", "output file for the parse document")
	fs.StringVar(&configPath, "config", "", "YAML config overriding the built-in allowlists")
	fs.BoolVar(&showVersion, "V", false, "show version and exit")
	fs.BoolVar(&showVersion, "version", false, "show version and exit")

	if err := fs.Parse(reorderArgs(args)); err != nil {
		return err
	}

	if showVersion {
		_, _ = fmt.Fprintf(stdout, "rulemap %s\n", version)
		return nil
	}

	root := "."
	if fs.NArg() > 0 {
		root = fs.Arg(0)
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	repo, err := walk.New(root, cfg, stderr).Walk(context.Background())
	if err != nil {
		return err
	}

	if err := writeJSON(output, repo); err != nil {
		return err
	}

	printParseStats(stderr, repo, output)
	return nil
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

// writeJSON writes v as indented JSON, creating parent directories as needed.
func writeJSON(path string, v any) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating output directory: %w", err)
		}
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

func printParseStats(w io.Writer, repo *model.ParsedRepository, output string) {
	byKind := make(map[model.FileKind]int)
	for i := range repo.Files {
		byKind[repo.Files[i].Kind]++
	}

	fmt.Fprintf(w, "Parsed %s: %d files (%d structured, %d markup, %d plain-text, %d generic)\n",
		repo.RepoName, len(repo.Files),
		byKind[model.StructuredCode], byKind[model.Markup],
		byKind[model.PlainText], byKind[model.Generic])

	if len(repo.APIEndpoints) > 0 {
		fmt.Fprintf(w, "API endpoints (%d):\n", len(repo.APIEndpoints))
		for _, ep := range repo.APIEndpoints {
			fmt.Fprintf(w, "  %s %s -> %s (%s)\n", ep.Method, ep.Route, ep.FunctionName, ep.File)
		}
	}
	if len(repo.KeyFunctions) > 0 {
		fmt.Fprintf(w, "Key functions (%d):\n", len(repo.KeyFunctions))
		for _, kf := range repo.KeyFunctions {
			fmt.Fprintf(w, "  %s (%s)\n", kf.Name, kf.File)
		}
	}
	if len(repo.KeyClasses) > 0 {
		fmt.Fprintf(w, "Key classes (%d):\n", len(repo.KeyClasses))
		for _, kc := range repo.KeyClasses {
			fmt.Fprintf(w, "  %s (%s)\n", kc.Name, kc.File)
		}
	}

	fmt.Fprintf(w, "Wrote %s\n", output)
}

// flagsWithValue lists flags that take a value argument.
var flagsWithValue = map[string]bool{
	"-o": true, "--o": true,
	"-output": true, "--output": true,
	"-i": true, "--i": true,
	"-input": true, "--input": true,
	"-config": true, "--config": true,
}

// reorderArgs moves positional arguments after all flags so Go's flag package
// can parse them correctly (it stops at the first non-flag arg).
func reorderArgs(args []string) []string {
	var flags, positional []string
	for i := 0; i < len(args); i++ {
		if args[i] == "--" {
			positional = append(positional, args[i+1:]...)
			break
		}
		if len(args[i]) > 0 && args[i][0] == '-' {
			flags = append(flags, args[i])
			if flagsWithValue[args[i]] && i+1 < len(args) {
				i++
				flags = append(flags, args[i])
			}
		} else {
			positional = append(positional, args[i])
		}
	}
	return append(flags, positional...)
}
