package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/pcheng/rulemap/internal/model"
	"github.com/pcheng/rulemap/internal/rules"
)

// runRules implements the `rulemap rules` subcommand, which reads a parse
// document and writes the extracted business-rule catalog.
func runRules(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("rulemap rules", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var (
		input      string
		output     string
		configPath string
	)

	fs.StringVar(&input, "i", "parsed_code.json", "parse document to read")
	fs.StringVar(&input, "input", "parsed_code.json", "parse document to read")
	fs.StringVar(&output, "o", "business_rule.json", "output file for the rule catalog")
	fs.StringVar(&output, "output", "business_rule.json", "output file for the rule catalog")
	fs.StringVar(&configPath, "config", "", "YAML config overriding the built-in allowlists")

	fs.Usage = func() {
		fmt.Fprintf(stderr, `Usage: rulemap rules [flags]

Read a parse document produced by rulemap and extract a typed business-rule
catalog from it.

Flags:
`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(reorderArgs(args)); err != nil {
		return err
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	repo, err := readParsed(input)
	if err != nil {
		return err
	}

	catalog := rules.NewExtractor(cfg, stderr).Catalog(repo, input, time.Now())

	if err := writeJSON(output, catalog); err != nil {
		return err
	}

	printRuleStats(stderr, catalog, output)
	return nil
}

func readParsed(path string) (*model.ParsedRepository, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading parse document: %w", err)
	}

	var repo model.ParsedRepository
	if err := json.Unmarshal(data, &repo); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &repo, nil
}

func printRuleStats(w io.Writer, catalog *rules.Catalog, output string) {
	fmt.Fprintf(w, "Extracted %d rules from %s\n", catalog.TotalRules, catalog.Project)

	types := make([]string, 0, len(catalog.Analysis.RulesByType))
	for t := range catalog.Analysis.RulesByType {
		types = append(types, string(t))
	}
	sort.Strings(types)
	for _, t := range types {
		fmt.Fprintf(w, "  %s: %d\n", t, catalog.Analysis.RulesByType[rules.Type(t)])
	}

	if catalog.Analysis.MostCommonType != "" {
		fmt.Fprintf(w, "Most common type: %s, most common file: %s\n",
			catalog.Analysis.MostCommonType, catalog.Analysis.MostCommonFile)
	}

	fmt.Fprintf(w, "Wrote %s\n", output)
}
