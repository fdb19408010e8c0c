// Package rules re-projects a parsed repository into a typed, queryable
// business-rule catalog.
package rules

import (
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/pcheng/rulemap/internal/config"
	"github.com/pcheng/rulemap/internal/model"
)

// fieldPatterns are the best-effort shapes recognized as model fields:
// typed attribute assignments in declaration style. This is deliberately
// pattern matching over source text, not type-aware introspection.
var fieldPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\w+\s*:\s*[^=\n]+=\s*Field\([^)]*primary_key=True[^)]*\)`),
	regexp.MustCompile(`\w+\s*:\s*[\w\[\]". ]+\s*=\s*Field\([^)]*\)`),
	regexp.MustCompile(`\w+\s*:\s*[\w\[\]". ]+\s*=\s*Relationship\([^)]*\)`),
	regexp.MustCompile(`(?m)^\s+\w+\s*:\s*[\w\[\].]+\s*$`),
}

// Extractor turns a ParsedRepository into a rule catalog. All allowlists
// and the question-type mapping come from the injected config.
type Extractor struct {
	cfg    *config.Config
	stderr io.Writer
}

// NewExtractor creates an Extractor with the given configuration.
func NewExtractor(cfg *config.Config, stderr io.Writer) *Extractor {
	return &Extractor{cfg: cfg, stderr: stderr}
}

// Extract runs every extraction pass and concatenates the results. Passes
// are independent: one failing pass is reported once and contributes zero
// rules while the others still run.
func (e *Extractor) Extract(repo *model.ParsedRepository) []Rule {
	passes := []struct {
		name string
		fn   func(*model.ParsedRepository) ([]Rule, error)
	}{
		{"endpoint", e.endpointRules},
		{"function", e.functionRules},
		{"model", e.modelRules},
		{"class", e.classRules},
		{"template", e.templateRules},
		{"import", e.importRules},
		{"file structure", e.fileStructureRules},
	}

	var all []Rule
	for _, pass := range passes {
		extracted, err := pass.fn(repo)
		if err != nil {
			if e.stderr != nil {
				fmt.Fprintf(e.stderr, "Warning: %s pass failed: %v\n", pass.name, err)
			}
			continue
		}
		all = append(all, extracted...)
	}
	return all
}

// Catalog assembles the persisted business-rule document.
func (e *Extractor) Catalog(repo *model.ParsedRepository, sourcePath string, now time.Time) *Catalog {
	extracted := e.Extract(repo)
	return &Catalog{
		Project:             repo.RepoName,
		SourceParsedFile:    sourcePath,
		TotalRules:          len(extracted),
		ExtractionTimestamp: now.Format("2006-01-02 15:04:05"),
		Analysis:            Analyze(extracted),
		QuestionTypeMapping: e.cfg.QuestionTypes,
		Rules:               extracted,
	}
}

// Catalog is the persisted business-rule document.
type Catalog struct {
	Project             string              `json:"project"`
	SourceParsedFile    string              `json:"source_parsed_file"`
	TotalRules          int                 `json:"total_rules"`
	ExtractionTimestamp string              `json:"extraction_timestamp"`
	Analysis            Analysis            `json:"analysis"`
	QuestionTypeMapping map[string][]string `json:"question_type_mapping"`
	Rules               []Rule              `json:"rules"`
}

func (e *Extractor) tags(t Type) []string {
	return e.cfg.QuestionTypes[string(t)]
}

func (e *Extractor) endpointRules(repo *model.ParsedRepository) ([]Rule, error) {
	var out []Rule
	for _, ep := range repo.APIEndpoints {
		rule := Rule{
			Type:          TypeEndpoint,
			Name:          ep.Name,
			Match:         ep.Method + " " + ep.Route,
			File:          ep.File,
			FunctionName:  ep.FunctionName,
			IsAsync:       ep.IsAsync,
			QuestionTypes: e.tags(TypeEndpoint),
		}
		meta := EndpointMetadata{HTTPMethod: ep.Method, RoutePath: ep.Route}

		if ep.FunctionName != "" {
			if fn := repo.FunctionIn(ep.File, ep.FunctionName); fn != nil {
				rule.CodeSnippet = fn.CodeSnippet
				meta.LineStart = fn.LineStart
				meta.LineEnd = fn.LineEnd
				meta.Decorators = fn.Decorators
			}
		}

		rule.Metadata = meta
		out = append(out, rule)
	}
	return out, nil
}

type functionKey struct {
	file string
	name string
}

func (e *Extractor) functionRules(repo *model.ParsedRepository) ([]Rule, error) {
	var out []Rule
	seen := make(map[functionKey]struct{})

	// Key functions first, enriched from the matching record when found.
	for _, kf := range repo.KeyFunctions {
		meta := FunctionMetadata{IsKeyFunction: true}
		if fn := repo.FunctionIn(kf.File, kf.Name); fn != nil {
			meta.IsAsync = fn.IsAsync
			meta.Args = fn.Args
			meta.Decorators = fn.Decorators
			meta.LineStart = fn.LineStart
			meta.LineEnd = fn.LineEnd
		}
		out = append(out, Rule{
			Type:          TypeFunction,
			Name:          kf.Name,
			Match:         kf.Name,
			File:          kf.File,
			CodeSnippet:   kf.CodeSnippet,
			QuestionTypes: e.tags(TypeFunction),
			Metadata:      meta,
		})
		seen[functionKey{file: kf.File, name: kf.Name}] = struct{}{}
	}

	// Remaining functions, skipping identities already emitted as key.
	for i := range repo.Files {
		f := &repo.Files[i]
		if f.Kind != model.StructuredCode {
			continue
		}
		for j := range f.Functions {
			fn := &f.Functions[j]
			key := functionKey{file: f.Path, name: fn.Name}
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, Rule{
				Type:          TypeFunction,
				Name:          fn.Name,
				Match:         fn.Name,
				File:          f.Path,
				CodeSnippet:   fn.CodeSnippet,
				QuestionTypes: e.tags(TypeFunction),
				Metadata: FunctionMetadata{
					IsAsync:       fn.IsAsync,
					Args:          fn.Args,
					Decorators:    fn.Decorators,
					LineStart:     fn.LineStart,
					LineEnd:       fn.LineEnd,
					IsKeyFunction: false,
				},
			})
		}
	}
	return out, nil
}

func (e *Extractor) modelRules(repo *model.ParsedRepository) ([]Rule, error) {
	var out []Rule
	for i := range repo.Files {
		f := &repo.Files[i]
		if f.Kind != model.StructuredCode {
			continue
		}
		for j := range f.Classes {
			cl := &f.Classes[j]
			if !config.Contains(e.cfg.ModelClasses, cl.Name) {
				continue
			}
			out = append(out, Rule{
				Type:          TypeModel,
				Name:          cl.Name,
				Match:         cl.Name,
				File:          f.Path,
				CodeSnippet:   cl.CodeSnippet,
				QuestionTypes: e.tags(TypeModel),
				Metadata: ModelMetadata{
					Bases:     cl.Bases,
					Methods:   cl.Methods,
					Fields:    extractFields(cl.CodeSnippet),
					ModelType: cl.Name,
				},
			})
		}
	}
	return out, nil
}

// extractFields recovers a best-effort field list from a class body.
// Result order follows pattern-list order, not source order.
func extractFields(snippet string) []string {
	var fields []string
	seen := make(map[string]struct{})
	for _, re := range fieldPatterns {
		for _, m := range re.FindAllString(snippet, -1) {
			m = strings.TrimSpace(m)
			if _, dup := seen[m]; dup {
				continue
			}
			seen[m] = struct{}{}
			fields = append(fields, m)
		}
	}
	return fields
}

func (e *Extractor) classRules(repo *model.ParsedRepository) ([]Rule, error) {
	var out []Rule
	for i := range repo.Files {
		f := &repo.Files[i]
		if f.Kind != model.StructuredCode {
			continue
		}
		for j := range f.Classes {
			cl := &f.Classes[j]
			if config.Contains(e.cfg.ModelClasses, cl.Name) {
				continue // already classified as a model
			}
			out = append(out, Rule{
				Type:          TypeClass,
				Name:          cl.Name,
				Match:         cl.Name,
				File:          f.Path,
				CodeSnippet:   cl.CodeSnippet,
				QuestionTypes: e.tags(TypeClass),
				Metadata: ClassMetadata{
					Bases:     cl.Bases,
					Methods:   cl.Methods,
					Docstring: cl.Docstring,
				},
			})
		}
	}
	return out, nil
}

func (e *Extractor) templateRules(repo *model.ParsedRepository) ([]Rule, error) {
	var out []Rule
	for i := range repo.Files {
		f := &repo.Files[i]
		if f.Kind != model.Markup {
			continue
		}
		out = append(out, Rule{
			Type:          TypeTemplate,
			Name:          f.Name,
			Match:         f.Name,
			File:          f.Path,
			QuestionTypes: e.tags(TypeTemplate),
			Metadata: TemplateMetadata{
				Lines:             f.Lines,
				TemplateVariables: f.TemplateVariables,
				TemplateTags:      f.TemplateTags,
				TextPreview:       f.TextPreview,
			},
		})
	}
	return out, nil
}

func (e *Extractor) importRules(repo *model.ParsedRepository) ([]Rule, error) {
	var out []Rule
	for i := range repo.Files {
		f := &repo.Files[i]
		if f.Kind != model.StructuredCode || len(f.Imports) == 0 {
			continue
		}
		out = append(out, Rule{
			Type:          TypeImport,
			Match:         fmt.Sprintf("%d imports in %s", len(f.Imports), f.Name),
			File:          f.Path,
			QuestionTypes: e.tags(TypeImport),
			Metadata: ImportMetadata{
				Imports:      f.Imports,
				TotalImports: len(f.Imports),
			},
		})
	}
	return out, nil
}

func (e *Extractor) fileStructureRules(repo *model.ParsedRepository) ([]Rule, error) {
	fileTypes := make(map[model.FileKind]int)
	pythonFiles := []string{}
	for i := range repo.Files {
		f := &repo.Files[i]
		fileTypes[f.Kind]++
		if f.Kind == model.StructuredCode {
			pythonFiles = append(pythonFiles, f.Path)
		}
	}

	out := []Rule{{
		Type:          TypeFileStructure,
		Name:          "project_structure",
		Match:         "Project: " + repo.RepoName,
		File:          "all",
		QuestionTypes: e.tags(TypeFileStructure),
		Metadata: FileStructureMetadata{
			RepoName:    repo.RepoName,
			TotalFiles:  len(repo.Files),
			FileTypes:   fileTypes,
			PythonFiles: pythonFiles,
		},
	}}

	// Conventionally important files each get a config rule, enriched with
	// structural facts when the file is structured code.
	for i := range repo.Files {
		f := &repo.Files[i]
		if !config.Contains(e.cfg.ConfigFiles, f.Name) {
			continue
		}
		meta := ConfigMetadata{Lines: f.Lines, FileType: f.Kind}
		if f.Kind == model.StructuredCode {
			meta.Functions = f.Functions
			meta.Classes = f.Classes
			meta.Imports = f.Imports
		}
		out = append(out, Rule{
			Type:          TypeConfig,
			Name:          "config_" + f.Name,
			Match:         f.Name,
			File:          f.Path,
			QuestionTypes: e.tags(TypeConfig),
			Metadata:      meta,
		})
	}

	return out, nil
}
