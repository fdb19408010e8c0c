// Package walk traverses a repository, dispatches each file to the right
// analyzer, and aggregates the results into a ParsedRepository.
package walk

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	ignore "github.com/sabhiram/go-gitignore"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/transform"

	"github.com/pcheng/rulemap/internal/classify"
	"github.com/pcheng/rulemap/internal/config"
	"github.com/pcheng/rulemap/internal/endpoint"
	"github.com/pcheng/rulemap/internal/markup"
	"github.com/pcheng/rulemap/internal/model"
	"github.com/pcheng/rulemap/internal/parse"
)

// Walker runs the sequential analysis pipeline over one repository root.
type Walker struct {
	root       string
	cfg        *config.Config
	classifier *classify.Classifier
	parser     *parse.Parser
	stderr     io.Writer
}

// New creates a Walker for the given root directory.
func New(root string, cfg *config.Config, stderr io.Writer) *Walker {
	return &Walker{
		root:       root,
		cfg:        cfg,
		classifier: classify.New(cfg),
		parser:     parse.NewParser(),
		stderr:     stderr,
	}
}

type entry struct {
	rel  string
	kind model.FileKind
}

// Walk analyzes the repository and returns the parsed model. The root must
// exist and be a directory; every other failure degrades to fewer facts.
func (w *Walker) Walk(ctx context.Context) (*model.ParsedRepository, error) {
	root, err := filepath.Abs(w.root)
	if err != nil {
		return nil, fmt.Errorf("resolving root: %w", err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("root path: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s: not a directory", root)
	}

	entries, err := w.discover(root)
	if err != nil {
		return nil, fmt.Errorf("discovering files: %w", err)
	}

	repo := &model.ParsedRepository{
		RepoName:     filepath.Base(root),
		APIEndpoints: []model.EndpointFact{},
		KeyFunctions: []model.KeyFunctionFact{},
		KeyClasses:   []model.KeyClassFact{},
	}
	scanner := endpoint.NewScanner()

	for _, e := range entries {
		abs := filepath.Join(root, e.rel)
		switch e.kind {
		case model.StructuredCode:
			if rec, ok := w.analyzeStructured(ctx, abs, e.rel, scanner); ok {
				repo.Files = append(repo.Files, rec)
			}
		case model.Markup:
			if rec, ok := w.analyzeMarkup(abs, e.rel); ok {
				repo.Files = append(repo.Files, rec)
			}
		case model.PlainText:
			if rec, ok := w.analyzePlainText(abs, e.rel); ok {
				repo.Files = append(repo.Files, rec)
			}
		case model.Generic:
			if rec, ok := w.sampleGeneric(abs, e.rel); ok {
				repo.Files = append(repo.Files, rec)
			}
		}
	}

	repo.APIEndpoints = append(repo.APIEndpoints, scanner.Facts()...)
	w.collectKeyElements(repo)

	return repo, nil
}

// discover lists supported files under root in lexicographic path order,
// honoring the exclusion config and a root .gitignore when present.
func (w *Walker) discover(root string) ([]entry, error) {
	gi := loadGitignore(root)

	var entries []entry
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil // skip unreadable paths
		}
		if path == root {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}

		if d.IsDir() {
			if w.classifier.Excluded(rel) {
				return filepath.SkipDir
			}
			return nil
		}

		if d.Type()&os.ModeSymlink != 0 {
			return nil
		}
		if w.classifier.Excluded(rel) {
			return nil
		}
		if gi != nil && gi.MatchesPath(rel) {
			return nil
		}

		kind := w.classifier.Kind(d.Name())
		if kind == "" {
			return nil
		}

		entries = append(entries, entry{rel: filepath.ToSlash(rel), kind: kind})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].rel < entries[j].rel
	})

	return entries, nil
}

func (w *Walker) analyzeStructured(ctx context.Context, abs, rel string, scanner *endpoint.Scanner) (model.FileRecord, bool) {
	content, ok := w.readText(abs, rel)
	if !ok {
		return model.FileRecord{}, false
	}

	rec := model.FileRecord{
		Path:  rel,
		Name:  filepath.Base(rel),
		Kind:  model.StructuredCode,
		Lines: countLines(content),
	}

	res, err := w.parser.File(ctx, []byte(content))
	if err != nil {
		// The file stays in the repository with zero structural facts;
		// only its path, kind and line count are known.
		if errors.Is(err, parse.ErrSyntax) {
			w.warnf("%s: syntax error, structural facts omitted", rel)
		} else {
			w.warnf("%s: %v", rel, err)
		}
		return rec, true
	}

	rec.Functions = res.Functions
	rec.Classes = res.Classes
	rec.Imports = res.Imports

	scanner.ScanFile(rel, strings.Split(content, "\n"))

	return rec, true
}

func (w *Walker) analyzeMarkup(abs, rel string) (model.FileRecord, bool) {
	content, ok := w.readText(abs, rel)
	if !ok {
		return model.FileRecord{}, false
	}

	res := markup.Analyze(content)
	return model.FileRecord{
		Path:              rel,
		Name:              filepath.Base(rel),
		Kind:              model.Markup,
		Lines:             countLines(content),
		TemplateVariables: res.Variables,
		TemplateTags:      res.Tags,
		TextPreview:       res.Preview,
	}, true
}

func (w *Walker) analyzePlainText(abs, rel string) (model.FileRecord, bool) {
	content, ok := w.readText(abs, rel)
	if !ok {
		return model.FileRecord{}, false
	}

	return model.FileRecord{
		Path:  rel,
		Name:  filepath.Base(rel),
		Kind:  model.PlainText,
		Lines: countLines(content),
	}, true
}

// sampleGeneric records byte size only; content is never opened.
func (w *Walker) sampleGeneric(abs, rel string) (model.FileRecord, bool) {
	info, err := os.Stat(abs)
	if err != nil {
		w.warnf("%s: %v", rel, err)
		return model.FileRecord{}, false
	}

	return model.FileRecord{
		Path: rel,
		Name: filepath.Base(rel),
		Kind: model.Generic,
		Size: info.Size(),
	}, true
}

// readText reads a file and decodes it as UTF-8, falling back to GBK.
// A file that decodes under neither encoding is skipped with a warning.
func (w *Walker) readText(abs, rel string) (string, bool) {
	data, err := os.ReadFile(abs)
	if err != nil {
		w.warnf("%s: %v", rel, err)
		return "", false
	}

	content, err := decodeText(data)
	if err != nil {
		w.warnf("%s: %v, file skipped", rel, err)
		return "", false
	}
	return content, true
}

func decodeText(data []byte) (string, error) {
	if utf8.Valid(data) {
		return string(data), nil
	}

	decoded, _, err := transform.Bytes(simplifiedchinese.GBK.NewDecoder(), data)
	if err != nil {
		return "", fmt.Errorf("decoding: %w", err)
	}
	// The GBK decoder substitutes U+FFFD for invalid input instead of
	// failing; treat any substitution as a decode failure.
	if strings.ContainsRune(string(decoded), utf8.RuneError) {
		return "", errors.New("not valid UTF-8 or GBK")
	}
	return string(decoded), nil
}

// collectKeyElements records occurrences of allowlisted function and class
// names at the repository level.
func (w *Walker) collectKeyElements(repo *model.ParsedRepository) {
	for i := range repo.Files {
		f := &repo.Files[i]
		for j := range f.Functions {
			fn := &f.Functions[j]
			if config.Contains(w.cfg.KeyFunctions, fn.Name) {
				repo.KeyFunctions = append(repo.KeyFunctions, model.KeyFunctionFact{
					Name:        fn.Name,
					File:        f.Path,
					CodeSnippet: fn.CodeSnippet,
				})
			}
		}
		for j := range f.Classes {
			cl := &f.Classes[j]
			if config.Contains(w.cfg.KeyClasses, cl.Name) {
				repo.KeyClasses = append(repo.KeyClasses, model.KeyClassFact{
					Name:        cl.Name,
					File:        f.Path,
					CodeSnippet: cl.CodeSnippet,
				})
			}
		}
	}
}

// countLines counts lines the way Python's splitlines does: a trailing
// newline does not start another line, and empty content has zero lines.
func countLines(s string) int {
	if s == "" {
		return 0
	}
	n := strings.Count(s, "\n")
	if !strings.HasSuffix(s, "\n") {
		n++
	}
	return n
}

func loadGitignore(root string) *ignore.GitIgnore {
	gi, err := ignore.CompileIgnoreFile(filepath.Join(root, ".gitignore"))
	if err != nil {
		return nil
	}
	return gi
}

func (w *Walker) warnf(format string, args ...any) {
	if w.stderr != nil {
		fmt.Fprintf(w.stderr, "Warning: "+format+"\n", args...)
	}
}
