// Package classify maps file paths to analysis kinds and decides which
// paths are excluded from traversal. Pure functions of path text; no I/O.
package classify

import (
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/pcheng/rulemap/internal/config"
	"github.com/pcheng/rulemap/internal/model"
)

// kindByExtension is the fixed supported-extension table. Anything not
// listed here (and not configured as generic) is invisible to the
// repository model.
var kindByExtension = map[string]model.FileKind{
	".py": model.StructuredCode,

	".html":   model.Markup,
	".htm":    model.Markup,
	".jinja":  model.Markup,
	".jinja2": model.Markup,

	".txt":  model.PlainText,
	".md":   model.PlainText,
	".json": model.PlainText,
	".yaml": model.PlainText,
	".yml":  model.PlainText,
	".xml":  model.PlainText,
	".css":  model.PlainText,
	".js":   model.PlainText,
}

// Classifier decides file kinds and exclusions for one run.
type Classifier struct {
	excludeDirs  []string
	excludeGlobs []string
	genericExts  map[string]struct{}
}

// New builds a Classifier from the injected configuration.
func New(cfg *config.Config) *Classifier {
	c := &Classifier{
		excludeDirs:  cfg.ExcludeDirs,
		excludeGlobs: cfg.ExcludeGlobs,
		genericExts:  make(map[string]struct{}, len(cfg.GenericExtensions)),
	}
	for _, e := range cfg.GenericExtensions {
		c.genericExts[strings.ToLower(e)] = struct{}{}
	}
	return c
}

// Kind returns the file kind for a path, or "" if the file is unsupported
// and should be skipped entirely.
func (c *Classifier) Kind(path string) model.FileKind {
	ext := strings.ToLower(filepath.Ext(path))
	if kind, ok := kindByExtension[ext]; ok {
		return kind
	}
	if _, ok := c.genericExts[ext]; ok {
		return model.Generic
	}
	return ""
}

// Excluded reports whether a repo-relative path is excluded: either an
// excluded directory name appears anywhere in the path (substring match),
// or a configured glob pattern matches it.
func (c *Classifier) Excluded(rel string) bool {
	rel = filepath.ToSlash(rel)
	for _, dir := range c.excludeDirs {
		if strings.Contains(rel, dir) {
			return true
		}
	}
	for _, pattern := range c.excludeGlobs {
		if ok, err := doublestar.Match(pattern, rel); err == nil && ok {
			return true
		}
	}
	return false
}
