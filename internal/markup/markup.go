// Package markup extracts template facts from HTML and Jinja files.
package markup

import (
	"regexp"
	"sort"
	"strings"
)

const previewLimit = 200

var (
	variableRe = regexp.MustCompile(`\{\{[^}]*\}\}`)
	tagRe      = regexp.MustCompile(`\{%[^%]*%\}`)
	htmlTagRe  = regexp.MustCompile(`<[^>]*>`)
)

// Result holds the template facts for one markup file. Variables and Tags
// are presence facts: deduplicated and sorted, not an occurrence trace.
type Result struct {
	Variables []string
	Tags      []string
	Preview   string
}

// Analyze extracts template variables, template tags and a plain-text
// preview from markup content.
func Analyze(content string) *Result {
	return &Result{
		Variables: uniqueSorted(variableRe.FindAllString(content, -1)),
		Tags:      uniqueSorted(tagRe.FindAllString(content, -1)),
		Preview:   preview(content),
	}
}

// preview strips angle-bracket tags and both template syntaxes, collapses
// whitespace, and truncates to previewLimit characters. Truncation counts
// runes, not bytes, so multi-byte content stays valid UTF-8.
func preview(content string) string {
	text := htmlTagRe.ReplaceAllString(content, "")
	text = variableRe.ReplaceAllString(text, "")
	text = tagRe.ReplaceAllString(text, "")
	text = strings.Join(strings.Fields(text), " ")
	if runes := []rune(text); len(runes) > previewLimit {
		text = string(runes[:previewLimit])
	}
	return text
}

func uniqueSorted(tokens []string) []string {
	seen := make(map[string]struct{}, len(tokens))
	var out []string
	for _, tok := range tokens {
		if _, ok := seen[tok]; ok {
			continue
		}
		seen[tok] = struct{}{}
		out = append(out, tok)
	}
	sort.Strings(out)
	return out
}
