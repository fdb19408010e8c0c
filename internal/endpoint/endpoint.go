// Package endpoint detects route registrations by scanning raw source lines.
//
// Route decorators are recognized lexically rather than through the syntax
// tree: framework idioms vary (@app.get, @router.post, @api_v1.delete, ...)
// but all share the @<object>.<verb>("<route>") shape, which a single regex
// matches more reliably than structural inspection.
package endpoint

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/pcheng/rulemap/internal/model"
)

// lookahead is how many lines below a route decorator we search for the
// owning function definition.
const lookahead = 10

var (
	routeRe = regexp.MustCompile(`(?i)@[\w.]+\.(get|post|put|delete|patch|head|options)\(\s*["']([^"']+)["']`)
	defRe   = regexp.MustCompile(`^(async\s+)?def\s+(\w+)`)
)

// Scanner accumulates endpoint facts across files, enforcing the
// (file, method, route) uniqueness invariant. Later duplicates are
// silently dropped.
type Scanner struct {
	seen  map[endpointKey]struct{}
	facts []model.EndpointFact
}

type endpointKey struct {
	file   string
	method string
	route  string
}

// NewScanner returns an empty scanner.
func NewScanner() *Scanner {
	return &Scanner{seen: make(map[endpointKey]struct{})}
}

// ScanFile scans one file's raw lines for route-registration decorators.
// file is the repo-relative path recorded on each fact.
func (s *Scanner) ScanFile(file string, lines []string) {
	for i, line := range lines {
		for _, m := range routeRe.FindAllStringSubmatch(line, -1) {
			method := strings.ToUpper(m[1])
			route := m[2]

			key := endpointKey{file: file, method: method, route: route}
			if _, dup := s.seen[key]; dup {
				continue
			}

			funcName, isAsync := functionAfter(lines, i)
			name := funcName
			if name == "" {
				// Positional placeholder when no definition follows
				// within the window.
				name = fmt.Sprintf("endpoint_%d", i)
			}

			s.seen[key] = struct{}{}
			s.facts = append(s.facts, model.EndpointFact{
				Name:         name,
				Method:       method,
				Route:        route,
				File:         file,
				FunctionName: funcName,
				IsAsync:      isAsync,
			})
		}
	}
}

// Facts returns all collected endpoint facts in detection order.
func (s *Scanner) Facts() []model.EndpointFact {
	return s.facts
}

// functionAfter finds the first function definition within the lookahead
// window below the decorator line and returns its name and async flag.
func functionAfter(lines []string, decoratorLine int) (string, bool) {
	limit := decoratorLine + 1 + lookahead
	if limit > len(lines) {
		limit = len(lines)
	}
	for i := decoratorLine + 1; i < limit; i++ {
		m := defRe.FindStringSubmatch(strings.TrimSpace(lines[i]))
		if m != nil {
			return m[2], m[1] != ""
		}
	}
	return "", false
}
