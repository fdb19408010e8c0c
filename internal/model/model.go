// Package model defines core data structures for rulemap.
package model

// FileKind classifies a file by what kind of analysis it received.
type FileKind string

const (
	// StructuredCode files are syntax-parsed for functions, classes and imports.
	StructuredCode FileKind = "structured-code"
	// Markup files are scanned for template variables and tags.
	Markup FileKind = "markup"
	// PlainText files are recorded with a line count only.
	PlainText FileKind = "plain-text"
	// Generic files are recorded with a byte size; content is never read.
	Generic FileKind = "generic"
)

// FunctionRecord is a single function or method extracted from a
// structured-code file.
type FunctionRecord struct {
	Name        string   `json:"name"`
	Args        []string `json:"args"`
	Decorators  []string `json:"decorators"`
	IsAsync     bool     `json:"is_async"`
	LineStart   int      `json:"line_start"`
	LineEnd     int      `json:"line_end"`
	CodeSnippet string   `json:"code_snippet"`
	Docstring   string   `json:"docstring,omitempty"`
}

// ClassRecord is a single class extracted from a structured-code file.
type ClassRecord struct {
	Name        string   `json:"name"`
	Bases       []string `json:"bases"`
	Methods     []string `json:"methods"`
	LineStart   int      `json:"line_start"`
	LineEnd     int      `json:"line_end"`
	CodeSnippet string   `json:"code_snippet"`
	Docstring   string   `json:"docstring,omitempty"`
}

// FileRecord holds the extracted facts for one file. Which fields are
// populated depends on Kind: structured-code fills Functions, Classes and
// Imports; markup fills TemplateVariables, TemplateTags and TextPreview;
// generic fills Size only.
type FileRecord struct {
	Path  string   `json:"file_path"`
	Name  string   `json:"file_name"`
	Kind  FileKind `json:"file_type"`
	Lines int      `json:"lines"`

	Functions []FunctionRecord `json:"functions,omitempty"`
	Classes   []ClassRecord    `json:"classes,omitempty"`
	Imports   []string         `json:"imports,omitempty"`

	TemplateVariables []string `json:"template_variables,omitempty"`
	TemplateTags      []string `json:"template_tags,omitempty"`
	TextPreview       string   `json:"text_preview,omitempty"`

	Size int64 `json:"size,omitempty"`
}

// EndpointFact is a detected route registration associated with a handler
// function. No two facts in one repository share (File, Method, Route).
type EndpointFact struct {
	Name         string `json:"name"`
	Method       string `json:"method"`
	Route        string `json:"route"`
	File         string `json:"file"`
	FunctionName string `json:"function_name"`
	IsAsync      bool   `json:"is_async"`
}

// KeyFunctionFact is an occurrence of an allowlisted function name.
type KeyFunctionFact struct {
	Name        string `json:"name"`
	File        string `json:"file"`
	CodeSnippet string `json:"code_snippet"`
}

// KeyClassFact is an occurrence of an allowlisted class name.
type KeyClassFact struct {
	Name        string `json:"name"`
	File        string `json:"file"`
	CodeSnippet string `json:"code_snippet"`
}

// ParsedRepository is the complete analyzed repository, built once per run
// and immutable after the walk completes.
type ParsedRepository struct {
	RepoName     string            `json:"repo_name"`
	Files        []FileRecord      `json:"files"`
	APIEndpoints []EndpointFact    `json:"api_endpoints"`
	KeyFunctions []KeyFunctionFact `json:"key_functions"`
	KeyClasses   []KeyClassFact    `json:"key_classes"`
}

// FileByPath returns the file record with the given repo-relative path,
// or nil if absent.
func (r *ParsedRepository) FileByPath(path string) *FileRecord {
	for i := range r.Files {
		if r.Files[i].Path == path {
			return &r.Files[i]
		}
	}
	return nil
}

// FunctionIn returns the named function record within a file, or nil.
func (r *ParsedRepository) FunctionIn(path, name string) *FunctionRecord {
	f := r.FileByPath(path)
	if f == nil {
		return nil
	}
	for i := range f.Functions {
		if f.Functions[i].Name == name {
			return &f.Functions[i]
		}
	}
	return nil
}

// ClassIn returns the named class record within a file, or nil.
func (r *ParsedRepository) ClassIn(path, name string) *ClassRecord {
	f := r.FileByPath(path)
	if f == nil {
		return nil
	}
	for i := range f.Classes {
		if f.Classes[i].Name == name {
			return &f.Classes[i]
		}
	}
	return nil
}
