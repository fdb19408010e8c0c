package rules

import (
	"encoding/json"
	"fmt"

	"github.com/pcheng/rulemap/internal/model"
)

// Type tags a rule with the kind of code element it describes.
type Type string

const (
	TypeEndpoint      Type = "endpoint"
	TypeFunction      Type = "function"
	TypeModel         Type = "model"
	TypeClass         Type = "class"
	TypeTemplate      Type = "template"
	TypeImport        Type = "import"
	TypeConfig        Type = "config"
	TypeFileStructure Type = "file_structure"
)

// Metadata is the type-specific payload of a rule. Exactly one variant
// exists per rule type, so every metadata shape is checked at compile time
// instead of living in an untyped map.
type Metadata interface {
	isMetadata()
}

// EndpointMetadata describes a route registration.
type EndpointMetadata struct {
	HTTPMethod string   `json:"http_method"`
	RoutePath  string   `json:"route_path"`
	LineStart  int      `json:"line_start,omitempty"`
	LineEnd    int      `json:"line_end,omitempty"`
	Decorators []string `json:"decorators,omitempty"`
}

// FunctionMetadata describes a function definition.
type FunctionMetadata struct {
	IsAsync       bool     `json:"is_async"`
	Args          []string `json:"args"`
	Decorators    []string `json:"decorators"`
	LineStart     int      `json:"line_start,omitempty"`
	LineEnd       int      `json:"line_end,omitempty"`
	IsKeyFunction bool     `json:"is_key_function"`
}

// ModelMetadata describes a domain-model class, including the best-effort
// field list recovered from its source text.
type ModelMetadata struct {
	Bases     []string `json:"bases"`
	Methods   []string `json:"methods"`
	Fields    []string `json:"fields"`
	ModelType string   `json:"model_type"`
}

// ClassMetadata describes a plain (non-model) class.
type ClassMetadata struct {
	Bases     []string `json:"bases"`
	Methods   []string `json:"methods"`
	Docstring string   `json:"docstring,omitempty"`
}

// TemplateMetadata describes a markup file.
type TemplateMetadata struct {
	Lines             int      `json:"lines"`
	TemplateVariables []string `json:"template_variables"`
	TemplateTags      []string `json:"template_tags"`
	TextPreview       string   `json:"text_preview"`
}

// ImportMetadata describes one file's import list.
type ImportMetadata struct {
	Imports      []string `json:"imports"`
	TotalImports int      `json:"total_imports"`
}

// FileStructureMetadata summarizes the whole repository.
type FileStructureMetadata struct {
	RepoName    string                 `json:"repo_name"`
	TotalFiles  int                    `json:"total_files"`
	FileTypes   map[model.FileKind]int `json:"file_types"`
	PythonFiles []string               `json:"python_files"`
}

// ConfigMetadata describes a conventionally important file. The structural
// fields are filled only when the file is structured code.
type ConfigMetadata struct {
	Lines     int                    `json:"lines"`
	FileType  model.FileKind         `json:"file_type"`
	Functions []model.FunctionRecord `json:"functions,omitempty"`
	Classes   []model.ClassRecord    `json:"classes,omitempty"`
	Imports   []string               `json:"imports,omitempty"`
}

func (EndpointMetadata) isMetadata()      {}
func (FunctionMetadata) isMetadata()      {}
func (ModelMetadata) isMetadata()         {}
func (ClassMetadata) isMetadata()         {}
func (TemplateMetadata) isMetadata()      {}
func (ImportMetadata) isMetadata()        {}
func (FileStructureMetadata) isMetadata() {}
func (ConfigMetadata) isMetadata()        {}

// Rule is one classified, taggable fact about a code element, ready for
// downstream question generation.
type Rule struct {
	Type          Type     `json:"type"`
	Name          string   `json:"name,omitempty"`
	Match         string   `json:"match"`
	File          string   `json:"file"`
	FunctionName  string   `json:"function_name,omitempty"`
	IsAsync       bool     `json:"is_async,omitempty"`
	CodeSnippet   string   `json:"code_snippet,omitempty"`
	QuestionTypes []string `json:"question_types"`
	Metadata      Metadata `json:"metadata"`
}

// UnmarshalJSON decodes a rule, selecting the metadata variant from the
// type tag so catalog documents can be read back, not only written.
func (r *Rule) UnmarshalJSON(data []byte) error {
	type plain Rule
	aux := struct {
		*plain
		Metadata json.RawMessage `json:"metadata"`
	}{plain: (*plain)(r)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if len(aux.Metadata) == 0 || string(aux.Metadata) == "null" {
		return nil
	}

	meta, err := metadataFor(r.Type)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(aux.Metadata, meta); err != nil {
		return err
	}

	switch m := meta.(type) {
	case *EndpointMetadata:
		r.Metadata = *m
	case *FunctionMetadata:
		r.Metadata = *m
	case *ModelMetadata:
		r.Metadata = *m
	case *ClassMetadata:
		r.Metadata = *m
	case *TemplateMetadata:
		r.Metadata = *m
	case *ImportMetadata:
		r.Metadata = *m
	case *FileStructureMetadata:
		r.Metadata = *m
	case *ConfigMetadata:
		r.Metadata = *m
	}
	return nil
}

func metadataFor(t Type) (any, error) {
	switch t {
	case TypeEndpoint:
		return &EndpointMetadata{}, nil
	case TypeFunction:
		return &FunctionMetadata{}, nil
	case TypeModel:
		return &ModelMetadata{}, nil
	case TypeClass:
		return &ClassMetadata{}, nil
	case TypeTemplate:
		return &TemplateMetadata{}, nil
	case TypeImport:
		return &ImportMetadata{}, nil
	case TypeFileStructure:
		return &FileStructureMetadata{}, nil
	case TypeConfig:
		return &ConfigMetadata{}, nil
	default:
		return nil, fmt.Errorf("unknown rule type %q", t)
	}
}
