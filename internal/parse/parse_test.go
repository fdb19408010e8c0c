package parse

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func parseSource(t *testing.T, source string) *Result {
	t.Helper()
	res, err := NewParser().File(context.Background(), []byte(source))
	if err != nil {
		t.Fatalf("File: %v", err)
	}
	return res
}

func TestExtractFunction(t *testing.T) {
	t.Parallel()
	res := parseSource(t, `def greet(name, times=1):
    """Say hello."""
    return name * times
`)

	if len(res.Functions) != 1 {
		t.Fatalf("expected 1 function, got %d", len(res.Functions))
	}
	f := res.Functions[0]
	if f.Name != "greet" {
		t.Errorf("name = %q, want greet", f.Name)
	}
	if len(f.Args) != 2 || f.Args[0] != "name" || f.Args[1] != "times" {
		t.Errorf("args = %v, want [name times]", f.Args)
	}
	if f.IsAsync {
		t.Error("is_async = true, want false")
	}
	if f.LineStart != 1 || f.LineEnd != 3 {
		t.Errorf("lines = %d-%d, want 1-3", f.LineStart, f.LineEnd)
	}
	if f.Docstring != "Say hello." {
		t.Errorf("docstring = %q", f.Docstring)
	}
}

func TestExtractAsyncFunction(t *testing.T) {
	t.Parallel()
	res := parseSource(t, "async def fetch(url):\n    return await get(url)\n")

	if len(res.Functions) != 1 {
		t.Fatalf("expected 1 function, got %d", len(res.Functions))
	}
	if !res.Functions[0].IsAsync {
		t.Error("is_async = false, want true")
	}
}

func TestExtractTypedParameters(t *testing.T) {
	t.Parallel()
	res := parseSource(t, "def f(a: int, b: str = \"x\", c=None):\n    pass\n")

	got := res.Functions[0].Args
	want := []string{"a", "b", "c"}
	if len(got) != len(want) {
		t.Fatalf("args = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("args[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestDecoratorsFromRawLines(t *testing.T) {
	t.Parallel()
	source := `@app.get("/items")
@cache
def list_items():
    pass
`
	res := parseSource(t, source)

	f := res.Functions[0]
	if len(f.Decorators) != 2 {
		t.Fatalf("decorators = %v, want 2 entries", f.Decorators)
	}
	if f.Decorators[0] != `@app.get("/items")` || f.Decorators[1] != "@cache" {
		t.Errorf("decorators = %v, wrong order or text", f.Decorators)
	}
	// Span starts at the first decorator line.
	if !strings.HasPrefix(f.CodeSnippet, `@app.get("/items")`) {
		t.Errorf("snippet does not start at first decorator: %q", f.CodeSnippet)
	}
	if f.LineStart != 3 {
		t.Errorf("line_start = %d, want 3 (the def line)", f.LineStart)
	}
}

func TestDecoratorsFallbackToTree(t *testing.T) {
	t.Parallel()
	// The argument spans multiple lines, so the line above the def does
	// not start with "@" and the raw-line scan finds nothing.
	source := `@app.get(
    "/items")
def list_items():
    pass
`
	res := parseSource(t, source)

	f := res.Functions[0]
	if len(f.Decorators) != 1 {
		t.Fatalf("decorators = %v, want 1 entry from tree fallback", f.Decorators)
	}
	if f.Decorators[0] != "@app.get(" {
		t.Errorf("decorator = %q, want the decorator's first source line", f.Decorators[0])
	}
	if !strings.HasPrefix(f.CodeSnippet, "@app.get(") {
		t.Errorf("snippet does not start at decorator: %q", f.CodeSnippet)
	}
}

func TestSpanLineCount(t *testing.T) {
	t.Parallel()
	source := `def a():
    x = 1
    return x


def b():
    pass
`
	res := parseSource(t, source)

	for _, f := range res.Functions {
		if f.LineEnd < f.LineStart {
			t.Errorf("%s: line_end %d < line_start %d", f.Name, f.LineEnd, f.LineStart)
		}
		gotLines := len(strings.Split(f.CodeSnippet, "\n"))
		wantLines := f.LineEnd - f.LineStart + 1
		if gotLines != wantLines {
			t.Errorf("%s: snippet has %d lines, want %d", f.Name, gotLines, wantLines)
		}
	}
}

func TestExtractClass(t *testing.T) {
	t.Parallel()
	source := `class Restaurant(SQLModel, table=True):
    """A restaurant that can be reviewed."""

    def save(self):
        pass

    @property
    def label(self):
        return self.name
`
	res := parseSource(t, source)

	if len(res.Classes) != 1 {
		t.Fatalf("expected 1 class, got %d", len(res.Classes))
	}
	c := res.Classes[0]
	if c.Name != "Restaurant" {
		t.Errorf("name = %q, want Restaurant", c.Name)
	}
	if len(c.Bases) != 1 || c.Bases[0] != "SQLModel" {
		t.Errorf("bases = %v, want [SQLModel] (keyword args excluded)", c.Bases)
	}
	if len(c.Methods) != 2 || c.Methods[0] != "save" || c.Methods[1] != "label" {
		t.Errorf("methods = %v, want [save label]", c.Methods)
	}
	if c.Docstring != "A restaurant that can be reviewed." {
		t.Errorf("docstring = %q", c.Docstring)
	}
}

func TestMethodsAppearInFunctionList(t *testing.T) {
	t.Parallel()
	source := `class C:
    def m(self):
        def nested():
            pass
        return nested
`
	res := parseSource(t, source)

	names := make(map[string]bool)
	for _, f := range res.Functions {
		names[f.Name] = true
	}
	if !names["m"] || !names["nested"] {
		t.Errorf("functions = %v, want both m and nested", names)
	}
}

func TestNormalizeImports(t *testing.T) {
	t.Parallel()
	source := `import os
import numpy as np
from pathlib import Path
from typing import Optional, List
from sqlmodel import *
import os
`
	res := parseSource(t, source)

	want := []string{
		"from pathlib import Path",
		"from sqlmodel import *",
		"from typing import List",
		"from typing import Optional",
		"import numpy",
		"import os",
	}
	if len(res.Imports) != len(want) {
		t.Fatalf("imports = %v, want %v", res.Imports, want)
	}
	for i := range want {
		if res.Imports[i] != want[i] {
			t.Errorf("imports[%d] = %q, want %q", i, res.Imports[i], want[i])
		}
	}
}

func TestSyntaxError(t *testing.T) {
	t.Parallel()
	_, err := NewParser().File(context.Background(), []byte("def broken(:\n"))
	if !errors.Is(err, ErrSyntax) {
		t.Fatalf("err = %v, want ErrSyntax", err)
	}
}

func TestEmptyFile(t *testing.T) {
	t.Parallel()
	res := parseSource(t, "")

	if len(res.Functions) != 0 || len(res.Classes) != 0 || len(res.Imports) != 0 {
		t.Errorf("empty file yielded facts: %+v", res)
	}
}
