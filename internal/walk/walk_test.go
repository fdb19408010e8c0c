package walk

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/pcheng/rulemap/internal/config"
	"github.com/pcheng/rulemap/internal/model"
)

const appSource = `from fastapi import FastAPI
from sqlmodel import SQLModel, Field

app = FastAPI()


def get_db_session():
    """Yield a database session."""
    yield session


class Restaurant(SQLModel, table=True):
    id: int = Field(default=None, primary_key=True)
    name: str = Field(index=True)


@app.get("/restaurants")
async def list_restaurants():
    return []
`

func writeRepo(t *testing.T, files map[string][]byte) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, content, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return root
}

func walkRepo(t *testing.T, root string) *model.ParsedRepository {
	t.Helper()
	repo, err := New(root, config.Default(), io.Discard).Walk(context.Background())
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	return repo
}

func fileByPath(repo *model.ParsedRepository, path string) *model.FileRecord {
	return repo.FileByPath(path)
}

func TestWalkMissingRoot(t *testing.T) {
	t.Parallel()
	_, err := New(filepath.Join(t.TempDir(), "nope"), config.Default(), io.Discard).Walk(context.Background())
	if err == nil {
		t.Fatal("expected error for missing root")
	}
}

func TestWalkRootNotDirectory(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := New(path, config.Default(), io.Discard).Walk(context.Background())
	if err == nil {
		t.Fatal("expected error for non-directory root")
	}
}

func TestWalkRepository(t *testing.T) {
	t.Parallel()
	root := writeRepo(t, map[string][]byte{
		"app.py":               []byte(appSource),
		"templates/index.html": []byte(`<h1>{{ title }}</h1>{% block body %}{% endblock %}`),
		"README.md":            []byte("# Demo\n\nA demo repo.\n"),
		"data.bin":             {0x00, 0x01, 0x02},
		".git/config":          []byte("[core]\n"),
	})
	repo := walkRepo(t, root)

	if len(repo.Files) != 3 {
		t.Fatalf("expected 3 files, got %d: %+v", len(repo.Files), repo.Files)
	}

	py := fileByPath(repo, "app.py")
	if py == nil {
		t.Fatal("app.py not recorded")
	}
	if py.Kind != model.StructuredCode {
		t.Errorf("app.py kind = %q", py.Kind)
	}
	if len(py.Functions) != 2 {
		t.Errorf("app.py functions = %d, want 2", len(py.Functions))
	}
	if len(py.Classes) != 1 {
		t.Errorf("app.py classes = %d, want 1", len(py.Classes))
	}
	if len(py.Imports) != 3 {
		t.Errorf("app.py imports = %v, want 3 entries", py.Imports)
	}

	html := fileByPath(repo, "templates/index.html")
	if html == nil {
		t.Fatal("index.html not recorded")
	}
	if len(html.TemplateVariables) != 1 || len(html.TemplateTags) != 2 {
		t.Errorf("template facts = %v / %v", html.TemplateVariables, html.TemplateTags)
	}

	md := fileByPath(repo, "README.md")
	if md == nil || md.Kind != model.PlainText || md.Lines != 3 {
		t.Errorf("README.md record wrong: %+v", md)
	}

	if fileByPath(repo, "data.bin") != nil {
		t.Error("unsupported extension must be invisible")
	}
	if fileByPath(repo, ".git/config") != nil {
		t.Error(".git contents must be excluded")
	}
}

func TestWalkEndpointsAndKeyElements(t *testing.T) {
	t.Parallel()
	root := writeRepo(t, map[string][]byte{"app.py": []byte(appSource)})
	repo := walkRepo(t, root)

	if len(repo.APIEndpoints) != 1 {
		t.Fatalf("endpoints = %+v, want 1", repo.APIEndpoints)
	}
	ep := repo.APIEndpoints[0]
	if ep.Method != "GET" || ep.Route != "/restaurants" || ep.FunctionName != "list_restaurants" || !ep.IsAsync {
		t.Errorf("endpoint = %+v", ep)
	}

	if len(repo.KeyFunctions) != 1 || repo.KeyFunctions[0].Name != "get_db_session" {
		t.Errorf("key functions = %+v", repo.KeyFunctions)
	}
	if len(repo.KeyClasses) != 1 || repo.KeyClasses[0].Name != "Restaurant" {
		t.Errorf("key classes = %+v", repo.KeyClasses)
	}
	if repo.KeyClasses[0].CodeSnippet == "" {
		t.Error("key class snippet empty")
	}
}

func TestWalkSyntaxErrorFileKept(t *testing.T) {
	t.Parallel()
	root := writeRepo(t, map[string][]byte{"broken.py": []byte("def broken(:\n    pass\n")})
	repo := walkRepo(t, root)

	rec := fileByPath(repo, "broken.py")
	if rec == nil {
		t.Fatal("file with syntax error must still be recorded")
	}
	if rec.Lines != 2 {
		t.Errorf("lines = %d, want 2", rec.Lines)
	}
	if len(rec.Functions) != 0 || len(rec.Classes) != 0 || len(rec.Imports) != 0 {
		t.Errorf("structural facts must be empty: %+v", rec)
	}
	if len(repo.APIEndpoints) != 0 {
		t.Errorf("no endpoints expected from unparsed file, got %+v", repo.APIEndpoints)
	}
}

func TestWalkUndecodableTextSkipped(t *testing.T) {
	t.Parallel()
	// Invalid as UTF-8 and as GBK (0x81 0x00 is an illegal GBK pair).
	root := writeRepo(t, map[string][]byte{
		"garbage.txt": {0xFF, 0x81, 0x00, 0xFE},
		"ok.txt":      []byte("fine\n"),
	})
	repo := walkRepo(t, root)

	if fileByPath(repo, "garbage.txt") != nil {
		t.Error("undecodable file must be skipped")
	}
	if fileByPath(repo, "ok.txt") == nil {
		t.Error("ok.txt missing")
	}
}

func TestWalkGBKFallback(t *testing.T) {
	t.Parallel()
	// "你好" encoded as GBK, invalid as UTF-8.
	gbk := []byte{0xC4, 0xE3, 0xBA, 0xC3, '\n', 'o', 'k', '\n'}
	root := writeRepo(t, map[string][]byte{"notes.txt": gbk})
	repo := walkRepo(t, root)

	rec := fileByPath(repo, "notes.txt")
	if rec == nil {
		t.Fatal("GBK file must decode via fallback")
	}
	if rec.Lines != 2 {
		t.Errorf("lines = %d, want 2", rec.Lines)
	}
}

func TestWalkGenericSampling(t *testing.T) {
	t.Parallel()
	cfg := config.Default()
	cfg.GenericExtensions = []string{".bin"}
	root := writeRepo(t, map[string][]byte{"blob.bin": {1, 2, 3, 4, 5}})

	repo, err := New(root, cfg, io.Discard).Walk(context.Background())
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}

	rec := repo.FileByPath("blob.bin")
	if rec == nil {
		t.Fatal("generic file not recorded")
	}
	if rec.Kind != model.Generic || rec.Size != 5 || rec.Lines != 0 {
		t.Errorf("generic record = %+v", rec)
	}
}

func TestWalkGitignore(t *testing.T) {
	t.Parallel()
	root := writeRepo(t, map[string][]byte{
		".gitignore": []byte("ignored.py\n"),
		"ignored.py": []byte("x = 1\n"),
		"kept.py":    []byte("y = 2\n"),
	})
	repo := walkRepo(t, root)

	if fileByPath(repo, "ignored.py") != nil {
		t.Error("gitignored file must be skipped")
	}
	if fileByPath(repo, "kept.py") == nil {
		t.Error("kept.py missing")
	}
}

func TestWalkDeterministic(t *testing.T) {
	t.Parallel()
	root := writeRepo(t, map[string][]byte{
		"b.py":      []byte("def b():\n    pass\n"),
		"a.py":      []byte("def a():\n    pass\n"),
		"c/d.py":    []byte("def d():\n    pass\n"),
		"README.md": []byte("hi\n"),
	})

	first := walkRepo(t, root)
	second := walkRepo(t, root)

	if !reflect.DeepEqual(first, second) {
		t.Error("two walks over an unchanged tree must produce identical results")
	}
	for i := 1; i < len(first.Files); i++ {
		if first.Files[i-1].Path >= first.Files[i].Path {
			t.Errorf("files not in sorted path order: %q before %q",
				first.Files[i-1].Path, first.Files[i].Path)
		}
	}
}

func TestCountLines(t *testing.T) {
	t.Parallel()
	cases := []struct {
		in   string
		want int
	}{
		{"", 0},
		{"a", 1},
		{"a\n", 1},
		{"a\nb", 2},
		{"a\nb\n", 2},
	}
	for _, tc := range cases {
		if got := countLines(tc.in); got != tc.want {
			t.Errorf("countLines(%q) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestDecodeText(t *testing.T) {
	t.Parallel()
	if _, err := decodeText([]byte("plain utf-8")); err != nil {
		t.Errorf("utf-8 decode failed: %v", err)
	}
	if s, err := decodeText([]byte{0xC4, 0xE3, 0xBA, 0xC3}); err != nil || s != "你好" {
		t.Errorf("gbk decode = %q, %v", s, err)
	}
	if _, err := decodeText([]byte{0xFF, 0x81, 0x00, 0xFE}); err == nil {
		t.Error("expected error for undecodable bytes")
	}
}
