package collector

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/GoCodeAlone/release-action/bytebase"
)

func writeFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		p := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(content), 0o600); err != nil {
			t.Fatal(err)
		}
	}
}

func TestCollectSkipsUnversionedFiles(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"migrations/001_init.sql":        "CREATE TABLE t (id INT);",
		"migrations/002_add_col_dml.sql": "UPDATE t SET id = 1;",
		"migrations/bad.sql":             "SELECT 1;",
	})

	files, err := New(nil).Collect(dir, "migrations/*.sql")
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("expected 2 files, got %d: %+v", len(files), files)
	}

	want := []struct {
		path, version string
		changeType    bytebase.ChangeType
	}{
		{"migrations/001_init.sql", "001", bytebase.ChangeTypeDDL},
		{"migrations/002_add_col_dml.sql", "002", bytebase.ChangeTypeDML},
	}
	for i, w := range want {
		f := files[i]
		if f.Path != w.path || f.Version != w.version || f.ChangeType != w.changeType {
			t.Errorf("file %d = {%s %s %s}, want %+v", i, f.Path, f.Version, f.ChangeType, w)
		}
		if f.Type != bytebase.FileTypeVersioned {
			t.Errorf("file %d type = %s", i, f.Type)
		}
	}
	if string(files[0].Content) != "CREATE TABLE t (id INT);" {
		t.Errorf("content = %q", files[0].Content)
	}
}

func TestCollectRecursiveAndAbsolutePatterns(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"db/a/10_create.sql":       "x",
		"db/b/20_backfill_dml.sql": "y",
		"db/b/notes.md":            "z",
	})

	rel, err := New(nil).Collect(dir, "./db/**/*.sql")
	if err != nil {
		t.Fatalf("relative: %v", err)
	}
	if len(rel) != 2 || rel[0].Path != "db/a/10_create.sql" || rel[1].Path != "db/b/20_backfill_dml.sql" {
		t.Errorf("relative pattern = %+v", rel)
	}

	abs, err := New(nil).Collect(dir, filepath.Join(dir, "db", "**", "*.sql"))
	if err != nil {
		t.Fatalf("absolute: %v", err)
	}
	if len(abs) != 2 || abs[0].Path != "db/a/10_create.sql" {
		t.Errorf("absolute pattern = %+v", abs)
	}
}

func TestCollectPatternOutsideWorkdir(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"shared/001_a.sql":      "CREATE TABLE a (id INT);",
		"repo/migrations/.keep": "",
	})
	workdir := filepath.Join(root, "repo")

	files, err := New(nil).Collect(workdir, "../shared/*.sql")
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if len(files) != 1 || files[0].Path != "../shared/001_a.sql" || files[0].Version != "001" {
		t.Errorf("files = %+v", files)
	}
}

func TestCollectNoFiles(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{"migrations/readme.sql": "--"})

	for _, pattern := range []string{"migrations/*.sql", "nothing/*.sql"} {
		_, err := New(nil).Collect(dir, pattern)
		if !errors.Is(err, ErrNoFilesFound) {
			t.Errorf("%s: expected ErrNoFilesFound, got %v", pattern, err)
		}
	}
}

func TestChangeTypeOf(t *testing.T) {
	tests := []struct {
		name string
		want bytebase.ChangeType
	}{
		{"001_init.sql", bytebase.ChangeTypeDDL},
		{"002_seed_dml.sql", bytebase.ChangeTypeDML},
		{"003_alter_ghost.sql", bytebase.ChangeTypeDDLGhost},
		{"004_dml.ghost", bytebase.ChangeTypeDML},
		{"005_dml_ghost.sql", bytebase.ChangeTypeDDLGhost},
		{"006_dml.sql.bak", bytebase.ChangeTypeDDL},
		{"007_ghostdml.sql", bytebase.ChangeTypeDML},
		{"008", bytebase.ChangeTypeDDL},
	}
	for _, tt := range tests {
		if got := ChangeTypeOf(tt.name); got != tt.want {
			t.Errorf("ChangeTypeOf(%q) = %s, want %s", tt.name, got, tt.want)
		}
	}
}
