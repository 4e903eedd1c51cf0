package fsutil

import (
	"os"
	"path/filepath"
	"testing"
)

func TestExpandHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("USERPROFILE", home)

	cases := map[string]string{
		"":                "",
		"/tmp/model.gguf": "/tmp/model.gguf",
		"~":               home,
		"~/models/a.gguf": filepath.Join(home, "models", "a.gguf"),
		"~other/a.gguf":   "~other/a.gguf",
	}
	for in, want := range cases {
		got, err := ExpandHome(in)
		if err != nil {
			t.Fatalf("ExpandHome(%q): %v", in, err)
		}
		if got != want {
			t.Fatalf("ExpandHome(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestRegularFile(t *testing.T) {
	dir := t.TempDir()
	f := filepath.Join(dir, "m.gguf")
	if err := os.WriteFile(f, []byte("gguf"), 0o644); err != nil {
		t.Fatal(err)
	}
	if !RegularFile(f) {
		t.Fatalf("expected %s to be a regular file", f)
	}
	if RegularFile(dir) {
		t.Fatal("directory reported as regular file")
	}
	if RegularFile(filepath.Join(dir, "missing.gguf")) {
		t.Fatal("missing file reported as regular file")
	}
}
