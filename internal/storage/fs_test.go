package storage

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/izo/unwebarchiver/internal/checksum"
)

func tempLibrary(t *testing.T) *FS {
	t.Helper()
	s, err := NewFS(t.TempDir())
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	return s
}

func TestWriteAndRead(t *testing.T) {
	s := tempLibrary(t)
	content := []byte("bplist00 payload")
	if err := s.Write("page.webarchive", content); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := s.Read("page.webarchive")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != string(content) {
		t.Errorf("content mismatch: got %q", got)
	}
}

func TestWriteCreatesSubdirs(t *testing.T) {
	s := tempLibrary(t)
	if err := s.Write("news/2026/front.webarchive", []byte("deep")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := s.Read("news/2026/front.webarchive")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != "deep" {
		t.Errorf("content = %q", got)
	}
}

func TestDelete(t *testing.T) {
	s := tempLibrary(t)
	_ = s.Write("del.webarchive", []byte("bye"))
	if err := s.Delete("del.webarchive"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	_, err := s.Read("del.webarchive")
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("Read after delete: got %v, want ErrNotExist", err)
	}
}

func TestMove(t *testing.T) {
	s := tempLibrary(t)
	_ = s.Write("old.webarchive", []byte("data"))
	if err := s.Move("old.webarchive", "sub/new.webarchive"); err != nil {
		t.Fatalf("Move: %v", err)
	}
	got, err := s.Read("sub/new.webarchive")
	if err != nil {
		t.Fatalf("Read after move: %v", err)
	}
	if string(got) != "data" {
		t.Errorf("content = %q", got)
	}
	if _, err := s.Read("old.webarchive"); err == nil {
		t.Error("old path should not exist")
	}
}

func TestList(t *testing.T) {
	s := tempLibrary(t)
	_ = s.Write("a.webarchive", []byte("a"))
	_ = s.Write("sub/b.webarchive", []byte("bb"))
	_ = s.Write("readme.txt", []byte("not an archive"))
	_ = s.Write(".hidden.webarchive", []byte("skip"))

	items, err := s.List("")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("len = %d, want 2", len(items))
	}
	byPath := map[string]int64{}
	for _, it := range items {
		byPath[it.Path] = it.Size
	}
	if byPath["sub/b.webarchive"] != 2 {
		t.Errorf("sizes = %v", byPath)
	}
}

func TestStat(t *testing.T) {
	s := tempLibrary(t)
	_ = s.Write("x.webarchive", []byte("xyz"))

	meta, err := s.Stat("x.webarchive")
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if meta.Checksum != checksum.Sum([]byte("xyz")) {
		t.Errorf("checksum = %s", meta.Checksum)
	}
	if meta.Size != 3 || meta.UpdatedAt.IsZero() {
		t.Errorf("meta = %+v", meta)
	}
	if _, err := s.Stat("missing.webarchive"); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("Stat missing: %v", err)
	}
}

func TestIsArchive(t *testing.T) {
	cases := map[string]bool{
		"a.webarchive":     true,
		".webarchive":      false,
		"a.webarchive.bak": false,
		"a.md":             false,
	}
	for name, want := range cases {
		if got := IsArchive(name); got != want {
			t.Errorf("IsArchive(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestTraversalBlocked(t *testing.T) {
	s := tempLibrary(t)

	cases := []string{
		"../../etc/passwd",
		"../outside.webarchive",
		"/etc/shadow",
	}
	for _, p := range cases {
		if _, err := s.Read(p); err == nil {
			t.Errorf("expected error for path %q", p)
		}
		if err := s.Write(p, []byte("x")); err == nil {
			t.Errorf("expected error for write to %q", p)
		}
	}
}

func TestAtomicWriteLeavesNoTemp(t *testing.T) {
	s := tempLibrary(t)
	_ = s.Write("atomic.webarchive", []byte("original content"))

	updated := []byte("updated content")
	if err := s.Write("atomic.webarchive", updated); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, _ := s.Read("atomic.webarchive")
	if string(got) != string(updated) {
		t.Errorf("expected updated content, got %q", got)
	}

	matches, _ := filepath.Glob(filepath.Join(s.root, tmpPattern))
	if len(matches) != 0 {
		t.Errorf("leftover temp files: %v", matches)
	}
}

func TestNewFS_NonExistentDir(t *testing.T) {
	if _, err := NewFS(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("expected error for non-existent dir")
	}
}

func TestNewFS_FileNotDir(t *testing.T) {
	f, _ := os.CreateTemp(t.TempDir(), "unwebarchiver-test-*")
	_ = f.Close()
	if _, err := NewFS(f.Name()); err == nil {
		t.Error("expected error when root is a file")
	}
}
