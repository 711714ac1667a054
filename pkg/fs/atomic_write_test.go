package fs_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ringdb/ringdb/pkg/fs"
)

const testContentHello = "hello, atomic world"

func TestAtomicWriter_WriteWithDefaults_CreatesFileAtPath(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "final.txt")

	writer := fs.NewAtomicWriter(fs.NewReal())

	if err := writer.WriteWithDefaults(path, strings.NewReader(testContentHello)); err != nil {
		t.Fatalf("WriteWithDefaults: %v", err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}

	if string(got) != testContentHello {
		t.Fatalf("content = %q, want %q", string(got), testContentHello)
	}
}

func TestAtomicWriter_Write_ReplacesExistingFileContentWholesale(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "index.json")

	if err := os.WriteFile(path, []byte("stale"), 0o644); err != nil {
		t.Fatalf("seed WriteFile: %v", err)
	}

	writer := fs.NewAtomicWriter(fs.NewReal())

	if err := writer.WriteWithDefaults(path, strings.NewReader(testContentHello)); err != nil {
		t.Fatalf("WriteWithDefaults: %v", err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}

	if string(got) != testContentHello {
		t.Fatalf("content = %q, want %q", string(got), testContentHello)
	}
}

func TestAtomicWriter_Write_RejectsEmptyPath(t *testing.T) {
	t.Parallel()

	writer := fs.NewAtomicWriter(fs.NewReal())

	err := writer.Write("", strings.NewReader(testContentHello), writer.DefaultOptions())
	if err == nil {
		t.Fatal("expected error for empty path, got nil")
	}
}
