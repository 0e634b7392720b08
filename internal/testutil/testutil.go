// Package testutil provides shared test helpers for setting up libraries and databases.
package testutil

import (
	"os"
	"testing"

	"github.com/izo/unwebarchiver/internal/index"
	"github.com/izo/unwebarchiver/internal/storage"
	"github.com/izo/unwebarchiver/internal/webarchive/webarchivetest"
)

// TestDB creates a temporary SQLite database that is automatically cleaned up.
func TestDB(t *testing.T) *index.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "unwebarchiver-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := index.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestLibrary creates a temporary library directory with a storage.Provider.
func TestLibrary(t *testing.T) (string, storage.Provider) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	return dir, store
}

// SamplePage returns an encoded archive of a single HTML page whose body
// contains text.
func SamplePage(url, text string) []byte {
	return webarchivetest.Page(url, "text/html", []byte("<html><body><p>"+text+"</p></body></html>"))
}
