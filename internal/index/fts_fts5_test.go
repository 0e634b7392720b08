//go:build sqlite_fts5

package index

import (
	"testing"
	"time"

	"github.com/izo/unwebarchiver/internal/webarchive"
)

func TestFTS5_TableExists(t *testing.T) {
	db := testDB(t)
	var count int
	if err := db.conn.QueryRow(`SELECT count(*) FROM resources_fts`).Scan(&count); err != nil {
		t.Fatalf("resources_fts table missing: %v", err)
	}
}

func TestFTS5_SearchWithSnippet(t *testing.T) {
	db := testDB(t)
	upsertSample(t, db, "fts.webarchive", "f1", time.Now())

	results, err := db.Search("gophers", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].ArchivePath != "fts.webarchive" || results[0].MIMEType != "text/html" {
		t.Errorf("result = %+v", results[0])
	}
	if results[0].Snippet == "" {
		t.Error("expected non-empty snippet")
	}
}

func TestFTS5_DeleteRemovesFromFTS(t *testing.T) {
	db := testDB(t)
	upsertSample(t, db, "gone.webarchive", "g", time.Now())
	_ = db.DeleteArchive("gone.webarchive")

	results, _ := db.Search("tunnels", 10)
	for _, r := range results {
		if r.ArchivePath == "gone.webarchive" {
			t.Error("deleted archive still in FTS index")
		}
	}
}

func TestFTS5_UpsertReplacesContent(t *testing.T) {
	db := testDB(t)
	upsertSample(t, db, "evo.webarchive", "1", time.Now())

	next := &webarchive.WebArchive{MainResource: webarchive.Resource{
		URL: "https://example.com/", MIMEType: "text/plain", Data: []byte("replacement text"),
		Domain: "example.com", FileName: "/",
	}}
	summary, rows := Summarize("evo.webarchive", "2", next, time.Now())
	if err := db.UpsertArchive(summary, rows); err != nil {
		t.Fatal(err)
	}

	if results, _ := db.Search("tunnels", 10); len(results) != 0 {
		t.Error("old FTS content should be gone")
	}
	if results, _ := db.Search("replacement", 10); len(results) != 1 {
		t.Errorf("FTS not updated: %+v", results)
	}
}
