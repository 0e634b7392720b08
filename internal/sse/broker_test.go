package sse

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/izo/unwebarchiver/internal/models"
)

func TestSubscribeUnsubscribe(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients")
	}
	ch := b.Subscribe()
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}
	b.Unsubscribe(ch)
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after unsub")
	}
}

func TestPublishDelivery(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.Publish(Event{Type: "archive.created", Data: map[string]string{"path": "a.webarchive"}})

	select {
	case msg := <-ch:
		s := string(msg)
		if !strings.Contains(s, "event: archive.created") {
			t.Errorf("missing event type in %q", s)
		}
		if !strings.Contains(s, `"path":"a.webarchive"`) {
			t.Errorf("missing data in %q", s)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func TestPublishArchiveChange_LibraryThrottle(t *testing.T) {
	b := NewBroker(500 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	// First event should trigger library.updated.
	b.PublishArchiveChange(models.ArchiveChange{Kind: "created", Path: "a.webarchive"})
	// Second event immediately should NOT trigger another library.updated.
	b.PublishArchiveChange(models.ArchiveChange{Kind: "updated", Path: "b.webarchive"})

	// Drain and count events.
	time.Sleep(50 * time.Millisecond)
	libraryCount := 0
	archiveCount := 0
loop:
	for {
		select {
		case msg := <-ch:
			s := string(msg)
			if strings.Contains(s, "library.updated") {
				libraryCount++
			} else {
				archiveCount++
			}
		default:
			break loop
		}
	}

	if archiveCount != 2 {
		t.Errorf("archive events = %d, want 2", archiveCount)
	}
	if libraryCount != 1 {
		t.Errorf("library events = %d, want 1 (throttled)", libraryCount)
	}
}

func TestPublishArchiveChange_Payload(t *testing.T) {
	b := NewBroker(time.Hour)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.PublishArchiveChange(models.ArchiveChange{
		Kind: "updated",
		Path: "news/a.webarchive",
		Summary: &models.ArchiveSummary{
			Path:          "news/a.webarchive",
			Checksum:      "abc123",
			MainURL:       "https://example.com/a",
			Domain:        "example.com",
			ResourceCount: 4,
			TotalBytes:    2048,
		},
	})
	b.PublishArchiveChange(models.ArchiveChange{Kind: "deleted", Path: "news/b.webarchive"})

	want := []string{
		"event: archive.updated\ndata: " +
			`{"path":"news/a.webarchive","checksum":"abc123","main_url":"https://example.com/a",` +
			`"domain":"example.com","resource_count":4,"total_bytes":2048}` + "\n\n",
		"event: library.updated\ndata: {\"changes\":1}\n\n",
		"event: archive.deleted\ndata: {\"path\":\"news/b.webarchive\"}\n\n",
	}
	for _, w := range want {
		select {
		case msg := <-ch:
			if !strings.HasSuffix(string(msg), w) {
				t.Errorf("got %q, want suffix %q", msg, w)
			}
		case <-time.After(time.Second):
			t.Fatal("timeout waiting for message")
		}
	}
}

func TestLibraryUpdatedCountsThrottledChanges(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.PublishArchiveChange(models.ArchiveChange{Kind: "created", Path: "a.webarchive"})
	b.PublishArchiveChange(models.ArchiveChange{Kind: "created", Path: "b.webarchive"})
	b.PublishArchiveChange(models.ArchiveChange{Kind: "created", Path: "c.webarchive"})
	time.Sleep(150 * time.Millisecond)
	b.PublishArchiveChange(models.ArchiveChange{Kind: "deleted", Path: "a.webarchive"})

	var library []string
	deadline := time.After(time.Second)
	for len(library) < 2 {
		select {
		case msg := <-ch:
			if s := string(msg); strings.Contains(s, "event: library.updated") {
				library = append(library, s)
			}
		case <-deadline:
			t.Fatalf("library events = %q, want 2", library)
		}
	}
	if !strings.Contains(library[0], `{"changes":1}`) {
		t.Errorf("first library event = %q, want 1 change", library[0])
	}
	// b, c and the deletion were coalesced into the second event.
	if !strings.Contains(library[1], `{"changes":3}`) {
		t.Errorf("second library event = %q, want 3 changes", library[1])
	}
}

func TestEventIDsIncrease(t *testing.T) {
	b := NewBroker(time.Hour)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.PublishArchiveChange(models.ArchiveChange{Kind: "renamed", Path: "ignored.webarchive"})
	b.Publish(Event{Type: "one", Data: 1})
	b.Publish(Event{Type: "two", Data: 2})

	for _, want := range []string{"id: 1\nevent: one\n", "id: 2\nevent: two\n"} {
		select {
		case msg := <-ch:
			if !strings.HasPrefix(string(msg), want) {
				t.Errorf("got %q, want prefix %q", msg, want)
			}
		case <-time.After(time.Second):
			t.Fatal("timeout waiting for message")
		}
	}
}

func TestSSEHandler(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()

	// Start handler in background.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req := httptest.NewRequest(http.MethodGet, "/api/events", nil)
	req = req.WithContext(ctx)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		b.ServeHTTP(w, req)
		close(done)
	}()

	// Give handler time to subscribe.
	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client from handler")
	}

	b.Publish(Event{Type: "archive.updated", Data: map[string]string{"path": "x.webarchive"}})
	time.Sleep(50 * time.Millisecond)

	// Cancel context to disconnect.
	cancel()
	<-done

	body := w.Body.String()
	if !strings.Contains(body, "event: archive.updated") {
		t.Errorf("handler output missing event: %q", body)
	}

	// Client should be cleaned up.
	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 0 {
		t.Errorf("client not cleaned up after disconnect")
	}
}

func TestPublishDropsOnFullBuffer(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	// Fill buffer (capacity 64) and then one more should not block.
	for i := 0; i < 70; i++ {
		b.Publish(Event{Type: "test", Data: map[string]string{"i": "x"}})
	}
	// If we reach here without deadlock, the test passes.
}

func TestCloseClosesSubscribersAndStopsOperations(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	ch := b.Subscribe()
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}

	b.Close()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected subscriber channel to be closed")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for channel close")
	}

	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after close")
	}

	// Should be safe no-op after close.
	b.Publish(Event{Type: "archive.updated", Data: map[string]string{"path": "x.webarchive"}})
	b.PublishArchiveChange(models.ArchiveChange{Kind: "updated", Path: "x.webarchive"})
}
