package audit

import (
	"path/filepath"
	"testing"
	"time"
)

func TestAppendAndListByEntry(t *testing.T) {
	dir := t.TempDir()
	log, err := Open(Config{Path: filepath.Join(dir, "audit.db")})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer log.Close()

	now := time.Now()
	if err := log.Append(Record{
		EntryID: 1, EntryName: "backup", Rank: 1, Command: "true",
		State: "Exited", Code: 0, TraceID: "abc", StartTime: now, EndTime: now,
	}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := log.Append(Record{
		EntryID: 1, EntryName: "backup", Rank: 2, Command: "true",
		State: "Failed", Code: 1, TraceID: "def", StartTime: now, EndTime: now,
	}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := log.Append(Record{
		EntryID: 2, EntryName: "other", Rank: 1, Command: "true",
		State: "Exited", Code: 0, TraceID: "ghi", StartTime: now, EndTime: now,
	}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	records, err := log.ListByEntry(1, 10)
	if err != nil {
		t.Fatalf("ListByEntry: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("len(records) = %d, want 2", len(records))
	}
	if records[0].Rank != 2 { // newest first
		t.Fatalf("records[0].Rank = %d, want 2", records[0].Rank)
	}
}

func TestOpenCreatesParentDirectory(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "audit.db")
	log, err := Open(Config{Path: path})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer log.Close()
}
