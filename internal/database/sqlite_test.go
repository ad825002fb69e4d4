package database

import (
	"testing"
	"time"

	"cdl-sync/internal/cdl"
)

func newTestDB(t *testing.T) *SQLiteDatabase {
	t.Helper()
	db, err := NewSQLiteDatabase(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteDatabase() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSQLiteDatabase_Runs(t *testing.T) {
	db := newTestDB(t)
	start := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)

	first, err := db.CreateRun("patients", "", start)
	if err != nil {
		t.Fatalf("CreateRun() error = %v", err)
	}
	if first.ID == 0 || first.Status != cdl.RunRunning {
		t.Errorf("CreateRun() = %+v", first)
	}

	second, err := db.CreateRun("metadata", "study=s1", start.Add(time.Minute))
	if err != nil {
		t.Fatalf("CreateRun() error = %v", err)
	}

	if err := db.FinishRun(first.ID, cdl.RunSuccess, 42, start.Add(30*time.Second)); err != nil {
		t.Fatalf("FinishRun() error = %v", err)
	}

	runs, err := db.ListRuns(10)
	if err != nil {
		t.Fatalf("ListRuns() error = %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("len(ListRuns()) = %d, want 2", len(runs))
	}

	if runs[0].ID != second.ID || runs[0].FinishedAt != nil || runs[0].Parameters != "study=s1" {
		t.Errorf("newest run = %+v", runs[0])
	}
	got := runs[1]
	if got.Status != cdl.RunSuccess || got.Items != 42 {
		t.Errorf("finished run = %+v", got)
	}
	if got.FinishedAt == nil || !got.FinishedAt.Equal(start.Add(30*time.Second)) {
		t.Errorf("FinishedAt = %v", got.FinishedAt)
	}
	if !got.StartedAt.Equal(start) {
		t.Errorf("StartedAt = %v, want %v", got.StartedAt, start)
	}

	limited, err := db.ListRuns(1)
	if err != nil {
		t.Fatalf("ListRuns(1) error = %v", err)
	}
	if len(limited) != 1 {
		t.Errorf("len(ListRuns(1)) = %d, want 1", len(limited))
	}
}

func TestSQLiteDatabase_FinishRun_Unknown(t *testing.T) {
	db := newTestDB(t)
	if err := db.FinishRun(99, cdl.RunError, 0, time.Now()); err == nil {
		t.Error("FinishRun() expected error for unknown run")
	}
}
