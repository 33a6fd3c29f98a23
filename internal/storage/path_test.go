package storage

import (
	"testing"
	"time"
)

func TestBuildExportPath(t *testing.T) {
	ts := time.Date(2026, time.February, 19, 23, 5, 0, 0, time.FixedZone("x", -5*3600))
	key, err := BuildExportPath("school.db", ts, "4f1c2b8e-8d2a-4c36-9f0e-0d7f6f1b9a11")
	if err != nil {
		t.Fatalf("BuildExportPath() error = %v", err)
	}
	want := "exports/school/2026-02-20/4f1c2b8e-8d2a-4c36-9f0e-0d7f6f1b9a11.parquet"
	if key != want {
		t.Fatalf("BuildExportPath() = %q, want %q", key, want)
	}
}

func TestBuildExportPathRejectsInvalidComponent(t *testing.T) {
	if _, err := BuildExportPath("../oops", time.Now(), "id-1"); err == nil {
		t.Fatal("expected invalid database component error")
	}
	if _, err := BuildExportPath("school", time.Now(), "a/b"); err == nil {
		t.Fatal("expected invalid export id error")
	}
}
