package db

import (
	"io/fs"
	"strconv"
	"strings"
	"testing"
)

func TestMigrationFiles_Ordered(t *testing.T) {
	names, err := MigrationFiles()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(names) < 3 {
		t.Fatalf("expected at least 3 migrations, got %d", len(names))
	}

	prev := int64(0)
	for _, name := range names {
		parts := strings.SplitN(name, "_", 2)
		if len(parts) != 2 {
			t.Fatalf("migration %q has no version prefix", name)
		}
		v, err := strconv.ParseInt(parts[0], 10, 64)
		if err != nil {
			t.Fatalf("migration %q has non-numeric prefix", name)
		}
		if v <= prev {
			t.Errorf("migration %q is out of order (prev %d)", name, prev)
		}
		prev = v
	}
}

func TestMigrationFiles_GooseAnnotations(t *testing.T) {
	names, err := MigrationFiles()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, name := range names {
		data, err := fs.ReadFile(MigrationsFS(), name)
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		sql := string(data)
		if !strings.Contains(sql, "-- +goose Up") {
			t.Errorf("%s: missing goose Up annotation", name)
		}
		if !strings.Contains(sql, "-- +goose Down") {
			t.Errorf("%s: missing goose Down annotation", name)
		}
		if strings.Index(sql, "-- +goose Down") < strings.Index(sql, "-- +goose Up") {
			t.Errorf("%s: Down section precedes Up", name)
		}
	}
}

func TestMigrations_EventLinkTablesAreUnique(t *testing.T) {
	data, err := fs.ReadFile(MigrationsFS(), "00002_event.sql")
	if err != nil {
		t.Fatalf("read migration: %v", err)
	}
	sql := string(data)
	for _, want := range []string{
		"PRIMARY KEY (event_id, equipment_detail_id)",
		"PRIMARY KEY (event_id, parameter_id)",
		"event_id            UUID NOT NULL UNIQUE",
	} {
		if !strings.Contains(sql, want) {
			t.Errorf("expected event migration to contain %q", want)
		}
	}
}
