package backend

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"fintrack/internal/config"
	"fintrack/internal/core"
	auditmem "fintrack/internal/sheets/memory"
)

func quietFactory() *Factory {
	return NewFactory(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestFromAppConfig(t *testing.T) {
	if _, err := FromAppConfig(nil); err == nil {
		t.Error("expected error for nil config")
	}
	if _, err := FromAppConfig(&config.Config{StoreBackend: "sheets"}); err == nil {
		t.Error("expected error for unknown backend")
	}
	cfg, err := FromAppConfig(&config.Config{
		StoreBackend:        "sqlite",
		SQLiteDBPath:        "x.db",
		GoogleSpreadsheetID: "sheet",
		GoogleSheetName:     "Audit",
	})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Type != SQLiteBackend || cfg.Sheets.SpreadsheetID != "sheet" {
		t.Errorf("cfg = %+v", cfg)
	}
	if err := (Config{Type: SQLiteBackend}).Validate(); err == nil {
		t.Error("sqlite without path should fail")
	}
}

func TestOpenStore_Memory(t *testing.T) {
	seed := filepath.Join(t.TempDir(), "seed.json")
	if err := os.WriteFile(seed, []byte(`{"u1":{"accounts":[{"name":"Cash","type":"Cash","balance":10}]}}`), 0o600); err != nil {
		t.Fatal(err)
	}
	res, err := quietFactory().OpenStore(Config{Type: MemoryBackend, MemorySeedFile: seed})
	if err != nil {
		t.Fatal(err)
	}
	defer res.Cleanup()

	rec, err := res.Store.GetUserRecord(context.Background(), "u1")
	if err != nil || rec == nil || len(rec.Accounts) != 1 {
		t.Fatalf("seeded record = %+v, %v", rec, err)
	}
	if res.Ready != nil {
		t.Error("memory store needs no readiness probe")
	}
}

func TestOpenStore_SQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "fintrack.db")
	res, err := quietFactory().OpenStore(Config{Type: SQLiteBackend, SQLiteDBPath: path})
	if err != nil {
		t.Fatal(err)
	}
	defer res.Cleanup()

	if err := res.Ready(context.Background()); err != nil {
		t.Fatalf("ready: %v", err)
	}
	goal := core.Money{Cents: 100}
	if _, err := res.Store.SetUserRecord(context.Background(), "u1", core.UserRecordPatch{SavingsGoal: &goal}, true); err != nil {
		t.Fatal(err)
	}
}

func TestOpenAuditWriter(t *testing.T) {
	res, err := quietFactory().OpenAuditWriter(context.Background(), Config{})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := res.Writer.(*auditmem.Store); !ok || res.Remote {
		t.Errorf("expected in-memory writer, got %T", res.Writer)
	}
}
