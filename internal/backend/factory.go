package backend

import (
	"context"
	"fmt"
	"log/slog"

	gsheet "fintrack/internal/sheets/google"
	auditmem "fintrack/internal/sheets/memory"
	"fintrack/internal/storage"
	storemem "fintrack/internal/storage/memory"
)

type Factory struct {
	logger *slog.Logger
}

func NewFactory(logger *slog.Logger) *Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &Factory{logger: logger}
}

// OpenStore opens the configured user record store.
func (f *Factory) OpenStore(config Config) (*StoreResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case SQLiteBackend:
		repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
		}
		f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)
		return &StoreResult{Store: repo, Ready: repo.Ping, Cleanup: repo.Close}, nil

	case MemoryBackend:
		var (
			store *storemem.Store
			err   error
		)
		if config.MemorySeedFile != "" {
			store, err = storemem.NewFromFile(config.MemorySeedFile)
			if err != nil {
				return nil, fmt.Errorf("failed to seed memory backend: %w", err)
			}
		} else {
			store = storemem.New()
		}
		f.logger.Info("Initialized memory backend", "seed_file", config.MemorySeedFile)
		return &StoreResult{Store: store, Cleanup: store.Close}, nil

	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

// OpenAuditWriter returns the Google Sheets mirror when a spreadsheet is
// configured and an in-memory mirror otherwise.
func (f *Factory) OpenAuditWriter(ctx context.Context, config Config) (*AuditResult, error) {
	if config.Sheets.SpreadsheetID == "" {
		f.logger.Info("Google Sheets disabled - no GOOGLE_SPREADSHEET_ID provided, mirroring in memory")
		return &AuditResult{Writer: auditmem.New()}, nil
	}
	cli, err := gsheet.New(ctx, config.Sheets)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
	}
	f.logger.Info("Google Sheets audit mirror initialized", "spreadsheet_id", config.Sheets.SpreadsheetID)
	return &AuditResult{Writer: cli, Remote: true}, nil
}
