package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"fintrack/internal/core"
)

// SQLiteRepository stores each user record as a JSON document row.
type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

var _ Store = (*SQLiteRepository)(nil)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One writer at a time keeps read-modify-write transactions serial.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db, now: time.Now}, nil
}

// Ping checks that the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getRecord(ctx context.Context, q queryer, userID string) (*core.UserRecord, error) {
	var (
		doc       string
		version   int64
		updatedAt string
	)
	err := q.QueryRowContext(ctx,
		`SELECT doc, version, updated_at FROM user_records WHERE user_id = ?`, userID,
	).Scan(&doc, &version, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select user record: %w", err)
	}

	var rec core.UserRecord
	if err := json.Unmarshal([]byte(doc), &rec); err != nil {
		return nil, fmt.Errorf("decode user record %s: %w", userID, err)
	}
	rec.Version = version
	if t, err := time.Parse(time.RFC3339Nano, updatedAt); err == nil {
		rec.UpdatedAt = t
	}
	return &rec, nil
}

func (r *SQLiteRepository) GetUserRecord(ctx context.Context, userID string) (*core.UserRecord, error) {
	return getRecord(ctx, r.db, userID)
}

func (r *SQLiteRepository) SetUserRecord(ctx context.Context, userID string, patch core.UserRecordPatch, merge bool) (core.UserRecord, error) {
	return r.Update(ctx, userID, func(rec *core.UserRecord) error {
		*rec = patch.Apply(*rec, merge)
		return nil
	})
}

func (r *SQLiteRepository) Update(ctx context.Context, userID string, fn func(*core.UserRecord) error) (core.UserRecord, error) {
	if userID == "" {
		return core.UserRecord{}, ErrEmptyUserID
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.UserRecord{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	current, err := getRecord(ctx, tx, userID)
	if err != nil {
		return core.UserRecord{}, err
	}
	var rec core.UserRecord
	if current != nil {
		rec = *current
	}
	if err := fn(&rec); err != nil {
		return core.UserRecord{}, err
	}
	prev := int64(0)
	if current != nil {
		prev = current.Version
	}
	rec.Version = prev + 1
	rec.UpdatedAt = r.now().UTC()

	doc, err := json.Marshal(rec)
	if err != nil {
		return core.UserRecord{}, fmt.Errorf("encode user record: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO user_records (user_id, doc, version, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET doc = excluded.doc, version = excluded.version, updated_at = excluded.updated_at`,
		userID, string(doc), rec.Version, rec.UpdatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return core.UserRecord{}, fmt.Errorf("upsert user record: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return core.UserRecord{}, fmt.Errorf("commit user record: %w", err)
	}

	slog.DebugContext(ctx, "User record saved",
		"user_id", userID,
		"version", rec.Version,
		"accounts", len(rec.Accounts),
		"expenses", len(rec.Expenses))

	return rec.Clone(), nil
}

func (r *SQLiteRepository) ListUserIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT user_id FROM user_records ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("list user ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan user id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
