package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	ports "fintrack/internal/sheets"
)

// Client appends audit rows to a year-prefixed sheet, e.g. "2024 Audit".
type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetBase     string
	now           func() time.Time
}

var _ ports.AuditWriter = (*Client)(nil)

// Config selects the spreadsheet and credentials. Empty credential fields
// fall back to GOOGLE_APPLICATION_CREDENTIALS.
type Config struct {
	SpreadsheetID   string
	SheetName       string
	CredentialsJSON string
	CredentialsFile string
}

func New(ctx context.Context, cfg Config) (*Client, error) {
	spreadsheetID := strings.TrimSpace(cfg.SpreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	base := strings.TrimSpace(cfg.SheetName)
	if base == "" {
		base = "Audit"
	}

	svc, err := newSheetsService(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return &Client{svc: svc, spreadsheetID: spreadsheetID, sheetBase: base, now: time.Now}, nil
}

func credentials(cfg Config) ([]byte, error) {
	inline := strings.TrimSpace(cfg.CredentialsJSON)
	file := strings.TrimSpace(cfg.CredentialsFile)
	if inline == "" && file == "" {
		file = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}
	switch {
	case inline != "":
		return []byte(inline), nil
	case file != "":
		b, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return b, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
}

func newSheetsService(ctx context.Context, cfg Config) (*gsheet.Service, error) {
	credentialsJSON, err := credentials(cfg)
	if err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "Creating Google Sheets service with Service Account",
		"credentials_size", len(credentialsJSON),
		"scope", gsheet.SpreadsheetsScope)

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

// AppendAudit adds one row below the existing data of the current year's sheet.
func (c *Client) AppendAudit(ctx context.Context, row ports.AuditRow) (string, error) {
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}
	rng := fmt.Sprintf("%s!A:J", yearPrefixedName(c.sheetBase, c.now().Year()))
	vr := &gsheet.ValueRange{Values: [][]interface{}{row.Values()}}

	resp, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("append audit row: %w", err)
	}

	ref := ""
	if resp.Updates != nil {
		ref = resp.Updates.UpdatedRange
	}
	slog.DebugContext(ctx, "Audit row appended to Google Sheets",
		"user_id", row.UserID,
		"event", row.Event,
		"range", ref)
	return ref, nil
}

// yearPrefixedName returns "<year> <base>" unless base already starts with a year.
func yearPrefixedName(base string, year int) string {
	base = strings.TrimSpace(base)
	if len(base) >= 5 && base[4] == ' ' {
		isYear := true
		for _, r := range base[:4] {
			if r < '0' || r > '9' {
				isYear = false
				break
			}
		}
		if isYear {
			return base
		}
	}
	return fmt.Sprintf("%d %s", year, base)
}
