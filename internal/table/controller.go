// Package table holds the per-user transaction table state: view mode,
// filters, pagination, inline edit and delete with undo.
package table

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/format"
	"fintrack/internal/viewmodel"
)

const (
	// RecentWindow bounds the Recent view.
	RecentWindow = 48 * time.Hour
	// UndoWindow is how long a deleted record can be restored.
	UndoWindow = 5 * time.Second

	// NarrowViewport is the width below which fewer rows are shown per page.
	NarrowViewport     = 768
	ItemsPerPageNarrow = 8
	ItemsPerPageWide   = 10
)

var (
	ErrClosed          = errors.New("table controller closed")
	ErrRowNotFound     = errors.New("transaction not found")
	ErrNotEditable     = errors.New("income entries cannot be edited")
	ErrNoActiveEdit    = errors.New("no edit in progress")
	ErrNoPendingDelete = errors.New("no delete awaiting confirmation")
	ErrNothingToUndo   = errors.New("nothing to undo")
	ErrNothingToExport = errors.New("nothing to export")
)

type ViewMode string

const (
	ModeRecent ViewMode = "recent"
	ModeAll    ViewMode = "all"
)

func (m ViewMode) Valid() bool { return m == ModeRecent || m == ModeAll }

type TypeFilter string

const (
	TypeAll     TypeFilter = "all"
	TypeIncome  TypeFilter = "income"
	TypeExpense TypeFilter = "expense"
)

func (t TypeFilter) Valid() bool {
	return t == TypeAll || t == TypeIncome || t == TypeExpense
}

// Filters narrows the All view.
type Filters struct {
	Search     string     `json:"search"`
	Categories []string   `json:"categories"`
	Type       TypeFilter `json:"type"`
}

// Snapshot is one versioned read of a user's data.
type Snapshot struct {
	Version  int64
	Expenses []core.Expense
	Accounts []core.Account
}

// Source is the external store as seen by one user's table.
type Source interface {
	Snapshot(ctx context.Context) (Snapshot, error)
	UpdateExpense(ctx context.Context, e core.Expense) error
	DeleteExpense(ctx context.Context, id string) error
	RestoreExpense(ctx context.Context, e core.Expense) error
}

// EditDraft holds the editable fields of the row being edited.
type EditDraft struct {
	Description string `json:"description"`
	Category    string `json:"category"`
	Amount      string `json:"amount"`
	Date        string `json:"date"`
}

// View is what a client renders for the current state.
type View struct {
	Rows            []viewmodel.Row `json:"rows"`
	Count           int             `json:"count"`
	Page            int             `json:"page"`
	TotalPages      int             `json:"totalPages"`
	ItemsPerPage    int             `json:"itemsPerPage"`
	Mode            ViewMode        `json:"mode"`
	Filters         Filters         `json:"filters"`
	Categories      []string        `json:"categories"`
	Income          core.Money      `json:"income"`
	Expenses        core.Money      `json:"expenses"`
	CanUndo         bool            `json:"canUndo"`
	EditingID       string          `json:"editingId,omitempty"`
	Draft           *EditDraft      `json:"draft,omitempty"`
	PendingDeleteID string          `json:"pendingDeleteId,omitempty"`
	Version         int64           `json:"version"`
	// Stale is set when a write succeeded but the reload after it failed.
	Stale bool `json:"stale,omitempty"`
}

// Controller is safe for concurrent use. Calls to the Source are made
// without holding the lock.
type Controller struct {
	src   Source
	clock Clock
	fmt   *format.Formatter

	mu           sync.Mutex
	closed       bool
	loaded       bool
	stale        bool
	version      int64
	rows         []viewmodel.Row
	mode         ViewMode
	filters      Filters
	page         int
	itemsPerPage int

	editingID string
	draft     EditDraft

	pendingDeleteID string

	undo      *core.Expense
	undoTimer Timer
	undoGen   uint64
}

// New returns a controller in Recent mode. Call Refresh to load data.
func New(src Source, clock Clock, f *format.Formatter) *Controller {
	if clock == nil {
		clock = SystemClock
	}
	if f == nil {
		f = format.Default()
	}
	return &Controller{
		src:          src,
		clock:        clock,
		fmt:          f,
		mode:         ModeRecent,
		filters:      Filters{Type: TypeAll},
		page:         1,
		itemsPerPage: ItemsPerPageWide,
	}
}

// Refresh loads a snapshot and applies it unless a newer one is already shown.
func (c *Controller) Refresh(ctx context.Context) error {
	snap, err := c.src.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("load transactions: %w", err)
	}
	c.apply(snap)
	return nil
}

// refreshAfterWrite reloads after a committed write. The write stands even
// if the reload fails, so the failure marks the view stale instead of
// being returned.
func (c *Controller) refreshAfterWrite(ctx context.Context, op string) {
	if err := c.Refresh(ctx); err != nil {
		slog.WarnContext(ctx, "Reload after write failed",
			"operation", op,
			"error", err)
		c.mu.Lock()
		c.stale = true
		c.mu.Unlock()
	}
}

// apply reports whether the snapshot was used.
func (c *Controller) apply(snap Snapshot) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	if c.loaded && snap.Version < c.version {
		return false
	}
	c.rows = viewmodel.BuildUnifiedList(snap.Expenses, snap.Accounts, c.fmt.Currency, c.clock.Now())
	c.version = snap.Version
	c.loaded = true
	c.stale = false
	if c.editingID != "" && c.findLocked(c.editingID) == nil {
		c.editingID = ""
	}
	if c.pendingDeleteID != "" && c.findLocked(c.pendingDeleteID) == nil {
		c.pendingDeleteID = ""
	}
	c.clampLocked()
	return true
}

// SetMode switches between Recent and All. Entering Recent clears filters.
func (c *Controller) SetMode(m ViewMode) error {
	if !m.Valid() {
		return fmt.Errorf("unknown view mode %q", m)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	c.mode = m
	if m == ModeRecent {
		c.filters = Filters{Type: TypeAll}
	}
	c.page = 1
	return nil
}

// SetFilters replaces the filter state. Filtering only applies to the All
// view, so the controller leaves Recent first.
func (c *Controller) SetFilters(f Filters) error {
	if f.Type == "" {
		f.Type = TypeAll
	}
	if !f.Type.Valid() {
		return fmt.Errorf("unknown transaction type %q", f.Type)
	}
	f.Search = strings.TrimSpace(f.Search)
	f.Categories = append([]string(nil), f.Categories...)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if c.mode == ModeRecent {
		c.mode = ModeAll
	}
	c.filters = f
	c.page = 1
	return nil
}

// SetPage moves to page n, clamped to the valid range.
func (c *Controller) SetPage(n int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	c.page = n
	c.clampLocked()
	return nil
}

// SetViewportWidth picks the page size for the client's screen width.
func (c *Controller) SetViewportWidth(px int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	c.itemsPerPage = ItemsPerPage(px)
	c.clampLocked()
	return nil
}

// ItemsPerPage maps a viewport width in pixels to a page size.
func ItemsPerPage(px int) int {
	if px > 0 && px < NarrowViewport {
		return ItemsPerPageNarrow
	}
	return ItemsPerPageWide
}

// StartEdit begins editing an expense row, abandoning any other edit.
func (c *Controller) StartEdit(id string) (EditDraft, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return EditDraft{}, ErrClosed
	}
	row := c.findLocked(id)
	if row == nil {
		return EditDraft{}, ErrRowNotFound
	}
	if row.IsIncome || row.Expense == nil {
		return EditDraft{}, ErrNotEditable
	}
	date := ""
	if !row.Date.IsZero() {
		date = row.Date.UTC().Format("2006-01-02")
	}
	c.editingID = id
	c.draft = EditDraft{
		Description: row.Description,
		Category:    row.BaseCategory,
		Amount:      row.Amount.Decimal(),
		Date:        date,
	}
	return c.draft, nil
}

// SaveEdit writes the draft to the store. On failure the edit stays open and
// nothing local changes; on success the edit closes and the table reloads.
func (c *Controller) SaveEdit(ctx context.Context, d EditDraft) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.editingID == "" {
		c.mu.Unlock()
		return ErrNoActiveEdit
	}
	id := c.editingID
	row := c.findLocked(id)
	if row == nil || row.Expense == nil {
		c.mu.Unlock()
		return ErrRowNotFound
	}
	updated := *row.Expense
	c.draft = d
	c.mu.Unlock()

	cents, err := core.ParseDecimalToCents(d.Amount)
	if err != nil {
		return core.FieldErrors{"amount": "amount must be a positive number"}
	}
	updated.Amount = core.Money{Cents: cents}
	updated.Description = strings.TrimSpace(d.Description)
	if cat := strings.TrimSpace(d.Category); cat != "" {
		updated.Category = cat
	}
	if strings.TrimSpace(d.Date) != "" {
		date, err := core.ParseDate(d.Date)
		if err != nil {
			return core.FieldErrors{"date": "date must be YYYY-MM-DD or RFC3339"}
		}
		updated.Date = date
	}

	if err := c.src.UpdateExpense(ctx, updated); err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}

	c.mu.Lock()
	if c.editingID == id {
		c.editingID = ""
		c.draft = EditDraft{}
	}
	c.mu.Unlock()
	c.refreshAfterWrite(ctx, "save_edit")
	return nil
}

func (c *Controller) CancelEdit() {
	c.mu.Lock()
	c.editingID = ""
	c.draft = EditDraft{}
	c.mu.Unlock()
}

// ConfirmDelete marks an expense row for deletion; ExecuteDelete performs it.
func (c *Controller) ConfirmDelete(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	row := c.findLocked(id)
	if row == nil {
		return ErrRowNotFound
	}
	if row.IsIncome || row.Expense == nil {
		return ErrNotEditable
	}
	c.pendingDeleteID = id
	return nil
}

func (c *Controller) CancelDelete() {
	c.mu.Lock()
	c.pendingDeleteID = ""
	c.mu.Unlock()
}

// ExecuteDelete deletes the confirmed row and arms the undo buffer,
// replacing any earlier one.
func (c *Controller) ExecuteDelete(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.pendingDeleteID == "" {
		c.mu.Unlock()
		return ErrNoPendingDelete
	}
	row := c.findLocked(c.pendingDeleteID)
	if row == nil || row.Expense == nil {
		c.pendingDeleteID = ""
		c.mu.Unlock()
		return ErrRowNotFound
	}
	original := *row.Expense
	c.mu.Unlock()

	if err := c.src.DeleteExpense(ctx, original.ID); err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	if c.pendingDeleteID == original.ID {
		c.pendingDeleteID = ""
	}
	if c.editingID == original.ID {
		c.editingID = ""
	}
	c.armUndoLocked(original)
	c.mu.Unlock()
	c.refreshAfterWrite(ctx, "delete")
	return nil
}

func (c *Controller) armUndoLocked(e core.Expense) {
	if c.undoTimer != nil {
		c.undoTimer.Stop()
	}
	c.undoGen++
	gen := c.undoGen
	c.undo = &e
	c.undoTimer = c.clock.AfterFunc(UndoWindow, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.undoGen == gen {
			c.undo = nil
			c.undoTimer = nil
		}
	})
}

func (c *Controller) clearUndoLocked() {
	if c.undoTimer != nil {
		c.undoTimer.Stop()
	}
	c.undoGen++
	c.undo = nil
	c.undoTimer = nil
}

// Undo restores the most recently deleted record if the undo window is open.
func (c *Controller) Undo(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.undo == nil {
		c.mu.Unlock()
		return ErrNothingToUndo
	}
	rec := *c.undo
	gen := c.undoGen
	c.mu.Unlock()

	if err := c.src.RestoreExpense(ctx, rec); err != nil {
		return fmt.Errorf("restore transaction: %w", err)
	}

	c.mu.Lock()
	if c.undoGen == gen {
		c.clearUndoLocked()
	}
	c.mu.Unlock()
	c.refreshAfterWrite(ctx, "undo")
	return nil
}

// Close stops the undo timer. Results of calls still in flight are dropped.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.clearUndoLocked()
	c.closed = true
}

// Page returns the rows of the current page and the surrounding state.
func (c *Controller) Page() View {
	c.mu.Lock()
	defer c.mu.Unlock()

	filtered := c.filteredLocked()
	total := totalPages(len(filtered), c.itemsPerPage)
	page := clamp(c.page, total)

	start := (page - 1) * c.itemsPerPage
	end := min(start+c.itemsPerPage, len(filtered))
	pageRows := []viewmodel.Row{}
	if start < end {
		pageRows = append(pageRows, filtered[start:end]...)
	}

	v := View{
		Rows:            pageRows,
		Count:           len(filtered),
		Page:            page,
		TotalPages:      total,
		ItemsPerPage:    c.itemsPerPage,
		Mode:            c.mode,
		Filters:         c.filters,
		Categories:      c.categoriesLocked(),
		CanUndo:         c.undo != nil,
		EditingID:       c.editingID,
		PendingDeleteID: c.pendingDeleteID,
		Version:         c.version,
		Stale:           c.stale,
	}
	v.Filters.Categories = append([]string(nil), c.filters.Categories...)
	if c.editingID != "" {
		d := c.draft
		v.Draft = &d
	}
	for _, r := range filtered {
		if r.IsIncome {
			v.Income = v.Income.Add(r.Amount)
		} else {
			v.Expenses = v.Expenses.Add(r.Amount)
		}
	}
	return v
}

// Filtered returns every row matching the current mode and filters.
func (c *Controller) Filtered() []viewmodel.Row {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.filteredLocked()
}

// ExportCSV renders the filtered rows as CSV.
func (c *Controller) ExportCSV() ([]byte, error) {
	return ExportCSV(c.Filtered())
}

// ExportPDF renders the filtered rows as a paginated PDF report.
func (c *Controller) ExportPDF() ([]byte, error) {
	return ExportPDF(c.Filtered(), c.clock.Now(), c.fmt.Symbol())
}

func (c *Controller) filteredLocked() []viewmodel.Row {
	out := make([]viewmodel.Row, 0, len(c.rows))
	if c.mode == ModeRecent {
		cutoff := c.clock.Now().Add(-RecentWindow)
		for _, r := range c.rows {
			if !r.Date.IsZero() && !r.Date.Before(cutoff) {
				out = append(out, r)
			}
		}
		return out
	}

	search := strings.ToLower(c.filters.Search)
	cats := make(map[string]struct{}, len(c.filters.Categories))
	for _, cat := range c.filters.Categories {
		cats[strings.ToLower(strings.TrimSpace(cat))] = struct{}{}
	}
	for _, r := range c.rows {
		switch c.filters.Type {
		case TypeIncome:
			if !r.IsIncome {
				continue
			}
		case TypeExpense:
			if r.IsIncome {
				continue
			}
		}
		if len(cats) > 0 {
			if _, ok := cats[strings.ToLower(r.BaseCategory)]; !ok {
				continue
			}
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(r.Description), search) &&
			!strings.Contains(strings.ToLower(r.Category), search) {
			continue
		}
		out = append(out, r)
	}
	return out
}

func (c *Controller) categoriesLocked() []string {
	seen := map[string]struct{}{}
	var out []string
	for _, r := range c.rows {
		if _, ok := seen[r.BaseCategory]; ok || r.BaseCategory == "" {
			continue
		}
		seen[r.BaseCategory] = struct{}{}
		out = append(out, r.BaseCategory)
	}
	sort.Strings(out)
	return out
}

func (c *Controller) findLocked(id string) *viewmodel.Row {
	for i := range c.rows {
		if c.rows[i].ID == id {
			return &c.rows[i]
		}
	}
	return nil
}

func (c *Controller) clampLocked() {
	c.page = clamp(c.page, totalPages(len(c.filteredLocked()), c.itemsPerPage))
}

func totalPages(count, perPage int) int {
	if perPage <= 0 {
		perPage = ItemsPerPageWide
	}
	return max(1, int(math.Ceil(float64(count)/float64(perPage))))
}

func clamp(page, total int) int {
	return min(max(page, 1), total)
}
