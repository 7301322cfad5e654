package table

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"

	"fintrack/internal/core"
)

var testNow = time.Date(2024, 3, 20, 12, 0, 0, 0, time.UTC)

func exp(id string, cents int64, date time.Time, category, desc string) core.Expense {
	return core.Expense{
		ID:            id,
		Amount:        core.Money{Cents: cents},
		Date:          core.Date{Time: date},
		Category:      category,
		Description:   desc,
		PaymentMethod: "cash",
		PaymentType:   core.PaymentCash,
		AccountType:   core.AccountCash,
		OCRData:       []byte(`{"merchant":"Shop"}`),
	}
}

func newTestController(t *testing.T, src *fakeSource) (*Controller, *fakeClock) {
	t.Helper()
	clock := newFakeClock(testNow)
	c := New(src, clock, nil)
	if err := c.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	t.Cleanup(c.Close)
	return c, clock
}

func manyExpenses(n int) []core.Expense {
	out := make([]core.Expense, n)
	for i := range out {
		out[i] = exp(fmt.Sprintf("e%02d", i), int64(100+i), testNow.AddDate(0, 0, -i), "food", fmt.Sprintf("meal %d", i))
	}
	return out
}

func TestRecentModeShowsLastTwoDays(t *testing.T) {
	src := &fakeSource{expenses: []core.Expense{
		exp("today", 100, testNow.Add(-time.Hour), "food", "lunch"),
		exp("yesterday", 100, testNow.Add(-30*time.Hour), "food", "dinner"),
		exp("old", 100, testNow.Add(-72*time.Hour), "rent", "march rent"),
	}}
	c, _ := newTestController(t, src)

	v := c.Page()
	if v.Mode != ModeRecent || v.Count != 2 {
		t.Fatalf("recent view: mode=%s count=%d", v.Mode, v.Count)
	}

	if err := c.SetMode(ModeAll); err != nil {
		t.Fatal(err)
	}
	if got := c.Page().Count; got != 3 {
		t.Fatalf("all view count = %d, want 3", got)
	}
}

func TestSetFiltersLeavesRecentAndResetsPage(t *testing.T) {
	src := &fakeSource{expenses: append(manyExpenses(25),
		exp("r1", 900, testNow.AddDate(0, 0, -40), "rent", "flat rent"))}
	c, _ := newTestController(t, src)
	_ = c.SetMode(ModeAll)
	_ = c.SetPage(3)
	if got := c.Page().Page; got != 3 {
		t.Fatalf("page = %d, want 3", got)
	}
	_ = c.SetMode(ModeRecent)

	if err := c.SetFilters(Filters{Search: "RENT"}); err != nil {
		t.Fatal(err)
	}
	v := c.Page()
	if v.Mode != ModeAll || v.Page != 1 {
		t.Fatalf("mode=%s page=%d", v.Mode, v.Page)
	}
	if v.Count != 1 || v.Rows[0].ID != "r1" {
		t.Fatalf("search result: %+v", v.Rows)
	}

	_ = c.SetFilters(Filters{Categories: []string{"food"}, Type: TypeExpense})
	if got := c.Page().Count; got != 25 {
		t.Fatalf("category filter count = %d", got)
	}
	_ = c.SetFilters(Filters{Type: TypeIncome})
	if got := c.Page().Count; got != 0 {
		t.Fatalf("income filter count = %d", got)
	}
	if err := c.SetFilters(Filters{Type: "bogus"}); err == nil {
		t.Fatal("expected error for unknown type")
	}
}

func TestEnteringRecentClearsFilters(t *testing.T) {
	c, _ := newTestController(t, &fakeSource{expenses: manyExpenses(3)})
	_ = c.SetFilters(Filters{Search: "meal", Categories: []string{"food"}, Type: TypeExpense})
	_ = c.SetMode(ModeRecent)
	v := c.Page()
	if v.Filters.Search != "" || len(v.Filters.Categories) != 0 || v.Filters.Type != TypeAll {
		t.Fatalf("filters not cleared: %+v", v.Filters)
	}
}

func TestPaginationClamp(t *testing.T) {
	c, _ := newTestController(t, &fakeSource{expenses: manyExpenses(23)})
	_ = c.SetMode(ModeAll)

	tests := []struct {
		width, page, wantPage, wantTotal, wantRows int
	}{
		{1024, 0, 1, 3, 10},
		{1024, -4, 1, 3, 10},
		{1024, 3, 3, 3, 3},
		{1024, 99, 3, 3, 3},
		{375, 99, 3, 3, 7},
		{375, 2, 2, 3, 8},
	}
	for _, tt := range tests {
		_ = c.SetViewportWidth(tt.width)
		_ = c.SetPage(tt.page)
		v := c.Page()
		if v.Page != tt.wantPage || v.TotalPages != tt.wantTotal || len(v.Rows) != tt.wantRows {
			t.Errorf("width=%d page=%d: got page=%d total=%d rows=%d", tt.width, tt.page, v.Page, v.TotalPages, len(v.Rows))
		}
	}
}

func TestEmptyListHasOnePage(t *testing.T) {
	c, _ := newTestController(t, &fakeSource{})
	_ = c.SetPage(5)
	v := c.Page()
	if v.Page != 1 || v.TotalPages != 1 || len(v.Rows) != 0 {
		t.Fatalf("empty view: %+v", v)
	}
}

func TestItemsPerPage(t *testing.T) {
	for px, want := range map[int]int{320: 8, 767: 8, 768: 10, 1440: 10, 0: 10} {
		if got := ItemsPerPage(px); got != want {
			t.Errorf("ItemsPerPage(%d) = %d, want %d", px, got, want)
		}
	}
}

func TestEditOnlyExpenseRows(t *testing.T) {
	src := &fakeSource{
		expenses: []core.Expense{exp("e1", 500, testNow, "food", "lunch")},
		accounts: []core.Account{{Name: "HDFC", Type: core.AccountBank, Balance: core.Money{Cents: 100}}},
	}
	c, _ := newTestController(t, src)
	if _, err := c.StartEdit("balance:HDFC"); !errors.Is(err, ErrNotEditable) {
		t.Fatalf("editing income row: %v", err)
	}
	if _, err := c.StartEdit("missing"); !errors.Is(err, ErrRowNotFound) {
		t.Fatalf("editing missing row: %v", err)
	}
	d, err := c.StartEdit("e1")
	if err != nil {
		t.Fatal(err)
	}
	if d.Amount != "5.00" || d.Category != "food" || d.Date != "2024-03-20" {
		t.Fatalf("draft = %+v", d)
	}
}

func TestSaveEditSuccess(t *testing.T) {
	src := &fakeSource{expenses: []core.Expense{exp("e1", 500, testNow, "food", "lunch"), exp("e2", 100, testNow, "food", "tea")}}
	c, _ := newTestController(t, src)
	_, _ = c.StartEdit("e1")
	_, _ = c.StartEdit("e2")
	if got := c.Page().EditingID; got != "e2" {
		t.Fatalf("editing = %q, want e2", got)
	}

	err := c.SaveEdit(context.Background(), EditDraft{Description: "chai", Category: "drinks", Amount: "1,50", Date: "2024-03-19"})
	if err != nil {
		t.Fatal(err)
	}
	v := c.Page()
	if v.EditingID != "" {
		t.Fatalf("edit not cleared")
	}
	got := src.updated[0]
	if got.ID != "e2" || got.Amount.Cents != 150 || got.Category != "drinks" || got.Description != "chai" {
		t.Fatalf("updated = %+v", got)
	}
	if got.PaymentType != core.PaymentCash || string(got.OCRData) != `{"merchant":"Shop"}` {
		t.Fatalf("untouched fields changed: %+v", got)
	}
	if v.Version != 1 {
		t.Fatalf("not refreshed, version %d", v.Version)
	}
}

func TestSaveEditRejectsBadAmountWithoutCallingStore(t *testing.T) {
	src := &fakeSource{expenses: []core.Expense{exp("e1", 500, testNow, "food", "lunch")}}
	c, _ := newTestController(t, src)
	_, _ = c.StartEdit("e1")
	for _, amount := range []string{"", "0", "-3", "abc"} {
		err := c.SaveEdit(context.Background(), EditDraft{Amount: amount})
		var fe core.FieldErrors
		if !errors.As(err, &fe) || fe["amount"] == "" {
			t.Fatalf("amount %q: err = %v", amount, err)
		}
	}
	if len(src.updated) != 0 {
		t.Fatal("store called for invalid draft")
	}
	if c.Page().EditingID != "e1" {
		t.Fatal("edit state lost")
	}
}

func TestSaveEditFailureKeepsState(t *testing.T) {
	src := &fakeSource{expenses: []core.Expense{exp("e1", 500, testNow, "food", "lunch")}, updateErr: errBackend}
	c, _ := newTestController(t, src)
	_, _ = c.StartEdit("e1")
	err := c.SaveEdit(context.Background(), EditDraft{Amount: "9"})
	if !errors.Is(err, errBackend) {
		t.Fatalf("err = %v", err)
	}
	v := c.Page()
	if v.EditingID != "e1" || v.Draft == nil || v.Draft.Amount != "9" {
		t.Fatalf("edit state after failure: %+v", v)
	}
	if v.Rows[0].Amount.Cents != 500 {
		t.Fatal("row mutated locally")
	}
}

func TestSaveEditWithoutStart(t *testing.T) {
	c, _ := newTestController(t, &fakeSource{})
	if err := c.SaveEdit(context.Background(), EditDraft{Amount: "1"}); !errors.Is(err, ErrNoActiveEdit) {
		t.Fatalf("err = %v", err)
	}
}

func TestDeleteRequiresConfirmation(t *testing.T) {
	src := &fakeSource{expenses: []core.Expense{exp("e1", 500, testNow, "food", "lunch")}}
	c, _ := newTestController(t, src)
	if err := c.ExecuteDelete(context.Background()); !errors.Is(err, ErrNoPendingDelete) {
		t.Fatalf("err = %v", err)
	}
	_ = c.ConfirmDelete("e1")
	c.CancelDelete()
	if err := c.ExecuteDelete(context.Background()); !errors.Is(err, ErrNoPendingDelete) {
		t.Fatalf("after cancel err = %v", err)
	}
	if !src.has("e1") {
		t.Fatal("deleted without confirmation")
	}
}

func TestDeleteThenUndoRestoresOriginal(t *testing.T) {
	original := exp("e1", 500, testNow, "food", "lunch")
	src := &fakeSource{expenses: []core.Expense{original}}
	c, clock := newTestController(t, src)

	_ = c.ConfirmDelete("e1")
	if err := c.ExecuteDelete(context.Background()); err != nil {
		t.Fatal(err)
	}
	v := c.Page()
	if !v.CanUndo || v.Count != 0 {
		t.Fatalf("after delete: canUndo=%v count=%d", v.CanUndo, v.Count)
	}

	clock.Advance(4 * time.Second)
	if err := c.Undo(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(src.restored) != 1 || !reflect.DeepEqual(src.restored[0], original) {
		t.Fatalf("restored %+v, want %+v", src.restored, original)
	}
	v = c.Page()
	if v.CanUndo || v.Count != 1 {
		t.Fatalf("after undo: canUndo=%v count=%d", v.CanUndo, v.Count)
	}
	if clock.pending() != 0 {
		t.Fatal("undo timer still armed")
	}
}

func TestReloadFailureAfterWriteMarksStale(t *testing.T) {
	src := &fakeSource{expenses: []core.Expense{exp("e1", 500, testNow, "food", "lunch")}}
	c, _ := newTestController(t, src)

	_ = c.ConfirmDelete("e1")
	src.mu.Lock()
	src.snapshotErrs = 1
	src.mu.Unlock()
	if err := c.ExecuteDelete(context.Background()); err != nil {
		t.Fatalf("delete reported failure after committing: %v", err)
	}
	if src.has("e1") {
		t.Fatal("record not deleted")
	}
	v := c.Page()
	if !v.Stale || !v.CanUndo {
		t.Fatalf("stale=%v canUndo=%v, want both true", v.Stale, v.CanUndo)
	}

	src.mu.Lock()
	src.snapshotErrs = 1
	src.mu.Unlock()
	if err := c.Undo(context.Background()); err != nil {
		t.Fatalf("undo reported failure after committing: %v", err)
	}
	if !src.has("e1") {
		t.Fatal("record not restored")
	}

	if err := c.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}
	if v := c.Page(); v.Stale || v.Count != 1 {
		t.Fatalf("after reload: stale=%v count=%d", v.Stale, v.Count)
	}
}

func TestUndoAfterExpiryDoesNothing(t *testing.T) {
	src := &fakeSource{expenses: []core.Expense{exp("e1", 500, testNow, "food", "lunch")}}
	c, clock := newTestController(t, src)
	_ = c.ConfirmDelete("e1")
	_ = c.ExecuteDelete(context.Background())

	clock.Advance(6 * time.Second)
	if c.Page().CanUndo {
		t.Fatal("undo still available after expiry")
	}
	if err := c.Undo(context.Background()); !errors.Is(err, ErrNothingToUndo) {
		t.Fatalf("err = %v", err)
	}
	if len(src.restored) != 0 || src.has("e1") {
		t.Fatal("record restored after expiry")
	}
}

func TestNewDeleteSupersedesUndo(t *testing.T) {
	src := &fakeSource{expenses: []core.Expense{
		exp("e1", 500, testNow, "food", "a"),
		exp("e2", 600, testNow, "food", "b"),
	}}
	c, clock := newTestController(t, src)
	_ = c.ConfirmDelete("e1")
	_ = c.ExecuteDelete(context.Background())
	clock.Advance(3 * time.Second)
	_ = c.ConfirmDelete("e2")
	_ = c.ExecuteDelete(context.Background())

	// The first timer would have fired here; the second must still be live.
	clock.Advance(3 * time.Second)
	if !c.Page().CanUndo {
		t.Fatal("second undo expired early")
	}
	if err := c.Undo(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(src.restored) != 1 || src.restored[0].ID != "e2" {
		t.Fatalf("restored %+v", src.restored)
	}
	if src.has("e1") {
		t.Fatal("superseded record came back")
	}
}

func TestDeleteFailureLeavesStateUnchanged(t *testing.T) {
	src := &fakeSource{expenses: []core.Expense{exp("e1", 500, testNow, "food", "a")}, deleteErr: errBackend}
	c, clock := newTestController(t, src)
	_ = c.ConfirmDelete("e1")
	if err := c.ExecuteDelete(context.Background()); !errors.Is(err, errBackend) {
		t.Fatalf("err = %v", err)
	}
	v := c.Page()
	if v.CanUndo || v.PendingDeleteID != "e1" || v.Count != 1 || clock.pending() != 0 {
		t.Fatalf("state after failed delete: %+v", v)
	}
}

func TestStaleSnapshotDiscarded(t *testing.T) {
	src := &fakeSource{version: 5, expenses: []core.Expense{exp("new", 100, testNow, "food", "x")}}
	c, _ := newTestController(t, src)
	src.stale = &Snapshot{Version: 3, Expenses: []core.Expense{exp("old", 100, testNow, "food", "y")}}
	if err := c.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}
	v := c.Page()
	if v.Version != 5 || v.Rows[0].ID != "new" {
		t.Fatalf("stale snapshot applied: %+v", v)
	}
}

func TestCloseStopsTimerAndIgnoresResults(t *testing.T) {
	src := &fakeSource{expenses: []core.Expense{exp("e1", 500, testNow, "food", "a")}}
	c, clock := newTestController(t, src)
	_ = c.ConfirmDelete("e1")
	_ = c.ExecuteDelete(context.Background())
	c.Close()
	if clock.pending() != 0 {
		t.Fatal("timer survived close")
	}
	src.version = 9
	_ = c.Refresh(context.Background())
	if c.Page().Version == 9 {
		t.Fatal("refresh applied after close")
	}
	if err := c.SetPage(2); !errors.Is(err, ErrClosed) {
		t.Fatalf("err = %v", err)
	}
}

func TestPageTotals(t *testing.T) {
	src := &fakeSource{
		expenses: []core.Expense{exp("e1", 500, testNow, "food", "a")},
		accounts: []core.Account{{Name: "HDFC", Type: core.AccountBank, Balance: core.Money{Cents: 2000}}},
	}
	c, _ := newTestController(t, src)
	v := c.Page()
	if v.Income.Cents != 2000 || v.Expenses.Cents != 500 {
		t.Fatalf("totals: income=%d expenses=%d", v.Income.Cents, v.Expenses.Cents)
	}
	if !reflect.DeepEqual(v.Categories, []string{"Income", "food"}) {
		t.Fatalf("categories = %v", v.Categories)
	}
}
