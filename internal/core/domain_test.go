package core

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestDateValidate(t *testing.T) {
	cases := []struct {
		d  Date
		ok bool
	}{
		{NewDate(2025, 1, 1), true},
		{NewDate(2025, 12, 31), true},
		{Date{Time: time.Time{}}, false}, // zero time
	}
	for i, tc := range cases {
		err := tc.d.Validate()
		if tc.ok && err != nil {
			t.Fatalf("case %d expected ok, got %v", i, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestParseDate(t *testing.T) {
	for _, in := range []string{"2024-03-05", "2024-03-05T10:00:00Z", "2024-03-05T10:00:00.123+05:30"} {
		d, err := ParseDate(in)
		if err != nil || d.Year() != 2024 || d.Month() != time.March {
			t.Fatalf("%q parsed to %v, err=%v", in, d, err)
		}
	}
	if _, err := ParseDate("05/03/2024"); err == nil {
		t.Fatalf("expected error for unsupported layout")
	}
}

func TestDateUnmarshalLenient(t *testing.T) {
	var e Expense
	if err := json.Unmarshal([]byte(`{"id":"a","amount":5,"date":"not a date","category":"x"}`), &e); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !e.Date.IsEmpty() {
		t.Fatalf("expected zero date for malformed input, got %v", e.Date)
	}
	if e.Amount.Cents != 500 {
		t.Fatalf("amount = %d", e.Amount.Cents)
	}
}

func TestMoneyValidate(t *testing.T) {
	if err := (Money{Cents: 1}).Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if err := (Money{Cents: 0}).Validate(); err == nil {
		t.Fatalf("expected error for zero")
	}
}

func TestExpenseValidate(t *testing.T) {
	good := Expense{
		Amount:      Money{Cents: 100},
		Date:        NewDate(2025, 1, 1),
		Category:    "food",
		PaymentType: PaymentCash,
		AccountType: AccountCash,
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bads := []Expense{
		{Amount: Money{Cents: 0}, Date: NewDate(2025, 1, 1), Category: "c", PaymentType: PaymentCash},
		{Amount: Money{Cents: 1}, Date: Date{}, Category: "c", PaymentType: PaymentCash},
		{Amount: Money{Cents: 1}, Date: NewDate(2025, 1, 1), Category: " ", PaymentType: PaymentCash},
		{Amount: Money{Cents: 1}, Date: NewDate(2025, 1, 1), Category: "c", PaymentType: "barter"},
		{Amount: Money{Cents: 1}, Date: NewDate(2025, 1, 1), Category: "c", PaymentType: PaymentUPI, AccountType: "Vault"},
	}
	for i, e := range bads {
		if err := e.Validate(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestAccountIsCash(t *testing.T) {
	cases := []struct {
		a    Account
		want bool
	}{
		{Account{Name: "Cash", Type: AccountOther}, true},
		{Account{Name: " cash ", Type: AccountBank}, true},
		{Account{Name: "Wallet", Type: AccountCash}, true},
		{Account{Name: "HDFC", Type: AccountBank}, false},
	}
	for _, tc := range cases {
		if got := tc.a.IsCash(); got != tc.want {
			t.Errorf("IsCash(%+v) = %v, want %v", tc.a, got, tc.want)
		}
	}
}

func TestPatchApply(t *testing.T) {
	base := UserRecord{
		Accounts:    []Account{{Name: "A", Type: AccountBank}},
		PhoneNumber: "123",
		Version:     4,
	}
	goal := Money{Cents: 9900}
	merged := UserRecordPatch{SavingsGoal: &goal}.Apply(base, true)
	if merged.PhoneNumber != "123" || len(merged.Accounts) != 1 || merged.SavingsGoal != goal {
		t.Fatalf("merge lost fields: %+v", merged)
	}
	replaced := UserRecordPatch{SavingsGoal: &goal}.Apply(base, false)
	if replaced.PhoneNumber != "" || len(replaced.Accounts) != 0 || replaced.Version != 4 {
		t.Fatalf("replace kept fields: %+v", replaced)
	}
}

func TestExpenseFormValidate(t *testing.T) {
	f := ExpenseForm{Amount: "abc", Date: "", Category: "", PaymentType: "barter", AccountType: "Vault"}
	errs := f.Validate()
	for _, field := range []string{"amount", "date", "category", "paymentType", "accountType"} {
		if _, ok := errs[field]; !ok {
			t.Errorf("expected error for %s, got %v", field, errs)
		}
	}

	ok := ExpenseForm{Amount: "12,50", Date: "2024-03-05", Category: "food", PaymentType: "UPI"}
	if errs := ok.Validate(); errs != nil {
		t.Fatalf("unexpected errors: %v", errs)
	}
	e, err := ok.Expense()
	if err != nil {
		t.Fatalf("Expense: %v", err)
	}
	if e.Amount.Cents != 1250 || e.PaymentType != PaymentUPI || e.PaymentMethod != "upi" {
		t.Fatalf("unexpected expense: %+v", e)
	}
}

func TestFormMessagesListAcceptedValues(t *testing.T) {
	errs := ExpenseForm{PaymentType: "barter", AccountType: "Vault"}.Validate()
	for _, p := range PaymentTypes {
		if !p.Valid() {
			t.Errorf("%q listed but not valid", p)
		}
		if !strings.Contains(errs["paymentType"], string(p)) {
			t.Errorf("paymentType message %q omits %q", errs["paymentType"], p)
		}
	}
	for _, a := range AccountTypes {
		if !a.Valid() {
			t.Errorf("%q listed but not valid", a)
		}
		if !strings.Contains(errs["accountType"], string(a)) {
			t.Errorf("accountType message %q omits %q", errs["accountType"], a)
		}
	}
	if PaymentType("barter").Valid() || AccountType("Vault").Valid() {
		t.Error("unknown values accepted")
	}
}

func TestExpenseFormDescriptionCountsCharacters(t *testing.T) {
	f := ExpenseForm{Amount: "1", Date: "2024-03-05", Category: "food", PaymentType: "cash",
		Description: strings.Repeat("é", 200)}
	if errs := f.Validate(); errs != nil {
		t.Fatalf("200 characters rejected: %v", errs)
	}
	f.Description += "é"
	if _, ok := f.Validate()["description"]; !ok {
		t.Fatal("201 characters accepted")
	}
}
