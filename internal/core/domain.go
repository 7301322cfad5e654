package core

import (
	"encoding/json"
	"errors"
	"slices"
	"strings"
	"time"
)

const (
	AccountBank   AccountType = "Bank"
	AccountCredit AccountType = "Credit"
	AccountCash   AccountType = "Cash"
	AccountOther  AccountType = "Other"
)

const (
	PaymentCash   PaymentType = "cash"
	PaymentCredit PaymentType = "credit"
	PaymentUPI    PaymentType = "upi"
	PaymentDebit  PaymentType = "debit"
	PaymentCheck  PaymentType = "check"
	PaymentIncome PaymentType = "income"
)

// SalaryAccountName is the account name that is always treated as recurring income.
const SalaryAccountName = "Passive/Salary"

type (
	AccountType string
	PaymentType string

	// Date is a calendar instant. The zero value means the stored date was
	// missing or could not be parsed.
	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	Account struct {
		Name              string      `json:"name"`
		Type              AccountType `json:"type"`
		Balance           Money       `json:"balance"`
		IsRecurringIncome bool        `json:"isRecurringIncome"`
		RecurringAmount   Money       `json:"recurringAmount"`
		CardType          string      `json:"cardType,omitempty"`
		CreditAmount      *Money      `json:"creditAmount,omitempty"`
		ExpiryDate        string      `json:"expiryDate,omitempty"`
		// LastAccruedMonth is "YYYY-MM" of the last recurring-income accrual.
		LastAccruedMonth string `json:"lastAccruedMonth,omitempty"`
	}

	Expense struct {
		ID            string          `json:"id"`
		Amount        Money           `json:"amount"`
		Date          Date            `json:"date"`
		Category      string          `json:"category"`
		Description   string          `json:"description,omitempty"`
		PaymentMethod string          `json:"paymentMethod"`
		PaymentType   PaymentType     `json:"paymentType"`
		AccountType   AccountType     `json:"accountType"`
		OCRData       json.RawMessage `json:"ocrData,omitempty"`
	}
)

var (
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrInvalidDate        = errors.New("invalid date")
	ErrEmptyCategory      = errors.New("empty category")
	ErrEmptyAccountName   = errors.New("empty account name")
	ErrInvalidPaymentType = errors.New("invalid payment type")
	ErrInvalidAccountType = errors.New("invalid account type")
	ErrNotFound           = errors.New("not found")
)

var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ParseDate accepts RFC3339 timestamps and plain YYYY-MM-DD dates.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return Date{Time: t}, nil
		}
	}
	return Date{}, ErrInvalidDate
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// IsEmpty returns true if the date is zero
func (d Date) IsEmpty() bool {
	return d.IsZero()
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte(`""`), nil
	}
	return json.Marshal(d.UTC().Format(time.RFC3339))
}

// UnmarshalJSON never fails on a bad date string; the result is the zero Date
// so that one malformed record does not hide the rest of a user's data.
func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		*d = Date{}
		return nil
	}
	*d = parsed
	return nil
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (m Money) Add(o Money) Money {
	return Money{Cents: m.Cents + o.Cents}
}

func (m Money) IsPositive() bool {
	return m.Cents > 0
}

// PaymentTypes lists every accepted payment type.
var PaymentTypes = []PaymentType{PaymentCash, PaymentCredit, PaymentUPI, PaymentDebit, PaymentCheck, PaymentIncome}

// AccountTypes lists every accepted account type.
var AccountTypes = []AccountType{AccountBank, AccountCredit, AccountCash, AccountOther}

func (p PaymentType) Valid() bool {
	return slices.Contains(PaymentTypes, p)
}

// IsIncome reports whether a record with this payment type counts as income
// in monthly totals.
func (p PaymentType) IsIncome() bool {
	return p == PaymentCredit || p == PaymentIncome
}

func (t AccountType) Valid() bool {
	return slices.Contains(AccountTypes, t)
}

func (a Account) Validate() error {
	if strings.TrimSpace(a.Name) == "" {
		return ErrEmptyAccountName
	}
	if !a.Type.Valid() {
		return ErrInvalidAccountType
	}
	return nil
}

// IsCash reports whether the account resolves to the single logical Cash account.
func (a Account) IsCash() bool {
	return strings.EqualFold(strings.TrimSpace(a.Name), "cash") ||
		strings.EqualFold(strings.TrimSpace(string(a.Type)), "cash")
}

func (e Expense) Validate() error {
	if err := e.Amount.Validate(); err != nil {
		return err
	}
	if err := e.Date.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(e.Category) == "" {
		return ErrEmptyCategory
	}
	if len(e.Description) > 200 {
		return errors.New("description too long (max 200 characters)")
	}
	if !e.PaymentType.Valid() {
		return ErrInvalidPaymentType
	}
	if e.AccountType != "" && !e.AccountType.Valid() {
		return ErrInvalidAccountType
	}
	return nil
}
