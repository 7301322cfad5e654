package core

import (
	"encoding/json"
	"strings"
	"unicode/utf8"
)

// ExpenseForm is the raw add-expense form as submitted by a client.
type ExpenseForm struct {
	Amount        string `json:"amount"`
	Date          string `json:"date"`
	Category      string `json:"category"`
	Description   string `json:"description"`
	PaymentMethod string `json:"paymentMethod"`
	PaymentType   string `json:"paymentType"`
	AccountType   string `json:"accountType"`
	// OCRData is the receipt extraction that pre-filled the form, if any.
	OCRData json.RawMessage `json:"ocrData,omitempty"`
}

// FieldErrors maps a form field name to a user-facing message.
type FieldErrors map[string]string

func (fe FieldErrors) Error() string {
	parts := make([]string, 0, len(fe))
	for k, v := range fe {
		parts = append(parts, k+": "+v)
	}
	return "invalid form: " + strings.Join(parts, "; ")
}

// Validate checks every field and returns all problems at once.
// It returns nil when the form is acceptable.
func (f ExpenseForm) Validate() FieldErrors {
	errs := FieldErrors{}
	if strings.TrimSpace(f.Amount) == "" {
		errs["amount"] = "amount is required"
	} else if _, err := ParseDecimalToCents(f.Amount); err != nil {
		errs["amount"] = "amount must be a positive number"
	}
	if strings.TrimSpace(f.Date) == "" {
		errs["date"] = "date is required"
	} else if _, err := ParseDate(f.Date); err != nil {
		errs["date"] = "date must be YYYY-MM-DD or RFC3339"
	}
	if strings.TrimSpace(f.Category) == "" {
		errs["category"] = "category is required"
	}
	if utf8.RuneCountInString(f.Description) > 200 {
		errs["description"] = "description too long (max 200 characters)"
	}
	if !PaymentType(strings.ToLower(strings.TrimSpace(f.PaymentType))).Valid() {
		errs["paymentType"] = "payment type must be one of " + joinValues(PaymentTypes)
	}
	if at := strings.TrimSpace(f.AccountType); at != "" && !AccountType(at).Valid() {
		errs["accountType"] = "account type must be one of " + joinValues(AccountTypes)
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

func joinValues[T ~string](vs []T) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = string(v)
	}
	return strings.Join(parts, ", ")
}

// Expense converts a validated form into a record without an id.
func (f ExpenseForm) Expense() (Expense, error) {
	if errs := f.Validate(); errs != nil {
		return Expense{}, errs
	}
	cents, _ := ParseDecimalToCents(f.Amount)
	date, _ := ParseDate(f.Date)
	method := strings.TrimSpace(f.PaymentMethod)
	pt := PaymentType(strings.ToLower(strings.TrimSpace(f.PaymentType)))
	if method == "" {
		method = string(pt)
	}
	return Expense{
		Amount:        Money{Cents: cents},
		Date:          date,
		Category:      strings.TrimSpace(f.Category),
		Description:   strings.TrimSpace(f.Description),
		PaymentMethod: method,
		PaymentType:   pt,
		AccountType:   AccountType(strings.TrimSpace(f.AccountType)),
		OCRData:       f.OCRData,
	}, nil
}
