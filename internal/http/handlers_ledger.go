package http

import (
	"net/http"

	"fintrack/internal/core"
	applog "fintrack/internal/log"
)

type profileView struct {
	SavingsGoal  core.Money `json:"savingsGoal"`
	PhoneNumber  string     `json:"phoneNumber"`
	TotalBalance core.Money `json:"totalBalance"`
	Version      int64      `json:"version"`
}

type profileRequest struct {
	SavingsGoal *core.Money `json:"savingsGoal"`
	PhoneNumber *string     `json:"phoneNumber"`
}

type accountRequest struct {
	Name              string           `json:"name"`
	Type              core.AccountType `json:"type"`
	Balance           core.Money       `json:"balance"`
	IsRecurringIncome bool             `json:"isRecurringIncome"`
	RecurringAmount   core.Money       `json:"recurringAmount"`
	CardType          string           `json:"cardType"`
	CreditAmount      *core.Money      `json:"creditAmount"`
	ExpiryDate        string           `json:"expiryDate"`
}

func (a accountRequest) account() core.Account {
	return core.Account{
		Name:              sanitizeInput(a.Name),
		Type:              a.Type,
		Balance:           a.Balance,
		IsRecurringIncome: a.IsRecurringIncome,
		RecurringAmount:   a.RecurringAmount,
		CardType:          sanitizeInput(a.CardType),
		CreditAmount:      a.CreditAmount,
		ExpiryDate:        sanitizeInput(a.ExpiryDate),
	}
}

type balanceRequest struct {
	Balance core.Money `json:"balance"`
}

func (h *handlers) getProfile(w http.ResponseWriter, r *http.Request) {
	rec, err := h.deps.Transactions.Record(r.Context(), userID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profileView{
		SavingsGoal:  rec.SavingsGoal,
		PhoneNumber:  rec.PhoneNumber,
		TotalBalance: rec.TotalBalance,
		Version:      rec.Version,
	})
}

func (h *handlers) updateProfile(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.SavingsGoal != nil && req.SavingsGoal.Cents < 0 {
		writeError(w, r, core.FieldErrors{"savingsGoal": "savings goal cannot be negative"})
		return
	}
	rec, err := h.deps.Transactions.UpdateProfile(r.Context(), userID(r), req.SavingsGoal, req.PhoneNumber)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profileView{
		SavingsGoal:  rec.SavingsGoal,
		PhoneNumber:  rec.PhoneNumber,
		TotalBalance: rec.TotalBalance,
		Version:      rec.Version,
	})
}

func (h *handlers) listAccounts(w http.ResponseWriter, r *http.Request) {
	rec, err := h.deps.Transactions.Record(r.Context(), userID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	accounts := rec.Accounts
	if accounts == nil {
		accounts = []core.Account{}
	}
	writeJSON(w, http.StatusOK, accounts)
}

func (h *handlers) addAccount(w http.ResponseWriter, r *http.Request) {
	var req accountRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	accounts, err := h.deps.Transactions.AddAccount(r.Context(), userID(r), req.account())
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.refreshTable(r)
	writeJSON(w, http.StatusCreated, accounts)
}

func (h *handlers) updateAccountBalance(w http.ResponseWriter, r *http.Request) {
	index, err := pathIndex(r, "index")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req balanceRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	accounts, err := h.deps.Transactions.UpdateAccountBalance(r.Context(), userID(r), index, req.Balance)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.refreshTable(r)
	writeJSON(w, http.StatusOK, accounts)
}

func (h *handlers) deleteAccount(w http.ResponseWriter, r *http.Request) {
	index, err := pathIndex(r, "index")
	if err != nil {
		writeError(w, r, err)
		return
	}
	accounts, err := h.deps.Transactions.DeleteAccount(r.Context(), userID(r), index)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.refreshTable(r)
	writeJSON(w, http.StatusOK, accounts)
}

// addExpense validates the whole form before anything is stored; every bad
// field is reported at once.
func (h *handlers) addExpense(w http.ResponseWriter, r *http.Request) {
	var form core.ExpenseForm
	if err := decodeJSON(r, &form); err != nil {
		writeError(w, r, err)
		return
	}
	form.Description = sanitizeInput(form.Description)
	form.Category = sanitizeInput(form.Category)
	form.PaymentMethod = sanitizeInput(form.PaymentMethod)

	e, err := h.deps.Transactions.AddExpense(r.Context(), userID(r), form)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.refreshTable(r)
	writeJSON(w, http.StatusCreated, e)
}

func (h *handlers) dashboard(w http.ResponseWriter, r *http.Request) {
	d, err := h.deps.Transactions.Dashboard(r.Context(), userID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// refreshTable reloads the caller's live table, if any, after a write made
// outside it.
func (h *handlers) refreshTable(r *http.Request) {
	if h.deps.Controllers == nil {
		return
	}
	ctrl, ok := h.deps.Controllers.Peek(userID(r))
	if !ok {
		return
	}
	if err := ctrl.Refresh(r.Context()); err != nil {
		applog.FromContext(r.Context()).WarnContext(r.Context(), "Table refresh failed",
			applog.FieldUserID, userID(r),
			applog.FieldError, err)
	}
}
