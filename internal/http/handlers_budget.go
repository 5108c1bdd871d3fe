package http

import (
	"net/http"
	"strings"

	"fintrack/internal/core"
)

type budgetRequest struct {
	UserID   string     `json:"userId"`
	Category string     `json:"category"`
	Amount   moneyInput `json:"amount"`
	Month    int        `json:"month"`
	Year     int        `json:"year"`
}

func (s *Server) handleCreateBudget(w http.ResponseWriter, r *http.Request, caller core.Caller) {
	var req budgetRequest
	if !bindJSON(w, r, &req) {
		return
	}
	if req.Month == 0 && req.Year == 0 {
		now := s.now()
		req.Month, req.Year = int(now.Month()), now.Year()
	}

	b, err := s.monitor.CreateBudget(r.Context(), caller, core.Budget{
		UserID:   strings.TrimSpace(req.UserID),
		Category: req.Category,
		Amount:   core.Money(req.Amount),
		Month:    req.Month,
		Year:     req.Year,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newBudgetView(b))
}

func (s *Server) handleListBudgets(w http.ResponseWriter, r *http.Request, caller core.Caller) {
	p := ParseMonthParams(r.URL.Query(), s.now())
	if p.Month < 1 || p.Month > 12 {
		writeError(w, r, core.ErrInvalidMonth)
		return
	}
	budgets, err := s.monitor.ListBudgets(r.Context(), caller.UserID, p.Month, p.Year)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapSlice(budgets, newBudgetView))
}

type cashEntryRequest struct {
	UserID      string     `json:"userId"`
	Amount      moneyInput `json:"amount"`
	Category    string     `json:"category"`
	Description string     `json:"description"`
	Date        string     `json:"date"`
}

func (req cashEntryRequest) toEntry() (core.CashEntry, error) {
	date, err := parseDate(req.Date)
	if err != nil {
		return core.CashEntry{}, err
	}
	return core.CashEntry{
		UserID:      strings.TrimSpace(req.UserID),
		Amount:      core.Money(req.Amount),
		Category:    req.Category,
		Description: strings.TrimSpace(req.Description),
		Date:        date,
	}, nil
}

func (s *Server) handleRecordExpense(w http.ResponseWriter, r *http.Request, caller core.Caller) {
	s.recordEntry(w, r, caller, core.KindExpense)
}

func (s *Server) handleRecordIncome(w http.ResponseWriter, r *http.Request, caller core.Caller) {
	s.recordEntry(w, r, caller, core.KindIncome)
}

func (s *Server) recordEntry(w http.ResponseWriter, r *http.Request, caller core.Caller, kind core.EntryKind) {
	var req cashEntryRequest
	if !bindJSON(w, r, &req) {
		return
	}
	entry, err := req.toEntry()
	if err != nil {
		writeError(w, r, err)
		return
	}

	record := s.monitor.RecordIncome
	if kind == core.KindExpense {
		record = s.monitor.RecordExpense
	}
	saved, err := record(r.Context(), caller, entry)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newEntryView(saved))
}
