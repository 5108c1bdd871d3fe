package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
)

type createLoanRequest struct {
	UserID       string          `json:"userId"`
	Amount       moneyInput      `json:"amount"`
	InterestRate decimal.Decimal `json:"interestRate"`
	RatePeriod   string          `json:"ratePeriod"`
	Lender       string          `json:"lender"`
	Description  string          `json:"description"`
	StartDate    string          `json:"startDate"`
	DueDate      string          `json:"dueDate"`
	Status       string          `json:"status"`
}

func (s *Server) handleCreateLoan(w http.ResponseWriter, r *http.Request, caller core.Caller) {
	var req createLoanRequest
	if !bindJSON(w, r, &req) {
		return
	}

	loan := core.Loan{
		UserID:       strings.TrimSpace(req.UserID),
		Amount:       core.Money(req.Amount),
		InterestRate: req.InterestRate,
		RatePeriod:   core.RatePeriod(strings.ToLower(strings.TrimSpace(req.RatePeriod))),
		Lender:       req.Lender,
		Description:  req.Description,
	}
	var err error
	if loan.StartDate, err = parseDate(req.StartDate); err != nil {
		writeError(w, r, err)
		return
	}
	if loan.DueDate, err = parseDate(req.DueDate); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Status != "" {
		if loan.Status, err = core.ParseLoanStatus(req.Status); err != nil {
			writeError(w, r, err)
			return
		}
	}

	created, err := s.ledger.CreateLoan(r.Context(), caller, loan)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newLoanView(created))
}

func (s *Server) handleListLoans(w http.ResponseWriter, r *http.Request, caller core.Caller) {
	q := r.URL.Query()
	var status core.LoanStatus
	if v := q.Get("status"); v != "" {
		var err error
		if status, err = core.ParseLoanStatus(v); err != nil {
			writeError(w, r, err)
			return
		}
	}

	loans, err := s.ledger.ListLoans(r.Context(), caller, strings.TrimSpace(q.Get("userId")), status)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapSlice(loans, newLoanView))
}

func (s *Server) handleGetLoan(w http.ResponseWriter, r *http.Request, caller core.Caller) {
	id, err := pathID(r, "id")
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	loan, err := s.ledger.GetLoan(r.Context(), caller, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newLoanView(loan))
}

type patchLoanRequest struct {
	Amount       *moneyInput      `json:"amount"`
	InterestRate *decimal.Decimal `json:"interestRate"`
	RatePeriod   *string          `json:"ratePeriod"`
	Lender       *string          `json:"lender"`
	Description  *string          `json:"description"`
	StartDate    *string          `json:"startDate"`
	DueDate      *string          `json:"dueDate"`
	Status       *string          `json:"status"`
}

func (req patchLoanRequest) toPatch() (core.LoanPatch, error) {
	patch := core.LoanPatch{
		InterestRate: req.InterestRate,
		Lender:       req.Lender,
		Description:  req.Description,
	}
	if req.Amount != nil {
		m := core.Money(*req.Amount)
		patch.Amount = &m
	}
	if req.RatePeriod != nil {
		p := core.RatePeriod(strings.ToLower(strings.TrimSpace(*req.RatePeriod)))
		patch.RatePeriod = &p
	}
	for _, f := range []struct {
		in  *string
		out **time.Time
	}{
		{req.StartDate, &patch.StartDate},
		{req.DueDate, &patch.DueDate},
	} {
		if f.in == nil {
			continue
		}
		t, err := parseDate(*f.in)
		if err != nil {
			return core.LoanPatch{}, err
		}
		if t.IsZero() {
			return core.LoanPatch{}, core.ErrMissingDate
		}
		*f.out = &t
	}
	if req.Status != nil {
		st, err := core.ParseLoanStatus(*req.Status)
		if err != nil {
			return core.LoanPatch{}, err
		}
		patch.Status = &st
	}
	return patch, nil
}

func (s *Server) handlePatchLoan(w http.ResponseWriter, r *http.Request, caller core.Caller) {
	id, err := pathID(r, "id")
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	var req patchLoanRequest
	if !bindJSON(w, r, &req) {
		return
	}
	patch, err := req.toPatch()
	if err != nil {
		writeError(w, r, err)
		return
	}

	loan, err := s.ledger.UpdateLoanFields(r.Context(), caller, id, patch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newLoanView(loan))
}

func (s *Server) handleDeleteLoan(w http.ResponseWriter, r *http.Request, caller core.Caller) {
	id, err := pathID(r, "id")
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	if err := s.ledger.DeleteLoan(r.Context(), caller, id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleLoanSummary(w http.ResponseWriter, r *http.Request, caller core.Caller) {
	id, err := pathID(r, "id")
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	sum, err := s.ledger.Summary(r.Context(), caller, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newSummaryView(sum))
}

func (s *Server) handleListPayments(w http.ResponseWriter, r *http.Request, caller core.Caller) {
	id, err := pathID(r, "id")
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	payments, err := s.ledger.ListPayments(r.Context(), caller, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapSlice(payments, newPaymentView))
}

type paymentRequest struct {
	Amount      moneyInput `json:"amount"`
	Date        string     `json:"date"`
	Description string     `json:"description"`
}

type paymentResponse struct {
	Loan    loanView    `json:"loan"`
	Payment paymentView `json:"payment"`
}

func (s *Server) handleApplyPayment(w http.ResponseWriter, r *http.Request, caller core.Caller) {
	id, err := pathID(r, "id")
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	var req paymentRequest
	if !bindJSON(w, r, &req) {
		return
	}
	date, err := parseDate(req.Date)
	if err != nil {
		writeError(w, r, err)
		return
	}

	loan, payment, err := s.ledger.ApplyPayment(r.Context(), caller, id, core.Money(req.Amount), date, strings.TrimSpace(req.Description))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, paymentResponse{Loan: newLoanView(loan), Payment: newPaymentView(payment)})
}

func (s *Server) handleReversePayment(w http.ResponseWriter, r *http.Request, caller core.Caller) {
	id, err := pathID(r, "id")
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	loan, err := s.ledger.ReversePayment(r.Context(), caller, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newLoanView(loan))
}
