package http

import (
	"net/http"

	"bilancio/internal/core"
)

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	filter, err := expenseFilterFrom(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	expenses, err := s.expenses.List(r.Context(), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}

	out := make([]expenseResponse, 0, len(expenses))
	for _, e := range expenses {
		out = append(out, toExpenseResponse(e))
	}
	writeJSON(w, r, http.StatusOK, out)
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	var req expenseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	expense, err := req.toDomain()
	if err != nil {
		writeError(w, r, err)
		return
	}

	created, err := s.expenses.Create(r.Context(), expense)
	if err != nil {
		writeError(w, r, err)
		return
	}

	s.invalidate("record", created.MonthID)
	writeJSON(w, r, http.StatusCreated, toExpenseResponse(created))
}

func (s *Server) handleGetExpense(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	expense, err := s.expenses.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, toExpenseResponse(expense))
}

func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req expenseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	expense, err := req.toDomain()
	if err != nil {
		writeError(w, r, err)
		return
	}
	expense.ID = id

	updated, err := s.expenses.Update(r.Context(), expense)
	if err != nil {
		writeError(w, r, err)
		return
	}

	s.invalidate("record", updated.MonthID)
	writeJSON(w, r, http.StatusOK, toExpenseResponse(updated))
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	// Fetch first so the invalidation knows which month changed.
	expense, err := s.expenses.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := s.expenses.Delete(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}

	s.invalidate("record", expense.MonthID)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleReplacePurchases(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req struct {
		Purchases []purchaseRequest `json:"purchases"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	purchases := make([]core.Purchase, 0, len(req.Purchases))
	for _, p := range req.Purchases {
		dp, err := p.toDomain()
		if err != nil {
			writeError(w, r, err)
			return
		}
		purchases = append(purchases, dp)
	}

	updated, err := s.expenses.ReplacePurchases(r.Context(), id, purchases)
	if err != nil {
		writeError(w, r, err)
		return
	}

	s.invalidate("record", updated.MonthID)
	writeJSON(w, r, http.StatusOK, toExpenseResponse(updated))
}
