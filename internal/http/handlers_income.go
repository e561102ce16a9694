package http

import "net/http"

func (s *Server) handleListIncomes(w http.ResponseWriter, r *http.Request) {
	filter, err := incomeFilterFrom(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	incomes, err := s.incomes.List(r.Context(), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}

	out := make([]incomeResponse, 0, len(incomes))
	for _, in := range incomes {
		out = append(out, toIncomeResponse(in))
	}
	writeJSON(w, r, http.StatusOK, out)
}

func (s *Server) handleCreateIncome(w http.ResponseWriter, r *http.Request) {
	var req incomeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	income, err := req.toDomain()
	if err != nil {
		writeError(w, r, err)
		return
	}

	created, err := s.incomes.Create(r.Context(), income)
	if err != nil {
		writeError(w, r, err)
		return
	}

	s.invalidate("record", created.MonthID)
	writeJSON(w, r, http.StatusCreated, toIncomeResponse(created))
}

func (s *Server) handleGetIncome(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	income, err := s.incomes.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, toIncomeResponse(income))
}

func (s *Server) handleUpdateIncome(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req incomeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	income, err := req.toDomain()
	if err != nil {
		writeError(w, r, err)
		return
	}
	income.ID = id

	updated, err := s.incomes.Update(r.Context(), income)
	if err != nil {
		writeError(w, r, err)
		return
	}

	s.invalidate("record", updated.MonthID)
	writeJSON(w, r, http.StatusOK, toIncomeResponse(updated))
}

func (s *Server) handleDeleteIncome(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	income, err := s.incomes.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := s.incomes.Delete(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}

	s.invalidate("record", income.MonthID)
	w.WriteHeader(http.StatusNoContent)
}
