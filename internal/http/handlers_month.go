package http

import (
	"fmt"
	"net/http"
)

type monthRequest struct {
	Year  int `json:"year"`
	Month int `json:"month"`
}

func (s *Server) handleListMonths(w http.ResponseWriter, r *http.Request) {
	// ?year=YYYY&month=M resolves a single month by calendar position.
	if r.URL.Query().Get("year") != "" || r.URL.Query().Get("month") != "" {
		s.handleGetMonthByYearMonth(w, r)
		return
	}

	months, err := s.months.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	out := make([]monthResponse, 0, len(months))
	for _, m := range months {
		out = append(out, toMonthResponse(m))
	}
	writeJSON(w, r, http.StatusOK, out)
}

func (s *Server) handleGetMonthByYearMonth(w http.ResponseWriter, r *http.Request) {
	year, err := queryInt64(r, "year")
	if err != nil {
		writeError(w, r, err)
		return
	}
	monthNum, err := queryInt64(r, "month")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if year == 0 || monthNum == 0 {
		writeError(w, r, fmt.Errorf("year and month are both required: %w", errBadRequest))
		return
	}

	month, err := s.months.GetByYearMonth(r.Context(), int(year), int(monthNum))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, toMonthResponse(month))
}

func (s *Server) handleCreateMonth(w http.ResponseWriter, r *http.Request) {
	var req monthRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	created, err := s.months.Create(r.Context(), req.Year, req.Month)
	if err != nil {
		writeError(w, r, err)
		return
	}

	s.invalidate("month", created.ID)
	writeJSON(w, r, http.StatusCreated, toMonthResponse(created))
}

func (s *Server) handleGetMonth(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	month, err := s.months.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, toMonthResponse(month))
}

func (s *Server) handleCloseMonth(w http.ResponseWriter, r *http.Request) {
	s.setMonthClosed(w, r, true)
}

func (s *Server) handleReopenMonth(w http.ResponseWriter, r *http.Request) {
	s.setMonthClosed(w, r, false)
}

func (s *Server) setMonthClosed(w http.ResponseWriter, r *http.Request, closed bool) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if closed {
		err = s.months.Close(r.Context(), id)
	} else {
		err = s.months.Reopen(r.Context(), id)
	}
	if err != nil {
		writeError(w, r, err)
		return
	}

	month, err := s.months.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	s.invalidate("month", id)
	writeJSON(w, r, http.StatusOK, toMonthResponse(month))
}

type cloneResponse struct {
	Message       string `json:"message"`
	ClonedCount   int    `json:"cloned_count"`
	NextMonthID   int64  `json:"next_month_id"`
	NextMonthName string `json:"next_month_name"`
}

func (s *Server) handleCloneMonth(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	result, err := s.months.CloneToNext(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	s.invalidate("clone", 0)

	// The count covers expenses and incomes together.
	plural := "records"
	if result.ClonedCount == 1 {
		plural = "record"
	}
	writeJSON(w, r, http.StatusOK, cloneResponse{
		Message:       fmt.Sprintf("cloned %d %s into %s", result.ClonedCount, plural, result.NextMonth.DisplayName()),
		ClonedCount:   result.ClonedCount,
		NextMonthID:   result.NextMonth.ID,
		NextMonthName: result.NextMonth.DisplayName(),
	})
}
