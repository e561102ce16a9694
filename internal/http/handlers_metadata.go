package http

import (
	"net/http"
	"strings"

	"bilancio/internal/core"
)

type metadataRequest struct {
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
}

type metadataResponse struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
}

func (req metadataRequest) trimmed() (string, string) {
	return strings.TrimSpace(req.Name), strings.TrimSpace(req.Color)
}

// Categories

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := s.metadata.ListCategories(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	out := make([]metadataResponse, 0, len(categories))
	for _, c := range categories {
		out = append(out, metadataResponse{ID: c.ID, Name: c.Name, Color: c.Color})
	}
	writeJSON(w, r, http.StatusOK, out)
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var req metadataRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	name, color := req.trimmed()
	category := core.Category{Name: name, Color: color}
	if err := category.Validate(); err != nil {
		writeError(w, r, err)
		return
	}

	created, err := s.metadata.CreateCategory(r.Context(), category)
	if err != nil {
		writeError(w, r, err)
		return
	}

	s.invalidate("metadata", 0)
	writeJSON(w, r, http.StatusCreated, metadataResponse{ID: created.ID, Name: created.Name, Color: created.Color})
}

func (s *Server) handleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req metadataRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	name, color := req.trimmed()
	category := core.Category{ID: id, Name: name, Color: color}
	if err := category.Validate(); err != nil {
		writeError(w, r, err)
		return
	}

	if err := s.metadata.UpdateCategory(r.Context(), category); err != nil {
		writeError(w, r, err)
		return
	}

	s.invalidate("metadata", 0)
	writeJSON(w, r, http.StatusOK, metadataResponse{ID: id, Name: name, Color: color})
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := s.metadata.DeleteCategory(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}

	s.invalidate("metadata", 0)
	w.WriteHeader(http.StatusNoContent)
}

// Periods

func (s *Server) handleListPeriods(w http.ResponseWriter, r *http.Request) {
	periods, err := s.metadata.ListPeriods(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	out := make([]metadataResponse, 0, len(periods))
	for _, p := range periods {
		out = append(out, metadataResponse{ID: p.ID, Name: p.Name, Color: p.Color})
	}
	writeJSON(w, r, http.StatusOK, out)
}

func (s *Server) handleCreatePeriod(w http.ResponseWriter, r *http.Request) {
	var req metadataRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	name, color := req.trimmed()
	period := core.Period{Name: name, Color: color}
	if err := period.Validate(); err != nil {
		writeError(w, r, err)
		return
	}

	created, err := s.metadata.CreatePeriod(r.Context(), period)
	if err != nil {
		writeError(w, r, err)
		return
	}

	s.invalidate("metadata", 0)
	writeJSON(w, r, http.StatusCreated, metadataResponse{ID: created.ID, Name: created.Name, Color: created.Color})
}

func (s *Server) handleUpdatePeriod(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req metadataRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	name, color := req.trimmed()
	period := core.Period{ID: id, Name: name, Color: color}
	if err := period.Validate(); err != nil {
		writeError(w, r, err)
		return
	}

	if err := s.metadata.UpdatePeriod(r.Context(), period); err != nil {
		writeError(w, r, err)
		return
	}

	s.invalidate("metadata", 0)
	writeJSON(w, r, http.StatusOK, metadataResponse{ID: id, Name: name, Color: color})
}

func (s *Server) handleDeletePeriod(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := s.metadata.DeletePeriod(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}

	s.invalidate("metadata", 0)
	w.WriteHeader(http.StatusNoContent)
}

// Income types

func (s *Server) handleListIncomeTypes(w http.ResponseWriter, r *http.Request) {
	types, err := s.metadata.ListIncomeTypes(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	out := make([]metadataResponse, 0, len(types))
	for _, it := range types {
		out = append(out, metadataResponse{ID: it.ID, Name: it.Name, Color: it.Color})
	}
	writeJSON(w, r, http.StatusOK, out)
}

func (s *Server) handleCreateIncomeType(w http.ResponseWriter, r *http.Request) {
	var req metadataRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	name, color := req.trimmed()
	incomeType := core.IncomeType{Name: name, Color: color}
	if err := incomeType.Validate(); err != nil {
		writeError(w, r, err)
		return
	}

	created, err := s.metadata.CreateIncomeType(r.Context(), incomeType)
	if err != nil {
		writeError(w, r, err)
		return
	}

	s.invalidate("metadata", 0)
	writeJSON(w, r, http.StatusCreated, metadataResponse{ID: created.ID, Name: created.Name, Color: created.Color})
}

func (s *Server) handleUpdateIncomeType(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req metadataRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	name, color := req.trimmed()
	incomeType := core.IncomeType{ID: id, Name: name, Color: color}
	if err := incomeType.Validate(); err != nil {
		writeError(w, r, err)
		return
	}

	if err := s.metadata.UpdateIncomeType(r.Context(), incomeType); err != nil {
		writeError(w, r, err)
		return
	}

	s.invalidate("metadata", 0)
	writeJSON(w, r, http.StatusOK, metadataResponse{ID: id, Name: name, Color: color})
}

func (s *Server) handleDeleteIncomeType(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := s.metadata.DeleteIncomeType(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}

	s.invalidate("metadata", 0)
	w.WriteHeader(http.StatusNoContent)
}
