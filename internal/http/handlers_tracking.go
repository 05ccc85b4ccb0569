package http

import (
	"errors"
	"net/http"
	"strconv"

	"eltimer/internal/core"
	"eltimer/internal/store"
)

func (s *Server) handleListTimeEntries(w http.ResponseWriter, r *http.Request) {
	projectID := r.URL.Query().Get("projectId")
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	visible := s.sess.EntryFilter()
	keep := visible
	if projectID != "" {
		keep = func(t core.TimeEntry) bool {
			return t.ProjectID == projectID && visible(t)
		}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if limit > 0 {
		writeJSON(w, http.StatusOK, s.store.RecentTimeEntries(limit, keep))
		return
	}
	writeJSON(w, http.StatusOK, s.store.TimeEntries(keep))
}

type timeEntryRequest struct {
	ProjectID    string  `json:"projectId"`
	Date         string  `json:"date"`
	Start        string  `json:"start"`
	End          string  `json:"end"`
	BreakMinutes float64 `json:"breakMinutes"`
	Description  string  `json:"description"`
	UserID       string  `json:"userId"`
}

func (s *Server) handleCreateTimeEntry(w http.ResponseWriter, r *http.Request) {
	var req timeEntryRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	date, err := core.ParseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date")
		return
	}

	// Employees always log hours as themselves; admins may record for
	// another user.
	userID := req.UserID
	if !s.sess.IsAdmin() || userID == "" {
		userID = s.sess.UserID
	}

	entry := core.TimeEntry{
		ID:           core.NewID(),
		ProjectID:    req.ProjectID,
		Date:         date,
		Start:        req.Start,
		End:          req.End,
		BreakMinutes: req.BreakMinutes,
		Description:  sanitize(req.Description),
		UserID:       userID,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	created, err := s.store.AddTimeEntry(entry)
	if err != nil {
		switch {
		case errors.Is(err, core.ErrProjectNotFound):
			writeError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, store.ErrProjectNotOpen):
			writeError(w, http.StatusConflict, err.Error())
		default:
			writeError(w, http.StatusBadRequest, err.Error())
		}
		return
	}
	if !s.persist(w, r) {
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleDeleteTimeEntry(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.store.TimeEntryByID(id)
	if !ok {
		writeError(w, http.StatusNotFound, "time entry not found")
		return
	}
	if !s.sess.CanViewEntry(entry) {
		writeError(w, http.StatusForbidden, "not your time entry")
		return
	}
	s.store.DeleteTimeEntry(id)
	if !s.persist(w, r) {
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListMaterials(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if projectID := r.URL.Query().Get("projectId"); projectID != "" {
		writeJSON(w, http.StatusOK, s.store.MaterialsByProject(projectID))
		return
	}
	writeJSON(w, http.StatusOK, s.store.Materials())
}

type materialRequest struct {
	ProjectID string  `json:"projectId"`
	Name      string  `json:"name"`
	Quantity  float64 `json:"quantity"`
	UnitPrice float64 `json:"unitPrice"`
	Date      string  `json:"date"`
}

func (s *Server) handleCreateMaterial(w http.ResponseWriter, r *http.Request) {
	var req materialRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	date, err := core.ParseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date")
		return
	}

	material := core.Material{
		ID:        core.NewID(),
		ProjectID: req.ProjectID,
		Name:      sanitize(req.Name),
		Quantity:  req.Quantity,
		UnitPrice: req.UnitPrice,
		Date:      date,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.store.AddMaterial(material); err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, core.ErrProjectNotFound) {
			status = http.StatusNotFound
		}
		writeError(w, status, err.Error())
		return
	}
	if !s.persist(w, r) {
		return
	}
	writeJSON(w, http.StatusCreated, material)
}

func (s *Server) handleDeleteMaterial(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.store.MaterialByID(id); !ok {
		writeError(w, http.StatusNotFound, "material not found")
		return
	}
	s.store.DeleteMaterial(id)
	if !s.persist(w, r) {
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type dashboardResponse struct {
	Customers     int              `json:"customers"`
	Projects      int              `json:"projects"`
	TimeEntries   int              `json:"timeEntries"`
	Materials     int              `json:"materials"`
	OpenProjects  int              `json:"openProjects"`
	RecentEntries []core.TimeEntry `json:"recentEntries"`
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	customers, projects, times, materials := s.store.Counts()
	resp := dashboardResponse{
		Customers:     customers,
		Projects:      projects,
		TimeEntries:   times,
		Materials:     materials,
		OpenProjects:  len(s.store.ProjectsByStatus(core.StatusOpen)),
		RecentEntries: s.store.RecentTimeEntries(5, s.sess.EntryFilter()),
	}
	writeJSON(w, http.StatusOK, resp)
}
