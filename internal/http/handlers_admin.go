package http

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"eltimer/internal/backup"
	"eltimer/internal/core"
	"eltimer/internal/log"
)

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	settings := s.store.Settings()
	s.mu.RUnlock()
	writeJSON(w, http.StatusOK, settings)
}

func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var settings core.Settings
	if err := decodeBody(r, &settings); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	settings.CompanyName = sanitize(settings.CompanyName)
	settings.TaxID = sanitize(settings.TaxID)
	settings.Address = sanitize(settings.Address)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.store.UpdateSettings(settings)
	if !s.persist(w, r) {
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"userId":    s.sess.UserID,
		"companyId": s.sess.CompanyID,
		"role":      s.sess.Role,
		"scope":     s.sess.RemoteScope(),
	})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	// Marshal while holding the read lock: the state copy shares its
	// backing arrays with the store, and status flips mutate projects
	// in place under the write lock.
	s.mu.RLock()
	raw, err := backup.Export(s.store.State())
	s.mu.RUnlock()

	if err != nil {
		writeError(w, http.StatusInternalServerError, "export failed")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", backup.Filename(time.Now())))
	w.WriteHeader(http.StatusOK)
	w.Write(raw)
}

// handleImport replaces the entire state with an uploaded backup. The
// confirm flag is mandatory since this destroys the current data.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("confirm") != "true" {
		writeError(w, http.StatusBadRequest, "import replaces all data, pass confirm=true")
		return
	}

	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 32<<20))
	if err != nil {
		writeError(w, http.StatusBadRequest, "reading body failed")
		return
	}

	state, err := backup.Import(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid backup document")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.store.Replace(state)
	if !s.persist(w, r) {
		return
	}

	s.logger.InfoContext(r.Context(), "backup imported", log.FieldRevision, state.Revision)
	customers, projects, times, materials := s.store.Counts()
	writeJSON(w, http.StatusOK, map[string]int{
		"customers":   customers,
		"projects":    projects,
		"timeEntries": times,
		"materials":   materials,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}
