package http

import (
	"errors"
	"net/http"

	"eltimer/internal/core"
	"eltimer/internal/store"
)

func (s *Server) handleListCustomers(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	customers := s.store.Customers()
	s.mu.RUnlock()
	writeJSON(w, http.StatusOK, customers)
}

type customerRequest struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
}

func (s *Server) handleCreateCustomer(w http.ResponseWriter, r *http.Request) {
	var req customerRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	customer := core.Customer{
		ID:      core.NewID(),
		Name:    sanitize(req.Name),
		Address: sanitize(req.Address),
		Email:   sanitize(req.Email),
		Phone:   sanitize(req.Phone),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.store.AddCustomer(customer); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !s.persist(w, r) {
		return
	}
	writeJSON(w, http.StatusCreated, customer)
}

func (s *Server) handleDeleteCustomer(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.store.CustomerByID(id); !ok {
		writeError(w, http.StatusNotFound, "customer not found")
		return
	}
	s.store.DeleteCustomer(id)
	if !s.persist(w, r) {
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if customerID := r.URL.Query().Get("customerId"); customerID != "" {
		writeJSON(w, http.StatusOK, s.store.ProjectsByCustomer(customerID))
		return
	}
	if status := r.URL.Query().Get("status"); status != "" {
		writeJSON(w, http.StatusOK, s.store.ProjectsByStatus(core.ProjectStatus(status)))
		return
	}
	writeJSON(w, http.StatusOK, s.store.Projects())
}

type projectRequest struct {
	CustomerID  string  `json:"customerId"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	HourPrice   float64 `json:"hourPrice"`
}

func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var req projectRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	project := core.Project{
		ID:          core.NewID(),
		CustomerID:  req.CustomerID,
		Title:       sanitize(req.Title),
		Description: sanitize(req.Description),
		HourPrice:   req.HourPrice,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.store.AddProject(project); err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, core.ErrCustomerNotFound) {
			status = http.StatusNotFound
		}
		writeError(w, status, err.Error())
		return
	}
	created, _ := s.store.ProjectByID(project.ID)
	if !s.persist(w, r) {
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.store.ProjectByID(id); !ok {
		writeError(w, http.StatusNotFound, "project not found")
		return
	}
	s.store.DeleteProject(id)
	if !s.persist(w, r) {
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleFinishProject(w http.ResponseWriter, r *http.Request) {
	s.flipStatus(w, r, s.store.FinishProject)
}

func (s *Server) handleReopenProject(w http.ResponseWriter, r *http.Request) {
	s.flipStatus(w, r, s.store.ReopenProject)
}

func (s *Server) flipStatus(w http.ResponseWriter, r *http.Request, flip func(string) error) {
	id := r.PathValue("id")

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := flip(id); err != nil {
		switch {
		case errors.Is(err, core.ErrProjectNotFound):
			writeError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, store.ErrProjectInvoiced), errors.Is(err, store.ErrInvalidTransition):
			writeError(w, http.StatusConflict, err.Error())
		default:
			writeError(w, http.StatusBadRequest, err.Error())
		}
		return
	}
	project, _ := s.store.ProjectByID(id)
	if !s.persist(w, r) {
		return
	}
	writeJSON(w, http.StatusOK, project)
}
