package http

import (
	"errors"
	"net/http"

	"eltimer/internal/billing"
	"eltimer/internal/core"
	"eltimer/internal/log"
)

func (s *Server) handleListInvoices(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	invoices := s.store.Invoices()
	s.mu.RUnlock()
	writeJSON(w, http.StatusOK, invoices)
}

func (s *Server) handleInvoiceDetail(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	s.mu.RLock()
	defer s.mu.RUnlock()
	invoice, ok := s.store.InvoiceByID(id)
	if !ok {
		writeError(w, http.StatusNotFound, "invoice not found")
		return
	}
	writeJSON(w, http.StatusOK, billing.InvoiceDetails(s.store, invoice))
}

type generateInvoiceRequest struct {
	ProjectID string `json:"projectId"`
	Date      string `json:"date"`
}

func (s *Server) handleGenerateInvoice(w http.ResponseWriter, r *http.Request) {
	var req generateInvoiceRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	date := core.Today()
	if req.Date != "" {
		parsed, err := core.ParseDate(req.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid date")
			return
		}
		date = parsed
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	invoice, err := billing.GenerateInvoice(s.store, req.ProjectID, date)
	if err != nil {
		switch {
		case errors.Is(err, core.ErrProjectNotFound):
			writeError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, billing.ErrProjectNotFinished):
			writeError(w, http.StatusConflict, err.Error())
		default:
			writeError(w, http.StatusBadRequest, err.Error())
		}
		return
	}
	if !s.persist(w, r) {
		return
	}

	s.logger.InfoContext(r.Context(), "invoice generated",
		log.FieldProjectID, req.ProjectID,
		log.FieldInvoiceNo, invoice.Number)
	writeJSON(w, http.StatusCreated, invoice)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	start, err := queryDate(r, "from")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid from date")
		return
	}
	end, err := queryDate(r, "to")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid to date")
		return
	}
	// Absent bounds mean an open-ended range.
	if start.IsZero() {
		start = core.NewDate(1, 1, 1)
	}
	if end.IsZero() {
		end = core.NewDate(9999, 12, 31)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	customerIDs := queryList(r, "customers")
	if len(customerIDs) == 0 {
		for _, c := range s.store.Customers() {
			customerIDs = append(customerIDs, c.ID)
		}
	}

	report := billing.PeriodReport(s.store, s.sess.EntryFilter(), customerIDs, start, end)
	writeJSON(w, http.StatusOK, report)
}
