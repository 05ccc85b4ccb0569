// Package http exposes the application as a JSON API.
package http

import (
	"context"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"eltimer/internal/core"
	"eltimer/internal/log"
	"eltimer/internal/session"
	"eltimer/internal/store"
)

// Saver persists committed state. Satisfied by the persistence gateway.
type Saver interface {
	Save(ctx context.Context, state core.State, skipRemote bool) error
}

// Server owns the in-memory store and serializes access to it: reads
// share an RLock, every mutation takes the write lock, commits a
// revision and saves through the gateway before answering.
type Server struct {
	http.Server

	mu      sync.RWMutex
	store   *store.Store
	saver   Saver
	sess    session.Session
	logger  *log.Logger
	limiter *rateLimiter
}

func NewServer(addr string, st *store.Store, saver Saver, sess session.Session, logger *log.Logger) *Server {
	s := &Server{
		store:   st,
		saver:   saver,
		sess:    sess,
		logger:  logger.WithComponent(log.ComponentHTTP),
		limiter: newRateLimiter(),
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/customers", s.handleListCustomers)
	mux.HandleFunc("POST /api/customers", s.adminOnly(s.handleCreateCustomer))
	mux.HandleFunc("DELETE /api/customers/{id}", s.adminOnly(s.handleDeleteCustomer))

	mux.HandleFunc("GET /api/projects", s.handleListProjects)
	mux.HandleFunc("POST /api/projects", s.adminOnly(s.handleCreateProject))
	mux.HandleFunc("DELETE /api/projects/{id}", s.adminOnly(s.handleDeleteProject))
	// Employees may flip project status even though the catalog is
	// otherwise read-only for them.
	mux.HandleFunc("POST /api/projects/{id}/finish", s.handleFinishProject)
	mux.HandleFunc("POST /api/projects/{id}/reopen", s.handleReopenProject)

	mux.HandleFunc("GET /api/times", s.handleListTimeEntries)
	mux.HandleFunc("POST /api/times", s.handleCreateTimeEntry)
	mux.HandleFunc("DELETE /api/times/{id}", s.handleDeleteTimeEntry)

	mux.HandleFunc("GET /api/materials", s.handleListMaterials)
	mux.HandleFunc("POST /api/materials", s.adminOnly(s.handleCreateMaterial))
	mux.HandleFunc("DELETE /api/materials/{id}", s.adminOnly(s.handleDeleteMaterial))

	mux.HandleFunc("GET /api/invoices", s.handleListInvoices)
	mux.HandleFunc("GET /api/invoices/{id}", s.handleInvoiceDetail)
	mux.HandleFunc("POST /api/invoices", s.adminOnly(s.handleGenerateInvoice))

	mux.HandleFunc("GET /api/report", s.handleReport)

	mux.HandleFunc("GET /api/settings", s.handleGetSettings)
	mux.HandleFunc("PUT /api/settings", s.adminOnly(s.handleUpdateSettings))

	mux.HandleFunc("GET /api/dashboard", s.handleDashboard)
	mux.HandleFunc("GET /api/session", s.handleSession)

	mux.HandleFunc("GET /api/backup", s.adminOnly(s.handleExport))
	mux.HandleFunc("POST /api/restore", s.adminOnly(s.handleImport))

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())

	var handler http.Handler = mux
	handler = s.rateLimit(handler)
	handler = log.Middleware(logger)(handler)

	s.Server = http.Server{
		Addr:    addr,
		Handler: handler,
	}
	return s
}

// adminOnly rejects mutations from employee sessions.
func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.sess.IsAdmin() {
			writeError(w, http.StatusForbidden, "admin role required")
			return
		}
		next(w, r)
	}
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.allow(extractClientIP(r)) {
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// persist commits a revision and writes it through the gateway. Called
// with the write lock held. A failed local save is a hard error: the
// client must know its change did not stick.
func (s *Server) persist(w http.ResponseWriter, r *http.Request) bool {
	state := s.store.CommitRevision()
	if err := s.saver.Save(r.Context(), state, false); err != nil {
		s.logger.ErrorContext(r.Context(), "save failed",
			log.FieldRevision, state.Revision,
			log.FieldError, err.Error())
		writeError(w, http.StatusInternalServerError, "saving state failed")
		return false
	}
	return true
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.limiter.stop()
	return s.Server.Shutdown(ctx)
}
