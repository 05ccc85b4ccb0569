package http

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"eltimer/internal/core"
	"eltimer/internal/log"
	"eltimer/internal/session"
	"eltimer/internal/store"
)

type fakeSaver struct {
	saves  int
	last   core.State
	failed bool
}

func (f *fakeSaver) Save(ctx context.Context, state core.State, skipRemote bool) error {
	if f.failed {
		return context.DeadlineExceeded
	}
	f.saves++
	f.last = state
	return nil
}

func seedState(t *testing.T) core.State {
	t.Helper()
	state := core.DefaultState()
	state.Settings.DefaultHourPrice = 400
	state.Customers = []core.Customer{{ID: "c1", Name: "Jensen VVS"}}
	state.Projects = []core.Project{
		{ID: "p1", CustomerID: "c1", Title: "Badeværelse", HourPrice: 500, Status: core.StatusOpen},
		{ID: "p2", CustomerID: "c1", Title: "Køkken", Status: core.StatusFinished},
	}
	state.Times = []core.TimeEntry{
		{ID: "t1", ProjectID: "p1", Date: core.NewDate(2026, 1, 5), Hours: 4, UserID: "boss"},
		{ID: "t2", ProjectID: "p1", Date: core.NewDate(2026, 1, 6), Hours: 2, UserID: "worker"},
	}
	state.Materials = []core.Material{
		{ID: "m1", ProjectID: "p1", Name: "Kabel", Quantity: 2, UnitPrice: 100, Date: core.NewDate(2026, 1, 5)},
	}
	return state
}

func newTestServer(t *testing.T, sess session.Session) (*Server, *fakeSaver) {
	t.Helper()
	saver := &fakeSaver{}
	st := store.New(seedState(t))
	srv := NewServer(":0", st, saver, sess, log.New(slog.LevelError))
	t.Cleanup(func() { srv.limiter.stop() })
	return srv, saver
}

func adminSession() session.Session {
	return session.Session{UserID: "boss", Role: session.RoleAdmin}
}

func employeeSession() session.Session {
	return session.Session{UserID: "worker", Role: session.RoleEmployee}
}

func do(t *testing.T, srv *Server, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body == "" {
		reader = bytes.NewReader(nil)
	} else {
		reader = bytes.NewReader([]byte(body))
	}
	req := httptest.NewRequest(method, target, reader)
	rec := httptest.NewRecorder()
	srv.Server.Handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode response: %v (%s)", err, rec.Body.String())
	}
	return v
}

func TestCreateAndListCustomers(t *testing.T) {
	srv, saver := newTestServer(t, adminSession())

	rec := do(t, srv, "POST", "/api/customers", `{"name":"  Ny Kunde ","email":"ny@kunde.dk"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create = %d: %s", rec.Code, rec.Body.String())
	}
	created := decode[core.Customer](t, rec)
	if created.Name != "Ny Kunde" {
		t.Errorf("name not sanitized: %q", created.Name)
	}
	if saver.saves != 1 {
		t.Errorf("saves = %d, want 1", saver.saves)
	}

	rec = do(t, srv, "GET", "/api/customers", "")
	customers := decode[[]core.Customer](t, rec)
	if len(customers) != 2 {
		t.Errorf("customers = %d, want 2", len(customers))
	}
}

func TestCreateCustomerValidation(t *testing.T) {
	srv, saver := newTestServer(t, adminSession())

	rec := do(t, srv, "POST", "/api/customers", `{"name":"   "}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("blank name = %d, want 400", rec.Code)
	}
	rec = do(t, srv, "POST", "/api/customers", `{"name":"X","bogus":true}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown field = %d, want 400", rec.Code)
	}
	if saver.saves != 0 {
		t.Errorf("failed requests must not save, saves = %d", saver.saves)
	}
}

func TestEmployeeCatalogReadOnly(t *testing.T) {
	srv, _ := newTestServer(t, employeeSession())

	if rec := do(t, srv, "POST", "/api/customers", `{"name":"X"}`); rec.Code != http.StatusForbidden {
		t.Errorf("employee create customer = %d, want 403", rec.Code)
	}
	if rec := do(t, srv, "DELETE", "/api/projects/p1", ""); rec.Code != http.StatusForbidden {
		t.Errorf("employee delete project = %d, want 403", rec.Code)
	}
	if rec := do(t, srv, "POST", "/api/materials", `{}`); rec.Code != http.StatusForbidden {
		t.Errorf("employee create material = %d, want 403", rec.Code)
	}
	// Reading stays open.
	if rec := do(t, srv, "GET", "/api/projects", ""); rec.Code != http.StatusOK {
		t.Errorf("employee list projects = %d, want 200", rec.Code)
	}
	// Status flips are allowed for employees.
	if rec := do(t, srv, "POST", "/api/projects/p1/finish", ""); rec.Code != http.StatusOK {
		t.Errorf("employee finish project = %d, want 200", rec.Code)
	}
}

func TestDeleteCustomerCascades(t *testing.T) {
	srv, _ := newTestServer(t, adminSession())

	rec := do(t, srv, "DELETE", "/api/customers/c1", "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete = %d", rec.Code)
	}

	if projects := decode[[]core.Project](t, do(t, srv, "GET", "/api/projects", "")); len(projects) != 0 {
		t.Errorf("projects survived cascade: %+v", projects)
	}
	if times := decode[[]core.TimeEntry](t, do(t, srv, "GET", "/api/times", "")); len(times) != 0 {
		t.Errorf("time entries survived cascade: %+v", times)
	}
}

func TestProjectStatusTransitions(t *testing.T) {
	srv, _ := newTestServer(t, adminSession())

	if rec := do(t, srv, "POST", "/api/projects/p2/finish", ""); rec.Code != http.StatusConflict {
		t.Errorf("finish finished = %d, want 409", rec.Code)
	}
	if rec := do(t, srv, "POST", "/api/projects/p2/reopen", ""); rec.Code != http.StatusOK {
		t.Errorf("reopen finished = %d, want 200", rec.Code)
	}
	if rec := do(t, srv, "POST", "/api/projects/nope/finish", ""); rec.Code != http.StatusNotFound {
		t.Errorf("finish missing = %d, want 404", rec.Code)
	}
}

func TestCreateTimeEntryDerivesHours(t *testing.T) {
	srv, _ := newTestServer(t, adminSession())

	rec := do(t, srv, "POST", "/api/times",
		`{"projectId":"p1","date":"2026-02-02","start":"08:00","end":"16:30","breakMinutes":30}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create = %d: %s", rec.Code, rec.Body.String())
	}
	entry := decode[core.TimeEntry](t, rec)
	if entry.Hours != 8 {
		t.Errorf("hours = %v, want 8", entry.Hours)
	}
	if entry.UserID != "boss" {
		t.Errorf("userId = %q, want session user", entry.UserID)
	}
}

func TestCreateTimeEntryOnClosedProject(t *testing.T) {
	srv, _ := newTestServer(t, adminSession())

	rec := do(t, srv, "POST", "/api/times",
		`{"projectId":"p2","date":"2026-02-02","start":"08:00","end":"12:00"}`)
	if rec.Code != http.StatusConflict {
		t.Errorf("entry on finished project = %d, want 409", rec.Code)
	}
}

func TestEmployeeTimeEntryScoping(t *testing.T) {
	srv, _ := newTestServer(t, employeeSession())

	// Listing only shows the employee's own entries.
	times := decode[[]core.TimeEntry](t, do(t, srv, "GET", "/api/times", ""))
	if len(times) != 1 || times[0].UserID != "worker" {
		t.Errorf("employee sees %+v", times)
	}

	// Entries are always logged as the employee, whatever the body says.
	rec := do(t, srv, "POST", "/api/times",
		`{"projectId":"p1","date":"2026-02-02","start":"08:00","end":"12:00","userId":"boss"}`)
	entry := decode[core.TimeEntry](t, rec)
	if entry.UserID != "worker" {
		t.Errorf("employee entry recorded as %q", entry.UserID)
	}

	// Deleting someone else's entry is forbidden.
	if rec := do(t, srv, "DELETE", "/api/times/t1", ""); rec.Code != http.StatusForbidden {
		t.Errorf("delete other's entry = %d, want 403", rec.Code)
	}
	if rec := do(t, srv, "DELETE", "/api/times/t2", ""); rec.Code != http.StatusNoContent {
		t.Errorf("delete own entry = %d, want 204", rec.Code)
	}
}

func TestGenerateInvoiceFlow(t *testing.T) {
	srv, _ := newTestServer(t, adminSession())

	// Open projects cannot be invoiced.
	rec := do(t, srv, "POST", "/api/invoices", `{"projectId":"p1","date":"2026-02-10"}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("invoice open project = %d, want 409", rec.Code)
	}

	rec = do(t, srv, "POST", "/api/invoices", `{"projectId":"p2","date":"2026-02-10"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("invoice finished project = %d: %s", rec.Code, rec.Body.String())
	}
	invoice := decode[core.Invoice](t, rec)
	if invoice.Number != 1 {
		t.Errorf("number = %d, want 1", invoice.Number)
	}

	detail := do(t, srv, "GET", "/api/invoices/"+invoice.ID, "")
	if detail.Code != http.StatusOK {
		t.Errorf("detail = %d", detail.Code)
	}
	if rec := do(t, srv, "GET", "/api/invoices/nope", ""); rec.Code != http.StatusNotFound {
		t.Errorf("missing detail = %d, want 404", rec.Code)
	}
}

func TestReportEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, adminSession())

	rec := do(t, srv, "GET", "/api/report?from=2026-01-01&to=2026-01-31", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("report = %d", rec.Code)
	}
	var report struct {
		Customers []struct {
			Customer core.Customer `json:"customer"`
		} `json:"customers"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &report); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if len(report.Customers) != 1 {
		t.Errorf("customer sections = %d, want 1", len(report.Customers))
	}

	if rec := do(t, srv, "GET", "/api/report?from=bogus", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("bad date = %d, want 400", rec.Code)
	}
}

func TestSettingsRoundTrip(t *testing.T) {
	srv, _ := newTestServer(t, adminSession())

	rec := do(t, srv, "PUT", "/api/settings",
		`{"companyName":"El-Timer ApS","cvr":"12345678","address":"Gade 1","defaultHourPrice":450,"vatRate":25}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("update = %d: %s", rec.Code, rec.Body.String())
	}

	settings := decode[core.Settings](t, do(t, srv, "GET", "/api/settings", ""))
	if settings.CompanyName != "El-Timer ApS" || settings.DefaultHourPrice != 450 {
		t.Errorf("settings = %+v", settings)
	}
}

func TestExportImport(t *testing.T) {
	srv, saver := newTestServer(t, adminSession())

	rec := do(t, srv, "GET", "/api/backup", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("export = %d", rec.Code)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "eltimer_backup_") {
		t.Errorf("Content-Disposition = %q", cd)
	}

	// Import requires explicit confirmation.
	if rec := do(t, srv, "POST", "/api/restore", rec.Body.String()); rec.Code != http.StatusBadRequest {
		t.Errorf("unconfirmed import = %d, want 400", rec.Code)
	}

	body := `{"customers":[{"id":"x","name":"Imported"}]}`
	rec = do(t, srv, "POST", "/api/restore?confirm=true", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("import = %d: %s", rec.Code, rec.Body.String())
	}

	customers := decode[[]core.Customer](t, do(t, srv, "GET", "/api/customers", ""))
	if len(customers) != 1 || customers[0].Name != "Imported" {
		t.Errorf("customers after import = %+v", customers)
	}
	if saver.saves == 0 {
		t.Error("import did not persist")
	}
}

func TestSaveFailureIsServerError(t *testing.T) {
	srv, saver := newTestServer(t, adminSession())
	saver.failed = true

	rec := do(t, srv, "POST", "/api/customers", `{"name":"X"}`)
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("create with dead saver = %d, want 500", rec.Code)
	}
}

func TestDashboardAndHealth(t *testing.T) {
	srv, _ := newTestServer(t, adminSession())

	dash := decode[dashboardResponse](t, do(t, srv, "GET", "/api/dashboard", ""))
	if dash.Customers != 1 || dash.Projects != 2 || dash.OpenProjects != 1 {
		t.Errorf("dashboard = %+v", dash)
	}
	if len(dash.RecentEntries) != 2 {
		t.Errorf("recent entries = %d, want 2", len(dash.RecentEntries))
	}

	if rec := do(t, srv, "GET", "/healthz", ""); rec.Code != http.StatusOK {
		t.Errorf("healthz = %d", rec.Code)
	}
}

func TestDeleteMaterial(t *testing.T) {
	srv, saver := newTestServer(t, adminSession())

	rec := do(t, srv, "DELETE", "/api/materials/nope", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("delete missing material = %d, want 404", rec.Code)
	}
	if saver.saves != 0 {
		t.Errorf("missing material triggered %d saves", saver.saves)
	}

	rec = do(t, srv, "DELETE", "/api/materials/m1", "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete material = %d", rec.Code)
	}
	if saver.saves != 1 {
		t.Errorf("saves = %d, want 1", saver.saves)
	}
	if materials := decode[[]core.Material](t, do(t, srv, "GET", "/api/materials", "")); len(materials) != 0 {
		t.Errorf("materials after delete = %+v", materials)
	}
}

func TestExportDuringStatusFlips(t *testing.T) {
	srv, _ := newTestServer(t, adminSession())

	// Exports snapshot the same state that status flips mutate in place,
	// so the two must interleave without tearing.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 15; i++ {
			do(t, srv, "POST", "/api/projects/p1/finish", "")
			do(t, srv, "POST", "/api/projects/p1/reopen", "")
		}
	}()

	for i := 0; i < 25; i++ {
		if rec := do(t, srv, "GET", "/api/backup", ""); rec.Code != http.StatusOK {
			t.Errorf("export = %d", rec.Code)
		}
	}
	<-done
}
