package billing

import (
	"errors"
	"testing"

	"eltimer/internal/core"
	"eltimer/internal/store"
)

const epsilon = 0.0001

func almostEqual(a, b float64) bool {
	diff := a - b
	return diff < epsilon && diff > -epsilon
}

// acmeStore builds the worked example: customer Acme, project Rewire at 500/h,
// one 8-hour entry and one 300-cost material line, VAT 25%.
func acmeStore(t *testing.T) *store.Store {
	t.Helper()
	s := store.New(core.DefaultState())

	settings := s.Settings()
	settings.DefaultHourPrice = 400
	s.UpdateSettings(settings)

	if err := s.AddCustomer(core.Customer{ID: "c1", Name: "Acme"}); err != nil {
		t.Fatalf("AddCustomer: %v", err)
	}
	if err := s.AddProject(core.Project{ID: "p1", CustomerID: "c1", Title: "Rewire", HourPrice: 500}); err != nil {
		t.Fatalf("AddProject: %v", err)
	}
	if _, err := s.AddTimeEntry(core.TimeEntry{
		ID: "t1", ProjectID: "p1", Date: core.NewDate(2024, 1, 10),
		Start: "08:00", End: "16:30", BreakMinutes: 30, Description: "panel work",
	}); err != nil {
		t.Fatalf("AddTimeEntry: %v", err)
	}
	if err := s.AddMaterial(core.Material{
		ID: "m1", ProjectID: "p1", Name: "Cable", Quantity: 20, UnitPrice: 15,
		Date: core.NewDate(2024, 1, 10),
	}); err != nil {
		t.Fatalf("AddMaterial: %v", err)
	}
	return s
}

func TestGenerateInvoice(t *testing.T) {
	s := acmeStore(t)
	if err := s.FinishProject("p1"); err != nil {
		t.Fatalf("FinishProject: %v", err)
	}

	inv, err := GenerateInvoice(s, "p1", core.NewDate(2024, 2, 1))
	if err != nil {
		t.Fatalf("GenerateInvoice: %v", err)
	}

	// 8.0h × 500 + 20 × 15 = 4300; VAT 25% = 1075; total 5375.
	if !almostEqual(inv.Subtotal, 4300) {
		t.Errorf("Subtotal = %v, want 4300", inv.Subtotal)
	}
	if !almostEqual(inv.VAT, 1075) {
		t.Errorf("VAT = %v, want 1075", inv.VAT)
	}
	if !almostEqual(inv.Total, 5375) {
		t.Errorf("Total = %v, want 5375", inv.Total)
	}
	if inv.Number != 1 {
		t.Errorf("Number = %d, want 1", inv.Number)
	}

	p, _ := s.ProjectByID("p1")
	if p.Status != core.StatusInvoiced {
		t.Errorf("project status = %q, want invoiced", p.Status)
	}
}

func TestGenerateInvoiceUsesDefaultRate(t *testing.T) {
	s := acmeStore(t)
	if err := s.AddProject(core.Project{ID: "p2", CustomerID: "c1", Title: "Inspection"}); err != nil {
		t.Fatalf("AddProject: %v", err)
	}
	if _, err := s.AddTimeEntry(core.TimeEntry{
		ID: "t2", ProjectID: "p2", Date: core.NewDate(2024, 1, 12),
		Start: "08:00", End: "10:00",
	}); err != nil {
		t.Fatalf("AddTimeEntry: %v", err)
	}
	if err := s.FinishProject("p2"); err != nil {
		t.Fatalf("FinishProject: %v", err)
	}

	inv, err := GenerateInvoice(s, "p2", core.NewDate(2024, 2, 1))
	if err != nil {
		t.Fatalf("GenerateInvoice: %v", err)
	}
	// 2h at the tenant default of 400.
	if !almostEqual(inv.Subtotal, 800) {
		t.Errorf("Subtotal = %v, want 800", inv.Subtotal)
	}
}

func TestGenerateInvoicePreconditions(t *testing.T) {
	s := acmeStore(t)

	if _, err := GenerateInvoice(s, "missing", core.Today()); !errors.Is(err, core.ErrProjectNotFound) {
		t.Errorf("missing project: error = %v, want ErrProjectNotFound", err)
	}
	if _, err := GenerateInvoice(s, "p1", core.Today()); !errors.Is(err, ErrProjectNotFinished) {
		t.Errorf("open project: error = %v, want ErrProjectNotFinished", err)
	}

	// A failed generation must not burn an invoice number.
	if err := s.FinishProject("p1"); err != nil {
		t.Fatalf("FinishProject: %v", err)
	}
	inv, err := GenerateInvoice(s, "p1", core.Today())
	if err != nil {
		t.Fatalf("GenerateInvoice: %v", err)
	}
	if inv.Number != 1 {
		t.Errorf("Number = %d, want 1 despite earlier rejected attempts", inv.Number)
	}

	if _, err := GenerateInvoice(s, "p1", core.Today()); !errors.Is(err, ErrProjectNotFinished) {
		t.Errorf("re-invoicing an invoiced project: error = %v, want ErrProjectNotFinished", err)
	}
}

func TestInvoiceNumbersMonotonic(t *testing.T) {
	s := store.New(core.DefaultState())
	if err := s.AddCustomer(core.Customer{ID: "c1", Name: "Acme"}); err != nil {
		t.Fatalf("AddCustomer: %v", err)
	}

	for i := 1; i <= 4; i++ {
		id := core.NewID()
		if err := s.AddProject(core.Project{ID: id, CustomerID: "c1", Title: "Job", HourPrice: 100}); err != nil {
			t.Fatalf("AddProject: %v", err)
		}
		if err := s.FinishProject(id); err != nil {
			t.Fatalf("FinishProject: %v", err)
		}
		inv, err := GenerateInvoice(s, id, core.Today())
		if err != nil {
			t.Fatalf("GenerateInvoice: %v", err)
		}
		if inv.Number != i {
			t.Errorf("invoice %d got number %d, want strictly increasing with no gaps", i, inv.Number)
		}
	}
}

func TestInvoiceSnapshotImmutable(t *testing.T) {
	s := acmeStore(t)
	if err := s.FinishProject("p1"); err != nil {
		t.Fatalf("FinishProject: %v", err)
	}
	inv, err := GenerateInvoice(s, "p1", core.Today())
	if err != nil {
		t.Fatalf("GenerateInvoice: %v", err)
	}

	// Later source-data edits must not touch the stored totals.
	if err := s.AddMaterial(core.Material{ID: "m2", ProjectID: "p1", Name: "Breaker", Quantity: 5, UnitPrice: 100, Date: core.Today()}); err != nil {
		t.Fatalf("AddMaterial: %v", err)
	}
	s.DeleteTimeEntry("t1")
	settings := s.Settings()
	settings.VATRate = 10
	s.UpdateSettings(settings)

	stored, ok := s.InvoiceByID(inv.ID)
	if !ok {
		t.Fatal("invoice disappeared")
	}
	if !almostEqual(stored.Subtotal, 4300) || !almostEqual(stored.VAT, 1075) || !almostEqual(stored.Total, 5375) {
		t.Errorf("snapshot changed: %+v", stored)
	}
}

func TestInvoiceDetails(t *testing.T) {
	s := acmeStore(t)
	if err := s.FinishProject("p1"); err != nil {
		t.Fatalf("FinishProject: %v", err)
	}
	inv, err := GenerateInvoice(s, "p1", core.Today())
	if err != nil {
		t.Fatalf("GenerateInvoice: %v", err)
	}

	detail := InvoiceDetails(s, inv)
	if detail.Customer == nil || detail.Customer.Name != "Acme" {
		t.Errorf("customer = %+v, want Acme", detail.Customer)
	}
	if len(detail.Times) != 1 || !almostEqual(detail.Times[0].Price, 4000) {
		t.Errorf("time lines = %+v, want one line priced 4000", detail.Times)
	}
	if len(detail.Materials) != 1 || !almostEqual(detail.Materials[0].Cost, 300) {
		t.Errorf("material lines = %+v, want one line costing 300", detail.Materials)
	}

	// A deleted project renders blank, never fails.
	s.DeleteProject("p1")
	detail = InvoiceDetails(s, inv)
	if detail.Project != nil || detail.Customer != nil {
		t.Error("detail for orphaned invoice should have nil project and customer")
	}
}
