// Package billing is the aggregation engine: it turns a project's time and
// material records into invoice totals, and a customer selection plus date
// range into a grouped period report. It reads the record store and mutates
// it only to append a generated invoice and flip the project's status.
package billing

import (
	"errors"
	"fmt"

	"eltimer/internal/core"
	"eltimer/internal/store"
)

// ErrProjectNotFinished rejects generation for projects that were never
// marked finished. The app only offers invoicing for finished projects, and
// enforcing it here keeps after-the-fact time entries from being silently
// orphaned on a project invoiced too early.
var ErrProjectNotFinished = errors.New("project is not finished")

// GenerateInvoice bills the entire history of a finished project: every time
// entry at the project's effective hour rate plus every material line, with
// VAT from the tenant settings on top. The invoice number comes from the
// tenant counter, allocated and appended as one step, and the project is
// flipped to invoiced. The caller persists afterwards.
func GenerateInvoice(s *store.Store, projectID string, date core.Date) (core.Invoice, error) {
	project, ok := s.ProjectByID(projectID)
	if !ok {
		return core.Invoice{}, fmt.Errorf("generate invoice for %q: %w", projectID, core.ErrProjectNotFound)
	}
	if project.Status != core.StatusFinished {
		return core.Invoice{}, fmt.Errorf("generate invoice for %q: %w", projectID, ErrProjectNotFinished)
	}

	settings := s.Settings()
	rate := core.EffectiveHourRate(project, settings)

	var subtotal float64
	for _, t := range s.TimeEntriesByProject(project.ID) {
		subtotal += t.Hours * rate
	}
	for _, m := range s.MaterialsByProject(project.ID) {
		subtotal += m.Cost()
	}

	vat := subtotal * (settings.VATRate / 100)

	invoice := s.AppendInvoice(func(number int) core.Invoice {
		return core.Invoice{
			ID:        core.NewID(),
			Number:    number,
			ProjectID: project.ID,
			Date:      date,
			Subtotal:  subtotal,
			VAT:       vat,
			Total:     subtotal + vat,
		}
	})

	if err := s.MarkInvoiced(project.ID); err != nil {
		return invoice, fmt.Errorf("mark project invoiced: %w", err)
	}
	return invoice, nil
}

// TimeLine is a priced time entry row on the invoice detail view. The price
// uses the project's current effective rate; the invoice totals themselves
// stay frozen.
type TimeLine struct {
	Date        string  `json:"date"`
	Hours       float64 `json:"hours"`
	Description string  `json:"description,omitempty"`
	Price       float64 `json:"price"`
}

// MaterialLine is a material row on the invoice detail or report views.
type MaterialLine struct {
	Date      string  `json:"date"`
	Name      string  `json:"name"`
	Quantity  float64 `json:"quantity"`
	UnitPrice float64 `json:"unitPrice"`
	Cost      float64 `json:"cost"`
}

// InvoiceDetail bundles everything the invoice view renders. Customer and
// Project are nil when the referenced records have since been deleted; the
// view renders them blank.
type InvoiceDetail struct {
	Invoice   core.Invoice   `json:"invoice"`
	Customer  *core.Customer `json:"customer,omitempty"`
	Project   *core.Project  `json:"project,omitempty"`
	Times     []TimeLine     `json:"times"`
	Materials []MaterialLine `json:"materials"`
	VATRate   float64        `json:"vatRate"`
}

// InvoiceDetails assembles the detail view for a stored invoice.
func InvoiceDetails(s *store.Store, invoice core.Invoice) InvoiceDetail {
	detail := InvoiceDetail{
		Invoice: invoice,
		VATRate: s.Settings().VATRate,
	}

	project, ok := s.ProjectByID(invoice.ProjectID)
	if !ok {
		return detail
	}
	detail.Project = &project
	if customer, ok := s.CustomerByID(project.CustomerID); ok {
		detail.Customer = &customer
	}

	rate := core.EffectiveHourRate(project, s.Settings())
	for _, t := range s.TimeEntriesByProject(project.ID) {
		detail.Times = append(detail.Times, TimeLine{
			Date:        t.Date.ISO(),
			Hours:       t.Hours,
			Description: t.Description,
			Price:       t.Hours * rate,
		})
	}
	for _, m := range s.MaterialsByProject(project.ID) {
		detail.Materials = append(detail.Materials, MaterialLine{
			Date:      m.Date.ISO(),
			Name:      m.Name,
			Quantity:  m.Quantity,
			UnitPrice: m.UnitPrice,
			Cost:      m.Cost(),
		})
	}
	return detail
}
