// Package store holds the normalized record collections as the single source
// of truth for a running session. All reads are in-memory scans; the data
// scale never justifies indexing. No operation here performs I/O — callers
// persist through the gateway after every mutation.
package store

import (
	"errors"
	"sort"

	"eltimer/internal/core"
)

var (
	ErrProjectNotOpen    = errors.New("project is not open")
	ErrProjectInvoiced   = errors.New("project is already invoiced")
	ErrInvalidTransition = errors.New("invalid project status transition")
)

// Store wraps a core.State. It is not synchronized: the system has exactly
// one active mutator (the current session), and the HTTP layer serializes
// access.
type Store struct {
	state core.State
}

func New(state core.State) *Store {
	return &Store{state: state}
}

// State returns the current state value for serialization. The slices are
// shared; callers must not mutate them.
func (s *Store) State() core.State {
	return s.state
}

// CommitRevision bumps the monotonic revision stamp and returns the state to
// be persisted. Called once per save.
func (s *Store) CommitRevision() core.State {
	s.state.Revision++
	return s.state
}

// Replace swaps in a whole new state, e.g. after a backup import.
func (s *Store) Replace(state core.State) {
	s.state = state
}

// Counts reports collection sizes for the dashboard.
func (s *Store) Counts() (customers, projects, times, materials int) {
	return len(s.state.Customers), len(s.state.Projects), len(s.state.Times), len(s.state.Materials)
}

// --- customers ---

func (s *Store) Customers() []core.Customer {
	return s.state.Customers
}

func (s *Store) CustomerByID(id string) (core.Customer, bool) {
	for _, c := range s.state.Customers {
		if c.ID == id {
			return c, true
		}
	}
	return core.Customer{}, false
}

func (s *Store) AddCustomer(c core.Customer) error {
	if err := c.Validate(); err != nil {
		return err
	}
	s.state.Customers = append(s.state.Customers, c)
	return nil
}

// DeleteCustomer removes the customer, every project that referenced it, and
// every time entry and material that belonged to those projects. Rows of
// other projects are untouched.
func (s *Store) DeleteCustomer(id string) {
	projects := s.state.Projects[:0:0]
	for _, p := range s.state.Projects {
		if p.CustomerID != id {
			projects = append(projects, p)
		}
	}
	s.state.Projects = projects

	times := s.state.Times[:0:0]
	for _, t := range s.state.Times {
		if _, ok := s.ProjectByID(t.ProjectID); ok {
			times = append(times, t)
		}
	}
	s.state.Times = times

	materials := s.state.Materials[:0:0]
	for _, m := range s.state.Materials {
		if _, ok := s.ProjectByID(m.ProjectID); ok {
			materials = append(materials, m)
		}
	}
	s.state.Materials = materials

	customers := s.state.Customers[:0:0]
	for _, c := range s.state.Customers {
		if c.ID != id {
			customers = append(customers, c)
		}
	}
	s.state.Customers = customers
}

// --- projects ---

func (s *Store) Projects() []core.Project {
	return s.state.Projects
}

func (s *Store) ProjectByID(id string) (core.Project, bool) {
	for _, p := range s.state.Projects {
		if p.ID == id {
			return p, true
		}
	}
	return core.Project{}, false
}

func (s *Store) ProjectsByStatus(status core.ProjectStatus) []core.Project {
	var out []core.Project
	for _, p := range s.state.Projects {
		if p.Status == status {
			out = append(out, p)
		}
	}
	return out
}

func (s *Store) ProjectsByCustomer(customerID string) []core.Project {
	var out []core.Project
	for _, p := range s.state.Projects {
		if p.CustomerID == customerID {
			out = append(out, p)
		}
	}
	return out
}

// AddProject creates the project as open. The customer must exist at
// creation time; a negative hour price is coerced to zero so the tenant
// default applies.
func (s *Store) AddProject(p core.Project) error {
	if _, ok := s.CustomerByID(p.CustomerID); !ok {
		return core.ErrCustomerNotFound
	}
	if p.HourPrice < 0 {
		p.HourPrice = 0
	}
	p.Status = core.StatusOpen
	s.state.Projects = append(s.state.Projects, p)
	return nil
}

// DeleteProject cascades to the project's time entries and materials.
func (s *Store) DeleteProject(id string) {
	projects := s.state.Projects[:0:0]
	for _, p := range s.state.Projects {
		if p.ID != id {
			projects = append(projects, p)
		}
	}
	s.state.Projects = projects

	times := s.state.Times[:0:0]
	for _, t := range s.state.Times {
		if t.ProjectID != id {
			times = append(times, t)
		}
	}
	s.state.Times = times

	materials := s.state.Materials[:0:0]
	for _, m := range s.state.Materials {
		if m.ProjectID != id {
			materials = append(materials, m)
		}
	}
	s.state.Materials = materials
}

func (s *Store) FinishProject(id string) error {
	return s.setStatus(id, core.StatusOpen, core.StatusFinished)
}

// ReopenProject moves a finished project back to open. An invoiced project
// cannot be reopened.
func (s *Store) ReopenProject(id string) error {
	return s.setStatus(id, core.StatusFinished, core.StatusOpen)
}

// MarkInvoiced flips a project to invoiced as a side effect of invoice
// generation. There is no reverse operation.
func (s *Store) MarkInvoiced(id string) error {
	for i := range s.state.Projects {
		if s.state.Projects[i].ID == id {
			s.state.Projects[i].Status = core.StatusInvoiced
			return nil
		}
	}
	return core.ErrProjectNotFound
}

func (s *Store) setStatus(id string, from, to core.ProjectStatus) error {
	for i := range s.state.Projects {
		if s.state.Projects[i].ID != id {
			continue
		}
		if s.state.Projects[i].Status == core.StatusInvoiced {
			return ErrProjectInvoiced
		}
		if s.state.Projects[i].Status != from {
			return ErrInvalidTransition
		}
		s.state.Projects[i].Status = to
		return nil
	}
	return core.ErrProjectNotFound
}

// --- time entries ---

// AddTimeEntry derives the billable hours from the entry's start/end/break
// and appends it. Entries may only be created against open projects; once
// created they are immutable except via deletion.
func (s *Store) AddTimeEntry(t core.TimeEntry) (core.TimeEntry, error) {
	p, ok := s.ProjectByID(t.ProjectID)
	if !ok {
		return core.TimeEntry{}, core.ErrProjectNotFound
	}
	if p.Status != core.StatusOpen {
		return core.TimeEntry{}, ErrProjectNotOpen
	}
	hours, err := core.ComputeHours(t.Start, t.End, t.BreakMinutes)
	if err != nil {
		return core.TimeEntry{}, err
	}
	t.Hours = hours
	s.state.Times = append(s.state.Times, t)
	return t, nil
}

func (s *Store) TimeEntryByID(id string) (core.TimeEntry, bool) {
	for _, t := range s.state.Times {
		if t.ID == id {
			return t, true
		}
	}
	return core.TimeEntry{}, false
}

func (s *Store) DeleteTimeEntry(id string) {
	times := s.state.Times[:0:0]
	for _, t := range s.state.Times {
		if t.ID != id {
			times = append(times, t)
		}
	}
	s.state.Times = times
}

func (s *Store) TimeEntriesByProject(projectID string) []core.TimeEntry {
	var out []core.TimeEntry
	for _, t := range s.state.Times {
		if t.ProjectID == projectID {
			out = append(out, t)
		}
	}
	return out
}

// TimeEntries returns entries matching the filter in insertion order. A nil
// filter matches everything.
func (s *Store) TimeEntries(keep func(core.TimeEntry) bool) []core.TimeEntry {
	var out []core.TimeEntry
	for _, t := range s.state.Times {
		if keep == nil || keep(t) {
			out = append(out, t)
		}
	}
	return out
}

// RecentTimeEntries returns up to limit entries visible to the filter, newest
// date first, for the dashboard.
func (s *Store) RecentTimeEntries(limit int, keep func(core.TimeEntry) bool) []core.TimeEntry {
	entries := s.TimeEntries(keep)
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[j].Date.Time.Before(entries[i].Date.Time)
	})
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries
}

// --- materials ---

func (s *Store) Materials() []core.Material {
	return s.state.Materials
}

func (s *Store) AddMaterial(m core.Material) error {
	if _, ok := s.ProjectByID(m.ProjectID); !ok {
		return core.ErrProjectNotFound
	}
	s.state.Materials = append(s.state.Materials, m)
	return nil
}

func (s *Store) MaterialByID(id string) (core.Material, bool) {
	for _, m := range s.state.Materials {
		if m.ID == id {
			return m, true
		}
	}
	return core.Material{}, false
}

func (s *Store) DeleteMaterial(id string) {
	materials := s.state.Materials[:0:0]
	for _, m := range s.state.Materials {
		if m.ID != id {
			materials = append(materials, m)
		}
	}
	s.state.Materials = materials
}

func (s *Store) MaterialsByProject(projectID string) []core.Material {
	var out []core.Material
	for _, m := range s.state.Materials {
		if m.ProjectID == projectID {
			out = append(out, m)
		}
	}
	return out
}

// --- invoices ---

func (s *Store) Invoices() []core.Invoice {
	return s.state.Invoices
}

func (s *Store) InvoiceByID(id string) (core.Invoice, bool) {
	for _, inv := range s.state.Invoices {
		if inv.ID == id {
			return inv, true
		}
	}
	return core.Invoice{}, false
}

// AppendInvoice allocates the next invoice number and appends the invoice
// built from it as a single step, so a failed build never burns a number and
// no two invoices share one.
func (s *Store) AppendInvoice(build func(number int) core.Invoice) core.Invoice {
	inv := build(s.state.NextInvoiceNumber)
	s.state.NextInvoiceNumber++
	s.state.Invoices = append(s.state.Invoices, inv)
	return inv
}

// --- settings ---

func (s *Store) Settings() core.Settings {
	return s.state.Settings
}

func (s *Store) UpdateSettings(settings core.Settings) {
	s.state.Settings = settings
}
