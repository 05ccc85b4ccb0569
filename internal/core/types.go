package core

import (
	"errors"
	"strings"

	"github.com/google/uuid"
)

// ProjectStatus tracks a project through its billing lifecycle.
type ProjectStatus string

const (
	StatusOpen     ProjectStatus = "open"
	StatusFinished ProjectStatus = "finished"
	StatusInvoiced ProjectStatus = "invoiced"
)

type (
	Customer struct {
		ID      string `json:"id"`
		Name    string `json:"name"`
		Address string `json:"address,omitempty"`
		Email   string `json:"email,omitempty"`
		Phone   string `json:"phone,omitempty"`
	}

	Project struct {
		ID          string        `json:"id"`
		CustomerID  string        `json:"customerId"`
		Title       string        `json:"title"`
		Description string        `json:"description,omitempty"`
		HourPrice   float64       `json:"hourPrice"`
		Status      ProjectStatus `json:"status"`
	}

	// TimeEntry is immutable once created. Start, End and BreakMinutes are
	// kept for display only; Hours is the derived value used everywhere
	// downstream and is never recomputed from them.
	TimeEntry struct {
		ID           string  `json:"id"`
		ProjectID    string  `json:"projectId"`
		Date         Date    `json:"date"`
		Start        string  `json:"start,omitempty"`
		End          string  `json:"end,omitempty"`
		BreakMinutes float64 `json:"breakMinutes"`
		Hours        float64 `json:"hours"`
		Description  string  `json:"description,omitempty"`
		UserID       string  `json:"userId,omitempty"`
	}

	Material struct {
		ID        string  `json:"id"`
		ProjectID string  `json:"projectId"`
		Name      string  `json:"name"`
		Quantity  float64 `json:"quantity"`
		UnitPrice float64 `json:"unitPrice"`
		Date      Date    `json:"date"`
	}

	// Invoice snapshots its totals at generation time. Later edits to time
	// entries, materials or rates never change a stored invoice.
	Invoice struct {
		ID        string  `json:"id"`
		Number    int     `json:"number"`
		ProjectID string  `json:"projectId"`
		Date      Date    `json:"date"`
		Subtotal  float64 `json:"subtotal"`
		VAT       float64 `json:"vat"`
		Total     float64 `json:"total"`
	}

	Settings struct {
		CompanyName      string  `json:"companyName"`
		TaxID            string  `json:"cvr"`
		Address          string  `json:"address"`
		DefaultHourPrice float64 `json:"defaultHourPrice"`
		VATRate          float64 `json:"vatRate"`
	}
)

var (
	ErrNameRequired     = errors.New("name is required")
	ErrCustomerNotFound = errors.New("customer not found")
	ErrProjectNotFound  = errors.New("project not found")
)

// Cost is the line cost of a material row, always derived, never stored.
func (m Material) Cost() float64 {
	return m.Quantity * m.UnitPrice
}

// EffectiveHourRate is the rate a project bills at: its own hour price when
// set, otherwise the tenant default.
func EffectiveHourRate(p Project, s Settings) float64 {
	if p.HourPrice > 0 {
		return p.HourPrice
	}
	return s.DefaultHourPrice
}

func (c Customer) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrNameRequired
	}
	return nil
}

// NewID returns an opaque unique identifier. IDs are generated client-side
// and never reused.
func NewID() string {
	return uuid.NewString()
}
