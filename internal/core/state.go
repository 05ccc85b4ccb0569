package core

import (
	"encoding/json"
	"fmt"
)

// State is the whole-blob schema: every collection the application owns,
// persisted as one JSON document per tenant scope. Revision is a monotonic
// stamp bumped on every save so divergence between replicas can at least be
// detected.
type State struct {
	Customers         []Customer  `json:"customers"`
	Projects          []Project   `json:"projects"`
	Times             []TimeEntry `json:"times"`
	Materials         []Material  `json:"materials"`
	Invoices          []Invoice   `json:"invoices"`
	Settings          Settings    `json:"settings"`
	NextInvoiceNumber int         `json:"nextInvoiceNumber"`
	Revision          int64       `json:"revision"`
}

// DefaultState is the built-in schema: all collections empty, invoice counter
// at 1, VAT preset to the Danish standard rate.
func DefaultState() State {
	return State{
		Settings: Settings{
			VATRate: 25,
		},
		NextInvoiceNumber: 1,
	}
}

// MergeOverDefaults decodes a serialized state over the default schema, so
// fields missing from older blobs are backfilled with defaults instead of
// zero values. On a decode error the defaults are returned along with the
// error; callers degrade to operating on default data.
func MergeOverDefaults(raw []byte) (State, error) {
	st := DefaultState()
	if err := json.Unmarshal(raw, &st); err != nil {
		return DefaultState(), fmt.Errorf("decode state: %w", err)
	}
	if st.NextInvoiceNumber < 1 {
		st.NextInvoiceNumber = 1
	}
	return st, nil
}

// Encode serializes the state for the blob tiers.
func (s State) Encode() ([]byte, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode state: %w", err)
	}
	return raw, nil
}
