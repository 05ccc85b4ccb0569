// Package backup turns the full application state into a portable
// JSON document and back. Import replaces everything, so callers must
// confirm before applying one.
package backup

import (
	"encoding/json"
	"fmt"
	"time"

	"eltimer/internal/core"
)

// Export renders the state as indented JSON suitable for a download.
func Export(state core.State) ([]byte, error) {
	raw, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("export state: %w", err)
	}
	return raw, nil
}

// Filename returns the suggested download name for a backup taken now.
func Filename(now time.Time) string {
	return fmt.Sprintf("eltimer_backup_%s.json", now.Format("2006-01-02"))
}

// Import parses a backup document into a full state. Fields the backup
// does not carry keep their defaults, so older backups stay readable.
func Import(raw []byte) (core.State, error) {
	state, err := core.MergeOverDefaults(raw)
	if err != nil {
		return core.State{}, fmt.Errorf("import backup: %w", err)
	}
	return state, nil
}
