// Package worker archives state snapshots in response to save events,
// giving every change a recoverable file on disk.
package worker

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"eltimer/internal/backup"
	"eltimer/internal/core"
	"eltimer/internal/log"
	"eltimer/internal/notify"
)

// BlobReader is the slice of local storage the worker needs.
type BlobReader interface {
	Get(ctx context.Context, scope string) (string, bool, error)
}

// BackupWorker writes a dated backup file per save notification and
// prunes old archives so disk use stays bounded.
type BackupWorker struct {
	storage BlobReader
	dir     string
	keep    int
	logger  *log.Logger
}

func NewBackupWorker(storage BlobReader, dir string, keep int, logger *log.Logger) *BackupWorker {
	if keep < 1 {
		keep = 1
	}
	return &BackupWorker{
		storage: storage,
		dir:     dir,
		keep:    keep,
		logger:  logger.WithComponent(log.ComponentWorker),
	}
}

// HandleStateSaved archives the scope named by the message. The blob is
// re-read from storage so the archive always reflects what was actually
// persisted; its parsed revision names the file, never the message's.
func (w *BackupWorker) HandleStateSaved(ctx context.Context, msg *notify.StateSavedMessage) error {
	return w.archive(ctx, msg.CompanyID)
}

// ArchiveNow takes an unsolicited backup, used by the periodic safety
// timer when no save notifications arrived.
func (w *BackupWorker) ArchiveNow(ctx context.Context, scope string) error {
	return w.archive(ctx, scope)
}

func (w *BackupWorker) archive(ctx context.Context, scope string) error {
	data, found, err := w.storage.Get(ctx, scope)
	if err != nil {
		return fmt.Errorf("read state for backup: %w", err)
	}
	if !found {
		w.logger.WarnContext(ctx, "no state to archive", log.FieldScope, scope)
		return nil
	}

	state, err := core.MergeOverDefaults([]byte(data))
	if err != nil {
		return fmt.Errorf("parse state for backup: %w", err)
	}
	raw, err := backup.Export(state)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("create backup dir: %w", err)
	}

	name := archiveName(scope, state.Revision)
	path := filepath.Join(w.dir, name)
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("write backup: %w", err)
	}

	w.logger.InfoContext(ctx, "state archived",
		log.FieldScope, scope,
		log.FieldRevision, state.Revision,
		"file", name)

	return w.prune(scope)
}

func archiveName(scope string, revision int64) string {
	return fmt.Sprintf("%s_rev%08d.json", scope, revision)
}

// prune keeps only the newest archives for a scope. Revision numbers
// are zero-padded, so lexical order is revision order.
func (w *BackupWorker) prune(scope string) error {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return fmt.Errorf("list backup dir: %w", err)
	}

	var names []string
	prefix := scope + "_rev"
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), prefix) {
			names = append(names, e.Name())
		}
	}
	if len(names) <= w.keep {
		return nil
	}

	sort.Strings(names)
	for _, name := range names[:len(names)-w.keep] {
		if err := os.Remove(filepath.Join(w.dir, name)); err != nil {
			return fmt.Errorf("prune backup: %w", err)
		}
	}
	return nil
}
