package worker

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"eltimer/internal/core"
	"eltimer/internal/log"
	"eltimer/internal/notify"
)

type fakeReader struct {
	states map[string]*core.State
	raw    map[string]string
}

func (f *fakeReader) Get(ctx context.Context, scope string) (string, bool, error) {
	if data, ok := f.raw[scope]; ok {
		return data, true, nil
	}
	state, ok := f.states[scope]
	if !ok {
		return "", false, nil
	}
	data, err := state.Encode()
	return string(data), true, err
}

func testWorker(t *testing.T, keep int) (*BackupWorker, *fakeReader, string) {
	t.Helper()
	dir := t.TempDir()
	state := core.DefaultState()
	state.Customers = []core.Customer{{ID: "c1", Name: "Jensen VVS"}}
	reader := &fakeReader{
		states: map[string]*core.State{"co": &state},
		raw:    map[string]string{},
	}
	return NewBackupWorker(reader, dir, keep, log.New(slog.LevelError)), reader, dir
}

func TestHandleStateSavedWritesArchive(t *testing.T) {
	w, reader, dir := testWorker(t, 10)
	reader.states["co"].Revision = 7

	err := w.HandleStateSaved(context.Background(), &notify.StateSavedMessage{CompanyID: "co", Revision: 7})
	if err != nil {
		t.Fatalf("HandleStateSaved: %v", err)
	}

	raw, err := os.ReadFile(filepath.Join(dir, "co_rev00000007.json"))
	if err != nil {
		t.Fatalf("archive missing: %v", err)
	}
	if !strings.Contains(string(raw), "Jensen VVS") {
		t.Error("archive missing state data")
	}
}

func TestHandleStateSavedMissingScope(t *testing.T) {
	w, _, dir := testWorker(t, 10)

	err := w.HandleStateSaved(context.Background(), &notify.StateSavedMessage{CompanyID: "ghost", Revision: 1})
	if err != nil {
		t.Fatalf("missing scope should not error: %v", err)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("no archive expected, found %d files", len(entries))
	}
}

func TestHandleStateSavedCorruptBlob(t *testing.T) {
	w, reader, _ := testWorker(t, 10)
	reader.raw["co"] = "not json"

	err := w.HandleStateSaved(context.Background(), &notify.StateSavedMessage{CompanyID: "co", Revision: 1})
	if err == nil {
		t.Error("corrupt blob should error so the message requeues")
	}
}

func TestArchiveNowUsesBlobRevision(t *testing.T) {
	w, reader, dir := testWorker(t, 10)
	reader.states["co"].Revision = 5

	if err := w.ArchiveNow(context.Background(), "co"); err != nil {
		t.Fatalf("ArchiveNow: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "co_rev00000005.json")); err != nil {
		t.Fatalf("archive not named from stored revision: %v", err)
	}

	reader.states["co"].Revision = 6
	if err := w.ArchiveNow(context.Background(), "co"); err != nil {
		t.Fatalf("ArchiveNow: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("archives = %d, want 2 distinct files", len(entries))
	}
}

func TestPruneKeepsNewest(t *testing.T) {
	w, reader, dir := testWorker(t, 3)

	for rev := int64(1); rev <= 6; rev++ {
		reader.states["co"].Revision = rev
		err := w.HandleStateSaved(context.Background(), &notify.StateSavedMessage{CompanyID: "co", Revision: rev})
		if err != nil {
			t.Fatalf("rev %d: %v", rev, err)
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 3 {
		t.Fatalf("archives = %d, want 3", len(entries))
	}
	// Oldest three should be gone.
	for _, e := range entries {
		if e.Name() < "co_rev00000004.json" {
			t.Errorf("stale archive survived: %s", e.Name())
		}
	}
}

func TestPruneScopesIndependent(t *testing.T) {
	w, reader, dir := testWorker(t, 2)
	other := core.DefaultState()
	reader.states["other"] = &other

	for rev := int64(1); rev <= 3; rev++ {
		reader.states["co"].Revision = rev
		if err := w.HandleStateSaved(context.Background(), &notify.StateSavedMessage{CompanyID: "co", Revision: rev}); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.HandleStateSaved(context.Background(), &notify.StateSavedMessage{CompanyID: "other", Revision: 1}); err != nil {
		t.Fatal(err)
	}

	entries, _ := os.ReadDir(dir)
	var otherCount int
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "other_") {
			otherCount++
		}
	}
	if otherCount != 1 {
		t.Errorf("other scope archives = %d, want 1", otherCount)
	}
}
