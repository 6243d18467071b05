package records_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/strata-vc/dealdesk/internal/records"
	"github.com/strata-vc/dealdesk/pkg/storage"
)

func newTestStore(t *testing.T) (*records.Store, storage.System) {
	t.Helper()

	blobs, err := storage.New(&storage.Config{
		Backend: storage.BackendFilesystem,
		Root:    t.TempDir(),
	}, slog.Default())
	if err != nil {
		t.Fatalf("storage.New: %v", err)
	}

	return records.NewStore(blobs), blobs
}

func testRecord(id, company string, updatedAt time.Time) *records.Record {
	return &records.Record{
		ID:        id,
		Company:   company,
		Status:    records.StatusInProgress,
		Metrics:   map[string]records.MetricValue{},
		Documents: []records.Document{},
		Notes:     []records.Note{},
		CreatedAt: updatedAt,
		UpdatedAt: updatedAt,
	}
}

func TestStoreSaveLoad(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	r := testRecord("rec-1", "Acme", now)
	r.Metrics["arr"] = records.MetricValue{Value: "$1.2M", Source: records.SourceAuto, UpdatedAt: now}

	if err := store.Save(ctx, r); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := store.Load(ctx, "rec-1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded == nil {
		t.Fatal("Load returned nil for saved record")
	}
	if loaded.Company != "Acme" || loaded.Status != records.StatusInProgress {
		t.Errorf("loaded = %+v", loaded)
	}
	if got := loaded.Metrics["arr"]; got.Value != "$1.2M" {
		t.Errorf("metric = %+v", got)
	}
}

func TestStoreLoadMissing(t *testing.T) {
	store, _ := newTestStore(t)

	loaded, err := store.Load(context.Background(), "absent")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded != nil {
		t.Errorf("loaded = %+v, want nil", loaded)
	}
}

func TestStoreLoadNormalizesLegacyBlob(t *testing.T) {
	store, blobs := newTestStore(t)
	ctx := context.Background()

	// A record written before notes and status existed.
	legacy := []byte(`{"id":"rec-old","company":"Retro"}`)
	if err := blobs.Upload(ctx, "records/rec-old.json", bytes.NewReader(legacy), "application/json"); err != nil {
		t.Fatalf("Upload: %v", err)
	}

	loaded, err := store.Load(ctx, "rec-old")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Status != records.StatusInProgress {
		t.Errorf("status = %q", loaded.Status)
	}
	if loaded.Metrics == nil || loaded.Documents == nil || loaded.Notes == nil {
		t.Errorf("collections not backfilled: %+v", loaded)
	}
}

func TestStoreList(t *testing.T) {
	store, blobs := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"rec-a", "rec-b", "rec-c"} {
		r := testRecord(id, "Company "+id, base.Add(time.Duration(i)*time.Hour))
		if err := store.Save(ctx, r); err != nil {
			t.Fatalf("Save %s: %v", id, err)
		}
	}

	// A corrupt blob must not fail the listing.
	if err := blobs.Upload(ctx, "records/broken.json", bytes.NewReader([]byte("{not json")), "application/json"); err != nil {
		t.Fatalf("Upload: %v", err)
	}

	out, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("len = %d, want 3", len(out))
	}

	// Sorted by updatedAt descending.
	want := []string{"rec-c", "rec-b", "rec-a"}
	for i, r := range out {
		if r.ID != want[i] {
			t.Errorf("out[%d] = %s, want %s", i, r.ID, want[i])
		}
	}
}

func TestStoreDelete(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	r := testRecord("rec-1", "Acme", time.Now().UTC())
	if err := store.Save(ctx, r); err != nil {
		t.Fatalf("Save: %v", err)
	}

	if err := store.Delete(ctx, "rec-1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if loaded, _ := store.Load(ctx, "rec-1"); loaded != nil {
		t.Error("record still loadable after delete")
	}

	if err := store.Delete(ctx, "rec-1"); !errors.Is(err, records.ErrNotFound) {
		t.Errorf("second delete err = %v, want ErrNotFound", err)
	}
}

func TestStoreUpdate(t *testing.T) {
	t.Run("shallow merge bumps updatedAt and protects identity fields", func(t *testing.T) {
		store, _ := newTestStore(t)
		ctx := context.Background()

		created := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
		r := testRecord("rec-1", "Acme", created)
		if err := store.Save(ctx, r); err != nil {
			t.Fatalf("Save: %v", err)
		}

		updated, err := store.Update(ctx, "rec-1", map[string]json.RawMessage{
			"company":    json.RawMessage(`"Acme Robotics"`),
			"id":         json.RawMessage(`"hijacked"`),
			"created_at": json.RawMessage(`"2030-01-01T00:00:00Z"`),
		})
		if err != nil {
			t.Fatalf("Update: %v", err)
		}

		if updated.Company != "Acme Robotics" {
			t.Errorf("company = %q", updated.Company)
		}
		if updated.ID != "rec-1" {
			t.Errorf("id changed to %q", updated.ID)
		}
		if !updated.CreatedAt.Equal(created) {
			t.Errorf("createdAt changed to %v", updated.CreatedAt)
		}
		if !updated.UpdatedAt.After(created) {
			t.Errorf("updatedAt not bumped: %v", updated.UpdatedAt)
		}
	})

	t.Run("missing record", func(t *testing.T) {
		store, _ := newTestStore(t)

		_, err := store.Update(context.Background(), "absent", map[string]json.RawMessage{
			"company": json.RawMessage(`"X"`),
		})
		if !errors.Is(err, records.ErrNotFound) {
			t.Errorf("err = %v, want ErrNotFound", err)
		}
	})

	t.Run("type-mismatched field rejected", func(t *testing.T) {
		store, _ := newTestStore(t)
		ctx := context.Background()

		if err := store.Save(ctx, testRecord("rec-1", "Acme", time.Now().UTC())); err != nil {
			t.Fatalf("Save: %v", err)
		}

		_, err := store.Update(ctx, "rec-1", map[string]json.RawMessage{
			"company": json.RawMessage(`42`),
		})
		if !errors.Is(err, records.ErrInvalidPatch) {
			t.Errorf("err = %v, want ErrInvalidPatch", err)
		}
	})
}
