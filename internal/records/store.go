package records

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/strata-vc/dealdesk/pkg/storage"
)

const recordPrefix = "records/"

// Store persists records as one JSON blob each under the records/ key
// prefix. The backing storage.System decides whether that means a local
// directory or an object-storage container; callers cannot tell the
// difference.
//
// There is no locking: updates are load-modify-save and the last write wins.
// The admitted usage is analyst-driven low-concurrency editing.
type Store struct {
	blobs storage.System
}

// NewStore creates a record store over the given blob storage.
func NewStore(blobs storage.System) *Store {
	return &Store{blobs: blobs}
}

// Save writes the record blob, overwriting any previous version.
func (s *Store) Save(ctx context.Context, r *Record) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal record %s: %w", r.ID, err)
	}

	if err := s.blobs.Upload(ctx, recordKey(r.ID), bytes.NewReader(data), "application/json"); err != nil {
		return fmt.Errorf("save record %s: %w", r.ID, err)
	}

	return nil
}

// Load returns the record for id, or (nil, nil) when it does not exist.
func (s *Store) Load(ctx context.Context, id string) (*Record, error) {
	reader, err := s.blobs.Download(ctx, recordKey(id))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("load record %s: %w", id, err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read record %s: %w", id, err)
	}

	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("unmarshal record %s: %w", id, err)
	}

	r.normalize()
	return &r, nil
}

// List returns all records sorted by updatedAt descending. Blobs that fail
// to decode are skipped rather than failing the whole listing.
func (s *Store) List(ctx context.Context) ([]*Record, error) {
	keys, err := s.blobs.List(ctx, recordPrefix)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}

	out := make([]*Record, 0, len(keys))
	for _, key := range keys {
		id := strings.TrimSuffix(strings.TrimPrefix(key, recordPrefix), ".json")
		r, err := s.Load(ctx, id)
		if err != nil || r == nil {
			continue
		}
		out = append(out, r)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})

	return out, nil
}

// Delete removes the record blob. Missing records map to ErrNotFound.
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := s.blobs.Delete(ctx, recordKey(id)); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("delete record %s: %w", id, err)
	}
	return nil
}

// Update merges partial JSON fields into the stored record and bumps
// updatedAt. Returns ErrNotFound when the record is absent. The merge is
// shallow: each top-level field in partial replaces the stored field.
func (s *Store) Update(ctx context.Context, id string, partial map[string]json.RawMessage) (*Record, error) {
	current, err := s.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, ErrNotFound
	}

	raw, err := json.Marshal(current)
	if err != nil {
		return nil, fmt.Errorf("marshal record %s: %w", id, err)
	}

	var merged map[string]json.RawMessage
	if err := json.Unmarshal(raw, &merged); err != nil {
		return nil, fmt.Errorf("explode record %s: %w", id, err)
	}

	for field, value := range partial {
		if field == "id" || field == "created_at" {
			continue
		}
		merged[field] = value
	}

	remarshaled, err := json.Marshal(merged)
	if err != nil {
		return nil, fmt.Errorf("merge record %s: %w", id, err)
	}

	var updated Record
	if err := json.Unmarshal(remarshaled, &updated); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPatch, err)
	}

	updated.normalize()
	updated.UpdatedAt = time.Now().UTC()

	if err := s.Save(ctx, &updated); err != nil {
		return nil, err
	}

	return &updated, nil
}

func recordKey(id string) string {
	return recordPrefix + id + ".json"
}
