// Package memstore is an in-memory store.Store used by tests of the layers
// above the database. Payloads are kept encoded, as in the payload column,
// and decoded on every read.
package memstore

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/alfredjeanlab/records/internal/idgen"
	"github.com/alfredjeanlab/records/internal/model"
	"github.com/alfredjeanlab/records/internal/page"
	"github.com/alfredjeanlab/records/internal/payload"
	"github.com/alfredjeanlab/records/internal/store"
)

type row struct {
	id        string
	username  string
	payload   []byte
	createdAt time.Time
	updatedAt time.Time
}

type table struct {
	mu   sync.Mutex
	rows map[string]row
	now  func() time.Time
}

// Store is an in-memory store.Store.
type Store[M any] struct {
	t *table
	// snapshot, when set, is the frozen view a RunInSnapshot callback reads.
	snapshot map[string]row

	// Err, when set, is returned by every operation.
	Err error
}

var _ store.Store[model.Profile] = (*Store[model.Profile])(nil)

// New returns an empty store.
func New[M any]() *Store[M] {
	return &Store[M]{t: &table{rows: map[string]row{}, now: func() time.Time { return time.Now().UTC() }}}
}

// As returns a store over the same rows that reads payloads as N.
func As[N, M any](s *Store[M]) *Store[N] {
	return &Store[N]{t: s.t}
}

// SetClock replaces the time source used for created_at and updated_at.
func (s *Store[M]) SetClock(now func() time.Time) {
	s.t.mu.Lock()
	defer s.t.mu.Unlock()
	s.t.now = now
}

// PutRaw stores a row with an arbitrary payload document, bypassing the codec.
func (s *Store[M]) PutRaw(id, username string, raw []byte, createdAt time.Time) {
	s.t.mu.Lock()
	defer s.t.mu.Unlock()
	s.t.rows[id] = row{id: id, username: username, payload: raw, createdAt: createdAt, updatedAt: createdAt}
}

func (s *Store[M]) decode(r row) (*model.Record[M], error) {
	p, err := payload.Decode[M](r.payload)
	if err != nil {
		return nil, err
	}
	return &model.Record[M]{ID: r.id, Username: r.username, Payload: p, CreatedAt: r.createdAt, UpdatedAt: r.updatedAt}, nil
}

func (s *Store[M]) CreateRecord(_ context.Context, rec *model.Record[M]) error {
	if s.Err != nil {
		return s.Err
	}
	raw, err := payload.Encode(rec.Payload)
	if err != nil {
		return err
	}
	if rec.ID == "" {
		if rec.ID, err = idgen.NewRecordID(); err != nil {
			return err
		}
	}

	s.t.mu.Lock()
	defer s.t.mu.Unlock()
	if _, ok := s.t.rows[rec.ID]; ok {
		return fmt.Errorf("%w: id %s", store.ErrConflict, rec.ID)
	}
	now := s.t.now()
	rec.CreatedAt, rec.UpdatedAt = now, now
	s.t.rows[rec.ID] = row{id: rec.ID, username: rec.Username, payload: raw, createdAt: now, updatedAt: now}
	return nil
}

func (s *Store[M]) GetRecord(_ context.Context, id string) (*model.Record[M], error) {
	if s.Err != nil {
		return nil, s.Err
	}
	r, ok := s.view()[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return s.decode(r)
}

func (s *Store[M]) ListRecords(_ context.Context, filter model.RecordFilter, params page.Params) (*page.Result[model.Record[M]], error) {
	pageNum, size, err := params.Normalize()
	if err != nil {
		return nil, err
	}
	if s.Err != nil {
		return nil, &page.StoreError{Op: "count", Err: s.Err}
	}

	var matched []row
	for _, r := range s.view() {
		if s.match(r, filter) {
			matched = append(matched, r)
		}
	}
	sortRows(matched, filter.Sort)

	total := int64(len(matched))
	res := &page.Result[model.Record[M]]{
		Items:      []model.Record[M]{},
		Page:       pageNum,
		PageSize:   size,
		TotalCount: total,
		TotalPages: page.TotalPages(total, size),
	}
	if int64(pageNum) > res.TotalPages {
		return res, nil
	}
	start := (pageNum - 1) * size
	end := min(start+size, len(matched))
	for i, r := range matched[start:end] {
		rec, err := s.decode(r)
		if err != nil {
			return nil, &page.RowError{Index: i, Err: err}
		}
		res.Items = append(res.Items, *rec)
	}
	return res, nil
}

func (s *Store[M]) UpdatePayload(_ context.Context, id string, p payload.Payload[M]) (*model.Record[M], error) {
	if s.Err != nil {
		return nil, s.Err
	}
	raw, err := payload.Encode(p)
	if err != nil {
		return nil, err
	}

	s.t.mu.Lock()
	r, ok := s.t.rows[id]
	if ok {
		r.payload = raw
		r.updatedAt = s.t.now()
		s.t.rows[id] = r
	}
	s.t.mu.Unlock()

	if !ok {
		return nil, store.ErrNotFound
	}
	return s.decode(r)
}

func (s *Store[M]) DeleteRecord(_ context.Context, id string) (*model.Record[M], error) {
	if s.Err != nil {
		return nil, s.Err
	}
	s.t.mu.Lock()
	defer s.t.mu.Unlock()
	r, ok := s.t.rows[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	rec, err := s.decode(r)
	if err != nil {
		return nil, err
	}
	delete(s.t.rows, id)
	return rec, nil
}

// RunInTransaction calls fn with s. Writes are not rolled back on error.
func (s *Store[M]) RunInTransaction(_ context.Context, fn func(tx store.Store[M]) error) error {
	if s.Err != nil {
		return s.Err
	}
	return fn(s)
}

// RunInSnapshot calls fn with a store whose reads see the rows as they were
// when RunInSnapshot was called.
func (s *Store[M]) RunInSnapshot(_ context.Context, fn func(tx store.Store[M]) error) error {
	if s.Err != nil {
		return s.Err
	}
	return fn(&Store[M]{t: s.t, snapshot: s.view()})
}

func (s *Store[M]) Ping(context.Context) error { return s.Err }

func (s *Store[M]) Close() error { return nil }

// Len returns the number of stored rows.
func (s *Store[M]) Len() int {
	s.t.mu.Lock()
	defer s.t.mu.Unlock()
	return len(s.t.rows)
}

// view returns a copy of the rows this store reads.
func (s *Store[M]) view() map[string]row {
	if s.snapshot != nil {
		return s.snapshot
	}
	s.t.mu.Lock()
	defer s.t.mu.Unlock()
	return maps.Clone(s.t.rows)
}

func (s *Store[M]) match(r row, f model.RecordFilter) bool {
	if f.Username != "" && r.username != f.Username {
		return false
	}
	if f.Search != "" && !strings.Contains(strings.ToLower(r.username), strings.ToLower(f.Search)) {
		return false
	}
	if f.CreatedAfter != nil && r.createdAt.Before(*f.CreatedAfter) {
		return false
	}
	if f.CreatedBefore != nil && !r.createdAt.Before(*f.CreatedBefore) {
		return false
	}
	if len(f.Data) > 0 {
		// Match on the stored document regardless of M.
		p, err := payload.Decode[map[string]any](r.payload)
		if err != nil {
			return false
		}
		for k, v := range f.Data {
			if got, ok := p.Data[k]; !ok || got != v {
				return false
			}
		}
	}
	return true
}

// sortRows orders rows like the Postgres store: one column plus id as
// tiebreaker, newest first by default.
func sortRows(rows []row, sort string) {
	desc := strings.HasPrefix(sort, "-")
	col := strings.TrimPrefix(sort, "-")
	if col != "created_at" && col != "updated_at" && col != "username" {
		col, desc = "created_at", true
	}
	slices.SortFunc(rows, func(a, b row) int {
		var c int
		switch col {
		case "username":
			c = strings.Compare(a.username, b.username)
		case "updated_at":
			c = a.updatedAt.Compare(b.updatedAt)
		default:
			c = a.createdAt.Compare(b.createdAt)
		}
		if c == 0 {
			c = strings.Compare(a.id, b.id)
		}
		if desc {
			return -c
		}
		return c
	})
}
