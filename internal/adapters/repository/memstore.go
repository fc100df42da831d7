package repository

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/okian/blueprints/internal/domain/model"
	"github.com/okian/blueprints/pkg/metrics"
)

// partition holds one author's blueprints. order keeps creation order so
// List is deterministic.
type partition struct {
	order  []string
	byName map[string]*model.Blueprint
}

func (p *partition) remove(name string) {
	delete(p.byName, name)
	for i, n := range p.order {
		if n == name {
			p.order = append(p.order[:i], p.order[i+1:]...)
			return
		}
	}
}

// MemoryStore is a mutex-guarded, process-lifetime Store. An author exists
// exactly while its partition is non-empty.
type MemoryStore struct {
	mu       sync.RWMutex
	byAuthor map[string]*partition
	count    int

	seed []model.Blueprint
}

// NewMemoryStore constructs an empty store and applies options.
func NewMemoryStore(ctx context.Context, opts ...Option) *MemoryStore {
	s := &MemoryStore{byAuthor: make(map[string]*partition)}
	for _, opt := range opts {
		opt(s)
	}
	for _, bp := range s.seed {
		_, _ = s.Create(ctx, bp.Author, bp.Name, bp.Points)
	}
	return s
}

// List implements Store.List.
func (s *MemoryStore) List(ctx context.Context, author string) []model.Blueprint {
	defer observe("list", time.Now(), nil)

	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.byAuthor[author]
	if !ok {
		return []model.Blueprint{}
	}
	out := make([]model.Blueprint, 0, len(p.order))
	for _, name := range p.order {
		out = append(out, p.byName[name].Clone())
	}
	return out
}

// Get implements Store.Get.
func (s *MemoryStore) Get(ctx context.Context, author, name string) (bp model.Blueprint, err error) {
	defer func(start time.Time) { observe("get", start, err) }(time.Now())

	s.mu.RLock()
	defer s.mu.RUnlock()

	stored, ok := s.lookup(author, name)
	if !ok {
		return model.Blueprint{}, ErrNotFound
	}
	return stored.Clone(), nil
}

// Create implements Store.Create.
func (s *MemoryStore) Create(ctx context.Context, author, name string, points []model.Point) (bp model.Blueprint, err error) {
	defer func(start time.Time) { observe("create", start, err) }(time.Now())

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.lookup(author, name); ok {
		return model.Blueprint{}, ErrAlreadyExists
	}
	p, ok := s.byAuthor[author]
	if !ok {
		p = &partition{byName: make(map[string]*model.Blueprint)}
		s.byAuthor[author] = p
	}
	stored := &model.Blueprint{Author: author, Name: name, Points: model.ClonePoints(points)}
	p.byName[name] = stored
	p.order = append(p.order, name)
	s.count++
	metrics.UpdateStoreSize(s.count, len(s.byAuthor))
	return stored.Clone(), nil
}

// ReplacePoints implements Store.ReplacePoints.
func (s *MemoryStore) ReplacePoints(ctx context.Context, author, name string, points []model.Point) (bp model.Blueprint, err error) {
	defer func(start time.Time) { observe("replace", start, err) }(time.Now())

	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.lookup(author, name)
	if !ok {
		return model.Blueprint{}, ErrNotFound
	}
	stored.Points = model.ClonePoints(points)
	return stored.Clone(), nil
}

// AppendPoint implements Store.AppendPoint.
func (s *MemoryStore) AppendPoint(ctx context.Context, author, name string, pt model.Point) (bp model.Blueprint, err error) {
	defer func(start time.Time) { observe("append", start, err) }(time.Now())

	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.lookup(author, name)
	if !ok {
		return model.Blueprint{}, ErrNotFound
	}
	stored.Points = append(stored.Points, pt)
	metrics.RecordPointAppended()
	return stored.Clone(), nil
}

// Delete implements Store.Delete.
func (s *MemoryStore) Delete(ctx context.Context, author, name string) (err error) {
	defer func(start time.Time) { observe("delete", start, err) }(time.Now())

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.byAuthor[author]
	if !ok {
		return ErrNotFound
	}
	if _, ok := p.byName[name]; !ok {
		return ErrNotFound
	}
	p.remove(name)
	if len(p.byName) == 0 {
		delete(s.byAuthor, author)
	}
	s.count--
	metrics.UpdateStoreSize(s.count, len(s.byAuthor))
	return nil
}

// Count implements Store.Count.
func (s *MemoryStore) Count(ctx context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.count
}

// Authors implements Store.Authors.
func (s *MemoryStore) Authors(ctx context.Context) []string {
	s.mu.RLock()
	out := make([]string, 0, len(s.byAuthor))
	for a := range s.byAuthor {
		out = append(out, a)
	}
	s.mu.RUnlock()
	sort.Strings(out)
	return out
}

// Reset implements Store.Reset.
func (s *MemoryStore) Reset(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byAuthor = make(map[string]*partition)
	s.count = 0
	metrics.UpdateStoreSize(0, 0)
}

// lookup assumes the lock is held.
func (s *MemoryStore) lookup(author, name string) (*model.Blueprint, bool) {
	p, ok := s.byAuthor[author]
	if !ok {
		return nil, false
	}
	bp, ok := p.byName[name]
	return bp, ok
}

func observe(op string, start time.Time, err error) {
	outcome := "ok"
	switch {
	case errors.Is(err, ErrNotFound):
		outcome = "not_found"
	case errors.Is(err, ErrAlreadyExists):
		outcome = "conflict"
	case err != nil:
		outcome = "error"
	}
	ms := float64(time.Since(start).Microseconds()) / 1000
	metrics.RecordStoreOperation(op, outcome, ms)
}
