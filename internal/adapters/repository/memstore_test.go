package repository

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"

	"github.com/okian/blueprints/internal/domain/model"
)

func TestMemoryStore_GetUnknown(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(ctx)

	if _, err := store.Get(ctx, "juan", "plano-3"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if got := store.List(ctx, "nobody"); got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil list, got %#v", got)
	}
}

func TestMemoryStore_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(ctx)

	pts := []model.Point{{X: 1, Y: 2}, {X: 3, Y: 4}}
	created, err := store.Create(ctx, "juan", "plano-1", pts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(created.Points, pts) {
		t.Errorf("expected %v, got %v", pts, created.Points)
	}

	got, err := store.Get(ctx, "juan", "plano-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(got.Points, pts) {
		t.Errorf("expected %v, got %v", pts, got.Points)
	}

	// caller-owned slice must not alias the stored one
	pts[0].X = 100
	got, _ = store.Get(ctx, "juan", "plano-1")
	if got.Points[0].X != 1 {
		t.Errorf("store aliased the caller's slice")
	}
}

func TestMemoryStore_CreateWithoutPoints(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(ctx)

	bp, err := store.Create(ctx, "juan", "plano-3", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if bp.Points == nil || len(bp.Points) != 0 {
		t.Errorf("expected empty non-nil points, got %#v", bp.Points)
	}
}

func TestMemoryStore_CreateDuplicate(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(ctx)

	if _, err := store.Create(ctx, "juan", "plano-1", []model.Point{{X: 1, Y: 1}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := store.Create(ctx, "juan", "plano-1", []model.Point{{X: 9, Y: 9}}); !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}

	got, _ := store.Get(ctx, "juan", "plano-1")
	if len(got.Points) != 1 || got.Points[0] != (model.Point{X: 1, Y: 1}) {
		t.Errorf("original was modified: %v", got.Points)
	}
	if store.Count(ctx) != 1 {
		t.Errorf("expected count 1, got %d", store.Count(ctx))
	}
}

func TestMemoryStore_AppendPoint(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(ctx)
	_, _ = store.Create(ctx, "juan", "plano-3", nil)

	if _, err := store.AppendPoint(ctx, "juan", "plano-3", model.Point{X: 10, Y: 20}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	bp, err := store.AppendPoint(ctx, "juan", "plano-3", model.Point{X: 30, Y: 40})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []model.Point{{X: 10, Y: 20}, {X: 30, Y: 40}}
	if !reflect.DeepEqual(bp.Points, want) {
		t.Errorf("append result: expected %v, got %v", want, bp.Points)
	}

	got, _ := store.Get(ctx, "juan", "plano-3")
	if !reflect.DeepEqual(got.Points, want) {
		t.Errorf("get after append: expected %v, got %v", want, got.Points)
	}

	if _, err := store.AppendPoint(ctx, "juan", "missing", model.Point{}); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStore_AppendReturnsSnapshot(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(ctx)
	_, _ = store.Create(ctx, "a", "n", nil)

	first, _ := store.AppendPoint(ctx, "a", "n", model.Point{X: 1, Y: 1})
	_, _ = store.AppendPoint(ctx, "a", "n", model.Point{X: 2, Y: 2})

	if len(first.Points) != 1 {
		t.Errorf("earlier snapshot changed after a later append: %v", first.Points)
	}
}

func TestMemoryStore_ReplacePoints(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(ctx)
	_, _ = store.Create(ctx, "juan", "plano-1", []model.Point{{X: 1, Y: 1}})

	bp, err := store.ReplacePoints(ctx, "juan", "plano-1", []model.Point{{X: 5, Y: 5}, {X: 6, Y: 6}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(bp.Points) != 2 || bp.Points[0] != (model.Point{X: 5, Y: 5}) {
		t.Errorf("unexpected points: %v", bp.Points)
	}

	bp, err = store.ReplacePoints(ctx, "juan", "plano-1", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if bp.Points == nil || len(bp.Points) != 0 {
		t.Errorf("expected empty points, got %#v", bp.Points)
	}

	if _, err := store.ReplacePoints(ctx, "juan", "missing", nil); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStore_DeleteRemovesEmptyAuthor(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(ctx)
	_, _ = store.Create(ctx, "juan", "plano-1", nil)
	_, _ = store.Create(ctx, "juan", "plano-2", []model.Point{{X: 1, Y: 1}})
	_, _ = store.Create(ctx, "maria", "diseño-a", nil)

	if err := store.Delete(ctx, "juan", "plano-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	list := store.List(ctx, "juan")
	if len(list) != 1 || list[0].Name != "plano-2" || len(list[0].Points) != 1 {
		t.Fatalf("sibling blueprint affected: %v", list)
	}
	if !reflect.DeepEqual(store.Authors(ctx), []string{"juan", "maria"}) {
		t.Errorf("unexpected authors: %v", store.Authors(ctx))
	}

	if err := store.Delete(ctx, "juan", "plano-2"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(store.List(ctx, "juan")) != 0 {
		t.Errorf("expected author to be gone from list results")
	}
	if !reflect.DeepEqual(store.Authors(ctx), []string{"maria"}) {
		t.Errorf("expected only maria, got %v", store.Authors(ctx))
	}

	if err := store.Delete(ctx, "juan", "plano-2"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}
	if err := store.Delete(ctx, "maria", "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStore_ListKeepsCreationOrder(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(ctx)
	names := []string{"c", "a", "b"}
	for _, n := range names {
		_, _ = store.Create(ctx, "juan", n, nil)
	}

	list := store.List(ctx, "juan")
	for i, bp := range list {
		if bp.Name != names[i] {
			t.Fatalf("expected order %v, got %v", names, list)
		}
	}
}

func TestMemoryStore_SeedAndReset(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(ctx, WithSeed(DemoSeed()...))

	if store.Count(ctx) != 3 {
		t.Fatalf("expected 3 seeded blueprints, got %d", store.Count(ctx))
	}
	bp, err := store.Get(ctx, "juan", "plano-2")
	if err != nil || len(bp.Points) != 2 {
		t.Fatalf("unexpected seeded blueprint: %v, %v", bp, err)
	}

	store.Reset(ctx)
	if store.Count(ctx) != 0 || len(store.Authors(ctx)) != 0 {
		t.Errorf("expected empty store after reset")
	}
}

func TestMemoryStore_ConcurrentAppends(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(ctx)
	_, _ = store.Create(ctx, "juan", "shared", nil)

	const goroutines, perGoroutine = 10, 100
	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for i := 0; i < perGoroutine; i++ {
				if _, err := store.AppendPoint(ctx, "juan", "shared", model.Point{X: id, Y: i}); err != nil {
					t.Errorf("append failed: %v", err)
					return
				}
			}
		}(g)
	}
	wg.Wait()

	bp, _ := store.Get(ctx, "juan", "shared")
	if len(bp.Points) != goroutines*perGoroutine {
		t.Fatalf("expected %d points, got %d", goroutines*perGoroutine, len(bp.Points))
	}

	// per-writer order is preserved
	last := make(map[int]int)
	for _, p := range bp.Points {
		if prev, ok := last[p.X]; ok && p.Y <= prev {
			t.Fatalf("writer %d out of order: %d after %d", p.X, p.Y, prev)
		}
		last[p.X] = p.Y
	}
}
