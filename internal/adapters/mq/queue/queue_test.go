package queue

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/okian/blueprints/internal/domain/model"
)

func draw(room string, x int) model.DrawEvent {
	return model.DrawEvent{Room: room, Author: "juan", Name: "plano-3", Point: model.Point{X: x, Y: x}}
}

func TestInMemoryQueue_BasicOperations(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	if l := q.Len(ctx); l != 0 {
		t.Errorf("expected length 0, got %d", l)
	}
	if err := q.Enqueue(ctx, draw("r", 1)); err != nil {
		t.Fatalf("expected enqueue to succeed, got %v", err)
	}
	if l := q.Len(ctx); l != 1 {
		t.Errorf("expected length 1, got %d", l)
	}

	ev := <-q.Dequeue(ctx)
	if ev.Point.X != 1 {
		t.Errorf("expected point 1, got %v", ev.Point)
	}
	if l := q.Len(ctx); l != 0 {
		t.Errorf("expected length 0, got %d", l)
	}
}

func TestInMemoryQueue_Capacity(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	_ = q.Enqueue(ctx, draw("r", 1))
	_ = q.Enqueue(ctx, draw("r", 2))

	if err := q.Enqueue(ctx, draw("r", 3)); !errors.Is(err, ErrFull) {
		t.Errorf("expected ErrFull, got %v", err)
	}
	if l := q.Len(ctx); l != 2 {
		t.Errorf("expected length 2, got %d", l)
	}
	if q.Capacity() != 2 {
		t.Errorf("expected capacity 2, got %d", q.Capacity())
	}
}

func TestInMemoryQueue_PreservesOrder(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(100))
	ctx := context.Background()

	for i := 0; i < 100; i++ {
		if err := q.Enqueue(ctx, draw("r", i)); err != nil {
			t.Fatalf("enqueue %d: %v", i, err)
		}
	}
	_ = q.Close()

	i := 0
	for ev := range q.Dequeue(ctx) {
		if ev.Point.X != i {
			t.Fatalf("expected point %d, got %d", i, ev.Point.X)
		}
		i++
	}
	if i != 100 {
		t.Errorf("expected 100 events drained after close, got %d", i)
	}
}

func TestInMemoryQueue_ConcurrentProducers(t *testing.T) {
	const producers, perProducer = 10, 50
	q := NewInMemoryQueue(WithCapacity(producers * perProducer))
	ctx := context.Background()

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				if err := q.Enqueue(ctx, draw("room-"+strconv.Itoa(id), i)); err != nil {
					t.Errorf("enqueue failed: %v", err)
					return
				}
			}
		}(p)
	}
	wg.Wait()
	_ = q.Close()

	last := make(map[string]int)
	total := 0
	for ev := range q.Dequeue(ctx) {
		if prev, ok := last[ev.Room]; ok && ev.Point.X <= prev {
			t.Fatalf("%s out of order: %d after %d", ev.Room, ev.Point.X, prev)
		}
		last[ev.Room] = ev.Point.X
		total++
	}
	if total != producers*perProducer {
		t.Errorf("expected %d events, got %d", producers*perProducer, total)
	}
}

func TestInMemoryQueue_Close(t *testing.T) {
	q := NewInMemoryQueue()
	ctx := context.Background()

	if q.IsClosed() {
		t.Error("expected queue to be open")
	}
	if err := q.Close(); err != nil {
		t.Fatalf("unexpected close error: %v", err)
	}
	if err := q.Close(); err != nil {
		t.Fatalf("second close should be a no-op, got %v", err)
	}
	if !q.IsClosed() {
		t.Error("expected queue to be closed")
	}
	if err := q.Enqueue(ctx, draw("r", 1)); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
	if _, ok := <-q.Dequeue(ctx); ok {
		t.Error("expected dequeue channel to be closed")
	}
}

func TestInMemoryQueue_CancelledContext(t *testing.T) {
	q := NewInMemoryQueue()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := q.Enqueue(ctx, draw("r", 1)); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestInMemoryQueue_EnqueueWaitBlocksUntilRoom(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(1))
	ctx := context.Background()

	if err := q.EnqueueWait(ctx, draw("r", 1)); err != nil {
		t.Fatalf("first enqueue: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- q.EnqueueWait(ctx, draw("r", 2)) }()

	select {
	case err := <-done:
		t.Fatalf("enqueue on a full queue returned early: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	if ev := <-q.Dequeue(ctx); ev.Point.X != 1 {
		t.Fatalf("expected point 1, got %v", ev.Point)
	}
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("blocked enqueue failed: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("blocked enqueue did not resume after a dequeue")
	}
	if ev := <-q.Dequeue(ctx); ev.Point.X != 2 {
		t.Errorf("expected point 2, got %v", ev.Point)
	}
}

func TestInMemoryQueue_EnqueueWaitUnblocksOnClose(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(1))
	ctx := context.Background()
	_ = q.EnqueueWait(ctx, draw("r", 1))

	done := make(chan error, 1)
	go func() { done <- q.EnqueueWait(ctx, draw("r", 2)) }()
	time.Sleep(20 * time.Millisecond)

	closed := make(chan struct{})
	go func() {
		_ = q.Close()
		close(closed)
	}()

	select {
	case err := <-done:
		if !errors.Is(err, ErrClosed) {
			t.Errorf("expected ErrClosed, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("blocked enqueue not released by Close")
	}
	select {
	case <-closed:
	case <-time.After(time.Second):
		t.Fatal("Close deadlocked with a blocked producer")
	}

	n := 0
	for range q.Dequeue(ctx) {
		n++
	}
	if n != 1 {
		t.Errorf("expected the accepted event to stay readable, got %d", n)
	}
}

func TestInMemoryQueue_EnqueueWaitHonoursContext(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(1))
	_ = q.EnqueueWait(context.Background(), draw("r", 1))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := q.EnqueueWait(ctx, draw("r", 2)); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
	if l := q.Len(context.Background()); l != 1 {
		t.Errorf("expected length 1, got %d", l)
	}
}
