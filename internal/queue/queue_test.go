package queue

import (
	"sync"
	"testing"
)

type op struct {
	Key    string
	Delete bool
}

func TestQueue_ZeroValue(t *testing.T) {
	var q Queue[op]

	if q.Len() != 0 {
		t.Errorf("expected length 0, got %d", q.Len())
	}
	if _, ok := q.Pop(); ok {
		t.Error("expected Pop on empty queue to report not ok")
	}
}

func TestQueue_PushPopOrder(t *testing.T) {
	var q Queue[op]

	q.Push(op{Key: "/locshare/alice"})
	q.Push(op{Key: "/locshare/bob"}, op{Key: "/locshare/alice", Delete: true})

	if q.Len() != 3 {
		t.Fatalf("expected length 3, got %d", q.Len())
	}

	first, ok := q.Pop()
	if !ok || first.Key != "/locshare/alice" || first.Delete {
		t.Errorf("unexpected first item: %+v ok=%v", first, ok)
	}
	if q.Len() != 2 {
		t.Errorf("expected length 2 after pop, got %d", q.Len())
	}
}

func TestQueue_GetAndEmpty(t *testing.T) {
	var q Queue[op]
	q.Push(op{Key: "a"}, op{Key: "b"}, op{Key: "c"})

	batch := q.GetAndEmpty()

	if len(batch) != 3 {
		t.Fatalf("expected 3 items, got %d", len(batch))
	}
	if batch[0].Key != "a" || batch[1].Key != "b" || batch[2].Key != "c" {
		t.Errorf("batch out of order: %+v", batch)
	}
	if q.Len() != 0 {
		t.Error("expected empty queue after GetAndEmpty")
	}
}

func TestQueue_ConcurrentPush(t *testing.T) {
	var q Queue[int]
	var wg sync.WaitGroup

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			q.Push(n)
		}(i)
	}
	wg.Wait()

	if q.Len() != 100 {
		t.Errorf("expected 100 items, got %d", q.Len())
	}
}

func TestQueue_ConcurrentGetAndEmpty(t *testing.T) {
	var q Queue[int]
	for i := 0; i < 100; i++ {
		q.Push(i)
	}

	var wg sync.WaitGroup
	results := make(chan []int, 10)

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- q.GetAndEmpty()
		}()
	}
	wg.Wait()
	close(results)

	total := 0
	for r := range results {
		total += len(r)
	}
	if total != 100 {
		t.Errorf("expected 100 items across drains, got %d", total)
	}
}
