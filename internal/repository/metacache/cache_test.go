package metacache

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/kailas-cloud/recdex/internal/domain"
	"github.com/kailas-cloud/recdex/internal/domain/item"
)

type mockLookup struct {
	calls int
	items map[int64]item.Metadata
	err   error
}

func (m *mockLookup) LookupItem(_ context.Context, id int64) (item.Metadata, error) {
	m.calls++
	if m.err != nil {
		return item.Metadata{}, m.err
	}
	it, ok := m.items[id]
	if !ok {
		return item.Metadata{}, domain.ErrItemNotFound
	}
	return it, nil
}

func newCounter() *prometheus.CounterVec {
	return prometheus.NewCounterVec(prometheus.CounterOpts{Name: "test_cache_total"}, []string{"result"})
}

func TestLookupItem_HitAfterMiss(t *testing.T) {
	inner := &mockLookup{items: map[int64]item.Metadata{1: item.New(1, "Toy Story (1995)", "114709", "")}}
	counter := newCounter()
	c, err := New(inner, 8, counter)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	for range 3 {
		m, err := c.LookupItem(context.Background(), 1)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if m.Title() != "Toy Story (1995)" {
			t.Errorf("Title = %q", m.Title())
		}
	}

	if inner.calls != 1 {
		t.Errorf("inner calls = %d, want 1", inner.calls)
	}
	if got := testutil.ToFloat64(counter.WithLabelValues("hit")); got != 2 {
		t.Errorf("hits = %v, want 2", got)
	}
	if got := testutil.ToFloat64(counter.WithLabelValues("miss")); got != 1 {
		t.Errorf("misses = %v, want 1", got)
	}
}

func TestLookupItem_ErrorsNotCached(t *testing.T) {
	inner := &mockLookup{items: map[int64]item.Metadata{}}
	c, err := New(inner, 8, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	for range 2 {
		if _, err := c.LookupItem(context.Background(), 9); !errors.Is(err, domain.ErrItemNotFound) {
			t.Fatalf("err = %v, want ErrItemNotFound", err)
		}
	}
	if inner.calls != 2 || c.Len() != 0 {
		t.Errorf("calls = %d, len = %d; not-found must not be cached", inner.calls, c.Len())
	}

	inner.items[9] = item.New(9, "Heat", "", "")
	if _, err := c.LookupItem(context.Background(), 9); err != nil {
		t.Errorf("after PutItem: %v", err)
	}
}

func TestLookupItem_Eviction(t *testing.T) {
	inner := &mockLookup{items: map[int64]item.Metadata{
		1: item.New(1, "a", "", ""),
		2: item.New(2, "b", "", ""),
		3: item.New(3, "c", "", ""),
	}}
	c, err := New(inner, 2, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for _, id := range []int64{1, 2, 3} {
		if _, err := c.LookupItem(context.Background(), id); err != nil {
			t.Fatal(err)
		}
	}
	if c.Len() != 2 {
		t.Errorf("Len = %d, want 2", c.Len())
	}

	c.Invalidate(3)
	if c.Len() != 1 {
		t.Errorf("Len after Invalidate = %d, want 1", c.Len())
	}
}

func TestNew_DefaultSize(t *testing.T) {
	if _, err := New(&mockLookup{}, 0, nil); err != nil {
		t.Fatalf("New(size=0): %v", err)
	}
}

type mockWriter struct {
	inner *mockLookup
	err   error
}

func (w *mockWriter) PutItem(_ context.Context, m item.Metadata) error {
	if w.err != nil {
		return w.err
	}
	w.inner.items[m.ID()] = m
	return nil
}

func TestPutItem_WriteThroughInvalidates(t *testing.T) {
	inner := &mockLookup{items: map[int64]item.Metadata{1: item.New(1, "Old", "1", "")}}
	c, err := New(inner, 8, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	c.WithWriter(&mockWriter{inner: inner})

	if _, err := c.LookupItem(context.Background(), 1); err != nil {
		t.Fatalf("LookupItem: %v", err)
	}
	if err := c.PutItem(context.Background(), item.New(1, "New", "1", "")); err != nil {
		t.Fatalf("PutItem: %v", err)
	}

	m, err := c.LookupItem(context.Background(), 1)
	if err != nil {
		t.Fatalf("LookupItem: %v", err)
	}
	if m.Title() != "New" {
		t.Errorf("Title = %q, want New", m.Title())
	}
}

func TestPutItem_Errors(t *testing.T) {
	inner := &mockLookup{items: map[int64]item.Metadata{}}
	c, err := New(inner, 8, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := c.PutItem(context.Background(), item.New(1, "x", "", "")); !errors.Is(err, errReadOnly) {
		t.Errorf("err = %v, want errReadOnly", err)
	}

	c.WithWriter(&mockWriter{inner: inner, err: domain.ErrStoreUnavailable})
	if err := c.PutItem(context.Background(), item.New(1, "x", "", "")); !errors.Is(err, domain.ErrStoreUnavailable) {
		t.Errorf("err = %v, want ErrStoreUnavailable", err)
	}
}
