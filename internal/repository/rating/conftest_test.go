package rating

import (
	"context"

	"github.com/kailas-cloud/recdex/internal/db"
	"github.com/kailas-cloud/recdex/internal/domain/item"
	domrating "github.com/kailas-cloud/recdex/internal/domain/rating"
)

// mockHashStore implements the consumer interface for tests.
type mockHashStore struct {
	hsetFn         func(ctx context.Context, key string, fields map[string]string) error
	hsetMultiFn    func(ctx context.Context, items []db.HashSetItem) error
	hgetAllFn      func(ctx context.Context, key string) (map[string]string, error)
	hgetAllMultiFn func(ctx context.Context, keys []string) ([]map[string]string, error)
	scanFn         func(ctx context.Context, pattern string) ([]string, error)
}

func (m *mockHashStore) HSet(ctx context.Context, key string, fields map[string]string) error {
	if m.hsetFn != nil {
		return m.hsetFn(ctx, key, fields)
	}
	return nil
}

func (m *mockHashStore) HSetMulti(ctx context.Context, items []db.HashSetItem) error {
	if m.hsetMultiFn != nil {
		return m.hsetMultiFn(ctx, items)
	}
	return nil
}

func (m *mockHashStore) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	if m.hgetAllFn != nil {
		return m.hgetAllFn(ctx, key)
	}
	return nil, db.ErrKeyNotFound
}

func (m *mockHashStore) HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error) {
	if m.hgetAllMultiFn != nil {
		return m.hgetAllMultiFn(ctx, keys)
	}
	return make([]map[string]string, len(keys)), nil
}

func (m *mockHashStore) Scan(ctx context.Context, pattern string) ([]string, error) {
	if m.scanFn != nil {
		return m.scanFn(ctx, pattern)
	}
	return nil, nil
}

// stubStore implements Store with canned results for breaker tests.
type stubStore struct {
	err     error
	calls   int
	ratings []domrating.Rating
	meta    item.Metadata
}

func (s *stubStore) LoadAll(context.Context) ([]domrating.Rating, error) {
	s.calls++
	return s.ratings, s.err
}

func (s *stubStore) Append(context.Context, domrating.Rating) error {
	s.calls++
	return s.err
}

func (s *stubStore) AppendMany(context.Context, []domrating.Rating) error {
	s.calls++
	return s.err
}

func (s *stubStore) LookupItem(context.Context, int64) (item.Metadata, error) {
	s.calls++
	return s.meta, s.err
}

func (s *stubStore) PutItem(context.Context, item.Metadata) error {
	s.calls++
	return s.err
}
