// Package rating implements the rating store adapter: loading every rating,
// upserting single ratings and resolving item metadata. Two backends exist,
// a hash-per-rating key-value layout (Redis/Valkey) and PostgreSQL via gorm.
// Backend failures surface as domain.ErrStoreUnavailable.
package rating

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/recdex/internal/db"
	"github.com/kailas-cloud/recdex/internal/domain"
	"github.com/kailas-cloud/recdex/internal/domain/item"
	domrating "github.com/kailas-cloud/recdex/internal/domain/rating"
)

const loadChunk = 500

// hashStore is the consumer interface for the key-value backend (ISP).
type hashStore interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HSetMulti(ctx context.Context, items []db.HashSetItem) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)
	Scan(ctx context.Context, pattern string) ([]string, error)
}

// KVRepo stores ratings and item metadata as hashes.
type KVRepo struct {
	store  hashStore
	logger *zap.Logger
}

// NewKV creates a key-value backed repository.
func NewKV(s hashStore, logger *zap.Logger) *KVRepo {
	return &KVRepo{store: s, logger: logger}
}

// LoadAll scans every rating hash. Unparseable hashes are skipped with a warning.
func (r *KVRepo) LoadAll(ctx context.Context) ([]domrating.Rating, error) {
	keys, err := r.store.Scan(ctx, ratingKeyPrefix+"*")
	if err != nil {
		return nil, unavailable("scan ratings", err)
	}

	out := make([]domrating.Rating, 0, len(keys))
	for start := 0; start < len(keys); start += loadChunk {
		chunk := keys[start:min(start+loadChunk, len(keys))]
		hashes, err := r.store.HGetAllMulti(ctx, chunk)
		if err != nil {
			return nil, unavailable("load ratings", err)
		}
		for i, m := range hashes {
			if m == nil {
				continue // deleted between SCAN and HGETALL
			}
			rt, err := parseRatingFields(m)
			if err != nil {
				r.logger.Warn("Skipping malformed rating", zap.String("key", chunk[i]), zap.Error(err))
				continue
			}
			out = append(out, rt)
		}
	}
	return out, nil
}

// Append upserts one rating.
func (r *KVRepo) Append(ctx context.Context, rt domrating.Rating) error {
	if err := r.store.HSet(ctx, ratingKey(rt.UserID(), rt.ItemID()), buildRatingFields(rt)); err != nil {
		return unavailable("append rating", err)
	}
	return nil
}

// AppendMany upserts ratings in one pipelined round-trip.
func (r *KVRepo) AppendMany(ctx context.Context, ratings []domrating.Rating) error {
	items := make([]db.HashSetItem, len(ratings))
	for i, rt := range ratings {
		items[i] = db.HashSetItem{Key: ratingKey(rt.UserID(), rt.ItemID()), Fields: buildRatingFields(rt)}
	}
	if err := r.store.HSetMulti(ctx, items); err != nil {
		return unavailable("append ratings", err)
	}
	return nil
}

// LookupItem returns metadata or domain.ErrItemNotFound. A hash lacking the
// title or external id counts as missing.
func (r *KVRepo) LookupItem(ctx context.Context, itemID int64) (item.Metadata, error) {
	m, err := r.store.HGetAll(ctx, itemKey(itemID))
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return item.Metadata{}, fmt.Errorf("item %d: %w", itemID, domain.ErrItemNotFound)
		}
		return item.Metadata{}, unavailable("lookup item", err)
	}
	meta := parseItemFields(itemID, m)
	if meta.Title() == "" || meta.ExternalID() == "" {
		return item.Metadata{}, fmt.Errorf("item %d incomplete: %w", itemID, domain.ErrItemNotFound)
	}
	return meta, nil
}

// PutItem upserts item metadata.
func (r *KVRepo) PutItem(ctx context.Context, m item.Metadata) error {
	if err := r.store.HSet(ctx, itemKey(m.ID()), buildItemFields(m)); err != nil {
		return unavailable("put item", err)
	}
	return nil
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, domain.ErrStoreUnavailable, err)
}
