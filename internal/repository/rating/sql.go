package rating

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/kailas-cloud/recdex/internal/db"
	"github.com/kailas-cloud/recdex/internal/db/postgres"
	"github.com/kailas-cloud/recdex/internal/domain"
	"github.com/kailas-cloud/recdex/internal/domain/item"
	domrating "github.com/kailas-cloud/recdex/internal/domain/rating"
)

const sqlBatchSize = 5000

// gormStore is the consumer interface for the relational backend (ISP).
type gormStore interface {
	DB(ctx context.Context) *gorm.DB
}

// SQLRepo reads and writes the ratings, movies and links tables.
type SQLRepo struct {
	store    gormStore
	pageSize int
}

// NewSQL creates a PostgreSQL backed repository.
func NewSQL(s gormStore) *SQLRepo {
	return &SQLRepo{store: s, pageSize: sqlBatchSize}
}

var ratingUpsert = clause.OnConflict{
	Columns:   []clause.Column{{Name: "userId"}, {Name: "movieId"}},
	DoUpdates: clause.AssignmentColumns([]string{"rating", "timestamp"}),
}

// LoadAll reads the ratings table in primary-key order, one keyset page at a time.
func (r *SQLRepo) LoadAll(ctx context.Context) ([]domrating.Rating, error) {
	var out []domrating.Rating
	var last postgres.RatingRow
	for {
		q := r.store.DB(ctx).Order(`"userId", "movieId"`).Limit(r.pageSize)
		if len(out) > 0 {
			q = q.Where(`("userId", "movieId") > (?, ?)`, last.UserID, last.MovieID)
		}
		var page []postgres.RatingRow
		if err := q.Find(&page).Error; err != nil {
			return nil, unavailable("load ratings", &db.Error{Op: db.OpSelect, Err: err})
		}
		for _, row := range page {
			out = append(out, ratingFromRow(row))
		}
		if len(page) < r.pageSize {
			return out, nil
		}
		last = page[len(page)-1]
	}
}

// Append upserts one rating (ON CONFLICT DO UPDATE).
func (r *SQLRepo) Append(ctx context.Context, rt domrating.Rating) error {
	row := ratingToRow(rt)
	if err := r.store.DB(ctx).Clauses(ratingUpsert).Create(&row).Error; err != nil {
		return unavailable("append rating", &db.Error{Op: db.OpUpsert, Err: err})
	}
	return nil
}

// AppendMany upserts ratings in batched INSERT statements. A pair repeated
// within the call keeps its last rating: one INSERT ... ON CONFLICT DO UPDATE
// may not touch the same row twice.
func (r *SQLRepo) AppendMany(ctx context.Context, ratings []domrating.Rating) error {
	if len(ratings) == 0 {
		return nil
	}
	rows := dedupeRows(ratings)
	if err := r.store.DB(ctx).Clauses(ratingUpsert).CreateInBatches(&rows, r.pageSize).Error; err != nil {
		return unavailable("append ratings", &db.Error{Op: db.OpUpsert, Err: err})
	}
	return nil
}

// LookupItem joins movies with links. A movie without a link row or external
// id is as unknown as a missing movie: both yield domain.ErrItemNotFound.
func (r *SQLRepo) LookupItem(ctx context.Context, itemID int64) (item.Metadata, error) {
	var row postgres.ItemRow
	err := r.store.DB(ctx).
		Table(`movies`).
		Select(`movies."movieId", movies.title, movies.genres, links."imdbId"`).
		Joins(`JOIN links ON links."movieId" = movies."movieId"`).
		Where(`movies."movieId" = ? AND links."imdbId" IS NOT NULL`, itemID).
		Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return item.Metadata{}, fmt.Errorf("item %d: %w", itemID, domain.ErrItemNotFound)
		}
		return item.Metadata{}, unavailable("lookup item", &db.Error{Op: db.OpSelect, Err: err})
	}
	return itemFromRow(row), nil
}

// PutItem upserts the movie and its link in one transaction.
func (r *SQLRepo) PutItem(ctx context.Context, m item.Metadata) error {
	movie, link := itemToRows(m)
	err := r.store.DB(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "movieId"}},
			DoUpdates: clause.AssignmentColumns([]string{"title", "genres"}),
		}).Create(&movie).Error; err != nil {
			return err
		}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "movieId"}},
			DoUpdates: clause.AssignmentColumns([]string{"imdbId"}),
		}).Create(&link).Error
	})
	if err != nil {
		return unavailable("put item", &db.Error{Op: db.OpUpsert, Err: err})
	}
	return nil
}

// dedupeRows keeps the last rating per (user, item) pair in first-seen order.
func dedupeRows(ratings []domrating.Rating) []postgres.RatingRow {
	rows := make([]postgres.RatingRow, 0, len(ratings))
	pos := make(map[[2]int64]int, len(ratings))
	for _, rt := range ratings {
		k := [2]int64{rt.UserID(), rt.ItemID()}
		if i, ok := pos[k]; ok {
			rows[i] = ratingToRow(rt)
			continue
		}
		pos[k] = len(rows)
		rows = append(rows, ratingToRow(rt))
	}
	return rows
}

func ratingToRow(rt domrating.Rating) postgres.RatingRow {
	return postgres.RatingRow{
		UserID:    rt.UserID(),
		MovieID:   rt.ItemID(),
		Rating:    rt.Score(),
		Timestamp: rt.Timestamp(),
	}
}

func ratingFromRow(row postgres.RatingRow) domrating.Rating {
	return domrating.Reconstruct(row.UserID, row.MovieID, row.Rating, row.Timestamp)
}

func itemFromRow(row postgres.ItemRow) item.Metadata {
	var external string
	if row.ImdbID != nil {
		external = strconv.FormatInt(*row.ImdbID, 10)
	}
	return item.New(row.MovieID, row.Title, external, row.Genres)
}

func itemToRows(m item.Metadata) (postgres.MovieRow, postgres.LinkRow) {
	movie := postgres.MovieRow{MovieID: m.ID(), Title: m.Title(), Genres: m.Genres()}
	link := postgres.LinkRow{MovieID: m.ID()}
	if v, ok := parseExternalID(m.ExternalID()); ok {
		link.ImdbID = &v
	}
	return movie, link
}
