package rating

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/kailas-cloud/recdex/internal/domain"
	"github.com/kailas-cloud/recdex/internal/domain/item"
	domrating "github.com/kailas-cloud/recdex/internal/domain/rating"
)

var (
	ratingKeyPrefix = domain.KeyPrefix + "rating:"
	itemKeyPrefix   = domain.KeyPrefix + "item:"
)

const (
	fieldUser       = "user_id"
	fieldItem       = "item_id"
	fieldScore      = "score"
	fieldTimestamp  = "timestamp"
	fieldTitle      = "title"
	fieldExternalID = "external_id"
	fieldGenres     = "genres"
)

// ratingKey is one hash per (user, item) pair, so a second write upserts.
func ratingKey(userID, itemID int64) string {
	return ratingKeyPrefix + strconv.FormatInt(userID, 10) + ":" + strconv.FormatInt(itemID, 10)
}

func itemKey(itemID int64) string {
	return itemKeyPrefix + strconv.FormatInt(itemID, 10)
}

func buildRatingFields(r domrating.Rating) map[string]string {
	return map[string]string{
		fieldUser:      strconv.FormatInt(r.UserID(), 10),
		fieldItem:      strconv.FormatInt(r.ItemID(), 10),
		fieldScore:     strconv.FormatFloat(r.Score(), 'f', -1, 64),
		fieldTimestamp: strconv.FormatInt(r.Timestamp(), 10),
	}
}

func parseRatingFields(m map[string]string) (domrating.Rating, error) {
	user, err := strconv.ParseInt(m[fieldUser], 10, 64)
	if err != nil {
		return domrating.Rating{}, fmt.Errorf("parse %s: %w", fieldUser, err)
	}
	itemID, err := strconv.ParseInt(m[fieldItem], 10, 64)
	if err != nil {
		return domrating.Rating{}, fmt.Errorf("parse %s: %w", fieldItem, err)
	}
	score, err := strconv.ParseFloat(m[fieldScore], 64)
	if err != nil {
		return domrating.Rating{}, fmt.Errorf("parse %s: %w", fieldScore, err)
	}
	var ts int64
	if raw := m[fieldTimestamp]; raw != "" {
		if ts, err = strconv.ParseInt(raw, 10, 64); err != nil {
			return domrating.Rating{}, fmt.Errorf("parse %s: %w", fieldTimestamp, err)
		}
	}
	return domrating.New(user, itemID, score, ts)
}

func buildItemFields(m item.Metadata) map[string]string {
	return map[string]string{
		fieldTitle:      m.Title(),
		fieldExternalID: m.ExternalID(),
		fieldGenres:     m.Genres(),
	}
}

func parseItemFields(id int64, m map[string]string) item.Metadata {
	return item.New(id, m[fieldTitle], m[fieldExternalID], m[fieldGenres])
}

// parseExternalID accepts the numeric catalog id, with or without the "tt" prefix.
func parseExternalID(s string) (int64, bool) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "tt")
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil || v < 0 {
		return 0, false
	}
	return v, true
}
