package postgres

// RatingRow maps the ratings table. (userId, movieId) is the primary key.
type RatingRow struct {
	UserID    int64   `gorm:"column:userId;primaryKey"`
	MovieID   int64   `gorm:"column:movieId;primaryKey"`
	Rating    float64 `gorm:"column:rating"`
	Timestamp int64   `gorm:"column:timestamp"`
}

func (RatingRow) TableName() string { return "ratings" }

// MovieRow maps the movies table.
type MovieRow struct {
	MovieID int64  `gorm:"column:movieId;primaryKey;autoIncrement:false"`
	Title   string `gorm:"column:title"`
	Genres  string `gorm:"column:genres"`
}

func (MovieRow) TableName() string { return "movies" }

// LinkRow maps the links table holding external catalog ids.
type LinkRow struct {
	MovieID int64  `gorm:"column:movieId;primaryKey;autoIncrement:false"`
	ImdbID  *int64 `gorm:"column:imdbId"`
	TmdbID  *int64 `gorm:"column:tmdbId"`
}

func (LinkRow) TableName() string { return "links" }

// ItemRow is the movies JOIN links projection used for metadata lookups.
type ItemRow struct {
	MovieID int64  `gorm:"column:movieId"`
	Title   string `gorm:"column:title"`
	Genres  string `gorm:"column:genres"`
	ImdbID  *int64 `gorm:"column:imdbId"`
}
