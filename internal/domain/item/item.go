package item

// Metadata is read-only reference data for an item (title and external catalogue id).
type Metadata struct {
	id         int64
	title      string
	externalID string
	genres     string
}

// New creates item metadata.
func New(id int64, title, externalID, genres string) Metadata {
	return Metadata{id: id, title: title, externalID: externalID, genres: genres}
}

// ID returns the item identifier.
func (m Metadata) ID() int64 { return m.id }

// Title returns the display title.
func (m Metadata) Title() string { return m.title }

// ExternalID returns the id in the external catalogue (IMDb for MovieLens data).
func (m Metadata) ExternalID() string { return m.externalID }

// Genres returns the pipe-separated genre list, possibly empty.
func (m Metadata) Genres() string { return m.genres }
