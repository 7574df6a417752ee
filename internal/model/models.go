package model

// Annotation is a user-written text note. Annotations are immutable once
// created and only ever removed by explicit delete or a full wipe.
type Annotation struct {
	ID        int64  `json:"id"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"` // creation time, unix millis
}

// LocationSample is one reading from the device location poll. Samples are
// append-only; the capture loop filters out readings identical to the
// previous sample before inserting.
type LocationSample struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Timestamp int64   `json:"timestamp"` // unix millis
}

// ContentItem is a feed entry produced by a server-side content generator.
// IDs are server-assigned. Viewed and Clicked are one-way flags: once set
// they are never reset, and only a false→true transition bumps
// LastModifiedTimestamp.
type ContentItem struct {
	ID                    int64   `json:"id"`
	ContentGeneratorID    int64   `json:"content_generator_id"`
	Title                 string  `json:"title"`
	Summary               *string `json:"summary"`
	URL                   string  `json:"url"`
	TopicLabel            *string `json:"topic_label"`
	ThumbnailURL          *string `json:"thumbnail_url"`
	PublishedDate         int64   `json:"published_date"`
	RankingScore          float64 `json:"ranking_score"`
	Score                 *int    `json:"score"` // user feedback, unset until scored
	Clicked               bool    `json:"clicked"`
	Viewed                bool    `json:"viewed"`
	URLIsLocal            bool    `json:"url_is_local"`
	GeneratorData         *string `json:"content_generator_specific_data"`
	LastModifiedTimestamp int64   `json:"last_modified_timestamp"`
}

// SyncContent is the projection of ContentItem pushed during a delta sync:
// only the fields the device can modify, to minimize transfer.
type SyncContent struct {
	ID                    int64 `json:"id"`
	LastModifiedTimestamp int64 `json:"last_modified_timestamp"`
	Viewed                bool  `json:"viewed"`
	Score                 int   `json:"score"`
	Clicked               bool  `json:"clicked"`
}

// ContentRanking is one entry of a bulk ranking-score update from the server.
type ContentRanking struct {
	ID           int64   `json:"content_id"`
	RankingScore float64 `json:"ranking_score"`
}

// Query is an ancillary server-side query and its (possibly pending) result.
type Query struct {
	Query  string `json:"query"`
	Result string `json:"result"`
}
