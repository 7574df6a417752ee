package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"hindsight/internal/core"
	"hindsight/internal/model"
	"hindsight/internal/store/migrations"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteStore implements core.Store using SQLite.
type SQLiteStore struct {
	db    *sql.DB
	clock core.Clock
	path  string
}

// NewSQLiteStore opens a SQLite store at path, runs pending migrations and
// verifies the schema version. path can be ":memory:" for an in-memory store.
func NewSQLiteStore(path string, clock core.Clock) (*SQLiteStore, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}

	if err := migrations.Up(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating store: %w", err)
	}
	if err := migrations.Check(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("store schema out of date: %w", err)
	}

	return &SQLiteStore{db: db, clock: clock, path: path}, nil
}

// NewSQLiteStoreFromDB wraps an existing connection. The caller is
// responsible for the connection's configuration and schema.
func NewSQLiteStoreFromDB(db *sql.DB, clock core.Clock) *SQLiteStore {
	return &SQLiteStore{db: db, clock: clock}
}

// OpenConnection opens and configures a SQLite connection with the PRAGMAs
// the store relies on. Exported for tools and tests.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	// SQLite ships with foreign keys OFF for backward compatibility.
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	return db, nil
}

var _ core.Store = (*SQLiteStore)(nil)

// Annotation operations

func (s *SQLiteStore) AddAnnotation(text string) (*model.Annotation, error) {
	ts := s.clock.Now().UnixMilli()
	res, err := s.db.Exec(
		"INSERT INTO annotations (text, timestamp) VALUES (?, ?)", text, ts)
	if err != nil {
		return nil, fmt.Errorf("inserting annotation: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("reading annotation id: %w", err)
	}
	return &model.Annotation{ID: id, Text: text, Timestamp: ts}, nil
}

func (s *SQLiteStore) Annotations(after int64) ([]*model.Annotation, error) {
	rows, err := s.db.Query(
		"SELECT id, text, timestamp FROM annotations WHERE timestamp > ? ORDER BY timestamp", after)
	if err != nil {
		return nil, fmt.Errorf("querying annotations: %w", err)
	}
	defer rows.Close()

	var out []*model.Annotation
	for rows.Next() {
		a := &model.Annotation{}
		if err := rows.Scan(&a.ID, &a.Text, &a.Timestamp); err != nil {
			return nil, fmt.Errorf("scanning annotation: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) DeleteAnnotation(id int64) error {
	if _, err := s.db.Exec("DELETE FROM annotations WHERE id = ?", id); err != nil {
		return fmt.Errorf("deleting annotation: %w", err)
	}
	return nil
}

// Location operations

func (s *SQLiteStore) AddLocation(lat, lon float64) (*model.LocationSample, error) {
	ts := s.clock.Now().UnixMilli()
	if _, err := s.db.Exec(
		"INSERT INTO locations (latitude, longitude, timestamp) VALUES (?, ?, ?)",
		lat, lon, ts); err != nil {
		return nil, fmt.Errorf("inserting location: %w", err)
	}
	return &model.LocationSample{Latitude: lat, Longitude: lon, Timestamp: ts}, nil
}

func (s *SQLiteStore) Locations(after int64) ([]*model.LocationSample, error) {
	rows, err := s.db.Query(
		"SELECT latitude, longitude, timestamp FROM locations WHERE timestamp > ? ORDER BY timestamp", after)
	if err != nil {
		return nil, fmt.Errorf("querying locations: %w", err)
	}
	defer rows.Close()

	var out []*model.LocationSample
	for rows.Next() {
		l := &model.LocationSample{}
		if err := rows.Scan(&l.Latitude, &l.Longitude, &l.Timestamp); err != nil {
			return nil, fmt.Errorf("scanning location: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) LastLocation() (*model.LocationSample, error) {
	l := &model.LocationSample{}
	err := s.db.QueryRow(
		"SELECT latitude, longitude, timestamp FROM locations ORDER BY timestamp DESC LIMIT 1").
		Scan(&l.Latitude, &l.Longitude, &l.Timestamp)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying last location: %w", err)
	}
	return l, nil
}

// Content operations

func (s *SQLiteStore) AddContentBatch(items []*model.ContentItem) error {
	if len(items) == 0 {
		return nil
	}

	ctx := context.Background()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT INTO content (
		id, content_generator_id, title, summary, url, topic_label,
		thumbnail_url, published_date, ranking_score, score, clicked, viewed,
		url_is_local, content_generator_specific_data, last_modified_timestamp
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing content insert: %w", err)
	}
	defer stmt.Close()

	for _, c := range items {
		if _, err := stmt.Exec(
			c.ID, c.ContentGeneratorID, c.Title, c.Summary, c.URL, c.TopicLabel,
			c.ThumbnailURL, c.PublishedDate, c.RankingScore, c.Score, c.Clicked,
			c.Viewed, c.URLIsLocal, c.GeneratorData, c.LastModifiedTimestamp,
		); err != nil {
			return fmt.Errorf("inserting content %d: %w", c.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing content batch: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Content(after int64, nonViewedOnly bool) ([]*model.ContentItem, error) {
	query := `SELECT id, content_generator_id, title, summary, url, topic_label,
		thumbnail_url, published_date, ranking_score, score, clicked, viewed,
		url_is_local, content_generator_specific_data, last_modified_timestamp
		FROM content WHERE last_modified_timestamp > ?`
	if nonViewedOnly {
		query += " AND viewed = 0"
	}
	query += " ORDER BY ranking_score DESC"

	rows, err := s.db.Query(query, after)
	if err != nil {
		return nil, fmt.Errorf("querying content: %w", err)
	}
	defer rows.Close()

	var out []*model.ContentItem
	for rows.Next() {
		c := &model.ContentItem{}
		if err := rows.Scan(
			&c.ID, &c.ContentGeneratorID, &c.Title, &c.Summary, &c.URL,
			&c.TopicLabel, &c.ThumbnailURL, &c.PublishedDate, &c.RankingScore,
			&c.Score, &c.Clicked, &c.Viewed, &c.URLIsLocal, &c.GeneratorData,
			&c.LastModifiedTimestamp,
		); err != nil {
			return nil, fmt.Errorf("scanning content: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// setFlag flips a one-way boolean column for the given ids inside one
// transaction. Rows that already have the flag set are untouched, so the
// operation is idempotent and only real transitions bump
// last_modified_timestamp.
func (s *SQLiteStore) setFlag(column string, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}

	ctx := context.Background()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	ts := s.clock.Now().UnixMilli()
	stmt, err := tx.Prepare(fmt.Sprintf(
		"UPDATE content SET %s = 1, last_modified_timestamp = ? WHERE id = ? AND %s = 0",
		column, column))
	if err != nil {
		return fmt.Errorf("preparing %s update: %w", column, err)
	}
	defer stmt.Close()

	for _, id := range ids {
		if _, err := stmt.Exec(ts, id); err != nil {
			return fmt.Errorf("updating %s for content %d: %w", column, id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing %s update: %w", column, err)
	}
	return nil
}

func (s *SQLiteStore) MarkViewed(ids []int64) error  { return s.setFlag("viewed", ids) }
func (s *SQLiteStore) MarkClicked(ids []int64) error { return s.setFlag("clicked", ids) }

func (s *SQLiteStore) UpdateScore(id int64, score int) error {
	ts := s.clock.Now().UnixMilli()
	if _, err := s.db.Exec(
		"UPDATE content SET score = ?, last_modified_timestamp = ? WHERE id = ?",
		score, ts, id); err != nil {
		return fmt.Errorf("updating score for content %d: %w", id, err)
	}
	return nil
}

func (s *SQLiteStore) UpdateRankingScores(rankings []*model.ContentRanking) error {
	if len(rankings) == 0 {
		return nil
	}

	ctx := context.Background()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	ts := s.clock.Now().UnixMilli()
	stmt, err := tx.Prepare(
		"UPDATE content SET ranking_score = ?, last_modified_timestamp = ? WHERE id = ?")
	if err != nil {
		return fmt.Errorf("preparing ranking update: %w", err)
	}
	defer stmt.Close()

	for _, r := range rankings {
		if _, err := stmt.Exec(r.RankingScore, ts, r.ID); err != nil {
			return fmt.Errorf("updating ranking for content %d: %w", r.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing ranking update: %w", err)
	}
	return nil
}

func (s *SQLiteStore) MaxContentID() (int64, error) {
	var id sql.NullInt64
	if err := s.db.QueryRow("SELECT MAX(id) FROM content").Scan(&id); err != nil {
		return 0, fmt.Errorf("querying max content id: %w", err)
	}
	if !id.Valid {
		return -1, nil
	}
	return id.Int64, nil
}

func (s *SQLiteStore) DirtyContent(after int64) ([]*model.SyncContent, error) {
	rows, err := s.db.Query(
		`SELECT id, last_modified_timestamp, viewed, COALESCE(score, 0), clicked
		FROM content WHERE last_modified_timestamp > ? ORDER BY id`, after)
	if err != nil {
		return nil, fmt.Errorf("querying dirty content: %w", err)
	}
	defer rows.Close()

	var out []*model.SyncContent
	for rows.Next() {
		c := &model.SyncContent{}
		if err := rows.Scan(&c.ID, &c.LastModifiedTimestamp, &c.Viewed, &c.Score, &c.Clicked); err != nil {
			return nil, fmt.Errorf("scanning dirty content: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Wipe deletes all rows from all tables in a single transaction.
func (s *SQLiteStore) Wipe() error {
	ctx := context.Background()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"annotations", "locations", "content"} {
		if _, err := tx.Exec("DELETE FROM " + table); err != nil {
			return fmt.Errorf("wiping %s: %w", table, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing wipe: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
