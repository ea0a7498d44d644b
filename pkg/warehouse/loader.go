package warehouse

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/meloslabs/streamlake/pkg/model"
)

// Loader rebuilds the warehouse star schema from raw records. Each run
// truncates the staging and final tables and re-derives everything, so the
// load is idempotent without relying on multi-statement transactions.
type Loader struct {
	log  *slog.Logger
	conn Connection
}

// NewLoader creates a Loader bound to an open connection.
func NewLoader(log *slog.Logger, conn Connection) *Loader {
	return &Loader{log: log, conn: conn}
}

// Load stages the raw catalog and activity records and derives the final
// tables with SQL. A failure mid-derivation leaves the warehouse partially
// rebuilt; rerunning the load restores a consistent state.
func (l *Loader) Load(ctx context.Context, catalog []model.CatalogRecord, events []model.ActivityRecord) error {
	start := time.Now()

	if err := l.stage(ctx, catalog, events); err != nil {
		return err
	}
	if err := l.derive(ctx); err != nil {
		return err
	}

	l.log.Info("warehouse load complete",
		"catalog_records", len(catalog),
		"activity_records", len(events),
		"duration", time.Since(start))
	return nil
}

func (l *Loader) stage(ctx context.Context, catalog []model.CatalogRecord, events []model.ActivityRecord) error {
	for _, table := range []string{"staging_events", "staging_songs"} {
		if err := l.conn.Exec(ctx, fmt.Sprintf("TRUNCATE TABLE IF EXISTS %s", table)); err != nil {
			return fmt.Errorf("failed to truncate %s: %w", table, err)
		}
	}

	if err := l.stageSongs(ctx, catalog); err != nil {
		return err
	}
	return l.stageEvents(ctx, events)
}

func (l *Loader) stageSongs(ctx context.Context, catalog []model.CatalogRecord) error {
	batch, err := l.conn.PrepareBatch(ctx, `INSERT INTO staging_songs
		(artist_id, artist_latitude, artist_location, artist_longitude,
		 artist_name, duration, num_songs, song_id, title, year)`)
	if err != nil {
		return fmt.Errorf("failed to prepare staging_songs batch: %w", err)
	}

	for _, r := range catalog {
		if err := batch.Append(
			r.ArtistID,
			r.ArtistLatitude,
			r.ArtistLocation,
			r.ArtistLongitude,
			r.ArtistName,
			r.Duration,
			int32(r.NumSongs),
			r.SongID,
			r.Title,
			int32(r.Year),
		); err != nil {
			return fmt.Errorf("failed to append catalog record %s: %w", r.SongID, err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send staging_songs batch: %w", err)
	}
	l.log.Debug("staged catalog records", "count", len(catalog))
	return nil
}

func (l *Loader) stageEvents(ctx context.Context, events []model.ActivityRecord) error {
	batch, err := l.conn.PrepareBatch(ctx, `INSERT INTO staging_events
		(artist, auth, firstName, gender, itemInSession, lastName, length,
		 level, location, method, page, registration, sessionId, song,
		 status, ts, userAgent, userId)`)
	if err != nil {
		return fmt.Errorf("failed to prepare staging_events batch: %w", err)
	}

	for i, e := range events {
		if err := batch.Append(
			e.Artist,
			e.Auth,
			e.FirstName,
			e.Gender,
			int32(e.ItemInSession),
			e.LastName,
			e.Length,
			e.Level,
			e.Location,
			e.Method,
			e.Page,
			e.Registration,
			int32(e.SessionID),
			e.Song,
			int32(e.Status),
			e.TS,
			e.UserAgent,
			e.UserID,
		); err != nil {
			return fmt.Errorf("failed to append activity record %d: %w", i, err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send staging_events batch: %w", err)
	}
	l.log.Debug("staged activity records", "count", len(events))
	return nil
}

// derivationStatements rebuild each final table from staging. Order matters
// only for readability; every statement reads staging tables exclusively.
var derivationStatements = []struct {
	name  string
	query string
}{
	{
		name: "songplays",
		query: `INSERT INTO songplays
			(songplay_id, start_time, user_id, level, song_id, artist_id,
			 session_id, location, user_agent)
			SELECT
			    toInt64(rowNumberInAllBlocks()) AS songplay_id,
			    fromUnixTimestamp64Milli(e.ts, 'UTC') AS start_time,
			    e.userId AS user_id,
			    e.level AS level,
			    s.song_id AS song_id,
			    s.artist_id AS artist_id,
			    e.sessionId AS session_id,
			    e.location AS location,
			    e.userAgent AS user_agent
			FROM staging_events AS e
			INNER JOIN staging_songs AS s
			    ON e.song = s.title
			   AND e.artist = s.artist_name
			   AND e.length = s.duration
			WHERE e.page = 'NextSong'`,
	},
	{
		name: "users",
		query: `INSERT INTO users (user_id, first_name, last_name, gender, level)
			SELECT DISTINCT
			    assumeNotNull(userId) AS user_id,
			    firstName AS first_name,
			    lastName AS last_name,
			    gender,
			    level
			FROM staging_events
			WHERE page = 'NextSong' AND userId IS NOT NULL`,
	},
	{
		name: "songs",
		query: `INSERT INTO songs (song_id, title, artist_id, year, duration)
			SELECT DISTINCT song_id, title, artist_id, year, duration
			FROM staging_songs`,
	},
	{
		name: "artists",
		query: `INSERT INTO artists (artist_id, name, location, latitude, longitude)
			SELECT DISTINCT
			    artist_id,
			    artist_name AS name,
			    artist_location AS location,
			    artist_latitude AS latitude,
			    artist_longitude AS longitude
			FROM staging_songs`,
	},
	{
		name: "time",
		query: `INSERT INTO time (start_time, hour, day, week, month, year, weekday)
			SELECT DISTINCT
			    fromUnixTimestamp64Milli(ts, 'UTC') AS start_time,
			    toHour(start_time) AS hour,
			    toDayOfMonth(start_time) AS day,
			    toISOWeek(start_time) AS week,
			    toMonth(start_time) AS month,
			    toYear(start_time) AS year,
			    (toDayOfWeek(start_time) % 7) + 1 AS weekday
			FROM staging_events
			WHERE page = 'NextSong'`,
	},
}

func (l *Loader) derive(ctx context.Context) error {
	for _, stmt := range derivationStatements {
		if err := l.conn.Exec(ctx, fmt.Sprintf("TRUNCATE TABLE IF EXISTS %s", stmt.name)); err != nil {
			return fmt.Errorf("failed to truncate %s: %w", stmt.name, err)
		}
	}

	for _, stmt := range derivationStatements {
		start := time.Now()
		if err := l.conn.Exec(ctx, stmt.query); err != nil {
			return fmt.Errorf("failed to derive %s: %w", stmt.name, err)
		}
		l.log.Debug("derived table", "table", stmt.name, "duration", time.Since(start))
	}
	return nil
}
