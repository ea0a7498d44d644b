package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meloslabs/streamlake/pkg/model"
	"github.com/meloslabs/streamlake/pkg/pipeline"
	"github.com/meloslabs/streamlake/pkg/source"
)

const (
	insertSongSQL = `INSERT INTO songs (song_id, title, artist_id, year, duration)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (song_id) DO NOTHING`

	insertArtistSQL = `INSERT INTO artists (artist_id, name, location, latitude, longitude)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (artist_id) DO NOTHING`

	insertUserSQL = `INSERT INTO users (user_id, first_name, last_name, gender, level)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id) DO NOTHING`

	insertTimeSQL = `INSERT INTO time (start_time, hour, day, week, month, year, weekday)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (start_time) DO NOTHING`

	insertSongplaySQL = `INSERT INTO songplays
		(songplay_id, start_time, user_id, level, song_id, artist_id,
		 session_id, location, user_agent)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (songplay_id) DO NOTHING`

	// selectSongSQL resolves an event to the catalog on the exact
	// (title, artist name, duration) triple.
	selectSongSQL = `SELECT s.song_id, s.artist_id
		FROM songs s
		JOIN artists a ON s.artist_id = a.artist_id
		WHERE s.title = $1 AND a.name = $2 AND s.duration = $3`
)

// SelectSong looks up the catalog keys for one played song. ok is false when
// the catalog has no matching triple.
func SelectSong(ctx context.Context, tx pgx.Tx, title, artist string, duration float64) (songID, artistID string, ok bool, err error) {
	err = tx.QueryRow(ctx, selectSongSQL, title, artist, duration).Scan(&songID, &artistID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", "", false, nil
	}
	if err != nil {
		return "", "", false, fmt.Errorf("failed to select song: %w", err)
	}
	return songID, artistID, true, nil
}

// Loader writes the dimensional model into Postgres.
type Loader struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

// NewLoader creates a Loader on top of an existing pool.
func NewLoader(log *slog.Logger, pool *pgxpool.Pool) *Loader {
	return &Loader{log: log, pool: pool}
}

// Load builds the dimensions from the raw records and inserts everything,
// schema included, in a single transaction. Songplays resolve their catalog
// keys through SelectSong against the songs and artists rows written moments
// earlier in the same transaction; events without a match are skipped.
func (l *Loader) Load(ctx context.Context, catalog []model.CatalogRecord, shards []source.EventShard) error {
	start := time.Now()

	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := EnsureSchema(ctx, tx); err != nil {
		return err
	}

	filtered := source.FilterNextSong(shards)

	if err := l.loadDimensions(ctx, tx, catalog, filtered); err != nil {
		return err
	}
	if err := l.loadSongplays(ctx, tx, filtered); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit load: %w", err)
	}
	l.log.Info("store load complete", "duration", time.Since(start))
	return nil
}

func (l *Loader) loadDimensions(ctx context.Context, tx pgx.Tx, catalog []model.CatalogRecord, filtered []source.EventShard) error {
	songs := pipeline.BuildSongs(catalog)
	for _, row := range songs {
		if _, err := tx.Exec(ctx, insertSongSQL,
			row.SongID, row.Title, row.ArtistID, row.Year, row.Duration); err != nil {
			return fmt.Errorf("failed to insert song %s: %w", row.SongID, err)
		}
	}

	artists := pipeline.BuildArtists(catalog)
	for _, row := range artists {
		if _, err := tx.Exec(ctx, insertArtistSQL,
			row.ArtistID, row.Name, row.Location, row.Latitude, row.Longitude); err != nil {
			return fmt.Errorf("failed to insert artist %s: %w", row.ArtistID, err)
		}
	}

	// The user_id primary key plus DO NOTHING keeps the first tuple seen
	// for a user whose level changes mid-dataset.
	users := pipeline.BuildUsers(filtered)
	for _, row := range users {
		if _, err := tx.Exec(ctx, insertUserSQL,
			row.UserID, row.FirstName, row.LastName, row.Gender, row.Level); err != nil {
			return fmt.Errorf("failed to insert user %s: %w", row.UserID, err)
		}
	}

	times := pipeline.BuildTime(filtered)
	for _, row := range times {
		if _, err := tx.Exec(ctx, insertTimeSQL,
			row.StartTime, row.Hour, row.Day, row.Week, row.Month, row.Year, row.Weekday); err != nil {
			return fmt.Errorf("failed to insert time %s: %w", row.StartTime, err)
		}
	}

	l.log.Debug("dimensions loaded",
		"songs", len(songs), "artists", len(artists), "users", len(users), "time", len(times))
	return nil
}

func (l *Loader) loadSongplays(ctx context.Context, tx pgx.Tx, filtered []source.EventShard) error {
	matched, dropped := 0, 0
	for _, shard := range filtered {
		var seq int64
		for _, event := range shard.Events {
			if event.Song == nil || event.Artist == nil || event.Length == nil {
				dropped++
				continue
			}
			songID, artistID, ok, err := SelectSong(ctx, tx, *event.Song, *event.Artist, *event.Length)
			if err != nil {
				return err
			}
			if !ok {
				dropped++
				continue
			}
			if _, err := tx.Exec(ctx, insertSongplaySQL,
				pipeline.SurrogateKey(shard.Shard, seq),
				model.StartTime(event.TS),
				model.NullStringFrom(event.UserID),
				event.Level,
				songID,
				artistID,
				event.SessionID,
				model.NullStringFrom(event.Location),
				model.NullStringFrom(event.UserAgent)); err != nil {
				return fmt.Errorf("failed to insert songplay: %w", err)
			}
			seq++
			matched++
		}
	}
	l.log.Debug("songplays loaded", "matched", matched, "unmatched", dropped)
	return nil
}
