package pipeline

import (
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"

	"github.com/jonboulle/clockwork"

	"github.com/meloslabs/streamlake/pkg/duck"
	"github.com/meloslabs/streamlake/pkg/metrics"
	"github.com/meloslabs/streamlake/pkg/model"
	"github.com/meloslabs/streamlake/pkg/source"
)

// Config holds everything the pipeline needs, passed explicitly; no component
// reads ambient process state.
type Config struct {
	Logger *slog.Logger
	Clock  clockwork.Clock

	CatalogStore   source.ObjectStore
	CatalogPrefix  string
	ActivityStore  source.ObjectStore
	ActivityPrefix string
	Workers        int

	DB *duck.DB
}

func (c *Config) Validate() error {
	if c.Logger == nil {
		return fmt.Errorf("logger is required")
	}
	if c.Clock == nil {
		return fmt.Errorf("clock is required")
	}
	if c.CatalogStore == nil {
		return fmt.Errorf("catalog store is required")
	}
	if c.ActivityStore == nil {
		return fmt.Errorf("activity store is required")
	}
	if c.Workers <= 0 {
		return fmt.Errorf("workers must be positive, got %d", c.Workers)
	}
	if c.DB == nil {
		return fmt.Errorf("db is required")
	}
	return nil
}

// Pipeline runs the two transformation stages: catalog to songs/artists, then
// activity to users/time/songplays. Data flows strictly forward; nothing
// reads back what the writer persisted in the same run.
type Pipeline struct {
	log *slog.Logger
	cfg Config
}

func New(cfg Config) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Pipeline{log: cfg.Logger, cfg: cfg}, nil
}

func (p *Pipeline) Run(ctx context.Context) error {
	started := p.cfg.Clock.Now()

	conn, err := p.cfg.DB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to open writer connection: %w", err)
	}
	defer func() {
		if err := conn.Close(); err != nil {
			p.log.Error("failed to close writer connection", "error", err)
		}
	}()

	catalog, err := p.runCatalogStage(ctx, conn)
	if err != nil {
		return err
	}
	if err := p.runActivityStage(ctx, conn, catalog); err != nil {
		return err
	}

	p.log.Info("pipeline run complete", "duration", p.cfg.Clock.Since(started).String())
	return nil
}

// runCatalogStage reads the song catalog and persists the songs and artists
// dimensions. The catalog records are returned for the fact join.
func (p *Pipeline) runCatalogStage(ctx context.Context, conn duck.Connection) ([]model.CatalogRecord, error) {
	reader, err := source.NewCatalogReader(source.CatalogReaderConfig{
		Logger:  p.log,
		Store:   p.cfg.CatalogStore,
		Prefix:  p.cfg.CatalogPrefix,
		Workers: p.cfg.Workers,
	})
	if err != nil {
		return nil, err
	}
	catalog, err := reader.Read(ctx)
	if err != nil {
		return nil, err
	}
	metrics.RecordsDecoded.WithLabelValues("catalog").Add(float64(len(catalog)))

	songs := BuildSongs(catalog)
	if err := p.writeSongs(ctx, conn, songs); err != nil {
		return nil, err
	}

	artists := BuildArtists(catalog)
	if err := p.writeArtists(ctx, conn, artists); err != nil {
		return nil, err
	}

	return catalog, nil
}

// runActivityStage reads the activity log, filters to song-played events and
// persists users, time and songplays.
func (p *Pipeline) runActivityStage(ctx context.Context, conn duck.Connection, catalog []model.CatalogRecord) error {
	reader, err := source.NewActivityReader(source.ActivityReaderConfig{
		Logger:  p.log,
		Store:   p.cfg.ActivityStore,
		Prefix:  p.cfg.ActivityPrefix,
		Workers: p.cfg.Workers,
	})
	if err != nil {
		return err
	}
	shards, err := reader.Read(ctx)
	if err != nil {
		return err
	}

	total := countEvents(shards)
	metrics.RecordsDecoded.WithLabelValues("activity").Add(float64(total))

	filtered := source.FilterNextSong(shards)
	kept := countEvents(filtered)
	metrics.EventsFiltered.Add(float64(total - kept))
	p.log.Info("filtered activity events", "total", total, "kept", kept)

	users := BuildUsers(filtered)
	if err := p.writeUsers(ctx, conn, users); err != nil {
		return err
	}

	times := BuildTime(filtered)
	if err := p.writeTime(ctx, conn, times); err != nil {
		return err
	}

	songplays := BuildSongplays(p.log, filtered, catalog)
	metrics.JoinMatched.Add(float64(len(songplays)))
	metrics.JoinUnmatched.Add(float64(kept - len(songplays)))
	return p.writeSongplays(ctx, conn, songplays)
}

func countEvents(shards []source.EventShard) int {
	n := 0
	for _, shard := range shards {
		n += len(shard.Events)
	}
	return n
}

func (p *Pipeline) writeSongs(ctx context.Context, conn duck.Connection, rows []model.SongRow) error {
	cfg := duck.TableConfig{
		Name: "songs",
		Columns: []string{
			"song_id:VARCHAR",
			"title:VARCHAR",
			"artist_id:VARCHAR",
			"year:INTEGER",
			"duration:DOUBLE",
		},
		PartitionBy: []string{"year", "artist_id"},
	}
	err := duck.WriteTable(ctx, p.log, conn, p.cfg.DB.StorageRoot(), cfg, len(rows), func(w *csv.Writer, i int) error {
		r := rows[i]
		return w.Write([]string{r.SongID, r.Title, r.ArtistID, csvInt(r.Year), csvFloat(r.Duration)})
	})
	if err != nil {
		return fmt.Errorf("failed to write songs: %w", err)
	}
	metrics.RowsWritten.WithLabelValues("songs").Add(float64(len(rows)))
	return nil
}

func (p *Pipeline) writeArtists(ctx context.Context, conn duck.Connection, rows []model.ArtistRow) error {
	cfg := duck.TableConfig{
		Name: "artists",
		Columns: []string{
			"artist_id:VARCHAR",
			"name:VARCHAR",
			"location:VARCHAR",
			"latitude:DOUBLE",
			"longitude:DOUBLE",
		},
	}
	err := duck.WriteTable(ctx, p.log, conn, p.cfg.DB.StorageRoot(), cfg, len(rows), func(w *csv.Writer, i int) error {
		r := rows[i]
		return w.Write([]string{r.ArtistID, r.Name, csvNullString(r.Location), csvNullFloat(r.Latitude), csvNullFloat(r.Longitude)})
	})
	if err != nil {
		return fmt.Errorf("failed to write artists: %w", err)
	}
	metrics.RowsWritten.WithLabelValues("artists").Add(float64(len(rows)))
	return nil
}

func (p *Pipeline) writeUsers(ctx context.Context, conn duck.Connection, rows []model.UserRow) error {
	cfg := duck.TableConfig{
		Name: "users",
		Columns: []string{
			"user_id:VARCHAR",
			"first_name:VARCHAR",
			"last_name:VARCHAR",
			"gender:VARCHAR",
			"level:VARCHAR",
		},
	}
	err := duck.WriteTable(ctx, p.log, conn, p.cfg.DB.StorageRoot(), cfg, len(rows), func(w *csv.Writer, i int) error {
		r := rows[i]
		return w.Write([]string{r.UserID, csvNullString(r.FirstName), csvNullString(r.LastName), csvNullString(r.Gender), r.Level})
	})
	if err != nil {
		return fmt.Errorf("failed to write users: %w", err)
	}
	metrics.RowsWritten.WithLabelValues("users").Add(float64(len(rows)))
	return nil
}

func (p *Pipeline) writeTime(ctx context.Context, conn duck.Connection, rows []model.TimeRow) error {
	cfg := duck.TableConfig{
		Name: "time",
		Columns: []string{
			"start_time:TIMESTAMP",
			"hour:INTEGER",
			"day:INTEGER",
			"week:INTEGER",
			"month:INTEGER",
			"year:INTEGER",
			"weekday:INTEGER",
		},
		PartitionBy: []string{"year", "month"},
	}
	err := duck.WriteTable(ctx, p.log, conn, p.cfg.DB.StorageRoot(), cfg, len(rows), func(w *csv.Writer, i int) error {
		r := rows[i]
		return w.Write([]string{
			csvTime(r.StartTime),
			csvInt(r.Hour), csvInt(r.Day), csvInt(r.Week),
			csvInt(r.Month), csvInt(r.Year), csvInt(r.Weekday),
		})
	})
	if err != nil {
		return fmt.Errorf("failed to write time: %w", err)
	}
	metrics.RowsWritten.WithLabelValues("time").Add(float64(len(rows)))
	return nil
}

func (p *Pipeline) writeSongplays(ctx context.Context, conn duck.Connection, rows []model.SongplayRow) error {
	cfg := duck.TableConfig{
		Name: "songplays",
		Columns: []string{
			"songplay_id:BIGINT",
			"start_time:TIMESTAMP",
			"user_id:VARCHAR",
			"level:VARCHAR",
			"song_id:VARCHAR",
			"artist_id:VARCHAR",
			"session_id:INTEGER",
			"location:VARCHAR",
			"user_agent:VARCHAR",
			"year:INTEGER",
			"month:INTEGER",
		},
		PartitionBy: []string{"year", "month"},
	}
	err := duck.WriteTable(ctx, p.log, conn, p.cfg.DB.StorageRoot(), cfg, len(rows), func(w *csv.Writer, i int) error {
		r := rows[i]
		return w.Write([]string{
			csvInt64(r.SongplayID),
			csvTime(r.StartTime),
			csvNullString(r.UserID),
			r.Level,
			r.SongID,
			r.ArtistID,
			csvInt(r.SessionID),
			csvNullString(r.Location),
			csvNullString(r.UserAgent),
			csvInt(r.Year), csvInt(r.Month),
		})
	})
	if err != nil {
		return fmt.Errorf("failed to write songplays: %w", err)
	}
	metrics.RowsWritten.WithLabelValues("songplays").Add(float64(len(rows)))
	return nil
}
