package pipeline

import (
	"log/slog"

	"github.com/meloslabs/streamlake/pkg/model"
	"github.com/meloslabs/streamlake/pkg/source"
)

// shardSeqBits is the width of the per-shard sequence in a songplay_id. The
// shard index occupies the high bits, so keys are unique across shards
// without coordination; gaps between shards are expected.
const shardSeqBits = 33

// SurrogateKey composes a songplay_id from a shard index and that shard's
// local sequence number.
func SurrogateKey(shard int, seq int64) int64 {
	return int64(shard)<<shardSeqBits | seq
}

// joinKey is the equality predicate joining an event to the catalog. Duration
// matching is exact float64 equality, as in the source; rounding drift on
// either side silently drops the match.
type joinKey struct {
	Title    string
	Artist   string
	Duration float64
}

type catalogRef struct {
	SongID   string
	ArtistID string
}

// BuildSongplays inner-joins filtered events to the catalog on
// (song, artist, length) == (title, artist_name, duration). Events without a
// catalog match are dropped, not errored. Each surviving row gets a
// shard-prefixed surrogate songplay_id.
func BuildSongplays(log *slog.Logger, shards []source.EventShard, catalog []model.CatalogRecord) []model.SongplayRow {
	lookup := make(map[joinKey]catalogRef, len(catalog))
	for _, rec := range catalog {
		key := joinKey{Title: rec.Title, Artist: rec.ArtistName, Duration: rec.Duration}
		if prior, ok := lookup[key]; ok {
			if prior != (catalogRef{SongID: rec.SongID, ArtistID: rec.ArtistID}) {
				log.Warn("catalog join key is ambiguous, keeping first match",
					"title", rec.Title, "artist", rec.ArtistName, "duration", rec.Duration)
			}
			continue
		}
		lookup[key] = catalogRef{SongID: rec.SongID, ArtistID: rec.ArtistID}
	}

	var rows []model.SongplayRow
	matched, dropped := 0, 0
	for _, shard := range shards {
		var seq int64
		for _, event := range shard.Events {
			if event.Song == nil || event.Artist == nil || event.Length == nil {
				dropped++
				continue
			}
			ref, ok := lookup[joinKey{Title: *event.Song, Artist: *event.Artist, Duration: *event.Length}]
			if !ok {
				dropped++
				continue
			}
			start := model.StartTime(event.TS)
			rows = append(rows, model.SongplayRow{
				SongplayID: SurrogateKey(shard.Shard, seq),
				StartTime:  start,
				UserID:     model.NullStringFrom(event.UserID),
				Level:      event.Level,
				SongID:     ref.SongID,
				ArtistID:   ref.ArtistID,
				SessionID:  event.SessionID,
				Location:   model.NullStringFrom(event.Location),
				UserAgent:  model.NullStringFrom(event.UserAgent),
				Year:       start.Year(),
				Month:      int(start.Month()),
			})
			seq++
			matched++
		}
	}
	log.Debug("songplays join complete", "matched", matched, "unmatched", dropped)
	return rows
}
