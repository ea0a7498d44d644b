// Package pipeline builds the deduplicated dimension tables and the
// surrogate-keyed songplays fact table from raw catalog and activity records.
package pipeline

import (
	"github.com/meloslabs/streamlake/pkg/model"
	"github.com/meloslabs/streamlake/pkg/source"
)

// BuildSongs projects the catalog into the songs dimension, deduplicating on
// the full row tuple. Two rows sharing a song_id but differing elsewhere both
// survive; dedup is tuple-level, not key-level.
func BuildSongs(catalog []model.CatalogRecord) []model.SongRow {
	seen := make(map[model.SongRow]struct{}, len(catalog))
	rows := make([]model.SongRow, 0, len(catalog))
	for _, rec := range catalog {
		row := model.SongRow{
			SongID:   rec.SongID,
			Title:    rec.Title,
			ArtistID: rec.ArtistID,
			Year:     rec.Year,
			Duration: rec.Duration,
		}
		if _, ok := seen[row]; ok {
			continue
		}
		seen[row] = struct{}{}
		rows = append(rows, row)
	}
	return rows
}

// BuildArtists projects the catalog into the artists dimension with
// full-tuple dedup.
func BuildArtists(catalog []model.CatalogRecord) []model.ArtistRow {
	seen := make(map[model.ArtistRow]struct{}, len(catalog))
	rows := make([]model.ArtistRow, 0, len(catalog))
	for _, rec := range catalog {
		row := model.ArtistRow{
			ArtistID:  rec.ArtistID,
			Name:      rec.ArtistName,
			Location:  model.NullStringFrom(rec.ArtistLocation),
			Latitude:  model.NullFloat64From(rec.ArtistLatitude),
			Longitude: model.NullFloat64From(rec.ArtistLongitude),
		}
		if _, ok := seen[row]; ok {
			continue
		}
		seen[row] = struct{}{}
		rows = append(rows, row)
	}
	return rows
}

// BuildUsers builds the users dimension from distinct
// (user_id, first_name, last_name, gender, level) tuples of filtered events.
// A user seen under more than one level keeps one row per distinct tuple.
func BuildUsers(shards []source.EventShard) []model.UserRow {
	seen := make(map[model.UserRow]struct{})
	var rows []model.UserRow
	for _, shard := range shards {
		for _, event := range shard.Events {
			if event.UserID == nil {
				continue
			}
			row := model.UserRow{
				UserID:    *event.UserID,
				FirstName: model.NullStringFrom(event.FirstName),
				LastName:  model.NullStringFrom(event.LastName),
				Gender:    model.NullStringFrom(event.Gender),
				Level:     event.Level,
			}
			if _, ok := seen[row]; ok {
				continue
			}
			seen[row] = struct{}{}
			rows = append(rows, row)
		}
	}
	return rows
}

// BuildTime derives the time dimension from filtered events, one row per
// distinct start_time.
func BuildTime(shards []source.EventShard) []model.TimeRow {
	seen := make(map[int64]struct{})
	var rows []model.TimeRow
	for _, shard := range shards {
		for _, event := range shard.Events {
			if _, ok := seen[event.TS]; ok {
				continue
			}
			seen[event.TS] = struct{}{}
			rows = append(rows, model.TimePartsFromMillis(event.TS))
		}
	}
	return rows
}
