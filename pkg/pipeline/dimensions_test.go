package pipeline

import (
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/meloslabs/streamlake/pkg/model"
	"github.com/meloslabs/streamlake/pkg/source"
)

func strp(s string) *string     { return &s }
func floatp(f float64) *float64 { return &f }

func catalogRecord(songID, title, artistID, artistName string, year int, duration float64) model.CatalogRecord {
	return model.CatalogRecord{
		SongID:     songID,
		Title:      title,
		ArtistID:   artistID,
		ArtistName: artistName,
		NumSongs:   1,
		Year:       year,
		Duration:   duration,
	}
}

func TestBuildSongs(t *testing.T) {
	catalog := []model.CatalogRecord{
		catalogRecord("SO1", "Alpha", "AR1", "Ann", 2001, 100.5),
		catalogRecord("SO1", "Alpha", "AR1", "Ann", 2001, 100.5), // exact duplicate
		catalogRecord("SO1", "Alpha", "AR1", "Ann", 1999, 100.5), // same key, different year
		catalogRecord("SO2", "Bravo", "AR1", "Ann", 2002, 200.25),
	}

	rows := BuildSongs(catalog)
	require.Equal(t, []model.SongRow{
		{SongID: "SO1", Title: "Alpha", ArtistID: "AR1", Year: 2001, Duration: 100.5},
		{SongID: "SO1", Title: "Alpha", ArtistID: "AR1", Year: 1999, Duration: 100.5},
		{SongID: "SO2", Title: "Bravo", ArtistID: "AR1", Year: 2002, Duration: 200.25},
	}, rows)
}

func TestBuildArtists(t *testing.T) {
	withLoc := catalogRecord("SO1", "Alpha", "AR1", "Ann", 2001, 100.5)
	withLoc.ArtistLocation = strp("Chicago")
	withLoc.ArtistLatitude = floatp(41.88)
	withLoc.ArtistLongitude = floatp(-87.63)

	noLoc := catalogRecord("SO2", "Bravo", "AR2", "Bob", 2002, 200.25)

	rows := BuildArtists([]model.CatalogRecord{withLoc, withLoc, noLoc})
	require.Equal(t, []model.ArtistRow{
		{
			ArtistID:  "AR1",
			Name:      "Ann",
			Location:  sql.NullString{String: "Chicago", Valid: true},
			Latitude:  sql.NullFloat64{Float64: 41.88, Valid: true},
			Longitude: sql.NullFloat64{Float64: -87.63, Valid: true},
		},
		{ArtistID: "AR2", Name: "Bob"},
	}, rows)
}

func nextSong(userID, level string, ts int64) model.ActivityRecord {
	return model.ActivityRecord{
		Page:   model.PageNextSong,
		UserID: strp(userID),
		Level:  level,
		TS:     ts,
	}
}

func TestBuildUsers(t *testing.T) {
	anonymous := model.ActivityRecord{Page: model.PageNextSong, Level: "free", TS: 3}
	shards := []source.EventShard{
		{Shard: 0, Events: []model.ActivityRecord{
			nextSong("15", "paid", 1),
			nextSong("15", "paid", 2), // duplicate tuple
			anonymous,
		}},
		{Shard: 1, Events: []model.ActivityRecord{
			nextSong("15", "free", 4), // same user, different level: kept
			nextSong("20", "free", 5),
		}},
	}

	rows := BuildUsers(shards)
	require.Equal(t, []model.UserRow{
		{UserID: "15", Level: "paid"},
		{UserID: "15", Level: "free"},
		{UserID: "20", Level: "free"},
	}, rows)
}

func TestBuildTime(t *testing.T) {
	ts := int64(1541105830796)
	shards := []source.EventShard{
		{Shard: 0, Events: []model.ActivityRecord{
			nextSong("15", "paid", ts),
			nextSong("20", "free", ts), // same timestamp, one row
			nextSong("15", "paid", ts+1000),
		}},
	}

	rows := BuildTime(shards)
	require.Len(t, rows, 2)
	require.Equal(t, model.TimeRow{
		StartTime: time.Date(2018, 11, 1, 21, 37, 10, 796e6, time.UTC),
		Hour:      21,
		Day:       1,
		Week:      44,
		Month:     11,
		Year:      2018,
		Weekday:   5,
	}, rows[0])
	require.Equal(t, time.Date(2018, 11, 1, 21, 37, 11, 796e6, time.UTC), rows[1].StartTime)
}
