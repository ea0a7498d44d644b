package model

import (
	"database/sql"
	"time"
)

// Dimension and fact rows. All row types are comparable so the builders can
// deduplicate on the full tuple with a plain set; nullable columns use the
// database/sql Null wrappers to keep NULL distinct from the zero value.

// SongRow is one row of the songs dimension.
type SongRow struct {
	SongID   string
	Title    string
	ArtistID string
	Year     int
	Duration float64
}

// ArtistRow is one row of the artists dimension.
type ArtistRow struct {
	ArtistID  string
	Name      string
	Location  sql.NullString
	Latitude  sql.NullFloat64
	Longitude sql.NullFloat64
}

// UserRow is one row of the users dimension. A user that appears with more
// than one level across events yields one row per distinct tuple; no
// last-write-wins ordering is imposed.
type UserRow struct {
	UserID    string
	FirstName sql.NullString
	LastName  sql.NullString
	Gender    sql.NullString
	Level     string
}

// TimeRow is one row of the time dimension. Every field other than StartTime
// is a pure function of StartTime.
type TimeRow struct {
	StartTime time.Time
	Hour      int
	Day       int
	Week      int
	Month     int
	Year      int
	Weekday   int
}

// SongplayRow is one row of the songplays fact table. Year and Month are
// derived from StartTime and exist for partition layout only.
type SongplayRow struct {
	SongplayID int64
	StartTime  time.Time
	UserID     sql.NullString
	Level      string
	SongID     string
	ArtistID   string
	SessionID  int
	Location   sql.NullString
	UserAgent  sql.NullString
	Year       int
	Month      int
}

// NullStringFrom converts an optional JSON string into its SQL representation.
func NullStringFrom(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// NullFloat64From converts an optional JSON number into its SQL representation.
func NullFloat64From(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}
