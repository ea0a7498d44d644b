// Package model defines the raw input records and the dimensional rows of the
// listening-activity star schema.
package model

import "fmt"

// CatalogRecord is one raw song/artist catalog object, one JSON object per
// file. Optional fields stay as pointers so missing values surface as NULLs
// downstream.
type CatalogRecord struct {
	ArtistID        string
	ArtistLatitude  *float64
	ArtistLocation  *string
	ArtistLongitude *float64
	ArtistName      string
	Duration        float64
	NumSongs        int
	SongID          string
	Title           string
	Year            int
}

// catalogRecordJSON is the wire shape of a catalog object. Required fields
// are pointers so absence is distinguishable from a zero value.
type catalogRecordJSON struct {
	ArtistID        *string  `json:"artist_id"`
	ArtistLatitude  *float64 `json:"artist_latitude"`
	ArtistLocation  *string  `json:"artist_location"`
	ArtistLongitude *float64 `json:"artist_longitude"`
	ArtistName      *string  `json:"artist_name"`
	Duration        *float64 `json:"duration"`
	NumSongs        *int     `json:"num_songs"`
	SongID          *string  `json:"song_id"`
	Title           *string  `json:"title"`
	Year            *int     `json:"year"`
}

func (r *catalogRecordJSON) validate() error {
	switch {
	case r.ArtistID == nil:
		return fmt.Errorf("missing required field artist_id")
	case r.ArtistName == nil:
		return fmt.Errorf("missing required field artist_name")
	case r.Duration == nil:
		return fmt.Errorf("missing required field duration")
	case r.NumSongs == nil:
		return fmt.Errorf("missing required field num_songs")
	case r.SongID == nil:
		return fmt.Errorf("missing required field song_id")
	case r.Title == nil:
		return fmt.Errorf("missing required field title")
	case r.Year == nil:
		return fmt.Errorf("missing required field year")
	}
	if *r.Duration <= 0 {
		return fmt.Errorf("duration must be positive, got %v", *r.Duration)
	}
	if *r.Year < 0 {
		return fmt.Errorf("year must be non-negative, got %d", *r.Year)
	}
	return nil
}

func (r *catalogRecordJSON) record() CatalogRecord {
	return CatalogRecord{
		ArtistID:        *r.ArtistID,
		ArtistLatitude:  r.ArtistLatitude,
		ArtistLocation:  r.ArtistLocation,
		ArtistLongitude: r.ArtistLongitude,
		ArtistName:      *r.ArtistName,
		Duration:        *r.Duration,
		NumSongs:        *r.NumSongs,
		SongID:          *r.SongID,
		Title:           *r.Title,
		Year:            *r.Year,
	}
}

// ActivityRecord is one raw user-activity event, newline-delimited JSON.
type ActivityRecord struct {
	Artist        *string
	Auth          string
	FirstName     *string
	Gender        *string
	ItemInSession int
	LastName      *string
	Length        *float64
	Level         string
	Location      *string
	Method        string
	Page          string
	Registration  *float64
	SessionID     int
	Song          *string
	Status        int
	TS            int64
	UserAgent     *string
	UserID        *string
}

// PageNextSong marks a song-played event; only these survive filtering.
const PageNextSong = "NextSong"

type activityRecordJSON struct {
	Artist        *string  `json:"artist"`
	Auth          *string  `json:"auth"`
	FirstName     *string  `json:"firstName"`
	Gender        *string  `json:"gender"`
	ItemInSession *int     `json:"itemInSession"`
	LastName      *string  `json:"lastName"`
	Length        *float64 `json:"length"`
	Level         *string  `json:"level"`
	Location      *string  `json:"location"`
	Method        *string  `json:"method"`
	Page          *string  `json:"page"`
	Registration  *float64 `json:"registration"`
	SessionID     *int     `json:"sessionId"`
	Song          *string  `json:"song"`
	Status        *int     `json:"status"`
	TS            *int64   `json:"ts"`
	UserAgent     *string  `json:"userAgent"`
	UserID        *string  `json:"userId"`
}

func (r *activityRecordJSON) validate() error {
	switch {
	case r.Auth == nil:
		return fmt.Errorf("missing required field auth")
	case r.ItemInSession == nil:
		return fmt.Errorf("missing required field itemInSession")
	case r.Level == nil:
		return fmt.Errorf("missing required field level")
	case r.Method == nil:
		return fmt.Errorf("missing required field method")
	case r.Page == nil:
		return fmt.Errorf("missing required field page")
	case r.SessionID == nil:
		return fmt.Errorf("missing required field sessionId")
	case r.Status == nil:
		return fmt.Errorf("missing required field status")
	case r.TS == nil:
		return fmt.Errorf("missing required field ts")
	}
	return nil
}

func (r *activityRecordJSON) record() ActivityRecord {
	return ActivityRecord{
		Artist:        r.Artist,
		Auth:          *r.Auth,
		FirstName:     r.FirstName,
		Gender:        r.Gender,
		ItemInSession: *r.ItemInSession,
		LastName:      r.LastName,
		Length:        r.Length,
		Level:         *r.Level,
		Location:      r.Location,
		Method:        *r.Method,
		Page:          *r.Page,
		Registration:  r.Registration,
		SessionID:     *r.SessionID,
		Song:          r.Song,
		Status:        *r.Status,
		TS:            *r.TS,
		UserAgent:     r.UserAgent,
		UserID:        r.UserID,
	}
}
