package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/meloslabs/streamlake/pkg/fixtures"
)

func marshal(t *testing.T, obj fixtures.Object) []byte {
	t.Helper()
	data, err := json.Marshal(obj)
	require.NoError(t, err)
	return data
}

func TestParseCatalogRecord(t *testing.T) {
	t.Run("valid record", func(t *testing.T) {
		rec, err := ParseCatalogRecord(marshal(t, fixtures.CatalogObject(nil)))
		require.NoError(t, err)
		require.Equal(t, "SOZCTXZ12AB0182364", rec.SongID)
		require.Equal(t, "Setanta matins", rec.Title)
		require.Equal(t, "Elena", rec.ArtistName)
		require.Equal(t, 269.58279, rec.Duration)
		require.NotNil(t, rec.ArtistLatitude)
		require.Equal(t, 49.80388, *rec.ArtistLatitude)
	})

	t.Run("null optionals", func(t *testing.T) {
		rec, err := ParseCatalogRecord(marshal(t, fixtures.CatalogObject(fixtures.Object{
			"artist_latitude":  nil,
			"artist_location":  nil,
			"artist_longitude": nil,
		})))
		require.NoError(t, err)
		require.Nil(t, rec.ArtistLatitude)
		require.Nil(t, rec.ArtistLocation)
		require.Nil(t, rec.ArtistLongitude)
	})

	tests := []struct {
		name      string
		overrides fixtures.Object
		wantErr   string
	}{
		{"missing song_id", fixtures.Object{"song_id": nil}, "missing required field song_id"},
		{"missing title", fixtures.Object{"title": nil}, "missing required field title"},
		{"missing artist_id", fixtures.Object{"artist_id": nil}, "missing required field artist_id"},
		{"missing artist_name", fixtures.Object{"artist_name": nil}, "missing required field artist_name"},
		{"missing duration", fixtures.Object{"duration": nil}, "missing required field duration"},
		{"zero duration", fixtures.Object{"duration": 0.0}, "duration must be positive"},
		{"negative year", fixtures.Object{"year": -1}, "year must be non-negative"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCatalogRecord(marshal(t, fixtures.CatalogObject(tt.overrides)))
			require.Error(t, err)
			require.Contains(t, err.Error(), tt.wantErr)
		})
	}

	t.Run("malformed json", func(t *testing.T) {
		_, err := ParseCatalogRecord([]byte(`{"song_id":`))
		require.Error(t, err)
		require.Contains(t, err.Error(), "malformed catalog record")
	})
}

func TestParseActivityRecord(t *testing.T) {
	t.Run("valid record", func(t *testing.T) {
		rec, err := ParseActivityRecord(marshal(t, fixtures.ActivityObject(nil)))
		require.NoError(t, err)
		require.Equal(t, PageNextSong, rec.Page)
		require.Equal(t, int64(1541105830796), rec.TS)
		require.Equal(t, 818, rec.SessionID)
		require.NotNil(t, rec.Song)
		require.Equal(t, "Setanta matins", *rec.Song)
		require.NotNil(t, rec.UserID)
		require.Equal(t, "15", *rec.UserID)
	})

	t.Run("anonymous event keeps nil optionals", func(t *testing.T) {
		rec, err := ParseActivityRecord(marshal(t, fixtures.ActivityObject(fixtures.Object{
			"page":      "Home",
			"auth":      "Logged Out",
			"artist":    nil,
			"song":      nil,
			"length":    nil,
			"userId":    nil,
			"firstName": nil,
			"lastName":  nil,
			"gender":    nil,
		})))
		require.NoError(t, err)
		require.Nil(t, rec.Artist)
		require.Nil(t, rec.Song)
		require.Nil(t, rec.Length)
		require.Nil(t, rec.UserID)
	})

	tests := []struct {
		name      string
		overrides fixtures.Object
		wantErr   string
	}{
		{"missing auth", fixtures.Object{"auth": nil}, "missing required field auth"},
		{"missing itemInSession", fixtures.Object{"itemInSession": nil}, "missing required field itemInSession"},
		{"missing level", fixtures.Object{"level": nil}, "missing required field level"},
		{"missing page", fixtures.Object{"page": nil}, "missing required field page"},
		{"missing sessionId", fixtures.Object{"sessionId": nil}, "missing required field sessionId"},
		{"missing ts", fixtures.Object{"ts": nil}, "missing required field ts"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseActivityRecord(marshal(t, fixtures.ActivityObject(tt.overrides)))
			require.Error(t, err)
			require.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
