package source

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/meloslabs/streamlake/pkg/fixtures"
	"github.com/meloslabs/streamlake/pkg/model"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeTree(t *testing.T, files map[string][]byte) *DirStore {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, fixtures.WriteTree(root, files))
	return NewDirStore(root)
}

func TestDirStore(t *testing.T) {
	store := writeTree(t, map[string][]byte{
		"A/B/second.json": []byte(`{}`),
		"A/A/first.json":  []byte(`{"k":1}`),
		"A/A/notes.txt":   []byte(`skip me`),
	})

	keys, err := store.List(context.Background(), "A")
	require.NoError(t, err)
	require.Equal(t, []string{"A/A/first.json", "A/B/second.json"}, keys)

	rc, err := store.Open(context.Background(), "A/A/first.json")
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.Equal(t, `{"k":1}`, string(data))
}

func TestForURI(t *testing.T) {
	tests := []struct {
		name       string
		uri        string
		wantPrefix string
		wantErr    string
	}{
		{name: "file", uri: "file:///tmp/data", wantPrefix: ""},
		{name: "s3 without client", uri: "s3://bucket/song_data", wantErr: "no S3 client"},
		{name: "s3 without bucket", uri: "s3:///song_data", wantErr: "missing bucket"},
		{name: "file without path", uri: "file://", wantErr: "missing path"},
		{name: "bare path", uri: "/tmp/data", wantErr: "unsupported input URI"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, prefix, err := ForURI(tt.uri, nil)
			if tt.wantErr != "" {
				require.Error(t, err)
				require.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, store)
			require.Equal(t, tt.wantPrefix, prefix)
		})
	}
}

func TestCatalogReader(t *testing.T) {
	t.Run("reads objects in listing order", func(t *testing.T) {
		store := writeTree(t, map[string][]byte{
			"song_data/A/b.json": fixtures.Catalog(fixtures.CatalogObject(fixtures.Object{"song_id": "SOB", "title": "Bravo"})),
			"song_data/A/a.json": fixtures.Catalog(fixtures.CatalogObject(fixtures.Object{"song_id": "SOA", "title": "Alpha"})),
		})
		reader, err := NewCatalogReader(CatalogReaderConfig{
			Logger:  testLogger(),
			Store:   store,
			Prefix:  "song_data",
			Workers: 4,
		})
		require.NoError(t, err)

		records, err := reader.Read(context.Background())
		require.NoError(t, err)
		require.Len(t, records, 2)
		require.Equal(t, "SOA", records[0].SongID)
		require.Equal(t, "SOB", records[1].SongID)
	})

	t.Run("accepts concatenated objects", func(t *testing.T) {
		store := writeTree(t, map[string][]byte{
			"multi.json": fixtures.Catalog(
				fixtures.CatalogObject(fixtures.Object{"song_id": "SO1"}),
				fixtures.CatalogObject(fixtures.Object{"song_id": "SO2"}),
			),
		})
		reader, err := NewCatalogReader(CatalogReaderConfig{Logger: testLogger(), Store: store, Workers: 1})
		require.NoError(t, err)

		records, err := reader.Read(context.Background())
		require.NoError(t, err)
		require.Len(t, records, 2)
	})

	t.Run("invalid record is fatal", func(t *testing.T) {
		store := writeTree(t, map[string][]byte{
			"good.json": fixtures.Catalog(fixtures.CatalogObject(nil)),
			"bad.json":  fixtures.Catalog(fixtures.CatalogObject(fixtures.Object{"duration": nil})),
		})
		reader, err := NewCatalogReader(CatalogReaderConfig{Logger: testLogger(), Store: store, Workers: 2})
		require.NoError(t, err)

		_, err = reader.Read(context.Background())
		require.Error(t, err)
		require.Contains(t, err.Error(), "bad.json")
	})

	t.Run("empty object is fatal", func(t *testing.T) {
		store := writeTree(t, map[string][]byte{"empty.json": nil})
		reader, err := NewCatalogReader(CatalogReaderConfig{Logger: testLogger(), Store: store, Workers: 1})
		require.NoError(t, err)

		_, err = reader.Read(context.Background())
		require.Error(t, err)
		require.Contains(t, err.Error(), "holds no records")
	})

	t.Run("config validation", func(t *testing.T) {
		_, err := NewCatalogReader(CatalogReaderConfig{Logger: testLogger(), Store: writeTree(t, nil)})
		require.Error(t, err)
		require.Contains(t, err.Error(), "workers must be positive")

		_, err = NewCatalogReader(CatalogReaderConfig{Logger: testLogger(), Workers: 1})
		require.Error(t, err)
		require.Contains(t, err.Error(), "object store is required")
	})
}

func TestActivityReader(t *testing.T) {
	t.Run("shard index follows listing order", func(t *testing.T) {
		store := writeTree(t, map[string][]byte{
			"log_data/2018/11/2018-11-01-events.json": fixtures.NDJSON(
				fixtures.ActivityObject(fixtures.Object{"sessionId": 1}),
				fixtures.ActivityObject(fixtures.Object{"sessionId": 2, "page": "Home", "song": nil, "artist": nil, "length": nil}),
			),
			"log_data/2018/11/2018-11-02-events.json": fixtures.NDJSON(
				fixtures.ActivityObject(fixtures.Object{"sessionId": 3}),
			),
		})
		reader, err := NewActivityReader(ActivityReaderConfig{
			Logger:  testLogger(),
			Store:   store,
			Prefix:  "log_data",
			Workers: 4,
		})
		require.NoError(t, err)

		shards, err := reader.Read(context.Background())
		require.NoError(t, err)
		require.Len(t, shards, 2)
		require.Equal(t, 0, shards[0].Shard)
		require.Len(t, shards[0].Events, 2)
		require.Equal(t, 1, shards[1].Shard)
		require.Len(t, shards[1].Events, 1)
		require.Equal(t, 3, shards[1].Events[0].SessionID)
	})

	t.Run("blank lines are skipped", func(t *testing.T) {
		raw := append([]byte("\n"), fixtures.NDJSON(fixtures.ActivityObject(nil))...)
		raw = append(raw, '\n')
		store := writeTree(t, map[string][]byte{"events.json": raw})
		reader, err := NewActivityReader(ActivityReaderConfig{Logger: testLogger(), Store: store, Workers: 1})
		require.NoError(t, err)

		shards, err := reader.Read(context.Background())
		require.NoError(t, err)
		require.Len(t, shards, 1)
		require.Len(t, shards[0].Events, 1)
	})

	t.Run("malformed line is fatal with position", func(t *testing.T) {
		raw := append(fixtures.NDJSON(fixtures.ActivityObject(nil)), []byte("{broken\n")...)
		store := writeTree(t, map[string][]byte{"events.json": raw})
		reader, err := NewActivityReader(ActivityReaderConfig{Logger: testLogger(), Store: store, Workers: 1})
		require.NoError(t, err)

		_, err = reader.Read(context.Background())
		require.Error(t, err)
		require.Contains(t, err.Error(), "events.json line 2")
	})
}

func TestFilterNextSong(t *testing.T) {
	home := "Home"
	shards := []EventShard{
		{Shard: 0, Events: []model.ActivityRecord{
			{Page: model.PageNextSong, SessionID: 1},
			{Page: home, SessionID: 2},
			{Page: model.PageNextSong, SessionID: 3},
		}},
		{Shard: 1, Events: []model.ActivityRecord{
			{Page: home, SessionID: 4},
		}},
	}

	got := FilterNextSong(shards)
	require.Len(t, got, 2)
	require.Equal(t, 0, got[0].Shard)
	require.Len(t, got[0].Events, 2)
	require.Equal(t, 1, got[0].Events[0].SessionID)
	require.Equal(t, 3, got[0].Events[1].SessionID)
	require.Equal(t, 1, got[1].Shard)
	require.Empty(t, got[1].Events)
}
