package source

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"github.com/alitto/pond/v2"

	"github.com/meloslabs/streamlake/pkg/metrics"
	"github.com/meloslabs/streamlake/pkg/model"
)

// EventShard is the decoded contents of one activity-log object. The shard
// index is the object's ordinal in the sorted listing; it seeds the
// surrogate-key prefix so key generation stays unique under parallel reads.
type EventShard struct {
	Shard  int
	Events []model.ActivityRecord
}

// ActivityReaderConfig holds configuration for reading activity logs.
type ActivityReaderConfig struct {
	Logger  *slog.Logger
	Store   ObjectStore
	Prefix  string
	Workers int
}

func (c *ActivityReaderConfig) Validate() error {
	if c.Logger == nil {
		return fmt.Errorf("logger is required")
	}
	if c.Store == nil {
		return fmt.Errorf("object store is required")
	}
	if c.Workers <= 0 {
		return fmt.Errorf("workers must be positive, got %d", c.Workers)
	}
	return nil
}

// ActivityReader loads every activity-log object under a prefix. Each object
// holds newline-delimited JSON events.
type ActivityReader struct {
	log  *slog.Logger
	cfg  ActivityReaderConfig
	pool pond.ResultPool[EventShard]
}

func NewActivityReader(cfg ActivityReaderConfig) (*ActivityReader, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &ActivityReader{
		log:  cfg.Logger,
		cfg:  cfg,
		pool: pond.NewResultPool[EventShard](cfg.Workers),
	}, nil
}

// Read lists and decodes all activity objects into shards. Any malformed
// event is fatal for the whole read.
func (r *ActivityReader) Read(ctx context.Context) ([]EventShard, error) {
	keys, err := r.cfg.Store.List(ctx, r.cfg.Prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list activity objects: %w", err)
	}
	r.log.Debug("listing activity objects", "prefix", r.cfg.Prefix, "objects", len(keys))
	metrics.ObjectsRead.WithLabelValues("activity").Add(float64(len(keys)))

	group := r.pool.NewGroupContext(ctx)
	for i, key := range keys {
		i, key := i, key
		group.SubmitErr(func() (EventShard, error) {
			return r.readObject(ctx, i, key)
		})
	}
	shards, err := group.Wait()
	if err != nil {
		return nil, err
	}

	total := 0
	for _, shard := range shards {
		total += len(shard.Events)
	}
	r.log.Info("activity read complete", "objects", len(keys), "events", total)
	return shards, nil
}

func (r *ActivityReader) readObject(ctx context.Context, shard int, key string) (EventShard, error) {
	rc, err := r.cfg.Store.Open(ctx, key)
	if err != nil {
		return EventShard{}, err
	}
	defer rc.Close()

	out := EventShard{Shard: shard}
	scanner := bufio.NewScanner(rc)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := bytes.TrimSpace(scanner.Bytes())
		if len(text) == 0 {
			continue
		}
		event, err := model.ParseActivityRecord(text)
		if err != nil {
			return EventShard{}, fmt.Errorf("activity object %s line %d: %w", key, line, err)
		}
		out.Events = append(out.Events, event)
	}
	if err := scanner.Err(); err != nil {
		return EventShard{}, fmt.Errorf("failed to scan activity object %s: %w", key, err)
	}
	return out, nil
}

// FilterNextSong keeps only song-played events, preserving shard identity so
// surrogate keys stay stable relative to the source partitioning.
func FilterNextSong(shards []EventShard) []EventShard {
	out := make([]EventShard, 0, len(shards))
	for _, shard := range shards {
		kept := EventShard{Shard: shard.Shard}
		for _, event := range shard.Events {
			if event.Page == model.PageNextSong {
				kept.Events = append(kept.Events, event)
			}
		}
		out = append(out, kept)
	}
	return out
}
