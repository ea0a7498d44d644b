package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/alitto/pond/v2"

	"github.com/meloslabs/streamlake/pkg/metrics"
	"github.com/meloslabs/streamlake/pkg/model"
)

// CatalogReaderConfig holds configuration for reading the song/artist catalog.
type CatalogReaderConfig struct {
	Logger  *slog.Logger
	Store   ObjectStore
	Prefix  string
	Workers int
}

func (c *CatalogReaderConfig) Validate() error {
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

// CatalogReader loads every catalog object under a prefix. Each object holds
// one JSON record.
type CatalogReader struct {
	log  *slog.Logger
	cfg  CatalogReaderConfig
	pool pond.ResultPool[[]model.CatalogRecord]
}

func NewCatalogReader(cfg CatalogReaderConfig) (*CatalogReader, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &CatalogReader{
		log:  cfg.Logger,
		cfg:  cfg,
		pool: pond.NewResultPool[[]model.CatalogRecord](cfg.Workers),
	}, nil
}

// Read lists and decodes all catalog objects. Any malformed record is fatal
// for the whole read. Results preserve listing order regardless of worker
// interleaving.
func (r *CatalogReader) Read(ctx context.Context) ([]model.CatalogRecord, error) {
	keys, err := r.cfg.Store.List(ctx, r.cfg.Prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list catalog objects: %w", err)
	}
	r.log.Debug("listing catalog objects", "prefix", r.cfg.Prefix, "objects", len(keys))
	metrics.ObjectsRead.WithLabelValues("catalog").Add(float64(len(keys)))

	group := r.pool.NewGroupContext(ctx)
	for _, key := range keys {
		key := key
		group.SubmitErr(func() ([]model.CatalogRecord, error) {
			return r.readObject(ctx, key)
		})
	}
	batches, err := group.Wait()
	if err != nil {
		return nil, err
	}

	var records []model.CatalogRecord
	for _, batch := range batches {
		records = append(records, batch...)
	}
	r.log.Info("catalog read complete", "objects", len(keys), "records", len(records))
	return records, nil
}

func (r *CatalogReader) readObject(ctx context.Context, key string) ([]model.CatalogRecord, error) {
	rc, err := r.cfg.Store.Open(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	// One object per file is the norm, but concatenated objects are accepted.
	var records []model.CatalogRecord
	dec := json.NewDecoder(rc)
	for i := 0; ; i++ {
		var raw json.RawMessage
		if err := dec.Decode(&raw); err == io.EOF {
			break
		} else if err != nil {
			return nil, fmt.Errorf("catalog object %s record %d: %w", key, i, err)
		}
		rec, err := model.ParseCatalogRecord(raw)
		if err != nil {
			return nil, fmt.Errorf("catalog object %s record %d: %w", key, i, err)
		}
		records = append(records, rec)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("catalog object %s holds no records", key)
	}
	return records, nil
}
