package duck

import (
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// TableConfig describes one output table of the star schema.
type TableConfig struct {
	// Name is the table and dataset name.
	Name string
	// Columns defines all columns in order, each a "name:type" pair,
	// e.g. "song_id:VARCHAR", "duration:DOUBLE".
	Columns []string
	// PartitionBy lists zero or more low-cardinality columns that shape the
	// dataset layout. Partitioning never changes row content or count.
	PartitionBy []string
}

func (c *TableConfig) validate() error {
	if c.Name == "" {
		return fmt.Errorf("table name cannot be empty")
	}
	if len(c.Columns) == 0 {
		return fmt.Errorf("columns cannot be empty")
	}
	names, err := columnNames(c.Columns)
	if err != nil {
		return err
	}
	present := make(map[string]bool, len(names))
	for _, name := range names {
		present[name] = true
	}
	for _, col := range c.PartitionBy {
		if !present[col] {
			return fmt.Errorf("partition column %q is not in the column list", col)
		}
	}
	return nil
}

// NullField is the CSV sentinel encoding NULL in rows staged through
// WriteTable. A plain empty field stays a valid empty string.
const NullField = `\N`

// WriteTable persists one table as a parquet dataset under the storage root,
// replacing any prior dataset at that location:
//   - stages rows through a temp CSV and COPY FROM (NULLs encoded as NullField)
//   - writes the dataset with COPY TO (FORMAT PARQUET), hive-partitioned when
//     partition columns are configured
//
// Each table write is independent; a failure leaves previously written tables
// in place and later tables untouched.
func WriteTable(
	ctx context.Context,
	log *slog.Logger,
	conn Connection,
	storageRoot string,
	cfg TableConfig,
	count int,
	writeCSVFn func(*csv.Writer, int) error,
) error {
	writeStart := time.Now()
	defer func() {
		log.Debug("table write completed",
			"table", cfg.Name,
			"rows", count,
			"duration", time.Since(writeStart).String())
	}()

	if err := cfg.validate(); err != nil {
		return err
	}

	colDefs, err := columnDefs(cfg.Columns)
	if err != nil {
		return err
	}

	tmpFile, err := os.CreateTemp("", fmt.Sprintf("%s_rows_*.csv", cfg.Name))
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmpFile.Name())
	defer tmpFile.Close()

	csvWriter := csv.NewWriter(tmpFile)
	for i := range count {
		select {
		case <-ctx.Done():
			return fmt.Errorf("context cancelled during CSV writing: %w", ctx.Err())
		default:
		}
		if err := writeCSVFn(csvWriter, i); err != nil {
			return fmt.Errorf("failed to write CSV row %d: %w", i, err)
		}
	}
	csvWriter.Flush()
	if err := csvWriter.Error(); err != nil {
		return fmt.Errorf("failed to flush CSV: %w", err)
	}

	createSQL := fmt.Sprintf("CREATE OR REPLACE TABLE %s (\n\t%s\n)",
		cfg.Name, strings.Join(colDefs, ",\n\t"))
	if _, err := conn.ExecContext(ctx, createSQL); err != nil {
		return fmt.Errorf("failed to create table %s: %w", cfg.Name, err)
	}

	copyInSQL := fmt.Sprintf("COPY %s FROM '%s' (FORMAT CSV, HEADER false, NULLSTR '%s')",
		cfg.Name, tmpFile.Name(), NullField)
	if _, err := conn.ExecContext(ctx, copyInSQL); err != nil {
		return fmt.Errorf("failed to COPY FROM CSV into %s: %w", cfg.Name, err)
	}

	// Replace the dataset, not merge into it: partitions written by a prior
	// run but absent from this one must not survive.
	target := datasetTarget(storageRoot, cfg.Name)
	if !strings.HasPrefix(storageRoot, "s3://") {
		datasetDir := filepath.Join(storageRoot, cfg.Name)
		if err := os.RemoveAll(datasetDir); err != nil {
			return fmt.Errorf("failed to clear prior dataset %s: %w", cfg.Name, err)
		}
		if err := os.MkdirAll(datasetDir, 0755); err != nil {
			return fmt.Errorf("failed to create dataset directory: %w", err)
		}
	}

	var copyOutSQL string
	if len(cfg.PartitionBy) > 0 {
		copyOutSQL = fmt.Sprintf("COPY %s TO '%s' (FORMAT PARQUET, PARTITION_BY (%s), OVERWRITE true)",
			cfg.Name, target, strings.Join(cfg.PartitionBy, ", "))
	} else {
		copyOutSQL = fmt.Sprintf("COPY %s TO '%s/%s.parquet' (FORMAT PARQUET)",
			cfg.Name, target, cfg.Name)
	}
	if _, err := conn.ExecContext(ctx, copyOutSQL); err != nil {
		return fmt.Errorf("failed to write dataset %s: %w", cfg.Name, err)
	}

	if _, err := conn.ExecContext(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", cfg.Name)); err != nil {
		log.Error("failed to drop staging table", "table", cfg.Name, "error", err)
	}

	return nil
}

func datasetTarget(storageRoot, name string) string {
	return strings.TrimSuffix(storageRoot, "/") + "/" + name
}

func columnDefs(columns []string) ([]string, error) {
	defs := make([]string, 0, len(columns))
	for _, col := range columns {
		parts := strings.SplitN(col, ":", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid column definition %q: expected format 'name:type'", col)
		}
		defs = append(defs, fmt.Sprintf("%s %s", strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])))
	}
	return defs, nil
}

func columnNames(columns []string) ([]string, error) {
	names := make([]string, 0, len(columns))
	for _, col := range columns {
		parts := strings.SplitN(col, ":", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid column definition %q: expected format 'name:type'", col)
		}
		names = append(names, strings.TrimSpace(parts[0]))
	}
	return names, nil
}
