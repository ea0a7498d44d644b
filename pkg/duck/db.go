// Package duck hosts the DuckDB engine used to persist the star schema as
// partitioned parquet datasets on local or S3-compatible storage.
package duck

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/duckdb/duckdb-go/v2"
)

// S3Config holds configuration for S3-compatible storage (AWS S3, MinIO, etc.)
type S3Config struct {
	AccessKeyID     string // S3 access key ID
	SecretAccessKey string // S3 secret access key
	Endpoint        string // S3 endpoint URL (e.g., "http://localhost:9000" for MinIO, empty for AWS)
	Region          string // S3 region (e.g., "us-east-1")
	UseSSL          bool   // Whether to use SSL/TLS (typically false for MinIO, true for AWS)
	URLStyle        string // URL style: "path" (for MinIO) or "virtual" (for AWS S3)
}

// DB is an in-process DuckDB instance configured for the pipeline's output
// storage.
type DB struct {
	log         *slog.Logger
	db          *sql.DB
	storageRoot string
}

// Connection is a single DuckDB connection. Writes for one table run on one
// connection; tables are independent and non-transactional relative to each
// other.
type Connection interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	Close() error
}

type dbConn struct {
	conn *sql.Conn
}

func (c *dbConn) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return c.conn.ExecContext(ctx, query, args...)
}

func (c *dbConn) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return c.conn.QueryContext(ctx, query, args...)
}

func (c *dbConn) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return c.conn.QueryRowContext(ctx, query, args...)
}

func (c *dbConn) Close() error {
	return c.conn.Close()
}

// NewDB opens a DuckDB instance targeting the given storage URI.
//
// Storage URI formats:
//   - file://: Local file system storage
//     Example: "file:///path/to/output"
//   - s3://: S3-compatible storage (AWS S3, MinIO, etc.)
//     Example: "s3://bucket-name/path/to/output"
//     Note: S3Config must be provided when using s3:// storage
func NewDB(ctx context.Context, log *slog.Logger, storageURI string, s3Config *S3Config) (*DB, error) {
	if err := ValidateStorageURI(storageURI); err != nil {
		return nil, err
	}

	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	var storageRoot string
	var useS3 bool
	if path, found := strings.CutPrefix(storageURI, "file://"); found {
		storageRoot, err = filepath.Abs(path)
		if err != nil {
			return nil, fmt.Errorf("failed to get absolute path for storage directory: %w", err)
		}
		if err := os.MkdirAll(storageRoot, 0755); err != nil {
			return nil, fmt.Errorf("failed to create storage directory: %w", err)
		}
	} else {
		storageRoot = strings.TrimSuffix(storageURI, "/")
		useS3 = true
	}

	if useS3 {
		if s3Config == nil {
			return nil, fmt.Errorf("S3 configuration is required when using s3:// storage URI")
		}
		for _, ext := range []string{"httpfs", "aws"} {
			if _, err := db.ExecContext(ctx, fmt.Sprintf("INSTALL '%s'", ext)); err != nil {
				return nil, fmt.Errorf("failed to install extension %s: %w", ext, err)
			}
			if _, err := db.ExecContext(ctx, fmt.Sprintf("LOAD '%s'", ext)); err != nil {
				return nil, fmt.Errorf("failed to load extension %s: %w", ext, err)
			}
		}
		if err := createS3Secret(ctx, db, s3Config); err != nil {
			return nil, err
		}
		log.Info("configured S3 storage", "endpoint", s3Config.Endpoint, "region", s3Config.Region)
	}

	return &DB{
		log:         log,
		db:          db,
		storageRoot: storageRoot,
	}, nil
}

// StorageRoot is the resolved output location (absolute local path or s3://
// URI) that table datasets are written under.
func (d *DB) StorageRoot() string {
	return d.storageRoot
}

func (d *DB) Close() error {
	return d.db.Close()
}

func (d *DB) Conn(ctx context.Context) (Connection, error) {
	conn, err := d.db.Conn(ctx)
	if err != nil {
		return nil, err
	}
	return &dbConn{conn: conn}, nil
}

func createS3Secret(ctx context.Context, db *sql.DB, cfg *S3Config) error {
	// For IRSA (no explicit credentials), PROVIDER credential_chain uses the
	// default AWS credentials chain (IAM roles, environment variables, etc.)
	secretSQL := "CREATE SECRET IF NOT EXISTS s3_secret (TYPE s3"
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		secretSQL += fmt.Sprintf(", KEY_ID '%s'", strings.ReplaceAll(cfg.AccessKeyID, "'", "''"))
		secretSQL += fmt.Sprintf(", SECRET '%s'", strings.ReplaceAll(cfg.SecretAccessKey, "'", "''"))
	} else {
		secretSQL += ", PROVIDER credential_chain"
	}
	if cfg.Endpoint != "" {
		// DuckDB's S3 secret ENDPOINT expects host:port, not a full URL
		endpoint := cfg.Endpoint
		endpoint = strings.TrimPrefix(endpoint, "http://")
		endpoint = strings.TrimPrefix(endpoint, "https://")
		secretSQL += fmt.Sprintf(", ENDPOINT '%s'", endpoint)
	}
	if cfg.Region != "" {
		secretSQL += fmt.Sprintf(", REGION '%s'", cfg.Region)
	}

	isMinIO := cfg.Endpoint != "" && !strings.Contains(cfg.Endpoint, "amazonaws.com")
	urlStyle := cfg.URLStyle
	if urlStyle == "" {
		urlStyle = "path"
	}
	useSSL := cfg.UseSSL
	if isMinIO {
		useSSL = false
	} else if cfg.Endpoint == "" {
		useSSL = true
	}

	secretSQL += fmt.Sprintf(", URL_STYLE '%s'", urlStyle)
	secretSQL += fmt.Sprintf(", USE_SSL %t", useSSL)
	secretSQL += ")"

	if _, err := db.ExecContext(ctx, secretSQL); err != nil {
		return fmt.Errorf("failed to create S3 secret: %w", err)
	}
	return nil
}

// ValidateStorageURI checks that a storage URI is file:// or s3:// with a
// plausible target.
func ValidateStorageURI(uri string) error {
	if uri == "" {
		return fmt.Errorf("storage URI is required")
	}

	if path, found := strings.CutPrefix(uri, "file://"); found {
		if path == "" {
			return fmt.Errorf("storage URI file:// path cannot be empty")
		}
		return nil
	}

	if strings.HasPrefix(uri, "s3://") {
		parsed, err := url.Parse(uri)
		if err != nil {
			return fmt.Errorf("invalid s3:// URI format: %w", err)
		}
		if parsed.Host == "" {
			return fmt.Errorf("s3:// URI must include a bucket name (e.g., s3://bucket-name/path)")
		}
		bucket := parsed.Host
		if len(bucket) < 3 || len(bucket) > 63 {
			return fmt.Errorf("s3 bucket name must be between 3 and 63 characters")
		}
		return nil
	}

	return fmt.Errorf("storage URI must start with file:// or s3:// (got: %q)", uri)
}

// RedactedStorageURI redacts potentially sensitive query parameters from
// storage URIs for logging.
func RedactedStorageURI(uri string) string {
	if uri == "" {
		return uri
	}

	if strings.HasPrefix(uri, "s3://") {
		parsed, err := url.Parse(uri)
		if err != nil {
			return "[REDACTED: invalid URI]"
		}
		if parsed.RawQuery != "" {
			query, err := url.ParseQuery(parsed.RawQuery)
			if err == nil {
				sensitiveKeys := []string{"accesskey", "secretkey", "password", "token", "credential"}
				for key := range query {
					keyLower := strings.ToLower(key)
					for _, sensitive := range sensitiveKeys {
						if strings.Contains(keyLower, sensitive) {
							query[key] = []string{"REDACTED"}
						}
					}
				}
				parsed.RawQuery = query.Encode()
			}
		}
		return parsed.String()
	}

	return uri
}
