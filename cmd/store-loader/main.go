package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/joho/godotenv"
	flag "github.com/spf13/pflag"

	"github.com/meloslabs/streamlake/pkg/duck"
	"github.com/meloslabs/streamlake/pkg/logger"
	"github.com/meloslabs/streamlake/pkg/model"
	"github.com/meloslabs/streamlake/pkg/source"
	"github.com/meloslabs/streamlake/pkg/store"
)

const (
	defaultCatalogURI  = "file://data/song_data"
	defaultActivityURI = "file://data/log_data"
	defaultWorkers     = 8
	defaultHost        = "localhost"
	defaultPort        = uint16(5432)
	defaultDatabase    = "sparkify"
	defaultUsername    = "sparkify"
	defaultMaxConns    = int32(10)
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	verboseFlag := flag.Bool("verbose", false, "enable verbose (debug) logging")
	catalogURIFlag := flag.String("catalog-uri", defaultCatalogURI, "URI of the raw song catalog objects (or set CATALOG_URI env var)")
	activityURIFlag := flag.String("activity-uri", defaultActivityURI, "URI of the raw activity event objects (or set ACTIVITY_URI env var)")
	workersFlag := flag.Int("workers", defaultWorkers, "number of concurrent object readers")
	hostFlag := flag.String("postgres-host", defaultHost, "Postgres host (or set POSTGRES_HOST env var)")
	portFlag := flag.Uint16("postgres-port", defaultPort, "Postgres port (or set POSTGRES_PORT env var)")
	databaseFlag := flag.String("postgres-db", defaultDatabase, "Postgres database name")
	usernameFlag := flag.String("postgres-user", defaultUsername, "Postgres username")
	maxConnsFlag := flag.Int32("postgres-max-conns", defaultMaxConns, "Postgres pool size")
	flag.Parse()

	_ = godotenv.Load()

	if env := os.Getenv("CATALOG_URI"); env != "" {
		*catalogURIFlag = env
	}
	if env := os.Getenv("ACTIVITY_URI"); env != "" {
		*activityURIFlag = env
	}
	if env := os.Getenv("POSTGRES_HOST"); env != "" {
		*hostFlag = env
	}
	if env := os.Getenv("POSTGRES_PORT"); env != "" {
		port, err := strconv.ParseUint(env, 10, 16)
		if err != nil {
			return fmt.Errorf("invalid POSTGRES_PORT %q: %w", env, err)
		}
		*portFlag = uint16(port)
	}

	log := logger.New(*verboseFlag)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sig := <-sigCh
		log.Info("received signal", "signal", sig.String())
		cancel()
	}()

	var s3Client *s3.Client
	if strings.HasPrefix(*catalogURIFlag, "s3://") || strings.HasPrefix(*activityURIFlag, "s3://") {
		s3Config, err := duck.LoadS3ConfigFromEnv()
		if err != nil {
			return err
		}
		s3Client, err = duck.NewS3Client(ctx, s3Config)
		if err != nil {
			return err
		}
	}

	catalog, shards, err := readInputs(ctx, log, *catalogURIFlag, *activityURIFlag, *workersFlag, s3Client)
	if err != nil {
		return err
	}

	pool, err := store.NewPool(ctx, log, store.Config{
		Host:     *hostFlag,
		Port:     *portFlag,
		Database: *databaseFlag,
		Username: *usernameFlag,
		Password: os.Getenv("POSTGRES_PASSWORD"),
		MaxConns: *maxConnsFlag,
	})
	if err != nil {
		return err
	}
	defer pool.Close()

	return store.NewLoader(log, pool).Load(ctx, catalog, shards)
}

func readInputs(ctx context.Context, log *slog.Logger, catalogURI, activityURI string, workers int, s3Client *s3.Client) ([]model.CatalogRecord, []source.EventShard, error) {
	catalogStore, catalogPrefix, err := source.ForURI(catalogURI, s3Client)
	if err != nil {
		return nil, nil, err
	}
	activityStore, activityPrefix, err := source.ForURI(activityURI, s3Client)
	if err != nil {
		return nil, nil, err
	}

	catalogReader, err := source.NewCatalogReader(source.CatalogReaderConfig{
		Logger:  log,
		Store:   catalogStore,
		Prefix:  catalogPrefix,
		Workers: workers,
	})
	if err != nil {
		return nil, nil, err
	}
	catalog, err := catalogReader.Read(ctx)
	if err != nil {
		return nil, nil, err
	}

	activityReader, err := source.NewActivityReader(source.ActivityReaderConfig{
		Logger:  log,
		Store:   activityStore,
		Prefix:  activityPrefix,
		Workers: workers,
	})
	if err != nil {
		return nil, nil, err
	}
	shards, err := activityReader.Read(ctx)
	if err != nil {
		return nil, nil, err
	}
	return catalog, shards, nil
}
