package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/joho/godotenv"
	flag "github.com/spf13/pflag"

	"github.com/meloslabs/streamlake/pkg/duck"
	"github.com/meloslabs/streamlake/pkg/logger"
	"github.com/meloslabs/streamlake/pkg/model"
	"github.com/meloslabs/streamlake/pkg/source"
	"github.com/meloslabs/streamlake/pkg/warehouse"
)

const (
	defaultCatalogURI  = "file://data/song_data"
	defaultActivityURI = "file://data/log_data"
	defaultWorkers     = 8
	defaultAddr        = "localhost:9000"
	defaultDatabase    = "default"
	defaultUsername    = "default"
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
	addrFlag := flag.String("clickhouse-addr", defaultAddr, "ClickHouse native-protocol address (or set CLICKHOUSE_ADDR env var)")
	databaseFlag := flag.String("clickhouse-database", defaultDatabase, "ClickHouse database name")
	usernameFlag := flag.String("clickhouse-username", defaultUsername, "ClickHouse username")
	flag.Parse()

	_ = godotenv.Load()

	if env := os.Getenv("CATALOG_URI"); env != "" {
		*catalogURIFlag = env
	}
	if env := os.Getenv("ACTIVITY_URI"); env != "" {
		*activityURIFlag = env
	}
	if env := os.Getenv("CLICKHOUSE_ADDR"); env != "" {
		*addrFlag = env
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

	client, err := warehouse.NewClient(ctx, log, warehouse.ClientConfig{
		Addr:     *addrFlag,
		Database: *databaseFlag,
		Username: *usernameFlag,
		Password: os.Getenv("CLICKHOUSE_PASSWORD"),
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := client.Close(); err != nil {
			log.Error("failed to close ClickHouse client", "error", err)
		}
	}()

	conn, err := client.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to get ClickHouse connection: %w", err)
	}

	if err := warehouse.RunMigrations(ctx, log, conn); err != nil {
		return err
	}

	// The warehouse stages raw events unfiltered; page filtering happens in
	// SQL during derivation.
	var events []model.ActivityRecord
	for _, shard := range shards {
		events = append(events, shard.Events...)
	}
	return warehouse.NewLoader(log, conn).Load(ctx, catalog, events)
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
