package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	flag "github.com/spf13/pflag"

	"github.com/meloslabs/streamlake/pkg/duck"
	"github.com/meloslabs/streamlake/pkg/logger"
	"github.com/meloslabs/streamlake/pkg/metrics"
	"github.com/meloslabs/streamlake/pkg/pipeline"
	"github.com/meloslabs/streamlake/pkg/source"
)

var (
	// Set by LDFLAGS
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const (
	defaultCatalogURI  = "file://data/song_data"
	defaultActivityURI = "file://data/log_data"
	defaultStorageURI  = "file://.tmp/lake/data"
	defaultWorkers     = 8
	defaultMetricsAddr = "0.0.0.0:0"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	verboseFlag := flag.Bool("verbose", false, "enable verbose (debug) logging")
	metricsAddrFlag := flag.String("metrics-addr", defaultMetricsAddr, "Address to listen on for prometheus metrics, empty to disable")
	catalogURIFlag := flag.String("catalog-uri", defaultCatalogURI, "URI of the raw song catalog objects (or set CATALOG_URI env var)")
	activityURIFlag := flag.String("activity-uri", defaultActivityURI, "URI of the raw activity event objects (or set ACTIVITY_URI env var)")
	storageURIFlag := flag.String("storage-uri", defaultStorageURI, "URI of the output dataset root (or set STORAGE_URI env var)")
	workersFlag := flag.Int("workers", defaultWorkers, "number of concurrent object readers")
	flag.Parse()

	// Optional .env for local development.
	_ = godotenv.Load()

	// Override flags with environment variables if set
	if env := os.Getenv("CATALOG_URI"); env != "" {
		*catalogURIFlag = env
	}
	if env := os.Getenv("ACTIVITY_URI"); env != "" {
		*activityURIFlag = env
	}
	if env := os.Getenv("STORAGE_URI"); env != "" {
		*storageURIFlag = env
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

	if *metricsAddrFlag != "" {
		metrics.BuildInfo.WithLabelValues(version, commit, date).Set(1)
		go func() {
			listener, err := net.Listen("tcp", *metricsAddrFlag)
			if err != nil {
				log.Error("failed to start prometheus metrics server listener", "error", err)
				return
			}
			log.Info("prometheus metrics server listening", "address", listener.Addr().String())
			http.Handle("/metrics", promhttp.Handler())
			if err := http.Serve(listener, nil); err != nil {
				log.Error("failed to start prometheus metrics server", "error", err)
			}
		}()
	}

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

	catalogStore, catalogPrefix, err := source.ForURI(*catalogURIFlag, s3Client)
	if err != nil {
		return err
	}
	activityStore, activityPrefix, err := source.ForURI(*activityURIFlag, s3Client)
	if err != nil {
		return err
	}

	s3Config, err := duck.PrepareS3ConfigForStorageURI(ctx, log, *storageURIFlag)
	if err != nil {
		return err
	}
	log.Info("initializing database", "storageURI", duck.RedactedStorageURI(*storageURIFlag))
	db, err := duck.NewDB(ctx, log, *storageURIFlag, s3Config)
	if err != nil {
		return fmt.Errorf("failed to create database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("failed to close database", "error", err)
		}
	}()

	p, err := pipeline.New(pipeline.Config{
		Logger: log,
		Clock:  clockwork.NewRealClock(),

		CatalogStore:   catalogStore,
		CatalogPrefix:  catalogPrefix,
		ActivityStore:  activityStore,
		ActivityPrefix: activityPrefix,
		Workers:        *workersFlag,

		DB: db,
	})
	if err != nil {
		return fmt.Errorf("failed to create pipeline: %w", err)
	}

	return p.Run(ctx)
}
