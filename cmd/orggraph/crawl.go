package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/WessleyAI/orggraph/engine/crawler"
	"github.com/WessleyAI/orggraph/engine/dbpedia"
	"github.com/WessleyAI/orggraph/engine/export"
	"github.com/WessleyAI/orggraph/engine/graph"
	"github.com/WessleyAI/orggraph/engine/seed"
	"github.com/WessleyAI/orggraph/pkg/config"
	"github.com/WessleyAI/orggraph/pkg/fn"
	"github.com/WessleyAI/orggraph/pkg/metrics"
	"github.com/WessleyAI/orggraph/pkg/natsutil"
	"github.com/WessleyAI/orggraph/pkg/objstore"
	"github.com/WessleyAI/orggraph/pkg/resilience"
)

const flushTimeout = 5 * time.Second

// crawl runs one crawl end to end. Sink failures do not stop the CSV tables
// from being written; they are joined into the returned error afterwards.
func crawl(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	seeds, err := seed.ReadNames(cfg.SeedFile, cfg.SeedLimit)
	if err != nil {
		return err
	}
	log.Info("seeds loaded", "file", cfg.SeedFile, "count", len(seeds))

	met := metrics.New()
	var wg sync.WaitGroup
	metricsCtx, stopMetrics := context.WithCancel(ctx)
	defer func() {
		stopMetrics()
		wg.Wait()
	}()
	if cfg.MetricsAddr != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := met.Serve(metricsCtx, cfg.MetricsAddr, log); err != nil {
				log.Error("metrics server stopped", "error", err)
			}
		}()
	}

	var sinkErrs []error
	sinks := crawler.MultiSink{metricsSink(met)}

	var pub *natsutil.Publisher[crawler.Event]
	if cfg.NATSURL != "" {
		nc, err := natsutil.Connect(cfg.NATSURL, "orggraph")
		if err != nil {
			log.Error("event publishing disabled", "error", err)
			sinkErrs = append(sinkErrs, err)
		} else {
			defer nc.Close()
			pub = natsutil.NewPublisher(nc, eventSubject(cfg.NATSSubject), log)
			sinks = append(sinks, crawler.SinkFunc(pub.Handle))
		}
	}

	client := dbpedia.NewClient(dbpedia.Config{
		Endpoint:          cfg.Endpoint,
		UserAgent:         cfg.UserAgent,
		Timeout:           cfg.Timeout,
		RequestsPerSecond: cfg.RequestsPerSecond,
		Retry: fn.RetryPolicy{
			MaxAttempts: cfg.RetryAttempts,
			InitialWait: cfg.RetryInitialWait,
			MaxWait:     cfg.RetryMaxWait,
			Multiplier:  2,
			Jitter:      true,
		},
		Breaker: resilience.DefaultBreakerOpts,
		Logger:  log,
	})
	c := crawler.New(
		dbpedia.NewEntityResolver(client, cfg.EntityLimit),
		dbpedia.NewRelationResolver(client, cfg.RelationLimit),
		crawler.Config{Delay: cfg.Delay, Logger: log, Sink: sinks},
	)

	res, err := c.Explore(ctx, seeds, cfg.MaxDepth)
	if err != nil {
		return fmt.Errorf("crawl: %w", err)
	}

	tables := export.Export(res.Entities, res.Relationships)
	files, err := export.WriteTables(cfg.OutputDir, tables)
	if err != nil {
		return err
	}
	log.Info("tables written",
		"dir", cfg.OutputDir,
		"organizations", len(tables.Entities),
		"relationships", len(tables.Relationships),
	)

	if cfg.Neo4jURL != "" {
		if err := saveGraph(ctx, cfg, log, res.RunID, tables); err != nil {
			log.Error("graph sink failed", "error", err)
			sinkErrs = append(sinkErrs, err)
		}
	}
	if cfg.S3Bucket != "" {
		if err := upload(ctx, cfg, log, files); err != nil {
			log.Error("upload failed", "error", err)
			sinkErrs = append(sinkErrs, err)
		}
	}
	if pub != nil {
		if err := pub.Flush(flushTimeout); err != nil {
			sinkErrs = append(sinkErrs, err)
		} else if err := pub.Err(); err != nil {
			sinkErrs = append(sinkErrs, err)
		}
		sent, failed := pub.Stats()
		log.Info("events published", "sent", sent, "failed", failed)
	}

	if err := errors.Join(sinkErrs...); err != nil {
		return fmt.Errorf("sinks: %w", err)
	}
	return nil
}

func saveGraph(ctx context.Context, cfg config.Config, log *slog.Logger, runID string, t export.Tables) error {
	driver, err := graph.Connect(ctx, cfg.Neo4jURL, cfg.Neo4jUser, cfg.Neo4jPassword)
	if err != nil {
		return fmt.Errorf("graph: connect: %w", err)
	}
	defer driver.Close(ctx)

	store := graph.New(driver, cfg.Neo4jDatabase).WithLogger(log).WithBatchSize(cfg.Neo4jBatch)
	if err := store.SaveTables(ctx, runID, t); err != nil {
		return err
	}
	counts, err := store.Counts(ctx)
	if err != nil {
		return err
	}
	log.Info("graph updated", "run_id", runID, "organizations", counts.Organizations, "relationships", counts.Relationships)
	return nil
}

func upload(ctx context.Context, cfg config.Config, log *slog.Logger, files []string) error {
	client, err := objstore.NewS3Client(ctx, objstore.Options{
		Region:    cfg.S3Region,
		Endpoint:  cfg.S3Endpoint,
		AccessKey: cfg.S3AccessKey,
		SecretKey: cfg.S3SecretKey,
	})
	if err != nil {
		return err
	}
	keys, err := objstore.NewUploader(client, cfg.S3Bucket, cfg.S3Prefix, log).UploadFiles(ctx, files...)
	if err != nil {
		return err
	}
	log.Info("tables uploaded", "bucket", cfg.S3Bucket, "keys", keys)
	return nil
}
