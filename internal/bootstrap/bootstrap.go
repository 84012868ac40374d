// Package bootstrap centralises the dependency wiring shared by all three
// binaries (ingestor, projector, reporter): opening storage, and selecting
// the concrete backend for every pluggable interface from a loaded Config.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/octostatus/estate-reporter/internal/bronzestore"
	"github.com/octostatus/estate-reporter/internal/clock"
	"github.com/octostatus/estate-reporter/internal/config"
	"github.com/octostatus/estate-reporter/internal/errs"
	"github.com/octostatus/estate-reporter/internal/eventbus"
	"github.com/octostatus/estate-reporter/internal/goldstore"
	"github.com/octostatus/estate-reporter/internal/ingestion"
	"github.com/octostatus/estate-reporter/internal/lock"
	"github.com/octostatus/estate-reporter/internal/projector"
	"github.com/octostatus/estate-reporter/internal/registry"
	"github.com/octostatus/estate-reporter/internal/sink"
	"github.com/octostatus/estate-reporter/internal/statusmodel"
)

// memoryDSN lets a developer run any binary against in-memory stores
// without standing up Postgres, by setting DATABASE_URL=memory.
const memoryDSN = "memory"

// Stores bundles every persistence interface the pipeline depends on.
type Stores struct {
	DB       *sqlx.DB // nil when running against in-memory stores
	Bronze   bronzestore.Store
	Silver   projector.Store
	Gold     goldstore.Store
	Registry registry.Store
}

// OpenStores selects Postgres-backed or in-memory stores per cfg.DatabaseURL.
func OpenStores(cfg config.Config, clk clock.Clock) (*Stores, error) {
	if cfg.DatabaseURL == memoryDSN {
		return &Stores{
			Bronze:   bronzestore.NewMemoryStore(clk),
			Silver:   projector.NewMemoryStore(clk),
			Gold:     goldstore.NewMemoryStore(clk),
			Registry: registry.NewMemoryStore(clk),
		}, nil
	}

	db, err := sqlx.Connect("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, errs.Wrap(errs.DatabaseConnectivity, err, "connect to database")
	}
	return &Stores{
		DB:       db,
		Bronze:   bronzestore.NewPGStore(db, clk),
		Silver:   projector.NewPGStore(db, clk),
		Gold:     goldstore.NewPGStore(db, clk),
		Registry: registry.NewPGStore(db, clk),
	}, nil
}

// StatusModel selects the heuristic or chat-completion backend per
// status_model.backend (spec §6).
func StatusModel(cfg config.Config) statusmodel.StatusModel {
	if cfg.StatusModelBackend == config.BackendChatCompletion {
		return statusmodel.NewChatCompletion(statusmodel.ChatCompletionConfig{
			Endpoint:    cfg.StatusModelEndpoint,
			APIKey:      cfg.StatusModelAPIKey,
			Model:       cfg.StatusModelModel,
			Temperature: cfg.StatusModelTemperature,
			MaxTokens:   cfg.StatusModelMaxTokens,
		})
	}
	return statusmodel.NewHeuristic()
}

// ReportSink selects the S3 sink when report_sink.s3_bucket is set, the
// local filesystem sink when report_sink.base_path is set, or nil.
func ReportSink(ctx context.Context, cfg config.Config) (sink.ReportSink, error) {
	switch {
	case cfg.ReportSinkS3Bucket != "":
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		client := s3.NewFromConfig(awsCfg)
		return sink.NewS3Sink(client, cfg.ReportSinkS3Bucket, "reports"), nil
	case cfg.ReportSinkBasePath != "":
		return sink.NewLocalSink(cfg.ReportSinkBasePath), nil
	default:
		return nil, nil
	}
}

// Locker selects the Redis-backed distributed lock when redis.addr is set,
// otherwise an in-process lock suitable for single-instance deployments.
func Locker(cfg config.Config) lock.Locker {
	if cfg.RedisAddr == "" {
		return lock.NewInProcess()
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	return lock.NewRedis(client, 0)
}

// EventBus selects the Kafka publisher when kafka.brokers is set, otherwise
// a no-op publisher.
func EventBus(cfg config.Config) eventbus.Publisher {
	if len(cfg.KafkaBrokers) == 0 {
		return eventbus.NoOp{}
	}
	return eventbus.NewKafkaPublisher(cfg.KafkaBrokers, "estate-reporter.events")
}

// RemoteSource builds the GitHub-backed ingestion source.
func RemoteSource(ctx context.Context, cfg config.Config) (ingestion.RemoteSource, error) {
	if cfg.RemoteSourceToken == "" {
		return nil, errs.New(errs.MissingConfig, "remote_source_token is required")
	}
	return ingestion.NewGitHubSource(ctx, cfg.RemoteSourceToken, 5), nil
}
