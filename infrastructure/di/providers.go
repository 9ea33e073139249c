package di

import (
	"context"
	"fmt"

	"coursegraph-backend/domain/courseware"
	"coursegraph-backend/infrastructure/config"
	"coursegraph-backend/infrastructure/persistence"
	"coursegraph-backend/infrastructure/store"
	"coursegraph-backend/infrastructure/store/dynamo"
	"coursegraph-backend/infrastructure/store/memory"
	"coursegraph-backend/pkg/observability"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"go.uber.org/zap"
)

// ProvideLogger creates a zap logger at the configured level
func ProvideLogger(cfg *config.Config) (*zap.Logger, error) {
	zc := zap.NewDevelopmentConfig()
	if cfg.IsProduction() {
		zc = zap.NewProductionConfig()
	}

	level, err := zap.ParseAtomicLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
	}
	zc.Level = level

	logger, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return logger.With(zap.String("service", cfg.ServiceName)), nil
}

// ProvideAWSConfig loads the AWS configuration for the configured region
func ProvideAWSConfig(ctx context.Context, cfg *config.Config) (aws.Config, error) {
	return awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
}

// ProvideDynamoDBClient creates a DynamoDB client. DYNAMODB_ENDPOINT points
// it at a local table when set.
func ProvideDynamoDBClient(awsCfg aws.Config, cfg *config.Config) *awsdynamodb.Client {
	return awsdynamodb.NewFromConfig(awsCfg, func(o *awsdynamodb.Options) {
		if cfg.DynamoDBEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.DynamoDBEndpoint)
		}
	})
}

// ProvideDynamoEngine creates the DynamoDB engine, creating the table first
// when configured to. It returns nil when the memory engine is selected, so
// no AWS configuration is loaded for it.
func ProvideDynamoEngine(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*dynamo.Engine, error) {
	if cfg.Store.Engine != config.EngineDynamoDB {
		return nil, nil
	}

	awsCfg, err := ProvideAWSConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	engine := dynamo.NewEngine(ProvideDynamoDBClient(awsCfg, cfg), cfg.TableName, logger)

	if cfg.Store.CreateTable {
		created, err := engine.EnsureTable(ctx, cfg.Store.CreateTableTimeout)
		if err != nil {
			return nil, err
		}
		logger.Info("Table ready", zap.String("table", cfg.TableName), zap.Bool("created", created))
	}
	return engine, nil
}

// ProvideEngine selects the storage engine and puts the circuit breaker in
// front of it when enabled.
func ProvideEngine(cfg *config.Config, dynamoEngine *dynamo.Engine, logger *zap.Logger) (store.Engine, error) {
	var engine store.Engine
	switch cfg.Store.Engine {
	case config.EngineMemory:
		engine = memory.NewEngine()
	case config.EngineDynamoDB:
		if dynamoEngine == nil {
			return nil, fmt.Errorf("dynamodb engine not initialized")
		}
		engine = dynamoEngine
	default:
		return nil, fmt.Errorf("unknown storage engine %q", cfg.Store.Engine)
	}

	if !cfg.Breaker.Enabled {
		return engine, nil
	}
	return store.NewBreakerEngine(engine, store.BreakerConfig{
		Name:             "store-" + cfg.Store.Engine,
		MaxRequests:      cfg.Breaker.MaxRequests,
		Interval:         cfg.Breaker.Interval,
		Timeout:          cfg.Breaker.Timeout,
		FailureThreshold: cfg.Breaker.FailureThreshold,
		MinRequests:      cfg.Breaker.MinRequests,
	}, logger), nil
}

// ProvideMetrics creates the Prometheus collectors, or nil when disabled.
func ProvideMetrics(cfg *config.Config) *observability.Metrics {
	if !cfg.EnableMetrics {
		return nil
	}
	return observability.NewMetrics(cfg.MetricsNamespace)
}

// ProvideTracing installs the OTLP tracer provider, or returns nil when
// tracing is disabled.
func ProvideTracing(ctx context.Context, cfg *config.Config) (*observability.TracerProvider, error) {
	if !cfg.EnableTracing {
		return nil, nil
	}
	return observability.InitTracing(ctx, cfg.ServiceName, cfg.Environment, cfg.OTLPEndpoint)
}

// ProvideSession prepares the statement cache for the engine and opens a
// session on it.
func ProvideSession(cfg *config.Config, engine store.Engine, logger *zap.Logger, metrics *observability.Metrics) (*store.Session, error) {
	consistency, err := store.ParseConsistency(cfg.Store.Consistency)
	if err != nil {
		return nil, err
	}
	cache := store.NewCache(engine, consistency)
	return store.NewSession(engine, cache, logger, metrics), nil
}

// ProvideDeletePolicies maps the configured tombstone kinds to delete
// policies. Kinds not listed are removed outright.
func ProvideDeletePolicies(cfg *config.Config) (map[courseware.ElementType]persistence.DeletePolicy, error) {
	policies := make(map[courseware.ElementType]persistence.DeletePolicy, len(cfg.Store.TombstoneKinds))
	for _, kind := range cfg.Store.TombstoneKinds {
		t, err := courseware.ParseElementType(kind)
		if err != nil {
			return nil, fmt.Errorf("tombstone kinds: %w", err)
		}
		policies[t] = persistence.Tombstone
	}
	return policies, nil
}

// ProvideElementDirectory exposes the directory shared by the element stores
func ProvideElementDirectory(elements *persistence.Elements) *persistence.ElementDirectory {
	return elements.Directory
}
