package cli

import (
	"fmt"
	"log/slog"

	"github.com/gridatlas/queue-etl/internal/config"
	"github.com/gridatlas/queue-etl/internal/emissions"
	"github.com/gridatlas/queue-etl/internal/geo"
	"github.com/gridatlas/queue-etl/internal/observability"
	"github.com/gridatlas/queue-etl/internal/pipeline"
	"github.com/gridatlas/queue-etl/internal/sink/kafka"
	"github.com/gridatlas/queue-etl/internal/source"
	"github.com/gridatlas/queue-etl/internal/stage"
	"github.com/gridatlas/queue-etl/internal/store/sqlite"
	"github.com/gridatlas/queue-etl/internal/taxonomy"
)

// app bundles everything a command needs plus the handles it must close.
type app struct {
	cfg       *config.Config
	logger    *slog.Logger
	pipeline  *pipeline.Pipeline
	store     *sqlite.Store
	publisher *kafka.Publisher
}

// newApp loads config and wires the pipeline. strict selects strict taxonomy
// mapping regardless of config (validate mode); withStore controls whether
// the SQLite store and the Kafka publisher are opened at all.
func newApp(strict, withStore bool) (*app, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	tables, err := loadTables(cfg)
	if err != nil {
		return nil, err
	}
	rules, err := loadRules(cfg)
	if err != nil {
		return nil, err
	}
	gazetteer, err := geo.DefaultGazetteer()
	if err != nil {
		return nil, fmt.Errorf("loading gazetteer: %w", err)
	}
	adapters, err := selectAdapters(cfg, logger)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger}
	deps := pipeline.Deps{
		Adapters:  adapters,
		Snapshots: source.NewDirReader(cfg.SnapshotDir),
		Mapper:    taxonomy.NewMapper(tables, strict || cfg.StrictTaxonomy, logger),
		Allocator: geo.NewAllocator(gazetteer, logger),
		Rules:     rules,
		Estimator: emissions.NewEstimator(emissions.DefaultCapacityFactors(), cfg.TechnologyBoundaryMW, logger),
		Logger:    logger,
		Metrics:   metrics,
	}

	if withStore {
		store, err := sqlite.Open(cfg.DatabasePath)
		if err != nil {
			return nil, fmt.Errorf("opening store: %w", err)
		}
		a.store = store
		deps.Store = store

		if cfg.KafkaEnabled {
			a.publisher = kafka.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
			deps.Publisher = a.publisher
		}
	}

	a.pipeline = pipeline.New(deps)
	return a, nil
}

func (a *app) close() {
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.logger.Error("kafka publisher close error", "error", err)
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Error("store close error", "error", err)
		}
	}
}

func loadTables(cfg *config.Config) (*taxonomy.Tables, error) {
	if cfg.TablesPath != "" {
		return taxonomy.LoadTables(cfg.TablesPath)
	}
	return taxonomy.DefaultTables()
}

func loadRules(cfg *config.Config) (*stage.RuleSet, error) {
	rules, err := defaultOrFileRules(cfg)
	if err != nil {
		return nil, err
	}
	if cfg.BoundaryYear != 0 {
		rules = rules.WithBoundaryYear(cfg.BoundaryYear)
	}
	return rules, nil
}

func defaultOrFileRules(cfg *config.Config) (*stage.RuleSet, error) {
	if cfg.RulesPath != "" {
		return stage.LoadRules(cfg.RulesPath)
	}
	return stage.DefaultRules()
}

func selectAdapters(cfg *config.Config, logger *slog.Logger) ([]source.Adapter, error) {
	if len(cfg.Sources) == 0 {
		return source.Adapters(logger), nil
	}
	adapters := make([]source.Adapter, 0, len(cfg.Sources))
	for _, name := range cfg.Sources {
		a, err := source.ByName(name, logger)
		if err != nil {
			return nil, err
		}
		adapters = append(adapters, a)
	}
	return adapters, nil
}
