package svc

import (
	"context"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx driver
	_ "github.com/lib/pq"              // register postgres driver
	"github.com/zeromicro/go-zero/core/logx"
	"github.com/zeromicro/go-zero/core/stores/redis"
	"github.com/zeromicro/go-zero/core/stores/sqlx"
	_ "modernc.org/sqlite" // register sqlite driver

	cachekeys "quant-api/internal/cache"
	"quant-api/internal/config"
	"quant-api/internal/datacache"
	"quant-api/internal/model"
	analysispersist "quant-api/internal/persistence/analysis"
	"quant-api/pkg/analysis"
	"quant-api/pkg/datasource"
	_ "quant-api/pkg/datasource/alphavantage"
	_ "quant-api/pkg/datasource/edgar"
	_ "quant-api/pkg/datasource/yahoo"
	"quant-api/pkg/journal"
	llmpkg "quant-api/pkg/llm"
	_ "quant-api/pkg/llm/anthropic"
	_ "quant-api/pkg/llm/gemini"
)

// testMaxTokens caps generation per stage when Env is test.
const testMaxTokens = 1024

// Store is both sides of analysis persistence.
type Store interface {
	analysis.ResultStore
	analysis.ResultReader
}

type ServiceContext struct {
	Config config.Config

	LLMConfig        *llmpkg.Config
	DataSourceConfig *datasource.Config
	AnalysisConfig   *analysis.Config

	Redis     *redis.Redis
	Source    datasource.Source
	Generator analysis.TextGenerator
	Store     Store
	Pipeline  *analysis.Pipeline

	// Set only for SQL drivers.
	DBConn              sqlx.SqlConn
	AnalysisResultModel model.AnalysisResultModel
}

// NewServiceContext wires every dependency from c and exits on failure.
func NewServiceContext(c config.Config) *ServiceContext {
	svc, err := Build(c)
	logx.Must(err)
	return svc
}

// Build wires every dependency from c.
func Build(c config.Config) (*ServiceContext, error) {
	svc := &ServiceContext{Config: c}
	ttl := cachekeys.NewTTLSet(c.TTL)

	if c.HasRedis() {
		rds, err := redis.NewRedis(c.Redis)
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		svc.Redis = rds
	}

	if err := svc.initSource(ttl); err != nil {
		return nil, err
	}
	if err := svc.initGenerator(); err != nil {
		return nil, err
	}
	if err := svc.initStore(ttl); err != nil {
		return nil, err
	}

	svc.AnalysisConfig = c.Analysis.Value
	if svc.AnalysisConfig == nil {
		svc.AnalysisConfig = analysis.DefaultConfig()
	}
	prompts, err := analysis.LoadPrompts(svc.AnalysisConfig.Prompts)
	if err != nil {
		return nil, fmt.Errorf("load prompts: %w", err)
	}
	svc.Pipeline = analysis.NewPipeline(svc.Generator,
		analysis.WithStore(svc.Store),
		analysis.WithPrompts(prompts),
		analysis.WithConfig(svc.AnalysisConfig),
	)
	return svc, nil
}

func (s *ServiceContext) initSource(ttl cachekeys.TTLSet) error {
	cfg := s.Config.DataSource.Value
	if cfg == nil {
		cfg = datasource.MustLoad()
	}
	src, err := cfg.BuildSource()
	if err != nil {
		return fmt.Errorf("build datasource: %w", err)
	}
	s.DataSourceConfig = cfg
	s.Source = datacache.New(src, s.Redis, ttl)
	return nil
}

func (s *ServiceContext) initGenerator() error {
	cfg := s.Config.LLM.Value
	if cfg == nil {
		cfg = llmpkg.MustLoad()
	}
	logger := llmpkg.NewLogger(cfg.LogLevel)
	streamer, err := llmpkg.NewStreamer(cfg, logger)
	if err != nil {
		return fmt.Errorf("build llm backend: %w", err)
	}
	opts := []llmpkg.GeneratorOption{
		llmpkg.WithModel(cfg.DefaultModel),
		llmpkg.WithStreamTimeout(cfg.StreamTimeout),
		llmpkg.WithGeneratorLogger(logger),
	}
	if s.Config.IsTestEnv() {
		opts = append(opts, llmpkg.WithMaxTokens(testMaxTokens))
	}
	s.LLMConfig = cfg
	s.Generator = llmpkg.NewGenerator(streamer, opts...)
	return nil
}

func (s *ServiceContext) initStore(ttl cachekeys.TTLSet) error {
	store := s.Config.Store
	if store.Driver == config.DriverJournal {
		w, err := journal.NewWriter(s.Config.JournalPath())
		if err != nil {
			return err
		}
		s.Store = w
		return nil
	}

	dialect, err := model.DialectForDriver(store.Driver)
	if err != nil {
		return err
	}
	conn := sqlx.NewSqlConn(store.Driver, store.DSN)
	if db, err := conn.RawDB(); err == nil {
		db.SetMaxOpenConns(store.MaxOpen)
		db.SetMaxIdleConns(store.MaxIdle)
	}
	m := model.NewAnalysisResultModel(conn, dialect)
	if err := m.EnsureSchema(context.Background()); err != nil {
		return fmt.Errorf("ensure analysis schema: %w", err)
	}

	cfg := analysispersist.Config{Model: m, TTL: ttl}
	if s.Redis != nil {
		cfg.Cache = analysispersist.NewCache(s.Redis, ttl)
	}
	s.DBConn = conn
	s.AnalysisResultModel = m
	s.Store = analysispersist.NewService(cfg)
	logx.Infof("svc: analysis store driver=%s cache=%t", store.Driver, cfg.Cache != nil)
	return nil
}
