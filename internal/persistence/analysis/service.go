package analysispersist

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/zeromicro/go-zero/core/logx"
	gocache "github.com/zeromicro/go-zero/core/stores/cache"
	"github.com/zeromicro/go-zero/core/stores/redis"
	"github.com/zeromicro/go-zero/core/syncx"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	cachekeys "quant-api/internal/cache"
	"quant-api/internal/model"
	"quant-api/pkg/analysis"
)

const uniqueViolation = "23505"

var (
	_ analysis.ResultStore  = (*Service)(nil)
	_ analysis.ResultReader = (*Service)(nil)
)

// Service persists analysis records in SQL and caches the latest one per symbol.
type Service struct {
	model model.AnalysisResultModel
	cache gocache.Cache
	ttl   cachekeys.TTLSet
}

// Config enumerates dependencies required to persist analysis records.
type Config struct {
	Model model.AnalysisResultModel
	// Cache is optional; nil reads straight from the table.
	Cache gocache.Cache
	TTL   cachekeys.TTLSet
}

// NewService wires an analysis persistence service. Returns nil when the model is missing.
func NewService(cfg Config) *Service {
	if cfg.Model == nil {
		return nil
	}
	return &Service{
		model: cfg.Model,
		cache: cfg.Cache,
		ttl:   cfg.TTL,
	}
}

// NewCache builds the latest-record cache on a single Redis node.
func NewCache(rds *redis.Redis, ttl cachekeys.TTLSet) gocache.Cache {
	return gocache.NewNode(rds, syncx.NewSingleFlight(), gocache.NewStat("analysis"), model.ErrNotFound,
		gocache.WithExpiry(cachekeys.AnalysisLatestTTL(ttl)),
		gocache.WithNotFoundExpiry(time.Minute),
	)
}

// Save inserts rec. A record whose run id is already stored is accepted as saved.
func (s *Service) Save(ctx context.Context, rec *analysis.Record) error {
	if rec == nil {
		return errors.New("analysispersist: nil record")
	}
	row := toRow(rec)
	if _, err := s.model.Insert(ctx, row); err != nil {
		if isUniqueViolation(err) {
			logx.WithContext(ctx).Infof("analysispersist: run=%s already stored", rec.RunID)
			return nil
		}
		return fmt.Errorf("analysispersist: insert symbol=%s: %w", rec.Symbol, err)
	}
	s.cacheLatest(ctx, rec)
	return nil
}

// Latest returns the newest record stored for symbol.
func (s *Service) Latest(ctx context.Context, symbol string) (*analysis.Record, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if s.cache == nil {
		row, err := s.model.FindLatestBySymbol(ctx, symbol)
		if err != nil {
			return nil, translate(err)
		}
		return fromRow(row), nil
	}

	var rec analysis.Record
	err := s.cache.TakeCtx(ctx, &rec, cachekeys.AnalysisLatestKey(symbol), func(val any) error {
		row, err := s.model.FindLatestBySymbol(ctx, symbol)
		if err != nil {
			return err
		}
		*val.(*analysis.Record) = *fromRow(row)
		return nil
	})
	if err != nil {
		return nil, translate(err)
	}
	return &rec, nil
}

func (s *Service) cacheLatest(ctx context.Context, rec *analysis.Record) {
	if s.cache == nil {
		return
	}
	key := cachekeys.AnalysisLatestKey(rec.Symbol)
	if err := s.cache.SetWithExpireCtx(ctx, key, rec, cachekeys.AnalysisLatestTTL(s.ttl)); err != nil {
		logx.WithContext(ctx).Errorf("analysispersist: cache latest key=%s err=%v", key, err)
	}
}

func translate(err error) error {
	if errors.Is(err, model.ErrNotFound) {
		return analysis.ErrNoRecord
	}
	return fmt.Errorf("analysispersist: latest: %w", err)
}

func toRow(rec *analysis.Record) *model.AnalysisResult {
	row := &model.AnalysisResult{
		RunId:             rec.RunID,
		Symbol:            strings.ToUpper(rec.Symbol),
		NewsAnalysis:      rec.NewsAnalysis,
		FinancialAnalysis: rec.FilingAnalysis,
		Prediction:        rec.Prediction,
		CreatedAt:         rec.CreatedAt.UTC(),
	}
	if rec.ConfidenceScore != nil {
		row.ConfidenceScore = sql.NullFloat64{Float64: *rec.ConfidenceScore, Valid: true}
	}
	return row
}

func fromRow(row *model.AnalysisResult) *analysis.Record {
	rec := &analysis.Record{
		RunID:          row.RunId,
		Symbol:         row.Symbol,
		NewsAnalysis:   row.NewsAnalysis,
		FilingAnalysis: row.FinancialAnalysis,
		Prediction:     row.Prediction,
		CreatedAt:      row.CreatedAt.UTC(),
	}
	if row.ConfidenceScore.Valid {
		v := row.ConfidenceScore.Float64
		rec.ConfidenceScore = &v
	}
	return rec
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == uniqueViolation
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == uniqueViolation
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		return liteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
	}
	return false
}
