package model

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/zeromicro/go-zero/core/stores/sqlx"
)

var _ AnalysisResultModel = (*customAnalysisResultModel)(nil)

// Dialect selects placeholder style and DDL.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

const analysisResultTable = "analysis_result"

var pgPlaceholder = regexp.MustCompile(`\$(\d+)`)

type (
	// AnalysisResultModel is an interface to be customized, add more methods here,
	// and implement the added methods in customAnalysisResultModel.
	AnalysisResultModel interface {
		analysisResultModel
		FindLatestBySymbol(ctx context.Context, symbol string) (*AnalysisResult, error)
		EnsureSchema(ctx context.Context) error
	}

	customAnalysisResultModel struct {
		*defaultAnalysisResultModel
		dialect Dialect
	}
)

// DialectForDriver maps a database/sql driver name to its dialect.
func DialectForDriver(driver string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "pgx", "postgres":
		return DialectPostgres, nil
	case "sqlite", "sqlite3":
		return DialectSQLite, nil
	default:
		return "", fmt.Errorf("model: unsupported driver %q", driver)
	}
}

// NewAnalysisResultModel returns a model for the database table.
func NewAnalysisResultModel(conn sqlx.SqlConn, dialect Dialect) AnalysisResultModel {
	table := `"public"."analysis_result"`
	rebind := func(q string) string { return q }
	if dialect == DialectSQLite {
		table = `"analysis_result"`
		rebind = func(q string) string { return pgPlaceholder.ReplaceAllString(q, "?$1") }
	}
	return &customAnalysisResultModel{
		defaultAnalysisResultModel: newAnalysisResultModel(conn, table, rebind),
		dialect:                    dialect,
	}
}

func (m *customAnalysisResultModel) FindLatestBySymbol(ctx context.Context, symbol string) (*AnalysisResult, error) {
	query := fmt.Sprintf("select %s from %s where symbol = $1 order by created_at desc, id desc limit 1", analysisResultRows, m.table)
	var resp AnalysisResult
	err := m.conn.QueryRowCtx(ctx, &resp, m.rebind(query), symbol)
	switch err {
	case nil:
		return &resp, nil
	case sqlx.ErrNotFound:
		return nil, ErrNotFound
	default:
		return nil, err
	}
}

// EnsureSchema creates the table and its indexes when missing.
func (m *customAnalysisResultModel) EnsureSchema(ctx context.Context) error {
	for _, stmt := range Schema(m.dialect) {
		if _, err := m.conn.ExecCtx(ctx, stmt); err != nil {
			return fmt.Errorf("model: ensure %s schema: %w", analysisResultTable, err)
		}
	}
	return nil
}

// Schema returns the DDL statements for dialect.
func Schema(dialect Dialect) []string {
	if dialect == DialectSQLite {
		return []string{
			`CREATE TABLE IF NOT EXISTS analysis_result (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id TEXT NOT NULL UNIQUE,
    symbol TEXT NOT NULL,
    news_analysis TEXT NOT NULL DEFAULT '',
    financial_analysis TEXT NOT NULL DEFAULT '',
    prediction TEXT NOT NULL DEFAULT '',
    confidence_score REAL,
    created_at DATETIME NOT NULL
)`,
			`CREATE INDEX IF NOT EXISTS idx_analysis_result_symbol_created ON analysis_result (symbol, created_at DESC)`,
		}
	}
	return []string{
		`CREATE TABLE IF NOT EXISTS public.analysis_result (
    id BIGSERIAL PRIMARY KEY,
    run_id TEXT NOT NULL UNIQUE,
    symbol TEXT NOT NULL,
    news_analysis TEXT NOT NULL DEFAULT '',
    financial_analysis TEXT NOT NULL DEFAULT '',
    prediction TEXT NOT NULL DEFAULT '',
    confidence_score DOUBLE PRECISION,
    created_at TIMESTAMPTZ NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_analysis_result_symbol_created ON public.analysis_result (symbol, created_at DESC)`,
	}
}
