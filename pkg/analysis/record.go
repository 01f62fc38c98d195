package analysis

import (
	"context"
	"time"
)

// Record is the consolidated result of one pipeline run.
type Record struct {
	RunID           string    `json:"run_id"`
	Symbol          string    `json:"symbol"`
	NewsAnalysis    string    `json:"news_analysis"`
	FilingAnalysis  string    `json:"financial_analysis"`
	Prediction      string    `json:"prediction"`
	ConfidenceScore *float64  `json:"confidence_score"`
	CreatedAt       time.Time `json:"created_at"`
}

// ResultStore persists records.
type ResultStore interface {
	Save(ctx context.Context, rec *Record) error
}

// ResultReader looks up persisted records.
type ResultReader interface {
	Latest(ctx context.Context, symbol string) (*Record, error)
}
