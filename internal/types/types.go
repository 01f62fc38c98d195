// Code scaffolded by goctl. Safe to edit.
// goctl 1.9.2

package types

type IndexResponse struct {
	Message string `json:"message"`
	Version string `json:"version"`
}

type SymbolRequest struct {
	Symbol string `path:"symbol"`
}

type StockRequest struct {
	Symbol string `path:"symbol"`
	Period string `form:"period,optional"`
}

type PriceRow struct {
	Date   string   `json:"date"`
	Open   *float64 `json:"open"`
	High   *float64 `json:"high"`
	Low    *float64 `json:"low"`
	Close  *float64 `json:"close_price"`
	Volume *int64   `json:"volume"`
}

type IndicatorSnapshot struct {
	MA5   *float64 `json:"ma5"`
	MA10  *float64 `json:"ma10"`
	RSI   *float64 `json:"rsi"`
	Trend string   `json:"trend"`
}

type StockResponse struct {
	Symbol     string            `json:"symbol"`
	Period     string            `json:"period"`
	Rows       []PriceRow        `json:"rows"`
	Indicators IndicatorSnapshot `json:"indicators"`
}

type AnalyzeRequest struct {
	Symbol     string `path:"symbol"`
	Period     string `form:"period,optional"`
	Days       int    `form:"days,optional"`
	FilingType string `form:"filing_type,optional"`
}

type AnalysisRecord struct {
	RunID           string   `json:"run_id"`
	Symbol          string   `json:"symbol"`
	NewsAnalysis    string   `json:"news_analysis"`
	FinancialReport string   `json:"financial_analysis"`
	Prediction      string   `json:"prediction"`
	ConfidenceScore *float64 `json:"confidence_score"`
	CreatedAt       string   `json:"created_at"`
}
