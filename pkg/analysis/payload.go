package analysis

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Stage names one analysis pass.
type Stage string

const (
	StageNews       Stage = "news"
	StageFiling     Stage = "filing"
	StagePrediction Stage = "prediction"
)

// NewsPayload is the completion data of the news stage.
type NewsPayload struct {
	Analysis             string    `json:"analysis"`
	Timestamp            time.Time `json:"timestamp"`
	SourceCount          int       `json:"source_count"`
	Symbol               string    `json:"symbol"`
	SentimentConsistency float64   `json:"sentiment_consistency"`
}

// FilingPayload is the completion data of the filing stage.
type FilingPayload struct {
	Analysis   string             `json:"analysis"`
	Timestamp  time.Time          `json:"timestamp"`
	ReportType string             `json:"report_type"`
	Symbol     string             `json:"symbol"`
	KeyMetrics map[string]float64 `json:"key_metrics"`
}

// PredictionPayload is the completion data of the prediction stage.
type PredictionPayload struct {
	Prediction      string    `json:"prediction"`
	Timestamp       time.Time `json:"timestamp"`
	Symbol          string    `json:"symbol"`
	ConfidenceScore *float64  `json:"confidence_score"`
}

// FinalPayload closes the whole event stream.
type FinalPayload struct {
	Symbol          string    `json:"symbol"`
	Prediction      string    `json:"prediction"`
	ConfidenceScore *float64  `json:"confidence_score"`
	Timestamp       time.Time `json:"timestamp"`
}

const numberPattern = `(-?\d[\d,]*(?:\.\d+)?)`

// metricPatterns match "label: [currency] number". The first match per metric wins.
var metricPatterns = []struct {
	name string
	re   *regexp.Regexp
}{
	{"revenue", labelled(`营业收入|营业总收入|总营收|营收`, `total revenues?|net revenues?|revenues?|net sales`)},
	{"net_profit", labelled(`归母净利润|净利润`, `net (?:income|profit|earnings)`)},
	{"operating_income", labelled(`营业利润`, `operating (?:income|profit)`)},
	{"gross_margin", labelled(`毛利率`, `gross margin`)},
	{"eps", labelled(`每股收益`, `diluted eps|eps|earnings per share`)},
}

// labelled builds the pattern for one metric. English labels must start at a
// word boundary; CJK labels cannot, since \b only recognises ASCII words.
func labelled(cjk, english string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)(?:` + cjk + `|\b(?:` + english + `))\s*[：:]\s*(?:[$¥€£]|usd|rmb|cny|us\$)?\s*` + numberPattern)
}

// ExtractMetrics scans text for labelled figures. Metrics without a match are
// omitted rather than zeroed.
func ExtractMetrics(text string) map[string]float64 {
	metrics := make(map[string]float64)
	for _, p := range metricPatterns {
		m := p.re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
		if err != nil {
			continue
		}
		metrics[p.name] = v
	}
	return metrics
}

const (
	verboseLines = 5
)

var (
	digitPattern = regexp.MustCompile(`[0-9]`)
	riskTerms    = []string{"risk", "challenge", "downside", "风险", "挑战"}
)

// Confidence averages three text heuristics: more than five lines (0.8 or
// 0.4), any digit (0.7 or 0.3) and risk vocabulary (0.6 or 0.4). The mean is
// rounded to two decimals. Blank text has no confidence.
func Confidence(text string) *float64 {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	verbosity := 0.4
	if strings.Count(text, "\n")+1 > verboseLines {
		verbosity = 0.8
	}
	specificity := 0.3
	if digitPattern.MatchString(text) {
		specificity = 0.7
	}
	riskAware := 0.4
	lower := strings.ToLower(text)
	for _, term := range riskTerms {
		if strings.Contains(lower, term) {
			riskAware = 0.6
			break
		}
	}
	score := math.Round((verbosity+specificity+riskAware)/3*100) / 100
	return &score
}
