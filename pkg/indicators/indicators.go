// Package indicators derives moving averages, RSI and a trend label from a
// cleaned daily series.
package indicators

import (
	"encoding/json"
	"math"

	"quant-api/pkg/cleaner"
)

const (
	ShortWindow = 5
	LongWindow  = 10
	RSIWindow   = 14
)

// Trend labels the relation between the short and long moving averages.
type Trend string

const (
	TrendUp      Trend = "up"
	TrendDown    Trend = "down"
	TrendFlat    Trend = "flat"
	TrendUnknown Trend = "unknown"
)

// Snapshot holds the latest indicator values. Nil means the window was not
// satisfied. Values are rounded to two decimals.
type Snapshot struct {
	MA5   *float64 `json:"ma5"`
	MA10  *float64 `json:"ma10"`
	RSI   *float64 `json:"rsi"`
	Trend Trend    `json:"trend"`
}

// String renders the snapshot for prompts and logs.
func (s Snapshot) String() string {
	data, _ := json.Marshal(s)
	return string(data)
}

// Compute evaluates the snapshot over the close column of series.
func Compute(series cleaner.Series) Snapshot {
	return FromCloses(series.Closes())
}

// FromCloses evaluates the snapshot over closes ordered oldest first.
func FromCloses(closes []float64) Snapshot {
	ma5, ok5 := LastSMA(closes, ShortWindow)
	ma10, ok10 := LastSMA(closes, LongWindow)
	rsi, okRSI := LastRSI(closes, RSIWindow)

	snap := Snapshot{Trend: TrendUnknown}
	if ok5 {
		snap.MA5 = rounded(ma5)
	}
	if ok10 {
		snap.MA10 = rounded(ma10)
	}
	if okRSI {
		snap.RSI = rounded(rsi)
	}
	if ok5 && ok10 {
		// Compare at full precision; rounding would hide small crossovers.
		switch {
		case ma5 > ma10:
			snap.Trend = TrendUp
		case ma5 < ma10:
			snap.Trend = TrendDown
		default:
			snap.Trend = TrendFlat
		}
	}
	return snap
}

// LastSMA returns the simple moving average of the trailing period values.
func LastSMA(values []float64, period int) (float64, bool) {
	if period <= 0 || len(values) < period {
		return 0, false
	}
	sum := 0.0
	for _, v := range values[len(values)-period:] {
		sum += v
	}
	return sum / float64(period), true
}

// SMA produces the rolling simple moving average; positions before the first
// full window are NaN.
func SMA(values []float64, period int) []float64 {
	out := make([]float64, len(values))
	sum := 0.0
	for i, v := range values {
		sum += v
		if i >= period {
			sum -= values[i-period]
		}
		if period <= 0 || i < period-1 {
			out[i] = math.NaN()
			continue
		}
		out[i] = sum / float64(period)
	}
	return out
}

// LastRSI returns the relative strength index over the trailing period rows.
// Each row contributes its change from the previous close; the first row of
// the series has no predecessor and contributes zero. Gains and losses are
// plain averages over the window. With no losses the index saturates at 100;
// a window with neither gains nor losses is undefined.
func LastRSI(closes []float64, period int) (float64, bool) {
	if period <= 0 || len(closes) < period {
		return 0, false
	}
	start := len(closes) - period
	var gain, loss float64
	for i := start; i < len(closes); i++ {
		if i == 0 {
			continue
		}
		d := closes[i] - closes[i-1]
		if d > 0 {
			gain += d
		} else {
			loss -= d
		}
	}
	avgGain := gain / float64(period)
	avgLoss := loss / float64(period)
	switch {
	case avgLoss == 0 && avgGain == 0:
		return 0, false
	case avgLoss == 0:
		return 100, true
	}
	return 100 - 100/(1+avgGain/avgLoss), true
}

func rounded(v float64) *float64 {
	r := math.Round(v*100) / 100
	return &r
}
