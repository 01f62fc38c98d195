package cleaner

import (
	"math"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"quant-api/pkg/datasource"
)

// Column identifies a numeric series column.
type Column int

const (
	Open Column = iota
	High
	Low
	Close
	Volume
	numColumns
)

var columnNames = [numColumns]string{"open", "high", "low", "close", "volume"}

func (c Column) String() string {
	if c < 0 || c >= numColumns {
		return "unknown"
	}
	return columnNames[c]
}

// Row is a repaired daily bar on the original price scale.
type Row struct {
	Date     time.Time `json:"date"`
	Open     float64   `json:"open"`
	High     float64   `json:"high"`
	Low      float64   `json:"low"`
	Close    float64   `json:"close"`
	Volume   float64   `json:"volume"`
	Currency string    `json:"currency,omitempty"`
}

// Value returns the value of column c.
func (r Row) Value(c Column) float64 {
	switch c {
	case Open:
		return r.Open
	case High:
		return r.High
	case Low:
		return r.Low
	case Close:
		return r.Close
	case Volume:
		return r.Volume
	}
	return math.NaN()
}

func (r *Row) set(c Column, v float64) {
	switch c {
	case Open:
		r.Open = v
	case High:
		r.High = v
	case Low:
		r.Low = v
	case Close:
		r.Close = v
	case Volume:
		r.Volume = v
	}
}

// Bounds is the clipping interval applied to one column.
type Bounds struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

// Report counts the repairs made during one cleaning pass.
type Report struct {
	ForwardFilled int               `json:"forward_filled"`
	MedianFilled  int               `json:"median_filled"`
	ModeFilled    int               `json:"mode_filled"`
	Clipped       int               `json:"clipped"`
	Dropped       int               `json:"dropped"`
	Bounds        map[string]Bounds `json:"bounds"`
}

// Series is the output of CleanSeries. Rows keep the original scale and feed
// the indicator engine; Normalized holds z-scored numeric columns for
// statistics only.
type Series struct {
	Rows       []Row
	Normalized []Row
	Report     Report
}

// Len returns the number of rows.
func (s Series) Len() int { return len(s.Rows) }

// Closes returns the close column oldest first.
func (s Series) Closes() []float64 {
	out := make([]float64, len(s.Rows))
	for i, r := range s.Rows {
		out[i] = r.Close
	}
	return out
}

// CleanSeries repairs missing values, clips outliers with the 1.5·IQR rule
// and derives a normalized copy. Rows are ordered by date. A row is dropped
// only when it has no date or its close cannot be imputed because the whole
// close column is missing; other fully missing columns are zero-filled.
func CleanSeries(points []datasource.PricePoint) Series {
	report := Report{Bounds: make(map[string]Bounds, numColumns)}

	kept := make([]datasource.PricePoint, 0, len(points))
	for _, p := range points {
		if p.Date.IsZero() {
			report.Dropped++
			continue
		}
		kept = append(kept, p)
	}
	slices.SortStableFunc(kept, func(a, b datasource.PricePoint) int { return a.Date.Compare(b.Date) })

	n := len(kept)
	var cols [numColumns][]float64
	for c := range cols {
		cols[c] = make([]float64, n)
	}
	currency := make([]string, n)
	for i, p := range kept {
		cols[Open][i] = decimalValue(p.Open)
		cols[High][i] = decimalValue(p.High)
		cols[Low][i] = decimalValue(p.Low)
		cols[Close][i] = decimalValue(p.Close)
		cols[Volume][i] = math.NaN()
		if p.Volume != nil {
			cols[Volume][i] = float64(*p.Volume)
		}
		currency[i] = p.Currency
	}

	for c := range cols {
		report.ForwardFilled += forwardFill(cols[c])
	}
	for c := range cols {
		report.MedianFilled += fillWith(cols[c], median(cols[c]))
	}
	if fill := mode(currency); fill != "" {
		for i := range currency {
			if currency[i] == "" {
				currency[i] = fill
				report.ModeFilled++
			}
		}
	}

	// Only an all-missing column survives the median pass with NaNs left.
	if n > 0 && math.IsNaN(cols[Close][0]) {
		report.Dropped += n
		return Series{Report: report}
	}
	for c := range cols {
		fillWith(cols[c], 0)
	}

	for c := range cols {
		b, clipped := clipIQR(cols[c])
		report.Clipped += clipped
		report.Bounds[Column(c).String()] = b
	}

	rows := make([]Row, n)
	for i, p := range kept {
		rows[i] = Row{Date: p.Date, Currency: currency[i]}
		for c := range cols {
			rows[i].set(Column(c), cols[c][i])
		}
	}
	return Series{Rows: rows, Normalized: normalize(rows, cols), Report: report}
}

func decimalValue(d decimal.NullDecimal) float64 {
	if !d.Valid {
		return math.NaN()
	}
	f, _ := d.Decimal.Float64()
	return f
}

func forwardFill(col []float64) int {
	filled := 0
	for i := 1; i < len(col); i++ {
		if math.IsNaN(col[i]) && !math.IsNaN(col[i-1]) {
			col[i] = col[i-1]
			filled++
		}
	}
	return filled
}

func fillWith(col []float64, v float64) int {
	if math.IsNaN(v) {
		return 0
	}
	filled := 0
	for i := range col {
		if math.IsNaN(col[i]) {
			col[i] = v
			filled++
		}
	}
	return filled
}

// clipIQR clamps col in place to [Q1-1.5·IQR, Q3+1.5·IQR] computed before clipping.
func clipIQR(col []float64) (Bounds, int) {
	if len(col) == 0 {
		return Bounds{}, 0
	}
	q1 := quantile(col, 0.25)
	q3 := quantile(col, 0.75)
	iqr := q3 - q1
	b := Bounds{Lower: q1 - 1.5*iqr, Upper: q3 + 1.5*iqr}
	clipped := 0
	for i, v := range col {
		switch {
		case v < b.Lower:
			col[i] = b.Lower
			clipped++
		case v > b.Upper:
			col[i] = b.Upper
			clipped++
		}
	}
	return b, clipped
}

func normalize(rows []Row, cols [numColumns][]float64) []Row {
	out := make([]Row, len(rows))
	copy(out, rows)
	for c := range cols {
		mean, std := meanStd(cols[c])
		if std == 0 {
			continue
		}
		for i := range out {
			out[i].set(Column(c), (cols[c][i]-mean)/std)
		}
	}
	return out
}
