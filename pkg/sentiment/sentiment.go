// Package sentiment scores news polarity with a small finance lexicon.
package sentiment

import (
	"math"
	"strings"
	"unicode"
)

// Scorer returns a polarity in [-1, 1] for a piece of text.
type Scorer interface {
	Polarity(text string) float64
}

// Lexicon is a word-list scorer. English terms match whole lowercase words;
// CJK terms match as substrings because those scripts do not delimit words.
type Lexicon struct {
	positive map[string]struct{}
	negative map[string]struct{}
	negators map[string]struct{}
	cjkPos   []string
	cjkNeg   []string
}

var (
	englishPositive = []string{
		"beat", "beats", "bullish", "gain", "gains", "growth", "grew", "improve", "improved", "jump", "jumped",
		"outperform", "profit", "profitable", "rally", "record", "rise", "rises", "rose", "strong", "surge", "surged",
		"upgrade", "upgraded", "exceed", "exceeded", "optimistic", "robust", "expand", "expansion",
	}
	englishNegative = []string{
		"bearish", "decline", "declined", "drop", "dropped", "fall", "fell", "fraud", "lawsuit", "loss", "losses",
		"miss", "missed", "plunge", "plunged", "recall", "risk", "slump", "weak", "downgrade", "downgraded",
		"layoff", "layoffs", "investigation", "default", "bankruptcy", "pessimistic", "shortfall", "warning",
	}
	englishNegators = []string{"not", "no", "never", "without", "didn't", "don't", "isn't", "wasn't"}

	chinesePositive = []string{"增长", "上涨", "利好", "盈利", "超预期", "突破", "强劲", "改善", "创新高"}
	chineseNegative = []string{"下跌", "亏损", "利空", "下滑", "风险", "诉讼", "裁员", "低于预期", "违约"}
)

// NewLexicon returns the built-in finance lexicon.
func NewLexicon() *Lexicon {
	return &Lexicon{
		positive: set(englishPositive),
		negative: set(englishNegative),
		negators: set(englishNegators),
		cjkPos:   chinesePositive,
		cjkNeg:   chineseNegative,
	}
}

func set(words []string) map[string]struct{} {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}

// Polarity is (positive-negative)/(positive+negative) over matched terms, or 0
// when nothing matches. A negator flips the next matched English term.
func (l *Lexicon) Polarity(text string) float64 {
	var pos, neg int
	negate := false
	for _, tok := range tokenize(text) {
		if _, ok := l.negators[tok]; ok {
			negate = true
			continue
		}
		_, isPos := l.positive[tok]
		_, isNeg := l.negative[tok]
		if !isPos && !isNeg {
			continue
		}
		if isPos != negate {
			pos++
		} else {
			neg++
		}
		negate = false
	}
	for _, term := range l.cjkPos {
		pos += strings.Count(text, term)
	}
	for _, term := range l.cjkNeg {
		neg += strings.Count(text, term)
	}
	if pos+neg == 0 {
		return 0
	}
	return float64(pos-neg) / float64(pos+neg)
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && r != '\''
	})
}

// Consistency is 1 - min(σ, 1) where σ is the population standard deviation
// of the polarities. An empty input yields 0.
func Consistency(polarities []float64) float64 {
	if len(polarities) == 0 {
		return 0
	}
	mean := 0.0
	for _, p := range polarities {
		mean += p
	}
	mean /= float64(len(polarities))
	variance := 0.0
	for _, p := range polarities {
		variance += (p - mean) * (p - mean)
	}
	std := math.Sqrt(variance / float64(len(polarities)))
	return 1 - math.Min(std, 1)
}
