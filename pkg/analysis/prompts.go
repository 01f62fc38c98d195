package analysis

import (
	"embed"
	"fmt"
	"strconv"
	"text/template"

	"quant-api/pkg/datasource"
	"quant-api/pkg/indicators"
	"quant-api/pkg/prompt"
)

//go:embed prompts/*.tmpl
var defaultPrompts embed.FS

// NoAnalysis replaces the text of a stage that failed or produced nothing.
const NoAnalysis = "No analysis available."

var promptFuncs = template.FuncMap{
	"opt": func(v *float64) string {
		if v == nil {
			return "n/a"
		}
		return strconv.FormatFloat(*v, 'f', 2, 64)
	},
}

// Prompts holds the three stage templates.
type Prompts struct {
	News       *prompt.Template
	Filing     *prompt.Template
	Prediction *prompt.Template
}

// NewsPromptData feeds the news template.
type NewsPromptData struct {
	Symbol string
	Items  []datasource.NewsItem
}

// FilingPromptData feeds the filing template.
type FilingPromptData struct {
	Symbol     string
	ReportType string
	Text       string
}

// PredictionPromptData feeds the prediction template.
type PredictionPromptData struct {
	Symbol         string
	NewsAnalysis   string
	FilingAnalysis string
	Indicators     indicators.Snapshot
}

// LoadPrompts loads each template from its override path, or from the
// embedded defaults when the path is empty.
func LoadPrompts(paths PromptPaths) (*Prompts, error) {
	load := func(path, name string) (*prompt.Template, error) {
		if path != "" {
			return prompt.New(prompt.File(path), promptFuncs)
		}
		return prompt.New(prompt.FS(defaultPrompts, "prompts/"+name), promptFuncs)
	}
	news, err := load(paths.News, "news.tmpl")
	if err != nil {
		return nil, fmt.Errorf("load news prompt: %w", err)
	}
	filing, err := load(paths.Filing, "filing.tmpl")
	if err != nil {
		return nil, fmt.Errorf("load filing prompt: %w", err)
	}
	prediction, err := load(paths.Prediction, "prediction.tmpl")
	if err != nil {
		return nil, fmt.Errorf("load prediction prompt: %w", err)
	}
	return &Prompts{News: news, Filing: filing, Prediction: prediction}, nil
}

// MustDefaultPrompts returns the embedded templates and panics if they do not parse.
func MustDefaultPrompts() *Prompts {
	p, err := LoadPrompts(PromptPaths{})
	if err != nil {
		panic(err)
	}
	return p
}

func (p *Prompts) template(stage Stage) *prompt.Template {
	switch stage {
	case StageNews:
		return p.News
	case StageFiling:
		return p.Filing
	default:
		return p.Prediction
	}
}
