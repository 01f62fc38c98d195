// Package scheduler runs the analysis pipeline for a watchlist on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/zeromicro/go-zero/core/logx"

	"quant-api/internal/config"
	"quant-api/internal/logic"
	"quant-api/internal/svc"
	"quant-api/pkg/stream"
)

// Result summarises one symbol of a batch.
type Result struct {
	Symbol     string
	RunID      string
	Errors     []string
	Confidence *float64
	Err        error
}

// Scheduler owns the cron instance.
type Scheduler struct {
	cron    *cron.Cron
	svcCtx  *svc.ServiceContext
	conf    config.CronConf
	timeout time.Duration
}

// New builds a Scheduler from the cron section of c.
func New(svcCtx *svc.ServiceContext, c config.CronConf, timeout time.Duration) (*Scheduler, error) {
	loc := time.UTC
	if tz := strings.TrimSpace(c.Timezone); tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			return nil, fmt.Errorf("scheduler: load timezone %s: %w", tz, err)
		}
		loc = l
	}
	logger := cron.PrintfLogger(printfLogger{})
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
		svcCtx:  svcCtx,
		conf:    c,
		timeout: timeout,
	}, nil
}

// Register adds the watchlist job.
func (s *Scheduler) Register(ctx context.Context) error {
	if len(s.conf.Watchlist) == 0 {
		return fmt.Errorf("scheduler: watchlist is empty")
	}
	if _, err := s.cron.AddFunc(s.conf.Spec, func() { s.RunOnce(ctx) }); err != nil {
		return fmt.Errorf("scheduler: register %q: %w", s.conf.Spec, err)
	}
	return nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	logx.Infof("scheduler: started spec=%q watchlist=%s", s.conf.Spec, strings.Join(s.conf.Watchlist, ","))
}

// Stop waits for a running batch to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	logx.Info("scheduler: stopped")
}

// RunOnce analyses every watchlist symbol in order.
func (s *Scheduler) RunOnce(ctx context.Context) []Result {
	batch := uuid.NewString()
	ctx = logx.ContextWithFields(ctx, logx.Field("batch", batch))
	logger := logx.WithContext(ctx)
	logger.Infof("scheduler: batch start symbols=%d", len(s.conf.Watchlist))

	results := make([]Result, 0, len(s.conf.Watchlist))
	for _, raw := range s.conf.Watchlist {
		if ctx.Err() != nil {
			break
		}
		res := s.runSymbol(ctx, raw)
		if res.Err != nil {
			logger.Errorf("scheduler: symbol=%s err=%v", res.Symbol, res.Err)
		} else {
			logger.Infof("scheduler: symbol=%s run=%s stage_errors=%d confidence=%s",
				res.Symbol, res.RunID, len(res.Errors), formatConfidence(res.Confidence))
		}
		results = append(results, res)
	}
	logger.Infof("scheduler: batch done symbols=%d", len(results))
	return results
}

func (s *Scheduler) runSymbol(parent context.Context, raw string) Result {
	res := Result{Symbol: strings.ToUpper(strings.TrimSpace(raw))}
	ctx := parent
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(parent, s.timeout)
		defer cancel()
	}

	symbol, err := logic.NormalizeSymbol(raw)
	if err != nil {
		res.Err = err
		return res
	}
	in, err := logic.GatherInputs(ctx, s.svcCtx, symbol, logic.InputOptions{Period: s.conf.Period})
	if err != nil {
		res.Err = err
		return res
	}
	rec, err := s.svcCtx.Pipeline.Run(ctx, in, func(ev stream.Event) bool {
		if e, ok := ev.(stream.Error); ok {
			res.Errors = append(res.Errors, e.Message)
		}
		return true
	})
	if err != nil {
		res.Err = err
		return res
	}
	res.RunID = rec.RunID
	res.Confidence = rec.ConfidenceScore
	return res
}

func formatConfidence(v *float64) string {
	if v == nil {
		return "null"
	}
	return fmt.Sprintf("%.2f", *v)
}

type printfLogger struct{}

func (printfLogger) Printf(format string, args ...any) {
	logx.Infof("cron: "+format, args...)
}
