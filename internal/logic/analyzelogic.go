package logic

import (
	"context"

	"github.com/zeromicro/go-zero/core/logx"

	"quant-api/internal/svc"
	"quant-api/internal/types"
	"quant-api/pkg/analysis"
	"quant-api/pkg/stream"
)

type AnalyzeLogic struct {
	logx.Logger
	ctx    context.Context
	svcCtx *svc.ServiceContext
}

func NewAnalyzeLogic(ctx context.Context, svcCtx *svc.ServiceContext) *AnalyzeLogic {
	return &AnalyzeLogic{
		Logger: logx.WithContext(ctx),
		ctx:    ctx,
		svcCtx: svcCtx,
	}
}

// Prepare validates req and gathers the pipeline inputs. Errors returned here
// happen before any event is written and map to an HTTP status.
func (l *AnalyzeLogic) Prepare(req *types.AnalyzeRequest) (analysis.Request, error) {
	symbol, err := NormalizeSymbol(req.Symbol)
	if err != nil {
		return analysis.Request{}, err
	}
	return GatherInputs(l.ctx, l.svcCtx, symbol, InputOptions{
		Period:     req.Period,
		Days:       req.Days,
		FilingType: req.FilingType,
	})
}

// Stream runs the pipeline and hands every event to emit. A failing emit
// stops the run.
func (l *AnalyzeLogic) Stream(in analysis.Request, emit func(stream.Event) error) error {
	_, err := l.svcCtx.Pipeline.Run(l.ctx, in, func(ev stream.Event) bool {
		if err := emit(ev); err != nil {
			l.Infof("logic: stream closed symbol=%s err=%v", in.Symbol, err)
			return false
		}
		return true
	})
	return err
}
