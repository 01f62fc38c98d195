package logic

import (
	"context"
	"time"

	"github.com/zeromicro/go-zero/core/logx"

	"quant-api/internal/svc"
	"quant-api/internal/types"
)

type LatestLogic struct {
	logx.Logger
	ctx    context.Context
	svcCtx *svc.ServiceContext
}

func NewLatestLogic(ctx context.Context, svcCtx *svc.ServiceContext) *LatestLogic {
	return &LatestLogic{
		Logger: logx.WithContext(ctx),
		ctx:    ctx,
		svcCtx: svcCtx,
	}
}

func (l *LatestLogic) Latest(req *types.SymbolRequest) (resp *types.AnalysisRecord, err error) {
	symbol, err := NormalizeSymbol(req.Symbol)
	if err != nil {
		return nil, err
	}
	rec, err := l.svcCtx.Store.Latest(l.ctx, symbol)
	if err != nil {
		return nil, err
	}
	return &types.AnalysisRecord{
		RunID:           rec.RunID,
		Symbol:          rec.Symbol,
		NewsAnalysis:    rec.NewsAnalysis,
		FinancialReport: rec.FilingAnalysis,
		Prediction:      rec.Prediction,
		ConfidenceScore: rec.ConfidenceScore,
		CreatedAt:       rec.CreatedAt.UTC().Format(time.RFC3339),
	}, nil
}
