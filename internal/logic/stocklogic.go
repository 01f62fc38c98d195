package logic

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/zeromicro/go-zero/core/logx"

	"quant-api/internal/svc"
	"quant-api/internal/types"
	"quant-api/pkg/cleaner"
	"quant-api/pkg/datasource"
	"quant-api/pkg/indicators"
)

type StockLogic struct {
	logx.Logger
	ctx    context.Context
	svcCtx *svc.ServiceContext
}

func NewStockLogic(ctx context.Context, svcCtx *svc.ServiceContext) *StockLogic {
	return &StockLogic{
		Logger: logx.WithContext(ctx),
		ctx:    ctx,
		svcCtx: svcCtx,
	}
}

// Stock returns the raw daily bars of a symbol and the indicators of the cleaned series.
func (l *StockLogic) Stock(req *types.StockRequest) (resp *types.StockResponse, err error) {
	symbol, err := NormalizeSymbol(req.Symbol)
	if err != nil {
		return nil, err
	}
	period := req.Period
	if period == "" {
		period = l.svcCtx.Pipeline.Config().Period
	}

	points, err := l.svcCtx.Source.FetchPrices(l.ctx, symbol, period)
	if err != nil {
		return nil, err
	}
	if len(points) == 0 {
		return nil, datasource.ErrNotFound
	}

	rows := make([]types.PriceRow, len(points))
	for i, p := range points {
		rows[i] = types.PriceRow{
			Date:   p.Date.UTC().Format(time.DateOnly),
			Open:   floatOf(p.Open),
			High:   floatOf(p.High),
			Low:    floatOf(p.Low),
			Close:  floatOf(p.Close),
			Volume: p.Volume,
		}
	}
	snap := indicators.Compute(cleaner.CleanSeries(points))
	return &types.StockResponse{
		Symbol: symbol,
		Period: period,
		Rows:   rows,
		Indicators: types.IndicatorSnapshot{
			MA5:   snap.MA5,
			MA10:  snap.MA10,
			RSI:   snap.RSI,
			Trend: string(snap.Trend),
		},
	}, nil
}

func floatOf(d decimal.NullDecimal) *float64 {
	if !d.Valid {
		return nil
	}
	f := d.Decimal.InexactFloat64()
	return &f
}
