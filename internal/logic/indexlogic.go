package logic

import (
	"context"

	"github.com/zeromicro/go-zero/core/logx"

	"quant-api/internal/svc"
	"quant-api/internal/types"
)

// Version is reported by the index route.
const Version = "1.0.0"

type IndexLogic struct {
	logx.Logger
	ctx    context.Context
	svcCtx *svc.ServiceContext
}

func NewIndexLogic(ctx context.Context, svcCtx *svc.ServiceContext) *IndexLogic {
	return &IndexLogic{
		Logger: logx.WithContext(ctx),
		ctx:    ctx,
		svcCtx: svcCtx,
	}
}

func (l *IndexLogic) Index() (resp *types.IndexResponse, err error) {
	name := l.svcCtx.Config.Name
	if name == "" {
		name = "quant-api"
	}
	return &types.IndexResponse{
		Message: name + ": stock analysis and prediction service",
		Version: Version,
	}, nil
}
