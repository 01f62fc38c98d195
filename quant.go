package main

import (
	"flag"
	"fmt"

	"github.com/zeromicro/go-zero/core/logx"
	"github.com/zeromicro/go-zero/rest"
	"github.com/zeromicro/go-zero/rest/httpx"

	"quant-api/internal/cli"
	"quant-api/internal/config"
	"quant-api/internal/errorx"
	"quant-api/internal/handler"
	"quant-api/internal/svc"
)

var configFile = flag.String("f", "etc/quant.yaml", "the config file")

func main() {
	flag.Parse()

	cfg := config.MustLoad(*configFile)
	logx.MustSetup(cfg.Log)
	cli.LogConfigSummary(cfg)

	server := rest.MustNewServer(cfg.RestConf, rest.WithCors())
	defer server.Stop()

	ctx := svc.NewServiceContext(*cfg)
	handler.RegisterHandlers(server, ctx)
	httpx.SetErrorHandlerCtx(errorx.Handler)

	fmt.Printf("Starting server at %s:%d...\n", cfg.Host, cfg.Port)
	server.Start()
}
