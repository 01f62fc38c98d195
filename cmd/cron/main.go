// Command cron analyses the configured watchlist on a schedule and persists
// each record.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/zeromicro/go-zero/core/logx"

	"quant-api/internal/cli"
	"quant-api/internal/config"
	"quant-api/internal/scheduler"
	"quant-api/internal/svc"
)

const symbolTimeout = 10 * time.Minute

func main() {
	configPath := flag.String("f", "etc/quant.yaml", "path to the main config file")
	runNow := flag.Bool("now", false, "run the watchlist once at startup")
	flag.Parse()

	cfg := config.MustLoad(*configPath)
	logx.MustSetup(cfg.Log)
	cli.LogConfigSummary(cfg)

	svcCtx := svc.NewServiceContext(*cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := scheduler.New(svcCtx, cfg.Cron, symbolTimeout)
	logx.Must(err)
	logx.Must(s.Register(ctx))

	if *runNow {
		s.RunOnce(ctx)
	}
	s.Start()
	logx.Info("cron: running, press Ctrl+C to stop")

	<-ctx.Done()
	logx.Info("cron: shutdown signal received")
	s.Stop()
}
