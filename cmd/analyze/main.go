// Command analyze runs the pipeline for one symbol and prints the event
// stream to stdout as newline-delimited JSON.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/zeromicro/go-zero/core/logx"

	"quant-api/internal/cli"
	"quant-api/internal/config"
	"quant-api/internal/logic"
	"quant-api/internal/svc"
	"quant-api/pkg/stream"
)

func main() {
	var (
		configPath = flag.String("f", "etc/quant.yaml", "path to the main config file")
		symbol     = flag.String("symbol", "", "ticker symbol to analyse")
		period     = flag.String("period", "", "price history range (defaults to analysis config)")
		days       = flag.Int("days", 0, "news look-back in days (defaults to analysis config)")
		filingType = flag.String("filing-type", "", "10-K or 10-Q (defaults to analysis config)")
		noStore    = flag.Bool("no-store", false, "do not persist the record")
	)
	flag.Parse()

	if err := run(*configPath, *symbol, logic.InputOptions{Period: *period, Days: *days, FilingType: *filingType}, *noStore); err != nil {
		fmt.Fprintf(os.Stderr, "analyze: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, rawSymbol string, opts logic.InputOptions, noStore bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logx.MustSetup(logx.LogConf{Mode: "console", Encoding: "plain", Level: "error"})
	logx.DisableStat()
	for _, line := range cli.ConfigSummaryLines(cfg) {
		fmt.Fprintf(os.Stderr, "  - %s\n", line)
	}

	symbol, err := logic.NormalizeSymbol(rawSymbol)
	if err != nil {
		return err
	}
	if noStore {
		cfg.Store.Driver = config.DriverJournal
		cfg.Store.JournalDir = os.TempDir()
	}
	svcCtx, err := svc.Build(*cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	in, err := logic.GatherInputs(ctx, svcCtx, symbol, opts)
	if err != nil {
		return err
	}

	out := bufio.NewWriter(os.Stdout)
	defer out.Flush()
	enc := stream.NewEncoder(out)
	_, err = svcCtx.Pipeline.Run(ctx, in, func(ev stream.Event) bool {
		return enc.Encode(ev) == nil
	})
	return err
}
