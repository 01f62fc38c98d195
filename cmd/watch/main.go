// Command watch calls the analyze endpoint and renders the event stream in
// the terminal as it arrives.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"quant-api/pkg/analysis"
	"quant-api/pkg/stream"
)

func main() {
	var (
		server = flag.String("server", "http://localhost:8888", "base URL of the quant API")
		symbol = flag.String("symbol", "", "ticker symbol to analyse")
		period = flag.String("period", "", "price history range")
	)
	flag.Parse()

	if strings.TrimSpace(*symbol) == "" {
		fmt.Fprintln(os.Stderr, "watch: -symbol is required")
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := watch(ctx, http.DefaultClient, *server, *symbol, *period, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "watch: %v\n", err)
		os.Exit(1)
	}
}

func watch(ctx context.Context, client *http.Client, server, symbol, period string, out io.Writer) error {
	u, err := url.Parse(strings.TrimRight(server, "/") + "/api/v1/stock/" + url.PathEscape(strings.ToUpper(symbol)) + "/analyze")
	if err != nil {
		return err
	}
	if period != "" {
		u.RawQuery = url.Values{"period": []string{period}}.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return fmt.Errorf("server returned %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	r := stream.NewReader(resp.Body)
	var last stream.Event
	for {
		ev, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		var decErr *stream.DecodeError
		if errors.As(err, &decErr) {
			fmt.Fprintf(out, "\n[skipped malformed fragment: %v]\n", decErr)
			continue
		}
		if err != nil {
			return err
		}
		render(out, ev)
		last = ev
	}
	return summarize(out, last)
}

func render(out io.Writer, ev stream.Event) {
	switch e := ev.(type) {
	case stream.Status:
		fmt.Fprintf(out, "\n== %s %s ==\n", e.Status, e.Timestamp.Local().Format("15:04:05"))
	case stream.Content:
		fmt.Fprint(out, e.Text)
	case stream.Error:
		fmt.Fprintf(out, "\n!! %s\n", e.Message)
	case stream.Complete:
		fmt.Fprintln(out)
	}
}

// summarize prints the closing summary. The last event of a well-formed
// stream is always a Complete.
func summarize(out io.Writer, last stream.Event) error {
	done, ok := last.(stream.Complete)
	if !ok {
		return errors.New("stream ended without a summary")
	}
	var final analysis.FinalPayload
	if err := done.Decode(&final); err != nil {
		return err
	}
	confidence := "n/a"
	if final.ConfidenceScore != nil {
		confidence = fmt.Sprintf("%.2f", *final.ConfidenceScore)
	}
	fmt.Fprintf(out, "== %s done at %s, confidence %s ==\n",
		final.Symbol, final.Timestamp.Local().Format("2006-01-02 15:04:05"), confidence)
	return nil
}
