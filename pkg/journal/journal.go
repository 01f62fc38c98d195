package journal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/zeromicro/go-zero/core/logx"

	"quant-api/pkg/analysis"
)

const stampLayout = "20060102T150405.000000000"

var (
	_ analysis.ResultStore  = (*Writer)(nil)
	_ analysis.ResultReader = (*Writer)(nil)
)

// Writer persists analysis records to a directory as JSON files (journal style).
type Writer struct {
	dir   string
	mu    sync.Mutex
	nowFn func() time.Time
}

// NewWriter constructs a journal writer.
func NewWriter(dir string) (*Writer, error) {
	if dir == "" {
		dir = "journal"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("journal: create dir %s: %w", dir, err)
	}
	return &Writer{dir: dir, nowFn: time.Now}, nil
}

// Dir returns the journal directory.
func (w *Writer) Dir() string { return w.dir }

// Save writes rec to a timestamped JSON file named after its symbol.
func (w *Writer) Save(ctx context.Context, rec *analysis.Record) error {
	if rec == nil {
		return errors.New("journal: nil record")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = w.nowFn()
	}
	symbol := normalize(rec.Symbol)
	if symbol == "" {
		return errors.New("journal: record without symbol")
	}
	name := fmt.Sprintf("%s_%s_%s.json", symbol, rec.CreatedAt.UTC().Format(stampLayout), safeName(rec.RunID))
	path := filepath.Join(w.dir, name)
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("journal: write %s: %w", name, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("journal: commit %s: %w", name, err)
	}
	logx.WithContext(ctx).Debugf("journal: saved run=%s path=%s", rec.RunID, path)
	return nil
}

// Latest returns the newest record written for symbol.
func (w *Writer) Latest(ctx context.Context, symbol string) (*analysis.Record, error) {
	symbol = normalize(symbol)
	if symbol == "" {
		return nil, analysis.ErrNoRecord
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	entries, err := os.ReadDir(w.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, analysis.ErrNoRecord
		}
		return nil, fmt.Errorf("journal: read dir: %w", err)
	}
	prefix := symbol + "_"
	var names []string
	for _, e := range entries {
		n := e.Name()
		if e.IsDir() || !strings.HasPrefix(n, prefix) || !strings.HasSuffix(n, ".json") {
			continue
		}
		names = append(names, n)
	}
	if len(names) == 0 {
		return nil, analysis.ErrNoRecord
	}
	sort.Strings(names)

	data, err := os.ReadFile(filepath.Join(w.dir, names[len(names)-1]))
	if err != nil {
		return nil, fmt.Errorf("journal: read record: %w", err)
	}
	var rec analysis.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("journal: decode record: %w", err)
	}
	return &rec, nil
}

func normalize(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

func safeName(s string) string {
	if s == "" {
		return "norun"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-':
			return r
		}
		return '-'
	}, s)
}
