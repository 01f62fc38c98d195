// Package prompt loads the text/template files the analysis stages render
// into LLM prompts.
package prompt

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"strings"
	"sync"
	"text/template"
)

const digestLen = 12

// Source yields raw template text.
type Source interface {
	Name() string
	Read() ([]byte, error)
}

type fileSource string

func (f fileSource) Name() string          { return string(f) }
func (f fileSource) Read() ([]byte, error) { return os.ReadFile(string(f)) }

type fsSource struct {
	fsys fs.FS
	name string
}

func (f fsSource) Name() string          { return f.name }
func (f fsSource) Read() ([]byte, error) { return fs.ReadFile(f.fsys, f.name) }

// File is a template on disk.
func File(p string) Source { return fileSource(p) }

// FS is a template inside fsys, typically an embed.FS of defaults.
func FS(fsys fs.FS, name string) Source { return fsSource{fsys: fsys, name: name} }

// Template is a parsed prompt. Missing keys fail rendering instead of
// printing "<no value>".
type Template struct {
	src   Source
	funcs template.FuncMap

	mu     sync.RWMutex
	tmpl   *template.Template
	digest string
}

// New reads and parses src.
func New(src Source, funcs template.FuncMap) (*Template, error) {
	if src == nil || strings.TrimSpace(src.Name()) == "" {
		return nil, errors.New("prompt: template source has no name")
	}
	t := &Template{src: src, funcs: funcs}
	if _, err := t.Refresh(); err != nil {
		return nil, err
	}
	return t, nil
}

// Name returns the path or embedded name of the source.
func (t *Template) Name() string { return t.src.Name() }

// Digest is a short content hash, logged next to every render so a run can be
// traced back to the prompt text that produced it.
func (t *Template) Digest() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.digest
}

// Render executes the template against data.
func (t *Template) Render(data any) (string, error) {
	t.mu.RLock()
	tmpl := t.tmpl
	t.mu.RUnlock()

	var b strings.Builder
	if err := tmpl.Execute(&b, data); err != nil {
		return "", fmt.Errorf("prompt %s: %w", t.Name(), err)
	}
	return b.String(), nil
}

// Refresh rereads the source and reparses it when the content changed.
// A parse failure keeps the previous template in place.
func (t *Template) Refresh() (bool, error) {
	raw, err := t.src.Read()
	if err != nil {
		return false, fmt.Errorf("prompt %s: read: %w", t.Name(), err)
	}
	sum := sha256.Sum256(raw)
	digest := hex.EncodeToString(sum[:])[:digestLen]

	t.mu.Lock()
	defer t.mu.Unlock()
	if digest == t.digest {
		return false, nil
	}
	tmpl, err := template.New(path.Base(t.src.Name())).
		Option("missingkey=error").
		Funcs(t.funcs).
		Parse(string(raw))
	if err != nil {
		return false, fmt.Errorf("prompt %s: parse: %w", t.Name(), err)
	}
	t.tmpl, t.digest = tmpl, digest
	return true, nil
}
