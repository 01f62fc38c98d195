// Package confkit holds the small pieces shared by every config loader:
// path resolution against the main config file, side-file sections and
// .env discovery.
package confkit

import (
	"fmt"
	"os"
	"path/filepath"
)

// ResolvePath expands env vars in file and anchors relative results at base.
func ResolvePath(base, file string) string {
	file = os.ExpandEnv(file)
	if file == "" || filepath.IsAbs(file) {
		return file
	}
	return filepath.Join(base, file)
}

// BaseDir returns the directory relative side files are resolved against.
func BaseDir(mainPath string) string {
	return filepath.Dir(mainPath)
}

// Section is a config block that lives in its own file, e.g. `LLM: {File: llm.yaml}`.
type Section[T any] struct {
	File  string `json:",optional"`
	Value *T     `json:"-"`
}

// Loaded reports whether the section carries a value.
func (s Section[T]) Loaded() bool {
	return s.Value != nil
}

// Hydrate loads File through loader and stores the result. An empty File,
// or a section that already carries a value, is left untouched.
func (s *Section[T]) Hydrate(base string, loader func(string) (*T, error)) error {
	if s.File == "" || s.Value != nil {
		return nil
	}
	p := ResolvePath(base, s.File)
	v, err := loader(p)
	if err != nil {
		return fmt.Errorf("section %s: %w", filepath.Base(p), err)
	}
	if v == nil {
		return fmt.Errorf("section %s: loader returned no value", filepath.Base(p))
	}
	s.File, s.Value = p, v
	return nil
}
