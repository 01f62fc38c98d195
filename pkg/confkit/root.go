package confkit

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/joho/godotenv"
)

const maxWalkDepth = 8

var dotenvOnce sync.Once

// LoadDotenvOnce loads .env files for the process once. QUANT_ENV_FILE names
// an explicit file; otherwise every .env between this package and the module
// root is read, nearest first. Set QUANT_NO_DOTENV=1 to skip loading and
// QUANT_DOTENV_OVERLOAD=1 to let files override the existing environment.
func LoadDotenvOnce() {
	dotenvOnce.Do(loadDotenv)
}

func loadDotenv() {
	if os.Getenv("QUANT_NO_DOTENV") == "1" {
		return
	}
	load := godotenv.Load
	if os.Getenv("QUANT_DOTENV_OVERLOAD") == "1" {
		load = godotenv.Overload
	}
	if f := os.Getenv("QUANT_ENV_FILE"); f != "" {
		_ = load(f)
		return
	}
	dir, ok := sourceDir()
	if !ok {
		_ = load(".env")
		return
	}
	walkUp(dir, func(d string) bool {
		if p := filepath.Join(d, ".env"); isFile(p) {
			_ = load(p)
		}
		return isModuleRoot(d)
	})
}

// ProjectRoot finds the module root by walking up from this source file to
// the first directory holding go.mod or .git. It falls back to the working
// directory when the source tree is not available, as in a deployed binary.
func ProjectRoot() (string, error) {
	if dir, ok := sourceDir(); ok {
		root := ""
		walkUp(dir, func(d string) bool {
			if isModuleRoot(d) {
				root = d
				return true
			}
			return false
		})
		if root != "" {
			return root, nil
		}
	}
	wd, err := os.Getwd()
	if err != nil {
		return ".", fmt.Errorf("getwd: %w", err)
	}
	return wd, nil
}

// ProjectPath joins the module root with rel.
func ProjectPath(rel string) (string, error) {
	root, err := ProjectRoot()
	if err != nil {
		return "", err
	}
	return filepath.Join(root, rel), nil
}

// MustProjectPath panics when the module root cannot be found.
func MustProjectPath(rel string) string {
	p, err := ProjectPath(rel)
	if err != nil {
		panic(err)
	}
	return p
}

func sourceDir() (string, bool) {
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		return "", false
	}
	return filepath.Dir(file), true
}

// walkUp calls visit on dir and its parents until visit returns true,
// the filesystem root is reached or maxWalkDepth levels were seen.
func walkUp(dir string, visit func(string) bool) {
	for range maxWalkDepth {
		if visit(dir) {
			return
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return
		}
		dir = parent
	}
}

func isModuleRoot(dir string) bool {
	return isFile(filepath.Join(dir, "go.mod")) || exists(filepath.Join(dir, ".git"))
}

func isFile(p string) bool {
	fi, err := os.Stat(p)
	return err == nil && fi.Mode().IsRegular()
}

func exists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
