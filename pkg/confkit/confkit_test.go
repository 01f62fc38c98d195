package confkit_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"quant-api/pkg/confkit"
)

func TestResolvePath(t *testing.T) {
	t.Setenv("QUANT_CONF_DIR", "shared")

	tests := []struct {
		name string
		base string
		file string
		want string
	}{
		{"absolute", "/srv/etc", "/opt/quant/llm.yaml", "/opt/quant/llm.yaml"},
		{"relative", "/srv/etc", "llm.yaml", "/srv/etc/llm.yaml"},
		{"env expanded", "/srv/etc", "${QUANT_CONF_DIR}/analysis.yaml", "/srv/etc/shared/analysis.yaml"},
		{"empty", "/srv/etc", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, confkit.ResolvePath(tt.base, tt.file))
		})
	}
}

func TestBaseDir(t *testing.T) {
	require.Equal(t, "/srv/etc", confkit.BaseDir("/srv/etc/quant.yaml"))
	require.Equal(t, "etc", confkit.BaseDir("etc/quant.yaml"))
}

type section struct{ Model string }

func TestSectionHydrate(t *testing.T) {
	t.Run("empty file is skipped", func(t *testing.T) {
		var s confkit.Section[section]
		require.NoError(t, s.Hydrate("/srv/etc", func(string) (*section, error) {
			t.Fatal("loader must not run")
			return nil, nil
		}))
		require.False(t, s.Loaded())
	})

	t.Run("loads relative to base", func(t *testing.T) {
		s := confkit.Section[section]{File: "llm.yaml"}
		var seen string
		require.NoError(t, s.Hydrate("/srv/etc", func(p string) (*section, error) {
			seen = p
			return &section{Model: "deepseek-chat"}, nil
		}))
		require.Equal(t, "/srv/etc/llm.yaml", seen)
		require.Equal(t, "/srv/etc/llm.yaml", s.File)
		require.True(t, s.Loaded())
		require.Equal(t, "deepseek-chat", s.Value.Model)
	})

	t.Run("preset value wins", func(t *testing.T) {
		s := confkit.Section[section]{File: "llm.yaml", Value: &section{Model: "inline"}}
		require.NoError(t, s.Hydrate("/srv/etc", func(string) (*section, error) {
			t.Fatal("loader must not run")
			return nil, nil
		}))
		require.Equal(t, "inline", s.Value.Model)
	})

	t.Run("loader errors are wrapped", func(t *testing.T) {
		boom := errors.New("boom")
		s := confkit.Section[section]{File: "analysis.yaml"}
		err := s.Hydrate("/srv/etc", func(string) (*section, error) { return nil, boom })
		require.ErrorIs(t, err, boom)
		require.ErrorContains(t, err, "section analysis.yaml")
		require.False(t, s.Loaded())
	})

	t.Run("nil value is rejected", func(t *testing.T) {
		s := confkit.Section[section]{File: "analysis.yaml"}
		err := s.Hydrate("/srv/etc", func(string) (*section, error) { return nil, nil })
		require.ErrorContains(t, err, "no value")
	})
}

func TestProjectPath(t *testing.T) {
	root, err := confkit.ProjectRoot()
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(root, "go.mod"))
	require.NoError(t, err)

	p := confkit.MustProjectPath("etc/quant.yaml")
	require.Equal(t, filepath.Join(root, "etc", "quant.yaml"), p)
	_, err = os.Stat(p)
	require.NoError(t, err)
}
