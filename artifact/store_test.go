package artifact

import (
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/require"
)

func writeArtifact(t *testing.T, s *Store, name, content string) {
	t.Helper()
	w, err := s.Create(name)
	require.Nil(t, err)
	_, err = io.WriteString(w, content)
	require.Nil(t, err)
	require.Nil(t, w.Close())
}

func TestStoreCapturesMultipleArtifacts(t *testing.T) {
	s := NewStore(nil)
	writeArtifact(t, s, "Main", "main-bytes")
	writeArtifact(t, s, "helper", "helper-bytes")

	m := s.Map()
	require.Equal(t, 2, m.Len())
	require.Equal(t, []string{"Main", "helper"}, m.Names())
	data, ok := m.Get("Main")
	require.True(t, ok)
	require.Equal(t, "main-bytes", string(data))
	require.Equal(t, len("main-bytes")+len("helper-bytes"), m.Size())
}

func TestStoreBytesVisibleOnlyAfterClose(t *testing.T) {
	s := NewStore(nil)
	w, err := s.Create("Main")
	require.Nil(t, err)
	_, err = w.Write([]byte("partial"))
	require.Nil(t, err)
	require.False(t, s.Map().Has("Main"))

	require.Nil(t, w.Close())
	require.True(t, s.Map().Has("Main"))

	_, err = w.Write([]byte("more"))
	require.Error(t, err)
}

func TestStoreRejectsDuplicateNames(t *testing.T) {
	s := NewStore(nil)
	writeArtifact(t, s, "Main", "a")
	_, err := s.Create("Main")
	require.True(t, errors.Is(err, ErrExists))
}

func TestStoreOpenFallsBack(t *testing.T) {
	fallback := fstest.MapFS{
		"dep" + Ext: &fstest.MapFile{Data: []byte("precompiled")},
	}
	s := NewStore(fallback)
	writeArtifact(t, s, "Main", "captured")

	r, err := s.Open("Main")
	require.Nil(t, err)
	data, err := io.ReadAll(r)
	require.Nil(t, err)
	require.Equal(t, "captured", string(data))

	r, err = s.Open("dep")
	require.Nil(t, err)
	data, err = io.ReadAll(r)
	require.Nil(t, err)
	require.Equal(t, "precompiled", string(data))

	_, err = s.Open("missing")
	require.True(t, errors.Is(err, fs.ErrNotExist))
}

func TestStoreCloseDiscardsOpenSinks(t *testing.T) {
	s := NewStore(nil)
	w, err := s.Create("Main")
	require.Nil(t, err)
	require.Nil(t, s.Close())
	require.True(t, errors.Is(w.Close(), ErrClosed))
	require.Equal(t, 0, s.Map().Len())

	_, err = s.Create("Other")
	require.True(t, errors.Is(err, ErrClosed))
}

func TestNewMapKeepsOrderAndDropsUnknown(t *testing.T) {
	m := NewMap([]string{"b", "a", "missing", "b"}, map[string][]byte{
		"a": []byte("1"),
		"b": []byte("2"),
	})
	require.Equal(t, []string{"b", "a"}, m.Names())
	require.False(t, m.Has("missing"))

	var nilMap *Map
	require.Equal(t, 0, nilMap.Len())
	require.Nil(t, nilMap.Names())
}

func TestModulePathSearchesEveryDirectory(t *testing.T) {
	first, second := t.TempDir(), t.TempDir()
	require.Nil(t, os.WriteFile(filepath.Join(first, "a"+Ext), []byte("from first"), 0o644))
	require.Nil(t, os.WriteFile(filepath.Join(second, "a"+Ext), []byte("from second"), 0o644))
	require.Nil(t, os.WriteFile(filepath.Join(second, "b"+Ext), []byte("only second"), 0o644))

	fsys := ModulePath(strings.Join([]string{"", first, second}, string(os.PathListSeparator)))
	require.Len(t, fsys, 2)

	data, err := fsys.ReadArtifact("a")
	require.Nil(t, err)
	require.Equal(t, "from first", string(data))

	s := NewStore(fsys)
	r, err := s.Open("b")
	require.Nil(t, err)
	data, err = io.ReadAll(r)
	require.Nil(t, err)
	require.Equal(t, "only second", string(data))

	_, err = s.Open("c")
	require.True(t, errors.Is(err, fs.ErrNotExist))
	_, err = fsys.Open("../escape" + Ext)
	require.True(t, errors.Is(err, fs.ErrInvalid))

	require.Nil(t, ModulePath(""))
}
