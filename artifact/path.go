package artifact

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
)

// SearchFS is a read-only file system made of several directories. Open
// returns the first match in order.
type SearchFS []fs.FS

// ModulePath returns a SearchFS over every directory in a module path, which
// is separated by the OS path list separator. It returns nil when the path
// names no directory.
func ModulePath(modulePath string) SearchFS {
	var dirs SearchFS
	for _, dir := range filepath.SplitList(modulePath) {
		if dir != "" {
			dirs = append(dirs, os.DirFS(dir))
		}
	}
	return dirs
}

// Open implements fs.FS.
func (s SearchFS) Open(name string) (fs.File, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrInvalid}
	}
	for _, fsys := range s {
		f, err := fsys.Open(name)
		if err == nil {
			return f, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}
	return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
}

// ReadArtifact reads the precompiled artifact for a unit name.
func (s SearchFS) ReadArtifact(name string) ([]byte, error) {
	return fs.ReadFile(s, name+Ext)
}
