package loader

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/daimatz/jclass/pkg/classfile"
)

// DirLoader loads classes from a directory laid out by package.
type DirLoader struct {
	Root    string
	Options []classfile.Option
}

// NewDirLoader creates a DirLoader rooted at dir.
func NewDirLoader(dir string, opts ...classfile.Option) *DirLoader {
	return &DirLoader{Root: dir, Options: opts}
}

func (l *DirLoader) LoadClass(name string) (*classfile.ClassFile, error) {
	path := filepath.Join(l.Root, filepath.FromSlash(name)+".class")
	cf, err := classfile.ParseFile(path, l.Options...)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, &ClassNotFoundError{Name: name, Where: l.Root}
	}
	if err != nil {
		return nil, fmt.Errorf("dir: parsing %s: %w", path, err)
	}
	return cf, nil
}
