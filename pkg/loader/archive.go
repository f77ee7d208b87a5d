package loader

import (
	"archive/zip"
	"bytes"
	"fmt"
	"os"
	"slices"
	"strings"
	"sync"

	"github.com/daimatz/jclass/pkg/classfile"
)

// jmodMagic prefixes the zip data of a jmod file.
var jmodMagic = []byte("JM\x01\x00")

// ArchiveLoader loads classes from a jar or jmod file. The archive is read on
// first use; its class entries live under "classes/" in a jmod and at the root
// in a jar.
type ArchiveLoader struct {
	Path    string
	Options []classfile.Option

	once    sync.Once
	openErr error
	prefix  string
	files   map[string]*zip.File
}

// NewArchiveLoader creates an ArchiveLoader for the archive at path.
func NewArchiveLoader(path string, opts ...classfile.Option) *ArchiveLoader {
	return &ArchiveLoader{Path: path, Options: opts}
}

// NewJmodClassLoader creates an ArchiveLoader for a JDK jmod file.
func NewJmodClassLoader(jmodPath string, opts ...classfile.Option) *ArchiveLoader {
	return NewArchiveLoader(jmodPath, opts...)
}

func (l *ArchiveLoader) open() error {
	l.once.Do(func() {
		data, err := os.ReadFile(l.Path)
		if err != nil {
			l.openErr = fmt.Errorf("archive: reading %s: %w", l.Path, err)
			return
		}
		if bytes.HasPrefix(data, jmodMagic) {
			data = data[len(jmodMagic):]
			l.prefix = "classes/"
		}
		zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
		if err != nil {
			l.openErr = fmt.Errorf("archive: opening zip %s: %w", l.Path, err)
			return
		}
		l.files = make(map[string]*zip.File, len(zr.File))
		for _, f := range zr.File {
			if strings.HasSuffix(f.Name, ".class") {
				l.files[f.Name] = f
			}
		}
	})
	return l.openErr
}

func (l *ArchiveLoader) LoadClass(name string) (*classfile.ClassFile, error) {
	if err := l.open(); err != nil {
		return nil, err
	}

	target := l.prefix + name + ".class"
	f, ok := l.files[target]
	if !ok {
		return nil, &ClassNotFoundError{Name: name, Where: l.Path}
	}
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("archive: opening %s: %w", target, err)
	}
	defer rc.Close()

	cf, err := classfile.Parse(rc, l.Options...)
	if err != nil {
		return nil, fmt.Errorf("archive: parsing %s: %w", name, err)
	}
	return cf, nil
}

// ClassNames lists the internal names of every class in the archive, sorted.
func (l *ArchiveLoader) ClassNames() ([]string, error) {
	if err := l.open(); err != nil {
		return nil, err
	}
	names := make([]string, 0, len(l.files))
	for n := range l.files {
		if !strings.HasPrefix(n, l.prefix) {
			continue
		}
		names = append(names, strings.TrimSuffix(strings.TrimPrefix(n, l.prefix), ".class"))
	}
	slices.Sort(names)
	return names, nil
}
