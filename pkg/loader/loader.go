// Package loader finds and decodes classes by internal name from directories,
// jar files and jmod files.
package loader

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/daimatz/jclass/pkg/classfile"
)

// ClassLoader loads .class files by internal class name, e.g. "java/lang/Object".
type ClassLoader interface {
	LoadClass(name string) (*classfile.ClassFile, error)
}

// ErrClassNotFound matches every ClassNotFoundError.
var ErrClassNotFound = errors.New("class not found")

// ClassNotFoundError reports that a loader has no entry for a class. Decode
// failures of an existing entry are reported as-is instead.
type ClassNotFoundError struct {
	Name  string
	Where string
}

func (e *ClassNotFoundError) Error() string {
	return fmt.Sprintf("class %s not found in %s", e.Name, e.Where)
}

func (e *ClassNotFoundError) Is(target error) bool { return target == ErrClassNotFound }

// Chain delegates to each loader in order, parent first. Only not-found
// errors move on to the next loader.
type Chain []ClassLoader

func (c Chain) LoadClass(name string) (*classfile.ClassFile, error) {
	for _, l := range c {
		cf, err := l.LoadClass(name)
		if err == nil {
			return cf, nil
		}
		if !errors.Is(err, ErrClassNotFound) {
			return nil, err
		}
	}
	return nil, &ClassNotFoundError{Name: name, Where: "classpath"}
}

// ParseClassPath builds a Chain from a list of directories and archives
// separated by the OS path list separator. Entries ending in .jar, .zip or
// .jmod are opened as archives.
func ParseClassPath(classPath string, opts ...classfile.Option) Chain {
	var chain Chain
	for _, entry := range filepath.SplitList(classPath) {
		if entry == "" {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry)) {
		case ".jar", ".zip", ".jmod":
			chain = append(chain, NewArchiveLoader(entry, opts...))
		default:
			chain = append(chain, NewDirLoader(entry, opts...))
		}
	}
	return chain
}

// DefaultJmodPath locates java.base.jmod: $JAVA_BASE_JMOD first, then
// $JAVA_HOME/jmods, then the usual Linux JDK install locations. It returns ""
// if none exists.
func DefaultJmodPath() string {
	if env := os.Getenv("JAVA_BASE_JMOD"); env != "" {
		return env
	}
	if javaHome := os.Getenv("JAVA_HOME"); javaHome != "" {
		p := filepath.Join(javaHome, "jmods", "java.base.jmod")
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	matches, _ := filepath.Glob("/usr/lib/jvm/java-*-openjdk-*/jmods/java.base.jmod")
	if len(matches) > 0 {
		return matches[0]
	}
	return ""
}
