package loader

import (
	"sync"

	"go.uber.org/zap"

	"github.com/daimatz/jclass/pkg/classfile"
)

// Cache memoizes another loader. It is safe for concurrent use. Two
// goroutines missing on the same name may both decode it; the first stored
// result is returned to both. Errors are not cached.
type Cache struct {
	Loader ClassLoader

	log     *zap.Logger
	classes sync.Map // string -> *classfile.ClassFile
}

// NewCache wraps l. A nil logger disables logging.
func NewCache(l ClassLoader, log *zap.Logger) *Cache {
	if log == nil {
		log = zap.NewNop()
	}
	return &Cache{Loader: l, log: log.Named("loader")}
}

func (c *Cache) LoadClass(name string) (*classfile.ClassFile, error) {
	if v, ok := c.classes.Load(name); ok {
		return v.(*classfile.ClassFile), nil
	}
	cf, err := c.Loader.LoadClass(name)
	if err != nil {
		return nil, err
	}
	v, loaded := c.classes.LoadOrStore(name, cf)
	if loaded {
		c.log.Debug("discarding duplicate decode", zap.String("class", name))
	} else {
		c.log.Debug("cached class", zap.String("class", name))
	}
	return v.(*classfile.ClassFile), nil
}

// Len returns the number of cached classes.
func (c *Cache) Len() int {
	n := 0
	c.classes.Range(func(any, any) bool {
		n++
		return true
	})
	return n
}
