package loader

import (
	"fmt"
	"sync"

	"github.com/daimatz/jclass/pkg/classfile"
)

type memberKey struct {
	name       string
	descriptor string
}

// MemberIndex maps name+descriptor to members, one table per class. Tables
// are built on first lookup and shared afterwards; concurrent first lookups
// may build the same table twice, and the first stored one wins.
type MemberIndex struct {
	tables sync.Map // *classfile.ClassFile -> map[memberKey]*classfile.Member
}

func (x *MemberIndex) table(cf *classfile.ClassFile) map[memberKey]*classfile.Member {
	if v, ok := x.tables.Load(cf); ok {
		return v.(map[memberKey]*classfile.Member)
	}
	t := make(map[memberKey]*classfile.Member, len(cf.Fields)+len(cf.Methods))
	// Fields first so a method with the same key takes precedence.
	for _, m := range cf.Fields {
		t[memberKey{m.Name(), m.Descriptor()}] = m
	}
	for _, m := range cf.Methods {
		t[memberKey{m.Name(), m.Descriptor()}] = m
	}
	v, _ := x.tables.LoadOrStore(cf, t)
	return v.(map[memberKey]*classfile.Member)
}

// Lookup returns the member of cf with the given name and descriptor, or nil.
func (x *MemberIndex) Lookup(cf *classfile.ClassFile, name, descriptor string) *classfile.Member {
	return x.table(cf)[memberKey{name, descriptor}]
}

// Resolver finds members by walking the superclass chain, the way
// invokevirtual and getfield look them up.
type Resolver struct {
	Loader  ClassLoader
	Members *MemberIndex
}

// NewResolver creates a Resolver over l with a fresh member index.
func NewResolver(l ClassLoader) *Resolver {
	return &Resolver{Loader: l, Members: &MemberIndex{}}
}

// Superclasses returns className followed by its superclasses up to the root.
func (r *Resolver) Superclasses(className string) ([]string, error) {
	var chain []string
	seen := map[string]bool{}
	for name := className; name != ""; {
		if seen[name] {
			return nil, fmt.Errorf("resolve: superclass cycle at %s", name)
		}
		seen[name] = true
		chain = append(chain, name)
		cf, err := r.Loader.LoadClass(name)
		if err != nil {
			return chain, err
		}
		name = cf.SuperClassName()
	}
	return chain, nil
}

// Resolve looks ref up in its class and then each superclass. It returns the
// declaring class name and the member.
func (r *Resolver) Resolve(ref *classfile.MemberRef) (string, *classfile.Member, error) {
	seen := map[string]bool{}
	for name := ref.ClassName; name != ""; {
		if seen[name] {
			return "", nil, fmt.Errorf("resolve: superclass cycle at %s", name)
		}
		seen[name] = true
		cf, err := r.Loader.LoadClass(name)
		if err != nil {
			return "", nil, fmt.Errorf("resolve %s.%s:%s: %w", ref.ClassName, ref.Name, ref.Descriptor, err)
		}
		if m := r.Members.Lookup(cf, ref.Name, ref.Descriptor); m != nil {
			return name, m, nil
		}
		name = cf.SuperClassName()
	}
	return "", nil, fmt.Errorf("resolve: %s.%s:%s not found", ref.ClassName, ref.Name, ref.Descriptor)
}
