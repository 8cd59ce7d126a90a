// Package pathindex keeps a set of workspace-relative file paths in a radix
// tree so directory listings and sorted walks come straight from the tree.
package pathindex

import (
	"path"
	"strings"

	"github.com/armon/go-radix"
)

// Index is a sorted set of slash-separated relative paths. It is not safe
// for concurrent use.
type Index struct {
	tree *radix.Tree
}

// New creates an empty index.
func New() *Index {
	return &Index{tree: radix.New()}
}

// Add inserts p. Adding a present path is a no-op.
func (x *Index) Add(p string) {
	x.tree.Insert(p, struct{}{})
}

// Remove deletes p and reports whether it was present.
func (x *Index) Remove(p string) bool {
	_, deleted := x.tree.Delete(p)
	return deleted
}

// Has reports whether p is in the index.
func (x *Index) Has(p string) bool {
	_, found := x.tree.Get(p)
	return found
}

// Len returns the number of paths.
func (x *Index) Len() int {
	return x.tree.Len()
}

// All returns every path in lexical order.
func (x *Index) All() []string {
	out := make([]string, 0, x.tree.Len())
	x.tree.Walk(func(k string, _ interface{}) bool {
		out = append(out, k)
		return false
	})
	return out
}

// Under returns the paths inside dir at any depth, in lexical order. An
// empty dir or "." means the whole index.
func (x *Index) Under(dir string) []string {
	dir = strings.Trim(dir, "/")
	if dir == "" || dir == "." {
		return x.All()
	}
	var out []string
	x.tree.WalkPrefix(dir+"/", func(k string, _ interface{}) bool {
		out = append(out, k)
		return false
	})
	return out
}

// Siblings returns the paths in the same directory as p, excluding p.
func (x *Index) Siblings(p string) []string {
	dir := path.Dir(p)
	var out []string
	for _, k := range x.Under(dir) {
		if k != p && path.Dir(k) == dir {
			out = append(out, k)
		}
	}
	return out
}

// Clear removes every path.
func (x *Index) Clear() {
	x.tree = radix.New()
}
