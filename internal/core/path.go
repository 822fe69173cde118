package core

import (
	"fmt"
	"strings"
)

// ValidName reports whether name can label a node: non-empty, no slash,
// and not one of the relative segments "." and "..".
func ValidName(name string) bool {
	return name != "" && name != "." && name != ".." && !strings.Contains(name, "/")
}

// SplitPath splits a slash-delimited path into its segments. Leading,
// trailing or doubled slashes are rejected rather than cleaned.
func SplitPath(p string) ([]string, error) {
	if p == "" {
		return nil, fmt.Errorf("%w: empty path", ErrInvalidPath)
	}
	segs := strings.Split(p, "/")
	for _, s := range segs {
		if !ValidName(s) {
			return nil, fmt.Errorf("%w: bad segment %q", ErrInvalidPath, s)
		}
	}
	return segs, nil
}

// JoinPath joins a parent path and a name. An empty parent means the root.
func JoinPath(parent, name string) string {
	if parent == "" {
		return name
	}
	return parent + "/" + name
}

// SplitParent returns the parent path ("" for root level) and the last segment.
func SplitParent(p string) (dir, name string) {
	i := strings.LastIndexByte(p, '/')
	if i < 0 {
		return "", p
	}
	return p[:i], p[i+1:]
}

// Within reports whether p equals prefix or lies beneath it. Only whole
// segments match: "ab" is not within "a".
func Within(p, prefix string) bool {
	return p == prefix || strings.HasPrefix(p, prefix+"/")
}

// Resolve walks the tree to the node at p. A path that runs through a file
// before its last segment does not resolve.
func (t Tree) Resolve(p string) (*Node, error) {
	segs, err := SplitPath(p)
	if err != nil {
		return nil, &PathError{Op: "resolve", Path: p, Err: err}
	}
	n, err := t.lookup(segs)
	if err != nil {
		return nil, &PathError{Op: "resolve", Path: p, Err: err}
	}
	return n, nil
}

// ResolveParent locates the folder that holds (or would hold) the node at p.
// The returned parent is nil when p is a root-level path.
func (t Tree) ResolveParent(p string) (parent *Node, name string, err error) {
	segs, err := SplitPath(p)
	if err != nil {
		return nil, "", &PathError{Op: "resolve", Path: p, Err: err}
	}
	name = segs[len(segs)-1]
	if len(segs) == 1 {
		return nil, name, nil
	}
	parent, err = t.lookup(segs[:len(segs)-1])
	if err == nil && !parent.IsFolder() {
		err = fmt.Errorf("%w: %s is a file", ErrNotFound, strings.Join(segs[:len(segs)-1], "/"))
	}
	if err != nil {
		return nil, "", &PathError{Op: "resolve", Path: p, Err: err}
	}
	return parent, name, nil
}

func (t Tree) lookup(segs []string) (*Node, error) {
	level := t.root
	var n *Node
	for i, s := range segs {
		if n != nil && !n.IsFolder() {
			return nil, fmt.Errorf("%w: %s is a file", ErrNotFound, strings.Join(segs[:i], "/"))
		}
		c, ok := level[s]
		if !ok {
			return nil, ErrNotFound
		}
		n = c
		level = c.children
	}
	return n, nil
}
