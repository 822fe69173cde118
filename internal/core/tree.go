package core

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"

	"golang.org/x/crypto/blake2b"
)

// Tree is the namespace of one project: root-level names mapped to nodes.
//
// Tree is a value. Every mutator returns a new Tree and leaves the receiver
// untouched, including on error. The zero value is an empty tree.
type Tree struct {
	root map[string]*Node
}

// NewTree builds a tree from root-level nodes.
func NewTree(nodes ...*Node) Tree {
	return Tree{root: NewFolder("", nodes...).children}
}

// Names returns the root-level names in lexical order.
func (t Tree) Names() []string {
	return slices.Sorted(maps.Keys(t.root))
}

// Len returns the number of root-level nodes.
func (t Tree) Len() int {
	return len(t.root)
}

// Insert adds node to the folder at parent ("" for the root).
func (t Tree) Insert(parent string, node *Node) (Tree, error) {
	target := JoinPath(parent, node.Name())
	if !ValidName(node.Name()) {
		return t, &PathError{Op: "insert", Path: target, Err: fmt.Errorf("%w: bad name %q", ErrInvalidPath, node.Name())}
	}

	var dir []string
	if parent != "" {
		p, err := t.Resolve(parent)
		if err != nil {
			return t, &PathError{Op: "insert", Path: target, Err: errors.Unwrap(err)}
		}
		if !p.IsFolder() {
			return t, &PathError{Op: "insert", Path: target, Err: fmt.Errorf("%w: %s is a file", ErrInvalidPath, parent)}
		}
		dir, _ = SplitPath(parent)
	}

	root, err := modify(t.root, dir, func(c map[string]*Node) error {
		if _, exists := c[node.Name()]; exists {
			return ErrDuplicateName
		}
		c[node.Name()] = node
		return nil
	})
	if err != nil {
		return t, &PathError{Op: "insert", Path: target, Err: err}
	}
	return Tree{root: root}, nil
}

// Rename gives the node at oldPath a new name inside the same folder and
// returns the new tree together with the node's new path. Descendant paths
// shift with it. Renaming a node to its current name succeeds and returns
// the receiver unchanged.
func (t Tree) Rename(oldPath, newName string) (Tree, string, error) {
	if !ValidName(newName) {
		return t, "", &PathError{Op: "rename", Path: oldPath, Err: fmt.Errorf("%w: bad name %q", ErrInvalidPath, newName)}
	}
	n, err := t.Resolve(oldPath)
	if err != nil {
		return t, "", &PathError{Op: "rename", Path: oldPath, Err: errors.Unwrap(err)}
	}
	parent, name := SplitParent(oldPath)
	if name == newName {
		return t, oldPath, nil
	}

	dir, _ := splitDir(parent)
	root, err := modify(t.root, dir, func(c map[string]*Node) error {
		if _, exists := c[newName]; exists {
			return ErrDuplicateName
		}
		delete(c, name)
		c[newName] = n.withName(newName)
		return nil
	})
	if err != nil {
		return t, "", &PathError{Op: "rename", Path: oldPath, Err: err}
	}
	return Tree{root: root}, JoinPath(parent, newName), nil
}

// Move relocates the node at p into the folder newParent ("" for the root)
// and returns its new path. A folder cannot be moved into itself or one of
// its descendants.
func (t Tree) Move(p, newParent string) (Tree, string, error) {
	n, err := t.Resolve(p)
	if err != nil {
		return t, "", &PathError{Op: "move", Path: p, Err: errors.Unwrap(err)}
	}
	oldParent, name := SplitParent(p)
	if oldParent == newParent {
		return t, p, nil
	}
	if newParent != "" && Within(newParent, p) {
		return t, "", &PathError{Op: "move", Path: p, Err: fmt.Errorf("%w: cannot move into itself", ErrInvalidPath)}
	}

	removed, err := t.Delete(p)
	if err != nil {
		return t, "", &PathError{Op: "move", Path: p, Err: errors.Unwrap(err)}
	}
	moved, err := removed.Insert(newParent, n)
	if err != nil {
		return t, "", &PathError{Op: "move", Path: p, Err: errors.Unwrap(err)}
	}
	return moved, JoinPath(newParent, name), nil
}

// Delete removes the node at p, with its whole subtree if it is a folder.
func (t Tree) Delete(p string) (Tree, error) {
	if _, err := t.Resolve(p); err != nil {
		return t, &PathError{Op: "delete", Path: p, Err: errors.Unwrap(err)}
	}
	parent, name := SplitParent(p)
	dir, _ := splitDir(parent)
	root, _ := modify(t.root, dir, func(c map[string]*Node) error {
		delete(c, name)
		return nil
	})
	return Tree{root: root}, nil
}

// SetContent replaces the content of the file at p.
func (t Tree) SetContent(p, content string) (Tree, error) {
	n, err := t.Resolve(p)
	if err != nil {
		return t, &PathError{Op: "write", Path: p, Err: errors.Unwrap(err)}
	}
	if n.IsFolder() {
		return t, &PathError{Op: "write", Path: p, Err: fmt.Errorf("%w: is a folder", ErrInvalidPath)}
	}
	if n.Content() == content {
		return t, nil
	}
	parent, name := SplitParent(p)
	dir, _ := splitDir(parent)
	root, _ := modify(t.root, dir, func(c map[string]*Node) error {
		c[name] = n.withContent(content)
		return nil
	})
	return Tree{root: root}, nil
}

// Walk visits every node depth-first, parents before children, siblings in
// lexical order. Returning an error from fn stops the walk.
func (t Tree) Walk(fn func(p string, n *Node) error) error {
	return walk(t.root, "", fn)
}

func walk(level map[string]*Node, parent string, fn func(string, *Node) error) error {
	for _, name := range slices.Sorted(maps.Keys(level)) {
		n := level[name]
		p := JoinPath(parent, name)
		if err := fn(p, n); err != nil {
			return err
		}
		if n.IsFolder() {
			if err := walk(n.children, p, fn); err != nil {
				return err
			}
		}
	}
	return nil
}

// Files returns the paths of every file in walk order.
func (t Tree) Files() []string {
	var out []string
	t.Walk(func(p string, n *Node) error {
		if !n.IsFolder() {
			out = append(out, p)
		}
		return nil
	})
	return out
}

// Digest returns a hex blake2b-256 of the tree's canonical JSON encoding.
// Equal trees have equal digests.
func (t Tree) Digest() string {
	data, err := json.Marshal(t)
	if err != nil {
		return ""
	}
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// splitDir is SplitPath for a parent directory, where "" means the root.
func splitDir(dir string) ([]string, error) {
	if dir == "" {
		return nil, nil
	}
	return SplitPath(dir)
}

// modify applies fn to a copy of the folder addressed by dir and returns a
// new root map. Each folder on the way down is copied; siblings are shared.
// Callers resolve dir beforehand, so every segment exists and is a folder.
func modify(level map[string]*Node, dir []string, fn func(map[string]*Node) error) (map[string]*Node, error) {
	next := maps.Clone(level)
	if next == nil {
		next = make(map[string]*Node)
	}
	if len(dir) == 0 {
		if err := fn(next); err != nil {
			return nil, err
		}
		return next, nil
	}
	folder := level[dir[0]]
	children, err := modify(folder.children, dir[1:], fn)
	if err != nil {
		return nil, err
	}
	next[dir[0]] = folder.withChildren(children)
	return next, nil
}

type fileJSON struct {
	Name    string `json:"name"`
	Type    string `json:"type"`
	Content string `json:"content"`
}

type folderJSON struct {
	Name     string           `json:"name"`
	Type     string           `json:"type"`
	Children map[string]*Node `json:"children"`
}

func (n *Node) MarshalJSON() ([]byte, error) {
	if n.IsFolder() {
		children := n.children
		if children == nil {
			children = map[string]*Node{}
		}
		return json.Marshal(folderJSON{Name: n.name, Type: KindFolder.String(), Children: children})
	}
	return json.Marshal(fileJSON{Name: n.name, Type: KindFile.String(), Content: n.content})
}

func (n *Node) UnmarshalJSON(data []byte) error {
	var raw struct {
		Name     string           `json:"name"`
		Type     string           `json:"type"`
		Content  *string          `json:"content"`
		Children map[string]*Node `json:"children"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if !ValidName(raw.Name) {
		return &PathError{Op: "decode", Path: raw.Name, Err: fmt.Errorf("%w: bad name", ErrInvalidPath)}
	}

	switch raw.Type {
	case "file":
		*n = Node{name: raw.Name, kind: KindFile}
		if raw.Content != nil {
			n.content = *raw.Content
		}
	case "folder":
		if err := checkKeys(raw.Children); err != nil {
			return err
		}
		if raw.Children == nil {
			raw.Children = map[string]*Node{}
		}
		*n = Node{name: raw.Name, kind: KindFolder, children: raw.Children}
	default:
		return &PathError{Op: "decode", Path: raw.Name, Err: fmt.Errorf("%w: unknown node type %q", ErrInvalidPath, raw.Type)}
	}
	return nil
}

func (t Tree) MarshalJSON() ([]byte, error) {
	if t.root == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(t.root)
}

func (t *Tree) UnmarshalJSON(data []byte) error {
	var root map[string]*Node
	if err := json.Unmarshal(data, &root); err != nil {
		return err
	}
	if err := checkKeys(root); err != nil {
		return err
	}
	t.root = root
	return nil
}

// checkKeys enforces that every map key equals the name of the node under it.
func checkKeys(m map[string]*Node) error {
	for key, n := range m {
		if n == nil {
			return &PathError{Op: "decode", Path: key, Err: fmt.Errorf("%w: null node", ErrInvalidPath)}
		}
		if n.name != key {
			return &PathError{Op: "decode", Path: key, Err: fmt.Errorf("%w: key does not match name %q", ErrInvalidPath, n.name)}
		}
	}
	return nil
}
