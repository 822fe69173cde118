package core

import (
	"maps"
	"slices"
)

// Kind distinguishes files from folders.
type Kind int

const (
	KindFile Kind = iota
	KindFolder
)

func (k Kind) String() string {
	if k == KindFolder {
		return "folder"
	}
	return "file"
}

// Node is a file or a folder of a project tree.
//
// Nodes are never modified once built. Mutations on a Tree copy the nodes
// along the modified spine and share everything else, so a *Node obtained
// from one Tree value stays valid after the tree has moved on.
type Node struct {
	name     string
	kind     Kind
	content  string
	children map[string]*Node
}

// NewFile returns a file node.
func NewFile(name, content string) *Node {
	return &Node{name: name, kind: KindFile, content: content}
}

// NewFolder returns a folder holding children, keyed by their names. A later
// child replaces an earlier one with the same name.
func NewFolder(name string, children ...*Node) *Node {
	m := make(map[string]*Node, len(children))
	for _, c := range children {
		m[c.name] = c
	}
	return &Node{name: name, kind: KindFolder, children: m}
}

func (n *Node) Name() string {
	return n.name
}

func (n *Node) Kind() Kind {
	return n.kind
}

func (n *Node) IsFolder() bool {
	return n.kind == KindFolder
}

// Content returns the text of a file. Folders have no content.
func (n *Node) Content() string {
	return n.content
}

// Child looks up a direct child of a folder.
func (n *Node) Child(name string) (*Node, bool) {
	c, ok := n.children[name]
	return c, ok
}

// ChildNames returns the names of the direct children in lexical order.
func (n *Node) ChildNames() []string {
	return slices.Sorted(maps.Keys(n.children))
}

// Len returns the number of direct children.
func (n *Node) Len() int {
	return len(n.children)
}

func (n *Node) withName(name string) *Node {
	c := *n
	c.name = name
	return &c
}

func (n *Node) withContent(content string) *Node {
	c := *n
	c.content = content
	return &c
}

func (n *Node) withChildren(children map[string]*Node) *Node {
	c := *n
	c.children = children
	return &c
}
