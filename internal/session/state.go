// Package session tracks which files of a project are open in the editor:
// the ordered tabs, the active tab, the selected node and which folders are
// expanded in the explorer.
//
// State is a value. Every operation returns a new State and leaves the
// receiver alone, so a caller always replaces its current state with the
// result instead of mutating shared fields.
package session

import (
	"slices"

	"codepad/internal/core"
)

// State is the editor session of one project.
type State struct {
	openTabs []string
	active   string
	selected string
	expanded []string
}

// Initial returns the session shown when a project is loaded: the root
// index.html when it is a file, otherwise the first root-level file in name
// order, otherwise nothing.
func Initial(tree core.Tree) State {
	if n, err := tree.Resolve("index.html"); err == nil && !n.IsFolder() {
		return State{}.Open("index.html")
	}
	for _, name := range tree.Names() {
		if n, _ := tree.Resolve(name); !n.IsFolder() {
			return State{}.Open(name)
		}
	}
	return State{}
}

// OpenTabs returns the open tabs in display order.
func (s State) OpenTabs() []string {
	return slices.Clone(s.openTabs)
}

// ActiveTab returns the active tab, "" when none.
func (s State) ActiveTab() string {
	return s.active
}

// SelectedFile returns the node highlighted in the explorer. It may be a
// folder or a file that is not open.
func (s State) SelectedFile() string {
	return s.selected
}

// ExpandedFolders returns the folders shown expanded in the explorer.
func (s State) ExpandedFolders() []string {
	return slices.Clone(s.expanded)
}

// IsOpen reports whether p has a tab.
func (s State) IsOpen(p string) bool {
	return slices.Contains(s.openTabs, p)
}

// Open appends p to the tabs unless it is already open, and makes it both
// active and selected. Opening an open tab never reorders the tabs.
func (s State) Open(p string) State {
	if !s.IsOpen(p) {
		s.openTabs = append(slices.Clone(s.openTabs), p)
	}
	s.active = p
	s.selected = p
	return s
}

// Activate switches to an already open tab. Unknown paths are ignored.
func (s State) Activate(p string) State {
	if !s.IsOpen(p) {
		return s
	}
	return s.Open(p)
}

// Close removes the tab for p. Closing the active tab activates (and
// selects) the last remaining tab, or nothing.
func (s State) Close(p string) State {
	if !s.IsOpen(p) {
		return s
	}
	s.openTabs = slices.DeleteFunc(slices.Clone(s.openTabs), func(t string) bool { return t == p })
	if s.active == p {
		s.active = s.lastTab()
		s.selected = s.active
	}
	return s
}

// Select highlights p in the explorer. Selecting a file opens it; selecting
// a folder toggles whether it is expanded.
func (s State) Select(p string, kind core.Kind) State {
	if kind == core.KindFile {
		return s.Open(p)
	}
	s.selected = p
	if slices.Contains(s.expanded, p) {
		s.expanded = slices.DeleteFunc(slices.Clone(s.expanded), func(f string) bool { return f == p })
	} else {
		s.expanded = append(slices.Clone(s.expanded), p)
	}
	return s
}

// IsExpanded reports whether the folder p is expanded.
func (s State) IsExpanded(p string) bool {
	return slices.Contains(s.expanded, p)
}

func (s State) lastTab() string {
	if len(s.openTabs) == 0 {
		return ""
	}
	return s.openTabs[len(s.openTabs)-1]
}

// View is a read-only copy of a State for rendering and transport.
type View struct {
	OpenTabs        []string `json:"openTabs"`
	ActiveTab       string   `json:"activeTab"`
	SelectedFile    string   `json:"selectedFile"`
	ExpandedFolders []string `json:"expandedFolders"`
}

// View copies the state out.
func (s State) View() View {
	v := View{
		OpenTabs:        s.OpenTabs(),
		ActiveTab:       s.active,
		SelectedFile:    s.selected,
		ExpandedFolders: s.ExpandedFolders(),
	}
	if v.OpenTabs == nil {
		v.OpenTabs = []string{}
	}
	if v.ExpandedFolders == nil {
		v.ExpandedFolders = []string{}
	}
	return v
}
