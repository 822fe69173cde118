package session

import (
	"slices"

	"codepad/internal/core"
)

// Rebase maps p from under oldPrefix to under newPrefix. It reports false
// when p is neither oldPrefix nor one of its descendants.
func Rebase(p, oldPrefix, newPrefix string) (string, bool) {
	if !core.Within(p, oldPrefix) {
		return p, false
	}
	return newPrefix + p[len(oldPrefix):], true
}

// Rename follows a rename or move of oldPath to newPath: every tab, the
// active tab, the selection and expanded folders equal to or nested under
// oldPath are relabelled. Tab order is kept.
func (s State) Rename(oldPath, newPath string) State {
	if oldPath == newPath {
		return s
	}
	rebase := func(p string) string {
		np, _ := Rebase(p, oldPath, newPath)
		return np
	}

	tabs := make([]string, 0, len(s.openTabs))
	for _, t := range s.openTabs {
		tabs = append(tabs, rebase(t))
	}
	s.openTabs = tabs
	s.active = rebase(s.active)
	s.selected = rebase(s.selected)

	expanded := make([]string, 0, len(s.expanded))
	for _, f := range s.expanded {
		expanded = append(expanded, rebase(f))
	}
	s.expanded = expanded
	return s
}

// Remove follows a deletion of p: every entry equal to or nested under p is
// dropped. If the active tab goes, the last remaining tab becomes active; a
// removed selection moves to the last remaining tab as well.
func (s State) Remove(p string) State {
	gone := func(t string) bool { return core.Within(t, p) }

	s.openTabs = slices.DeleteFunc(slices.Clone(s.openTabs), gone)
	s.expanded = slices.DeleteFunc(slices.Clone(s.expanded), gone)

	if s.active != "" && gone(s.active) {
		s.active = s.lastTab()
		s.selected = s.active
	}
	if s.selected != "" && gone(s.selected) {
		s.selected = s.lastTab()
	}
	return s
}

// Prune closes every tab that no longer resolves to a file in tree and
// forgets expanded entries that are no longer folders. A selection that no
// longer resolves moves to the last remaining tab. It is used after the whole
// tree has been replaced out of band.
func (s State) Prune(tree core.Tree) State {
	isKind := func(p string, kind core.Kind) bool {
		n, err := tree.Resolve(p)
		return err == nil && n.Kind() == kind
	}

	for _, t := range s.OpenTabs() {
		if !isKind(t, core.KindFile) {
			s = s.Close(t)
		}
	}
	s.expanded = slices.DeleteFunc(slices.Clone(s.expanded), func(f string) bool {
		return !isKind(f, core.KindFolder)
	})
	if s.selected != "" {
		if _, err := tree.Resolve(s.selected); err != nil {
			s.selected = s.lastTab()
		}
	}
	return s
}
