package core

import (
	"fmt"
	"os"
	"path/filepath"
)

// BuildFiletree reads local files and directories into a Tree. Each parsed
// path becomes a root-level node; directories are read recursively. Entries
// that are neither regular files nor directories (symlinks, devices) are
// skipped.
func BuildFiletree(paths []ParsedPath) (Tree, error) {
	tree := NewTree()

	for _, parsedPath := range paths {
		var (
			node *Node
			err  error
		)
		if parsedPath.Kind == PathDir {
			node, err = buildDirTree(parsedPath.FullPath)
		} else {
			node, err = readFileNode(parsedPath.FullPath)
		}
		if err != nil {
			return Tree{}, err
		}

		tree, err = tree.Insert("", node)
		if err != nil {
			return Tree{}, err
		}
	}

	if tree.Len() == 0 {
		return Tree{}, fmt.Errorf("no valid paths provided")
	}

	return tree, nil
}

func buildDirTree(dirPath string) (*Node, error) {
	entries, err := os.ReadDir(dirPath)
	if err != nil {
		return nil, err
	}

	var children []*Node
	for _, entry := range entries {
		childPath := filepath.Join(dirPath, entry.Name())

		switch {
		case entry.IsDir():
			childDir, err := buildDirTree(childPath)
			if err != nil {
				return nil, err
			}
			children = append(children, childDir)
		case entry.Type().IsRegular():
			childFile, err := readFileNode(childPath)
			if err != nil {
				return nil, err
			}
			children = append(children, childFile)
		}
	}

	return NewFolder(filepath.Base(dirPath), children...), nil
}

func readFileNode(filePath string) (*Node, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", filePath, err)
	}
	return NewFile(filepath.Base(filePath), string(data)), nil
}
