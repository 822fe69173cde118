package core

import (
	"fmt"
	"os"
	"path/filepath"
)

type ValidationError struct {
	Arg   string
	Cause string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid argument %q: %s", e.Arg, e.Cause)
}

type PathKind int

const (
	PathFile PathKind = iota
	PathDir
)

type ParsedPath struct {
	FullPath string
	Kind     PathKind
}

// ParseArgs checks command-line paths before they are imported into a tree.
// Every path must exist, and no two may share a base name since each becomes
// a root-level node.
func ParseArgs(args []string) ([]ParsedPath, error) {
	if len(args) == 0 {
		return nil, &ValidationError{Arg: "<files>", Cause: "no files provided"}
	}

	var out []ParsedPath
	seen := make(map[string]string, len(args))

	for _, raw := range args {
		p := filepath.Clean(raw)
		info, err := os.Stat(p)
		if err != nil {
			return nil, &ValidationError{Arg: raw, Cause: "not found or not accessible"}
		}

		base := filepath.Base(p)
		if !ValidName(base) {
			return nil, &ValidationError{Arg: raw, Cause: "cannot be used as a node name"}
		}
		if prev, dup := seen[base]; dup {
			return nil, &ValidationError{Arg: raw, Cause: fmt.Sprintf("same name as %q", prev)}
		}
		seen[base] = raw

		kind := PathFile
		if info.IsDir() {
			kind = PathDir
		}

		out = append(out, ParsedPath{FullPath: p, Kind: kind})
	}

	return out, nil
}
