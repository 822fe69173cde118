package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"codepad/internal/core"

	"github.com/spf13/cobra"
)

// loadTree imports local paths as root-level nodes of a new tree.
func loadTree(args []string) (core.Tree, error) {
	parsed, err := core.ParseArgs(args)
	if err != nil {
		return core.Tree{}, err
	}
	tree, err := core.BuildFiletree(parsed)
	if err != nil {
		return core.Tree{}, fmt.Errorf("building file tree: %w", err)
	}
	return tree, nil
}

func newTreeCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "tree <paths...>",
		Short: "Show the project tree built from local files",
		Long: `Import local files and directories the way the editor stores them and
print the result.

Examples:
  codepad tree site/            # Indented listing
  codepad tree index.html css/  # Several root-level nodes
  codepad tree --json site/     # Tree as stored by the server`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tree, err := loadTree(args)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(tree)
			}
			return printTree(cmd.OutOrStdout(), tree)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the tree as JSON")
	return cmd
}

func printTree(w io.Writer, tree core.Tree) error {
	err := tree.Walk(func(p string, n *core.Node) error {
		indent := strings.Repeat("  ", strings.Count(p, "/"))
		name := n.Name()
		if n.IsFolder() {
			name += "/"
		} else {
			name += fmt.Sprintf(" (%s, %d bytes)", core.LanguageFor(p), len(n.Content()))
		}
		_, err := fmt.Fprintln(w, indent+name)
		return err
	})
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "\n%d files, %d bytes\n", len(tree.Files()), tree.GetUncompressedSize())
	return err
}
