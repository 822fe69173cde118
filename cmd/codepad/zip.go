package main

import (
	"bufio"
	"fmt"
	"os"

	"codepad/internal/core"

	"github.com/spf13/cobra"
)

func newZipCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "zip <paths...>",
		Short: "Pack local files into a project archive",
		Long: `Import local files and directories and write them as the ZIP archive the
server offers for download.

Examples:
  codepad zip site/ -o site.zip`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tree, err := loadTree(args)
			if err != nil {
				return err
			}

			f, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("create archive: %w", err)
			}
			w := bufio.NewWriter(f)
			if err := core.WriteZip(w, tree); err != nil {
				f.Close()
				return fmt.Errorf("compressing: %w", err)
			}
			if err := w.Flush(); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}

			info, err := os.Stat(output)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Compressed %d files to %s (%d bytes)\n",
				len(tree.Files()), output, info.Size())
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "project.zip", "Archive file to write")
	return cmd
}
