package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"codepad/internal/util"

	"github.com/spf13/cobra"
)

func newPushCmd() *cobra.Command {
	var (
		server  string
		project string
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "push <paths...>",
		Short: "Replace a project's files on a codepad server",
		Long: `Import local files and directories and upload them as the complete file
tree of an existing project. Open workspaces on the server pick up the new
tree immediately.

Examples:
  codepad push --project 3f2c... site/
  codepad push --server http://pad:8080 --project 3f2c... index.html css/`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if project == "" {
				return fmt.Errorf("--project is required")
			}
			tree, err := loadTree(args)
			if err != nil {
				return err
			}
			body, err := json.Marshal(tree)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			url := strings.TrimRight(server, "/") + "/api/projects/" + project + "/files"
			if err := putFiles(ctx, url, body); err != nil {
				return err
			}

			logger := util.GetLogger("push")
			logger.Info().Str("url", url).Int("bytes", len(body)).Msg("files pushed")
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Pushed %d files to project %s\n", len(tree.Files()), project)
			return nil
		},
	}

	cmd.Flags().StringVar(&server, "server", "http://localhost:8080", "Server base URL")
	cmd.Flags().StringVarP(&project, "project", "p", "", "Project ID")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "Request timeout")
	return cmd
}

func putFiles(ctx context.Context, url string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("push files: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Error string `json:"error"`
		}
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("server rejected files: %s (%s)", apiErr.Error, resp.Status)
		}
		return fmt.Errorf("server rejected files: %s", resp.Status)
	}
	return nil
}
