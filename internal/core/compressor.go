package core

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"path"
	"strings"
)

// ToZipBytes packs every file of the tree into an in-memory ZIP archive.
func (t Tree) ToZipBytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteZip(&buf, t); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteZip streams the tree as a ZIP archive to w. Folders become path
// prefixes of their files; empty folders produce no entry.
func WriteZip(w io.Writer, t Tree) error {
	zipWriter := zip.NewWriter(w)

	for _, name := range t.Names() {
		if err := compressNode(zipWriter, t.root[name], ""); err != nil {
			zipWriter.Close()
			return err
		}
	}

	if err := zipWriter.Close(); err != nil {
		return fmt.Errorf("failed to close zip writer: %w", err)
	}
	return nil
}

func compressNode(zw *zip.Writer, node *Node, basePath string) error {
	archivePath := path.Join(basePath, node.Name())

	switch node.Kind() {
	case KindFile:
		return addFileToZip(zw, archivePath, node.Content())
	case KindFolder:
		for _, name := range node.ChildNames() {
			child, _ := node.Child(name)
			if err := compressNode(zw, child, archivePath); err != nil {
				return err
			}
		}
	}
	return nil
}

func addFileToZip(zw *zip.Writer, archivePath, content string) error {
	header := &zip.FileHeader{
		Name:   archivePath,
		Method: zip.Deflate,
	}

	writer, err := zw.CreateHeader(header)
	if err != nil {
		return fmt.Errorf("failed to create zip entry %s: %w", archivePath, err)
	}

	if _, err := io.Copy(writer, strings.NewReader(content)); err != nil {
		return fmt.Errorf("failed to write %s to zip: %w", archivePath, err)
	}

	return nil
}

// GetUncompressedSize returns the total number of content bytes in the tree.
func (t Tree) GetUncompressedSize() int64 {
	var totalSize int64
	t.Walk(func(_ string, n *Node) error {
		if !n.IsFolder() {
			totalSize += int64(len(n.Content()))
		}
		return nil
	})
	return totalSize
}
