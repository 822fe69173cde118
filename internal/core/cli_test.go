package core

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestFiles(t *testing.T, files map[string]string) []string {
	t.Helper()
	tmpDir := t.TempDir()
	var paths []string

	for filename, content := range files {
		filePath := filepath.Join(tmpDir, filename)
		require.NoError(t, os.WriteFile(filePath, []byte(content), 0644))
		paths = append(paths, filePath)
	}

	return paths
}

func assertValidationError(t *testing.T, err error, expectedArg string, expectedCause string) {
	t.Helper()
	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	if expectedArg != "" {
		assert.Equal(t, expectedArg, validationErr.Arg)
	}
	if expectedCause != "" {
		assert.Equal(t, expectedCause, validationErr.Cause)
	}
}

func TestParseArgs(t *testing.T) {
	t.Run("empty args returns error", func(t *testing.T) {
		result, err := ParseArgs([]string{})

		assert.Nil(t, result)
		assertValidationError(t, err, "<files>", "no files provided")
	})

	t.Run("single file", func(t *testing.T) {
		paths := setupTestFiles(t, map[string]string{"test.txt": "content"})

		result, err := ParseArgs(paths)
		require.NoError(t, err)
		require.Len(t, result, 1)
		assert.Equal(t, ParsedPath{FullPath: paths[0], Kind: PathFile}, result[0])
	})

	t.Run("nonexistent path returns error", func(t *testing.T) {
		result, err := ParseArgs([]string{"/nonexistent/path/file.txt"})

		assert.Nil(t, result)
		assertValidationError(t, err, "", "not found or not accessible")
	})

	t.Run("path cleaning", func(t *testing.T) {
		paths := setupTestFiles(t, map[string]string{"test.txt": "content"})
		messyPath := filepath.Join(filepath.Dir(paths[0]), ".", "test.txt")

		result, err := ParseArgs([]string{messyPath})
		require.NoError(t, err)
		assert.Equal(t, paths[0], result[0].FullPath)
	})

	t.Run("mixed files and directories", func(t *testing.T) {
		tmpDir := t.TempDir()
		subDir := filepath.Join(tmpDir, "subdir")
		require.NoError(t, os.Mkdir(subDir, 0755))
		testFile := filepath.Join(tmpDir, "test.txt")
		require.NoError(t, os.WriteFile(testFile, []byte("content"), 0644))

		result, err := ParseArgs([]string{testFile, subDir})
		require.NoError(t, err)
		assert.Equal(t, []ParsedPath{
			{FullPath: testFile, Kind: PathFile},
			{FullPath: subDir, Kind: PathDir},
		}, result)
	})

	t.Run("same base name twice is rejected", func(t *testing.T) {
		a := filepath.Join(t.TempDir(), "index.html")
		b := filepath.Join(t.TempDir(), "index.html")
		require.NoError(t, os.WriteFile(a, nil, 0644))
		require.NoError(t, os.WriteFile(b, nil, 0644))

		_, err := ParseArgs([]string{a, b})
		assertValidationError(t, err, b, "")
	})
}

func TestValidationError(t *testing.T) {
	err := &ValidationError{Arg: "test.txt", Cause: "file not found"}
	assert.Equal(t, `invalid argument "test.txt": file not found`, err.Error())
}
