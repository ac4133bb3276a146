package docloader

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLoad_IncludesMarkdownByDefault(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "README.md"), "# hello")

	docs, err := Load(context.Background(), Options{RootDir: dir, Recursive: true})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "README.md", docs[0].Path)
	assert.Equal(t, "# hello", string(docs[0].Content))
}

func TestLoad_ExcludesCodeUnlessRequested(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "main.go"), "package main")

	docs, err := Load(context.Background(), Options{RootDir: dir, Recursive: true})
	require.NoError(t, err)
	assert.Empty(t, docs)

	docs, err = Load(context.Background(), Options{RootDir: dir, Recursive: true, IncludeCode: true})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "go", docs[0].Language)
}

func TestLoad_NonRecursiveSkipsNestedFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "top.md"), "top")
	writeFile(t, filepath.Join(dir, "sub", "nested.md"), "nested")

	docs, err := Load(context.Background(), Options{RootDir: dir, Recursive: false})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "top.md", docs[0].Path)
}

func TestLoad_SkipsUnsupportedContentTypes(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "data.json"), "{}")

	docs, err := Load(context.Background(), Options{RootDir: dir, Recursive: true, IncludeCode: true})
	require.NoError(t, err)
	assert.Empty(t, docs)
}
