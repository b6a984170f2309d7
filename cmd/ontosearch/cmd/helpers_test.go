package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const fruitKB = `collection: fruit
items:
  - id: http://example.org/fruit#Apple
    name: Apple
    annotations:
      - property: definition
        value: A pome fruit
        lang: en
  - id: http://example.org/fruit#Banana
    name: Banana
    annotations:
      - property: definition
        value: An elongated berry
  - id: http://example.org/fruit#Cherry
    name: Cherry
`

// isolate points every user-level path at temp directories and returns
// the project directory and index directory.
func isolate(t *testing.T) (project, indexDir string) {
	t.Helper()
	base := t.TempDir()
	t.Setenv("HOME", filepath.Join(base, "home"))
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(base, "xdg"))
	indexDir = filepath.Join(base, "indexes")
	t.Setenv("ONTOSEARCH_INDEX_DIR", indexDir)
	project = filepath.Join(base, "project")
	require.NoError(t, os.MkdirAll(project, 0o755))
	return project, indexDir
}

// writeKB writes the fruit knowledge base into dir.
func writeKB(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "fruit.yaml")
	require.NoError(t, os.WriteFile(path, []byte(fruitKB), 0o644))
	return path
}

// run executes the root command with args and returns stdout and stderr.
func run(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	cmd := NewRootCmd()
	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetIn(bytes.NewBufferString(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}
