package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/segmentio/encoding/json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sleuth-ingest/models"
	"sleuth-ingest/sleuth"
)

const goodFile = `// Reference=MNI
// DOI=10.1/x
// Smith et al., 2010: Faces
// Subjects=12
1	2	3
4	5	6
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	return p
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := rootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestValidateCommand(t *testing.T) {
	good := writeFile(t, "good.txt", goodFile)
	out, err := execute(t, "validate", good)
	require.NoError(t, err)
	assert.Contains(t, out, "OK")
	assert.Contains(t, out, "1 experiments, 2 coordinates")

	bad := writeFile(t, "bad.txt", "// Reference=MNI\n// Smith: x\n// Subjects=1\n1\t2\t3\n")
	out, err = execute(t, "validate", good, bad)
	assert.ErrorIs(t, err, errInvalidFiles)
	assert.Contains(t, out, "INVALID "+bad)
	assert.Contains(t, out, "needs a DOI or PMID")
}

func TestExtractCommand(t *testing.T) {
	out, err := execute(t, "extract", writeFile(t, "good.txt", goodFile))
	require.NoError(t, err)

	var upload models.SleuthFileUpload
	require.NoError(t, json.Unmarshal([]byte(out), &upload))
	assert.Equal(t, "good.txt", upload.FileName)
	assert.Equal(t, "MNI", upload.Space)
	require.Len(t, upload.SleuthStubs, 1)
	assert.Equal(t, 12, upload.SleuthStubs[0].Subjects)
	assert.Len(t, upload.SleuthStubs[0].Coordinates, 2)
}

func TestImportCommand_RequiresName(t *testing.T) {
	_, err := execute(t, "import", writeFile(t, "good.txt", goodFile))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "name")
}

func TestValidateCommand_CollidingFileKeys(t *testing.T) {
	// different directories, same base name
	a := writeFile(t, "meta.txt", goodFile)
	b := writeFile(t, "meta.txt", goodFile)
	_, err := execute(t, "validate", a, b)
	assert.ErrorIs(t, err, sleuth.ErrFileKeyConflict)

	_, err = execute(t, "import", "--name", "x", writeFile(t, "a.txt", goodFile), writeFile(t, "atxt", goodFile))
	assert.ErrorIs(t, err, sleuth.ErrFileKeyConflict)
}
