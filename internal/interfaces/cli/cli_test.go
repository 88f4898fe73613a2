package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ryanyen2/Scholet/pkg/errors"
)

const papersCSV = `paper_id,umap_x,umap_y,cluster
p1,0.0,0.0,3
p2,0.1,0.1,3
p3,9.0,9.0,7
`

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append([]string{"--no-color", "--env-file", ""}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestRootCommand_Structure(t *testing.T) {
	cmd := NewRootCommand()
	assert.Equal(t, "scholet", cmd.Use)

	names := map[string]bool{}
	for _, sub := range cmd.Commands() {
		names[sub.Name()] = true
	}
	for _, want := range []string{"levels", "bins", "apply", "push", "serve", "version"} {
		assert.True(t, names[want], want)
	}
	for _, flag := range []string{"config", "env-file", "output", "verbose", "no-color"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(flag), flag)
	}
}

func TestRootCommand_RejectsUnknownOutput(t *testing.T) {
	_, err := run(t, "-o", "yaml", "levels")
	assert.True(t, errors.IsCode(err, errors.ErrCodeBadRequest))
}

func TestLevels(t *testing.T) {
	out, err := run(t, "-o", "json", "levels")
	require.NoError(t, err)

	var v levelsView
	require.NoError(t, json.Unmarshal([]byte(out), &v))
	require.NotEmpty(t, v.Levels)
	assert.Equal(t, 10, v.Levels[0])
	assert.Equal(t, 38, v.Levels[len(v.Levels)-1])
	assert.Equal(t, 20, v.Default)

	out, err = run(t, "levels")
	require.NoError(t, err)
	assert.Contains(t, out, "LEVEL")
	assert.Contains(t, out, "yes")
}

func TestBins(t *testing.T) {
	dataset := writeFile(t, "papers.csv", papersCSV)

	out, err := run(t, "-o", "json", "bins", "--dataset", dataset, "--level", "10", "--column", "cluster")
	require.NoError(t, err)
	var v binsView
	require.NoError(t, json.Unmarshal([]byte(out), &v))
	assert.Equal(t, 10, v.Level)
	assert.NotEmpty(t, v.Version)
	total := 0
	for _, g := range v.Groups {
		total += g.Count()
		require.NotNil(t, g.Summary)
	}
	assert.Equal(t, 3, total)

	out, err = run(t, "bins", "--dataset", dataset, "--zoom", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "p3")

	out, err = run(t, "-o", "text", "bins", "--dataset", dataset)
	require.NoError(t, err)
	assert.Contains(t, out, "p1")
}

func TestBins_Errors(t *testing.T) {
	dataset := writeFile(t, "papers.csv", papersCSV)

	_, err := run(t, "bins", "--dataset", dataset, "--level", "13")
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidResolution))

	_, err = run(t, "bins", "--dataset", dataset, "--column", "Title")
	assert.True(t, errors.IsCode(err, errors.ErrCodeBadRequest))

	_, err = run(t, "bins", "--dataset", dataset, "--level", "10", "--zoom", "2")
	assert.Error(t, err)

	_, err = run(t, "bins", "--dataset", filepath.Join(t.TempDir(), "missing.csv"))
	assert.True(t, errors.IsCode(err, errors.ErrCodeDatasetUnavailable))
}

func TestApply(t *testing.T) {
	dataset := writeFile(t, "papers.csv", papersCSV)
	messages := writeFile(t, "messages.json", `[
		{"id": 1, "role": "assistant", "instructions": [
			{"type": "ADD_CONTEXT", "targets": ["p1"]},
			{"type": "GROUP_CONTEXT", "targets": ["p1"], "label": "hot"}
		]},
		{"id": 2, "role": "assistant", "instructions": [
			{"type": "HIGHLIGHT_CONTEXT", "targets": ["p3"]}
		]},
		{"id": 1, "role": "assistant", "instructions": [
			{"type": "REMOVE_CONTEXT", "targets": ["p1"]}
		]}
	]`)

	out, err := run(t, "-o", "json", "apply", "--dataset", dataset, "--messages", messages)
	require.NoError(t, err)
	var v selectionView
	require.NoError(t, json.Unmarshal([]byte(out), &v))
	assert.Equal(t, 2, v.Applied)
	assert.Equal(t, 1, v.Duplicates)
	assert.True(t, v.Entries["p1"].Selected)
	assert.Equal(t, "hot", v.Entries["p1"].Group)
	assert.True(t, v.Entries["p3"].Highlighted)

	out, err = run(t, "apply", "--dataset", dataset, "--messages", messages)
	require.NoError(t, err)
	assert.Contains(t, out, "hot")
}

func TestApply_Errors(t *testing.T) {
	dataset := writeFile(t, "papers.csv", papersCSV)

	_, err := run(t, "apply", "--dataset", dataset)
	assert.Error(t, err, "--messages is required")

	bad := writeFile(t, "bad.json", `{"id": 1, "role": "assistant", "instructions": [{"type": "EXPLODE", "targets": ["p1"]}]}`)
	_, err = run(t, "apply", "--dataset", dataset, "--messages", bad)
	assert.True(t, errors.IsValidation(err))

	malformed := writeFile(t, "malformed.json", `[{"id": 1,`)
	_, err = run(t, "apply", "--dataset", dataset, "--messages", malformed)
	assert.True(t, errors.IsCode(err, errors.ErrCodeBadRequest))
}

func TestReadMessages_SingleObject(t *testing.T) {
	path := writeFile(t, "one.json", `{"id": 5, "role": "user", "text": "show me graph papers"}`)
	msgs, err := readMessages(path)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, int64(5), msgs[0].ID)

	_, err = readMessages(writeFile(t, "empty.json", "  \n"))
	assert.True(t, errors.IsCode(err, errors.ErrCodeBadRequest))
}

func TestPush_RequiresObjectStorage(t *testing.T) {
	dataset := writeFile(t, "papers.csv", papersCSV)
	_, err := run(t, "push", "--dataset", dataset)
	assert.True(t, errors.IsCode(err, errors.ErrCodeServiceUnavailable))
}

func TestVersion(t *testing.T) {
	out, err := run(t, "-o", "json", "version")
	require.NoError(t, err)
	var v versionView
	require.NoError(t, json.Unmarshal([]byte(out), &v))
	assert.Equal(t, Version, v.Version)
	assert.NotEmpty(t, v.GoVersion)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "ab…", truncate("abcdef", 3))
}
