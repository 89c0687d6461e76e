package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const scores = `arm,score,age
A,5.1,30
A,4.9,41
A,5.3,35
A,5.0,28
B,6.0,52
B,6.2,47
B,5.9,60
B,6.1,55
`

func execute(t *testing.T, args ...string) (map[string]interface{}, error) {
	t.Helper()
	t.Setenv("LOG_LEVEL", "ERROR")

	var out bytes.Buffer
	cmd := newRootCmd(&env{out: &out})
	cmd.SetArgs(append(args, "--backend", "none"))
	if err := cmd.Execute(); err != nil {
		return nil, err
	}
	var v map[string]interface{}
	if out.Len() > 0 && out.Bytes()[0] == '{' {
		require.NoError(t, json.Unmarshal(out.Bytes(), &v))
	}
	return v, nil
}

func writeScores(t *testing.T) string {
	path := filepath.Join(t.TempDir(), "scores.csv")
	require.NoError(t, os.WriteFile(path, []byte(scores), 0o600))
	return path
}

func TestProfileCommand(t *testing.T) {
	v, err := execute(t, "profile", writeScores(t))
	require.NoError(t, err)
	assert.EqualValues(t, 8, v["row_count"])
	assert.Len(t, v["columns"], 3)
}

func TestTestCommand(t *testing.T) {
	v, err := execute(t, "test", "welch_t", writeScores(t), "--outcome", "score", "--group", "arm")
	require.NoError(t, err)
	assert.Equal(t, "welch_t", v["kind"])
	assert.NotNil(t, v["result"])

	_, err = execute(t, "test", "sign_test", writeScores(t))
	assert.Error(t, err)
}

func TestCorrelateCommand(t *testing.T) {
	v, err := execute(t, "correlate", writeScores(t), "--x", "score", "--y", "age", "--method", "spearman")
	require.NoError(t, err)
	assert.Greater(t, v["correlation"].(float64), 0.5)

	_, err = execute(t, "correlate", writeScores(t), "--x", "score", "--y", "height")
	assert.Error(t, err)
}

func TestAnalyzeWritesExport(t *testing.T) {
	export := filepath.Join(t.TempDir(), "report.json")
	v, err := execute(t, "analyze", writeScores(t), "--outcome", "score", "--group", "arm", "--export", export)
	require.NoError(t, err)
	assert.Equal(t, "score", v["outcome"])

	raw, err := os.ReadFile(export)
	require.NoError(t, err)
	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.Contains(t, doc, "metadata")
}

func TestMissingFile(t *testing.T) {
	_, err := execute(t, "profile", filepath.Join(t.TempDir(), "none.csv"))
	assert.Error(t, err)
}
