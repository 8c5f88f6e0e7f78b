package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type workspace struct {
	dir string
}

func newWorkspace(t *testing.T) *workspace {
	t.Helper()
	w := &workspace{dir: t.TempDir()}
	w.write(t, "corpus.jsonl", `{"id":"GX-a","fields":{"body":"obama family tree"}}
{"id":"GX-b","fields":{"body":"black box"}}
{"id":"GX-c","fields":{"body":"obama black box tree"}}
{"id":"GX-d","fields":{"body":"box of crayons"}}
`)
	w.write(t, "queries.txt", "10:obama tree\n11:zebra\n12:#near/1(black box)\n")
	return w
}

func (w *workspace) write(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(w.dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func (w *workspace) path(name string) string { return filepath.Join(w.dir, name) }

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(append(args, "--log-level", "error"))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRun_WritesTrecEvalOutput(t *testing.T) {
	w := newWorkspace(t)

	out, err := execute(t, "run",
		"--corpus", w.path("corpus.jsonl"),
		"--queries", w.path("queries.txt"),
		"--model", "RankedBoolean",
		"--out", "-",
	)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.NotEmpty(t, lines)
	assert.True(t, strings.HasPrefix(lines[0], "10 Q0 GX-"), lines[0])
	assert.Contains(t, out, "11 Q0 dummy 1 0 qryeval\n")
	assert.Contains(t, out, "12 Q0 GX-")
	assert.Less(t, strings.Index(out, "10 Q0"), strings.Index(out, "11 Q0"), "query-file order")
}

func TestRun_ToFileWithDiversity(t *testing.T) {
	w := newWorkspace(t)
	w.write(t, "intents.txt", "10.1:obama family\n10.2:black box\n11.1:zebra\n12.1:black\n")

	_, err := execute(t, "run",
		"--corpus", w.path("corpus.jsonl"),
		"--queries", w.path("queries.txt"),
		"--model", "bm25",
		"--diversity", "pm2",
		"--intents", w.path("intents.txt"),
		"--length", "2",
		"--out", w.path("run.txt"),
	)
	require.NoError(t, err)

	data, err := os.ReadFile(w.path("run.txt"))
	require.NoError(t, err)
	var q10 int
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		if strings.HasPrefix(line, "10 ") {
			q10++
		}
	}
	assert.Equal(t, 2, q10)
}

func TestRun_UnsupportedQueryWritesDummy(t *testing.T) {
	w := newWorkspace(t)
	w.write(t, "mixed.txt", "1:obama\n2:#and(black box)\n3:tree\n")

	out, err := execute(t, "run",
		"--corpus", w.path("corpus.jsonl"),
		"--queries", w.path("mixed.txt"),
		"--model", "bm25",
		"--out", "-",
	)
	require.NoError(t, err)
	assert.Contains(t, out, "1 Q0 GX-")
	assert.Contains(t, out, "2 Q0 dummy 1 0 qryeval\n")
	assert.Contains(t, out, "3 Q0 GX-")
}

func TestOpenOutput_ReportsCloseError(t *testing.T) {
	w := newWorkspace(t)
	_, closeOut, err := openOutput(newRootCmd(), w.path("run.txt"))
	require.NoError(t, err)
	require.NoError(t, closeOut())
	assert.Error(t, closeOut(), "a second close fails")
}

func TestReturned(t *testing.T) {
	assert.Equal(t, 7, returned(7, 0))
	assert.Equal(t, 3, returned(7, 3))
	assert.Equal(t, 2, returned(2, 3))
}

func TestRun_RequiresQueryFile(t *testing.T) {
	w := newWorkspace(t)
	_, err := execute(t, "run", "--corpus", w.path("corpus.jsonl"))
	assert.ErrorContains(t, err, "query file")
}

func TestSearch_Text(t *testing.T) {
	w := newWorkspace(t)
	out, err := execute(t, "search", "black", "box", "--corpus", w.path("corpus.jsonl"), "-n", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "#sum(")
	assert.Contains(t, out, "RANK")
	assert.Contains(t, out, "GX-b")
}

func TestSearch_IntentNeedsDiversity(t *testing.T) {
	w := newWorkspace(t)
	_, err := execute(t, "search", "obama", "--corpus", w.path("corpus.jsonl"), "--intent", "obama family")
	assert.Error(t, err)
}
