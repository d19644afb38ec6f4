package main

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lacphcli/pkg/contracts"
)

func fixturePath(name string) string {
	return filepath.Join("..", "..", "internal", "dataprocessing", "testdata", name)
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("LACPH_TELEMETRY_METRIC_EXPORTER", "none")
	t.Setenv("LACPH_TELEMETRY_TRACE_EXPORTER", "none")

	var out bytes.Buffer
	cmd := newRootCmdWith(&globalFlags{logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestParseCommand(t *testing.T) {
	out, err := execute(t, "parse",
		"--data-dir", t.TempDir(),
		"--source", "dir",
		"--date", "2020-04-13",
		"--file", fixturePath("bulletin_2020-04-13.txt"))
	require.NoError(t, err)

	var report map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, "2020-04-13", report["date"])
	assert.Equal(t, float64(420), report["new_cases"])
}

func TestParseCommandErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"missing file flag", []string{"parse", "--date", "2020-04-13"}},
		{"bad date", []string{"parse", "--source", "dir", "--date", "April 13", "--file", fixturePath("bulletin_2020-04-13.txt")}},
		{"date mismatch", []string{"parse", "--source", "dir", "--date", "2020-04-14", "--file", fixturePath("bulletin_2020-04-13.txt")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, append(tt.args, "--data-dir", t.TempDir())...)
			assert.Error(t, err)
		})
	}
}

func TestRunCommand(t *testing.T) {
	dataDir := t.TempDir()
	cache := filepath.Join(dataDir, "bulletins")
	require.NoError(t, os.MkdirAll(cache, 0755))
	for _, d := range []string{"2020-04-13", "2020-07-28"} {
		data, err := os.ReadFile(fixturePath("bulletin_" + d + ".txt"))
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(filepath.Join(cache, d+".txt"), data, 0644))
	}
	outDir := t.TempDir()

	out, err := execute(t, "run",
		"--data-dir", dataDir,
		"--source", "dir",
		"--from", "2020-04-13",
		"--to", "2020-04-14",
		"--out", outDir,
		"--xlsx=false")
	require.NoError(t, err)

	var summary RunSummary
	require.NoError(t, json.Unmarshal([]byte(out), &summary))
	assert.Equal(t, "completed", summary.Status)
	assert.Equal(t, 2, summary.Dates)
	assert.Equal(t, 1, summary.Reports)
	require.Len(t, summary.Skipped, 1)
	assert.Equal(t, "2020-04-14", summary.Skipped[0].Date)
	assert.Len(t, summary.Files, 6)
	assert.FileExists(t, filepath.Join(outDir, "lacph_area.csv"))
	assert.FileExists(t, summary.Snapshot)
}

func TestRunCommandRejectsBadRange(t *testing.T) {
	_, err := execute(t, "run", "--data-dir", t.TempDir(), "--source", "dir", "--from", "2020-13-01")
	assert.Error(t, err)
}

func TestParseCommandRejectsUnknownFileKind(t *testing.T) {
	pdf := filepath.Join(t.TempDir(), "2020-04-13.pdf")
	require.NoError(t, os.WriteFile(pdf, []byte("%PDF"), 0644))

	_, err := execute(t, "parse", "--data-dir", t.TempDir(), "--source", "dir", "--date", "2020-04-13", "--file", pdf)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a bulletin")
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, contracts.GetVersionString()+"\n", out)

	out, err = execute(t, "version", "--full")
	require.NoError(t, err)
	var info contracts.VersionInfo
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, contracts.Version, info.Version)
	assert.NotEmpty(t, info.GoVersion)
}
