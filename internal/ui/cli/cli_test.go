package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"j2k/internal/data/history"
)

const counterJava = `package demo;

public class Counter {
    private int count;

    public int getCount() {
        return count;
    }

    public void setCount(int value) {
        this.count = value;
    }
}
`

const mainJava = `package demo;

public class Main {
    public void bump(Counter c) {
        c.setCount(c.getCount() + 1);
    }
}
`

// project lays out a j2k project in a temp dir and returns its config path.
func project(t *testing.T, toml string, sources map[string]string) (string, string) {
	t.Helper()
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "j2k.toml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(toml), 0o644))
	for rel, content := range sources {
		path := filepath.Join(dir, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return dir, cfgPath
}

const layout = `
[paths]
input_root = "src"
output_dir = "out"
`

func run(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := execute(append([]string{"--no-color"}, args...), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestVersionCommand(t *testing.T) {
	code, out, _ := run(t, "version")
	assert.Equal(t, exitOK, code)
	assert.Equal(t, "j2k v"+Version+"\n", out)
}

func TestUnknownFlagIsUsageError(t *testing.T) {
	code, _, _ := run(t, "convert", "--no-such-flag")
	assert.Equal(t, exitUsage, code)

	code, _, _ = run(t, "verify")
	assert.Equal(t, exitUsage, code, "verify needs a fixture root")
}

func TestMissingExplicitConfigFails(t *testing.T) {
	code, _, errOut := run(t, "--config", filepath.Join(t.TempDir(), "nope.toml"), "convert")
	assert.Equal(t, exitFailure, code)
	assert.Contains(t, errOut, "load config")
}

func TestConvertWritesKotlinAndRecordsHistory(t *testing.T) {
	dir, cfgPath := project(t, layout, map[string]string{
		"src/demo/Counter.java": counterJava,
		"src/demo/Main.java":    mainJava,
	})

	code, out, errOut := run(t, "--config", cfgPath, "convert", "--quiet")
	require.Equal(t, exitOK, code, "stdout:\n%s\nstderr:\n%s", out, errOut)
	assert.Contains(t, out, "OK   src (2 files, 2 written")
	assert.Contains(t, out, "1 groups, 0 failed")

	kt, err := os.ReadFile(filepath.Join(dir, "out", "demo", "Counter.kt"))
	require.NoError(t, err)
	assert.Contains(t, string(kt), "var count: Int = 0")

	code, _, _ = run(t, "--config", cfgPath, "convert", "--quiet")
	require.Equal(t, exitOK, code)

	store, err := history.Open(filepath.Join(dir, ".j2k", "history.db"))
	require.NoError(t, err)
	runs, err := store.Runs(context.Background(), 0)
	require.NoError(t, err)
	require.NoError(t, store.Close())
	require.Len(t, runs, 2)

	code, out, _ = run(t, "--config", cfgPath, "history", "list")
	require.Equal(t, exitOK, code)
	assert.Contains(t, out, "STATUS")
	assert.Contains(t, out, shortID(runs[0].ID))

	code, out, _ = run(t, "--config", cfgPath, "history", "show", runs[0].ID[:8])
	require.Equal(t, exitOK, code)
	assert.Contains(t, out, "run       "+runs[0].ID)
	assert.Contains(t, out, "conflicts none")

	code, out, _ = run(t, "--config", cfgPath, "history", "diff", runs[0].ID)
	require.Equal(t, exitOK, code)
	assert.Contains(t, out, "0 changed declarations", "identical inputs give identical decisions")

	code, _, errOut = run(t, "--config", cfgPath, "history", "show", "zzzz")
	assert.Equal(t, exitFailure, code)
	assert.Contains(t, errOut, "error:")
}

func TestConvertWritesSARIFReport(t *testing.T) {
	dir, cfgPath := project(t, layout, map[string]string{
		"src/demo/Main.java": "package demo;\n\npublic class Main {\n    void f() {\n        missing();\n    }\n}\n",
	})
	sarifPath := filepath.Join(dir, "reports", "j2k.sarif")

	code, out, errOut := run(t, "--config", cfgPath, "convert", "--dry-run", "--sarif", sarifPath)
	require.Equal(t, exitOK, code, "stdout:\n%s\nstderr:\n%s", out, errOut)

	data, err := os.ReadFile(sarifPath)
	require.NoError(t, err)
	var doc struct {
		Version string `json:"version"`
		Runs    []struct {
			Results []struct {
				RuleID    string `json:"ruleId"`
				Locations []struct {
					PhysicalLocation struct {
						ArtifactLocation struct {
							URI string `json:"uri"`
						} `json:"artifactLocation"`
					} `json:"physicalLocation"`
				} `json:"locations"`
			} `json:"results"`
		} `json:"runs"`
	}
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, "2.1.0", doc.Version)
	require.Len(t, doc.Runs, 1)
	var uris []string
	for _, r := range doc.Runs[0].Results {
		if r.RuleID != "UNRESOLVED_REFERENCE" {
			continue
		}
		require.Len(t, r.Locations, 1)
		uris = append(uris, r.Locations[0].PhysicalLocation.ArtifactLocation.URI)
	}
	assert.Equal(t, []string{"src/demo/Main.java"}, uris)
}

func TestConvertDryRunWritesNothing(t *testing.T) {
	dir, cfgPath := project(t, layout, map[string]string{"src/demo/Counter.java": counterJava})

	code, out, _ := run(t, "--config", cfgPath, "convert", "--dry-run")
	require.Equal(t, exitOK, code)
	assert.Contains(t, out, "0 written")
	assert.NoDirExists(t, filepath.Join(dir, "out"))
}

func TestConvertFailedGroupExitsNonZero(t *testing.T) {
	_, cfgPath := project(t, layout, map[string]string{"src/Broken.java": "class Broken {"})

	code, out, _ := run(t, "--config", cfgPath, "convert")
	assert.Equal(t, exitFailure, code)
	assert.Contains(t, out, "FAIL src")
	assert.Contains(t, out, "1 groups, 1 failed")
}

func TestHistoryDisabled(t *testing.T) {
	_, cfgPath := project(t, layout+"\n[history]\nenabled = false\n", nil)

	code, _, errOut := run(t, "--config", cfgPath, "history", "list")
	assert.Equal(t, exitFailure, code)
	assert.Contains(t, errOut, "history is disabled")
}

func TestVerifyCommand(t *testing.T) {
	dir, cfgPath := project(t, layout, map[string]string{
		"fixtures/Accessors/Counter.java": counterJava,
		"fixtures/Accessors/Main.java":    mainJava,
	})
	fixtures := filepath.Join(dir, "fixtures")

	code, out, _ := run(t, "--config", cfgPath, "verify", "--update", fixtures)
	require.Equal(t, exitOK, code, out)
	assert.Contains(t, out, "UPD  Accessors (Counter.kt, Main.kt)")

	code, out, _ = run(t, "--config", cfgPath, "verify", fixtures)
	require.Equal(t, exitOK, code, out)
	assert.Contains(t, out, "PASS Accessors")
	assert.Contains(t, out, "1 fixtures, 0 failed")

	require.NoError(t, os.WriteFile(filepath.Join(fixtures, "Accessors", "Main.kt"), []byte("package demo\n"), 0o644))
	code, out, _ = run(t, "--config", cfgPath, "verify", fixtures)
	assert.Equal(t, exitFailure, code)
	assert.Contains(t, out, "DIFF Accessors")
	assert.Contains(t, out, "--- expected/Main.kt")
	assert.Contains(t, out, "+class Main {")
}

func TestPrintDiffKeepsEveryLine(t *testing.T) {
	color.NoColor = true
	var b bytes.Buffer
	diff := "--- expected/A.kt\n+++ actual/A.kt\n@@ -1 +1 @@\n-old\n+new\n"
	printDiff(&b, diff)
	assert.Equal(t, diff, b.String())
}

func TestObservabilityServer(t *testing.T) {
	srv := NewObservabilityServer("127.0.0.1:0")
	require.NoError(t, srv.Start(context.Background()))
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Stop(ctx)
	}()

	for _, path := range []string{"/health", "/metrics"} {
		resp, err := http.Get("http://" + srv.Addr() + path)
		require.NoError(t, err)
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
		if path == "/metrics" {
			assert.True(t, strings.Contains(string(body), "j2k_"), "expected j2k metrics to be registered")
		}
	}
}
