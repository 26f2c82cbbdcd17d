package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"j2k/internal/core/config"
	"j2k/internal/core/ports"
	"j2k/internal/data/history"
	"j2k/internal/engine/parser"
	"j2k/internal/engine/printer"
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

func writeSource(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// newTestApp builds an App over a fresh project layout. store may be nil.
func newTestApp(t *testing.T, store ports.HistoryStore) (*App, config.ResolvedPaths) {
	t.Helper()
	dir := t.TempDir()
	paths := config.ResolvedPaths{
		ProjectRoot: dir,
		InputRoot:   filepath.Join(dir, "src"),
		OutputDir:   filepath.Join(dir, "out"),
		StateDir:    filepath.Join(dir, ".j2k"),
	}
	require.NoError(t, os.MkdirAll(paths.InputRoot, 0o755))

	a, err := NewWithDependencies(config.DefaultConfig(), paths, Dependencies{
		Parser:  parser.NewJavaParser(2),
		Printer: printer.New(),
		History: store,
	})
	require.NoError(t, err)
	return a, paths
}

func TestNewWithDependencies_RequiresAdapters(t *testing.T) {
	cfg := config.DefaultConfig()
	_, err := NewWithDependencies(cfg, config.ResolvedPaths{}, Dependencies{Printer: printer.New()})
	assert.ErrorContains(t, err, "source parser")

	_, err = NewWithDependencies(cfg, config.ResolvedPaths{}, Dependencies{Parser: parser.NewJavaParser(1)})
	assert.ErrorContains(t, err, "printer")

	_, err = NewWithDependencies(nil, config.ResolvedPaths{}, Dependencies{})
	assert.Error(t, err)
}

func TestNewOpensHistoryWhenEnabled(t *testing.T) {
	dir := t.TempDir()
	paths := config.ResolvedPaths{HistoryPath: filepath.Join(dir, ".j2k", "history.db")}

	a, err := New(config.DefaultConfig(), paths)
	require.NoError(t, err)
	defer a.Close()
	assert.NotNil(t, a.History())
	assert.FileExists(t, paths.HistoryPath)

	off := false
	cfg := config.DefaultConfig()
	cfg.History.Enabled = &off
	b, err := New(cfg, config.ResolvedPaths{})
	require.NoError(t, err)
	defer b.Close()
	assert.Nil(t, b.History())
}

func TestNewSkipsCorruptHistory(t *testing.T) {
	dir := t.TempDir()
	paths := config.ResolvedPaths{HistoryPath: filepath.Join(dir, "history.db")}
	require.NoError(t, os.WriteFile(paths.HistoryPath, []byte("this is not a database file at all, just text"), 0o644))

	a, err := New(config.DefaultConfig(), paths)
	require.NoError(t, err)
	defer a.Close()
	assert.Nil(t, a.History())
}

func TestDiscoverGroups_RootMode(t *testing.T) {
	a, paths := newTestApp(t, nil)
	writeSource(t, paths.InputRoot, "demo/Counter.java", counterJava)
	writeSource(t, paths.InputRoot, "demo/Main.java", mainJava)
	writeSource(t, paths.InputRoot, "demo/README.md", "not java")
	writeSource(t, paths.InputRoot, "build/Gen.java", "class Gen {}")

	groups, err := a.DiscoverGroups([]string{paths.InputRoot})
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, "src", groups[0].Name)

	var got []string
	for _, src := range groups[0].Sources {
		got = append(got, src.Path)
	}
	assert.Equal(t, []string{"demo/Counter.java", "demo/Main.java"}, got, "build is excluded by default")
}

func TestDiscoverGroups_DirectoryMode(t *testing.T) {
	a, paths := newTestApp(t, nil)
	cfg := config.DefaultConfig()
	cfg.Conversion.GroupBy = config.GroupByDirectory
	cfg.Exclude.Files = []string{"*Test.java"}
	a.SetConfig(cfg)

	writeSource(t, paths.InputRoot, "alpha/A.java", "package alpha; class A {}")
	writeSource(t, paths.InputRoot, "alpha/ATest.java", "package alpha; class ATest {}")
	writeSource(t, paths.InputRoot, "beta/deep/B.java", "package beta.deep; class B {}")
	writeSource(t, paths.InputRoot, "Top.java", "class Top {}")

	groups, err := a.DiscoverGroups([]string{paths.InputRoot})
	require.NoError(t, err)
	require.Len(t, groups, 3)
	assert.Equal(t, "src", groups[0].Name)
	assert.Equal(t, "src/alpha", groups[1].Name)
	assert.Equal(t, "src/beta", groups[2].Name)
	require.Len(t, groups[1].Sources, 1)
	assert.Equal(t, "alpha/A.java", groups[1].Sources[0].Path)
	assert.Equal(t, "beta/deep/B.java", groups[2].Sources[0].Path)
}

func TestDiscoverGroups_SkipsOwnOutputInsideRoot(t *testing.T) {
	a, paths := newTestApp(t, nil)
	a.Paths.OutputDir = filepath.Join(paths.InputRoot, "generated")
	writeSource(t, paths.InputRoot, "demo/Counter.java", counterJava)
	writeSource(t, paths.InputRoot, "generated/demo/Stale.java", "package demo; class Stale {}")

	groups, err := a.DiscoverGroups([]string{paths.InputRoot})
	require.NoError(t, err)
	require.Len(t, groups, 1)
	require.Len(t, groups[0].Sources, 1)
	assert.Equal(t, "demo/Counter.java", groups[0].Sources[0].Path)
}

func TestDiscoverGroups_EmptyRootYieldsEmptyGroup(t *testing.T) {
	a, paths := newTestApp(t, nil)
	groups, err := a.DiscoverGroups([]string{paths.InputRoot})
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Empty(t, groups[0].Sources)

	_, err = a.DiscoverGroups([]string{filepath.Join(paths.ProjectRoot, "missing")})
	assert.Error(t, err)
}

func TestConvertWritesOutputsAndRecordsRun(t *testing.T) {
	store, err := history.Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	defer store.Close()

	a, paths := newTestApp(t, store)
	writeSource(t, paths.InputRoot, "demo/Counter.java", counterJava)
	writeSource(t, paths.InputRoot, "demo/Main.java", mainJava)

	ctx := context.Background()
	res, err := a.ConversionService().Convert(ctx, ports.ConvertRequest{})
	require.NoError(t, err)
	require.False(t, res.Failed(), "groups: %+v", res.Groups)
	require.Len(t, res.Groups, 1)
	assert.Equal(t, 2, res.Groups[0].Files)
	require.Len(t, res.Groups[0].Written, 2)

	counter, err := os.ReadFile(filepath.Join(paths.OutputDir, "demo", "Counter.kt"))
	require.NoError(t, err)
	assert.Contains(t, string(counter), "    var count: Int = 0\n")
	main, err := os.ReadFile(filepath.Join(paths.OutputDir, "demo", "Main.kt"))
	require.NoError(t, err)
	assert.Contains(t, string(main), "c!!.count = c!!.count + 1")

	run, err := store.Run(ctx, res.RunID)
	require.NoError(t, err)
	assert.Equal(t, 1, run.Groups)
	assert.Equal(t, 2, run.Files)
	assert.False(t, run.Failed)
	assert.NotEmpty(t, run.Decisions)
}

func TestConvertDryRunWritesNothing(t *testing.T) {
	store, err := history.Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	defer store.Close()

	a, paths := newTestApp(t, store)
	writeSource(t, paths.InputRoot, "demo/Counter.java", counterJava)

	res, err := a.ConversionService().Convert(context.Background(), ports.ConvertRequest{DryRun: true})
	require.NoError(t, err)
	assert.False(t, res.Failed())
	assert.Empty(t, res.Groups[0].Written)
	assert.NoDirExists(t, paths.OutputDir)

	runs, err := store.Runs(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, runs, "dry runs are not recorded")
}

func TestConvertFailedGroupWritesNothing(t *testing.T) {
	a, paths := newTestApp(t, nil)
	cfg := config.DefaultConfig()
	cfg.Conversion.GroupBy = config.GroupByDirectory
	a.SetConfig(cfg)

	writeSource(t, paths.InputRoot, "good/Counter.java", "package good;\n"+counterJava[len("package demo;\n"):])
	writeSource(t, paths.InputRoot, "bad/Broken.java", "package bad; class Broken {")

	res, err := a.ConversionService().Convert(context.Background(), ports.ConvertRequest{})
	require.NoError(t, err)
	assert.True(t, res.Failed())
	require.Len(t, res.Groups, 2)

	bad, good := res.Groups[0], res.Groups[1]
	assert.Equal(t, "src/bad", bad.Name)
	assert.Error(t, bad.Err)
	assert.Empty(t, bad.Written)
	assert.Equal(t, 1, bad.Errors)

	assert.NoError(t, good.Err)
	assert.FileExists(t, filepath.Join(paths.OutputDir, "good", "Counter.kt"))
	assert.NoFileExists(t, filepath.Join(paths.OutputDir, "bad", "Broken.kt"))
}

func TestConvertHonorsCancellation(t *testing.T) {
	a, _ := newTestApp(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := a.ConversionService().Convert(ctx, ports.ConvertRequest{})
	assert.ErrorIs(t, err, context.Canceled)
}
