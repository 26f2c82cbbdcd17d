package app

import (
	"context"
	"flag"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"j2k/internal/core/ports"
)

var update = flag.Bool("update", false, "rewrite the expected .kt files of testdata/multifile")

func TestMultiFileFixtures(t *testing.T) {
	a, _ := newTestApp(t, nil)
	res, err := a.ConversionService().Verify(context.Background(), ports.VerifyRequest{
		Root:   filepath.Join("testdata", "multifile"),
		Update: *update,
	})
	require.NoError(t, err)
	require.NotEmpty(t, res.Fixtures)

	for _, fx := range res.Fixtures {
		t.Run(fx.Name, func(t *testing.T) {
			require.NoError(t, fx.Err)
			for name, diff := range fx.Diffs {
				t.Errorf("%s differs from the expected output:\n%s", name, diff)
			}
		})
	}
}

func TestVerifyUpdateThenCompare(t *testing.T) {
	a, _ := newTestApp(t, nil)
	root := t.TempDir()
	writeSource(t, root, "Accessors/demo/Counter.java", counterJava)
	writeSource(t, root, "Accessors/demo/Main.java", mainJava)
	svc := a.ConversionService()
	ctx := context.Background()

	res, err := svc.Verify(ctx, ports.VerifyRequest{Root: root, Update: true})
	require.NoError(t, err)
	require.Len(t, res.Fixtures, 1)
	assert.Equal(t, []string{"demo/Counter.kt", "demo/Main.kt"}, res.Fixtures[0].Updated)

	res, err = svc.Verify(ctx, ports.VerifyRequest{Root: root})
	require.NoError(t, err)
	assert.True(t, res.Fixtures[0].Passed(), "diffs: %v", res.Fixtures[0].Diffs)

	expected := filepath.Join(root, "Accessors", "demo", "Counter.kt")
	require.NoError(t, os.WriteFile(expected, []byte("package demo\n\nclass Counter\n"), 0o644))
	writeSource(t, root, "Accessors/demo/Stale.kt", "package demo\n")

	res, err = svc.Verify(ctx, ports.VerifyRequest{Root: root})
	require.NoError(t, err)
	fx := res.Fixtures[0]
	assert.False(t, fx.Passed())
	require.Contains(t, fx.Diffs, "demo/Counter.kt")
	assert.Contains(t, fx.Diffs["demo/Counter.kt"], "--- expected/demo/Counter.kt")
	assert.Contains(t, fx.Diffs["demo/Counter.kt"], "+    var count: Int = 0")
	assert.Contains(t, fx.Diffs, "demo/Stale.kt", "an expected file with no output is a difference")
	assert.NotContains(t, fx.Diffs, "demo/Main.kt")
}

func TestVerifyReportsBrokenFixture(t *testing.T) {
	a, _ := newTestApp(t, nil)
	root := t.TempDir()
	writeSource(t, root, "Broken/Bad.java", "class Bad {")

	res, err := a.ConversionService().Verify(context.Background(), ports.VerifyRequest{Root: root})
	require.NoError(t, err)
	require.Len(t, res.Fixtures, 1)
	assert.Equal(t, "Broken", res.Fixtures[0].Name)
	assert.Error(t, res.Fixtures[0].Err)
	assert.False(t, res.Fixtures[0].Passed())

	_, err = a.ConversionService().Verify(context.Background(), ports.VerifyRequest{Root: filepath.Join(root, "missing")})
	assert.Error(t, err)
}

func TestUnifiedDiffEqualIsEmpty(t *testing.T) {
	assert.Empty(t, unifiedDiff("A.kt", "x\n", "x\n"))
	assert.Contains(t, unifiedDiff("A.kt", "x\n", "y\n"), "-x\n+y\n")
}
