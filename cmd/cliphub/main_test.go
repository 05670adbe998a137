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
	"go.uber.org/zap/zapcore"

	"github.com/HerbHall/cliphub/internal/config"
	"github.com/HerbHall/cliphub/internal/services"
	"github.com/HerbHall/cliphub/internal/store"
	"github.com/HerbHall/cliphub/internal/testutil"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func seedDatabase(t *testing.T, path string, bodies ...string) {
	t.Helper()
	st, err := store.New(path)
	require.NoError(t, err)
	defer st.Close()

	svc, err := services.NewClipService(context.Background(), st, config.ClipsConfig{MaxLength: 100})
	require.NoError(t, err)
	for _, b := range bodies {
		_, err := svc.Create(context.Background(), testutil.Content(b))
		require.NoError(t, err)
	}
}

func countClips(t *testing.T, path string) int {
	t.Helper()
	st, err := store.New(path)
	require.NoError(t, err)
	defer st.Close()

	svc, err := services.NewClipService(context.Background(), st, config.ClipsConfig{MaxLength: 100})
	require.NoError(t, err)
	n, err := svc.Count(context.Background())
	require.NoError(t, err)
	return n
}

func TestVersionCommand(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "ClipHub dev"), "output = %q", out)
}

func TestBackupAndRestore(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src", "clips.db")
	seedDatabase(t, src, "alpha", "beta", "gamma")

	archive := filepath.Join(dir, "backup.tar.gz")
	out, err := run(t, "backup", "--db", src, "--output", archive)
	require.NoError(t, err)
	assert.Contains(t, out, "Backup created: "+archive)
	assert.Contains(t, out, "3 clips")

	dst := filepath.Join(dir, "dst", "restored.db")
	out, err = run(t, "restore", "--db", dst, "--input", archive)
	require.NoError(t, err)
	assert.Contains(t, out, "Restore complete: 3 clips")
	assert.Equal(t, 3, countClips(t, dst))

	_, err = run(t, "restore", "--db", dst, "--input", archive)
	assert.Error(t, err, "restore over an existing database needs --force")

	_, err = run(t, "restore", "--db", dst, "--input", archive, "--force")
	assert.NoError(t, err)
}

func TestBackup_MissingDatabase(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "none", "clips.db")

	_, err := run(t, "backup", "--db", missing, "--output", filepath.Join(t.TempDir(), "x.tar.gz"))
	require.Error(t, err)
	assert.NoDirExists(t, filepath.Dir(missing), "backup must not create an empty database")
}

func TestRestore_RequiresInput(t *testing.T) {
	_, err := run(t, "restore", "--db", filepath.Join(t.TempDir(), "clips.db"))
	assert.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	l, err := newLogger(config.LogConfig{Level: "debug", Development: true})
	require.NoError(t, err)
	assert.True(t, l.Core().Enabled(zapcore.DebugLevel), "debug level not enabled")

	l, err = newLogger(config.LogConfig{Level: "warn"})
	require.NoError(t, err)
	assert.False(t, l.Core().Enabled(zapcore.InfoLevel), "info enabled at warn level")

	_, err = newLogger(config.LogConfig{Level: "loud"})
	assert.Error(t, err)
}

func TestDBFlagOverridesConfigFile(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "real.db")
	seedDatabase(t, db, "one")

	cfgPath := filepath.Join(dir, "cliphub.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("storage:\n  path: "+filepath.Join(dir, "missing.db")+"\n"), 0o644))

	archive := filepath.Join(dir, "out.tar.gz")
	out, err := run(t, "backup", "--config", cfgPath, "--db", db, "--output", archive)
	require.NoError(t, err)
	assert.Contains(t, out, "1 clips")
	assert.FileExists(t, archive)
}

func TestBackup_LeavesSchemaUntouched(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "bare.db")
	st, err := store.New(db)
	require.NoError(t, err)
	require.NoError(t, st.Close())

	out, err := run(t, "backup", "--db", db, "--output", filepath.Join(dir, "bare.tar.gz"))
	require.NoError(t, err)
	assert.Contains(t, out, "0 clips")

	st, err = store.New(db)
	require.NoError(t, err)
	defer st.Close()

	ctx := context.Background()
	h, err := st.Open(ctx)
	require.NoError(t, err)
	defer h.Close()

	var tables int
	require.NoError(t, h.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table'`).Scan(&tables))
	assert.Equal(t, 0, tables, "backup created tables in the source database")
}
