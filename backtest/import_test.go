package backtest

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleData = csvHeader + "2025-03-01T12:00:00Z,match-1,home,0.60,2.00,win,1h\n"

func TestOpenDataPlainCSV(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "odds.csv")
	require.NoError(t, os.WriteFile(path, []byte(sampleData), 0o644))

	rc, err := OpenData(path)
	require.NoError(t, err)
	defer rc.Close()

	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, sampleData, string(got))
}

func TestOpenDataZipArchive(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "odds.zip")
	f, err := os.Create(path)
	require.NoError(t, err)

	zw := zip.NewWriter(f)
	w, err := zw.Create("2025/march/odds.csv")
	require.NoError(t, err)
	_, err = w.Write([]byte(sampleData))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	rc, err := OpenData(path)
	require.NoError(t, err)
	defer rc.Close()

	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, sampleData, string(got))
}

func TestOpenDataZipWithoutCSV(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "odds.zip")
	f, err := os.Create(path)
	require.NoError(t, err)

	zw := zip.NewWriter(f)
	w, err := zw.Create("readme.txt")
	require.NoError(t, err)
	_, err = w.Write([]byte("no data here"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	_, err = OpenData(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no .csv")
}

func TestOpenDataMissingFile(t *testing.T) {
	t.Parallel()

	_, err := OpenData(filepath.Join(t.TempDir(), "absent.csv"))
	assert.Error(t, err)
}
