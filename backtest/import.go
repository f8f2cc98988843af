package backtest

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ulikunitz/xz"
	"github.com/xyproto/unzip"
)

// OpenData opens a historical odds dataset for replay. Plain .csv is
// read directly; .xz streams are decompressed on the fly; .zip
// archives are extracted to a scratch directory and the first .csv
// inside is used. Vendors ship all three.
func OpenData(path string) (io.ReadCloser, error) {
	switch {
	case strings.HasSuffix(path, ".zip"):
		return openZip(path)
	case strings.HasSuffix(path, ".xz"):
		return openXZ(path)
	default:
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("backtest: open %q: %w", path, err)
		}
		return f, nil
	}
}

func openXZ(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("backtest: open %q: %w", path, err)
	}
	r, err := xz.NewReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("backtest: xz %q: %w", path, err)
	}
	return &wrappedCloser{Reader: r, closer: f}, nil
}

func openZip(path string) (io.ReadCloser, error) {
	dir, err := os.MkdirTemp("", "stakemill-data-")
	if err != nil {
		return nil, fmt.Errorf("backtest: scratch dir: %w", err)
	}

	if err := unzip.Extract(path, dir); err != nil {
		os.RemoveAll(dir)
		return nil, fmt.Errorf("backtest: extract %q: %w", path, err)
	}

	csvPath, err := findCSV(dir)
	if err != nil {
		os.RemoveAll(dir)
		return nil, err
	}

	f, err := os.Open(csvPath)
	if err != nil {
		os.RemoveAll(dir)
		return nil, fmt.Errorf("backtest: open %q: %w", csvPath, err)
	}
	return &wrappedCloser{Reader: f, closer: f, cleanup: func() { os.RemoveAll(dir) }}, nil
}

func findCSV(dir string) (string, error) {
	var found string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if found == "" && !d.IsDir() && strings.HasSuffix(strings.ToLower(path), ".csv") {
			found = path
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("backtest: scan archive: %w", err)
	}
	if found == "" {
		return "", fmt.Errorf("backtest: no .csv inside archive")
	}
	return found, nil
}

// wrappedCloser closes an underlying resource (and optionally cleans a
// scratch dir) when the decorated reader is closed.
type wrappedCloser struct {
	io.Reader
	closer  io.Closer
	cleanup func()
}

func (w *wrappedCloser) Close() error {
	err := w.closer.Close()
	if w.cleanup != nil {
		w.cleanup()
	}
	return err
}
