// Package ingest runs the invoice processing pipeline: extract, analyze,
// persist, embed, index.
package ingest

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ProcessingError reports a batch-level ingestion failure. Per-invoice
// failures never surface as ProcessingError; they become failed result rows.
type ProcessingError struct {
	Op  string
	Err error
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("ingest %s: %v", e.Op, e.Err)
}

func (e *ProcessingError) Unwrap() error { return e.Err }

// extractArchive unpacks the ZIP at archivePath into destDir and returns the
// paths of contained invoice documents with a supported extension, sorted for
// deterministic processing order. Archive directory structure is preserved so
// entries sharing a base name stay distinct. Entries escaping destDir are
// rejected.
func extractArchive(archivePath, destDir string, supported func(ext string) bool) ([]string, error) {
	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		return nil, &ProcessingError{Op: "open archive", Err: err}
	}
	defer zr.Close()

	var paths []string
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		name := filepath.Base(f.Name)
		if strings.HasPrefix(name, ".") || strings.HasPrefix(f.Name, "__MACOSX/") {
			continue
		}
		if !supported(strings.ToLower(filepath.Ext(name))) {
			continue
		}
		dest := filepath.Join(destDir, filepath.FromSlash(f.Name))
		if !strings.HasPrefix(dest, filepath.Clean(destDir)+string(os.PathSeparator)) {
			continue
		}
		if err := writeEntry(f, dest); err != nil {
			return nil, &ProcessingError{Op: "extract archive entry", Err: err}
		}
		paths = append(paths, dest)
	}
	if len(paths) == 0 {
		return nil, &ProcessingError{Op: "extract archive", Err: fmt.Errorf("no supported invoice documents in %s", filepath.Base(archivePath))}
	}
	sort.Strings(paths)
	return paths, nil
}

func writeEntry(f *zip.File, dest string) error {
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("open %s: %w", f.Name, err)
	}
	defer rc.Close()

	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return err
	}
	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, rc); err != nil {
		_ = out.Close()
		return fmt.Errorf("write %s: %w", dest, err)
	}
	return out.Close()
}
