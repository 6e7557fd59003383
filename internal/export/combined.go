package export

import (
	"archive/zip"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

// CombinedArchiveName is the client-mode roll-up of all per-gauge archives.
const CombinedArchiveName = "all_gauge_subbasins.zip"

// WriteCombinedArchive zips the given per-gauge archives into one file
// under outDir, entries named by basename. Archives that no longer exist on
// disk are logged and left out; no other validation is done on them.
// Returns the combined archive path, or "" when there was nothing to pack.
func WriteCombinedArchive(outDir string, archives []string, logger *slog.Logger) (string, error) {
	if len(archives) == 0 {
		return "", nil
	}

	combined := filepath.Join(outDir, CombinedArchiveName)
	out, err := os.Create(combined)
	if err != nil {
		return "", fmt.Errorf("create combined archive: %w", err)
	}
	zw := zip.NewWriter(out)

	for _, path := range archives {
		if _, err := os.Stat(path); err != nil {
			logger.Warn("per-gauge archive missing, leaving it out", "path", path, "error", err)
			continue
		}
		if err := addFile(zw, path); err != nil {
			zw.Close()
			out.Close()
			return "", fmt.Errorf("add %s: %w", path, err)
		}
	}

	if err := zw.Close(); err != nil {
		out.Close()
		return "", fmt.Errorf("finalize combined archive: %w", err)
	}
	if err := out.Close(); err != nil {
		return "", err
	}
	return combined, nil
}

func addFile(zw *zip.Writer, path string) error {
	entry, err := zw.Create(filepath.Base(path))
	if err != nil {
		return err
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(entry, f)
	return err
}
