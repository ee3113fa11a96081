package memory

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/panodraw/annotator/internal/config"
	"github.com/panodraw/annotator/pkg/core"
)

// exportFileName builds "<start>_<session>.json[.gz]".
func exportFileName(e core.SessionExport, compress bool) string {
	name := fmt.Sprintf("%s_%s.json", e.StartTime.UTC().Format("20060102_150405"), e.SessionID)
	if compress {
		name += ".gz"
	}
	return name
}

// writeExport writes e under cfg.OutputDir and returns the file path.
func writeExport(cfg config.MemoryConfig, e core.SessionExport) (string, error) {
	if err := os.MkdirAll(cfg.OutputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	path := filepath.Join(cfg.OutputDir, exportFileName(e, cfg.CompressOutput))

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	if cfg.CompressOutput {
		gz := gzip.NewWriter(f)
		if err := json.NewEncoder(gz).Encode(e); err != nil {
			return "", fmt.Errorf("failed to encode export: %w", err)
		}
		if err := gz.Close(); err != nil {
			return "", fmt.Errorf("failed to finish gzip stream: %w", err)
		}
	} else if err := json.NewEncoder(f).Encode(e); err != nil {
		return "", fmt.Errorf("failed to encode export: %w", err)
	}

	return path, f.Close()
}

// ReadExport reads a file written by EndSession. Files ending in .gz are
// decompressed.
func ReadExport(path string) (core.SessionExport, error) {
	f, err := os.Open(path)
	if err != nil {
		return core.SessionExport{}, err
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return core.SessionExport{}, fmt.Errorf("failed to open gzip stream: %w", err)
		}
		defer gz.Close()
		r = gz
	}

	var e core.SessionExport
	if err := json.NewDecoder(r).Decode(&e); err != nil {
		return core.SessionExport{}, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return e, nil
}
