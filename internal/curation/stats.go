package curation

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/earthback/loraprep/internal/imaging"
)

// Stats counts what is on disk without processing anything.
type Stats struct {
	Raw      int
	BySource map[string]int
	Curated  int
	Captions int
	Bytes    int64
}

// CollectStats counts raw images per source subfolder and the curated
// images and captions already produced.
func CollectStats(rawDir, curatedDir string) (*Stats, error) {
	stats := &Stats{BySource: make(map[string]int)}

	if _, err := os.Stat(rawDir); err != nil {
		return nil, fmt.Errorf("raw directory not found: %s", rawDir)
	}

	err := filepath.WalkDir(rawDir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() || !imaging.IsImage(entry.Name()) {
			return nil
		}
		rel, err := filepath.Rel(rawDir, path)
		if err != nil {
			return err
		}
		stats.Raw++
		stats.BySource[sourceName(filepath.ToSlash(rel))]++
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk raw directory: %w", err)
	}

	entries, err := os.ReadDir(curatedDir)
	if os.IsNotExist(err) {
		return stats, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read curated directory: %w", err)
	}

	for _, entry := range entries {
		name := entry.Name()
		switch {
		case strings.HasPrefix(name, "curated_") && strings.HasSuffix(name, ".jpg"):
			stats.Curated++
			if info, err := entry.Info(); err == nil {
				stats.Bytes += info.Size()
			}
		case strings.HasSuffix(name, ".txt"):
			stats.Captions++
		}
	}
	return stats, nil
}
